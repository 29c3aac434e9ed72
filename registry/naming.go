package registry

import (
	"fmt"
	"slices"
)

// GenerateName returns "Wallet N" for the smallest N > len(existing) not
// already taken.
func GenerateName(existing []string) string {
	n := len(existing) + 1
	for {
		name := fmt.Sprintf("Wallet %d", n)
		if !slices.Contains(existing, name) {
			return name
		}
		n++
	}
}
