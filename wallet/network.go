package wallet

import (
	"fmt"
	"sort"
)

// NetworkConfig describes an EVM chain a wallet is used on. All supported
// chains share the same key derivation and address format.
type NetworkConfig struct {
	Name    string `json:"name"`
	ChainID uint64 `json:"chain_id"`
	Symbol  string `json:"symbol"`
}

// Predefined network configurations.
var (
	Ethereum = NetworkConfig{Name: "ethereum", ChainID: 1, Symbol: "ETH"}
	BSC      = NetworkConfig{Name: "bsc", ChainID: 56, Symbol: "BNB"}
	Polygon  = NetworkConfig{Name: "polygon", ChainID: 137, Symbol: "POL"}
)

// DefaultNetwork is used when a wallet is created without an explicit network.
const DefaultNetwork = "ethereum"

// predefined maps network names to their configs.
var predefined = map[string]*NetworkConfig{
	"ethereum": &Ethereum,
	"bsc":      &BSC,
	"polygon":  &Polygon,
}

// GetNetwork returns a predefined network by name.
// An empty name selects DefaultNetwork.
func GetNetwork(name string) (*NetworkConfig, error) {
	if name == "" {
		name = DefaultNetwork
	}
	if net, ok := predefined[name]; ok {
		return net, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidNetwork, name)
}

// NetworkNames lists the predefined network names in sorted order.
func NetworkNames() []string {
	names := make([]string, 0, len(predefined))
	for name := range predefined {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
