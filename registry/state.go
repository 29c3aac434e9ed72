package registry

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// StateVersion is the schema version of the persisted registry document.
const StateVersion = 1

// State is the persisted registry document. The wallet list and the active
// pointer live in one value so a single storage write updates both.
type State struct {
	Version int       `json:"version"`
	Wallets []*Record `json:"wallets"`
	Active  string    `json:"active,omitempty"`
}

// NewState creates a new empty State.
func NewState() *State {
	return &State{Version: StateVersion, Wallets: []*Record{}}
}

// Validate checks the integrity of a deserialized State.
func (s *State) Validate() error {
	if s.Version != StateVersion {
		return fmt.Errorf("unsupported registry version %d", s.Version)
	}
	ids := make(map[string]struct{}, len(s.Wallets))
	addrs := make(map[common.Address]string, len(s.Wallets))
	for i, rec := range s.Wallets {
		if rec == nil {
			return fmt.Errorf("wallet #%d is null", i)
		}
		if rec.ID == "" {
			return fmt.Errorf("wallet #%d has no id", i)
		}
		if _, dup := ids[rec.ID]; dup {
			return fmt.Errorf("duplicate wallet id %s", rec.ID)
		}
		ids[rec.ID] = struct{}{}

		if err := rec.normalize(); err != nil {
			return fmt.Errorf("wallet %s: %w", rec.ID, err)
		}
		addr := common.HexToAddress(rec.Address)
		if prev, dup := addrs[addr]; dup {
			return fmt.Errorf("duplicate address %s: wallets %s and %s", rec.Address, prev, rec.ID)
		}
		addrs[addr] = rec.ID
	}
	if s.Active != "" && s.indexOf(s.Active) < 0 {
		return fmt.Errorf("active wallet %s does not exist", s.Active)
	}
	if s.Active == "" && len(s.Wallets) > 0 {
		return fmt.Errorf("active wallet unset with %d wallets", len(s.Wallets))
	}
	return nil
}

// repairActive points a missing or dangling active pointer at the last
// wallet, and clears it when there are none.
func (s *State) repairActive() {
	if len(s.Wallets) == 0 {
		s.Active = ""
		return
	}
	if s.Active == "" || s.indexOf(s.Active) < 0 {
		s.Active = s.Wallets[len(s.Wallets)-1].ID
	}
}

func (s *State) indexOf(id string) int {
	for i, rec := range s.Wallets {
		if rec.ID == id {
			return i
		}
	}
	return -1
}

func (s *State) indexOfAddress(addr common.Address) int {
	for i, rec := range s.Wallets {
		if common.HexToAddress(rec.Address) == addr {
			return i
		}
	}
	return -1
}

func (s *State) names() []string {
	names := make([]string, len(s.Wallets))
	for i, rec := range s.Wallets {
		names[i] = rec.Name
	}
	return names
}
