package types

import (
	"fmt"
	"regexp"
)

// Address is a short textual identifier derived from a quantum-safe public
// key. Three shapes are recognized: user wallets, genesis bootstrap nodes
// and non-genesis peer pseudonyms.
type Address string

var (
	userWalletPattern  = regexp.MustCompile(`^qnet_[0-9a-f]{8,64}$`)
	genesisNodePattern = regexp.MustCompile(`^genesis_node_(\d{3})$`)
	peerNodePattern    = regexp.MustCompile(`^node_[0-9a-f]{8,64}$`)
)

// AddressKind classifies an Address.
type AddressKind int

const (
	// AddressUnknown is returned for a string matching none of the shapes.
	AddressUnknown AddressKind = iota
	AddressUserWallet
	AddressGenesisNode
	AddressPeerNode
)

// Kind classifies the address, or AddressUnknown if malformed.
func (a Address) Kind() AddressKind {
	switch {
	case userWalletPattern.MatchString(string(a)):
		return AddressUserWallet
	case genesisNodePattern.MatchString(string(a)):
		return AddressGenesisNode
	case peerNodePattern.MatchString(string(a)):
		return AddressPeerNode
	default:
		return AddressUnknown
	}
}

// Valid reports whether the address matches one of the three recognized shapes.
func (a Address) Valid() bool {
	return a.Kind() != AddressUnknown
}

// IsGenesis reports whether a is one of the five bootstrap genesis nodes.
func (a Address) IsGenesis() bool {
	return a.Kind() == AddressGenesisNode
}

// GenesisID returns the numeric suffix (1..5) of a genesis_node_NNN address.
func (a Address) GenesisID() (int, error) {
	m := genesisNodePattern.FindStringSubmatch(string(a))
	if m == nil {
		return 0, fmt.Errorf("types: %q is not a genesis node address", a)
	}
	var id int
	if _, err := fmt.Sscanf(m[1], "%d", &id); err != nil {
		return 0, err
	}
	return id, nil
}

// GenesisAddress formats the canonical address for bootstrap id n (1..5).
func GenesisAddress(n int) Address {
	return Address(fmt.Sprintf("genesis_node_%03d", n))
}
