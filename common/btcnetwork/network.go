package btcnetwork

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
)

// Network is the type for Bitcoin networks the engine can operate against.
type Network int

const (
	Unspecified Network = iota
	// Mainnet is the main Bitcoin network.
	Mainnet
	// Regtest is the regression test network.
	Regtest
	// Testnet is the test network.
	Testnet
	// Signet is the signet network.
	Signet
)

// FromString parses a network name string and returns the corresponding Network.
func FromString(network string) (Network, error) {
	switch strings.ToUpper(network) {
	case "MAINNET":
		return Mainnet, nil
	case "REGTEST":
		return Regtest, nil
	case "TESTNET":
		return Testnet, nil
	case "SIGNET":
		return Signet, nil
	default:
		return Unspecified, fmt.Errorf("invalid network: %s", network)
	}
}

// String returns the uppercase string representation of the Network.
func (n Network) String() string {
	switch n {
	case Mainnet:
		return "MAINNET"
	case Regtest:
		return "REGTEST"
	case Testnet:
		return "TESTNET"
	case Signet:
		return "SIGNET"
	default:
		return "UNSPECIFIED"
	}
}

// Params converts a Network into its corresponding chaincfg.Params.
func (n Network) Params() *chaincfg.Params {
	switch n {
	case Regtest:
		return &chaincfg.RegressionNetParams
	case Testnet:
		return &chaincfg.TestNet3Params
	case Signet:
		return &chaincfg.SigNetParams
	default:
		return &chaincfg.MainNetParams
	}
}
