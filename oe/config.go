package oe

import (
	"fmt"

	"github.com/97woo/oraclevm/common/btcnetwork"
	"github.com/97woo/oraclevm/common/keys"
	"github.com/97woo/oraclevm/oe/knobs"
)

const (
	// DefaultGracePeriodBlocks is how long after expiry the refund leaf stays
	// dormant before the seller can reclaim unilaterally (~1 day).
	DefaultGracePeriodBlocks = 144

	// DefaultMinDepositSats is the minimum liquidity deposit accepted by the pool.
	DefaultMinDepositSats = 100_000
)

// BitcoindConfig holds the connection parameters for the Bitcoin node RPC.
type BitcoindConfig struct {
	// Host is the host:port of the bitcoind RPC endpoint.
	Host string
	// User is the RPC username.
	User string
	// Password is the RPC password.
	Password string
}

// Config is the static configuration for the option engine.
type Config struct {
	// Network is the Bitcoin network the engine operates against.
	Network btcnetwork.Network
	// Bitcoind is the node RPC connection configuration.
	Bitcoind BitcoindConfig
	// VerifierKey signs the settlement leaf after proof validation.
	VerifierKey keys.Private
	// PoolKey is the pool's (seller side) signing key; its taproot address
	// receives released collateral and OTM refunds.
	PoolKey keys.Private
	// GracePeriodBlocks is the refund-leaf delay after expiry.
	GracePeriodBlocks uint32
	// MinDepositSats is the pool's minimum deposit floor.
	MinDepositSats uint64
	// Knobs is the runtime-tunable configuration layer.
	Knobs knobs.Knobs
}

// NewConfig returns a Config with defaults applied for unset optional fields.
func NewConfig(network btcnetwork.Network, bitcoind BitcoindConfig, verifierKey, poolKey keys.Private) (*Config, error) {
	if verifierKey.IsZero() {
		return nil, fmt.Errorf("verifier key is required")
	}
	if poolKey.IsZero() {
		return nil, fmt.Errorf("pool key is required")
	}
	return &Config{
		Network:           network,
		Bitcoind:          bitcoind,
		VerifierKey:       verifierKey,
		PoolKey:           poolKey,
		GracePeriodBlocks: DefaultGracePeriodBlocks,
		MinDepositSats:    DefaultMinDepositSats,
		Knobs:             knobs.New(nil),
	}, nil
}
