package option

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/97woo/oraclevm/common/keys"
)

const (
	// ReferenceUnitSats is the fixed reference conversion between notional
	// price units and satoshis (sats per whole BTC).
	ReferenceUnitSats = 100_000_000

	// MaxStrikePrice is the sanity ceiling on strike prices, in price units.
	MaxStrikePrice = 1_000_000_000

	// MinQuantitySats and MaxQuantitySats bound the notional size of a single
	// contract.
	MinQuantitySats = 10_000
	MaxQuantitySats = 100_000_000

	// MaxExpiryHorizonBlocks is the furthest a contract expiry may sit in the
	// future (~1 year of blocks).
	MaxExpiryHorizonBlocks = 52_560
)

// Kind is the option kind.
type Kind int

const (
	// Call gives the holder upside exposure above the strike.
	Call Kind = iota
	// Put gives the holder downside exposure below the strike.
	Put
)

func (k Kind) String() string {
	switch k {
	case Call:
		return "CALL"
	case Put:
		return "PUT"
	default:
		return fmt.Sprintf("KIND(%d)", int(k))
	}
}

// Status is the lifecycle status of a contract. The only allowed transition is
// Active to Settled, applied exactly once.
type Status int

const (
	// Active means the contract is live and its collateral is locked.
	Active Status = iota
	// Settled means settlement has executed; terminal.
	Settled
)

func (s Status) String() string {
	switch s {
	case Active:
		return "ACTIVE"
	case Settled:
		return "SETTLED"
	default:
		return fmt.Sprintf("STATUS(%d)", int(s))
	}
}

// Params are the immutable terms of an option contract.
type Params struct {
	// Kind is Call or Put.
	Kind Kind
	// StrikePrice is the strike in the smallest price unit.
	StrikePrice uint64
	// QuantitySats is the notional quantity in satoshis.
	QuantitySats uint64
	// ExpiryHeight is the absolute block height at which the option expires.
	ExpiryHeight uint32
	// PremiumSats is the premium paid by the holder, in satoshis. Supplied by
	// the pricing engine; never computed here.
	PremiumSats uint64
}

// Contract is one option's terms and owned state. Contracts are owned by the
// Registry; callers receive copies and commit changes back through it.
type Contract struct {
	// ID uniquely identifies the contract.
	ID string
	// Params are the immutable terms.
	Params Params
	// Status is the lifecycle status.
	Status Status
	// Holder is the buyer's public key.
	Holder keys.Public
	// Address is the on-chain taproot address collateral and premium fund.
	Address string
	// Commitment binds the contract to its settlement program and parameters.
	Commitment [32]byte
	// CollateralSats is computed once at creation and immutable thereafter.
	CollateralSats uint64
	// FundingTxID and FundingVout reference the funding output once observed
	// on-chain. Funded reports whether they are set.
	FundingTxID string
	FundingVout uint32
	Funded      bool
	// CreatedAt is the wall-clock creation time.
	CreatedAt time.Time
}

// CollateralFor computes the collateral the pool must lock to fully cover the
// contract's maximum payout.
func CollateralFor(p Params) uint64 {
	switch p.Kind {
	case Put:
		// The pool must cover the notional's value at the strike, converted
		// at the fixed reference rate.
		return p.StrikePrice * p.QuantitySats / ReferenceUnitSats
	default:
		// A call pays out in the underlying; the full notional covers it.
		return p.QuantitySats
	}
}

// IsExpired reports whether the contract is at or past expiry at the given
// height.
func (c *Contract) IsExpired(currentHeight uint32) bool {
	return currentHeight >= c.Params.ExpiryHeight
}

// IsInTheMoney reports whether exercising at the given spot price yields
// positive intrinsic value.
func (c *Contract) IsInTheMoney(spotPrice uint64) bool {
	switch c.Params.Kind {
	case Put:
		return spotPrice < c.Params.StrikePrice
	default:
		return spotPrice > c.Params.StrikePrice
	}
}

// SettlementAmount computes the payout in satoshis for settling at the given
// spot price. The result is always within [0, CollateralSats].
func (c *Contract) SettlementAmount(spotPrice uint64) uint64 {
	if !c.IsInTheMoney(spotPrice) {
		return 0
	}

	var amount uint64
	switch c.Params.Kind {
	case Put:
		amount = (c.Params.StrikePrice - spotPrice) * c.Params.QuantitySats / c.Params.StrikePrice
	default:
		amount = (spotPrice - c.Params.StrikePrice) * c.Params.QuantitySats / spotPrice
	}

	return min(amount, c.CollateralSats)
}

// FundingOutPoint returns the funding outpoint once the contract has been
// observed funded on-chain.
func (c *Contract) FundingOutPoint() (*wire.OutPoint, error) {
	if !c.Funded {
		return nil, ErrNotFunded
	}
	return wire.NewOutPointFromString(fmt.Sprintf("%s:%d", c.FundingTxID, c.FundingVout))
}

// FundingValueSats is the value of the funding output: the pool's collateral
// plus the holder's premium.
func (c *Contract) FundingValueSats() uint64 {
	return c.CollateralSats + c.Params.PremiumSats
}

func (c *Contract) clone() *Contract {
	dup := *c
	return &dup
}
