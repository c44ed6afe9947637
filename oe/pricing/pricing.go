package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"github.com/97woo/oraclevm/oe/option"
)

// blocksPerYear approximates a year of blocks at the ten minute target.
const blocksPerYear = 52_560

// ErrInvalidQuoteRequest is returned when a premium cannot be quoted for the
// given inputs.
var ErrInvalidQuoteRequest = errors.New("invalid quote request")

// QuoteRequest asks for a premium quote on one prospective contract.
type QuoteRequest struct {
	Kind           option.Kind
	StrikePrice    uint64
	SpotPrice      uint64
	QuantitySats   uint64
	BlocksToExpiry uint32
}

// Engine quotes premiums for prospective contracts. The quoted premium is an
// input to contract creation; the registry never prices anything itself.
type Engine interface {
	Premium(ctx context.Context, req QuoteRequest) (uint64, error)
}

// BlackScholes quotes European option premiums under the Black-Scholes model
// with a flat volatility and rate.
type BlackScholes struct {
	// Volatility is the annualized volatility, e.g. 0.8 for 80%.
	Volatility float64
	// RiskFreeRate is the annualized risk free rate, e.g. 0.05 for 5%.
	RiskFreeRate float64
}

// NewBlackScholes returns a Black-Scholes pricing engine.
func NewBlackScholes(volatility, riskFreeRate float64) *BlackScholes {
	return &BlackScholes{Volatility: volatility, RiskFreeRate: riskFreeRate}
}

// Premium returns the premium in satoshis for the requested contract. The
// model price comes out in price units per whole unit of underlying and is
// converted to satoshis at the spot price.
func (e *BlackScholes) Premium(_ context.Context, req QuoteRequest) (uint64, error) {
	if req.StrikePrice == 0 || req.SpotPrice == 0 || req.QuantitySats == 0 || req.BlocksToExpiry == 0 {
		return 0, fmt.Errorf("%w: %+v", ErrInvalidQuoteRequest, req)
	}
	if e.Volatility <= 0 {
		return 0, fmt.Errorf("%w: volatility %f", ErrInvalidQuoteRequest, e.Volatility)
	}

	spot := float64(req.SpotPrice)
	strike := float64(req.StrikePrice)
	years := float64(req.BlocksToExpiry) / blocksPerYear
	volSqrtT := e.Volatility * math.Sqrt(years)

	d1 := (math.Log(spot/strike) + (e.RiskFreeRate+e.Volatility*e.Volatility/2)*years) / volSqrtT
	d2 := d1 - volSqrtT
	discount := math.Exp(-e.RiskFreeRate * years)

	var priceUnits float64
	switch req.Kind {
	case option.Put:
		priceUnits = strike*discount*stdNormCDF(-d2) - spot*stdNormCDF(-d1)
	default:
		priceUnits = spot*stdNormCDF(d1) - strike*discount*stdNormCDF(d2)
	}
	if priceUnits <= 0 {
		return 0, nil
	}

	// premium_sats = price / spot * quantity, rounded down.
	premium := decimal.NewFromFloat(priceUnits).
		Div(decimal.NewFromUint64(req.SpotPrice)).
		Mul(decimal.NewFromUint64(req.QuantitySats)).
		Floor()
	return uint64(premium.IntPart()), nil
}

// stdNormCDF is the standard normal cumulative distribution function.
func stdNormCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}
