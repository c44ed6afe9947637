package pool

import "errors"

var (
	// ErrDepositBelowMinimum is returned when a deposit is below the pool's
	// minimum deposit floor.
	ErrDepositBelowMinimum = errors.New("deposit below minimum")

	// ErrProviderNotFound is returned when no provider exists for a key.
	ErrProviderNotFound = errors.New("liquidity provider not found")

	// ErrInsufficientShares is returned when a withdrawal asks for more shares
	// than the provider holds.
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrInsufficientLiquidity is returned when available liquidity cannot
	// cover a collateral lock or a withdrawal.
	ErrInsufficientLiquidity = errors.New("insufficient available liquidity")

	// ErrInsufficientLockedCollateral is returned when a release or payout
	// exceeds the locked balance.
	ErrInsufficientLockedCollateral = errors.New("insufficient locked collateral")

	// ErrZeroShares is returned when a deposit is too small to mint shares.
	ErrZeroShares = errors.New("deposit mints zero shares")

	// ErrUtilizationCapExceeded is returned when a collateral lock would push
	// the pool past its configured utilization ceiling.
	ErrUtilizationCapExceeded = errors.New("pool utilization cap exceeded")
)
