package option

import "errors"

var (
	// ErrInvalidStrike is returned when a strike price is zero or above the
	// sanity ceiling.
	ErrInvalidStrike = errors.New("invalid strike price")

	// ErrInvalidQuantity is returned when a quantity is outside the allowed
	// notional bounds.
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrInvalidPremium is returned when a premium is zero or exceeds half the
	// notional value.
	ErrInvalidPremium = errors.New("invalid premium")

	// ErrInvalidExpiry is returned when an expiry height is not in the future
	// or exceeds the horizon.
	ErrInvalidExpiry = errors.New("invalid expiry height")

	// ErrContractNotFound is returned when no contract exists for an id.
	ErrContractNotFound = errors.New("contract not found")

	// ErrAlreadySettled is returned when marking a contract settled more than
	// once.
	ErrAlreadySettled = errors.New("contract already settled")

	// ErrNotActive is returned when an operation requires an active contract.
	ErrNotActive = errors.New("contract not active")

	// ErrNotFunded is returned when an operation requires the funding output
	// to have been observed on-chain.
	ErrNotFunded = errors.New("contract not funded")

	// ErrAlreadyFunded is returned when setting a funding outpoint twice.
	ErrAlreadyFunded = errors.New("contract already funded")
)
