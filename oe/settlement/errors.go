package settlement

import "errors"

var (
	// ErrRequestNotFound is returned when no settlement request exists for an id.
	ErrRequestNotFound = errors.New("settlement request not found")

	// ErrInvalidRequestState is returned when an operation is applied to a
	// request outside the state it requires.
	ErrInvalidRequestState = errors.New("invalid settlement request state")

	// ErrNotExpired is returned when settlement is requested before expiry.
	ErrNotExpired = errors.New("contract not yet expired")

	// ErrOptionIDMismatch is returned when a proof names a different contract
	// than the request it was submitted for.
	ErrOptionIDMismatch = errors.New("proof option id mismatch")

	// ErrSpotMismatch is returned when a proof's spot price differs from the
	// request's.
	ErrSpotMismatch = errors.New("proof spot price mismatch")

	// ErrCommitmentMismatch is returned when a proof's commitment does not
	// byte-match the contract's.
	ErrCommitmentMismatch = errors.New("proof commitment mismatch")

	// ErrAmountMismatch is returned when a proof's claimed settlement amount
	// or moneyness differs from the independently recomputed values.
	ErrAmountMismatch = errors.New("proof settlement amount mismatch")

	// ErrAddressMismatch is returned when the reconstructed contract output
	// does not produce the address the contract was funded at.
	ErrAddressMismatch = errors.New("contract address mismatch")

	// ErrNoSpendableOutput is returned when a settlement transaction would
	// leave only dust.
	ErrNoSpendableOutput = errors.New("no spendable output above dust")
)
