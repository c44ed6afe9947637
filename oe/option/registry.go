package option

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/97woo/oraclevm/common/keys"
	"github.com/97woo/oraclevm/common/logging"
	"github.com/97woo/oraclevm/oe/knobs"
	"go.uber.org/zap"
)

// Collateralizer is the slice of the liquidity pool the registry needs:
// locking collateral for new contracts and crediting their premiums.
type Collateralizer interface {
	LockCollateral(optionID string, amountSats uint64, height uint32) error
	CollectPremium(optionID string, amountSats uint64, height uint32)
}

// CommitmentFunc derives the settlement program commitment for a contract.
type CommitmentFunc func(optionID string, params Params) [32]byte

// AddressFunc derives the contract's on-chain funding address from the
// holder key, commitment and expiry.
type AddressFunc func(holder keys.Public, commitment [32]byte, expiryHeight uint32) (string, error)

// Registry owns every contract's lifecycle. All mutations go through it; reads
// return copies so callers never share mutable contract state.
type Registry struct {
	mu sync.RWMutex

	store      Store
	pool       Collateralizer
	commitment CommitmentFunc
	address    AddressFunc

	byHolder map[keys.Public][]string
	settled  uint64
}

// NewRegistry creates a Registry backed by the given store. A nil store uses
// an in-memory one.
func NewRegistry(store Store, pool Collateralizer, commitment CommitmentFunc, address AddressFunc) *Registry {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Registry{
		store:      store,
		pool:       pool,
		commitment: commitment,
		address:    address,
		byHolder:   make(map[keys.Public][]string),
	}
}

func validateParams(ctx context.Context, params Params, currentHeight uint32) error {
	if params.StrikePrice == 0 || params.StrikePrice > MaxStrikePrice {
		return fmt.Errorf("%w: %d", ErrInvalidStrike, params.StrikePrice)
	}
	if params.QuantitySats < MinQuantitySats || params.QuantitySats > MaxQuantitySats {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, params.QuantitySats)
	}
	notional := params.StrikePrice * params.QuantitySats / ReferenceUnitSats
	if params.PremiumSats == 0 || params.PremiumSats*2 > notional {
		return fmt.Errorf("%w: %d", ErrInvalidPremium, params.PremiumSats)
	}
	horizon := uint32(knobs.GetKnobsService(ctx).GetValue(knobs.KnobOptionMaxExpiryHorizonBlocks, MaxExpiryHorizonBlocks))
	if params.ExpiryHeight <= currentHeight || params.ExpiryHeight > currentHeight+horizon {
		return fmt.Errorf("%w: %d at height %d", ErrInvalidExpiry, params.ExpiryHeight, currentHeight)
	}
	return nil
}

// Create validates the terms, locks pool collateral, credits the premium and
// registers a new active contract. Nothing is mutated if any step fails.
func (r *Registry) Create(ctx context.Context, holder keys.Public, params Params, currentHeight uint32) (*Contract, error) {
	logger := logging.GetLoggerFromContext(ctx)

	if err := validateParams(ctx, params, currentHeight); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	commitment := r.commitment(id, params)
	address, err := r.address(holder, commitment, params.ExpiryHeight)
	if err != nil {
		return nil, fmt.Errorf("failed to derive contract address: %w", err)
	}

	contract := &Contract{
		ID:             id,
		Params:         params,
		Status:         Active,
		Holder:         holder,
		Address:        address,
		Commitment:     commitment,
		CollateralSats: CollateralFor(params),
		CreatedAt:      time.Now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.pool.LockCollateral(id, contract.CollateralSats, currentHeight); err != nil {
		return nil, err
	}
	r.pool.CollectPremium(id, params.PremiumSats, currentHeight)

	r.store.Put(contract)
	r.byHolder[holder] = append(r.byHolder[holder], id)

	logger.Sugar().Infof(
		"Created %s option %s: strike=%d quantity=%d expiry=%d premium=%d collateral=%d",
		params.Kind, id, params.StrikePrice, params.QuantitySats,
		params.ExpiryHeight, params.PremiumSats, contract.CollateralSats,
	)

	return contract.clone(), nil
}

// Get returns a copy of the contract with the given id.
func (r *Registry) Get(id string) (*Contract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	contract, ok := r.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContractNotFound, id)
	}
	return contract.clone(), nil
}

// ByHolder returns copies of all contracts held by the given key.
func (r *Registry) ByHolder(holder keys.Public) []*Contract {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byHolder[holder]
	contracts := make([]*Contract, 0, len(ids))
	for _, id := range ids {
		if contract, ok := r.store.Get(id); ok {
			contracts = append(contracts, contract.clone())
		}
	}
	return contracts
}

// Expired returns copies of all active contracts at or past expiry at the
// given height.
func (r *Registry) Expired(currentHeight uint32) []*Contract {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var expired []*Contract
	for _, contract := range r.store.List() {
		if contract.Status == Active && contract.IsExpired(currentHeight) {
			expired = append(expired, contract.clone())
		}
	}
	return expired
}

// SetFunding records the observed funding outpoint for a contract. It may be
// set exactly once.
func (r *Registry) SetFunding(ctx context.Context, id string, fundingTxID string, fundingVout uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	contract, ok := r.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrContractNotFound, id)
	}
	if contract.Funded {
		return fmt.Errorf("%w: %s", ErrAlreadyFunded, id)
	}

	contract.FundingTxID = fundingTxID
	contract.FundingVout = fundingVout
	contract.Funded = true
	r.store.Put(contract)

	logging.GetLoggerFromContext(ctx).Info(
		"Observed contract funding",
		zap.String("option_id", id),
		zap.String("funding_txid", fundingTxID),
		zap.Uint32("funding_vout", fundingVout),
	)
	return nil
}

// MarkSettled transitions a contract from Active to Settled. This is the
// single idempotence point for settlement: a second call for the same
// contract fails with ErrAlreadySettled.
func (r *Registry) MarkSettled(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	contract, ok := r.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrContractNotFound, id)
	}
	if contract.Status == Settled {
		return fmt.Errorf("%w: %s", ErrAlreadySettled, id)
	}

	contract.Status = Settled
	r.store.Put(contract)
	r.settled++
	return nil
}

// Counts is a snapshot of contract population by status.
type Counts struct {
	Active  int
	Settled int
}

// Counts returns the number of active and settled contracts.
func (r *Registry) Counts() Counts {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := Counts{Settled: int(r.settled)}
	counts.Active = r.store.Len() - counts.Settled
	return counts
}
