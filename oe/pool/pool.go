package pool

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/97woo/oraclevm/common/keys"
	"github.com/97woo/oraclevm/oe/knobs"
)

// JournalKind identifies the kind of a pool balance movement.
type JournalKind int

const (
	JournalDeposit JournalKind = iota
	JournalWithdrawal
	JournalPremiumCollected
	JournalCollateralLocked
	JournalCollateralReleased
	JournalSettlementPayout
)

func (k JournalKind) String() string {
	switch k {
	case JournalDeposit:
		return "DEPOSIT"
	case JournalWithdrawal:
		return "WITHDRAWAL"
	case JournalPremiumCollected:
		return "PREMIUM_COLLECTED"
	case JournalCollateralLocked:
		return "COLLATERAL_LOCKED"
	case JournalCollateralReleased:
		return "COLLATERAL_RELEASED"
	case JournalSettlementPayout:
		return "SETTLEMENT_PAYOUT"
	default:
		return fmt.Sprintf("JOURNAL(%d)", int(k))
	}
}

// JournalEntry records one balance movement in the pool.
type JournalEntry struct {
	Height     uint32
	Kind       JournalKind
	OptionID   string
	Provider   keys.Public
	AmountSats uint64
	Shares     uint64
}

// Provider is one liquidity provider's position.
type Provider struct {
	PubKey           keys.Public
	DepositedSats    uint64
	Shares           uint64
	LastUpdateHeight uint32
}

// Pool is the shared collateral pool backing written options. Every balance
// movement happens under one lock, so total == available + locked holds at
// every observable point.
type Pool struct {
	mu sync.Mutex

	totalLiquidity     uint64
	availableLiquidity uint64
	lockedCollateral   uint64
	totalPremium       uint64
	totalPayout        uint64

	totalShares uint64
	providers   map[keys.Public]*Provider
	journal     []JournalEntry

	minDepositSats uint64
	activeOptions  int
	knobsService   knobs.Knobs
}

// NewPool creates an empty pool with the given minimum deposit floor.
func NewPool(minDepositSats uint64) *Pool {
	return &Pool{
		providers:      make(map[keys.Public]*Provider),
		minDepositSats: minDepositSats,
	}
}

// SetKnobs attaches the runtime-tunable knobs layer enforcing operational
// limits such as the utilization cap.
func (p *Pool) SetKnobs(knobsService knobs.Knobs) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.knobsService = knobsService
}

// AddLiquidity deposits satoshis for a provider and mints shares proportional
// to the pool value at deposit time. The first deposit mints one share per
// satoshi. Returns the number of shares minted.
func (p *Pool) AddLiquidity(provider keys.Public, amountSats uint64, height uint32) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if amountSats < p.minDepositSats {
		return 0, fmt.Errorf("%w: %d < %d", ErrDepositBelowMinimum, amountSats, p.minDepositSats)
	}

	var shares uint64
	if p.totalShares == 0 {
		shares = amountSats
	} else {
		shares = amountSats * p.totalShares / p.totalLiquidity
	}
	if shares == 0 {
		return 0, fmt.Errorf("%w: %d sats", ErrZeroShares, amountSats)
	}

	position, ok := p.providers[provider]
	if !ok {
		position = &Provider{PubKey: provider}
		p.providers[provider] = position
	}
	position.DepositedSats += amountSats
	position.Shares += shares
	position.LastUpdateHeight = height

	p.totalLiquidity += amountSats
	p.availableLiquidity += amountSats
	p.totalShares += shares

	p.journal = append(p.journal, JournalEntry{
		Height:     height,
		Kind:       JournalDeposit,
		Provider:   provider,
		AmountSats: amountSats,
		Shares:     shares,
	})
	return shares, nil
}

// RemoveLiquidity burns a provider's shares and withdraws the proportional
// slice of the pool. Only available liquidity can be withdrawn; collateral
// locked under active contracts stays put. Returns the satoshis withdrawn.
func (p *Pool) RemoveLiquidity(provider keys.Public, shares uint64, height uint32) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	position, ok := p.providers[provider]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrProviderNotFound, provider)
	}
	if shares == 0 || shares > position.Shares {
		return 0, fmt.Errorf("%w: %d > %d", ErrInsufficientShares, shares, position.Shares)
	}

	amountSats := shares * p.totalLiquidity / p.totalShares
	if amountSats > p.availableLiquidity {
		return 0, fmt.Errorf("%w: withdrawal %d > available %d", ErrInsufficientLiquidity, amountSats, p.availableLiquidity)
	}

	position.Shares -= shares
	position.LastUpdateHeight = height
	if position.Shares == 0 {
		delete(p.providers, provider)
	}

	p.totalLiquidity -= amountSats
	p.availableLiquidity -= amountSats
	p.totalShares -= shares

	p.journal = append(p.journal, JournalEntry{
		Height:     height,
		Kind:       JournalWithdrawal,
		Provider:   provider,
		AmountSats: amountSats,
		Shares:     shares,
	})
	return amountSats, nil
}

// LockCollateral reserves available liquidity as collateral for a contract.
func (p *Pool) LockCollateral(optionID string, amountSats uint64, height uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if amountSats > p.availableLiquidity {
		return fmt.Errorf("%w: need %d, available %d", ErrInsufficientLiquidity, amountSats, p.availableLiquidity)
	}
	if p.knobsService != nil {
		maxPct := p.knobsService.GetValue(knobs.KnobPoolMaxUtilizationPct, 100)
		if maxPct < 100 {
			limit := uint64(float64(p.totalLiquidity) * maxPct / 100)
			if p.lockedCollateral+amountSats > limit {
				return fmt.Errorf("%w: lock %d would push utilization past %.0f%% of %d",
					ErrUtilizationCapExceeded, amountSats, maxPct, p.totalLiquidity)
			}
		}
	}

	p.availableLiquidity -= amountSats
	p.lockedCollateral += amountSats
	p.activeOptions++

	p.journal = append(p.journal, JournalEntry{
		Height:     height,
		Kind:       JournalCollateralLocked,
		OptionID:   optionID,
		AmountSats: amountSats,
	})
	return nil
}

// ReleaseCollateral returns a contract's locked collateral to the available
// balance, used when a contract settles out of the money.
func (p *Pool) ReleaseCollateral(optionID string, amountSats uint64, height uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if amountSats > p.lockedCollateral {
		return fmt.Errorf("%w: release %d > locked %d", ErrInsufficientLockedCollateral, amountSats, p.lockedCollateral)
	}

	p.lockedCollateral -= amountSats
	p.availableLiquidity += amountSats
	p.activeOptions--

	p.journal = append(p.journal, JournalEntry{
		Height:     height,
		Kind:       JournalCollateralReleased,
		OptionID:   optionID,
		AmountSats: amountSats,
	})
	return nil
}

// PayoutSettlement pays an in-the-money settlement out of a contract's locked
// collateral. The paid amount leaves the pool entirely.
func (p *Pool) PayoutSettlement(optionID string, amountSats uint64, height uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if amountSats > p.lockedCollateral {
		return fmt.Errorf("%w: payout %d > locked %d", ErrInsufficientLockedCollateral, amountSats, p.lockedCollateral)
	}

	p.lockedCollateral -= amountSats
	p.totalLiquidity -= amountSats
	p.totalPayout += amountSats
	p.activeOptions--

	p.journal = append(p.journal, JournalEntry{
		Height:     height,
		Kind:       JournalSettlementPayout,
		OptionID:   optionID,
		AmountSats: amountSats,
	})
	return nil
}

// Settle applies a contract's settlement in one atomic step: the payout
// leaves the pool and whatever is left of the contract's collateral returns
// to the available balance. A zero payout settles out of the money.
func (p *Pool) Settle(optionID string, collateralSats, payoutSats uint64, height uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if payoutSats > collateralSats {
		return fmt.Errorf("%w: payout %d > collateral %d", ErrInsufficientLockedCollateral, payoutSats, collateralSats)
	}
	if collateralSats > p.lockedCollateral {
		return fmt.Errorf("%w: settle %d > locked %d", ErrInsufficientLockedCollateral, collateralSats, p.lockedCollateral)
	}

	remainder := collateralSats - payoutSats
	p.lockedCollateral -= collateralSats
	p.availableLiquidity += remainder
	p.totalLiquidity -= payoutSats
	p.totalPayout += payoutSats
	p.activeOptions--

	if payoutSats > 0 {
		p.journal = append(p.journal, JournalEntry{
			Height:     height,
			Kind:       JournalSettlementPayout,
			OptionID:   optionID,
			AmountSats: payoutSats,
		})
	}
	if remainder > 0 {
		p.journal = append(p.journal, JournalEntry{
			Height:     height,
			Kind:       JournalCollateralReleased,
			OptionID:   optionID,
			AmountSats: remainder,
		})
	}
	return nil
}

// CollectPremium credits a contract's premium to the pool, accruing to all
// current shareholders. Premiums never fail; the pool always accepts value.
func (p *Pool) CollectPremium(optionID string, amountSats uint64, height uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.totalLiquidity += amountSats
	p.availableLiquidity += amountSats
	p.totalPremium += amountSats

	p.journal = append(p.journal, JournalEntry{
		Height:     height,
		Kind:       JournalPremiumCollected,
		OptionID:   optionID,
		AmountSats: amountSats,
	})
}

// Snapshot is a consistent view of the pool's balances and counters.
type Snapshot struct {
	TotalLiquidity     uint64
	AvailableLiquidity uint64
	LockedCollateral   uint64
	TotalPremium       uint64
	TotalPayout        uint64
	TotalShares        uint64
	Providers          int
	ActiveOptions      int
	// UtilizationRate is locked / total; zero when the pool is empty.
	UtilizationRate decimal.Decimal
}

// Snapshot returns a consistent view of the pool taken under one lock
// acquisition.
func (p *Pool) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := Snapshot{
		TotalLiquidity:     p.totalLiquidity,
		AvailableLiquidity: p.availableLiquidity,
		LockedCollateral:   p.lockedCollateral,
		TotalPremium:       p.totalPremium,
		TotalPayout:        p.totalPayout,
		TotalShares:        p.totalShares,
		Providers:          len(p.providers),
		ActiveOptions:      p.activeOptions,
	}
	if p.totalLiquidity > 0 {
		snapshot.UtilizationRate = decimal.NewFromUint64(p.lockedCollateral).
			Div(decimal.NewFromUint64(p.totalLiquidity))
	}
	return snapshot
}

// ProviderPosition returns a copy of a provider's position.
func (p *Pool) ProviderPosition(provider keys.Public) (Provider, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	position, ok := p.providers[provider]
	if !ok {
		return Provider{}, fmt.Errorf("%w: %s", ErrProviderNotFound, provider)
	}
	return *position, nil
}

// ProviderReturn computes a provider's return on deposit as
// (current value - deposited) / deposited.
func (p *Pool) ProviderReturn(provider keys.Public) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	position, ok := p.providers[provider]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrProviderNotFound, provider)
	}
	if position.DepositedSats == 0 || p.totalShares == 0 {
		return decimal.Zero, nil
	}

	currentValue := decimal.NewFromUint64(position.Shares).
		Mul(decimal.NewFromUint64(p.totalLiquidity)).
		Div(decimal.NewFromUint64(p.totalShares))
	deposited := decimal.NewFromUint64(position.DepositedSats)
	return currentValue.Sub(deposited).Div(deposited), nil
}

// Journal returns a copy of the pool's balance movement journal in order.
func (p *Pool) Journal() []JournalEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries := make([]JournalEntry, len(p.journal))
	copy(entries, p.journal)
	return entries
}
