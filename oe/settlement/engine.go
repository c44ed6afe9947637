package settlement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/google/uuid"
	"github.com/97woo/oraclevm/common"
	"github.com/97woo/oraclevm/common/logging"
	"github.com/97woo/oraclevm/oe"
	"github.com/97woo/oraclevm/oe/bitvmx"
	"github.com/97woo/oraclevm/oe/option"
	"github.com/97woo/oraclevm/oe/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

var (
	meter = otel.Meter("settlement")

	// Metrics
	settlementExecutedCounter metric.Int64Counter
	proofRejectedCounter      metric.Int64Counter
)

func init() {
	var err error

	settlementExecutedCounter, err = meter.Int64Counter(
		"settlement.executed_total",
		metric.WithDescription("Total number of settlements executed"),
	)
	if err != nil {
		otel.Handle(err)
		settlementExecutedCounter = noop.Int64Counter{}
	}

	proofRejectedCounter, err = meter.Int64Counter(
		"settlement.proof_rejected_total",
		metric.WithDescription("Total number of settlement proofs rejected by validation"),
	)
	if err != nil {
		otel.Handle(err)
		proofRejectedCounter = noop.Int64Counter{}
	}
}

// RequestStatus is the state of a settlement request.
type RequestStatus int

const (
	// StatusPending means the request awaits a proof.
	StatusPending RequestStatus = iota
	// StatusProofSubmitted means a proof passed validation and is attached.
	StatusProofSubmitted
	// StatusValidated means execution re-checked the proof and is committing.
	StatusValidated
	// StatusExecuted means the settlement transaction was built and the
	// contract state committed; terminal.
	StatusExecuted
	// StatusFailed means validation or execution rejected the request;
	// terminal.
	StatusFailed
)

func (s RequestStatus) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusProofSubmitted:
		return "PROOF_SUBMITTED"
	case StatusValidated:
		return "VALIDATED"
	case StatusExecuted:
		return "EXECUTED"
	case StatusFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("STATUS(%d)", int(s))
	}
}

// Request tracks one settlement attempt for one contract.
type Request struct {
	ID            uuid.UUID
	OptionID      string
	SpotPrice     uint64
	Status        RequestStatus
	FailureReason string
	Proof         *bitvmx.Proof
	// SettlementTx is the settlement transaction id once executed.
	SettlementTx string
	// SignedTx is the serialized settlement transaction. For in-the-money
	// settlements the claimant slot is unsigned; the holder's wallet completes
	// and broadcasts it.
	SignedTx  string
	CreatedAt time.Time
}

func (r *Request) clone() *Request {
	dup := *r
	return &dup
}

// Engine drives expired contracts through proof validation and settlement
// execution. Proofs are untrusted input: every claim in a proof is re-derived
// from the contract's own terms and byte-compared before any funds move.
type Engine struct {
	mu sync.Mutex

	config   *oe.Config
	registry *option.Registry
	pool     *pool.Pool

	requests map[uuid.UUID]*Request
}

// NewEngine creates a settlement engine over the given registry and pool.
func NewEngine(config *oe.Config, registry *option.Registry, pool *pool.Pool) *Engine {
	return &Engine{
		config:   config,
		registry: registry,
		pool:     pool,
		requests: make(map[uuid.UUID]*Request),
	}
}

// CreateRequest opens a settlement request for an expired active contract at
// the given spot price.
func (e *Engine) CreateRequest(ctx context.Context, optionID string, spotPrice uint64, currentHeight uint32) (*Request, error) {
	contract, err := e.registry.Get(optionID)
	if err != nil {
		return nil, err
	}
	if contract.Status != option.Active {
		return nil, fmt.Errorf("%w: %s is %s", option.ErrNotActive, optionID, contract.Status)
	}
	if !contract.IsExpired(currentHeight) {
		return nil, fmt.Errorf("%w: %s expires at %d, current height %d",
			ErrNotExpired, optionID, contract.Params.ExpiryHeight, currentHeight)
	}

	request := &Request{
		ID:        uuid.New(),
		OptionID:  optionID,
		SpotPrice: spotPrice,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}

	e.mu.Lock()
	e.requests[request.ID] = request
	e.mu.Unlock()

	logging.GetLoggerFromContext(ctx).Info(
		"Created settlement request",
		zap.String("request_id", request.ID.String()),
		zap.String("option_id", optionID),
		zap.Uint64("spot_price", spotPrice),
	)
	return request.clone(), nil
}

// SubmitProof validates a proof against the request's contract and attaches
// it. Any mismatch between the proof's claims and the independently computed
// values fails the request; nothing about contract or pool state changes on
// rejection.
func (e *Engine) SubmitProof(ctx context.Context, requestID uuid.UUID, proof *bitvmx.Proof) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	request, ok := e.requests[requestID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRequestNotFound, requestID)
	}
	if request.Status != StatusPending {
		return fmt.Errorf("%w: %s is %s, want %s", ErrInvalidRequestState, requestID, request.Status, StatusPending)
	}

	contract, err := e.registry.Get(request.OptionID)
	if err != nil {
		return err
	}

	if err := validateProof(request, contract, proof); err != nil {
		request.Status = StatusFailed
		request.FailureReason = err.Error()

		proofRejectedCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("network", e.config.Network.String()),
		))
		logging.GetLoggerFromContext(ctx).Warn(
			"Rejected settlement proof",
			zap.String("request_id", requestID.String()),
			zap.String("option_id", request.OptionID),
			zap.Error(err),
		)
		return err
	}

	request.Proof = proof
	request.Status = StatusProofSubmitted
	return nil
}

// validateProof re-derives every claim the proof makes from the contract's
// own terms and requires exact matches.
func validateProof(request *Request, contract *option.Contract, proof *bitvmx.Proof) error {
	if proof.OptionID != contract.ID {
		return fmt.Errorf("%w: proof %s, contract %s", ErrOptionIDMismatch, proof.OptionID, contract.ID)
	}
	if proof.SpotPrice != request.SpotPrice {
		return fmt.Errorf("%w: proof %d, request %d", ErrSpotMismatch, proof.SpotPrice, request.SpotPrice)
	}
	if proof.Commitment != contract.Commitment {
		return fmt.Errorf("%w: option %s", ErrCommitmentMismatch, contract.ID)
	}

	expectedITM := contract.IsInTheMoney(proof.SpotPrice)
	expectedAmount := contract.SettlementAmount(proof.SpotPrice)
	if proof.IsITM != expectedITM || proof.SettlementAmountSats != expectedAmount {
		return fmt.Errorf("%w: proof claims itm=%t amount=%d, computed itm=%t amount=%d",
			ErrAmountMismatch, proof.IsITM, proof.SettlementAmountSats, expectedITM, expectedAmount)
	}

	kind, strike, spot, amount, err := bitvmx.DecodePayload(proof.ProofBytes)
	if err != nil {
		return err
	}
	if kind != contract.Params.Kind || strike != contract.Params.StrikePrice ||
		spot != proof.SpotPrice || amount != expectedAmount {
		return fmt.Errorf("%w: payload disagrees with proof claims", ErrAmountMismatch)
	}
	return nil
}

// Execute commits a validated settlement: the contract transitions to
// Settled, the pool applies the payout and collateral release atomically, and
// the settlement transaction is returned. Out-of-the-money transactions are
// fully signed and ready for broadcast; in-the-money ones carry an unsigned
// claimant slot the holder's wallet must fill. A second execution of the same
// contract fails with ErrAlreadySettled before any state changes.
func (e *Engine) Execute(ctx context.Context, requestID uuid.UUID) (*wire.MsgTx, error) {
	logger := logging.GetLoggerFromContext(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	request, ok := e.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, requestID)
	}
	if request.Status != StatusProofSubmitted {
		return nil, fmt.Errorf("%w: %s is %s, want %s", ErrInvalidRequestState, requestID, request.Status, StatusProofSubmitted)
	}

	contract, err := e.registry.Get(request.OptionID)
	if err != nil {
		return nil, err
	}
	if !contract.Funded {
		return nil, fmt.Errorf("%w: %s", option.ErrNotFunded, contract.ID)
	}
	request.Status = StatusValidated

	// Rebuild the contract output from first principles and require it to
	// reproduce the funded address before spending from it.
	output, err := ContractOutputFor(e.config, contract.Holder, contract.Commitment, contract.Params.ExpiryHeight)
	if err != nil {
		return nil, err
	}
	address, err := output.Address(e.config.Network)
	if err != nil {
		return nil, err
	}
	if address != contract.Address {
		request.Status = StatusFailed
		request.FailureReason = ErrAddressMismatch.Error()
		return nil, fmt.Errorf("%w: derived %s, funded %s", ErrAddressMismatch, address, contract.Address)
	}

	tx, err := BuildSettlementTx(contract, output, request.Proof, e.config)
	if err != nil {
		request.Status = StatusFailed
		request.FailureReason = err.Error()
		return nil, err
	}

	// Single idempotence point: the Active to Settled edge is taken exactly
	// once, so pool balances can only move once per contract.
	if err := e.registry.MarkSettled(contract.ID); err != nil {
		request.Status = StatusFailed
		request.FailureReason = err.Error()
		return nil, err
	}
	// A sub-dust payout cannot be an output, so the transaction folds it back
	// to the pool; the ledger has to agree with the chain.
	payout := request.Proof.SettlementAmountSats
	if payout < common.DustThresholdSats {
		payout = 0
	}
	if err := e.pool.Settle(contract.ID, contract.CollateralSats, payout, request.Proof.BlockHeight); err != nil {
		// The contract is already marked settled; the pool rejecting the
		// corresponding balance movement means an invariant was broken
		// upstream. Surface it loudly rather than guessing at a rollback.
		request.Status = StatusFailed
		request.FailureReason = err.Error()
		logger.Error(
			"Pool rejected settlement for a contract already marked settled",
			zap.String("option_id", contract.ID),
			zap.Error(err),
		)
		return nil, err
	}

	request.Status = StatusExecuted
	request.SettlementTx = tx.TxID()
	if rawTx, err := common.SerializeTxHex(tx); err == nil {
		request.SignedTx = rawTx
	}

	settlementExecutedCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("network", e.config.Network.String()),
		attribute.String("kind", contract.Params.Kind.String()),
		attribute.Bool("itm", request.Proof.IsITM),
	))
	logger.Sugar().Infof(
		"Executed settlement for option %s: spot=%d itm=%t payout=%d txid=%s",
		contract.ID, request.SpotPrice, request.Proof.IsITM,
		request.Proof.SettlementAmountSats, request.SettlementTx,
	)
	return tx, nil
}

// Request returns a copy of the request with the given id.
func (e *Engine) Request(requestID uuid.UUID) (*Request, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	request, ok := e.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, requestID)
	}
	return request.clone(), nil
}

// Requests returns copies of all requests in unspecified order.
func (e *Engine) Requests() []*Request {
	e.mu.Lock()
	defer e.mu.Unlock()

	requests := make([]*Request, 0, len(e.requests))
	for _, request := range e.requests {
		requests = append(requests, request.clone())
	}
	return requests
}
