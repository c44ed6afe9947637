package settlement

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/97woo/oraclevm/common"
	"github.com/97woo/oraclevm/common/btcnetwork"
	"github.com/97woo/oraclevm/common/keys"
	"github.com/97woo/oraclevm/oe"
	"github.com/97woo/oraclevm/oe/bitvmx"
	"github.com/97woo/oraclevm/oe/option"
	"github.com/97woo/oraclevm/oe/pool"
)

const fundingTxID = "aa00000000000000000000000000000000000000000000000000000000000001"

type testEnv struct {
	config   *oe.Config
	registry *option.Registry
	pool     *pool.Pool
	engine   *Engine
	holder   keys.Public
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	config, err := oe.NewConfig(btcnetwork.Regtest, oe.BitcoindConfig{},
		keys.GeneratePrivateKey(), keys.GeneratePrivateKey())
	require.NoError(t, err)

	liquidityPool := pool.NewPool(config.MinDepositSats)
	_, err = liquidityPool.AddLiquidity(keys.GeneratePrivateKey().Public(), 100_000_000, 50)
	require.NoError(t, err)

	registry := option.NewRegistry(nil, liquidityPool, bitvmx.ComputeCommitment, ContractAddressFunc(config))

	return &testEnv{
		config:   config,
		registry: registry,
		pool:     liquidityPool,
		engine:   NewEngine(config, registry, liquidityPool),
		holder:   keys.GeneratePrivateKey().Public(),
	}
}

func (env *testEnv) createFundedCall(t *testing.T) *option.Contract {
	t.Helper()
	ctx := context.Background()

	contract, err := env.registry.Create(ctx, env.holder, option.Params{
		Kind:         option.Call,
		StrikePrice:  7_000_000,
		QuantitySats: 10_000_000,
		ExpiryHeight: 200,
		PremiumSats:  250_000,
	}, 100)
	require.NoError(t, err)
	require.NoError(t, env.registry.SetFunding(ctx, contract.ID, fundingTxID, 0))

	funded, err := env.registry.Get(contract.ID)
	require.NoError(t, err)
	return funded
}

func (env *testEnv) proveAndSubmit(t *testing.T, contract *option.Contract, spotPrice uint64, height uint32) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	request, err := env.engine.CreateRequest(ctx, contract.ID, spotPrice, height)
	require.NoError(t, err)

	proof, err := bitvmx.NewEmulatedGenerator().GenerateProof(ctx, bitvmx.ProofRequest{
		Contract:    contract,
		SpotPrice:   spotPrice,
		BlockHeight: height,
	})
	require.NoError(t, err)
	require.NoError(t, env.engine.SubmitProof(ctx, request.ID, proof))
	return request.ID
}

func TestExecute_InTheMoney(t *testing.T) {
	env := newTestEnv(t)
	contract := env.createFundedCall(t)
	ctx := context.Background()

	requestID := env.proveAndSubmit(t, contract, 7_500_000, 200)
	tx, err := env.engine.Execute(ctx, requestID)
	require.NoError(t, err)

	// Payout to the holder plus the remainder back to the pool.
	require.Len(t, tx.TxOut, 2)
	payoutScript, err := common.P2TRScriptFromPubKey(env.holder)
	require.NoError(t, err)
	assert.Equal(t, int64(666_666), tx.TxOut[0].Value)
	assert.Equal(t, payoutScript, tx.TxOut[0].PkScript)
	// 10,250,000 funding - 666,666 payout - 955 fee.
	assert.Equal(t, int64(9_582_379), tx.TxOut[1].Value)

	assert.Equal(t, uint32(200), tx.LockTime)
	require.Len(t, tx.TxIn, 1)
	assert.Less(t, tx.TxIn[0].Sequence, wire.MaxTxInSequenceNum)
	assert.Equal(t, fundingTxID, tx.TxIn[0].PreviousOutPoint.Hash.String())

	// The contract settles exactly once and the pool books the payout.
	settled, err := env.registry.Get(contract.ID)
	require.NoError(t, err)
	assert.Equal(t, option.Settled, settled.Status)

	snapshot := env.pool.Snapshot()
	assert.Equal(t, uint64(99_583_334), snapshot.TotalLiquidity)
	assert.Equal(t, snapshot.TotalLiquidity, snapshot.AvailableLiquidity)
	assert.Zero(t, snapshot.LockedCollateral)
	assert.Equal(t, uint64(666_666), snapshot.TotalPayout)

	request, err := env.engine.Request(requestID)
	require.NoError(t, err)
	assert.Equal(t, StatusExecuted, request.Status)
	assert.Equal(t, tx.TxID(), request.SettlementTx)

	// The serialized transaction rides on the request so the holder's wallet
	// can fill in the claimant signature and broadcast.
	require.NotEmpty(t, request.SignedTx)
	carried, err := common.TxFromRawTxHex(request.SignedTx)
	require.NoError(t, err)
	assert.Equal(t, tx.TxID(), carried.TxID())
}

func TestExecute_OutOfTheMoney(t *testing.T) {
	env := newTestEnv(t)
	contract := env.createFundedCall(t)
	ctx := context.Background()

	requestID := env.proveAndSubmit(t, contract, 6_500_000, 200)
	tx, err := env.engine.Execute(ctx, requestID)
	require.NoError(t, err)

	// Everything minus the fee returns to the pool.
	require.Len(t, tx.TxOut, 1)
	poolScript, err := common.P2TRScriptFromPubKey(env.config.PoolKey.Public())
	require.NoError(t, err)
	assert.Equal(t, int64(10_249_045), tx.TxOut[0].Value)
	assert.Equal(t, poolScript, tx.TxOut[0].PkScript)

	// The pool keeps the premium and the collateral comes back.
	snapshot := env.pool.Snapshot()
	assert.Equal(t, uint64(100_250_000), snapshot.TotalLiquidity)
	assert.Equal(t, snapshot.TotalLiquidity, snapshot.AvailableLiquidity)
	assert.Zero(t, snapshot.TotalPayout)

	// The out-of-the-money claim is fully signed by the pool, so the
	// script engine accepts it end to end.
	output, err := ContractOutputFor(env.config, contract.Holder, contract.Commitment, contract.Params.ExpiryHeight)
	require.NoError(t, err)
	prevOut := wire.NewTxOut(int64(contract.FundingValueSats()), output.PkScript)
	require.NoError(t, common.VerifySignatureSingleInput(tx, 0, prevOut))
}

func TestExecute_SecondSettlementRejected(t *testing.T) {
	env := newTestEnv(t)
	contract := env.createFundedCall(t)
	ctx := context.Background()

	first := env.proveAndSubmit(t, contract, 7_500_000, 200)
	second := env.proveAndSubmit(t, contract, 7_500_000, 200)

	_, err := env.engine.Execute(ctx, first)
	require.NoError(t, err)
	snapshotAfterFirst := env.pool.Snapshot()

	// The second request loses the race at the Active to Settled edge and no
	// pool balance moves again.
	_, err = env.engine.Execute(ctx, second)
	assert.ErrorIs(t, err, option.ErrAlreadySettled)
	assert.Equal(t, snapshotAfterFirst, env.pool.Snapshot())

	// A third request cannot even be opened.
	_, err = env.engine.CreateRequest(ctx, contract.ID, 7_500_000, 201)
	assert.ErrorIs(t, err, option.ErrNotActive)
}

func TestCreateRequest_Guards(t *testing.T) {
	env := newTestEnv(t)
	contract := env.createFundedCall(t)
	ctx := context.Background()

	_, err := env.engine.CreateRequest(ctx, contract.ID, 7_500_000, 199)
	assert.ErrorIs(t, err, ErrNotExpired)

	_, err = env.engine.CreateRequest(ctx, "no-such-contract", 7_500_000, 200)
	assert.ErrorIs(t, err, option.ErrContractNotFound)
}

func TestSubmitProof_Tampered(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*bitvmx.Proof)
		wantErr error
	}{
		{"inflated amount", func(p *bitvmx.Proof) { p.SettlementAmountSats++ }, ErrAmountMismatch},
		{"flipped moneyness", func(p *bitvmx.Proof) { p.IsITM = !p.IsITM }, ErrAmountMismatch},
		{"wrong commitment", func(p *bitvmx.Proof) { p.Commitment[0] ^= 1 }, ErrCommitmentMismatch},
		{"wrong option id", func(p *bitvmx.Proof) { p.OptionID = "other" }, ErrOptionIDMismatch},
		{"wrong spot", func(p *bitvmx.Proof) { p.SpotPrice++ }, ErrSpotMismatch},
		{"tampered payload", func(p *bitvmx.Proof) { p.ProofBytes[2] ^= 1 }, ErrAmountMismatch},
		{"truncated payload", func(p *bitvmx.Proof) { p.ProofBytes = p.ProofBytes[:4] }, bitvmx.ErrMalformedProof},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contract := env.createFundedCall(t)
			snapshotBefore := env.pool.Snapshot()

			request, err := env.engine.CreateRequest(ctx, contract.ID, 7_500_000, 200)
			require.NoError(t, err)

			proof, err := bitvmx.NewEmulatedGenerator().GenerateProof(ctx, bitvmx.ProofRequest{
				Contract: contract, SpotPrice: 7_500_000, BlockHeight: 200,
			})
			require.NoError(t, err)
			tt.mutate(proof)

			err = env.engine.SubmitProof(ctx, request.ID, proof)
			assert.ErrorIs(t, err, tt.wantErr)

			// Rejection is atomic: the request fails, the contract stays
			// active and the pool is untouched.
			failed, err := env.engine.Request(request.ID)
			require.NoError(t, err)
			assert.Equal(t, StatusFailed, failed.Status)
			assert.NotEmpty(t, failed.FailureReason)

			active, err := env.registry.Get(contract.ID)
			require.NoError(t, err)
			assert.Equal(t, option.Active, active.Status)
			assert.Equal(t, snapshotBefore, env.pool.Snapshot())

			// A failed request is terminal.
			honest, err := bitvmx.NewEmulatedGenerator().GenerateProof(ctx, bitvmx.ProofRequest{
				Contract: contract, SpotPrice: 7_500_000, BlockHeight: 200,
			})
			require.NoError(t, err)
			err = env.engine.SubmitProof(ctx, request.ID, honest)
			assert.ErrorIs(t, err, ErrInvalidRequestState)
		})
	}
}

func TestSubmitProof_UnknownRequest(t *testing.T) {
	env := newTestEnv(t)
	err := env.engine.SubmitProof(context.Background(), uuid.New(), &bitvmx.Proof{})
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestExecute_RequiresProof(t *testing.T) {
	env := newTestEnv(t)
	contract := env.createFundedCall(t)
	ctx := context.Background()

	request, err := env.engine.CreateRequest(ctx, contract.ID, 7_500_000, 200)
	require.NoError(t, err)

	_, err = env.engine.Execute(ctx, request.ID)
	assert.ErrorIs(t, err, ErrInvalidRequestState)
}

func TestExecute_RequiresFunding(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	contract, err := env.registry.Create(ctx, env.holder, option.Params{
		Kind:         option.Call,
		StrikePrice:  7_000_000,
		QuantitySats: 10_000_000,
		ExpiryHeight: 200,
		PremiumSats:  250_000,
	}, 100)
	require.NoError(t, err)

	requestID := env.proveAndSubmit(t, contract, 7_500_000, 200)
	_, err = env.engine.Execute(ctx, requestID)
	assert.ErrorIs(t, err, option.ErrNotFunded)
}

func TestBuildRefundTx(t *testing.T) {
	env := newTestEnv(t)
	contract := env.createFundedCall(t)

	output, err := ContractOutputFor(env.config, contract.Holder, contract.Commitment, contract.Params.ExpiryHeight)
	require.NoError(t, err)

	tx, err := BuildRefundTx(contract, output, env.config)
	require.NoError(t, err)

	assert.Equal(t, contract.Params.ExpiryHeight+env.config.GracePeriodBlocks, tx.LockTime)
	require.Len(t, tx.TxOut, 1)
	assert.Equal(t, int64(10_249_045), tx.TxOut[0].Value)

	// The refund path is fully signed by the pool key.
	prevOut := wire.NewTxOut(int64(contract.FundingValueSats()), output.PkScript)
	require.NoError(t, common.VerifySignatureSingleInput(tx, 0, prevOut))
}
