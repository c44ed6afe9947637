package task

import (
	"context"
	"fmt"

	"github.com/97woo/oraclevm/common/logging"
	"github.com/97woo/oraclevm/oe"
	"github.com/97woo/oraclevm/oe/archive"
	"github.com/97woo/oraclevm/oe/bitvmx"
	"github.com/97woo/oraclevm/oe/chain"
	"github.com/97woo/oraclevm/oe/option"
	"github.com/97woo/oraclevm/oe/pool"
	"github.com/97woo/oraclevm/oe/pricefeed"
	"github.com/97woo/oraclevm/oe/settlement"
	"go.uber.org/zap"
)

// Sweeper walks expired contracts through the full settlement pipeline:
// price, prove, validate, execute and broadcast. Failures on one contract are
// logged and do not block the rest of the sweep.
type Sweeper struct {
	config    *oe.Config
	engine    *settlement.Engine
	registry  *option.Registry
	pool      *pool.Pool
	feed      pricefeed.Feed
	generator bitvmx.ProofGenerator
	client    chain.BitcoinClient
	archive   *archive.Archive
}

// NewSweeper wires the settlement sweep. The archive may be nil.
func NewSweeper(
	config *oe.Config,
	engine *settlement.Engine,
	registry *option.Registry,
	pool *pool.Pool,
	feed pricefeed.Feed,
	generator bitvmx.ProofGenerator,
	client chain.BitcoinClient,
	archive *archive.Archive,
) *Sweeper {
	return &Sweeper{
		config:    config,
		engine:    engine,
		registry:  registry,
		pool:      pool,
		feed:      feed,
		generator: generator,
		client:    client,
		archive:   archive,
	}
}

// SettleExpired settles every funded, expired, still-active contract at the
// current spot price.
func (s *Sweeper) SettleExpired(ctx context.Context) error {
	logger := logging.GetLoggerFromContext(ctx)

	height, err := chain.CurrentHeight(s.client)
	if err != nil {
		return err
	}
	expired := s.registry.Expired(height)
	if len(expired) == 0 {
		return nil
	}

	quote, err := s.feed.Spot(ctx)
	if err != nil {
		return fmt.Errorf("cannot settle without a spot price: %w", err)
	}
	logger.Sugar().Infof("Settling %d expired contracts at height %d, spot %d (%s)",
		len(expired), height, quote.PriceUnits, quote.Source)

	for _, contract := range expired {
		if !contract.Funded {
			logger.Debug("Skipping unfunded expired contract", zap.String("option_id", contract.ID))
			continue
		}
		if err := s.settleOne(ctx, contract, quote.PriceUnits, height); err != nil {
			logger.With(zap.Error(err)).Sugar().Warnf("Failed to settle option %s", contract.ID)
		}
	}
	return nil
}

func (s *Sweeper) settleOne(ctx context.Context, contract *option.Contract, spotPrice uint64, height uint32) error {
	request, err := s.engine.CreateRequest(ctx, contract.ID, spotPrice, height)
	if err != nil {
		return err
	}

	proof, err := s.generator.GenerateProof(ctx, bitvmx.ProofRequest{
		Contract:    contract,
		SpotPrice:   spotPrice,
		BlockHeight: height,
	})
	if err != nil {
		return fmt.Errorf("proof generation failed for option %s: %w", contract.ID, err)
	}
	if err := s.engine.SubmitProof(ctx, request.ID, proof); err != nil {
		return err
	}

	tx, err := s.engine.Execute(ctx, request.ID)
	if err != nil {
		return err
	}

	// Only the fully signed out-of-the-money claim can go out from here. The
	// in-the-money transaction carries an unsigned claimant slot, so the
	// holder's wallet completes and broadcasts it.
	if proof.IsITM {
		logging.GetLoggerFromContext(ctx).Sugar().Infof(
			"Settled option %s in the money; claim transaction %s awaits the holder signature",
			contract.ID, tx.TxID())
	} else if err := chain.BroadcastTransaction(ctx, s.client, s.config.Network, contract.ID, tx); err != nil {
		return err
	}

	if s.archive != nil {
		if err := s.archive.Put(contract, spotPrice, proof.SettlementAmountSats, tx.TxID()); err != nil {
			logging.GetLoggerFromContext(ctx).With(zap.Error(err)).Sugar().
				Warnf("Failed to archive settled option %s", contract.ID)
		}
	}
	return nil
}

// SweepRefunds reclaims funded contracts still active past their grace
// period. Settlement never happened for these, so the full funding output
// returns to the pool through the refund leaf.
func (s *Sweeper) SweepRefunds(ctx context.Context) error {
	logger := logging.GetLoggerFromContext(ctx)

	height, err := chain.CurrentHeight(s.client)
	if err != nil {
		return err
	}

	for _, contract := range s.registry.Expired(height) {
		if !contract.Funded || height < contract.Params.ExpiryHeight+s.config.GracePeriodBlocks {
			continue
		}
		if err := s.refundOne(ctx, contract, height); err != nil {
			logger.With(zap.Error(err)).Sugar().Warnf("Failed to refund option %s", contract.ID)
		}
	}
	return nil
}

func (s *Sweeper) refundOne(ctx context.Context, contract *option.Contract, height uint32) error {
	output, err := settlement.ContractOutputFor(s.config, contract.Holder, contract.Commitment, contract.Params.ExpiryHeight)
	if err != nil {
		return err
	}
	tx, err := settlement.BuildRefundTx(contract, output, s.config)
	if err != nil {
		return err
	}

	// Commit the close before broadcasting, mirroring the settle path: once a
	// refund transaction is in flight no conflicting settlement may commit.
	// The refund returns everything to the pool, so the contract closes with
	// a zero payout.
	if err := s.registry.MarkSettled(contract.ID); err != nil {
		return err
	}
	if err := s.pool.Settle(contract.ID, contract.CollateralSats, 0, height); err != nil {
		return err
	}
	if err := chain.BroadcastTransaction(ctx, s.client, s.config.Network, contract.ID, tx); err != nil {
		return err
	}
	if s.archive != nil {
		if err := s.archive.Put(contract, 0, 0, tx.TxID()); err != nil {
			logging.GetLoggerFromContext(ctx).With(zap.Error(err)).Sugar().
				Warnf("Failed to archive refunded option %s", contract.ID)
		}
	}

	logging.GetLoggerFromContext(ctx).Sugar().Infof(
		"Reclaimed unsettled option %s via refund path (txid: %s)", contract.ID, tx.TxID())
	return nil
}
