package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"github.com/97woo/oraclevm/common/btcnetwork"
	"github.com/97woo/oraclevm/common/logging"
	"github.com/97woo/oraclevm/oe"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

var (
	meter = otel.Meter("chain")

	// Metrics
	txBroadcastCounter metric.Int64Counter
)

func init() {
	var err error

	txBroadcastCounter, err = meter.Int64Counter(
		"chain.tx.broadcast_total",
		metric.WithDescription("Total number of settlement transactions broadcast"),
	)
	if err != nil {
		otel.Handle(err)
		txBroadcastCounter = noop.Int64Counter{}
	}
}

// BitcoinClient is the slice of the bitcoind RPC surface the engine uses.
type BitcoinClient interface {
	SendRawTransaction(tx *wire.MsgTx, allowHighFees bool) (*chainhash.Hash, error)
	GetBlockCount() (int64, error)
	GetTxOut(txHash *chainhash.Hash, index uint32, mempool bool) (*btcjson.GetTxOutResult, error)
}

// NewRPCClient connects to bitcoind over HTTP POST RPC.
func NewRPCClient(config oe.BitcoindConfig) (*rpcclient.Client, error) {
	return rpcclient.New(&rpcclient.ConnConfig{
		Host:         config.Host,
		User:         config.User,
		Pass:         config.Password,
		HTTPPostMode: true,
		DisableTLS:   true,
	}, nil)
}

// CurrentHeight returns the chain tip height.
func CurrentHeight(client BitcoinClient) (uint32, error) {
	height, err := client.GetBlockCount()
	if err != nil {
		return 0, fmt.Errorf("failed to query block count: %w", err)
	}
	if height < 0 {
		return 0, fmt.Errorf("invalid block count: %d", height)
	}
	return uint32(height), nil
}

// BroadcastTransaction broadcasts a settlement or refund transaction for a
// contract. A transaction that is already known to the network counts as
// success.
func BroadcastTransaction(ctx context.Context, client BitcoinClient, network btcnetwork.Network, optionID string, tx *wire.MsgTx) error {
	logger := logging.GetLoggerFromContext(ctx)

	logger.Sugar().Infof("Attempting to broadcast transaction with txid %s for option %s", tx.TxID(), optionID)
	txHash, err := client.SendRawTransaction(tx, false)
	if err != nil {
		if alreadyBroadcasted(err) {
			logger.Sugar().Infof("Transaction %s already in mempool for option %s", tx.TxID(), optionID)
			return nil
		}
		txBroadcastCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("network", network.String()),
			attribute.String("result", "failure"),
		))
		return fmt.Errorf("failed to broadcast transaction for option %s: %w", optionID, err)
	}

	txBroadcastCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("network", network.String()),
		attribute.String("result", "success"),
	))
	logger.Sugar().Infof("Successfully broadcast transaction for option %s (txhash: %x)", optionID, txHash[:])
	return nil
}

// alreadyBroadcasted returns true if the error indicates the transaction is
// already known to the chain.
func alreadyBroadcasted(err error) bool {
	var rpcErr *btcjson.RPCError

	return errors.As(err, &rpcErr) && rpcErr.Code == btcjson.ErrRPCVerifyAlreadyInChain
}

// FindFundingOutput looks up the given outpoint and verifies it funds the
// expected address with at least the expected value. Returns false without
// error when the output does not exist or is already spent.
func FindFundingOutput(client BitcoinClient, fundingTxID string, vout uint32, expectedAddress string, expectedValueSats uint64) (bool, error) {
	txHash, err := chainhash.NewHashFromStr(fundingTxID)
	if err != nil {
		return false, fmt.Errorf("invalid funding txid %s: %w", fundingTxID, err)
	}

	txOut, err := client.GetTxOut(txHash, vout, true)
	if err != nil {
		return false, fmt.Errorf("failed to query funding output %s:%d: %w", fundingTxID, vout, err)
	}
	if txOut == nil {
		return false, nil
	}

	amount, err := btcutil.NewAmount(txOut.Value)
	if err != nil {
		return false, fmt.Errorf("invalid funding output value %f: %w", txOut.Value, err)
	}
	valueSats := uint64(amount)
	if valueSats < expectedValueSats {
		return false, fmt.Errorf("funding output %s:%d value %d below expected %d",
			fundingTxID, vout, valueSats, expectedValueSats)
	}
	if len(txOut.ScriptPubKey.Address) > 0 && txOut.ScriptPubKey.Address != expectedAddress {
		return false, fmt.Errorf("funding output %s:%d pays %s, expected %s",
			fundingTxID, vout, txOut.ScriptPubKey.Address, expectedAddress)
	}
	return true, nil
}
