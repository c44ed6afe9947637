package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/97woo/oraclevm/common/btcnetwork"
)

type fakeClient struct {
	height    int64
	heightErr error
	sendErr   error
	sent      []*wire.MsgTx
	txOut     *btcjson.GetTxOutResult
	txOutErr  error
}

func (c *fakeClient) SendRawTransaction(tx *wire.MsgTx, _ bool) (*chainhash.Hash, error) {
	if c.sendErr != nil {
		return nil, c.sendErr
	}
	c.sent = append(c.sent, tx)
	hash := tx.TxHash()
	return &hash, nil
}

func (c *fakeClient) GetBlockCount() (int64, error) {
	return c.height, c.heightErr
}

func (c *fakeClient) GetTxOut(*chainhash.Hash, uint32, bool) (*btcjson.GetTxOutResult, error) {
	return c.txOut, c.txOutErr
}

func TestCurrentHeight(t *testing.T) {
	height, err := CurrentHeight(&fakeClient{height: 850_000})
	require.NoError(t, err)
	assert.Equal(t, uint32(850_000), height)

	_, err = CurrentHeight(&fakeClient{heightErr: errors.New("connection refused")})
	assert.Error(t, err)
}

func TestBroadcastTransaction(t *testing.T) {
	client := &fakeClient{}
	err := BroadcastTransaction(context.Background(), client, btcnetwork.Regtest, "opt-1", wire.NewMsgTx(2))
	require.NoError(t, err)
	assert.Len(t, client.sent, 1)
}

func TestBroadcastTransaction_AlreadyKnown(t *testing.T) {
	client := &fakeClient{sendErr: &btcjson.RPCError{Code: btcjson.ErrRPCVerifyAlreadyInChain}}
	err := BroadcastTransaction(context.Background(), client, btcnetwork.Regtest, "opt-1", wire.NewMsgTx(2))
	assert.NoError(t, err)
}

func TestBroadcastTransaction_Failure(t *testing.T) {
	client := &fakeClient{sendErr: &btcjson.RPCError{Code: btcjson.ErrRPCTxRejected}}
	err := BroadcastTransaction(context.Background(), client, btcnetwork.Regtest, "opt-1", wire.NewMsgTx(2))
	assert.Error(t, err)
}

func TestFindFundingOutput(t *testing.T) {
	txid := "aa00000000000000000000000000000000000000000000000000000000000001"
	address := "bcrt1pexample"

	client := &fakeClient{txOut: &btcjson.GetTxOutResult{
		Value: 0.1025, // 10,250,000 sats
		ScriptPubKey: btcjson.ScriptPubKeyResult{
			Address: address,
		},
	}}

	found, err := FindFundingOutput(client, txid, 0, address, 10_250_000)
	require.NoError(t, err)
	assert.True(t, found)

	// Spent or unknown outputs are not an error, just absent.
	found, err = FindFundingOutput(&fakeClient{}, txid, 0, address, 10_250_000)
	require.NoError(t, err)
	assert.False(t, found)

	// Underfunded outputs are flagged.
	_, err = FindFundingOutput(client, txid, 0, address, 10_250_001)
	assert.Error(t, err)

	// Wrong destination is flagged.
	_, err = FindFundingOutput(client, txid, 0, "bcrt1pother", 10_250_000)
	assert.Error(t, err)

	_, err = FindFundingOutput(client, "not-a-txid", 0, address, 1)
	assert.Error(t, err)
}
