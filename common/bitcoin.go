package common

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/97woo/oraclevm/common/btcnetwork"
	"github.com/97woo/oraclevm/common/keys"
)

const (
	// estimatedTxSize is the estimated settlement transaction size in vbytes.
	estimatedTxSize = 191
	// DefaultSatsPerVbyte is the default fee rate in satoshis per vbyte.
	DefaultSatsPerVbyte = 5
	// DefaultFeeSats is the default fee in satoshis.
	DefaultFeeSats = estimatedTxSize * DefaultSatsPerVbyte

	// DustThresholdSats is the minimum output value to avoid dust rejection.
	DustThresholdSats = 546

	// MaxTxSize caps the size of transactions we are willing to deserialize.
	// Well above the standard 100KB limit, but keeps malformed input from
	// forcing large allocations.
	MaxTxSize = 400_000

	// MaxTxInputs and MaxTxOutputs are sanity caps on deserialized transactions.
	MaxTxInputs  = 10_000
	MaxTxOutputs = 10_000
)

// MaybeApplyFee deducts the default fee when the amount can bear it.
func MaybeApplyFee(amount int64) int64 {
	if amount > int64(DefaultFeeSats) {
		return amount - int64(DefaultFeeSats)
	}
	return amount
}

// P2TRScriptFromPubKey returns a key-path-only P2TR script for a public key.
func P2TRScriptFromPubKey(pubKey keys.Public) ([]byte, error) {
	taprootKey := txscript.ComputeTaprootKeyNoScript(pubKey.ToBTCEC())
	return txscript.PayToTaprootScript(taprootKey)
}

// P2TRAddressFromPublicKey returns a key-path-only P2TR address for a public key.
func P2TRAddressFromPublicKey(pubKey keys.Public, network btcnetwork.Network) (string, error) {
	taprootKey := txscript.ComputeTaprootKeyNoScript(pubKey.ToBTCEC())
	addr, err := btcutil.NewAddressTaproot(schnorr.SerializePubKey(taprootKey), network.Params())
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

// TxFromRawTxBytes returns a btcd MsgTx from raw tx bytes. The input size and
// the deserialized input/output counts are bounded before use.
func TxFromRawTxBytes(rawTxBytes []byte) (*wire.MsgTx, error) {
	if len(rawTxBytes) > MaxTxSize {
		return nil, fmt.Errorf("transaction size %d exceeds maximum allowed size %d", len(rawTxBytes), MaxTxSize)
	}

	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(rawTxBytes)); err != nil {
		return nil, err
	}
	if len(tx.TxIn) > MaxTxInputs {
		return nil, fmt.Errorf("input count %d exceeds maximum %d", len(tx.TxIn), MaxTxInputs)
	}
	if len(tx.TxOut) > MaxTxOutputs {
		return nil, fmt.Errorf("output count %d exceeds maximum %d", len(tx.TxOut), MaxTxOutputs)
	}
	return &tx, nil
}

// TxFromRawTxHex returns a btcd MsgTx from a raw tx hex.
func TxFromRawTxHex(rawTxHex string) (*wire.MsgTx, error) {
	txBytes, err := hex.DecodeString(rawTxHex)
	if err != nil {
		return nil, err
	}
	return TxFromRawTxBytes(txBytes)
}

// SerializeTx serializes a transaction including witness data.
func SerializeTx(tx *wire.MsgTx) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, tx.SerializeSize()))
	if err := tx.Serialize(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SerializeTxHex serializes a transaction to hex.
func SerializeTxHex(tx *wire.MsgTx) (string, error) {
	txBytes, err := SerializeTx(tx)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(txBytes), nil
}

// VerifySignatureSingleInput verifies that a signed transaction's input
// properly spends the prevOutput provided.
func VerifySignatureSingleInput(signedTx *wire.MsgTx, vin int, prevOutput *wire.TxOut) error {
	prevOutputFetcher := txscript.NewCannedPrevOutputFetcher(prevOutput.PkScript, prevOutput.Value)
	hashCache := txscript.NewTxSigHashes(signedTx, prevOutputFetcher)
	vm, err := txscript.NewEngine(prevOutput.PkScript, signedTx, vin, txscript.StandardVerifyFlags,
		nil, hashCache, prevOutput.Value, prevOutputFetcher)
	if err != nil {
		return err
	}
	return vm.Execute()
}
