package settlement

import (
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/97woo/oraclevm/common"
	"github.com/97woo/oraclevm/oe"
	"github.com/97woo/oraclevm/oe/bitvmx"
	"github.com/97woo/oraclevm/oe/option"
	"github.com/97woo/oraclevm/oe/script"
)

// BuildSettlementTx builds and partially signs the transaction spending a
// contract's funding output through the settlement leaf.
//
// An in-the-money settlement pays the holder and returns the remainder to the
// pool; out of the money everything minus the fee goes back to the pool. The
// verifier's signature is attached; for in-the-money settlements the holder's
// own signature slot is left empty for their wallet to fill before broadcast.
// Out-of-the-money claims are signed completely with the pool key.
func BuildSettlementTx(
	contract *option.Contract,
	output *script.ContractOutput,
	proof *bitvmx.Proof,
	config *oe.Config,
) (*wire.MsgTx, error) {
	outpoint, err := contract.FundingOutPoint()
	if err != nil {
		return nil, err
	}
	fundingValue := int64(contract.FundingValueSats())

	payoutScript, err := common.P2TRScriptFromPubKey(contract.Holder)
	if err != nil {
		return nil, fmt.Errorf("failed to build payout script: %w", err)
	}
	poolScript, err := common.P2TRScriptFromPubKey(config.PoolKey.Public())
	if err != nil {
		return nil, fmt.Errorf("failed to build pool script: %w", err)
	}

	tx := wire.NewMsgTx(2)
	// The settlement leaf is CLTV-gated at expiry; the locktime and a
	// non-final sequence make the timelock effective.
	tx.LockTime = contract.Params.ExpiryHeight
	txIn := wire.NewTxIn(outpoint, nil, nil)
	txIn.Sequence = wire.MaxTxInSequenceNum - 1
	tx.AddTxIn(txIn)

	payout := int64(proof.SettlementAmountSats)
	remainder := fundingValue - int64(common.DefaultFeeSats)
	if payout >= common.DustThresholdSats {
		tx.AddTxOut(wire.NewTxOut(payout, payoutScript))
		remainder -= payout
	}
	if remainder >= common.DustThresholdSats {
		tx.AddTxOut(wire.NewTxOut(remainder, poolScript))
	}
	if len(tx.TxOut) == 0 {
		return nil, fmt.Errorf("%w: funding %d, payout %d", ErrNoSpendableOutput, fundingValue, payout)
	}

	prevOutFetcher := txscript.NewCannedPrevOutputFetcher(output.PkScript, fundingValue)
	sigHashes := txscript.NewTxSigHashes(tx, prevOutFetcher)

	verifierSig, err := txscript.RawTxInTapscriptSignature(
		tx, sigHashes, 0, fundingValue, output.PkScript,
		output.Settlement.TapLeaf(), txscript.SigHashDefault,
		config.VerifierKey.ToBTCEC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to sign settlement leaf: %w", err)
	}

	var itmFlag []byte
	claimantSig := []byte{}
	if proof.IsITM {
		itmFlag = []byte{1}
	} else {
		// Out of the money the claimant branch selects the seller, so the
		// pool key completes the witness here.
		claimantSig, err = txscript.RawTxInTapscriptSignature(
			tx, sigHashes, 0, fundingValue, output.PkScript,
			output.Settlement.TapLeaf(), txscript.SigHashDefault,
			config.PoolKey.ToBTCEC(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to sign claimant slot: %w", err)
		}
	}

	preimage := bitvmx.CommitmentPreimage(contract.ID, contract.Params)
	tx.TxIn[0].Witness = wire.TxWitness{
		claimantSig,
		itmFlag,
		verifierSig,
		preimage,
		output.Settlement.Script,
		output.Settlement.ControlBlock,
	}
	return tx, nil
}

// BuildRefundTx builds and signs the seller's unilateral reclaim of a
// contract's funding output through the refund leaf, valid once the grace
// period after expiry has passed.
func BuildRefundTx(
	contract *option.Contract,
	output *script.ContractOutput,
	config *oe.Config,
) (*wire.MsgTx, error) {
	outpoint, err := contract.FundingOutPoint()
	if err != nil {
		return nil, err
	}
	fundingValue := int64(contract.FundingValueSats())

	poolScript, err := common.P2TRScriptFromPubKey(config.PoolKey.Public())
	if err != nil {
		return nil, fmt.Errorf("failed to build pool script: %w", err)
	}

	tx := wire.NewMsgTx(2)
	tx.LockTime = contract.Params.ExpiryHeight + config.GracePeriodBlocks
	txIn := wire.NewTxIn(outpoint, nil, nil)
	txIn.Sequence = wire.MaxTxInSequenceNum - 1
	tx.AddTxIn(txIn)

	refundValue := common.MaybeApplyFee(fundingValue)
	if refundValue < common.DustThresholdSats {
		return nil, fmt.Errorf("%w: funding %d", ErrNoSpendableOutput, fundingValue)
	}
	tx.AddTxOut(wire.NewTxOut(refundValue, poolScript))

	prevOutFetcher := txscript.NewCannedPrevOutputFetcher(output.PkScript, fundingValue)
	sigHashes := txscript.NewTxSigHashes(tx, prevOutFetcher)

	sellerSig, err := txscript.RawTxInTapscriptSignature(
		tx, sigHashes, 0, fundingValue, output.PkScript,
		output.Refund.TapLeaf(), txscript.SigHashDefault,
		config.PoolKey.ToBTCEC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refund leaf: %w", err)
	}

	tx.TxIn[0].Witness = wire.TxWitness{
		sellerSig,
		output.Refund.Script,
		output.Refund.ControlBlock,
	}
	return tx, nil
}
