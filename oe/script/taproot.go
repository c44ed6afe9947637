package script

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcec/v2/schnorr/musig2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/97woo/oraclevm/common/btcnetwork"
	"github.com/97woo/oraclevm/common/keys"
)

// Leaf is one spendable tapscript path of a contract output.
type Leaf struct {
	// Script is the raw tapscript.
	Script []byte
	// LeafHash is the tapleaf hash.
	LeafHash []byte
	// ControlBlock proves the leaf's inclusion under the output key.
	ControlBlock []byte
}

// TapLeaf returns the leaf in txscript form, for sighash computation.
func (l Leaf) TapLeaf() txscript.TapLeaf {
	return txscript.NewBaseTapLeaf(l.Script)
}

// ContractOutput contains everything needed to fund and later spend one
// option contract's taproot output.
type ContractOutput struct {
	// PkScript is the P2TR locking script.
	PkScript []byte
	// InternalKey is the MuSig2 aggregate of the buyer and seller keys. A
	// cooperative key-path close stays available to the two parties without
	// touching either script leaf.
	InternalKey *btcec.PublicKey
	// OutputKey is the taproot output key after the script tree tweak.
	OutputKey *btcec.PublicKey
	// Settlement is the proof-gated settlement path.
	Settlement Leaf
	// Refund is the seller's post-grace timeout path.
	Refund Leaf
}

// Address encodes the output's P2TR address for the given network.
func (o *ContractOutput) Address(network btcnetwork.Network) (string, error) {
	addr, err := btcutil.NewAddressTaproot(schnorr.SerializePubKey(o.OutputKey), network.Params())
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

// BuildContractOutput assembles the two-leaf taproot output locking an option
// contract's collateral and premium.
//
// Settlement leaf, spendable at expiry with the verifier's attestation:
//
//	<expiry> OP_CLTV OP_DROP
//	OP_SHA256 <commitment> OP_EQUALVERIFY
//	<verifier_xonly> OP_CHECKSIGVERIFY
//	OP_IF <buyer_xonly> OP_ELSE <seller_xonly> OP_ENDIF OP_CHECKSIG
//
// Refund leaf, the seller's unilateral fallback once the grace period after
// expiry has passed without settlement:
//
//	<expiry+grace> OP_CLTV OP_DROP <seller_xonly> OP_CHECKSIG
func BuildContractOutput(
	buyer, seller, verifier keys.Public,
	commitment [32]byte,
	expiryHeight, gracePeriodBlocks uint32,
) (*ContractOutput, error) {
	if buyer.IsZero() || seller.IsZero() || verifier.IsZero() {
		return nil, ErrMissingKey
	}

	settlementScript, err := txscript.NewScriptBuilder().
		AddInt64(int64(expiryHeight)).
		AddOp(txscript.OP_CHECKLOCKTIMEVERIFY).
		AddOp(txscript.OP_DROP).
		AddOp(txscript.OP_SHA256).
		AddData(commitment[:]).
		AddOp(txscript.OP_EQUALVERIFY).
		AddData(verifier.SerializeXOnly()).
		AddOp(txscript.OP_CHECKSIGVERIFY).
		AddOp(txscript.OP_IF).
		AddData(buyer.SerializeXOnly()).
		AddOp(txscript.OP_ELSE).
		AddData(seller.SerializeXOnly()).
		AddOp(txscript.OP_ENDIF).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	if err != nil {
		return nil, fmt.Errorf("failed to build settlement script: %w", err)
	}

	refundScript, err := txscript.NewScriptBuilder().
		AddInt64(int64(expiryHeight + gracePeriodBlocks)).
		AddOp(txscript.OP_CHECKLOCKTIMEVERIFY).
		AddOp(txscript.OP_DROP).
		AddData(seller.SerializeXOnly()).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	if err != nil {
		return nil, fmt.Errorf("failed to build refund script: %w", err)
	}

	internalKey, err := aggregateInternalKey(buyer, seller)
	if err != nil {
		return nil, err
	}

	settlementLeaf := txscript.NewBaseTapLeaf(settlementScript)
	refundLeaf := txscript.NewBaseTapLeaf(refundScript)
	tree := txscript.AssembleTaprootScriptTree(settlementLeaf, refundLeaf)

	rootHash := tree.RootNode.TapHash()
	outputKey := txscript.ComputeTaprootOutputKey(internalKey, rootHash[:])
	pkScript, err := txscript.PayToTaprootScript(outputKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build pkscript: %w", err)
	}

	settlement, err := leafFromTree(tree, settlementLeaf, internalKey)
	if err != nil {
		return nil, err
	}
	refund, err := leafFromTree(tree, refundLeaf, internalKey)
	if err != nil {
		return nil, err
	}

	return &ContractOutput{
		PkScript:    pkScript,
		InternalKey: internalKey,
		OutputKey:   outputKey,
		Settlement:  settlement,
		Refund:      refund,
	}, nil
}

// aggregateInternalKey combines the buyer and seller keys into the taproot
// internal key so neither party alone controls the key path.
func aggregateInternalKey(buyer, seller keys.Public) (*btcec.PublicKey, error) {
	// AggregateKeys sorts the key set itself, so the result is independent of
	// participant order.
	aggregate, _, _, err := musig2.AggregateKeys(
		[]*btcec.PublicKey{buyer.ToBTCEC(), seller.ToBTCEC()}, true)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate internal key: %w", err)
	}
	return aggregate.FinalKey, nil
}

func leafFromTree(tree *txscript.IndexedTapScriptTree, leaf txscript.TapLeaf, internalKey *btcec.PublicKey) (Leaf, error) {
	leafHash := leaf.TapHash()
	proofIndex, ok := tree.LeafProofIndex[leafHash]
	if !ok {
		return Leaf{}, ErrLeafNotFound
	}

	controlBlock := tree.LeafMerkleProofs[proofIndex].ToControlBlock(internalKey)
	controlBlockBytes, err := controlBlock.ToBytes()
	if err != nil {
		return Leaf{}, fmt.Errorf("failed to serialize control block: %w", err)
	}

	return Leaf{
		Script:       leaf.Script,
		LeafHash:     leafHash[:],
		ControlBlock: controlBlockBytes,
	}, nil
}
