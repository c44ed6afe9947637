package bitvmx

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/97woo/oraclevm/oe/option"
)

// ProgramID identifies the settlement verification program the commitment
// binds to. Bump the version suffix when the program's semantics change.
const ProgramID = "option-settlement-v1"

// commitmentTag domain-separates settlement commitments from any other
// tagged hash in the wider ecosystem, following the BIP-340 tagged hash
// construction.
const commitmentTag = "OracleVM/SettlementCommitment"

// CommitmentPreimage returns the deterministic byte encoding of a contract's
// settlement program parameters. Its SHA256 is the on-chain commitment, so
// the preimage itself is what a settlement witness reveals to prove the spend
// targets this exact contract.
func CommitmentPreimage(optionID string, params option.Params) []byte {
	tagHash := sha256.Sum256([]byte(commitmentTag))

	buf := make([]byte, 0, 2*len(tagHash)+len(ProgramID)+len(optionID)+29)
	buf = append(buf, tagHash[:]...)
	buf = append(buf, tagHash[:]...)
	buf = appendLengthPrefixed(buf, []byte(ProgramID))
	buf = appendLengthPrefixed(buf, []byte(optionID))
	buf = append(buf, byte(params.Kind))
	buf = binary.LittleEndian.AppendUint64(buf, params.StrikePrice)
	buf = binary.LittleEndian.AppendUint64(buf, params.QuantitySats)
	buf = binary.LittleEndian.AppendUint32(buf, params.ExpiryHeight)
	buf = binary.LittleEndian.AppendUint64(buf, params.PremiumSats)
	return buf
}

// ComputeCommitment derives the 32-byte settlement program commitment for a
// contract. Contracts with different ids or terms always commit differently.
func ComputeCommitment(optionID string, params option.Params) [32]byte {
	return sha256.Sum256(CommitmentPreimage(optionID, params))
}

func appendLengthPrefixed(buf, data []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}
