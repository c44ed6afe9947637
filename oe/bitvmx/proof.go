package bitvmx

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/97woo/oraclevm/oe/option"
)

// proofEncodingVersion is the version byte prefixing encoded proof payloads.
const proofEncodingVersion = 1

// ErrMalformedProof is returned when a proof payload cannot be decoded.
var ErrMalformedProof = errors.New("malformed proof payload")

// Proof is a settlement proof produced by the off-chain verification program.
// Everything here is untrusted input until the settlement engine has
// re-derived and byte-compared it against the contract's own terms.
type Proof struct {
	// OptionID is the contract the proof claims to settle.
	OptionID string
	// SpotPrice is the spot price the program executed against, in price units.
	SpotPrice uint64
	// IsITM is the program's moneyness verdict.
	IsITM bool
	// SettlementAmountSats is the program's computed payout.
	SettlementAmountSats uint64
	// ProofBytes is the opaque execution trace payload.
	ProofBytes []byte
	// Commitment is the program commitment the proof claims to bind to.
	Commitment [32]byte
	// BlockHeight is the chain height the proof was produced at.
	BlockHeight uint32
}

// EncodePayload serializes the proof's claim fields into the opaque payload
// format carried in ProofBytes.
func EncodePayload(kind option.Kind, strikePrice, spotPrice, settlementAmountSats uint64) []byte {
	buf := make([]byte, 0, 26)
	buf = append(buf, proofEncodingVersion, byte(kind))
	buf = binary.LittleEndian.AppendUint64(buf, strikePrice)
	buf = binary.LittleEndian.AppendUint64(buf, spotPrice)
	buf = binary.LittleEndian.AppendUint64(buf, settlementAmountSats)
	return buf
}

// DecodePayload parses a proof payload produced by EncodePayload.
func DecodePayload(payload []byte) (kind option.Kind, strikePrice, spotPrice, settlementAmountSats uint64, err error) {
	if len(payload) != 26 {
		return 0, 0, 0, 0, fmt.Errorf("%w: %d bytes", ErrMalformedProof, len(payload))
	}
	if payload[0] != proofEncodingVersion {
		return 0, 0, 0, 0, fmt.Errorf("%w: unknown version %d", ErrMalformedProof, payload[0])
	}
	kind = option.Kind(payload[1])
	strikePrice = binary.LittleEndian.Uint64(payload[2:10])
	spotPrice = binary.LittleEndian.Uint64(payload[10:18])
	settlementAmountSats = binary.LittleEndian.Uint64(payload[18:26])
	return kind, strikePrice, spotPrice, settlementAmountSats, nil
}
