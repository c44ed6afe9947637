package bitvmx

import (
	"context"

	"github.com/97woo/oraclevm/common/logging"
	"github.com/97woo/oraclevm/oe/option"
	"go.uber.org/zap"
)

// ProofRequest asks a generator to produce a settlement proof for one
// contract at one spot price.
type ProofRequest struct {
	Contract    *option.Contract
	SpotPrice   uint64
	BlockHeight uint32
}

// ProofGenerator produces settlement proofs. Implementations may run the
// verification program locally or hand off to external prover infrastructure.
type ProofGenerator interface {
	GenerateProof(ctx context.Context, req ProofRequest) (*Proof, error)
}

// EmulatedGenerator runs the settlement program in-process. It produces
// honest proofs from the contract's own terms, suitable for development and
// regtest deployments where no prover network is available.
type EmulatedGenerator struct{}

// NewEmulatedGenerator returns an in-process proof generator.
func NewEmulatedGenerator() *EmulatedGenerator {
	return &EmulatedGenerator{}
}

func (g *EmulatedGenerator) GenerateProof(ctx context.Context, req ProofRequest) (*Proof, error) {
	contract := req.Contract
	amount := contract.SettlementAmount(req.SpotPrice)

	proof := &Proof{
		OptionID:             contract.ID,
		SpotPrice:            req.SpotPrice,
		IsITM:                contract.IsInTheMoney(req.SpotPrice),
		SettlementAmountSats: amount,
		ProofBytes:           EncodePayload(contract.Params.Kind, contract.Params.StrikePrice, req.SpotPrice, amount),
		Commitment:           ComputeCommitment(contract.ID, contract.Params),
		BlockHeight:          req.BlockHeight,
	}

	logging.GetLoggerFromContext(ctx).Debug(
		"Generated settlement proof",
		zap.String("option_id", contract.ID),
		zap.Uint64("spot_price", req.SpotPrice),
		zap.Bool("is_itm", proof.IsITM),
		zap.Uint64("settlement_amount", amount),
	)
	return proof, nil
}
