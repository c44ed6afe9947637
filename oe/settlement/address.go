package settlement

import (
	"github.com/97woo/oraclevm/common/keys"
	"github.com/97woo/oraclevm/oe"
	"github.com/97woo/oraclevm/oe/option"
	"github.com/97woo/oraclevm/oe/script"
)

// ContractOutputFor rebuilds a contract's taproot output from its terms and
// this deployment's pool and verifier keys.
func ContractOutputFor(config *oe.Config, holder keys.Public, commitment [32]byte, expiryHeight uint32) (*script.ContractOutput, error) {
	return script.BuildContractOutput(
		holder,
		config.PoolKey.Public(),
		config.VerifierKey.Public(),
		commitment,
		expiryHeight,
		config.GracePeriodBlocks,
	)
}

// ContractAddressFunc returns the registry's address derivation bound to this
// deployment's keys and network.
func ContractAddressFunc(config *oe.Config) option.AddressFunc {
	return func(holder keys.Public, commitment [32]byte, expiryHeight uint32) (string, error) {
		output, err := ContractOutputFor(config, holder, commitment, expiryHeight)
		if err != nil {
			return "", err
		}
		return output.Address(config.Network)
	}
}
