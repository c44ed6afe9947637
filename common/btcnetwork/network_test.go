package btcnetwork

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromString(t *testing.T) {
	tests := []struct {
		input string
		want  Network
	}{
		{"MAINNET", Mainnet},
		{"mainnet", Mainnet},
		{"Regtest", Regtest},
		{"TESTNET", Testnet},
		{"signet", Signet},
	}
	for _, tt := range tests {
		got, err := FromString(tt.input)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestFromString_Invalid(t *testing.T) {
	_, err := FromString("litecoin")
	assert.Error(t, err)
}

func TestParams(t *testing.T) {
	assert.Equal(t, &chaincfg.MainNetParams, Mainnet.Params())
	assert.Equal(t, &chaincfg.RegressionNetParams, Regtest.Params())
	assert.Equal(t, &chaincfg.TestNet3Params, Testnet.Params())
	assert.Equal(t, &chaincfg.SigNetParams, Signet.Params())
}

func TestStringRoundTrip(t *testing.T) {
	for _, n := range []Network{Mainnet, Regtest, Testnet, Signet} {
		parsed, err := FromString(n.String())
		require.NoError(t, err)
		assert.Equal(t, n, parsed)
	}
}
