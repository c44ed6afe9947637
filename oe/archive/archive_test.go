package archive

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/97woo/oraclevm/common/keys"
	"github.com/97woo/oraclevm/oe/option"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func testContract(id string) *option.Contract {
	params := option.Params{
		Kind:         option.Call,
		StrikePrice:  7_000_000,
		QuantitySats: 10_000_000,
		ExpiryHeight: 200,
		PremiumSats:  250_000,
	}
	return &option.Contract{
		ID:             id,
		Params:         params,
		Status:         option.Settled,
		Holder:         keys.GeneratePrivateKey().Public(),
		Address:        "bcrt1pexample",
		CollateralSats: option.CollateralFor(params),
	}
}

func TestPutGet(t *testing.T) {
	a := openTestArchive(t)
	contract := testContract("opt-1")

	require.NoError(t, a.Put(contract, 7_500_000, 666_666, "txid-1"))

	record, err := a.Get("opt-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "opt-1", record.OptionID)
	assert.Equal(t, "CALL", record.Kind)
	assert.Equal(t, uint64(666_666), record.SettlementAmountSats)
	assert.Equal(t, uint64(7_500_000), record.SpotPrice)
	assert.Equal(t, "txid-1", record.SettlementTxID)
	assert.Equal(t, contract.Holder.String(), record.Holder)
	assert.False(t, record.SettledAt.IsZero())
}

func TestGet_Missing(t *testing.T) {
	a := openTestArchive(t)
	record, err := a.Get("no-such-option")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestList(t *testing.T) {
	a := openTestArchive(t)
	require.NoError(t, a.Put(testContract("opt-1"), 7_500_000, 666_666, "txid-1"))
	require.NoError(t, a.Put(testContract("opt-2"), 6_500_000, 0, "txid-2"))

	records, err := a.List()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")

	a, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, a.Put(testContract("opt-1"), 7_500_000, 666_666, "txid-1"))
	require.NoError(t, a.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	record, err := reopened.Get("opt-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, uint64(666_666), record.SettlementAmountSats)
}
