package keys

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePublicKey_RoundTrip(t *testing.T) {
	pub := GeneratePrivateKey().Public()

	parsed, err := ParsePublicKey(pub.Serialize())
	require.NoError(t, err)
	assert.Equal(t, pub, parsed)

	fromHex, err := ParsePublicKeyHex(pub.String())
	require.NoError(t, err)
	assert.Equal(t, pub, fromHex)
}

func TestParsePublicKey_Invalid(t *testing.T) {
	_, err := ParsePublicKey([]byte{1, 2, 3})
	assert.Error(t, err)

	// Right length, not a curve point.
	notAPoint := make([]byte, PublicKeyLength)
	notAPoint[0] = 0x02
	_, err = ParsePublicKey(notAPoint)
	assert.Error(t, err)

	_, err = ParsePublicKeyHex("zz")
	assert.Error(t, err)
}

func TestSerializeXOnly(t *testing.T) {
	pub := GeneratePrivateKey().Public()
	xonly := pub.SerializeXOnly()
	assert.Len(t, xonly, 32)
	assert.Equal(t, pub.Serialize()[1:], xonly)
}

func TestPublicAsMapKey(t *testing.T) {
	alice := GeneratePrivateKey().Public()
	bob := GeneratePrivateKey().Public()

	m := map[Public]int{alice: 1, bob: 2}
	assert.Equal(t, 1, m[alice])

	reparsed, err := ParsePublicKey(alice.Serialize())
	require.NoError(t, err)
	assert.Equal(t, 1, m[reparsed])
}

func TestPrivateRoundTrip(t *testing.T) {
	priv := GeneratePrivateKey()

	parsed, err := ParsePrivateKey(priv.Serialize())
	require.NoError(t, err)
	assert.Equal(t, priv.Public(), parsed.Public())

	fromHex, err := ParsePrivateKeyHex(hex.EncodeToString(priv.Serialize()))
	require.NoError(t, err)
	assert.Equal(t, priv.Public(), fromHex.Public())
}

func TestParsePrivateKey_Invalid(t *testing.T) {
	_, err := ParsePrivateKey([]byte{1, 2, 3})
	assert.Error(t, err)

	_, err = ParsePrivateKey(make([]byte, 32))
	assert.Error(t, err)
}

func TestIsZero(t *testing.T) {
	assert.True(t, Public{}.IsZero())
	assert.True(t, Private{}.IsZero())
	assert.False(t, GeneratePrivateKey().IsZero())
	assert.False(t, GeneratePrivateKey().Public().IsZero())
}

func TestToBTCEC(t *testing.T) {
	priv := GeneratePrivateKey()
	assert.Equal(t, priv.Public().Serialize(), priv.ToBTCEC().PubKey().SerializeCompressed())
	assert.Equal(t, priv.Public().Serialize(), priv.Public().ToBTCEC().SerializeCompressed())
}
