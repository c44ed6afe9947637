package keys

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// PublicKeyLength is the length of a compressed secp256k1 public key in bytes.
const PublicKeyLength = 33

// Public is a compressed secp256k1 public key. The zero value is not a valid
// key; construct one with ParsePublicKey or Private.Public. Public is
// comparable, so values can be used directly as map keys.
type Public struct {
	key [PublicKeyLength]byte
}

// ParsePublicKey parses a 33-byte compressed public key and validates that it
// is a point on the curve.
func ParsePublicKey(b []byte) (Public, error) {
	if len(b) != PublicKeyLength {
		return Public{}, fmt.Errorf("public key must be %d bytes, got %d", PublicKeyLength, len(b))
	}
	if _, err := secp256k1.ParsePubKey(b); err != nil {
		return Public{}, fmt.Errorf("invalid public key: %w", err)
	}
	var pub Public
	copy(pub.key[:], b)
	return pub, nil
}

// ParsePublicKeyHex parses a hex-encoded compressed public key.
func ParsePublicKeyHex(s string) (Public, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Public{}, fmt.Errorf("invalid public key hex: %w", err)
	}
	return ParsePublicKey(b)
}

// MustParsePublicKeyHex parses a hex-encoded compressed public key, panicking
// on failure. For tests and static configuration only.
func MustParsePublicKeyHex(s string) Public {
	pub, err := ParsePublicKeyHex(s)
	if err != nil {
		panic(err)
	}
	return pub
}

// Serialize returns the 33-byte compressed encoding.
func (p Public) Serialize() []byte {
	out := make([]byte, PublicKeyLength)
	copy(out, p.key[:])
	return out
}

// SerializeXOnly returns the 32-byte x-only encoding used in taproot scripts.
func (p Public) SerializeXOnly() []byte {
	out := make([]byte, PublicKeyLength-1)
	copy(out, p.key[1:])
	return out
}

// ToBTCEC converts the key to its btcec representation.
func (p Public) ToBTCEC() *btcec.PublicKey {
	key, err := btcec.ParsePubKey(p.key[:])
	if err != nil {
		// The bytes were validated at construction.
		panic(fmt.Sprintf("invalid public key %x: %v", p.key, err))
	}
	return key
}

// IsZero reports whether p is the zero value rather than a parsed key.
func (p Public) IsZero() bool {
	return p.key == [PublicKeyLength]byte{}
}

func (p Public) String() string {
	return hex.EncodeToString(p.key[:])
}

// Private is a secp256k1 private key.
type Private struct {
	key *secp256k1.PrivateKey
}

// GeneratePrivateKey returns a fresh random private key.
func GeneratePrivateKey() Private {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		panic(fmt.Sprintf("failed to generate private key: %v", err))
	}
	return Private{key: key}
}

// ParsePrivateKey parses a 32-byte private key.
func ParsePrivateKey(b []byte) (Private, error) {
	if len(b) != 32 {
		return Private{}, fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}
	key := secp256k1.PrivKeyFromBytes(b)
	if key.Key.IsZero() {
		return Private{}, fmt.Errorf("private key must not be zero")
	}
	return Private{key: key}, nil
}

// ParsePrivateKeyHex parses a hex-encoded private key.
func ParsePrivateKeyHex(s string) (Private, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Private{}, fmt.Errorf("invalid private key hex: %w", err)
	}
	return ParsePrivateKey(b)
}

// MustParsePrivateKeyHex parses a hex-encoded private key, panicking on
// failure. For tests and static configuration only.
func MustParsePrivateKeyHex(s string) Private {
	key, err := ParsePrivateKeyHex(s)
	if err != nil {
		panic(err)
	}
	return key
}

// Public returns the corresponding public key.
func (d Private) Public() Public {
	var pub Public
	copy(pub.key[:], d.key.PubKey().SerializeCompressed())
	return pub
}

// Serialize returns the 32-byte encoding.
func (d Private) Serialize() []byte {
	return d.key.Serialize()
}

// ToBTCEC converts the key to its btcec representation.
func (d Private) ToBTCEC() *btcec.PrivateKey {
	return d.key
}

// IsZero reports whether d is the zero value rather than a usable key.
func (d Private) IsZero() bool {
	return d.key == nil
}
