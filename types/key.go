package types

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

// PublicKeySize is the width of an Ed25519 verifying key.
const PublicKeySize = 32

// SignatureSize is the width of an Ed25519 signature.
const SignatureSize = 64

// AddressSize is the width of a derived account address.
const AddressSize = 20

// PublicKey is a 32-byte Ed25519 verifying key.
type PublicKey [PublicKeySize]byte

// Signature is a 64-byte Ed25519 signature.
type Signature [SignatureSize]byte

// Address is a 20-byte account identifier.
type Address [AddressSize]byte

func (a Address) String() string { return hex.EncodeToString(a[:]) }
func (a Address) IsZero() bool   { return a == Address{} }

// PublicKeyFromBytes copies b into a PublicKey.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeySize {
		return pk, fmt.Errorf("types: invalid public key length %d", len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

func (pk PublicKey) Bytes() []byte { return append([]byte(nil), pk[:]...) }
func (pk PublicKey) String() string { return hex.EncodeToString(pk[:]) }

// Address normalizes a public key into its 20-byte account address.
//
// The rule is total and deterministic (spec.md §3): if the trailing 12
// bytes of the public key are zero and the leading 20 are non-zero,
// the key IS an embedded account address (an EOA whose "key" is really
// just an address padded with zeros) and those 20 bytes are used
// as-is. Otherwise the address is derived as the last 20 bytes of
// Keccak-256(pubkey), matching the Ethereum-style EOA address scheme
// used at the RLP ingest edge.
func (pk PublicKey) Address() Address {
	trailingZero := true
	for _, b := range pk[20:] {
		if b != 0 {
			trailingZero = false
			break
		}
	}
	leadingNonZero := false
	for _, b := range pk[:20] {
		if b != 0 {
			leadingNonZero = true
			break
		}
	}
	if trailingZero && leadingNonZero {
		var a Address
		copy(a[:], pk[:20])
		return a
	}
	digest := Keccak256(pk[:])
	var a Address
	copy(a[:], digest[12:])
	return a
}

// Verify checks sig against message under pk.
func (pk PublicKey) Verify(message, sig []byte) bool {
	if len(sig) != SignatureSize {
		return false
	}
	return ed25519.Verify(pk[:], message, sig)
}

// SigningKey wraps an Ed25519 private key for signing transactions and
// block headers produced by this node (the proposer key, a mempool
// test key, or a devnet validator key).
type SigningKey struct {
	priv ed25519.PrivateKey
}

// GenerateSigningKey creates a fresh Ed25519 keypair.
func GenerateSigningKey() (SigningKey, error) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return SigningKey{}, err
	}
	return SigningKey{priv: priv}, nil
}

// SigningKeyFromSeed reconstructs a signing key from a 32-byte seed,
// e.g. one loaded from validator.key on disk.
func SigningKeyFromSeed(seed []byte) (SigningKey, error) {
	if len(seed) != ed25519.SeedSize {
		return SigningKey{}, fmt.Errorf("types: invalid seed length %d", len(seed))
	}
	return SigningKey{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

func (k SigningKey) Seed() []byte { return append([]byte(nil), k.priv.Seed()...) }

func (k SigningKey) PublicKey() PublicKey {
	var pk PublicKey
	copy(pk[:], k.priv.Public().(ed25519.PublicKey))
	return pk
}

func (k SigningKey) Sign(message []byte) Signature {
	var sig Signature
	copy(sig[:], ed25519.Sign(k.priv, message))
	return sig
}
