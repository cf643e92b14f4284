package types

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// HashSize is the number of bytes in a Hash.
const HashSize = 32

// Hash is a 32-byte opaque identifier for blocks and transactions. The
// zero value denotes "absent" (a pre-genesis parent, no code, no
// storage root, etc).
type Hash [HashSize]byte

// ZeroHash is the hash whose bytes are all zero.
var ZeroHash Hash

// HashFromBytes copies b into a new Hash. It panics if b is not
// exactly HashSize bytes long, mirroring the teacher's from_bytes
// contract of always operating on full-width slices.
func HashFromBytes(b []byte) Hash {
	var h Hash
	if len(b) != HashSize {
		panic(fmt.Sprintf("types: hash must be %d bytes, got %d", HashSize, len(b)))
	}
	copy(h[:], b)
	return h
}

// HashFromHex decodes a hex string into a Hash.
func HashFromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, err
	}
	if len(b) != HashSize {
		return Hash{}, fmt.Errorf("types: invalid hash length %d", len(b))
	}
	return HashFromBytes(b), nil
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// Bytes returns a copy of h's underlying bytes.
func (h Hash) Bytes() []byte {
	out := make([]byte, HashSize)
	copy(out, h[:])
	return out
}

// String returns the full lowercase hex encoding of h.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// ShortString returns an 8-character prefix, useful in log lines.
func (h Hash) ShortString() string {
	s := h.String()
	return s[:8]
}

// Less reports whether h sorts before other, used as the deterministic
// tie-break across the DAG engine (GhostDag selected-parent choice,
// mergeset sort).
func (h Hash) Less(other Hash) bool {
	return bytes.Compare(h[:], other[:]) < 0
}

// Keccak256 hashes data with Keccak-256 (NOT SHA3-256 — the original
// unpadded Keccak variant, as used throughout the Ethereum-compatible
// edge of this system for addresses, tx hashes and trie roots).
func Keccak256(data ...[]byte) Hash {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out Hash
	h.Sum(out[:0])
	return out
}

// HashSlice is a list of hashes, kept sorted for deterministic
// iteration where the spec requires it (e.g. tx_root concatenation
// order is block order, not sorted — callers must not call Sort()
// where ordering is semantically meaningful).
type HashSlice []Hash

func (s HashSlice) Len() int           { return len(s) }
func (s HashSlice) Less(i, j int) bool { return s[i].Less(s[j]) }
func (s HashSlice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
