package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressEmbedded(t *testing.T) {
	var pk PublicKey
	for i := 0; i < 20; i++ {
		pk[i] = byte(i + 1)
	}
	// trailing 12 bytes are already zero
	addr := pk.Address()
	require.Equal(t, pk[:20], addr[:])
}

func TestAddressDerived(t *testing.T) {
	key, err := GenerateSigningKey()
	require.NoError(t, err)
	pk := key.PublicKey()

	addr := pk.Address()
	expected := Keccak256(pk[:])
	require.Equal(t, expected[12:], addr[:])
}

func TestAddressAllZeroIsDerived(t *testing.T) {
	// An all-zero key has trailing-zero bytes but no non-zero leading
	// byte, so it must fall through to the derived path rather than
	// being treated as the embedded zero address by accident.
	var pk PublicKey
	addr := pk.Address()
	expected := Keccak256(pk[:])
	require.Equal(t, expected[12:], addr[:])
}
