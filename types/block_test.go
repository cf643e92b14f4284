package types

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenesisHeaderIsGenesis(t *testing.T) {
	h := &BlockHeader{BlueWork: new(big.Int)}
	require.True(t, h.IsGenesis())

	h.MergeParentHashes = []Hash{Keccak256([]byte("x"))}
	require.False(t, h.IsGenesis())
}

func TestBlockHashDeterministicAndTamperEvident(t *testing.T) {
	h := &BlockHeader{
		Version:   1,
		Height:    5,
		BlueScore: 5,
		BlueWork:  big.NewInt(5),
		Timestamp: 1000,
	}
	h.BlockHash = h.ComputeBlockHash()
	again := h.ComputeBlockHash()
	require.Equal(t, h.BlockHash, again)

	tampered := *h
	tampered.Height = 6
	require.NotEqual(t, h.BlockHash, tampered.ComputeBlockHash())
}

func TestComputeTxRoot(t *testing.T) {
	txA := &Transaction{Hash: Keccak256([]byte("a"))}
	txB := &Transaction{Hash: Keccak256([]byte("b"))}

	root1 := ComputeTxRoot([]*Transaction{txA, txB})
	root2 := ComputeTxRoot([]*Transaction{txB, txA})
	require.NotEqual(t, root1, root2, "tx order is significant")

	expected := Keccak256(append(append([]byte{}, txA.Hash[:]...), txB.Hash[:]...))
	require.Equal(t, expected, root1)
}

func TestComputeTxRootEmpty(t *testing.T) {
	require.Equal(t, Keccak256(), ComputeTxRoot(nil))
}
