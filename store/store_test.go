package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lattice-network/lattice/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testHeader(t *testing.T, height uint64, selectedParent types.Hash) *types.BlockHeader {
	t.Helper()
	h := &types.BlockHeader{
		Version:            1,
		SelectedParentHash: selectedParent,
		Height:             height,
		Timestamp:          int64(height) + 1,
	}
	h.BlockHash = h.ComputeBlockHash()
	return h
}

func TestPutBlockRoundTrips(t *testing.T) {
	s := openTestStore(t)

	key, err := types.GenerateSigningKey()
	require.NoError(t, err)
	header := testHeader(t, 1, types.ZeroHash)
	tx := &types.Transaction{Nonce: 0, GasLimit: 21000, GasPrice: 1}
	tx.Sign(key)

	block := &types.Block{Header: *header, Transactions: []*types.Transaction{tx}}

	require.NoError(t, s.PutBlock(block))

	got, ok, err := s.GetBlock(header.BlockHash)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, header.BlockHash, got.Header.BlockHash)
	require.Len(t, got.Transactions, 1)
	require.Equal(t, tx.Hash, got.Transactions[0].Hash)
	require.Equal(t, tx.Nonce, got.Transactions[0].Nonce)
}

func TestGetBlockMissingReturnsNotOk(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.GetBlock(types.Hash{0xaa})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHeightToHashesReturnsEveryBlockAtHeight(t *testing.T) {
	s := openTestStore(t)

	left := testHeader(t, 1, types.ZeroHash)
	right := testHeader(t, 1, types.Hash{0x01})

	require.NoError(t, s.PutBlockBundle(BlockCommit{Block: &types.Block{Header: *left}}))
	require.NoError(t, s.PutBlockBundle(BlockCommit{Block: &types.Block{Header: *right}}))

	hashes, err := s.HeightToHashes(1)
	require.NoError(t, err)
	require.ElementsMatch(t, []types.Hash{left.BlockHash, right.BlockHash}, hashes)

	empty, err := s.HeightToHashes(99)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestPutBlockBundlePersistsBlueSetAndDagRelations(t *testing.T) {
	s := openTestStore(t)

	parent := testHeader(t, 1, types.ZeroHash)
	child := testHeader(t, 2, parent.BlockHash)
	child.MergeParentHashes = []types.Hash{{0x02}}
	child.BlockHash = child.ComputeBlockHash()

	commit := BlockCommit{
		Block:   &types.Block{Header: *child},
		BlueSet: []types.Hash{parent.BlockHash},
	}
	require.NoError(t, s.PutBlockBundle(commit))

	blues, ok, err := s.GetBlueSet(child.BlockHash)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []types.Hash{parent.BlockHash}, blues)

	relations, ok, err := s.GetDagRelations(child.BlockHash)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, child.Parents(), relations)
}

func TestPutBlockBundleAlsoPersistsHeaderAndReceipts(t *testing.T) {
	s := openTestStore(t)

	header := testHeader(t, 1, types.ZeroHash)
	receipt := &types.Receipt{TxHash: types.Hash{0x09}, BlockHash: header.BlockHash, GasUsed: 21000, Status: true}

	require.NoError(t, s.PutBlockBundle(BlockCommit{
		Block:    &types.Block{Header: *header},
		Receipts: []*types.Receipt{receipt},
	}))

	storedHeader, ok, err := s.GetHeader(header.BlockHash)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, header.BlockHash, storedHeader.BlockHash)

	storedReceipt, ok, err := s.GetReceipt(receipt.TxHash)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, receipt.GasUsed, storedReceipt.GasUsed)
}
