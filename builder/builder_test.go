package builder

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lattice-network/lattice/executor"
	"github.com/lattice-network/lattice/inference"
	"github.com/lattice-network/lattice/state"
	"github.com/lattice-network/lattice/types"
	"github.com/lattice-network/lattice/vm"
)

func newTestExecutor() *executor.Executor {
	return executor.New(vm.NoopMachine{}, inference.NoopDispatcher{}, nil)
}

type memStore struct {
	accounts map[types.Address]*types.AccountState
}

func newMemStore() *memStore {
	return &memStore{accounts: make(map[types.Address]*types.AccountState)}
}

func (s *memStore) GetAccount(addr types.Address) (*types.AccountState, bool, error) {
	a, ok := s.accounts[addr]
	return a, ok, nil
}

func (s *memStore) PutAccount(addr types.Address, account *types.AccountState) error {
	s.accounts[addr] = account
	return nil
}

type fakeMempool struct {
	all map[types.Address][]*types.Transaction
}

func newFakeMempool() *fakeMempool {
	return &fakeMempool{all: make(map[types.Address][]*types.Transaction)}
}

func (m *fakeMempool) add(tx *types.Transaction) {
	sender := tx.From.Address()
	m.all[sender] = append(m.all[sender], tx)
}

func (m *fakeMempool) TopByPriority() []*types.Transaction {
	var out []*types.Transaction
	for _, txs := range m.all {
		out = append(out, txs...)
	}
	return out
}

func (m *fakeMempool) SenderReadyTransactions(sender types.Address, startNonce uint64) []*types.Transaction {
	byNonce := make(map[uint64]*types.Transaction)
	for _, tx := range m.all[sender] {
		byNonce[tx.Nonce] = tx
	}
	var out []*types.Transaction
	for nonce := startNonce; ; nonce++ {
		tx, ok := byNonce[nonce]
		if !ok {
			break
		}
		out = append(out, tx)
	}
	return out
}

func fundedTx(t *testing.T, key types.SigningKey, nonce uint64, value int64) *types.Transaction {
	t.Helper()
	tx := &types.Transaction{
		Nonce:    nonce,
		Value:    big.NewInt(value),
		GasLimit: 21000,
		GasPrice: 1,
	}
	tx.Sign(key)
	return tx
}

func TestBuildIncludesReadyTransactionsAndSignsHeader(t *testing.T) {
	senderKey, err := types.GenerateSigningKey()
	require.NoError(t, err)
	proposerKey, err := types.GenerateSigningKey()
	require.NoError(t, err)

	store := newMemStore()
	senderAddr := senderKey.PublicKey().Address()
	store.accounts[senderAddr] = &types.AccountState{
		Nonce:            0,
		Balance:          big.NewInt(1_000_000),
		ModelPermissions: map[types.ModelId]struct{}{},
	}

	pool := newFakeMempool()
	tx0 := fundedTx(t, senderKey, 0, 10)
	tx1 := fundedTx(t, senderKey, 1, 20)
	pool.add(tx0)
	pool.add(tx1)

	baseSet, err := state.NewFullSet(store, 16)
	require.NoError(t, err)
	b := New(DefaultConfig(), pool, baseSet, newTestExecutor())

	parent := SelectedParent{Hash: types.Keccak256([]byte("genesis")), Height: 0, Timestamp: 1000, MedianTime: 900}
	candidate, err := b.Build(context.Background(), parent, nil, 1001, proposerKey)
	require.NoError(t, err)

	require.Len(t, candidate.Block.Transactions, 2)
	require.Equal(t, tx0.Hash, candidate.Block.Transactions[0].Hash)
	require.Len(t, candidate.Receipts, 2)
	require.Equal(t, types.ComputeTxRoot(candidate.Block.Transactions), candidate.Block.TxRoot)
	require.Equal(t, parent.Hash, candidate.Block.Header.SelectedParentHash)
	require.Equal(t, uint64(1), candidate.Block.Header.Height)
	require.True(t, proposerKey.PublicKey().Verify(candidate.Block.Header.SigningBytes(), candidate.Block.Signature[:]))
}

func TestBuildStopsAtNonceGap(t *testing.T) {
	senderKey, err := types.GenerateSigningKey()
	require.NoError(t, err)
	proposerKey, err := types.GenerateSigningKey()
	require.NoError(t, err)

	store := newMemStore()
	senderAddr := senderKey.PublicKey().Address()
	store.accounts[senderAddr] = &types.AccountState{
		Nonce:            0,
		Balance:          big.NewInt(1_000_000),
		ModelPermissions: map[types.ModelId]struct{}{},
	}

	pool := newFakeMempool()
	tx0 := fundedTx(t, senderKey, 0, 10)
	tx2 := fundedTx(t, senderKey, 2, 10) // gap at nonce 1
	pool.add(tx0)
	pool.add(tx2)

	baseSet, err := state.NewFullSet(store, 16)
	require.NoError(t, err)
	b := New(DefaultConfig(), pool, baseSet, newTestExecutor())

	parent := SelectedParent{Hash: types.Keccak256([]byte("genesis")), Height: 0, Timestamp: 1000, MedianTime: 900}
	candidate, err := b.Build(context.Background(), parent, nil, 1001, proposerKey)
	require.NoError(t, err)
	require.Len(t, candidate.Block.Transactions, 1)
	require.Equal(t, tx0.Hash, candidate.Block.Transactions[0].Hash)
}

func TestBuildRejectsTimestampNotExceedingMedian(t *testing.T) {
	pool := newFakeMempool()
	store := newMemStore()
	baseSet, err := state.NewFullSet(store, 16)
	require.NoError(t, err)
	b := New(DefaultConfig(), pool, baseSet, newTestExecutor())

	key, err := types.GenerateSigningKey()
	require.NoError(t, err)

	parent := SelectedParent{Hash: types.Keccak256([]byte("genesis")), Height: 0, Timestamp: 1000, MedianTime: 900}
	_, err = b.Build(context.Background(), parent, nil, 900, key)
	require.ErrorIs(t, err, ErrTimestampTooEarly)
}
