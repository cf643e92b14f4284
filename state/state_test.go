package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lattice-network/lattice/types"
)

type memStore struct {
	accounts map[types.Address]*types.AccountState
}

func newMemStore() *memStore {
	return &memStore{accounts: make(map[types.Address]*types.AccountState)}
}

func (m *memStore) GetAccount(addr types.Address) (*types.AccountState, bool, error) {
	a, ok := m.accounts[addr]
	return a, ok, nil
}

func (m *memStore) PutAccount(addr types.Address, account *types.AccountState) error {
	m.accounts[addr] = account
	return nil
}

func addrFromByte(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

func TestFullSetLazyZeroAccount(t *testing.T) {
	full, err := NewFullSet(newMemStore(), 16)
	require.NoError(t, err)

	account, err := full.Get(addrFromByte(1))
	require.NoError(t, err)
	require.Equal(t, uint64(0), account.Nonce)
	require.Equal(t, 0, account.Balance.Sign())
}

func TestFullSetCacheHitsAndMisses(t *testing.T) {
	full, err := NewFullSet(newMemStore(), 16)
	require.NoError(t, err)

	addr := addrFromByte(2)
	_, err = full.Get(addr)
	require.NoError(t, err)
	_, err = full.Get(addr)
	require.NoError(t, err)

	stats := full.Stats()
	require.Equal(t, uint64(1), stats.Misses)
	require.Equal(t, uint64(1), stats.Hits)
}

func TestDiffSetOverlayDoesNotTouchBase(t *testing.T) {
	full, err := NewFullSet(newMemStore(), 16)
	require.NoError(t, err)

	addr := addrFromByte(3)
	diff := NewDiffSet(full)
	modified := types.NewAccountState()
	modified.Balance = big.NewInt(500)
	diff.Set(addr, modified)

	fromDiff, err := diff.Get(addr)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(500), fromDiff.Balance)

	fromBase, err := full.Get(addr)
	require.NoError(t, err)
	require.Equal(t, 0, fromBase.Balance.Sign())
}

func TestMeldToBaseCommitsAndResetsDiff(t *testing.T) {
	full, err := NewFullSet(newMemStore(), 16)
	require.NoError(t, err)

	addr := addrFromByte(4)
	diff := NewDiffSet(full)
	modified := types.NewAccountState()
	modified.Nonce = 7
	diff.Set(addr, modified)

	require.NoError(t, diff.MeldToBase())
	require.Empty(t, diff.ModifiedAddresses())

	fromBase, err := full.Get(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(7), fromBase.Nonce)
}

func TestComputeRootDeterministic(t *testing.T) {
	accounts := map[types.Address]*types.AccountState{
		addrFromByte(1): types.NewAccountState(),
		addrFromByte(2): types.NewAccountState(),
	}
	r1 := ComputeRoot(accounts)
	r2 := ComputeRoot(accounts)
	require.Equal(t, r1, r2)
}
