package executor

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lattice-network/lattice/inference"
	"github.com/lattice-network/lattice/state"
	"github.com/lattice-network/lattice/types"
	"github.com/lattice-network/lattice/vm"
)

type memStore struct {
	accounts map[types.Address]*types.AccountState
	code     map[types.Hash][]byte
}

func newMemStore() *memStore {
	return &memStore{accounts: make(map[types.Address]*types.AccountState), code: make(map[types.Hash][]byte)}
}

func (s *memStore) GetAccount(addr types.Address) (*types.AccountState, bool, error) {
	a, ok := s.accounts[addr]
	return a, ok, nil
}

func (s *memStore) PutAccount(addr types.Address, account *types.AccountState) error {
	s.accounts[addr] = account
	return nil
}

func (s *memStore) PutCode(codeHash types.Hash, code []byte) error {
	s.code[codeHash] = code
	return nil
}

func (s *memStore) GetCode(codeHash types.Hash) ([]byte, bool, error) {
	c, ok := s.code[codeHash]
	return c, ok, nil
}

func fundedAccount(balance int64) *types.AccountState {
	return &types.AccountState{Balance: big.NewInt(balance), ModelPermissions: map[types.ModelId]struct{}{}}
}

func newTestExecutor(store *memStore) *Executor {
	return New(vm.NoopMachine{}, inference.NoopDispatcher{}, store)
}

func TestExecuteValueTransferCreditsRecipient(t *testing.T) {
	store := newMemStore()
	senderKey, err := types.GenerateSigningKey()
	require.NoError(t, err)
	recipientKey, err := types.GenerateSigningKey()
	require.NoError(t, err)

	senderAddr := senderKey.PublicKey().Address()
	store.accounts[senderAddr] = fundedAccount(1_000_000)

	to := recipientKey.PublicKey()
	tx := &types.Transaction{Nonce: 0, To: &to, Value: big.NewInt(500), GasLimit: 30000, GasPrice: 1}
	tx.Sign(senderKey)

	fullSet, err := state.NewFullSet(store, 16)
	require.NoError(t, err)
	diff := state.NewDiffSet(fullSet)

	e := newTestExecutor(store)
	receipt, err := e.Execute(context.Background(), diff, tx, types.Keccak256([]byte("block")), 1)
	require.NoError(t, err)
	require.True(t, receipt.Status)

	recipientAddr := to.Address()
	recipient, err := diff.Get(recipientAddr)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(500), recipient.Balance)

	sender, err := diff.Get(senderAddr)
	require.NoError(t, err)
	require.Equal(t, uint64(1), sender.Nonce)
	require.Equal(t, big.NewInt(1_000_000-500-int64(IntrinsicGas(nil))), sender.Balance)
}

func TestExecuteRejectsNonceMismatch(t *testing.T) {
	store := newMemStore()
	senderKey, err := types.GenerateSigningKey()
	require.NoError(t, err)
	senderAddr := senderKey.PublicKey().Address()
	store.accounts[senderAddr] = fundedAccount(1_000_000)

	tx := &types.Transaction{Nonce: 5, Value: big.NewInt(1), GasLimit: 30000, GasPrice: 1}
	tx.Sign(senderKey)

	fullSet, err := state.NewFullSet(store, 16)
	require.NoError(t, err)
	diff := state.NewDiffSet(fullSet)

	e := newTestExecutor(store)
	_, err = e.Execute(context.Background(), diff, tx, types.Keccak256([]byte("block")), 1)
	require.ErrorIs(t, err, ErrInvalidNonce)
}

func TestExecuteRejectsOutOfGasBelowIntrinsic(t *testing.T) {
	store := newMemStore()
	senderKey, err := types.GenerateSigningKey()
	require.NoError(t, err)
	senderAddr := senderKey.PublicKey().Address()
	store.accounts[senderAddr] = fundedAccount(1_000_000)

	tx := &types.Transaction{Nonce: 0, Value: big.NewInt(1), GasLimit: 100, GasPrice: 1}
	tx.Sign(senderKey)

	fullSet, err := state.NewFullSet(store, 16)
	require.NoError(t, err)
	diff := state.NewDiffSet(fullSet)

	e := newTestExecutor(store)
	_, err = e.Execute(context.Background(), diff, tx, types.Keccak256([]byte("block")), 1)
	require.ErrorIs(t, err, ErrOutOfGas)
}

func TestExecuteDeployWritesCodeAndContractAccount(t *testing.T) {
	store := newMemStore()
	senderKey, err := types.GenerateSigningKey()
	require.NoError(t, err)
	senderAddr := senderKey.PublicKey().Address()
	store.accounts[senderAddr] = fundedAccount(1_000_000)

	code := []byte{0x60, 0x00, 0x60, 0x00}
	tx := &types.Transaction{Nonce: 0, Value: big.NewInt(0), GasLimit: 100000, GasPrice: 1, Data: code}
	tx.Sign(senderKey)

	fullSet, err := state.NewFullSet(store, 16)
	require.NoError(t, err)
	diff := state.NewDiffSet(fullSet)

	e := newTestExecutor(store)
	receipt, err := e.Execute(context.Background(), diff, tx, types.Keccak256([]byte("block")), 1)
	require.NoError(t, err)
	require.True(t, receipt.Status)

	codeHash := types.Keccak256(code)
	stored, ok, err := store.GetCode(codeHash)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, code, stored)
}

func TestGroupSeparatesConflictingTransactions(t *testing.T) {
	keyA, err := types.GenerateSigningKey()
	require.NoError(t, err)
	keyB, err := types.GenerateSigningKey()
	require.NoError(t, err)
	keyC, err := types.GenerateSigningKey()
	require.NoError(t, err)

	pkB := keyB.PublicKey()
	txAtoB := &types.Transaction{Nonce: 0, To: &pkB, Value: big.NewInt(1), GasLimit: 30000, GasPrice: 1}
	txAtoB.Sign(keyA)

	pkC := keyC.PublicKey()
	txBtoC := &types.Transaction{Nonce: 0, To: &pkC, Value: big.NewInt(1), GasLimit: 30000, GasPrice: 1}
	txBtoC.Sign(keyB) // conflicts with txAtoB via B

	pkA := keyA.PublicKey()
	txCtoA := &types.Transaction{Nonce: 0, To: &pkA, Value: big.NewInt(1), GasLimit: 30000, GasPrice: 1}
	txCtoA.Sign(keyC) // conflicts with both prior txs

	groups := Group([]*types.Transaction{txAtoB, txBtoC, txCtoA})
	require.Len(t, groups, 3)
	require.Equal(t, txAtoB.Hash, groups[0][0].Hash)
	require.Equal(t, txBtoC.Hash, groups[1][0].Hash)
	require.Equal(t, txCtoA.Hash, groups[2][0].Hash)
}

func TestGroupKeepsIndependentTransactionsTogether(t *testing.T) {
	keyA, err := types.GenerateSigningKey()
	require.NoError(t, err)
	keyB, err := types.GenerateSigningKey()
	require.NoError(t, err)
	keyC, err := types.GenerateSigningKey()
	require.NoError(t, err)
	keyD, err := types.GenerateSigningKey()
	require.NoError(t, err)

	pkB := keyB.PublicKey()
	txAtoB := &types.Transaction{Nonce: 0, To: &pkB, Value: big.NewInt(1), GasLimit: 30000, GasPrice: 1}
	txAtoB.Sign(keyA)

	pkD := keyD.PublicKey()
	txCtoD := &types.Transaction{Nonce: 0, To: &pkD, Value: big.NewInt(1), GasLimit: 30000, GasPrice: 1}
	txCtoD.Sign(keyC)

	groups := Group([]*types.Transaction{txAtoB, txCtoD})
	require.Len(t, groups, 1)
	require.Len(t, groups[0], 2)
}

func TestExecuteGroupsAppliesAllTransactions(t *testing.T) {
	store := newMemStore()
	keyA, err := types.GenerateSigningKey()
	require.NoError(t, err)
	keyC, err := types.GenerateSigningKey()
	require.NoError(t, err)
	keyB, err := types.GenerateSigningKey()
	require.NoError(t, err)
	keyD, err := types.GenerateSigningKey()
	require.NoError(t, err)

	store.accounts[keyA.PublicKey().Address()] = fundedAccount(1_000_000)
	store.accounts[keyC.PublicKey().Address()] = fundedAccount(1_000_000)

	pkB := keyB.PublicKey()
	txAtoB := &types.Transaction{Nonce: 0, To: &pkB, Value: big.NewInt(10), GasLimit: 30000, GasPrice: 1}
	txAtoB.Sign(keyA)

	pkD := keyD.PublicKey()
	txCtoD := &types.Transaction{Nonce: 0, To: &pkD, Value: big.NewInt(20), GasLimit: 30000, GasPrice: 1}
	txCtoD.Sign(keyC)

	groups := Group([]*types.Transaction{txAtoB, txCtoD})
	require.Len(t, groups, 1)

	fullSet, err := state.NewFullSet(store, 16)
	require.NoError(t, err)
	diff := state.NewDiffSet(fullSet)

	e := newTestExecutor(store)
	receipts, err := e.ExecuteGroups(context.Background(), diff, groups, types.Keccak256([]byte("block")), 1)
	require.NoError(t, err)
	require.Len(t, receipts, 2)

	recipientB, err := diff.Get(pkB.Address())
	require.NoError(t, err)
	require.Equal(t, big.NewInt(10), recipientB.Balance)

	recipientD, err := diff.Get(pkD.Address())
	require.NoError(t, err)
	require.Equal(t, big.NewInt(20), recipientD.Balance)
}
