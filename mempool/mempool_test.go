package mempool

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lattice-network/lattice/state"
	"github.com/lattice-network/lattice/types"
)

// richAccounts is a state.Set test double answering every address with
// a zero-nonce, well-funded account, so tests can focus on pool
// admission/eviction logic without hand-seeding balances.
type richAccounts struct{}

func (richAccounts) Get(types.Address) (*types.AccountState, error) {
	return &types.AccountState{Balance: big.NewInt(1_000_000_000)}, nil
}

var accounts state.Set = richAccounts{}

func signedTx(t *testing.T, nonce uint64, gasPrice uint64) *types.Transaction {
	t.Helper()
	key, err := types.GenerateSigningKey()
	require.NoError(t, err)
	tx := &types.Transaction{
		Nonce:    nonce,
		Value:    big.NewInt(1),
		GasLimit: 21000,
		GasPrice: gasPrice,
	}
	tx.Sign(key)
	return tx
}

func TestAddAndHas(t *testing.T) {
	p := New(DefaultConfig())
	tx := signedTx(t, 0, 10)
	require.NoError(t, p.Add(tx, 1000, accounts))
	require.True(t, p.Has(tx.Hash))
	require.Equal(t, 1, p.Len())
}

func TestAddDuplicateRejected(t *testing.T) {
	p := New(DefaultConfig())
	tx := signedTx(t, 0, 10)
	require.NoError(t, p.Add(tx, 1000, accounts))
	require.ErrorIs(t, p.Add(tx, 1000, accounts), ErrAlreadyKnown)
}

func TestReplacementRequiresFactor(t *testing.T) {
	p := New(DefaultConfig())
	key, err := types.GenerateSigningKey()
	require.NoError(t, err)

	original := &types.Transaction{Nonce: 0, Value: big.NewInt(1), GasLimit: 21000, GasPrice: 100}
	original.Sign(key)
	require.NoError(t, p.Add(original, 1000, accounts))

	tooLow := &types.Transaction{Nonce: 0, Value: big.NewInt(1), GasLimit: 21000, GasPrice: 105}
	tooLow.Sign(key)
	require.ErrorIs(t, p.Add(tooLow, 1001, accounts), ErrReplacementTooLow)

	highEnough := &types.Transaction{Nonce: 0, Value: big.NewInt(1), GasLimit: 21000, GasPrice: 200}
	highEnough.Sign(key)
	require.NoError(t, p.Add(highEnough, 1002, accounts))

	require.False(t, p.Has(original.Hash))
	require.True(t, p.Has(highEnough.Hash))
	require.Equal(t, 1, p.Len())
}

func TestSenderReadyTransactionsStopsAtGap(t *testing.T) {
	p := New(DefaultConfig())
	key, err := types.GenerateSigningKey()
	require.NoError(t, err)

	tx0 := &types.Transaction{Nonce: 0, Value: big.NewInt(1), GasLimit: 21000, GasPrice: 10}
	tx0.Sign(key)
	tx1 := &types.Transaction{Nonce: 1, Value: big.NewInt(1), GasLimit: 21000, GasPrice: 10}
	tx1.Sign(key)
	tx3 := &types.Transaction{Nonce: 3, Value: big.NewInt(1), GasLimit: 21000, GasPrice: 10}
	tx3.Sign(key)

	require.NoError(t, p.Add(tx0, 1000, accounts))
	require.NoError(t, p.Add(tx1, 1000, accounts))
	require.NoError(t, p.Add(tx3, 1000, accounts))

	ready := p.SenderReadyTransactions(key.PublicKey().Address(), 0)
	require.Len(t, ready, 2)
	require.Equal(t, tx0.Hash, ready[0].Hash)
	require.Equal(t, tx1.Hash, ready[1].Hash)
}

func TestTopByPriorityDescending(t *testing.T) {
	p := New(DefaultConfig())
	low := signedTx(t, 0, 1)
	high := signedTx(t, 0, 1000)
	require.NoError(t, p.Add(low, 1000, accounts))
	require.NoError(t, p.Add(high, 1000, accounts))

	top := p.TopByPriority()
	require.Len(t, top, 2)
	require.Equal(t, high.Hash, top[0].Hash)
}

func TestExpireOlderThan(t *testing.T) {
	p := New(DefaultConfig())
	stale := signedTx(t, 0, 10)
	require.NoError(t, p.Add(stale, 1000, accounts))

	expired := p.ExpireOlderThan(2000)
	require.Equal(t, []types.Hash{stale.Hash}, expired)
	require.Equal(t, 0, p.Len())
}

func TestStatsTracksAcceptedRejectedEvictedExpired(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTransactions = 1
	p := New(cfg)

	first := signedTx(t, 0, 100)
	require.NoError(t, p.Add(first, 1000, accounts))

	dup := first
	require.Error(t, p.Add(dup, 1000, accounts))

	third := signedTx(t, 0, 10000)
	require.NoError(t, p.Add(third, 1000, accounts))

	expired := p.ExpireOlderThan(2000)
	require.Len(t, expired, 1)

	stats := p.Stats()
	require.Equal(t, uint64(2), stats.Accepted)
	require.Equal(t, uint64(1), stats.Rejected)
	require.Equal(t, uint64(1), stats.Evicted)
	require.Equal(t, uint64(1), stats.Expired)
}

func TestPoolFullRejectsLowPriority(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTransactions = 1
	p := New(cfg)

	first := signedTx(t, 0, 100)
	require.NoError(t, p.Add(first, 1000, accounts))

	second := signedTx(t, 0, 101)
	require.ErrorIs(t, p.Add(second, 1000, accounts), ErrPoolFull)

	third := signedTx(t, 0, 10000)
	require.NoError(t, p.Add(third, 1000, accounts))
	require.False(t, p.Has(first.Hash))
}

// poorAccount backs a single sender with exactly the balance spec.md
// S6 describes: 1000, not enough to cover value=500 + 21000*1=21000.
type poorAccount struct{ sender types.Address }

func (p poorAccount) Get(addr types.Address) (*types.AccountState, error) {
	if addr == p.sender {
		return &types.AccountState{Balance: big.NewInt(1000)}, nil
	}
	return &types.AccountState{Balance: big.NewInt(1_000_000_000)}, nil
}

func TestAddRejectsInsufficientBalance(t *testing.T) {
	p := New(DefaultConfig())
	key, err := types.GenerateSigningKey()
	require.NoError(t, err)

	tx := &types.Transaction{Nonce: 0, Value: big.NewInt(500), GasLimit: 21000, GasPrice: 1}
	tx.Sign(key)

	sender := key.PublicKey().Address()
	err = p.Add(tx, 1000, poorAccount{sender: sender})
	require.Error(t, err)
	require.True(t, IsValidationError(err, ErrCodeInsufficientBalance))
	require.Equal(t, 0, p.Len())
}

func TestAddRejectsNonceBehindAccount(t *testing.T) {
	p := New(DefaultConfig())
	key, err := types.GenerateSigningKey()
	require.NoError(t, err)

	tx := &types.Transaction{Nonce: 2, Value: big.NewInt(1), GasLimit: 21000, GasPrice: 1}
	tx.Sign(key)

	ahead := state.Set(aheadAccount{sender: key.PublicKey().Address()})
	err = p.Add(tx, 1000, ahead)
	require.Error(t, err)
	require.True(t, IsValidationError(err, ErrCodeInvalidNonce))
}

// aheadAccount reports nonce 5 for sender, so a transaction at nonce 2
// is behind the account and can never become valid.
type aheadAccount struct{ sender types.Address }

func (a aheadAccount) Get(addr types.Address) (*types.AccountState, error) {
	if addr == a.sender {
		return &types.AccountState{Nonce: 5, Balance: big.NewInt(1_000_000_000)}, nil
	}
	return &types.AccountState{Balance: big.NewInt(1_000_000_000)}, nil
}

func TestAddRejectsBadSignature(t *testing.T) {
	p := New(DefaultConfig())
	tx := signedTx(t, 0, 10)
	tx.Signature[0] ^= 0xff

	err := p.Add(tx, 1000, accounts)
	require.Error(t, err)
	require.True(t, IsValidationError(err, ErrCodeInvalidSignature))
}

func TestAddRejectsOversizeTransaction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTxBytes = 16
	p := New(cfg)
	tx := signedTx(t, 0, 10)

	err := p.Add(tx, 1000, accounts)
	require.Error(t, err)
	require.True(t, IsValidationError(err, ErrCodeTooLarge))
}

func TestAddRejectsTooManyFromSender(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPerSender = 1
	p := New(cfg)
	key, err := types.GenerateSigningKey()
	require.NoError(t, err)

	first := &types.Transaction{Nonce: 0, Value: big.NewInt(1), GasLimit: 21000, GasPrice: 10}
	first.Sign(key)
	second := &types.Transaction{Nonce: 1, Value: big.NewInt(1), GasLimit: 21000, GasPrice: 10}
	second.Sign(key)

	require.NoError(t, p.Add(first, 1000, accounts))
	require.ErrorIs(t, p.Add(second, 1000, accounts), ErrTooManyFromSender)
}
