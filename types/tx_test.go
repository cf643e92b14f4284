package types

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestTx(t *testing.T) *Transaction {
	t.Helper()
	to, err := GenerateSigningKey()
	require.NoError(t, err)
	toPub := to.PublicKey()
	return &Transaction{
		Nonce:    1,
		To:       &toPub,
		Value:    big.NewInt(1000),
		GasLimit: 21000,
		GasPrice: 1_000_000_000,
		Data:     []byte{1, 2, 3},
	}
}

func TestTransactionSignAndVerify(t *testing.T) {
	key, err := GenerateSigningKey()
	require.NoError(t, err)

	tx := newTestTx(t)
	tx.Sign(key)

	require.True(t, tx.VerifySignature())

	tx.Value = big.NewInt(2000)
	require.False(t, tx.VerifySignature(), "tampering with value must invalidate the signature")
}

func TestCanonicalBytesDeterministic(t *testing.T) {
	tx := newTestTx(t)
	b1 := tx.CanonicalBytes()
	b2 := tx.CanonicalBytes()
	require.Equal(t, b1, b2)
}

func TestHashDeterministic(t *testing.T) {
	key, err := GenerateSigningKey()
	require.NoError(t, err)
	tx := newTestTx(t)
	tx.Sign(key)

	h1 := tx.ComputeHash()
	h2 := tx.ComputeHash()
	require.Equal(t, h1, h2)

	tampered := *tx
	tampered.GasPrice++
	require.NotEqual(t, h1, tampered.ComputeHash())
}

func TestTxTypeFromDataAndPriority(t *testing.T) {
	require.Equal(t, TxStandard, TxTypeFromData(nil))
	require.Equal(t, TxModelDeploy, TxTypeFromData([]byte{0x01, 0x00, 0x00, 0x00, 0xff}))
	require.Equal(t, TxTrainingJob, TxTypeFromData([]byte{0x04, 0x00, 0x00, 0x00}))

	tx := &Transaction{GasPrice: 75}
	deploy := TxModelDeploy
	tx.TxType = &deploy
	require.Equal(t, uint64(100)*1_000_000+75, tx.Priority())
}

func TestUint128RoundTrip(t *testing.T) {
	v := new(big.Int).Lsh(big.NewInt(1), 100) // large u128 value
	enc := encodeU128LE(v)
	require.Len(t, enc, 16)
	require.Equal(t, 0, v.Cmp(decodeU128LE(enc)))
}
