package types

import (
	"encoding/binary"
	"math/big"
)

// TxType drives mempool priority and execution dispatch (spec.md §3,
// §4.C9). It is inferred from a 4-byte prefix of the tx data when not
// set explicitly, exactly as original_source/citrate's
// TransactionType::from_data does.
type TxType uint8

const (
	TxStandard TxType = iota
	TxModelDeploy
	TxModelUpdate
	TxInferenceRequest
	TxTrainingJob
	TxLoraAdapter
)

// ClassWeight returns the mempool priority-ladder weight for t
// (spec.md §4.C9: ModelDeploy 100, TrainingJob 90, ModelUpdate 80,
// LoraAdapter 70, InferenceRequest 60, Standard 10).
func (t TxType) ClassWeight() uint64 {
	switch t {
	case TxModelDeploy:
		return 100
	case TxTrainingJob:
		return 90
	case TxModelUpdate:
		return 80
	case TxLoraAdapter:
		return 70
	case TxInferenceRequest:
		return 60
	default:
		return 10
	}
}

func (t TxType) String() string {
	switch t {
	case TxModelDeploy:
		return "ModelDeploy"
	case TxModelUpdate:
		return "ModelUpdate"
	case TxInferenceRequest:
		return "InferenceRequest"
	case TxTrainingJob:
		return "TrainingJob"
	case TxLoraAdapter:
		return "LoraAdapter"
	default:
		return "Standard"
	}
}

// txTypePrefixes are the 4-byte data prefixes that select a tx_type
// when the transaction does not carry one explicitly.
var txTypePrefixes = map[[4]byte]TxType{
	{0x01, 0x00, 0x00, 0x00}: TxModelDeploy,
	{0x02, 0x00, 0x00, 0x00}: TxModelUpdate,
	{0x03, 0x00, 0x00, 0x00}: TxInferenceRequest,
	{0x04, 0x00, 0x00, 0x00}: TxTrainingJob,
	{0x05, 0x00, 0x00, 0x00}: TxLoraAdapter,
}

// TxTypeFromData infers a TxType from the leading bytes of data.
func TxTypeFromData(data []byte) TxType {
	if len(data) < 4 {
		return TxStandard
	}
	var prefix [4]byte
	copy(prefix[:], data[:4])
	if t, ok := txTypePrefixes[prefix]; ok {
		return t
	}
	return TxStandard
}

// Transaction is the native transaction shape (spec.md §3).
type Transaction struct {
	Hash      Hash
	Nonce     uint64
	From      PublicKey
	To        *PublicKey // nil denotes a contract-creation transaction
	Value     *big.Int   // u128 range
	GasLimit  uint64
	GasPrice  uint64
	Data      []byte
	Signature Signature
	TxType    *TxType
}

// ResolvedType returns the explicit tx_type if set, otherwise infers
// one from Data, matching Transaction::determine_type's fallback.
func (tx *Transaction) ResolvedType() TxType {
	if tx.TxType != nil {
		return *tx.TxType
	}
	return TxTypeFromData(tx.Data)
}

// Priority is the mempool ordering key: class_weight*1e6 + gas_price
// (spec.md §3, §4.C9).
func (tx *Transaction) Priority() uint64 {
	return tx.ResolvedType().ClassWeight()*1_000_000 + tx.GasPrice
}

// CanonicalBytes returns the fixed little-endian encoding that is
// signed and hashed (spec.md §4.C1). The tx's own Hash field is
// excluded to avoid circularity; To is a presence byte followed by
// 32 bytes when set.
//
//	nonce(8) ‖ from(32) ‖ presence(1) ‖ to(32, if present) ‖
//	value(16) ‖ gas_limit(8) ‖ gas_price(8) ‖ data_len(4) ‖ data
func (tx *Transaction) CanonicalBytes() []byte {
	size := 8 + 32 + 1 + 16 + 8 + 8 + 4 + len(tx.Data)
	if tx.To != nil {
		size += 32
	}
	buf := make([]byte, 0, size)

	var nonceBuf [8]byte
	binary.LittleEndian.PutUint64(nonceBuf[:], tx.Nonce)
	buf = append(buf, nonceBuf[:]...)

	buf = append(buf, tx.From[:]...)

	if tx.To != nil {
		buf = append(buf, 1)
		buf = append(buf, tx.To[:]...)
	} else {
		buf = append(buf, 0)
	}

	buf = append(buf, encodeU128LE(tx.Value)...)

	var gasLimitBuf [8]byte
	binary.LittleEndian.PutUint64(gasLimitBuf[:], tx.GasLimit)
	buf = append(buf, gasLimitBuf[:]...)

	var gasPriceBuf [8]byte
	binary.LittleEndian.PutUint64(gasPriceBuf[:], tx.GasPrice)
	buf = append(buf, gasPriceBuf[:]...)

	var dataLenBuf [4]byte
	binary.LittleEndian.PutUint32(dataLenBuf[:], uint32(len(tx.Data)))
	buf = append(buf, dataLenBuf[:]...)

	buf = append(buf, tx.Data...)

	return buf
}

// ComputeHash returns Keccak-256 of CanonicalBytes PLUS the signature,
// matching the invariant "hash is the Keccak-256 of the canonical
// encoding including signature" (spec.md §3) — the signing bytes
// themselves exclude the signature (to avoid circularity) but the
// final tx hash commits to it so a tampered signature changes the
// hash.
func (tx *Transaction) ComputeHash() Hash {
	return Keccak256(tx.CanonicalBytes(), tx.Signature[:])
}

// Sign signs tx with key, setting From and Signature, then recomputes
// Hash — mirroring sign_transaction's "ensure from matches the signing
// key before computing canonical bytes" ordering.
func (tx *Transaction) Sign(key SigningKey) {
	tx.From = key.PublicKey()
	message := tx.CanonicalBytes()
	tx.Signature = key.Sign(message)
	tx.Hash = tx.ComputeHash()
}

// VerifySignature checks the Ed25519 signature against From over the
// canonical signing bytes (NOT over the tx hash).
func (tx *Transaction) VerifySignature() bool {
	message := tx.CanonicalBytes()
	return tx.From.Verify(message, tx.Signature[:])
}

// encodeU128LE encodes a non-negative big.Int into 16 little-endian
// bytes, saturating silently at zero for nil (the zero transaction
// value).
func encodeU128LE(v *big.Int) []byte {
	out := make([]byte, 16)
	if v == nil {
		return out
	}
	b := v.Bytes() // big-endian, minimal length
	for i := 0; i < len(b) && i < 16; i++ {
		out[i] = b[len(b)-1-i]
	}
	return out
}

// decodeU128LE is the inverse of encodeU128LE.
func decodeU128LE(b []byte) *big.Int {
	be := make([]byte, len(b))
	for i, v := range b {
		be[len(b)-1-i] = v
	}
	return new(big.Int).SetBytes(be)
}
