package types

import (
	"encoding/binary"
	"math/big"

	"github.com/pkg/errors"
)

// Marshal/Unmarshal give BlockHeader and AccountState a stable
// on-disk encoding for package store (spec.md §4.C13), independent of
// SigningBytes (which deliberately omits fields to avoid circularity
// and is not meant to round-trip).

// Marshal encodes a header to bytes.
func (h *BlockHeader) Marshal() []byte {
	buf := make([]byte, 0, 256)
	buf = appendU32(buf, h.Version)
	buf = append(buf, h.BlockHash[:]...)
	buf = append(buf, h.SelectedParentHash[:]...)
	buf = appendU32(buf, uint32(len(h.MergeParentHashes)))
	for _, p := range h.MergeParentHashes {
		buf = append(buf, p[:]...)
	}
	buf = appendI64(buf, h.Timestamp)
	buf = appendU64(buf, h.Height)
	buf = appendU64(buf, h.BlueScore)
	buf = appendBytesWithLen(buf, blueWorkBytes(h.BlueWork))
	buf = append(buf, h.PruningPoint[:]...)
	buf = append(buf, h.ProposerPubKey[:]...)
	buf = appendBytesWithLen(buf, h.VrfReveal.Proof)
	buf = append(buf, h.VrfReveal.Output[:]...)
	return buf
}

func blueWorkBytes(w *big.Int) []byte {
	if w == nil {
		return nil
	}
	return w.Bytes()
}

// UnmarshalBlockHeader decodes a header previously produced by
// Marshal.
func UnmarshalBlockHeader(data []byte) (*BlockHeader, error) {
	r := &byteReader{data: data}
	h := &BlockHeader{}
	h.Version = r.readU32()
	r.readHashInto(&h.BlockHash)
	r.readHashInto(&h.SelectedParentHash)
	n := r.readU32()
	h.MergeParentHashes = make([]Hash, n)
	for i := range h.MergeParentHashes {
		r.readHashInto(&h.MergeParentHashes[i])
	}
	h.Timestamp = r.readI64()
	h.Height = r.readU64()
	h.BlueScore = r.readU64()
	h.BlueWork = new(big.Int).SetBytes(r.readBytesWithLen())
	r.readHashInto(&h.PruningPoint)
	copy(h.ProposerPubKey[:], r.readN(PublicKeySize))
	h.VrfReveal.Proof = r.readBytesWithLen()
	r.readHashInto(&h.VrfReveal.Output)
	if r.err != nil {
		return nil, r.err
	}
	return h, nil
}

// Marshal encodes an account to bytes.
func (a *AccountState) Marshal() []byte {
	buf := make([]byte, 0, 128)
	buf = appendU64(buf, a.Nonce)
	buf = appendBytesWithLen(buf, a.Balance.Bytes())
	buf = append(buf, a.CodeHash[:]...)
	buf = append(buf, a.StorageRoot[:]...)
	buf = appendU32(buf, uint32(len(a.ModelPermissions)))
	for id := range a.ModelPermissions {
		buf = append(buf, id[:]...)
	}
	return buf
}

// UnmarshalAccountState decodes an account previously produced by
// Marshal.
func UnmarshalAccountState(data []byte) (*AccountState, error) {
	r := &byteReader{data: data}
	a := NewAccountState()
	a.Nonce = r.readU64()
	a.Balance = new(big.Int).SetBytes(r.readBytesWithLen())
	r.readHashInto(&a.CodeHash)
	r.readHashInto(&a.StorageRoot)
	n := r.readU32()
	for i := uint32(0); i < n; i++ {
		var id ModelId
		r.readHashInto((*Hash)(&id))
		a.ModelPermissions[id] = struct{}{}
	}
	if r.err != nil {
		return nil, r.err
	}
	return a, nil
}

// Marshal encodes a transaction to bytes, used by package store to
// persist a block's full transaction bodies (spec.md §4.C13)
// alongside its header.
func (tx *Transaction) Marshal() []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, tx.Hash[:]...)
	buf = appendU64(buf, tx.Nonce)
	buf = append(buf, tx.From[:]...)
	if tx.To != nil {
		buf = append(buf, 1)
		buf = append(buf, tx.To[:]...)
	} else {
		buf = append(buf, 0)
	}
	buf = appendBytesWithLen(buf, encodeU128LE(tx.Value))
	buf = appendU64(buf, tx.GasLimit)
	buf = appendU64(buf, tx.GasPrice)
	buf = appendBytesWithLen(buf, tx.Data)
	buf = append(buf, tx.Signature[:]...)
	if tx.TxType != nil {
		buf = append(buf, 1, byte(*tx.TxType))
	} else {
		buf = append(buf, 0, 0)
	}
	return buf
}

// UnmarshalTransaction decodes a transaction previously produced by
// Marshal.
func UnmarshalTransaction(data []byte) (*Transaction, error) {
	r := &byteReader{data: data}
	tx := &Transaction{}
	r.readHashInto(&tx.Hash)
	tx.Nonce = r.readU64()
	copy(tx.From[:], r.readN(PublicKeySize))
	if r.readByte() == 1 {
		var to PublicKey
		copy(to[:], r.readN(PublicKeySize))
		tx.To = &to
	}
	tx.Value = decodeU128LE(r.readBytesWithLen())
	tx.GasLimit = r.readU64()
	tx.GasPrice = r.readU64()
	tx.Data = r.readBytesWithLen()
	copy(tx.Signature[:], r.readN(SignatureSize))
	present := r.readByte()
	typeByte := r.readByte()
	if present == 1 {
		t := TxType(typeByte)
		tx.TxType = &t
	}
	if r.err != nil {
		return nil, r.err
	}
	return tx, nil
}

// Marshal encodes a full block (header, roots, GhostDag params,
// transaction bodies, and proposer signature) to bytes, the unit
// package store's PutBlock/GetBlock persist (spec.md §4.C13).
func (b *Block) Marshal() []byte {
	buf := make([]byte, 0, 512)
	headerBytes := b.Header.Marshal()
	buf = appendBytesWithLen(buf, headerBytes)
	buf = append(buf, b.StateRoot[:]...)
	buf = append(buf, b.TxRoot[:]...)
	buf = append(buf, b.ReceiptRoot[:]...)
	buf = append(buf, b.ArtifactRoot[:]...)
	buf = appendU32(buf, b.GhostDagParams.K)
	buf = appendU32(buf, b.GhostDagParams.MaxParents)
	buf = appendU64(buf, b.GhostDagParams.MaxBlueScoreDiff)
	buf = appendU64(buf, b.GhostDagParams.PruningWindow)
	buf = appendU64(buf, b.GhostDagParams.FinalityDepth)
	buf = appendU32(buf, uint32(len(b.Transactions)))
	for _, tx := range b.Transactions {
		buf = appendBytesWithLen(buf, tx.Marshal())
	}
	buf = append(buf, b.Signature[:]...)
	return buf
}

// UnmarshalBlock decodes a block previously produced by Marshal.
func UnmarshalBlock(data []byte) (*Block, error) {
	r := &byteReader{data: data}
	b := &Block{}
	headerBytes := r.readBytesWithLen()
	if r.err != nil {
		return nil, r.err
	}
	header, err := UnmarshalBlockHeader(headerBytes)
	if err != nil {
		return nil, err
	}
	b.Header = *header
	r.readHashInto(&b.StateRoot)
	r.readHashInto(&b.TxRoot)
	r.readHashInto(&b.ReceiptRoot)
	r.readHashInto(&b.ArtifactRoot)
	b.GhostDagParams.K = r.readU32()
	b.GhostDagParams.MaxParents = r.readU32()
	b.GhostDagParams.MaxBlueScoreDiff = r.readU64()
	b.GhostDagParams.PruningWindow = r.readU64()
	b.GhostDagParams.FinalityDepth = r.readU64()
	n := r.readU32()
	b.Transactions = make([]*Transaction, n)
	for i := range b.Transactions {
		txBytes := r.readBytesWithLen()
		if r.err != nil {
			return nil, r.err
		}
		tx, err := UnmarshalTransaction(txBytes)
		if err != nil {
			return nil, err
		}
		b.Transactions[i] = tx
	}
	copy(b.Signature[:], r.readN(SignatureSize))
	if r.err != nil {
		return nil, r.err
	}
	return b, nil
}

func appendBytesWithLen(buf []byte, data []byte) []byte {
	buf = appendU32(buf, uint32(len(data)))
	return append(buf, data...)
}

// byteReader sequentially decodes fixed and length-prefixed fields,
// recording the first error encountered rather than panicking - the
// same accumulate-and-check-once pattern used for encode/decode loops
// throughout the teacher's wire package.
type byteReader struct {
	data []byte
	pos  int
	err  error
}

func (r *byteReader) readN(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.pos+n > len(r.data) {
		r.err = errors.New("unexpected end of encoded data")
		return nil
	}
	out := r.data[r.pos : r.pos+n]
	r.pos += n
	return out
}

func (r *byteReader) readU32() uint32 {
	b := r.readN(4)
	if b == nil {
		return 0
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func (r *byteReader) readU64() uint64 {
	b := r.readN(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *byteReader) readI64() int64 { return int64(r.readU64()) }

func (r *byteReader) readByte() byte {
	b := r.readN(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *byteReader) readHashInto(h *Hash) {
	b := r.readN(HashSize)
	if b != nil {
		copy(h[:], b)
	}
}

func (r *byteReader) readBytesWithLen() []byte {
	n := r.readU32()
	if r.err != nil {
		return nil
	}
	b := r.readN(int(n))
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
