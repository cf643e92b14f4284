package store

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/lattice-network/lattice/types"
)

// marshalReceipt/unmarshalReceipt give types.Receipt a stable on-disk
// encoding, kept in package store rather than types since receipts
// are a persistence-layer concern, not a consensus-hashed type.
func marshalReceipt(r *types.Receipt) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, r.TxHash[:]...)
	buf = append(buf, r.BlockHash[:]...)
	buf = appendU64(buf, r.BlockNumber)
	buf = append(buf, r.From[:]...)
	if r.To != nil {
		buf = append(buf, 1)
		buf = append(buf, r.To[:]...)
	} else {
		buf = append(buf, 0)
	}
	buf = appendU64(buf, r.GasUsed)
	if r.Status {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendU32(buf, uint32(len(r.Logs)))
	for _, l := range r.Logs {
		buf = append(buf, l.Address[:]...)
		buf = appendU32(buf, uint32(len(l.Topics)))
		for _, topic := range l.Topics {
			buf = append(buf, topic[:]...)
		}
		buf = appendBytes(buf, l.Data)
	}
	buf = appendBytes(buf, r.Output)
	return buf
}

func unmarshalReceipt(data []byte) (*types.Receipt, error) {
	r := &reader{data: data}
	receipt := &types.Receipt{}
	r.readHash(&receipt.TxHash)
	r.readHash(&receipt.BlockHash)
	receipt.BlockNumber = r.readU64()
	r.readAddress(&receipt.From)
	if r.readByte() == 1 {
		var to types.Address
		r.readAddress(&to)
		receipt.To = &to
	}
	receipt.GasUsed = r.readU64()
	receipt.Status = r.readByte() == 1
	logCount := r.readU32()
	receipt.Logs = make([]types.Log, logCount)
	for i := range receipt.Logs {
		r.readAddress(&receipt.Logs[i].Address)
		topicCount := r.readU32()
		receipt.Logs[i].Topics = make([]types.Hash, topicCount)
		for j := range receipt.Logs[i].Topics {
			r.readHash(&receipt.Logs[i].Topics[j])
		}
		receipt.Logs[i].Data = r.readBytes()
	}
	receipt.Output = r.readBytes()
	if r.err != nil {
		return nil, r.err
	}
	return receipt, nil
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendBytes(buf, data []byte) []byte {
	buf = appendU32(buf, uint32(len(data)))
	return append(buf, data...)
}

type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) readN(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.pos+n > len(r.data) {
		r.err = errors.New("unexpected end of encoded receipt")
		return nil
	}
	out := r.data[r.pos : r.pos+n]
	r.pos += n
	return out
}

func (r *reader) readByte() byte {
	b := r.readN(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) readU32() uint32 {
	b := r.readN(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) readU64() uint64 {
	b := r.readN(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) readHash(h *types.Hash) {
	b := r.readN(types.HashSize)
	if b != nil {
		copy(h[:], b)
	}
}

func (r *reader) readAddress(a *types.Address) {
	b := r.readN(types.AddressSize)
	if b != nil {
		copy(a[:], b)
	}
}

func (r *reader) readBytes() []byte {
	n := r.readU32()
	if r.err != nil {
		return nil
	}
	b := r.readN(int(n))
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
