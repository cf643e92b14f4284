package types

import "math/big"

// GhostDagParams are the consensus parameters for a chain (spec.md §3,
// §9 Open Question #3 resolution: snapshot retention defaults to
// max(FinalityDepth, MaxBlueScoreDiff)).
type GhostDagParams struct {
	K                uint32
	MaxParents       uint32
	MaxBlueScoreDiff uint64
	PruningWindow    uint64
	FinalityDepth    uint64
}

// DefaultGhostDagParams mirrors the teacher's devnet-friendly defaults
// (original_source/citrate's GhostDagParams::default), scaled down for
// a single-process node.
func DefaultGhostDagParams() GhostDagParams {
	return GhostDagParams{
		K:                18,
		MaxParents:       10,
		MaxBlueScoreDiff: 1000,
		PruningWindow:    100000,
		FinalityDepth:    100,
	}
}

// VrfProof is the opaque-to-us VRF output accompanying a header; the
// VRF computation itself is an external collaborator (spec.md §1).
type VrfProof struct {
	Proof  []byte
	Output Hash
}

// BlockHeader carries the consensus-critical fields (spec.md §3).
type BlockHeader struct {
	Version             uint32
	BlockHash           Hash
	SelectedParentHash   Hash
	MergeParentHashes    []Hash
	Timestamp            int64
	Height               uint64
	BlueScore            uint64
	BlueWork             *big.Int
	PruningPoint         Hash
	ProposerPubKey       PublicKey
	VrfReveal            VrfProof
}

// Parents returns [selected_parent] ++ merge_parents, the full parent
// set of the header.
func (h *BlockHeader) Parents() []Hash {
	out := make([]Hash, 0, 1+len(h.MergeParentHashes))
	out = append(out, h.SelectedParentHash)
	out = append(out, h.MergeParentHashes...)
	return out
}

// IsGenesis reports whether h has no parents at all.
func (h *BlockHeader) IsGenesis() bool {
	return h.SelectedParentHash.IsZero() && len(h.MergeParentHashes) == 0
}

// Block is a full block: header plus execution results and body
// (spec.md §3).
type Block struct {
	Header          BlockHeader
	StateRoot       Hash
	TxRoot          Hash
	ReceiptRoot     Hash
	ArtifactRoot    Hash
	GhostDagParams  GhostDagParams
	Transactions    []*Transaction
	Signature       Signature
}

// Parents delegates to the header.
func (b *Block) Parents() []Hash { return b.Header.Parents() }

// IsGenesis delegates to the header.
func (b *Block) IsGenesis() bool { return b.Header.IsGenesis() }

// ComputeTxRoot returns keccak256(concat(tx.Hash for tx in order)),
// the invariant tx_root must satisfy (spec.md §3, testable property
// #10). Block order, NOT sorted order, is significant.
func ComputeTxRoot(txs []*Transaction) Hash {
	if len(txs) == 0 {
		return Keccak256()
	}
	concatenated := make([]byte, 0, len(txs)*HashSize)
	for _, tx := range txs {
		concatenated = append(concatenated, tx.Hash[:]...)
	}
	return Keccak256(concatenated)
}

// SigningBytes returns the bytes the proposer signs, covering every
// header field except the block hash (which is derived from it; the
// proposer's signature is kept on Block, outside the header) — the same exclude-self-to-avoid-
// circularity pattern as the transaction's canonical bytes.
func (h *BlockHeader) SigningBytes() []byte {
	buf := make([]byte, 0, 128)
	buf = appendU32(buf, h.Version)
	buf = append(buf, h.SelectedParentHash[:]...)
	for _, p := range h.MergeParentHashes {
		buf = append(buf, p[:]...)
	}
	buf = appendI64(buf, h.Timestamp)
	buf = appendU64(buf, h.Height)
	buf = appendU64(buf, h.BlueScore)
	if h.BlueWork != nil {
		buf = append(buf, h.BlueWork.Bytes()...)
	}
	buf = append(buf, h.PruningPoint[:]...)
	buf = append(buf, h.ProposerPubKey[:]...)
	buf = appendU32(buf, uint32(len(h.VrfReveal.Proof)))
	buf = append(buf, h.VrfReveal.Proof...)
	buf = append(buf, h.VrfReveal.Output[:]...)
	return buf
}

// ComputeBlockHash derives the deterministic block hash from every
// header field except itself, so tampering with any field is
// detectable (spec.md §3 invariant).
func (h *BlockHeader) ComputeBlockHash() Hash {
	return Keccak256(h.SigningBytes())
}

func appendU32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendU64(buf []byte, v uint64) []byte {
	for i := 0; i < 8; i++ {
		buf = append(buf, byte(v>>(8*i)))
	}
	return buf
}

func appendI64(buf []byte, v int64) []byte {
	return appendU64(buf, uint64(v))
}
