// Package store is the durable persistence layer: headers, blocks,
// receipts, and accounts, each kept in its own key-prefixed region of
// a single embedded LevelDB database (spec.md §4.C13), adapted from
// the teacher's per-concern store split
// (domain/consensus/datastructures/*store) over a single
// goleveldb-backed database handle.
package store

import (
	stderrors "errors"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/lattice-network/lattice/types"
)

// notFound reports whether err is LevelDB's not-found sentinel. Uses
// the standard library's errors.Is explicitly (rather than relying on
// github.com/pkg/errors re-exporting it) since goleveldb returns the
// sentinel unwrapped.
func notFound(err error) bool {
	return stderrors.Is(err, leveldb.ErrNotFound)
}

// Key prefixes, one per logical column family (spec.md §4.C13:
// "column-family-style" persistence over a single KV engine).
const (
	prefixHeader      byte = 'h'
	prefixBlock       byte = 'b'
	prefixReceipt     byte = 'r'
	prefixAccount     byte = 'a'
	prefixMeta        byte = 'm'
	prefixCode        byte = 'c'
	prefixHeight      byte = 'i' // height -> set of block hashes at that height
	prefixBlueSet     byte = 'u' // block hash -> blue blocks in its mergeset
	prefixDagRelation byte = 'e' // block hash -> its parent hashes
)

// metaKeys are well-known keys in the metadata region.
var (
	metaKeySelectedTip = []byte{prefixMeta, 't'}
)

// Store wraps a single LevelDB handle, the teacher's own embedded
// database choice (github.com/syndtr/goleveldb), with one key prefix
// per data kind rather than separate database files.
type Store struct {
	db *leveldb.DB
}

// Open opens (creating if necessary) the LevelDB database at dir.
func Open(dir string) (*Store, error) {
	db, err := leveldb.OpenFile(dir, &opt.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open store")
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func headerKey(hash types.Hash) []byte {
	return append([]byte{prefixHeader}, hash[:]...)
}

func blockKey(hash types.Hash) []byte {
	return append([]byte{prefixBlock}, hash[:]...)
}

func receiptKey(txHash types.Hash) []byte {
	return append([]byte{prefixReceipt}, txHash[:]...)
}

func accountKey(addr types.Address) []byte {
	return append([]byte{prefixAccount}, addr[:]...)
}

func codeKey(codeHash types.Hash) []byte {
	return append([]byte{prefixCode}, codeHash[:]...)
}

// heightKey is one entry per (height, hash) pair, so every block
// connected at a height - not just the one that ended up on the
// selected-parent chain - can be enumerated with a single prefix scan
// (spec.md §4.C2 height_to_hashes(h)).
func heightKey(height uint64, hash types.Hash) []byte {
	buf := make([]byte, 0, 1+8+types.HashSize)
	buf = append(buf, prefixHeight)
	buf = appendU64(buf, height)
	buf = append(buf, hash[:]...)
	return buf
}

func heightPrefix(height uint64) []byte {
	buf := make([]byte, 0, 1+8)
	buf = append(buf, prefixHeight)
	return appendU64(buf, height)
}

func blueSetKey(hash types.Hash) []byte {
	return append([]byte{prefixBlueSet}, hash[:]...)
}

func dagRelationKey(hash types.Hash) []byte {
	return append([]byte{prefixDagRelation}, hash[:]...)
}

func marshalHashes(hashes []types.Hash) []byte {
	buf := make([]byte, 0, 4+len(hashes)*types.HashSize)
	buf = appendU32(buf, uint32(len(hashes)))
	for _, h := range hashes {
		buf = append(buf, h[:]...)
	}
	return buf
}

func unmarshalHashes(data []byte) ([]types.Hash, error) {
	r := &reader{data: data}
	n := r.readU32()
	out := make([]types.Hash, n)
	for i := range out {
		r.readHash(&out[i])
	}
	if r.err != nil {
		return nil, r.err
	}
	return out, nil
}

// PutHeader persists a block header, satisfying blockdag.BlockStore.
func (s *Store) PutHeader(header *types.BlockHeader) error {
	return s.db.Put(headerKey(header.BlockHash), header.Marshal(), nil)
}

// GetHeader looks up a header by hash.
func (s *Store) GetHeader(hash types.Hash) (*types.BlockHeader, bool, error) {
	data, err := s.db.Get(headerKey(hash), nil)
	if notFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to read header")
	}
	header, err := types.UnmarshalBlockHeader(data)
	if err != nil {
		return nil, false, err
	}
	return header, true, nil
}

// GetAccount looks up an account by address, satisfying
// state.Store.
func (s *Store) GetAccount(addr types.Address) (*types.AccountState, bool, error) {
	data, err := s.db.Get(accountKey(addr), nil)
	if notFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to read account")
	}
	account, err := types.UnmarshalAccountState(data)
	if err != nil {
		return nil, false, err
	}
	return account, true, nil
}

// PutAccount persists an account, satisfying state.Store.
func (s *Store) PutAccount(addr types.Address, account *types.AccountState) error {
	return s.db.Put(accountKey(addr), account.Marshal(), nil)
}

// PutCode persists contract bytecode keyed by its Keccak-256 hash,
// satisfying executor.CodeStore.
func (s *Store) PutCode(codeHash types.Hash, code []byte) error {
	return s.db.Put(codeKey(codeHash), code, nil)
}

// GetCode looks up contract bytecode by hash.
func (s *Store) GetCode(codeHash types.Hash) ([]byte, bool, error) {
	data, err := s.db.Get(codeKey(codeHash), nil)
	if notFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to read code")
	}
	return data, true, nil
}

// PutAccounts writes a batch of accounts atomically - the per-block
// commit path (spec.md §4.C13: "atomic per-block batch writes").
func (s *Store) PutAccounts(accounts map[types.Address]*types.AccountState) error {
	batch := new(leveldb.Batch)
	for addr, account := range accounts {
		batch.Put(accountKey(addr), account.Marshal())
	}
	return s.db.Write(batch, nil)
}

// PutBlock persists a full block (header, roots, GhostDag params, and
// transaction bodies), satisfying blockdag.BlockStore's sibling
// requirement that a connected block's body - not just its header -
// survive a restart (spec.md §4.C13).
func (s *Store) PutBlock(block *types.Block) error {
	return s.db.Put(blockKey(block.Header.BlockHash), block.Marshal(), nil)
}

// GetBlock looks up a full block by hash.
func (s *Store) GetBlock(hash types.Hash) (*types.Block, bool, error) {
	data, err := s.db.Get(blockKey(hash), nil)
	if notFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to read block")
	}
	block, err := types.UnmarshalBlock(data)
	if err != nil {
		return nil, false, err
	}
	return block, true, nil
}

// PutBlueSet persists the blue blocks in hash's mergeset, the
// GhostDag classification result for that block (spec.md §4.C6).
func (s *Store) PutBlueSet(hash types.Hash, blues []types.Hash) error {
	return s.db.Put(blueSetKey(hash), marshalHashes(blues), nil)
}

// GetBlueSet looks up a block's persisted blue set.
func (s *Store) GetBlueSet(hash types.Hash) ([]types.Hash, bool, error) {
	data, err := s.db.Get(blueSetKey(hash), nil)
	if notFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to read blue set")
	}
	hashes, err := unmarshalHashes(data)
	if err != nil {
		return nil, false, err
	}
	return hashes, true, nil
}

// PutDagRelations persists a block's parent set (selected parent plus
// merge parents), the edge list a restart replays to rebuild the
// in-memory DAG's child/height indexes (spec.md §4.C2, §4.C13).
func (s *Store) PutDagRelations(hash types.Hash, parents []types.Hash) error {
	return s.db.Put(dagRelationKey(hash), marshalHashes(parents), nil)
}

// GetDagRelations looks up a block's persisted parent set.
func (s *Store) GetDagRelations(hash types.Hash) ([]types.Hash, bool, error) {
	data, err := s.db.Get(dagRelationKey(hash), nil)
	if notFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to read dag relations")
	}
	hashes, err := unmarshalHashes(data)
	if err != nil {
		return nil, false, err
	}
	return hashes, true, nil
}

// HeightToHashes returns every block hash persisted at height h,
// mirroring blockdag.BlockDAG.HeightToHashes for the durable store
// (spec.md §4.C2 height_to_hashes(h)).
func (s *Store) HeightToHashes(h uint64) ([]types.Hash, error) {
	iter := s.db.NewIterator(util.BytesPrefix(heightPrefix(h)), nil)
	defer iter.Release()
	var out []types.Hash
	for iter.Next() {
		key := iter.Key()
		var hash types.Hash
		copy(hash[:], key[len(key)-types.HashSize:])
		out = append(out, hash)
	}
	return out, iter.Error()
}

// BlockCommit bundles everything a single connected block writes to
// the store, so PutBlockBundle can apply them as one atomic batch
// (spec.md §4.C13: "atomic per-block batch writes" spanning
// block/header/txs/receipts/height-index/blue_set/edges).
type BlockCommit struct {
	Block    *types.Block
	Receipts []*types.Receipt
	BlueSet  []types.Hash
}

// PutBlockBundle atomically persists a connected block: its header,
// full body, receipts, height index entry, blue set, and parent
// (dag_relations) edges, so a crash between any two of these never
// leaves the store half-updated (spec.md §4.C13).
func (s *Store) PutBlockBundle(commit BlockCommit) error {
	header := &commit.Block.Header
	batch := new(leveldb.Batch)
	batch.Put(headerKey(header.BlockHash), header.Marshal())
	batch.Put(blockKey(header.BlockHash), commit.Block.Marshal())
	for _, r := range commit.Receipts {
		batch.Put(receiptKey(r.TxHash), marshalReceipt(r))
	}
	batch.Put(heightKey(header.Height, header.BlockHash), nil)
	batch.Put(blueSetKey(header.BlockHash), marshalHashes(commit.BlueSet))
	batch.Put(dagRelationKey(header.BlockHash), marshalHashes(header.Parents()))
	return s.db.Write(batch, nil)
}

// PutReceipt persists a transaction receipt.
func (s *Store) PutReceipt(receipt *types.Receipt) error {
	return s.db.Put(receiptKey(receipt.TxHash), marshalReceipt(receipt), nil)
}

// GetReceipt looks up a receipt by transaction hash.
func (s *Store) GetReceipt(txHash types.Hash) (*types.Receipt, bool, error) {
	data, err := s.db.Get(receiptKey(txHash), nil)
	if notFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to read receipt")
	}
	receipt, err := unmarshalReceipt(data)
	if err != nil {
		return nil, false, err
	}
	return receipt, true, nil
}

// SetSelectedTip records the current selected tip hash in the
// metadata region, so the node can resume from where it left off.
func (s *Store) SetSelectedTip(hash types.Hash) error {
	return s.db.Put(metaKeySelectedTip, hash[:], nil)
}

// SelectedTip returns the last persisted selected tip, or the zero
// hash if none has been recorded yet.
func (s *Store) SelectedTip() (types.Hash, error) {
	data, err := s.db.Get(metaKeySelectedTip, nil)
	if notFound(err) {
		return types.ZeroHash, nil
	}
	if err != nil {
		return types.ZeroHash, err
	}
	return types.HashFromBytes(data), nil
}

// IterateHeaders calls fn for every persisted header. Used at startup
// to rebuild the in-memory BlockDAG from durable storage.
func (s *Store) IterateHeaders(fn func(*types.BlockHeader) error) error {
	iter := s.db.NewIterator(util.BytesPrefix([]byte{prefixHeader}), nil)
	defer iter.Release()
	for iter.Next() {
		header, err := types.UnmarshalBlockHeader(iter.Value())
		if err != nil {
			return err
		}
		if err := fn(header); err != nil {
			return err
		}
	}
	return iter.Error()
}
