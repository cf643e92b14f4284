package state

import (
	"encoding/binary"
	"sort"

	"github.com/lattice-network/lattice/types"
)

// ComputeRoot hashes a snapshot of accounts into a single state root:
// keccak256 over the sorted (address, nonce, balance, code_hash,
// storage_root) tuples. This is a flat commitment rather than a
// Merkle-Patricia trie - the teacher's own UTXO set has no trie either
// (its root is a pluggable ECMH multiset, `ecc.Multiset`, a library
// outside this pack's dependency surface), so rather than invent a
// trie or a multiset dependency with no grounding, the state root
// follows the pack's simplest authenticated-set idiom: a
// deterministic sorted hash accumulator.
func ComputeRoot(accounts map[types.Address]*types.AccountState) types.Hash {
	addrs := make([]types.Address, 0, len(accounts))
	for addr := range accounts {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return lessAddress(addrs[i], addrs[j]) })

	buf := make([]byte, 0, len(addrs)*96)
	for _, addr := range addrs {
		account := accounts[addr]
		buf = append(buf, addr[:]...)
		buf = appendUint64(buf, account.Nonce)
		buf = append(buf, account.Balance.Bytes()...)
		buf = append(buf, account.CodeHash[:]...)
		buf = append(buf, account.StorageRoot[:]...)
	}
	return types.Keccak256(buf)
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}
