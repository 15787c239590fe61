// Package merkle computes the Merkle root used as MicroBlock.merkle_root.
package merkle

import (
	"github.com/qnet-project/qnet-core/qnet/crypto"
	"github.com/qnet-project/qnet-core/qnet/types"
)

// Root computes the Merkle root of a list of leaf hashes. An empty list
// roots to the zero hash; an odd level duplicates its last node, matching
// the teacher's Bitcoin-style merkle convention.
func Root(leaves []types.Hash) types.Hash {
	if len(leaves) == 0 {
		return types.ZeroHash
	}
	level := make([]types.Hash, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]types.Hash, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, crypto.DigestConcat(level[i][:], level[i+1][:]))
		}
		level = next
	}
	return level[0]
}

// TransactionHashes extracts the hash of each transaction in order.
func TransactionHashes(txs []*types.Transaction) []types.Hash {
	hashes := make([]types.Hash, len(txs))
	for i, tx := range txs {
		hashes[i] = tx.Hash
	}
	return hashes
}
