package types

// MicroBlock is a fast, single-producer throughput block.
type MicroBlock struct {
	Height       uint64
	Timestamp    int64
	PreviousHash Hash
	MerkleRoot   Hash
	Transactions []*Transaction
	Producer     Address
	Signature    *Signature
}

// Hash recomputes nothing by itself; callers use qnet/codec + qnet/crypto to
// derive the canonical block hash from the encoded form. This type only
// carries data.

// MacroBlockConsensusData carries the commit-reveal outcome that produced
// this macro-block, and the next elected leader.
type MacroBlockConsensusData struct {
	Commits    map[Address]Commit
	Reveals    map[Address]Reveal
	NextLeader Address
}

// MacroBlock fixes a window of micro-blocks and the resulting state root.
type MacroBlock struct {
	Height           uint64
	Timestamp        int64
	PreviousHash     Hash
	MicroBlockHashes []Hash
	StateRoot        Hash
	ConsensusData    MacroBlockConsensusData
}

// BlockInfo is the fork-tree's per-block bookkeeping record (spec.md §3).
// Reputation is carried for scoring but excluded from structural equality.
type BlockInfo struct {
	Hash                Hash
	Parent              Hash
	Height              uint64
	Timestamp           int64
	Producer            Address
	ProducerReputation  float64 // 0-100 scale, snapshotted at insertion
	Round               uint64
	TransactionCount    int
}

// StructuralEqual compares two BlockInfo values ignoring ProducerReputation,
// as required by spec.md §3 ("Reputation ... excluded from structural
// equality/hashing").
func (b BlockInfo) StructuralEqual(o BlockInfo) bool {
	return b.Hash == o.Hash &&
		b.Parent == o.Parent &&
		b.Height == o.Height &&
		b.Timestamp == o.Timestamp &&
		b.Producer == o.Producer &&
		b.Round == o.Round &&
		b.TransactionCount == o.TransactionCount
}
