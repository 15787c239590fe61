package codec

import (
	"github.com/qnet-project/qnet-core/qnet/crypto"
	"github.com/qnet-project/qnet-core/qnet/types"
)

// EncodeMicroBlock produces the canonical wire encoding of a MicroBlock.
func EncodeMicroBlock(b *types.MicroBlock) []byte {
	w := NewWriter()
	w.WriteU64(b.Height)
	w.WriteI64(b.Timestamp)
	w.WriteHash(b.PreviousHash)
	w.WriteHash(b.MerkleRoot)
	w.WriteU64(uint64(len(b.Transactions)))
	for _, tx := range b.Transactions {
		w.WriteBytes(EncodeTransaction(tx))
	}
	w.WriteString(string(b.Producer))
	hasSig := byte(0)
	if b.Signature != nil {
		hasSig = 1
	}
	w.WriteByte(hasSig)
	if b.Signature != nil {
		hybrid := byte(0)
		if b.Signature.Hybrid {
			hybrid = 1
		}
		w.WriteByte(hybrid)
		w.WriteBytes(b.Signature.Raw)
	}
	return w.Bytes()
}

// DecodeMicroBlock reverses EncodeMicroBlock.
func DecodeMicroBlock(raw []byte) (*types.MicroBlock, error) {
	r := NewReader(raw)
	b := &types.MicroBlock{}
	var err error
	if b.Height, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if b.Timestamp, err = r.ReadI64(); err != nil {
		return nil, err
	}
	if b.PreviousHash, err = r.ReadHash(); err != nil {
		return nil, err
	}
	if b.MerkleRoot, err = r.ReadHash(); err != nil {
		return nil, err
	}
	n, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	b.Transactions = make([]*types.Transaction, 0, n)
	for i := uint64(0); i < n; i++ {
		txBytes, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		tx, err := DecodeTransaction(txBytes)
		if err != nil {
			return nil, err
		}
		b.Transactions = append(b.Transactions, tx)
	}
	producer, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	b.Producer = types.Address(producer)

	hasSig, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if hasSig == 1 {
		hybrid, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		raw, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		b.Signature = &types.Signature{Hybrid: hybrid == 1, Raw: raw}
	}
	return b, nil
}

// MicroBlockHash digests the canonical encoding, used for previous_hash
// linkage and the macro-block's ordered hash list.
func MicroBlockHash(b *types.MicroBlock) types.Hash {
	return crypto.Digest(EncodeMicroBlock(b))
}

// EncodeMacroBlock produces the canonical wire encoding of a MacroBlock.
// Of consensus_data only next_leader is encoded; the commit/reveal maps are
// left out of the encoding and so out of the block's own identity hash,
// matching the teacher's pattern of excluding bulky consensus artifacts.
func EncodeMacroBlock(b *types.MacroBlock) []byte {
	w := NewWriter()
	w.WriteU64(b.Height)
	w.WriteI64(b.Timestamp)
	w.WriteHash(b.PreviousHash)
	w.WriteU64(uint64(len(b.MicroBlockHashes)))
	for _, h := range b.MicroBlockHashes {
		w.WriteHash(h)
	}
	w.WriteHash(b.StateRoot)
	w.WriteString(string(b.ConsensusData.NextLeader))
	return w.Bytes()
}

// DecodeMacroBlock reverses the identity-relevant portion of EncodeMacroBlock.
// Full commit/reveal maps live alongside the block in storage, not in its
// wire identity; callers reconstruct ConsensusData.Commits/Reveals from the
// round state they already tracked.
func DecodeMacroBlock(raw []byte) (*types.MacroBlock, error) {
	r := NewReader(raw)
	b := &types.MacroBlock{}
	var err error
	if b.Height, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if b.Timestamp, err = r.ReadI64(); err != nil {
		return nil, err
	}
	if b.PreviousHash, err = r.ReadHash(); err != nil {
		return nil, err
	}
	n, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	b.MicroBlockHashes = make([]types.Hash, 0, n)
	for i := uint64(0); i < n; i++ {
		h, err := r.ReadHash()
		if err != nil {
			return nil, err
		}
		b.MicroBlockHashes = append(b.MicroBlockHashes, h)
	}
	if b.StateRoot, err = r.ReadHash(); err != nil {
		return nil, err
	}
	leader, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	b.ConsensusData.NextLeader = types.Address(leader)
	return b, nil
}

// MacroBlockHash digests the canonical encoding.
func MacroBlockHash(b *types.MacroBlock) types.Hash {
	return crypto.Digest(EncodeMacroBlock(b))
}
