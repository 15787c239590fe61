package codec

import (
	"github.com/qnet-project/qnet-core/qnet/crypto"
	"github.com/qnet-project/qnet-core/qnet/types"
)

// EncodeTransactionBody writes every field of tx except Hash itself, which
// is defined as the digest of this encoding (spec.md §3).
func EncodeTransactionBody(w *Writer, tx *types.Transaction) {
	w.WriteString(string(tx.From))
	hasTo := byte(0)
	if tx.To != nil {
		hasTo = 1
	}
	w.WriteByte(hasTo)
	if tx.To != nil {
		w.WriteString(string(*tx.To))
	}
	w.WriteAmount(tx.Amount)
	w.WriteU64(tx.Nonce)
	w.WriteAmount(tx.GasPrice)
	w.WriteU64(tx.GasLimit)
	w.WriteI64(tx.Timestamp)
	w.WriteByte(byte(tx.Variant))
	w.WriteBytes(tx.Payload)
}

// TransactionHash computes tx.Hash = digest(canonical field encoding),
// per spec.md §3.
func TransactionHash(tx *types.Transaction) types.Hash {
	w := NewWriter()
	EncodeTransactionBody(w, tx)
	return crypto.Digest(w.Bytes())
}

// EncodeTransaction produces the full wire encoding, including the
// signature (when present) and the precomputed hash, for SyncResponse-style
// transport.
func EncodeTransaction(tx *types.Transaction) []byte {
	w := NewWriter()
	w.WriteHash(tx.Hash)
	EncodeTransactionBody(w, tx)
	hasSig := byte(0)
	if tx.Signature != nil {
		hasSig = 1
	}
	w.WriteByte(hasSig)
	if tx.Signature != nil {
		hybrid := byte(0)
		if tx.Signature.Hybrid {
			hybrid = 1
		}
		w.WriteByte(hybrid)
		w.WriteBytes(tx.Signature.Raw)
	}
	return w.Bytes()
}

// DecodeTransaction reverses EncodeTransaction.
func DecodeTransaction(b []byte) (*types.Transaction, error) {
	r := NewReader(b)
	tx := &types.Transaction{}

	var err error
	if tx.Hash, err = r.ReadHash(); err != nil {
		return nil, err
	}
	from, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	tx.From = types.Address(from)

	hasTo, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if hasTo == 1 {
		to, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		addr := types.Address(to)
		tx.To = &addr
	}

	if tx.Amount, err = r.ReadAmount(); err != nil {
		return nil, err
	}
	if tx.Nonce, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if tx.GasPrice, err = r.ReadAmount(); err != nil {
		return nil, err
	}
	if tx.GasLimit, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if tx.Timestamp, err = r.ReadI64(); err != nil {
		return nil, err
	}
	variant, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	tx.Variant = types.TxVariant(variant)
	if tx.Payload, err = r.ReadBytes(); err != nil {
		return nil, err
	}

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
		tx.Signature = &types.Signature{Hybrid: hybrid == 1, Raw: raw}
	}

	return tx, nil
}
