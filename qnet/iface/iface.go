// Package iface defines the contracts QNet's core expects from the external
// collaborators named Out-of-scope in spec.md §1 and §6: on-disk KV
// storage, wire-level P2P transport, the Solana-side 1DEV burn contract,
// and the mempool's priority surface. This module implements none of them
// — only the interfaces the core programs against, plus (where noted in
// SPEC_FULL.md §5) a minimal in-memory stand-in used by tests.
package iface

import (
	"context"

	"github.com/qnet-project/qnet-core/qnet/types"
)

// Storage is the column-family-oriented KV contract of spec.md §6.
type Storage interface {
	PutBlockByHeight(ctx context.Context, height uint64, encoded []byte) error
	PutBlockByHash(ctx context.Context, hash types.Hash, encoded []byte) error
	GetBlockByHash(ctx context.Context, hash types.Hash) ([]byte, error)
	GetBlockByHeight(ctx context.Context, height uint64) ([]byte, error)

	PutAccount(ctx context.Context, addr types.Address, encoded []byte) error
	GetAccount(ctx context.Context, addr types.Address) ([]byte, error)

	PutMeta(ctx context.Context, key string, value []byte) error
	GetMeta(ctx context.Context, key string) ([]byte, error)
}

// Transport is the peer protocol the core expects delivered (spec.md §6).
type Transport interface {
	OnNewBlock(handler func(encoded []byte))
	OnNewTransaction(handler func(encoded []byte))
	OnPeerConnected(handler func(peerID string))
	OnPeerDisconnected(handler func(peerID string))
	OnPeerHeads(handler func(heads map[string]types.Hash))

	SyncRequest(ctx context.Context, peer string, fromHeight uint64) error
}

// BurnAttestation is a consumed attestation of a 1DEV burn on the external
// Solana-side contract (spec.md §1 Non-goals: "it only defines how the core
// consumes attestations of burns"). Shape supplemented from the original
// QNet source's burn_security module (see SPEC_FULL.md DOMAIN STACK
// SUPPLEMENT).
type BurnAttestation struct {
	TxHash         string
	Wallet         types.Address
	AmountBurned   types.Amount
	BurnedAtHeight uint64
	JoinedAt       int64 // unix seconds, used by C5's diversity score
}

// BurnSource is consumed by C5's security validator to compute the
// diversity score over candidate chains.
type BurnSource interface {
	AttestationsFor(wallet types.Address) []BurnAttestation
}

// MempoolTx is the minimal shape C7 needs to dequeue from the mempool.
type MempoolTx struct {
	Tx       *types.Transaction
	Priority float64
}

// Mempool is the out-of-scope collaborator's contract (spec.md §1).
// internal/mempool ships a reference in-memory implementation used only by
// this module's own tests and its demo entrypoint.
type Mempool interface {
	Push(tx *types.Transaction) error
	PopBatch(ctx context.Context, max int) []MempoolTx
	Len() int
}
