// Package qnerrors defines the five error kinds of spec.md §7 (Validation,
// Consensus, Fork, Storage, Security) as typed, wrappable errors.
package qnerrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation-policy purposes (§7).
type Kind int

const (
	KindValidation Kind = iota
	KindConsensus
	KindFork
	KindStorage
	KindSecurity
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "Validation"
	case KindConsensus:
		return "Consensus"
	case KindFork:
		return "Fork"
	case KindStorage:
		return "Storage"
	case KindSecurity:
		return "Security"
	default:
		return "Unknown"
	}
}

// Error is a coded, optionally-wrapped error carrying its propagation Kind.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Wrapped == nil {
		return fmt.Sprintf("%s/%s: %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s/%s: %s: %v", e.Kind, e.Code, e.Message, e.Wrapped)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Is reports code-equality, matching against another *Error by Code.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Code == te.Code
	}
	return false
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Wrapped: err}
}

// Sentinel errors for the Consensus, Fork, Storage and Security kinds named
// explicitly in spec.md §7. Validation errors are constructed ad hoc by
// callers (they carry caller-specific context: field, bound, etc.) via
// NewValidation below.

var (
	ErrNoActiveRound          = New(KindConsensus, "NoActiveRound", "no round is currently active")
	ErrInvalidPhase           = New(KindConsensus, "InvalidPhase", "operation not valid in the current round phase")
	ErrPhaseTimeout           = New(KindConsensus, "PhaseTimeout", "phase deadline has passed")
	ErrInvalidReveal          = New(KindConsensus, "InvalidReveal", "reveal does not match a prior commit")
	ErrDoubleSigningDetected  = New(KindConsensus, "DoubleSigningDetected", "conflicting commit detected for this round")
	ErrInsufficientNodes      = New(KindConsensus, "InsufficientNodes", "not enough eligible nodes")
	ErrLeaderSelectionFailed  = New(KindConsensus, "LeaderSelectionFailed", "leader selection failed")

	ErrUnknownParent            = New(KindFork, "UnknownParent", "parent block not found")
	ErrUnknownBlock             = New(KindFork, "UnknownBlock", "block not found")
	ErrInvalidFinalization      = New(KindFork, "InvalidFinalization", "target is not a descendant of the current finalized block")
	ErrInvalidState             = New(KindFork, "InvalidState", "fork tree is in an invalid state")
	ErrDeepReorganization       = New(KindFork, "DeepReorganization", "reorg exceeds the maximum allowed depth")
	ErrCheckpointMismatch       = New(KindFork, "CheckpointMismatch", "block hash does not match the checkpoint for its height")
	ErrBannedNode               = New(KindFork, "BannedNode", "producer is banned or not registered")
	ErrInsufficientActiveNodes  = New(KindFork, "InsufficientActiveNodes", "chain does not meet the minimum active-node threshold")
	ErrInsufficientDiversity    = New(KindFork, "InsufficientDiversity", "chain does not meet the minimum diversity score")

	ErrCorruptedFile  = New(KindStorage, "CorruptedFile", "persisted file is corrupted")
	ErrInvalidKey     = New(KindStorage, "InvalidKey", "storage key derivation failed")
	ErrEncryptionError = New(KindStorage, "EncryptionError", "encryption or decryption failed")

	ErrAuthenticationFailed = New(KindSecurity, "AuthenticationFailed", "authentication failed")
	ErrAuthorizationDenied  = New(KindSecurity, "AuthorizationDenied", "authorization denied")
	ErrRateLimitExceeded    = New(KindSecurity, "RateLimitExceeded", "rate limit exceeded")
)

// NewValidation builds a Validation-kind error with caller-specific context.
func NewValidation(code, message string) *Error {
	return New(KindValidation, code, message)
}
