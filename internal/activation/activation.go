// Package activation implements C10: the activation registry. Activation
// codes bind a wallet and node type to an encrypted on-disk record whose
// key is derived from the code itself and never stored, plus device
// migration rate limiting and genesis bootstrap IP authorization.
package activation

import (
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/qnet-project/qnet-core/qnet/codec"
	"github.com/qnet-project/qnet-core/qnet/crypto"
	"github.com/qnet-project/qnet-core/qnet/qnerrors"
	"github.com/qnet-project/qnet-core/qnet/qnlog"
	"github.com/qnet-project/qnet-core/qnet/types"
)

var log = qnlog.New("activation")

var (
	userCodePattern    = regexp.MustCompile(`^QNET-[0-9A-Z]{6}-[0-9A-Z]{6}-[0-9A-Z]{6}$`)
	genesisCodePattern = regexp.MustCompile(`^QNET-BOOT-(\d{4})-STRAP$`)
)

// CodeKind classifies a parsed activation code.
type CodeKind int

const (
	CodeInvalid CodeKind = iota
	CodeUser
	CodeGenesis
)

// MigrationInterval is the minimum gap between two device migrations for a
// rate-limited node type (spec.md §4.10).
const MigrationInterval = 24 * time.Hour

// genesisIPWhitelist hardcodes the one authorized IP per bootstrap id
// (001-005), spec.md §4.10. Values are placeholders for the five seed
// operators' known addresses; a real deployment swaps these for the
// production bootstrap set.
var genesisIPWhitelist = map[string]string{
	"0001": "10.0.0.1",
	"0002": "10.0.0.2",
	"0003": "10.0.0.3",
	"0004": "10.0.0.4",
	"0005": "10.0.0.5",
}

// ParseCode classifies code and, for genesis codes, returns the zero-padded
// bootstrap id ("0001".."0005").
func ParseCode(code string) (kind CodeKind, bootstrapID string) {
	if userCodePattern.MatchString(code) {
		return CodeUser, ""
	}
	if m := genesisCodePattern.FindStringSubmatch(code); m != nil {
		return CodeGenesis, m[1]
	}
	return CodeInvalid, ""
}

// IsGenesisIPAuthorized reports whether peerIP is the whitelisted source for
// bootstrap id (spec.md §4.10: "a node presenting a genesis code from an
// unlisted IP is rejected").
func IsGenesisIPAuthorized(bootstrapID, peerIP string) bool {
	ip, ok := genesisIPWhitelist[bootstrapID]
	return ok && ip == peerIP
}

// GenesisIPFor returns the whitelisted source IP for a bootstrap id, for
// callers (e.g. a bootstrap node activating itself at startup) that need to
// present their own authorized address rather than learn it from a peer.
func GenesisIPFor(bootstrapID string) (string, bool) {
	ip, ok := genesisIPWhitelist[bootstrapID]
	return ip, ok
}

// Registry holds activation records keyed by wallet, plus each node's last
// migration time for rate limiting. It never stores an activation key.
type Registry struct {
	records    map[types.Address]*types.ActivationRecord
	migrations map[types.Address]time.Time
	now        func() time.Time
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option { return func(r *Registry) { r.now = now } }

func New(opts ...Option) *Registry {
	r := &Registry{
		records:    make(map[types.Address]*types.ActivationRecord),
		migrations: make(map[types.Address]time.Time),
		now:        time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// activationPayload is the plaintext sealed inside EncryptedCodeBlob: the
// bound wallet, node type and activation timestamp. Device signature is
// deliberately excluded, since it is not part of the key and must remain
// mutable across migrations without touching the encrypted blob.
func encodePayload(wallet types.Address, nodeType types.NodeType, timestamp int64) []byte {
	w := codec.NewWriter()
	w.WriteString(string(wallet))
	w.WriteByte(byte(nodeType))
	w.WriteI64(timestamp)
	return w.Bytes()
}

func decodePayload(b []byte) (wallet types.Address, nodeType types.NodeType, timestamp int64, err error) {
	r := codec.NewReader(b)
	s, err := r.ReadString()
	if err != nil {
		return "", 0, 0, err
	}
	nt, err := r.ReadByte()
	if err != nil {
		return "", 0, 0, err
	}
	ts, err := r.ReadI64()
	if err != nil {
		return "", 0, 0, err
	}
	return types.Address(s), types.NodeType(nt), ts, nil
}

// codeKeyInfo is the HKDF info string binding the derived key to the
// activation-record use case, separating it from other DeriveKey callers.
const codeKeyInfo = "qnet-activation-record-v1"

// deriveCodeKey derives the AEAD key from the raw activation code string,
// never persisted (spec.md §4.10).
func deriveCodeKey(code string) ([]byte, error) {
	return crypto.DeriveKey([]byte(code), nil, []byte(codeKeyInfo))
}

// Activate binds code to wallet and nodeType, sealing the record with a key
// derived from code alone. For a genesis code, peerIP must match the
// whitelisted bootstrap address or activation is rejected.
func (r *Registry) Activate(code string, wallet types.Address, nodeType types.NodeType, deviceSignature, peerIP string, phase types.Phase) (*types.ActivationRecord, error) {
	kind, bootstrapID := ParseCode(code)
	switch kind {
	case CodeInvalid:
		return nil, qnerrors.NewValidation("BadActivationCode", "activation code does not match a recognized format")
	case CodeGenesis:
		if !IsGenesisIPAuthorized(bootstrapID, peerIP) {
			return nil, qnerrors.Wrap(qnerrors.KindSecurity, "AuthorizationDenied",
				"genesis activation code presented from an unlisted IP", qnerrors.ErrAuthorizationDenied)
		}
	}

	key, err := deriveCodeKey(code)
	if err != nil {
		return nil, err
	}

	timestamp := r.now().Unix()
	payload := encodePayload(wallet, nodeType, timestamp)
	blob, err := crypto.Seal(key, payload, []byte(wallet))
	if err != nil {
		return nil, err
	}

	record := &types.ActivationRecord{
		Wallet:              wallet,
		NodeType:            nodeType,
		DeviceSignature:     deviceSignature,
		ActivationTimestamp: timestamp,
		Phase:               phase,
		EncryptedCodeBlob:   blob,
	}
	r.records[wallet] = record
	log.WithFields(map[string]interface{}{
		"wallet":    wallet,
		"node_type": nodeType.String(),
		"kind":      kind,
	}).Info("node activated")
	return record, nil
}

// LoadActivationCode decrypts wallet's stored record using code, returning
// the bound wallet, node type and original activation timestamp. Possession
// of the stored blob without the code yields nothing; the code alone, with
// no blob, yields nothing either (spec.md §4.10).
func (r *Registry) LoadActivationCode(wallet types.Address, code string) (types.Address, types.NodeType, int64, error) {
	record, ok := r.records[wallet]
	if !ok {
		return "", 0, 0, qnerrors.New(qnerrors.KindStorage, "NotFound", "no activation record for wallet")
	}
	key, err := deriveCodeKey(code)
	if err != nil {
		return "", 0, 0, err
	}
	plaintext, err := crypto.Open(key, record.EncryptedCodeBlob, []byte(wallet))
	if err != nil {
		return "", 0, 0, err
	}
	decodedWallet, nodeType, timestamp, err := decodePayload(plaintext)
	if err != nil {
		return "", 0, 0, qnerrors.Wrap(qnerrors.KindStorage, "CorruptedFile", "activation payload malformed", err)
	}
	return decodedWallet, nodeType, timestamp, nil
}

// MigrateDevice changes wallet's stored device signature, rate-limited to
// one per MigrationInterval for Full/Super nodes; Light nodes are
// unlimited (spec.md §4.10). Stolen codes remain financially neutral:
// migration never changes which wallet the record pays out to.
func (r *Registry) MigrateDevice(wallet types.Address, newDeviceSignature string) (uuid.UUID, error) {
	record, ok := r.records[wallet]
	if !ok {
		return uuid.UUID{}, qnerrors.New(qnerrors.KindStorage, "NotFound", "no activation record for wallet")
	}

	if record.NodeType != types.NodeLight {
		if last, seen := r.migrations[wallet]; seen && r.now().Sub(last) < MigrationInterval {
			return uuid.UUID{}, qnerrors.Wrap(qnerrors.KindSecurity, "RateLimitExceeded",
				"device migration attempted before the 24h rate-limit window elapsed", qnerrors.ErrRateLimitExceeded)
		}
	}

	record.DeviceSignature = newDeviceSignature
	r.migrations[wallet] = r.now()
	id := uuid.New()
	log.WithFields(map[string]interface{}{
		"wallet":     wallet,
		"migration":  id.String(),
		"new_device": newDeviceSignature,
	}).Info("device migration recorded")
	return id, nil
}

// Record returns wallet's stored activation record, or nil if unknown.
func (r *Registry) Record(wallet types.Address) *types.ActivationRecord {
	return r.records[wallet]
}
