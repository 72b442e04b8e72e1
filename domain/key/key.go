// Package key provides API credential value types and pure validation.
// Raw keys are never stored: only a hash is persisted, plus a short
// prefix for lookup and for identification in logs and listings.
// Hashing itself is the caller's concern so that the same hasher mints
// and verifies.
package key

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// PrefixLen is how many leading characters of the raw key are stored in
// clear for lookup.
const PrefixLen = 12

// RawPrefix is the leading tag of every raw key issued by this service.
const RawPrefix = "ul_"

// Key represents an API credential belonging to one project (immutable
// value type). Revocation is a flag, not a delete - the audit trail stays.
type Key struct {
	ID        string
	ProjectID string
	Hash      []byte // hash of the full raw key, set by the minting service
	Prefix    string // first PrefixLen chars of the raw key
	Name      string
	RevokedAt *time.Time // nil = active
	CreatedAt time.Time
	LastUsed  *time.Time
}

// ValidationResult represents the outcome of key validation (value type).
type ValidationResult struct {
	Valid  bool
	Key    Key    // Populated only if Valid=true
	Reason string // Populated only if Valid=false
}

// Reasons for validation failure. These are internal: the HTTP boundary
// collapses all of them into one generic unauthorized response so that
// auth failures and quota denials are equally uninformative.
const (
	ReasonNotFound  = "key_not_found"
	ReasonRevoked   = "key_revoked"
	ReasonBadFormat = "invalid_format"
)

// Generate creates a new API key for a project. Returns the raw key
// (shown to the operator exactly once) and the Key record to store.
// The raw key is RawPrefix + 64 hex chars. The record's Hash is left
// empty: the caller hashes the raw key with the same hasher it will
// later verify with.
func Generate(id, projectID, name string, now time.Time) (rawKey string, k Key) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}

	rawKey = RawPrefix + hex.EncodeToString(randomBytes)

	k = Key{
		ID:        id,
		ProjectID: projectID,
		Prefix:    rawKey[:PrefixLen],
		Name:      name,
		CreatedAt: now.UTC(),
	}
	return rawKey, k
}

// Validate checks whether a stored key is usable at the given time.
// This is a PURE function - no side effects, deterministic.
func Validate(k Key, now time.Time) ValidationResult {
	if k.RevokedAt != nil && !now.Before(*k.RevokedAt) {
		return ValidationResult{Valid: false, Reason: ReasonRevoked}
	}
	return ValidationResult{Valid: true, Key: k}
}

// ValidateFormat checks whether a raw key is well-formed before any store
// lookup happens. Returns the lookup prefix when the format is valid.
// This is a PURE function.
func ValidateFormat(rawKey string) (prefix string, valid bool) {
	if !strings.HasPrefix(rawKey, RawPrefix) {
		return "", false
	}
	if len(rawKey) != len(RawPrefix)+64 {
		return "", false
	}
	return rawKey[:PrefixLen], true
}
