package app

import (
	"context"
	"fmt"

	"github.com/artpar/usageledger/adapters/metrics"
	"github.com/artpar/usageledger/domain/key"
	"github.com/artpar/usageledger/ports"
)

// KeyDeps contains dependencies for KeyService.
type KeyDeps struct {
	Keys     ports.KeyStore
	Projects ports.ProjectStore
	Hasher   ports.Hasher
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Metrics  *metrics.Collector // optional
}

// KeyService issues, revokes, and authenticates API credentials.
type KeyService struct {
	keys     ports.KeyStore
	projects ports.ProjectStore
	hasher   ports.Hasher
	clock    ports.Clock
	idGen    ports.IDGenerator
	metrics  *metrics.Collector
}

// NewKeyService creates a new key service.
func NewKeyService(deps KeyDeps) *KeyService {
	return &KeyService{
		keys:     deps.Keys,
		projects: deps.Projects,
		hasher:   deps.Hasher,
		clock:    deps.Clock,
		idGen:    deps.IDGen,
		metrics:  deps.Metrics,
	}
}

// Mint issues a new key for a project. The raw key is returned exactly
// once and never stored.
func (s *KeyService) Mint(ctx context.Context, projectID, name string) (string, key.Key, error) {
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		return "", key.Key{}, fmt.Errorf("lookup project %s: %w", projectID, err)
	}

	rawKey, k := key.Generate(s.idGen.New(), projectID, name, s.clock.Now())
	hash, err := s.hasher.Hash(rawKey)
	if err != nil {
		return "", key.Key{}, fmt.Errorf("hash key: %w", err)
	}
	k.Hash = hash

	if err := s.keys.Create(ctx, k); err != nil {
		return "", key.Key{}, fmt.Errorf("store key: %w", err)
	}
	return rawKey, k, nil
}

// Revoke marks a key as revoked, effective immediately.
func (s *KeyService) Revoke(ctx context.Context, keyID string) error {
	return s.keys.Revoke(ctx, keyID, s.clock.Now())
}

// ListByProject returns a project's keys, newest first.
func (s *KeyService) ListByProject(ctx context.Context, projectID string) ([]key.Key, error) {
	return s.keys.ListByProject(ctx, projectID)
}

// Authenticate resolves a raw key to its stored credential.
//
// The failure reason is internal only: callers surface every rejection
// as the same generic unauthorized response. A non-nil error means the
// key store itself failed and the caller should answer with a retryable
// server fault rather than a rejection.
func (s *KeyService) Authenticate(ctx context.Context, rawKey string) (key.ValidationResult, error) {
	now := s.clock.Now()

	// 1. Format check before any store lookup
	prefix, ok := key.ValidateFormat(rawKey)
	if !ok {
		return s.failure(key.ReasonBadFormat), nil
	}

	// 2. Candidate lookup by prefix
	candidates, err := s.keys.GetByPrefix(ctx, prefix)
	if err != nil {
		return key.ValidationResult{}, fmt.Errorf("lookup key by prefix: %w", err)
	}
	if len(candidates) == 0 {
		return s.failure(key.ReasonNotFound), nil
	}

	// 3. Match by hash comparison
	var matched key.Key
	found := false
	for _, k := range candidates {
		if s.hasher.Compare(k.Hash, rawKey) {
			matched = k
			found = true
			break
		}
	}
	if !found {
		return s.failure(key.ReasonNotFound), nil
	}

	// 4. Revocation check
	result := key.Validate(matched, now)
	if !result.Valid {
		return s.failure(result.Reason), nil
	}

	// Last-used is best effort: a write failure must not fail auth.
	_ = s.keys.UpdateLastUsed(ctx, matched.ID, now)
	return result, nil
}

func (s *KeyService) failure(reason string) key.ValidationResult {
	if s.metrics != nil {
		s.metrics.AuthFailures.WithLabelValues(reason).Inc()
	}
	return key.ValidationResult{Valid: false, Reason: reason}
}
