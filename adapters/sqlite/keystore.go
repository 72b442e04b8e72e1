package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/artpar/usageledger/domain/key"
	"github.com/artpar/usageledger/ports"
)

// KeyStore implements ports.KeyStore using SQLite.
type KeyStore struct {
	db *DB
}

// NewKeyStore creates a new SQLite key store.
func NewKeyStore(db *DB) *KeyStore {
	return &KeyStore{db: db}
}

// GetByPrefix retrieves keys matching a prefix.
func (s *KeyStore) GetByPrefix(ctx context.Context, prefix string) ([]key.Key, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, hash, prefix, name, revoked_at, created_at, last_used
		FROM api_keys
		WHERE prefix = ?
	`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []key.Key
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Create stores a new key.
func (s *KeyStore) Create(ctx context.Context, k key.Key) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, project_id, hash, prefix, name, revoked_at, created_at, last_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, k.ID, k.ProjectID, k.Hash, k.Prefix, k.Name,
		nullTime(k.RevokedAt), formatTime(k.CreatedAt), nullTime(k.LastUsed))
	return err
}

// Revoke marks a key as revoked.
func (s *KeyStore) Revoke(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE api_keys SET revoked_at = ? WHERE id = ?
	`, formatTime(at), id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByProject returns all keys for a project.
func (s *KeyStore) ListByProject(ctx context.Context, projectID string) ([]key.Key, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, hash, prefix, name, revoked_at, created_at, last_used
		FROM api_keys
		WHERE project_id = ?
		ORDER BY created_at DESC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []key.Key
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// UpdateLastUsed updates the last used timestamp.
func (s *KeyStore) UpdateLastUsed(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE api_keys SET last_used = ? WHERE id = ?
	`, formatTime(at), id)
	return err
}

func scanKey(rows *sql.Rows) (key.Key, error) {
	var k key.Key
	var revokedAt, lastUsed sql.NullString
	var createdAt string

	err := rows.Scan(
		&k.ID, &k.ProjectID, &k.Hash, &k.Prefix, &k.Name,
		&revokedAt, &createdAt, &lastUsed,
	)
	if err != nil {
		return key.Key{}, err
	}

	if k.CreatedAt, err = parseTime(createdAt); err != nil {
		return key.Key{}, err
	}
	if k.RevokedAt, err = parseTimePtr(revokedAt); err != nil {
		return key.Key{}, err
	}
	if k.LastUsed, err = parseTimePtr(lastUsed); err != nil {
		return key.Key{}, err
	}
	return k, nil
}

// nullTime converts a *time.Time to its stored representation.
func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Ensure interface compliance.
var _ ports.KeyStore = (*KeyStore)(nil)
