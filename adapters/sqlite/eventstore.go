package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/artpar/usageledger/domain/usage"
	"github.com/artpar/usageledger/ports"
)

// EventStore implements ports.EventStore using SQLite.
// usage_events is append-only: this adapter issues INSERTs and SELECTs,
// never UPDATE or DELETE.
type EventStore struct {
	db *DB
}

// NewEventStore creates a new SQLite event store.
func NewEventStore(db *DB) *EventStore {
	return &EventStore{db: db}
}

const eventColumns = `id, project_id, timestamp, provider, model,
	input_tokens, output_tokens, total_tokens, cost_usd,
	latency_ms, endpoint, environment, user_id, metadata`

// Record appends one priced event.
func (s *EventStore) Record(ctx context.Context, e usage.Event) error {
	var metadata any
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("encode event metadata: %w", err)
		}
		metadata = string(raw)
	}

	var userID any
	if e.UserID != "" {
		userID = e.UserID
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID, e.ProjectID, formatTime(e.Timestamp), e.Provider, e.Model,
		e.InputTokens, e.OutputTokens, e.TotalTokens, e.CostUSD.String(),
		e.LatencyMs, e.Endpoint, string(e.Environment), userID, metadata,
	)
	if err != nil {
		return fmt.Errorf("record usage event: %w", err)
	}
	return nil
}

// ListByDate returns all events on the given UTC calendar date in
// insertion order.
func (s *EventStore) ListByDate(ctx context.Context, date time.Time) ([]usage.Event, error) {
	start := usage.DateOf(date)
	end := start.Add(24 * time.Hour)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM usage_events
		WHERE timestamp >= ? AND timestamp < ?
		ORDER BY timestamp, id
	`, formatTime(start), formatTime(end))
	if err != nil {
		return nil, fmt.Errorf("list events by date: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListByProject returns one page of a project's events within [from, to),
// newest first.
func (s *EventStore) ListByProject(ctx context.Context, projectID string, from, to time.Time, limit, offset int) ([]usage.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM usage_events
		WHERE project_id = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`, projectID, formatTime(from), formatTime(to), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list events by project: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// CountByProject returns how many of a project's events fall within
// [from, to).
func (s *EventStore) CountByProject(ctx context.Context, projectID string, from, to time.Time) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM usage_events
		WHERE project_id = ? AND timestamp >= ? AND timestamp < ?
	`, projectID, formatTime(from), formatTime(to)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count events by project: %w", err)
	}
	return count, nil
}

func scanEvents(rows *sql.Rows) ([]usage.Event, error) {
	var events []usage.Event
	for rows.Next() {
		var (
			e        usage.Event
			ts       string
			cost     string
			env      string
			userID   sql.NullString
			metadata sql.NullString
		)
		err := rows.Scan(
			&e.ID, &e.ProjectID, &ts, &e.Provider, &e.Model,
			&e.InputTokens, &e.OutputTokens, &e.TotalTokens, &cost,
			&e.LatencyMs, &e.Endpoint, &env, &userID, &metadata,
		)
		if err != nil {
			return nil, fmt.Errorf("scan usage event: %w", err)
		}

		if e.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("parse event timestamp: %w", err)
		}
		if e.CostUSD, err = decimal.NewFromString(cost); err != nil {
			return nil, fmt.Errorf("parse event cost: %w", err)
		}
		e.Environment = usage.Environment(env)
		e.UserID = userID.String
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode event metadata: %w", err)
			}
		}

		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage events: %w", err)
	}
	return events, nil
}

// Ensure interface compliance.
var _ ports.EventStore = (*EventStore)(nil)
