package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/artpar/usageledger/domain/usage"
	"github.com/artpar/usageledger/ports"
)

// RollupStore implements ports.RollupStore using SQLite.
//
// All rows of one recompute are written in a single transaction so a
// reader never observes one rollup relation updated for a date while
// another is stale.
type RollupStore struct {
	db *DB
}

// NewRollupStore creates a new SQLite rollup store.
func NewRollupStore(db *DB) *RollupStore {
	return &RollupStore{db: db}
}

// UpsertSet writes every row of the set keyed by its grouping dimensions.
// Existing rows are overwritten with the fresh derivation; nothing is
// deleted. An error on any row rolls back the whole set.
func (s *RollupStore) UpsertSet(ctx context.Context, set usage.RollupSet, updatedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rollup upsert: %w", err)
	}
	defer tx.Rollback()

	at := formatTime(updatedAt)

	for _, r := range set.Daily {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO daily_rollups (date, environment, project_id, total_cost_usd, total_tokens, request_count, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(date, environment, project_id) DO UPDATE SET
				total_cost_usd = excluded.total_cost_usd,
				total_tokens = excluded.total_tokens,
				request_count = excluded.request_count,
				updated_at = excluded.updated_at
		`, formatDate(r.Date), string(r.Environment), r.ProjectID,
			r.TotalCostUSD.String(), r.TotalTokens, r.RequestCount, at)
		if err != nil {
			return fmt.Errorf("upsert daily rollup: %w", err)
		}
	}

	for _, r := range set.Model {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO model_rollups (date, model, environment, project_id, total_cost_usd, total_tokens, request_count, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(date, model, environment, project_id) DO UPDATE SET
				total_cost_usd = excluded.total_cost_usd,
				total_tokens = excluded.total_tokens,
				request_count = excluded.request_count,
				updated_at = excluded.updated_at
		`, formatDate(r.Date), r.Model, string(r.Environment), r.ProjectID,
			r.TotalCostUSD.String(), r.TotalTokens, r.RequestCount, at)
		if err != nil {
			return fmt.Errorf("upsert model rollup: %w", err)
		}
	}

	for _, r := range set.Endpoint {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO endpoint_rollups (date, endpoint, environment, project_id, total_cost_usd, request_count, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(date, endpoint, environment, project_id) DO UPDATE SET
				total_cost_usd = excluded.total_cost_usd,
				request_count = excluded.request_count,
				updated_at = excluded.updated_at
		`, formatDate(r.Date), r.Endpoint, string(r.Environment), r.ProjectID,
			r.TotalCostUSD.String(), r.RequestCount, at)
		if err != nil {
			return fmt.Errorf("upsert endpoint rollup: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rollup upsert: %w", err)
	}
	return nil
}

// DailyCosts returns per-day rollups for a project ordered by date.
func (s *RollupStore) DailyCosts(ctx context.Context, projectID string, from, to time.Time) ([]usage.DailyRollup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, environment, project_id, total_cost_usd, total_tokens, request_count
		FROM daily_rollups
		WHERE project_id = ? AND date >= ? AND date < ?
		ORDER BY date, environment
	`, projectID, formatDate(from), formatDate(to))
	if err != nil {
		return nil, fmt.Errorf("query daily rollups: %w", err)
	}
	defer rows.Close()

	var out []usage.DailyRollup
	for rows.Next() {
		var (
			r    usage.DailyRollup
			date string
			cost string
			env  string
		)
		if err := rows.Scan(&date, &env, &r.ProjectID, &cost, &r.TotalTokens, &r.RequestCount); err != nil {
			return nil, fmt.Errorf("scan daily rollup: %w", err)
		}
		if r.Date, err = parseDate(date); err != nil {
			return nil, fmt.Errorf("parse rollup date: %w", err)
		}
		if r.TotalCostUSD, err = decimal.NewFromString(cost); err != nil {
			return nil, fmt.Errorf("parse rollup cost: %w", err)
		}
		r.Environment = usage.Environment(env)
		out = append(out, r)
	}
	return out, rowsErr(rows, "daily rollups")
}

// ModelCosts returns per-model rollups for a project and date range.
func (s *RollupStore) ModelCosts(ctx context.Context, projectID string, from, to time.Time) ([]usage.ModelRollup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, model, environment, project_id, total_cost_usd, total_tokens, request_count
		FROM model_rollups
		WHERE project_id = ? AND date >= ? AND date < ?
		ORDER BY date, model, environment
	`, projectID, formatDate(from), formatDate(to))
	if err != nil {
		return nil, fmt.Errorf("query model rollups: %w", err)
	}
	defer rows.Close()

	var out []usage.ModelRollup
	for rows.Next() {
		var (
			r    usage.ModelRollup
			date string
			cost string
			env  string
		)
		if err := rows.Scan(&date, &r.Model, &env, &r.ProjectID, &cost, &r.TotalTokens, &r.RequestCount); err != nil {
			return nil, fmt.Errorf("scan model rollup: %w", err)
		}
		if r.Date, err = parseDate(date); err != nil {
			return nil, fmt.Errorf("parse rollup date: %w", err)
		}
		if r.TotalCostUSD, err = decimal.NewFromString(cost); err != nil {
			return nil, fmt.Errorf("parse rollup cost: %w", err)
		}
		r.Environment = usage.Environment(env)
		out = append(out, r)
	}
	return out, rowsErr(rows, "model rollups")
}

// EndpointCosts returns per-endpoint rollups for a project and date range.
func (s *RollupStore) EndpointCosts(ctx context.Context, projectID string, from, to time.Time) ([]usage.EndpointRollup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, endpoint, environment, project_id, total_cost_usd, request_count
		FROM endpoint_rollups
		WHERE project_id = ? AND date >= ? AND date < ?
		ORDER BY date, endpoint, environment
	`, projectID, formatDate(from), formatDate(to))
	if err != nil {
		return nil, fmt.Errorf("query endpoint rollups: %w", err)
	}
	defer rows.Close()

	var out []usage.EndpointRollup
	for rows.Next() {
		var (
			r    usage.EndpointRollup
			date string
			cost string
			env  string
		)
		if err := rows.Scan(&date, &r.Endpoint, &env, &r.ProjectID, &cost, &r.RequestCount); err != nil {
			return nil, fmt.Errorf("scan endpoint rollup: %w", err)
		}
		if r.Date, err = parseDate(date); err != nil {
			return nil, fmt.Errorf("parse rollup date: %w", err)
		}
		if r.TotalCostUSD, err = decimal.NewFromString(cost); err != nil {
			return nil, fmt.Errorf("parse rollup cost: %w", err)
		}
		r.Environment = usage.Environment(env)
		out = append(out, r)
	}
	return out, rowsErr(rows, "endpoint rollups")
}

func rowsErr(rows *sql.Rows, what string) error {
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", what, err)
	}
	return nil
}

// Ensure interface compliance.
var _ ports.RollupStore = (*RollupStore)(nil)
