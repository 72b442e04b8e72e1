// Package usage provides priced usage event types and rollup derivation.
// Events are financial records: immutable once created, never deleted.
// All functions are pure - no side effects.
package usage

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Environment tags where a call originated. The set is closed.
type Environment string

const (
	EnvDev  Environment = "dev"
	EnvProd Environment = "prod"
)

// Valid reports whether e is one of the known environments.
func (e Environment) Valid() bool {
	return e == EnvDev || e == EnvProd
}

// Event represents a single priced API call (immutable value type).
// CostUSD is computed server-side by the pricing table, never supplied by
// a caller, and TotalTokens always equals InputTokens+OutputTokens.
type Event struct {
	ID           string
	ProjectID    string // owning credential scope; empty = pre-provisioning data
	Timestamp    time.Time
	Provider     string
	Model        string
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	CostUSD      decimal.Decimal
	LatencyMs    int64
	Endpoint     string
	Environment  Environment
	UserID       string            // optional end-user attribution
	Metadata     map[string]string // optional free-form attributes
}

// Params carries the caller-supplied portion of an event. Everything
// derived (id, timestamp, total, cost) is added at ingestion.
type Params struct {
	Provider     string
	Model        string
	InputTokens  int64
	OutputTokens int64
	LatencyMs    int64
	Endpoint     string
	Environment  Environment
	UserID       string
	Metadata     map[string]string
}

// Validation failures for caller-supplied fields.
var (
	ErrNegativeTokens     = errors.New("token counts must be non-negative")
	ErrNegativeLatency    = errors.New("latency must be non-negative")
	ErrMissingProvider    = errors.New("provider is required")
	ErrMissingModel       = errors.New("model is required")
	ErrMissingEndpoint    = errors.New("endpoint is required")
	ErrInvalidEnvironment = errors.New(`environment must be "dev" or "prod"`)
)

// Validate checks the caller-supplied fields. These are all
// client-correctable conditions, never server faults.
func (p Params) Validate() error {
	if p.Provider == "" {
		return ErrMissingProvider
	}
	if p.Model == "" {
		return ErrMissingModel
	}
	if p.Endpoint == "" {
		return ErrMissingEndpoint
	}
	if p.InputTokens < 0 || p.OutputTokens < 0 {
		return ErrNegativeTokens
	}
	if p.LatencyMs < 0 {
		return ErrNegativeLatency
	}
	if !p.Environment.Valid() {
		return fmt.Errorf("%w, got %q", ErrInvalidEnvironment, p.Environment)
	}
	return nil
}

// NewEvent assembles a priced event from validated params. Timestamps are
// normalized to UTC; TotalTokens is derived here so the invariant holds by
// construction.
func NewEvent(id, projectID string, at time.Time, p Params, costUSD decimal.Decimal) Event {
	return Event{
		ID:           id,
		ProjectID:    projectID,
		Timestamp:    at.UTC(),
		Provider:     p.Provider,
		Model:        p.Model,
		InputTokens:  p.InputTokens,
		OutputTokens: p.OutputTokens,
		TotalTokens:  p.InputTokens + p.OutputTokens,
		CostUSD:      costUSD,
		LatencyMs:    p.LatencyMs,
		Endpoint:     p.Endpoint,
		Environment:  p.Environment,
		UserID:       p.UserID,
		Metadata:     p.Metadata,
	}
}

// DateOf floors a timestamp to its UTC calendar date (midnight UTC).
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
