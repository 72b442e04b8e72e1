package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/artpar/usageledger/domain/usage"
	"github.com/artpar/usageledger/ports"
)

// EventStore is an in-memory implementation of ports.EventStore.
// Events are held in insertion order.
type EventStore struct {
	mu     sync.RWMutex
	events []usage.Event

	// FailRecord makes Record return an error.
	FailRecord bool
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{}
}

// Record appends one priced event.
func (s *EventStore) Record(ctx context.Context, e usage.Event) error {
	if s.FailRecord {
		return fmt.Errorf("event store unavailable")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, e)
	return nil
}

// ListByDate returns all events on the given UTC date in insertion order.
func (s *EventStore) ListByDate(ctx context.Context, date time.Time) ([]usage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := usage.DateOf(date)
	var out []usage.Event
	for _, e := range s.events {
		if usage.DateOf(e.Timestamp).Equal(day) {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListByProject returns one page of a project's events within [from, to),
// newest first.
func (s *EventStore) ListByProject(ctx context.Context, projectID string, from, to time.Time, limit, offset int) ([]usage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.projectEvents(projectID, from, to)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountByProject returns how many of a project's events fall within
// [from, to).
func (s *EventStore) CountByProject(ctx context.Context, projectID string, from, to time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.projectEvents(projectID, from, to))), nil
}

func (s *EventStore) projectEvents(projectID string, from, to time.Time) []usage.Event {
	var out []usage.Event
	for _, e := range s.events {
		if e.ProjectID != projectID {
			continue
		}
		if e.Timestamp.Before(from) || !e.Timestamp.Before(to) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Len returns the number of stored events, for test assertions.
func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Ensure interface compliance.
var _ ports.EventStore = (*EventStore)(nil)
