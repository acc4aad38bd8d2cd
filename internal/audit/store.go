// Package audit records immutable audit events, evaluates compliance rules
// over them and answers filtered queries.
package audit

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finstream/finstream/pkg/models"
)

// ErrValidation marks malformed audit events rejected before storage.
var ErrValidation = errors.New("invalid audit event")

// Filter narrows a Query. Zero-valued fields match everything.
type Filter struct {
	EventType string
	Service   string
	UserID    string
	From      time.Time
	To        time.Time
}

// Store is the append-only, capacity-bounded audit log. When the retained
// window is full the oldest event is evicted FIFO. That eviction stands in
// for handoff to a durable archive and is not correctness-critical; see
// Archive for the optional durable sink.
type Store struct {
	mu       sync.RWMutex
	events   []models.AuditEvent
	capacity int
}

// NewStore creates a store retaining up to capacity events.
func NewStore(capacity int) *Store {
	if capacity < 1 {
		capacity = 1
	}
	return &Store{capacity: capacity}
}

// Store validates the event, assigns an eventId and timestamp when absent,
// and appends it to the retained window. Well-formed input never fails.
func (s *Store) Store(event models.AuditEvent) (models.AuditEvent, error) {
	if event.EventType == "" {
		return models.AuditEvent{}, fmt.Errorf("%w: eventType is required", ErrValidation)
	}
	if event.Service == "" {
		return models.AuditEvent{}, fmt.Errorf("%w: service is required", ErrValidation)
	}
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) >= s.capacity {
		s.events = s.events[1:]
	}
	s.events = append(s.events, event)
	return event, nil
}

// Query returns the retained events matching the filter, in insertion order,
// most recent last.
func (s *Store) Query(filter Filter) []models.AuditEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]models.AuditEvent, 0, len(s.events))
	for _, e := range s.events {
		if filter.EventType != "" && e.EventType != filter.EventType {
			continue
		}
		if filter.Service != "" && e.Service != filter.Service {
			continue
		}
		if filter.UserID != "" && e.UserID != filter.UserID {
			continue
		}
		if !filter.From.IsZero() && e.Timestamp.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.Timestamp.After(filter.To) {
			continue
		}
		matched = append(matched, e)
	}
	return matched
}

// Len reports the number of retained events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
