// Package memory is an in-memory implementation of the scanner store,
// intended for tests and dev environments. It honors the same atomicity
// contract as the sqlite store: every operation, including the cross-table
// offline admit, happens under one lock acquisition.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ticketeer/scangate/internal/scangate/store"
)

type Store struct {
	mu          sync.Mutex
	tickets     map[string]store.CachedTicket
	validations map[string]store.ValidationRecord
	queue       map[string]store.SyncQueueItem
}

func New() *Store {
	return &Store{
		tickets:     make(map[string]store.CachedTicket),
		validations: make(map[string]store.ValidationRecord),
		queue:       make(map[string]store.SyncQueueItem),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) PutTicket(_ context.Context, t store.CachedTicket) error {
	t.Code = strings.TrimSpace(t.Code)
	if t.Code == "" {
		return nil
	}
	if t.CachedAt.IsZero() {
		t.CachedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[t.Code] = t
	return nil
}

func (s *Store) PutTicketsBulk(_ context.Context, ts []store.CachedTicket) error {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range ts {
		t.Code = strings.TrimSpace(t.Code)
		if t.Code == "" {
			continue
		}
		if t.CachedAt.IsZero() {
			t.CachedAt = now
		}
		s.tickets[t.Code] = t
	}
	return nil
}

func (s *Store) GetTicket(_ context.Context, code string) (store.CachedTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[strings.TrimSpace(code)]
	if !ok {
		return store.CachedTicket{}, store.ErrTicketNotFound
	}
	return t, nil
}

func (s *Store) SaveValidation(_ context.Context, v store.ValidationRecord) error {
	if v.Timestamp.IsZero() {
		v.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.validations[v.ID] = v
	return nil
}

func (s *Store) UnsyncedValidations(_ context.Context) ([]store.ValidationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.ValidationRecord
	for _, v := range s.validations {
		if !v.Synced {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (s *Store) MarkValidationSynced(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.validations[id]
	if !ok {
		return nil
	}
	v.Synced = true
	s.validations[id] = v
	return nil
}

func (s *Store) EnqueueSync(_ context.Context, item store.SyncQueueItem) error {
	if item.Kind == "" {
		item.Kind = "validation"
	}
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue[item.ID] = item
	return nil
}

func (s *Store) ListSyncQueue(_ context.Context) ([]store.SyncQueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.SyncQueueItem, 0, len(s.queue))
	for _, item := range s.queue {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EnqueuedAt.Equal(out[j].EnqueuedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].EnqueuedAt.Before(out[j].EnqueuedAt)
	})
	return out, nil
}

func (s *Store) DequeueSync(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queue, id)
	return nil
}

func (s *Store) IncrementSyncRetry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.queue[id]
	if !ok {
		return nil
	}
	item.RetryCount++
	s.queue[id] = item
	return nil
}

func (s *Store) RecordOfflineAdmit(_ context.Context, v store.ValidationRecord, item store.SyncQueueItem) error {
	now := time.Now().UTC()
	if v.Timestamp.IsZero() {
		v.Timestamp = now
	}
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = now
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = v.Timestamp
	}
	if item.Kind == "" {
		item.Kind = "validation"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[v.Code]
	if !ok || t.Status != "valid" {
		return store.ErrTicketAlreadyUsed
	}
	t.Status = "used"
	s.tickets[v.Code] = t
	s.validations[v.ID] = v
	s.queue[item.ID] = item
	return nil
}

func (s *Store) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets = make(map[string]store.CachedTicket)
	s.validations = make(map[string]store.ValidationRecord)
	s.queue = make(map[string]store.SyncQueueItem)
	return nil
}

func (s *Store) Stats(_ context.Context) (store.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := store.Stats{
		CachedTickets:    len(s.tickets),
		TotalValidations: len(s.validations),
		QueueDepth:       len(s.queue),
	}
	for _, v := range s.validations {
		if !v.Synced {
			st.Unsynced++
		}
	}
	for _, item := range s.queue {
		if item.RetryCount > st.MaxQueueRetry {
			st.MaxQueueRetry = item.RetryCount
		}
	}
	return st, nil
}
