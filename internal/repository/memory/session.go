// Package memory provides a mutex-guarded in-memory session store. It backs
// unit tests and single-process development runs; production uses the Redis
// implementation.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sandesh333-sw/Unyt/internal/domain"
)

// SessionStore implements repository.SessionStore in process memory.
type SessionStore struct {
	mu      sync.Mutex
	records map[string]domain.SessionRecord // fingerprint -> record
}

// NewSessionStore creates an empty in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{records: make(map[string]domain.SessionRecord)}
}

// Put stores a session record keyed by its fingerprint.
func (s *SessionStore) Put(ctx context.Context, rec domain.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Fingerprint] = rec
	return nil
}

// RemoveIfPresent deletes the record under the mutex, so concurrent calls
// with the same fingerprint see exactly one true.
func (s *SessionStore) RemoveIfPresent(ctx context.Context, fingerprint string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[fingerprint]
	if !ok {
		return false, nil
	}
	delete(s.records, fingerprint)
	if rec.Expired(time.Now()) {
		return false, nil
	}
	return true, nil
}

// RemoveAll deletes every record for the account.
func (s *SessionStore) RemoveAll(ctx context.Context, accountID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for fp, rec := range s.records {
		if rec.AccountID == accountID {
			delete(s.records, fp)
			removed++
		}
	}
	return removed, nil
}

// List returns the account's live records ordered oldest first, dropping
// expired ones.
func (s *SessionStore) List(ctx context.Context, accountID string) ([]domain.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var records []domain.SessionRecord
	for fp, rec := range s.records {
		if rec.AccountID != accountID {
			continue
		}
		if rec.Expired(now) {
			delete(s.records, fp)
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	return records, nil
}
