// Package redis implements the session store on Redis. Records live under
// per-fingerprint keys with native TTLs, so expired sessions disappear
// without a sweeper; a per-account set indexes fingerprints for RemoveAll
// and List.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sandesh333-sw/Unyt/internal/domain"
	apperrors "github.com/sandesh333-sw/Unyt/pkg/errors"
)

const (
	recordKeyPrefix = "session:fp:"
	indexKeyPrefix  = "session:acct:"
)

// SessionStore implements repository.SessionStore on Redis.
type SessionStore struct {
	client *redis.Client
}

// NewSessionStore creates a Redis-backed session store.
func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func recordKey(fingerprint string) string { return recordKeyPrefix + fingerprint }
func indexKey(accountID string) string    { return indexKeyPrefix + accountID }

// Put stores a session record under its fingerprint with a TTL matching the
// record's expiry, and adds the fingerprint to the account index.
func (s *SessionStore) Put(ctx context.Context, rec domain.SessionRecord) error {
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return apperrors.InvalidInput("session record already expired")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, recordKey(rec.Fingerprint), data, ttl)
	pipe.SAdd(ctx, indexKey(rec.AccountID), rec.Fingerprint)
	// The index outlives the longest-lived record it references; stale
	// members are pruned by List.
	pipe.Expire(ctx, indexKey(rec.AccountID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.StorageUnavailable(err)
	}

	return nil
}

// RemoveIfPresent atomically deletes the record with the given fingerprint.
// GETDEL guarantees that of any number of concurrent calls, exactly one
// observes the record.
func (s *SessionStore) RemoveIfPresent(ctx context.Context, fingerprint string) (bool, error) {
	data, err := s.client.GetDel(ctx, recordKey(fingerprint)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.StorageUnavailable(err)
	}

	var rec domain.SessionRecord
	if err := json.Unmarshal([]byte(data), &rec); err == nil && rec.AccountID != "" {
		_ = s.client.SRem(ctx, indexKey(rec.AccountID), fingerprint).Err()
	}

	return true, nil
}

// RemoveAll deletes every record for the account and returns how many live
// records were removed.
func (s *SessionStore) RemoveAll(ctx context.Context, accountID string) (int, error) {
	fingerprints, err := s.client.SMembers(ctx, indexKey(accountID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, apperrors.StorageUnavailable(err)
	}
	if len(fingerprints) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(fingerprints)+1)
	for _, fp := range fingerprints {
		keys = append(keys, recordKey(fp))
	}
	removed, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, apperrors.StorageUnavailable(err)
	}
	if err := s.client.Del(ctx, indexKey(accountID)).Err(); err != nil {
		return int(removed), apperrors.StorageUnavailable(err)
	}

	return int(removed), nil
}

// List returns the account's live records ordered oldest first. Index members
// whose record key has expired are pruned as a side effect.
func (s *SessionStore) List(ctx context.Context, accountID string) ([]domain.SessionRecord, error) {
	fingerprints, err := s.client.SMembers(ctx, indexKey(accountID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, apperrors.StorageUnavailable(err)
	}
	if len(fingerprints) == 0 {
		return nil, nil
	}

	keys := make([]string, len(fingerprints))
	for i, fp := range fingerprints {
		keys[i] = recordKey(fp)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, apperrors.StorageUnavailable(err)
	}

	records := make([]domain.SessionRecord, 0, len(values))
	for i, v := range values {
		if v == nil {
			// Record expired; drop the dangling index member.
			_ = s.client.SRem(ctx, indexKey(accountID), fingerprints[i]).Err()
			continue
		}
		str, ok := v.(string)
		if !ok {
			continue
		}
		var rec domain.SessionRecord
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal session record: %w", err)
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	return records, nil
}
