package mailAuth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var errSignInLogRedisUnavailable = errors.New("sign-in log redis unavailable")

// signInLogStore appends sign-in attempt entries to a per-user Redis list
// under "<prefix>l:". The list is append-only: nothing in the engine ever
// rewrites or deletes entries. Entries are stored as JSON since the log is
// a reporting surface, not a hot-path record.
type signInLogStore struct {
	redis  redis.UniversalClient
	prefix string
}

func newSignInLogStore(redisClient redis.UniversalClient, prefix string) *signInLogStore {
	return &signInLogStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *signInLogStore) key(userID string) string {
	return s.prefix + "l:" + userID
}

// Append records one attempt. Failures here must not fail the sign-in
// itself; callers treat the returned error as advisory.
func (s *signInLogStore) Append(ctx context.Context, entry SignInLogEntry) error {
	encoded, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	if err := s.redis.RPush(ctx, s.key(entry.UserID), encoded).Err(); err != nil {
		return fmt.Errorf("%w: %v", errSignInLogRedisUnavailable, err)
	}

	return nil
}

// Recent returns up to limit entries, newest first. limit <= 0 returns the
// whole log.
func (s *signInLogStore) Recent(ctx context.Context, userID string, limit int) ([]SignInLogEntry, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}

	raw, err := s.redis.LRange(ctx, s.key(userID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errSignInLogRedisUnavailable, err)
	}

	entries := make([]SignInLogEntry, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var entry SignInLogEntry
		if err := json.Unmarshal([]byte(raw[i]), &entry); err != nil {
			// Skip undecodable entries rather than fail the whole read.
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
