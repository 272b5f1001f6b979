package mailAuth

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Sreyas108/mailAuth/internal"
)

const (
	verificationRecordVersionV1 = 1
)

var (
	errVerificationNotFound         = errors.New("verification record not found")
	errVerificationSecretMismatch   = errors.New("verification secret mismatch")
	errVerificationRedisUnavailable = errors.New("verification redis unavailable")
)

// emailVerificationRecord holds the bcrypt hash of an emailed verification
// link token. One record per user; reissuing replaces it.
type emailVerificationRecord struct {
	SecretHash []byte
	ExpiresAt  int64
}

// emailVerificationStore keys records by user id under "<prefix>v:".
// Expiry is enforced twice: a Redis TTL on the key, and a read-time check
// against ExpiresAt so a missing or late eviction cannot stretch the window.
type emailVerificationStore struct {
	redis  redis.UniversalClient
	prefix string
}

func newEmailVerificationStore(redisClient redis.UniversalClient, prefix string) *emailVerificationStore {
	return &emailVerificationStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *emailVerificationStore) key(userID string) string {
	return s.prefix + "v:" + userID
}

// Save writes the record, replacing any prior token for the user.
func (s *emailVerificationStore) Save(
	ctx context.Context,
	userID string,
	record *emailVerificationRecord,
	ttl time.Duration,
) error {
	encoded, err := encodeEmailVerificationRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(userID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errVerificationRedisUnavailable, err)
	}

	return nil
}

// Consume validates the presented token against the stored hash and deletes
// the record on success. The record survives a mismatch so a typoed link
// does not burn the real one.
func (s *emailVerificationStore) Consume(ctx context.Context, userID, token string) error {
	key := s.key(userID)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return errVerificationNotFound
		}
		return fmt.Errorf("%w: %v", errVerificationRedisUnavailable, err)
	}

	record, err := decodeEmailVerificationRecord(data)
	if err != nil {
		return fmt.Errorf("%w: %v", errVerificationRedisUnavailable, err)
	}

	if time.Now().Unix() > record.ExpiresAt {
		s.redis.Del(ctx, key)
		return errVerificationNotFound
	}

	if !internal.CompareLinkSecret(record.SecretHash, token) {
		return errVerificationSecretMismatch
	}

	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", errVerificationRedisUnavailable, err)
	}

	return nil
}

// Delete drops the record unconditionally.
func (s *emailVerificationStore) Delete(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errVerificationRedisUnavailable, err)
	}
	return nil
}

func encodeEmailVerificationRecord(record *emailVerificationRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(verificationRecordVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.SecretHash) > 255 {
		return nil, errors.New("verification record hash too long")
	}
	buf.WriteByte(byte(len(record.SecretHash)))
	buf.Write(record.SecretHash)

	return buf.Bytes(), nil
}

func decodeEmailVerificationRecord(data []byte) (*emailVerificationRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != verificationRecordVersionV1 {
		return nil, errors.New("invalid verification record version")
	}

	record := &emailVerificationRecord{}

	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	hashLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	record.SecretHash = make([]byte, hashLen)
	if _, err := io.ReadFull(reader, record.SecretHash); err != nil {
		return nil, err
	}

	return record, nil
}
