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
	resetRecordVersionV1 = 1
)

var (
	errResetNotFound         = errors.New("reset record not found")
	errResetSecretMismatch   = errors.New("reset secret mismatch")
	errResetRedisUnavailable = errors.New("reset redis unavailable")
)

// passwordResetRecord holds the bcrypt hash of an emailed reset link token.
// One record per user; a new forgot-password request replaces it, which is
// what invalidates any previously issued link.
type passwordResetRecord struct {
	SecretHash []byte
	ExpiresAt  int64
}

// passwordResetStore keys records by user id under "<prefix>r:". Tokens are
// single use: Verify is a read-only gate, Delete consumes.
type passwordResetStore struct {
	redis  redis.UniversalClient
	prefix string
}

func newPasswordResetStore(redisClient redis.UniversalClient, prefix string) *passwordResetStore {
	return &passwordResetStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *passwordResetStore) key(userID string) string {
	return s.prefix + "r:" + userID
}

// Save writes the record, replacing any prior reset token for the user.
func (s *passwordResetStore) Save(
	ctx context.Context,
	userID string,
	record *passwordResetRecord,
	ttl time.Duration,
) error {
	encoded, err := encodePasswordResetRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(userID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errResetRedisUnavailable, err)
	}

	return nil
}

// Verify checks the presented token against the stored hash without
// consuming it. The reset flow calls this as a gate before accepting the
// new password; the record is deleted only after the password mutation.
func (s *passwordResetStore) Verify(ctx context.Context, userID, token string) error {
	data, err := s.redis.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return errResetNotFound
		}
		return fmt.Errorf("%w: %v", errResetRedisUnavailable, err)
	}

	record, err := decodePasswordResetRecord(data)
	if err != nil {
		return fmt.Errorf("%w: %v", errResetRedisUnavailable, err)
	}

	if time.Now().Unix() > record.ExpiresAt {
		s.redis.Del(ctx, s.key(userID))
		return errResetNotFound
	}

	if !internal.CompareLinkSecret(record.SecretHash, token) {
		return errResetSecretMismatch
	}

	return nil
}

// Delete consumes the record. Also the compensation path when the reset
// email cannot be sent, so no orphaned valid token survives.
func (s *passwordResetStore) Delete(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errResetRedisUnavailable, err)
	}
	return nil
}

func encodePasswordResetRecord(record *passwordResetRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(resetRecordVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.SecretHash) > 255 {
		return nil, errors.New("reset record hash too long")
	}
	buf.WriteByte(byte(len(record.SecretHash)))
	buf.Write(record.SecretHash)

	return buf.Bytes(), nil
}

func decodePasswordResetRecord(data []byte) (*passwordResetRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != resetRecordVersionV1 {
		return nil, errors.New("invalid reset record version")
	}

	record := &passwordResetRecord{}

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
