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
	codeRecordVersionV1 = 1
)

var (
	errCodeNotFound         = errors.New("sign-in code not found")
	errCodeMismatch         = errors.New("sign-in code mismatch")
	errCodeRedisUnavailable = errors.New("sign-in code redis unavailable")
)

// signInCodeRecord holds the SHA-256 digest of the emailed 5 digit code.
type signInCodeRecord struct {
	CodeHash  [32]byte
	ExpiresAt int64
}

// signInCodeStore keys records by user id under "<prefix>c:". A plain SET
// replaces any prior code, so only the most recently issued code for a user
// can ever validate.
type signInCodeStore struct {
	redis  redis.UniversalClient
	prefix string
}

func newSignInCodeStore(redisClient redis.UniversalClient, prefix string) *signInCodeStore {
	return &signInCodeStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *signInCodeStore) key(userID string) string {
	return s.prefix + "c:" + userID
}

// Save writes the record, replacing any outstanding code for the user.
func (s *signInCodeStore) Save(
	ctx context.Context,
	userID string,
	record *signInCodeRecord,
	ttl time.Duration,
) error {
	encoded, err := encodeSignInCodeRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(userID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errCodeRedisUnavailable, err)
	}

	return nil
}

// Consume validates the presented code and deletes the record on a match.
// A mismatch leaves the record in place for a retry within the TTL.
func (s *signInCodeStore) Consume(ctx context.Context, userID, code string) error {
	key := s.key(userID)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return errCodeNotFound
		}
		return fmt.Errorf("%w: %v", errCodeRedisUnavailable, err)
	}

	record, err := decodeSignInCodeRecord(data)
	if err != nil {
		return fmt.Errorf("%w: %v", errCodeRedisUnavailable, err)
	}

	if time.Now().Unix() > record.ExpiresAt {
		s.redis.Del(ctx, key)
		return errCodeNotFound
	}

	if !internal.CompareSignInCode(record.CodeHash, code) {
		return errCodeMismatch
	}

	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", errCodeRedisUnavailable, err)
	}

	return nil
}

// Delete drops any outstanding code for the user.
func (s *signInCodeStore) Delete(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errCodeRedisUnavailable, err)
	}
	return nil
}

func encodeSignInCodeRecord(record *signInCodeRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(codeRecordVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	buf.Write(record.CodeHash[:])

	return buf.Bytes(), nil
}

func decodeSignInCodeRecord(data []byte) (*signInCodeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != codeRecordVersionV1 {
		return nil, errors.New("invalid sign-in code record version")
	}

	record := &signInCodeRecord{}

	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, record.CodeHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
