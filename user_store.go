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
)

const (
	userRecordVersionV1 = 1

	maxUserStringLen = 65535
)

var (
	errUserRecordNotFound    = errors.New("user record not found")
	errUserDuplicateEmail    = errors.New("user email already registered")
	errUserRedisUnavailable  = errors.New("user redis unavailable")
	errUserRecordMalformed   = errors.New("user record malformed")
	errUserSessionNotPresent = errors.New("session not present")
)

// userStore persists user records as version-tagged binary blobs under
// "<prefix>u:<id>", with a separate "<prefix>e:<email>" index mapping the
// normalized email to the user id. The index key is written with SETNX so
// two concurrent signups for the same email cannot both succeed.
type userStore struct {
	redis  redis.UniversalClient
	prefix string
}

func newUserStore(redisClient redis.UniversalClient, prefix string) *userStore {
	return &userStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *userStore) userKey(userID string) string {
	return s.prefix + "u:" + userID
}

func (s *userStore) emailKey(email string) string {
	return s.prefix + "e:" + email
}

// Create persists a new user. Fails with errUserDuplicateEmail when the
// email index already points at another user.
func (s *userStore) Create(ctx context.Context, user *User) error {
	encoded, err := encodeUserRecord(user)
	if err != nil {
		return err
	}

	claimed, err := s.redis.SetNX(ctx, s.emailKey(user.Email), user.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", errUserRedisUnavailable, err)
	}
	if !claimed {
		return errUserDuplicateEmail
	}

	if err := s.redis.Set(ctx, s.userKey(user.ID), encoded, 0).Err(); err != nil {
		// Release the index claim so a retry is possible.
		s.redis.Del(ctx, s.emailKey(user.Email))
		return fmt.Errorf("%w: %v", errUserRedisUnavailable, err)
	}

	return nil
}

// Delete removes the user blob and its email index entry. Used as the
// signup compensation path when the verification email cannot be sent.
func (s *userStore) Delete(ctx context.Context, user *User) error {
	if err := s.redis.Del(ctx, s.userKey(user.ID), s.emailKey(user.Email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errUserRedisUnavailable, err)
	}
	return nil
}

func (s *userStore) FindByID(ctx context.Context, userID string) (*User, error) {
	data, err := s.redis.Get(ctx, s.userKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errUserRecordNotFound
		}
		return nil, fmt.Errorf("%w: %v", errUserRedisUnavailable, err)
	}

	user, err := decodeUserRecord(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errUserRecordMalformed, err)
	}
	return user, nil
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	userID, err := s.redis.Get(ctx, s.emailKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errUserRecordNotFound
		}
		return nil, fmt.Errorf("%w: %v", errUserRedisUnavailable, err)
	}

	return s.FindByID(ctx, userID)
}

// Save overwrites the user blob and stamps UpdatedAt. Session-list races
// between concurrent writers resolve last-write-wins; at worst a
// concurrently appended session is dropped, never corrupted.
func (s *userStore) Save(ctx context.Context, user *User) error {
	user.UpdatedAt = time.Now()

	encoded, err := encodeUserRecord(user)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.userKey(user.ID), encoded, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", errUserRedisUnavailable, err)
	}
	return nil
}

// MarkVerified flips the verified flag and returns the updated record.
func (s *userStore) MarkVerified(ctx context.Context, userID string) (*User, error) {
	user, err := s.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.Verified = true
	if err := s.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SetPassword replaces the stored hash and clears every session.
func (s *userStore) SetPassword(ctx context.Context, userID, passwordHash string) (*User, error) {
	user, err := s.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = passwordHash
	user.Sessions = nil
	if err := s.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// AppendSession adds a session record to the user's list.
func (s *userStore) AppendSession(ctx context.Context, userID string, session SessionRecord) (*User, error) {
	user, err := s.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.Sessions = append(user.Sessions, session)
	if err := s.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// RemoveSession deletes the session holding the given refresh token.
// Fails with errUserSessionNotPresent when no session carries it.
func (s *userStore) RemoveSession(ctx context.Context, userID, refreshToken string) error {
	user, err := s.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	kept := user.Sessions[:0]
	removed := false
	for _, session := range user.Sessions {
		if !removed && session.RefreshToken == refreshToken {
			removed = true
			continue
		}
		kept = append(kept, session)
	}
	if !removed {
		return errUserSessionNotPresent
	}

	user.Sessions = kept
	return s.Save(ctx, user)
}

// ClearSessions drops the whole session list.
func (s *userStore) ClearSessions(ctx context.Context, userID string) (*User, error) {
	user, err := s.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.Sessions = nil
	if err := s.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// HasSession reports whether any session carries the refresh token.
func (u *User) HasSession(refreshToken string) bool {
	for _, session := range u.Sessions {
		if session.RefreshToken == refreshToken {
			return true
		}
	}
	return false
}

func encodeUserRecord(user *User) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(userRecordVersionV1)

	if err := writeUserString(&buf, user.ID); err != nil {
		return nil, err
	}
	if err := writeUserString(&buf, user.Email); err != nil {
		return nil, err
	}
	if err := writeUserString(&buf, user.Name); err != nil {
		return nil, err
	}
	if err := writeUserString(&buf, user.PasswordHash); err != nil {
		return nil, err
	}

	if user.Verified {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	if len(user.Roles) > maxUserStringLen {
		return nil, errors.New("user record role list too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(user.Roles))); err != nil {
		return nil, err
	}
	for _, role := range user.Roles {
		if err := writeUserString(&buf, string(role)); err != nil {
			return nil, err
		}
	}

	if len(user.Sessions) > maxUserStringLen {
		return nil, errors.New("user record session list too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(user.Sessions))); err != nil {
		return nil, err
	}
	for _, session := range user.Sessions {
		if err := writeUserString(&buf, session.RefreshToken); err != nil {
			return nil, err
		}
		if err := writeUserString(&buf, session.Location); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.BigEndian, session.IssuedAt.Unix()); err != nil {
			return nil, err
		}
	}

	if err := binary.Write(&buf, binary.BigEndian, user.CreatedAt.Unix()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, user.UpdatedAt.Unix()); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodeUserRecord(data []byte) (*User, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != userRecordVersionV1 {
		return nil, errors.New("invalid user record version")
	}

	user := &User{}

	if user.ID, err = readUserString(reader); err != nil {
		return nil, err
	}
	if user.Email, err = readUserString(reader); err != nil {
		return nil, err
	}
	if user.Name, err = readUserString(reader); err != nil {
		return nil, err
	}
	if user.PasswordHash, err = readUserString(reader); err != nil {
		return nil, err
	}

	verified, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	user.Verified = verified == 1

	var roleCount uint16
	if err := binary.Read(reader, binary.BigEndian, &roleCount); err != nil {
		return nil, err
	}
	for i := 0; i < int(roleCount); i++ {
		role, err := readUserString(reader)
		if err != nil {
			return nil, err
		}
		user.Roles = append(user.Roles, Role(role))
	}

	var sessionCount uint16
	if err := binary.Read(reader, binary.BigEndian, &sessionCount); err != nil {
		return nil, err
	}
	for i := 0; i < int(sessionCount); i++ {
		var session SessionRecord
		if session.RefreshToken, err = readUserString(reader); err != nil {
			return nil, err
		}
		if session.Location, err = readUserString(reader); err != nil {
			return nil, err
		}
		var issuedAt int64
		if err := binary.Read(reader, binary.BigEndian, &issuedAt); err != nil {
			return nil, err
		}
		session.IssuedAt = time.Unix(issuedAt, 0)
		user.Sessions = append(user.Sessions, session)
	}

	var createdAt, updatedAt int64
	if err := binary.Read(reader, binary.BigEndian, &createdAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &updatedAt); err != nil {
		return nil, err
	}
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return user, nil
}

func writeUserString(buf *bytes.Buffer, value string) error {
	if len(value) > maxUserStringLen {
		return errors.New("user record field too long")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(value))); err != nil {
		return err
	}
	buf.WriteString(value)
	return nil
}

func readUserString(reader *bytes.Reader) (string, error) {
	var length uint16
	if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
		return "", err
	}

	raw := make([]byte, length)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}
