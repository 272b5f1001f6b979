package mailAuth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Sreyas108/mailAuth/internal"
)

// AckVerificationSent is the acknowledgement returned by [Engine.Signup] and
// [Engine.ResendVerification].
const AckVerificationSent = "verification email sent"

// Signup creates an unverified account and emails a verification link.
// The operation is all-or-nothing from the caller's perspective: if the
// email cannot be sent, the just-created user and its verification token
// are deleted before the error surfaces, so no orphaned account exists
// that can never receive its link.
func (e *Engine) Signup(ctx context.Context, email, plainPassword, name string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if email == "" {
		return "", ErrUnauthorized
	}

	hash, err := e.passwordHash.Hash(plainPassword)
	if err != nil {
		return "", ErrInternal
	}

	now := time.Now()
	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Verified:     false,
		Roles:        []Role{RoleStandard},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := e.users.Create(ctx, user); err != nil {
		if errors.Is(err, errUserDuplicateEmail) {
			e.metricInc(MetricSignupDuplicate)
			e.emitAudit(ctx, auditEventSignupDuplicate, false, "", email, ErrDuplicateEmail, nil)
			return "", ErrDuplicateEmail
		}
		return "", ErrInternal
	}

	if err := e.issueAndMailVerification(ctx, user); err != nil {
		// Roll back the account so signup stays all-or-nothing.
		_ = e.users.Delete(ctx, user)
		_ = e.verificationStore.Delete(ctx, user.ID)
		e.metricInc(MetricSignupRolledBack)
		e.emitAudit(ctx, auditEventSignupFailure, false, user.ID, email, ErrInternal, nil)
		return "", ErrInternal
	}

	e.metricInc(MetricSignupSuccess)
	e.emitAudit(ctx, auditEventSignupSuccess, true, user.ID, email, nil, nil)

	return AckVerificationSent, nil
}

// ResendVerification replaces any pending verification token for the user
// and emails a fresh link. Unlike Signup there is nothing to roll back: a
// failed send leaves the old state (no usable token) behind.
func (e *Engine) ResendVerification(ctx context.Context, email string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}

	email = normalizeEmail(email)

	user, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		return "", mapUserStoreErr(err)
	}
	if user.Verified {
		return "", ErrUnauthorized
	}

	if err := e.issueAndMailVerification(ctx, user); err != nil {
		_ = e.verificationStore.Delete(ctx, user.ID)
		return "", ErrInternal
	}

	e.metricInc(MetricVerificationResent)
	e.emitAudit(ctx, auditEventVerificationResent, true, user.ID, email, nil, nil)

	return AckVerificationSent, nil
}

// issueAndMailVerification mints a verification token, stores its hash,
// and emails the link. The plaintext token exists only inside this call
// and the outbound mail.
func (e *Engine) issueAndMailVerification(ctx context.Context, user *User) error {
	token, err := internal.NewLinkSecret()
	if err != nil {
		return err
	}

	tokenHash, err := internal.HashLinkSecret(token)
	if err != nil {
		return err
	}

	ttl := e.config.EmailVerification.TokenTTL
	record := &emailVerificationRecord{
		SecretHash: tokenHash,
		ExpiresAt:  time.Now().Add(ttl).Unix(),
	}
	if err := e.verificationStore.Save(ctx, user.ID, record, ttl); err != nil {
		return err
	}

	return e.sendEmail(ctx, EmailVerificationLink, user.Email, EmailData{
		Name: user.Name,
		Link: e.verifyLink(user.ID, token),
	})
}
