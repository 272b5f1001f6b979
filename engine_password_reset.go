package mailAuth

import (
	"context"
	"time"

	"github.com/Sreyas108/mailAuth/internal"
)

// AckResetSent is the acknowledgement returned by [Engine.ForgotPassword].
const AckResetSent = "password reset email sent"

// ForgotPassword issues a single-use reset token and emails the link. Any
// prior token for the user is invalidated first, so at most one live reset
// link exists per account. If the email cannot be sent, the fresh token is
// deleted before the error surfaces: a token nobody received must not stay
// valid.
func (e *Engine) ForgotPassword(ctx context.Context, email string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}

	email = normalizeEmail(email)

	user, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		return "", mapUserStoreErr(err)
	}

	if err := e.resetStore.Delete(ctx, user.ID); err != nil {
		return "", ErrInternal
	}

	token, err := internal.NewLinkSecret()
	if err != nil {
		return "", ErrInternal
	}
	tokenHash, err := internal.HashLinkSecret(token)
	if err != nil {
		return "", ErrInternal
	}

	ttl := e.config.PasswordReset.TokenTTL
	record := &passwordResetRecord{
		SecretHash: tokenHash,
		ExpiresAt:  time.Now().Add(ttl).Unix(),
	}
	if err := e.resetStore.Save(ctx, user.ID, record, ttl); err != nil {
		return "", ErrInternal
	}

	if err := e.sendEmail(ctx, EmailPasswordResetLink, user.Email, EmailData{
		Name: user.Name,
		Link: e.resetLink(user.ID, token),
	}); err != nil {
		_ = e.resetStore.Delete(ctx, user.ID)
		e.emitAudit(ctx, auditEventResetFailure, false, user.ID, email, ErrInternal, nil)
		return "", ErrInternal
	}

	e.metricInc(MetricResetRequested)
	e.emitAudit(ctx, auditEventResetRequested, true, user.ID, email, nil, nil)

	return AckResetSent, nil
}

// VerifyResetToken is the precondition gate for [Engine.ResetPassword]: it
// checks the id+token pair without consuming the token, so a client can
// validate the link before prompting for a new password.
func (e *Engine) VerifyResetToken(ctx context.Context, userID, token string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if err := e.resetStore.Verify(ctx, userID, token); err != nil {
		e.emitAudit(ctx, auditEventResetTokenInvalid, false, userID, "", ErrUnauthorized, nil)
		return ErrUnauthorized
	}
	return nil
}

// ResetPassword sets a new password for the user. The caller must have
// cleared [Engine.VerifyResetToken] beforehand; the consumed token is
// deleted here unconditionally so it can never authorize a second reset
// regardless of call ordering. A password equal to the current one is
// rejected without any mutation. On success every session is cleared,
// forcing re-login on all devices, and a "password changed" notice is sent
// best-effort.
func (e *Engine) ResetPassword(ctx context.Context, userID, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return mapUserStoreErr(err)
	}

	same, err := e.passwordHash.Verify(newPassword, user.PasswordHash)
	if err != nil {
		return ErrInternal
	}
	if same {
		e.metricInc(MetricResetFailure)
		e.emitAudit(ctx, auditEventResetSamePassword, false, userID, user.Email, ErrSamePassword, nil)
		return ErrSamePassword
	}

	hash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return ErrInternal
	}

	// SetPassword clears the session list in the same write.
	if _, err := e.users.SetPassword(ctx, userID, hash); err != nil {
		return ErrInternal
	}

	if err := e.resetStore.Delete(ctx, userID); err != nil {
		return ErrInternal
	}

	// Best-effort notice. The password is already changed; a failed send
	// must not roll that back.
	if err := e.sendEmail(ctx, EmailPasswordChangedNotice, user.Email, EmailData{
		Name: user.Name,
	}); err != nil {
		e.emitAudit(ctx, auditEventNoticeEmailDeferred, false, userID, user.Email, ErrInternal, nil)
	}

	e.metricInc(MetricResetConfirmed)
	e.emitAudit(ctx, auditEventResetConfirmed, true, userID, user.Email, nil, nil)

	return nil
}
