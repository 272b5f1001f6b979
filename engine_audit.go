package mailAuth

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventSignupSuccess       = "signup_success"
	auditEventSignupDuplicate     = "signup_duplicate"
	auditEventSignupFailure       = "signup_failure"
	auditEventVerificationResent  = "verification_resent"
	auditEventEmailVerified       = "email_verified"
	auditEventEmailVerifyFailure  = "email_verify_failure"
	auditEventSignInCodeIssued    = "signin_code_issued"
	auditEventSignInFailure       = "signin_failure"
	auditEventSignInUnverified    = "signin_unverified"
	auditEventSignInRateLimited   = "signin_rate_limited"
	auditEventSignInSuccess       = "signin_success"
	auditEventCodeMismatch        = "signin_code_mismatch"
	auditEventRefreshSuccess      = "refresh_success"
	auditEventRefreshInvalid      = "refresh_invalid"
	auditEventRefreshForged       = "refresh_forged"
	auditEventSignOutSession      = "signout_session"
	auditEventSignOutAll          = "signout_all"
	auditEventResetRequested      = "password_reset_requested"
	auditEventResetTokenInvalid   = "password_reset_token_invalid"
	auditEventResetConfirmed      = "password_reset_confirmed"
	auditEventResetSamePassword   = "password_reset_same_password"
	auditEventResetFailure        = "password_reset_failure"
	auditEventNoticeEmailDeferred = "notice_email_deferred"
)

// AuditErrorCode labels the failure class attached to audit events.
type AuditErrorCode string

const (
	auditErrUnauthorized AuditErrorCode = "unauthorized"
	auditErrUnverified   AuditErrorCode = "account_unverified"
	auditErrUserNotFound AuditErrorCode = "user_not_found"
	auditErrNotFound     AuditErrorCode = "not_found"
	auditErrDuplicate    AuditErrorCode = "duplicate"
	auditErrCodeExpired  AuditErrorCode = "code_expired"
	auditErrSamePassword AuditErrorCode = "same_password"
	auditErrRateLimited  AuditErrorCode = "rate_limited"
	auditErrInternal     AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	email string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Email:     email,
		IP:        ClientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnverified):
		return auditErrUnverified
	case errors.Is(err, ErrCodeExpired):
		return auditErrCodeExpired
	case errors.Is(err, ErrSamePassword):
		return auditErrSamePassword
	case errors.Is(err, ErrSignInRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrDuplicateEmail):
		return auditErrDuplicate
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	default:
		return auditErrInternal
	}
}
