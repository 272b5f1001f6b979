package mailAuth

import (
	"context"
)

// verifyEmailLocation tags the session established by the auto-login that
// follows a successful email verification.
const verifyEmailLocation = "Email Verification"

// VerifyEmail consumes the pending verification token for the user, marks
// the account verified, and establishes a session immediately. This is the
// one authenticated entry point that skips the one-time-code step: clicking
// the emailed link already proves inbox ownership.
func (e *Engine) VerifyEmail(ctx context.Context, userID, token string) (*AuthResponse, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		e.metricInc(MetricEmailVerifyFailure)
		e.emitAudit(ctx, auditEventEmailVerifyFailure, false, userID, "", ErrUnauthorized, nil)
		return nil, ErrUnauthorized
	}

	if err := e.verificationStore.Consume(ctx, userID, token); err != nil {
		e.metricInc(MetricEmailVerifyFailure)
		e.emitAudit(ctx, auditEventEmailVerifyFailure, false, userID, user.Email, ErrUnauthorized, nil)
		return nil, ErrUnauthorized
	}

	user, err = e.users.MarkVerified(ctx, userID)
	if err != nil {
		return nil, ErrInternal
	}

	response, err := e.establishSession(ctx, user, verifyEmailLocation)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricEmailVerified)
	e.emitAudit(ctx, auditEventEmailVerified, true, user.ID, user.Email, nil, nil)

	return response, nil
}
