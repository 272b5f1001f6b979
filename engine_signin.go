package mailAuth

import (
	"context"
	"errors"
	"time"

	"github.com/Sreyas108/mailAuth/internal"
	"github.com/Sreyas108/mailAuth/internal/rate"
)

// AckCodeSent is the acknowledgement returned by [Engine.SignIn]; no tokens
// are issued until the emailed code clears [Engine.VerifyCode].
const AckCodeSent = "sign-in code sent"

// SignIn is the first step of the two-step flow: password verification
// followed by code issuance. A missing account is reported as such; that
// disclosure is accepted behavior for this flow. Unverified accounts are
// rejected with [ErrUnverified] after writing a sign-in log entry, so the
// caller can offer a verification resend.
func (e *Engine) SignIn(ctx context.Context, email, plainPassword string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}

	email = normalizeEmail(email)
	ip := ClientIPFromContext(ctx)

	if err := e.checkSignInBudget(ctx, email, ip); err != nil {
		return "", err
	}

	user, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errUserRecordNotFound) {
			e.metricInc(MetricSignInFailure)
			e.emitAudit(ctx, auditEventSignInFailure, false, "", email, ErrUserNotFound, nil)
			e.noteSignInFailure(ctx, email, ip)
			return "", ErrUserNotFound
		}
		return "", ErrInternal
	}

	match, err := e.passwordHash.Verify(plainPassword, user.PasswordHash)
	if err != nil {
		return "", ErrInternal
	}
	if !match {
		e.metricInc(MetricSignInFailure)
		e.emitAudit(ctx, auditEventSignInFailure, false, user.ID, email, ErrUnauthorized, nil)
		e.noteSignInFailure(ctx, email, ip)
		return "", ErrUnauthorized
	}

	if !user.Verified {
		_, location := e.resolveLocation(ctx)
		e.logSignInAttempt(ctx, user, ip, location, false)
		e.metricInc(MetricSignInUnverified)
		e.emitAudit(ctx, auditEventSignInUnverified, false, user.ID, email, ErrUnverified, nil)
		return "", ErrUnverified
	}

	code, err := internal.NewSignInCode()
	if err != nil {
		return "", ErrInternal
	}

	ttl := e.config.SignInCode.CodeTTL
	record := &signInCodeRecord{
		CodeHash:  internal.HashSignInCode(code),
		ExpiresAt: time.Now().Add(ttl).Unix(),
	}
	if err := e.codeStore.Save(ctx, user.ID, record, ttl); err != nil {
		return "", ErrInternal
	}

	if err := e.sendEmail(ctx, EmailSignInCode, user.Email, EmailData{
		Name: user.Name,
		Code: code,
	}); err != nil {
		// Invalidate the stored code so a message the user never saw
		// cannot satisfy the second step.
		_ = e.codeStore.Delete(ctx, user.ID)
		return "", ErrInternal
	}

	e.metricInc(MetricSignInCodeIssued)
	e.emitAudit(ctx, auditEventSignInCodeIssued, true, user.ID, email, nil, nil)

	return AckCodeSent, nil
}

// VerifyCode is the second step: validate the emailed code and issue the
// token pair. Geo resolution is best-effort; a failed lookup tags the
// session "Unknown location" rather than failing the sign-in. Every code
// attempt, either outcome, lands in the sign-in log.
func (e *Engine) VerifyCode(ctx context.Context, email, code string) (*AuthResponse, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	ip, location := e.resolveLocation(ctx)

	user, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		e.metricInc(MetricSignInFailure)
		e.emitAudit(ctx, auditEventSignInFailure, false, "", email, ErrUnauthorized, nil)
		return nil, ErrUnauthorized
	}

	if !internal.ValidSignInCodeFormat(code) {
		e.logSignInAttempt(ctx, user, ip, location, false)
		e.metricInc(MetricCodeMismatch)
		e.emitAudit(ctx, auditEventCodeMismatch, false, user.ID, email, ErrUnauthorized, nil)
		return nil, ErrUnauthorized
	}

	if err := e.codeStore.Consume(ctx, user.ID, code); err != nil {
		switch {
		case errors.Is(err, errCodeNotFound):
			e.logSignInAttempt(ctx, user, ip, location, false)
			e.metricInc(MetricSignInFailure)
			e.emitAudit(ctx, auditEventSignInFailure, false, user.ID, email, ErrCodeExpired, nil)
			return nil, ErrCodeExpired
		case errors.Is(err, errCodeMismatch):
			e.logSignInAttempt(ctx, user, ip, location, false)
			e.metricInc(MetricCodeMismatch)
			e.emitAudit(ctx, auditEventCodeMismatch, false, user.ID, email, ErrUnauthorized, nil)
			return nil, ErrUnauthorized
		default:
			return nil, ErrInternal
		}
	}

	// The matched code was deleted by Consume; drop any stragglers so no
	// previously issued code survives a successful sign-in.
	_ = e.codeStore.Delete(ctx, user.ID)

	// Re-check verified status. The account could not have issued a code
	// while unverified, but a concurrent mutation may have raced us.
	if !user.Verified {
		e.logSignInAttempt(ctx, user, ip, location, false)
		e.metricInc(MetricSignInUnverified)
		e.emitAudit(ctx, auditEventSignInUnverified, false, user.ID, email, ErrUnverified, nil)
		return nil, ErrUnauthorized
	}

	response, err := e.establishSession(ctx, user, location)
	if err != nil {
		return nil, err
	}

	e.logSignInAttempt(ctx, user, ip, location, true)
	e.resetSignInBudget(ctx, email, ip)
	e.metricInc(MetricSignInSuccess)
	e.emitAudit(ctx, auditEventSignInSuccess, true, user.ID, email, nil, func() map[string]string {
		return map[string]string{"location": location}
	})

	return response, nil
}

func (e *Engine) checkSignInBudget(ctx context.Context, email, ip string) error {
	if e.rateLimiter == nil {
		return nil
	}

	if err := e.rateLimiter.CheckSignIn(ctx, email, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricSignInRateLimited)
			e.emitAudit(ctx, auditEventSignInRateLimited, false, "", email, ErrSignInRateLimited, nil)
			return ErrSignInRateLimited
		}
		return ErrInternal
	}
	return nil
}

func (e *Engine) noteSignInFailure(ctx context.Context, email, ip string) {
	if e.rateLimiter == nil {
		return
	}
	_ = e.rateLimiter.IncrementSignIn(ctx, email, ip)
}

func (e *Engine) resetSignInBudget(ctx context.Context, email, ip string) {
	if e.rateLimiter == nil {
		return
	}
	_ = e.rateLimiter.ResetSignIn(ctx, email, ip)
}
