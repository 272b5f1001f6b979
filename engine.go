package mailAuth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Sreyas108/mailAuth/internal/rate"
	"github.com/Sreyas108/mailAuth/jwt"
	"github.com/Sreyas108/mailAuth/password"
)

// Engine is the authentication core. All state lives in Redis; an Engine
// holds only configuration and collaborators and is safe for concurrent use.
type Engine struct {
	config            Config
	users             *userStore
	verificationStore *emailVerificationStore
	resetStore        *passwordResetStore
	codeStore         *signInCodeStore
	signInLog         *signInLogStore
	rateLimiter       *rate.Limiter
	audit             *auditDispatcher
	metrics           *Metrics
	passwordHash      *password.Hasher
	jwtManager        *jwt.Manager
	emailSender       EmailSender
	geoLookup         GeoLookup
}

// Close flushes and stops the audit dispatcher. The engine must not be
// used after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// normalizeEmail is applied to every email accepted at an API boundary
// before any lookup or uniqueness check.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// sendEmail runs the EmailSender under the configured timeout.
func (e *Engine) sendEmail(ctx context.Context, kind EmailKind, to string, data EmailData) error {
	if e.config.Mail.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Mail.SendTimeout)
		defer cancel()
	}

	if err := e.emailSender.Send(ctx, kind, to, data); err != nil {
		e.metricInc(MetricEmailSendFailure)
		return err
	}
	return nil
}

// resolveLocation turns the caller IP from the context into a coarse
// location string. Lookup failures degrade to [UnknownLocation]; nothing
// on a sign-in path fails because geolocation is down.
func (e *Engine) resolveLocation(ctx context.Context) (ip, location string) {
	ip = ClientIPFromContext(ctx)
	location = UnknownLocation

	if e.geoLookup == nil || ip == "" {
		return ip, location
	}

	lookupCtx := ctx
	if e.config.Geo.LookupTimeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, e.config.Geo.LookupTimeout)
		defer cancel()
	}

	result, err := e.geoLookup.Resolve(lookupCtx, ip)
	if err != nil || result.Location == "" {
		return ip, location
	}
	return ip, result.Location
}

// verifyLink builds the URL embedded in a verification email.
func (e *Engine) verifyLink(userID, token string) string {
	return e.config.Mail.VerifyLinkBase + "?id=" + userID + "&token=" + token
}

// resetLink builds the URL embedded in a password-reset email.
func (e *Engine) resetLink(userID, token string) string {
	return e.config.Mail.ResetLinkBase + "?id=" + userID + "&token=" + token
}

// logSignInAttempt appends to the per-user sign-in log. Log failures are
// swallowed: auditability must not break authentication.
func (e *Engine) logSignInAttempt(ctx context.Context, user *User, ip, location string, success bool) {
	entry := SignInLogEntry{
		UserID:    user.ID,
		Email:     user.Email,
		IP:        ip,
		Location:  location,
		Success:   success,
		CreatedAt: time.Now(),
	}
	_ = e.signInLog.Append(ctx, entry)
}

// SignInLogs returns up to limit recent sign-in attempts for the user,
// newest first. limit <= 0 returns the full log.
func (e *Engine) SignInLogs(ctx context.Context, userID string, limit int) ([]SignInLogEntry, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	if _, err := e.users.FindByID(ctx, userID); err != nil {
		return nil, mapUserStoreErr(err)
	}

	entries, err := e.signInLog.Recent(ctx, userID, limit)
	if err != nil {
		return nil, ErrInternal
	}
	return entries, nil
}

// mapUserStoreErr translates store sentinels into the public error set.
func mapUserStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errUserRecordNotFound):
		return ErrUserNotFound
	case errors.Is(err, errUserDuplicateEmail):
		return ErrDuplicateEmail
	default:
		return ErrInternal
	}
}
