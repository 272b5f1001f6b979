package mailAuth

import "errors"

var (
	// ErrUnauthorized covers bad credentials, bad or expired tokens, and
	// mismatched or expired sign-in codes.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUserNotFound is returned when no user exists for the given email or id.
	ErrUserNotFound = errors.New("user not found")
	// ErrNotFound is returned when there is no token or session to act on.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEmail is returned when signup collides with an existing account.
	ErrDuplicateEmail = errors.New("user already exists")
	// ErrUnverified is the distinguishable sub-case of an unauthorized sign-in
	// against an account that has not verified its email, so callers can offer
	// a resend.
	ErrUnverified = errors.New("email not verified")
	// ErrCodeExpired is returned when no live sign-in code exists for the user.
	ErrCodeExpired = errors.New("verification code expired")
	// ErrSamePassword rejects a password reset to the current password.
	ErrSamePassword = errors.New("new password must be different from current password")
	// ErrSignInRateLimited is returned when the attempt budget for an
	// identifier or IP is exhausted.
	ErrSignInRateLimited = errors.New("sign-in rate limited")
	// ErrInternal covers email transport and store failures not attributable
	// to caller input.
	ErrInternal = errors.New("internal failure")
	// ErrEngineNotReady is returned when a required dependency was not wired
	// through the builder.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// TransportCode maps the closed error set to a transport-agnostic code string.
// The surrounding RPC or HTTP layer translates these to its own status space;
// unknown errors map to "internal" so nothing leaks by default.
func TransportCode(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnverified):
		return "unverified"
	case errors.Is(err, ErrSamePassword):
		return "same_password"
	case errors.Is(err, ErrCodeExpired), errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrDuplicateEmail):
		return "conflict"
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrSignInRateLimited):
		return "rate_limited"
	default:
		return "internal"
	}
}
