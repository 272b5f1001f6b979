package mailAuth

import (
	"errors"
	"os"
	"time"
)

// Config defines all tuning parameters for the engine. Construct it with
// [DefaultConfig] (or [ConfigFromEnv]) and override fields before handing it
// to [Builder.WithConfig]; Engine treats its config as immutable after Build.
type Config struct {
	JWT               JWTConfig
	Store             StoreConfig
	Mail              MailConfig
	Geo               GeoConfig
	EmailVerification EmailVerificationConfig
	SignInCode        SignInCodeConfig
	PasswordReset     PasswordResetConfig
	Security          SecurityConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
}

// JWTConfig controls access-token signing. Secret is required: Build fails
// without one. Refresh tokens are signed with the same secret and carry no
// expiry of their own — their lifetime is the session list entry.
type JWTConfig struct {
	Secret    []byte
	AccessTTL time.Duration
}

// StoreConfig controls the Redis key layout.
type StoreConfig struct {
	// KeyPrefix namespaces every key the engine writes. Defaults to "ma".
	KeyPrefix string
}

// MailConfig carries the link bases embedded in outbound emails and the
// per-send timeout applied to the [EmailSender].
type MailConfig struct {
	// VerifyLinkBase is the client URL prefix for verification links; the
	// engine appends "?id=<userID>&token=<token>".
	VerifyLinkBase string
	// ResetLinkBase is the client URL prefix for password-reset links.
	ResetLinkBase string
	SendTimeout   time.Duration
}

// GeoConfig bounds the best-effort geolocation lookup.
type GeoConfig struct {
	LookupTimeout time.Duration
}

// EmailVerificationConfig controls the signup verification token.
type EmailVerificationConfig struct {
	// TokenTTL is the absolute expiry of a verification link. The store
	// enforces it both as a Redis TTL and as a read-time check.
	TokenTTL time.Duration
}

// SignInCodeConfig controls the 5-digit second-factor code.
type SignInCodeConfig struct {
	CodeTTL time.Duration
}

// PasswordResetConfig controls the reset link. The token is single-use
// regardless of TTL.
type PasswordResetConfig struct {
	TokenTTL time.Duration
}

// SecurityConfig enables fixed-window attempt throttling over the two
// sign-in steps. Disabled by default; when enabled, exhausted budgets
// surface as [ErrSignInRateLimited].
type SecurityConfig struct {
	EnableSignInThrottle bool
	EnableIPThrottle     bool
	MaxSignInAttempts    int
	SignInCooldown       time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit non-blocking; dropped events are counted and
	// exposed via [Engine.AuditDropped].
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
	// EnableLatencyHistograms additionally buckets ValidateAccess latency.
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults: 15 minute access tokens,
// 24 hour verification links, 10 minute sign-in codes, 1 hour reset links,
// bounded 5 second email and 2 second geolocation timeouts, audit and
// metrics enabled.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL: 15 * time.Minute,
		},
		Store: StoreConfig{
			KeyPrefix: "ma",
		},
		Mail: MailConfig{
			SendTimeout: 5 * time.Second,
		},
		Geo: GeoConfig{
			LookupTimeout: 2 * time.Second,
		},
		EmailVerification: EmailVerificationConfig{
			TokenTTL: 24 * time.Hour,
		},
		SignInCode: SignInCodeConfig{
			CodeTTL: 10 * time.Minute,
		},
		PasswordReset: PasswordResetConfig{
			TokenTTL: time.Hour,
		},
		Security: SecurityConfig{
			MaxSignInAttempts: 10,
			SignInCooldown:    15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// ConfigFromEnv builds a config from environment-style inputs on top of
// [DefaultConfig]:
//
//	MAILAUTH_JWT_SECRET        signing secret (required at Build time)
//	MAILAUTH_ACCESS_TTL        access-token lifetime, Go duration syntax
//	MAILAUTH_VERIFY_LINK_BASE  verification-link base URL
//	MAILAUTH_RESET_LINK_BASE   reset-link base URL
//
// Malformed durations are ignored in favor of the default.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if secret := os.Getenv("MAILAUTH_JWT_SECRET"); secret != "" {
		cfg.JWT.Secret = []byte(secret)
	}
	if raw := os.Getenv("MAILAUTH_ACCESS_TTL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.JWT.AccessTTL = d
		}
	}
	if base := os.Getenv("MAILAUTH_VERIFY_LINK_BASE"); base != "" {
		cfg.Mail.VerifyLinkBase = base
	}
	if base := os.Getenv("MAILAUTH_RESET_LINK_BASE"); base != "" {
		cfg.Mail.ResetLinkBase = base
	}

	return cfg
}

// Validate rejects configurations the engine cannot run with. The JWT secret
// is checked here rather than lazily so a missing secret is a construction
// error, never a per-request one.
func (c Config) Validate() error {
	if len(c.JWT.Secret) == 0 {
		return errors.New("jwt secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("jwt secret must be at least 32 bytes")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.AccessTTL > 24*time.Hour {
		return errors.New("access ttl must be within (0, 24h]")
	}
	if c.Store.KeyPrefix == "" {
		return errors.New("store key prefix is required")
	}
	if c.EmailVerification.TokenTTL <= 0 {
		return errors.New("verification token ttl must be positive")
	}
	if c.SignInCode.CodeTTL <= 0 {
		return errors.New("sign-in code ttl must be positive")
	}
	if c.PasswordReset.TokenTTL <= 0 {
		return errors.New("reset token ttl must be positive")
	}
	if c.Security.EnableSignInThrottle {
		if c.Security.MaxSignInAttempts <= 0 {
			return errors.New("sign-in throttle requires a positive attempt budget")
		}
		if c.Security.SignInCooldown <= 0 {
			return errors.New("sign-in throttle requires a positive cooldown")
		}
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
