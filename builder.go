package mailAuth

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/Sreyas108/mailAuth/internal/rate"
	"github.com/Sreyas108/mailAuth/jwt"
	"github.com/Sreyas108/mailAuth/password"
)

// Builder assembles an [Engine]. Zero or one call per method, then Build;
// a Builder must not be reused after a successful Build.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	emailSender EmailSender
	geoLookup   GeoLookup
	auditSink   AuditSink

	built bool
}

// New returns a [Builder] carrying [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the builder's config.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the backing Redis client. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithEmailSender sets the outbound mail collaborator. Required.
func (b *Builder) WithEmailSender(sender EmailSender) *Builder {
	b.emailSender = sender
	return b
}

// WithGeoLookup sets the IP geolocation collaborator. Optional; without
// one, every session is tagged [UnknownLocation].
func (b *Builder) WithGeoLookup(lookup GeoLookup) *Builder {
	b.geoLookup = lookup
	return b
}

// WithAuditSink sets where audit events are delivered. Optional.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the ValidateAccess latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and dependencies and constructs the
// [Engine]. After Build the engine treats its config as immutable.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.emailSender == nil {
		return nil, errors.New("email sender required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.DefaultConfig())
	if err != nil {
		return nil, err
	}

	jwtManager, err := jwt.NewManager(jwt.Config{
		Secret:    cfg.JWT.Secret,
		AccessTTL: cfg.JWT.AccessTTL,
	})
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if cfg.Security.EnableSignInThrottle {
		limiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle:  cfg.Security.EnableIPThrottle,
			MaxSignInAttempts: cfg.Security.MaxSignInAttempts,
			SignInCooldown:    cfg.Security.SignInCooldown,
		})
	}

	prefix := cfg.Store.KeyPrefix

	engine := &Engine{
		config:            cfg,
		users:             newUserStore(b.redis, prefix),
		verificationStore: newEmailVerificationStore(b.redis, prefix),
		resetStore:        newPasswordResetStore(b.redis, prefix),
		codeStore:         newSignInCodeStore(b.redis, prefix),
		signInLog:         newSignInLogStore(b.redis, prefix),
		rateLimiter:       limiter,
		audit:             newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:           NewMetrics(cfg.Metrics),
		passwordHash:      hasher,
		jwtManager:        jwtManager,
		emailSender:       b.emailSender,
		geoLookup:         b.geoLookup,
	}

	b.built = true
	return engine, nil
}
