package mailAuth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter.
type MetricID uint16

const (
	// MetricSignupSuccess counts accounts created and emailed a verification link.
	MetricSignupSuccess MetricID = iota
	// MetricSignupDuplicate counts signups rejected on the email uniqueness check.
	MetricSignupDuplicate
	// MetricSignupRolledBack counts accounts deleted after a failed verification email.
	MetricSignupRolledBack
	// MetricVerificationResent counts re-issued verification links.
	MetricVerificationResent
	// MetricEmailVerified counts successful email verifications.
	MetricEmailVerified
	// MetricEmailVerifyFailure counts rejected verification attempts.
	MetricEmailVerifyFailure
	// MetricSignInCodeIssued counts completed first sign-in steps.
	MetricSignInCodeIssued
	// MetricSignInFailure counts rejected first-step attempts.
	MetricSignInFailure
	// MetricSignInUnverified counts first-step attempts against unverified accounts.
	MetricSignInUnverified
	// MetricSignInRateLimited counts attempts rejected by the throttle.
	MetricSignInRateLimited
	// MetricSignInSuccess counts completed two-step sign-ins.
	MetricSignInSuccess
	// MetricCodeMismatch counts second-step attempts with a wrong code.
	MetricCodeMismatch
	// MetricRefreshSuccess counts access tokens minted from a refresh token.
	MetricRefreshSuccess
	// MetricRefreshFailure counts rejected refresh attempts.
	MetricRefreshFailure
	// MetricRefreshForged counts refresh tokens with a valid signature but no
	// matching session, the case that wipes the session list.
	MetricRefreshForged
	// MetricSignOut counts single-session sign-outs.
	MetricSignOut
	// MetricSignOutAll counts all-device sign-outs.
	MetricSignOutAll
	// MetricResetRequested counts reset links issued.
	MetricResetRequested
	// MetricResetConfirmed counts completed password resets.
	MetricResetConfirmed
	// MetricResetFailure counts rejected reset attempts.
	MetricResetFailure
	// MetricEmailSendFailure counts transport errors from the EmailSender.
	MetricEmailSendFailure
	// MetricValidateLatency is the histogram id for ValidateAccess timing.
	MetricValidateLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds the engine's in-process counters. Counters are padded to
// cache-line size so concurrent increments on different ids do not contend.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics builds a [Metrics] from config.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded at all.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc bumps a counter. No-op when metrics are disabled.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records one ValidateAccess duration into the histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricValidateLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter, and the latency histogram when enabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricValidateLatency].buckets[i])
		}
		s.Histograms[MetricValidateLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
