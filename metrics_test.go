package mailAuth

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsIncAndValue(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricSignInSuccess)
	m.Inc(MetricSignInSuccess)
	m.Inc(MetricSignupSuccess)

	if got := m.Value(MetricSignInSuccess); got != 2 {
		t.Fatalf("Value(MetricSignInSuccess) = %d, want 2", got)
	}
	if got := m.Value(MetricSignupSuccess); got != 1 {
		t.Fatalf("Value(MetricSignupSuccess) = %d, want 1", got)
	}
	if got := m.Value(MetricSignOut); got != 0 {
		t.Fatalf("Value(MetricSignOut) = %d, want 0", got)
	}

	// Out-of-range ids are ignored, not panicked on.
	m.Inc(metricIDCount + 1)
	if got := m.Value(metricIDCount + 1); got != 0 {
		t.Fatalf("out-of-range Value = %d, want 0", got)
	}
}

func TestMetricsDisabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false, EnableLatencyHistograms: true})

	m.Inc(MetricSignInSuccess)
	m.Observe(MetricValidateLatency, time.Millisecond)

	if m.Enabled() || m.LatencyEnabled() {
		t.Fatal("disabled metrics report enabled")
	}
	if got := m.Value(MetricSignInSuccess); got != 0 {
		t.Fatalf("disabled counter = %d, want 0", got)
	}

	s := m.Snapshot()
	if len(s.Counters) != 0 || len(s.Histograms) != 0 {
		t.Fatalf("disabled snapshot not empty: %+v", s)
	}

	var nilMetrics *Metrics
	nilMetrics.Inc(MetricSignInSuccess)
	if nilMetrics.Enabled() || nilMetrics.Value(MetricSignInSuccess) != 0 {
		t.Fatal("nil metrics must be inert")
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	m.Inc(MetricRefreshSuccess)
	m.Observe(MetricValidateLatency, 3*time.Millisecond)
	m.Observe(MetricValidateLatency, 40*time.Millisecond)
	m.Observe(MetricValidateLatency, time.Second)

	s := m.Snapshot()
	if s.Counters[MetricRefreshSuccess] != 1 {
		t.Fatalf("counter snapshot = %d, want 1", s.Counters[MetricRefreshSuccess])
	}

	buckets, ok := s.Histograms[MetricValidateLatency]
	if !ok || len(buckets) != histBucketCount {
		t.Fatalf("latency histogram missing or wrong size: %v", buckets)
	}
	if buckets[0] != 1 || buckets[3] != 1 || buckets[7] != 1 {
		t.Fatalf("unexpected bucket placement: %v", buckets)
	}

	// The snapshot is a copy, not a view.
	m.Inc(MetricRefreshSuccess)
	if s.Counters[MetricRefreshSuccess] != 1 {
		t.Fatal("snapshot mutated after a later increment")
	}
}

func TestMetricsObserveRequiresLatencyFlag(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Observe(MetricValidateLatency, time.Millisecond)
	if _, ok := m.Snapshot().Histograms[MetricValidateLatency]; ok {
		t.Fatal("histogram recorded without the latency flag")
	}
}

func TestBucketIndexBoundaries(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{5 * time.Millisecond, 0},
		{6 * time.Millisecond, 1},
		{10 * time.Millisecond, 1},
		{25 * time.Millisecond, 2},
		{50 * time.Millisecond, 3},
		{100 * time.Millisecond, 4},
		{250 * time.Millisecond, 5},
		{500 * time.Millisecond, 6},
		{501 * time.Millisecond, 7},
		{time.Minute, 7},
	}
	for _, tc := range cases {
		if got := bucketIndex(tc.d); got != tc.want {
			t.Fatalf("bucketIndex(%v) = %d, want %d", tc.d, got, tc.want)
		}
	}
}

func TestMetricsConcurrentIncrements(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 8
	const perGoroutine = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				m.Inc(MetricSignInSuccess)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricSignInSuccess); got != goroutines*perGoroutine {
		t.Fatalf("concurrent count = %d, want %d", got, goroutines*perGoroutine)
	}
}
