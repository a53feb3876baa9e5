package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/asfclaim/claimerd/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	CodesClaimed      prometheus.Counter
	CodesRateLimited  prometheus.Counter
	CycleDuration     prometheus.Histogram
	CyclesCompleted   prometheus.Counter
	NotificationsSent *prometheus.CounterVec
	NotificationsFail *prometheus.CounterVec
}

// New registers all instruments with the given Prometheus registerer.
// queueDepth feeds a gauge reporting the dispatch queue backlog.
// Using a custom registry (instead of prometheus.DefaultRegisterer)
// keeps tests isolated and avoids global state.
func New(reg prometheus.Registerer, queueDepth func() int) *Metrics {
	m := &Metrics{
		CodesClaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codes_claimed_total",
			Help: "Total number of codes successfully submitted and marked processed.",
		}),
		CodesRateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codes_rate_limited_total",
			Help: "Total number of submissions deferred because the agent reported a rate limit.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "claim_cycle_seconds",
			Help:    "Wall-clock duration of one full claim cycle.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		CyclesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "claim_cycles_total",
			Help: "Total number of completed claim cycles.",
		}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of successfully delivered notifications.",
		}, []string{"severity"}),
		NotificationsFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Total number of notification deliveries that failed.",
		}, []string{"severity"}),
	}

	reg.MustRegister(
		m.CodesClaimed,
		m.CodesRateLimited,
		m.CycleDuration,
		m.CyclesCompleted,
		m.NotificationsSent,
		m.NotificationsFail,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "dispatch_queue_depth",
			Help: "Current number of notifications waiting for delivery.",
		}, func() float64 { return float64(queueDepth()) }),
	)

	return m
}

// CycleHooks returns the metric callbacks expected by cycle.Hooks.
// Centralises the prometheus observation calls so the cycle stays
// metrics-agnostic.
func (m *Metrics) CycleHooks() (
	onClaimed func(),
	onRateLimited func(),
	onCompleted func(duration time.Duration),
) {
	onClaimed = func() { m.CodesClaimed.Inc() }
	onRateLimited = func() { m.CodesRateLimited.Inc() }
	onCompleted = func(d time.Duration) {
		m.CyclesCompleted.Inc()
		m.CycleDuration.Observe(d.Seconds())
	}
	return
}

// DispatchHooks returns the metric callbacks expected by dispatch.Hooks.
func (m *Metrics) DispatchHooks() (
	onDelivered func(domain.Severity),
	onFailed func(domain.Severity),
) {
	onDelivered = func(s domain.Severity) {
		m.NotificationsSent.WithLabelValues(string(s)).Inc()
	}
	onFailed = func(s domain.Severity) {
		m.NotificationsFail.WithLabelValues(string(s)).Inc()
	}
	return
}
