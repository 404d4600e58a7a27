package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ProfilesCreated      prometheus.Counter
	RoleUpgrades         prometheus.Counter
	OnboardingCompleted  prometheus.Counter
	OTPRequested         prometheus.Counter
	OTPVerified          prometheus.Counter
	OTPRejected          prometheus.Counter
	DraftFlushes         prometheus.Counter
	HTTPRequestDuration  *prometheus.HistogramVec
	ProfileWriteDuration prometheus.Histogram
}

// New creates all metrics and registers them with the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers against an explicit registerer so tests can use a fresh
// registry per fixture.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ProfilesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "vendry_profiles_created_total",
			Help: "Total number of auth profiles created",
		}),
		RoleUpgrades: factory.NewCounter(prometheus.CounterOpts{
			Name: "vendry_role_upgrades_total",
			Help: "Total number of customer-to-vendor role upgrades",
		}),
		OnboardingCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "vendry_onboarding_completed_total",
			Help: "Total number of completed vendor onboardings",
		}),
		OTPRequested: factory.NewCounter(prometheus.CounterOpts{
			Name: "vendry_otp_requested_total",
			Help: "Total number of OTP codes requested",
		}),
		OTPVerified: factory.NewCounter(prometheus.CounterOpts{
			Name: "vendry_otp_verified_total",
			Help: "Total number of successful OTP verifications",
		}),
		OTPRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "vendry_otp_rejected_total",
			Help: "Total number of rejected OTP verifications",
		}),
		DraftFlushes: factory.NewCounter(prometheus.CounterOpts{
			Name: "vendry_draft_flushes_total",
			Help: "Total number of onboarding draft flushes to durable storage",
		}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vendry_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
		ProfileWriteDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vendry_profile_write_duration_ms",
			Help:    "Latency of whole-profile durable writes in milliseconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		}),
	}
}
