// Package metrics defines and registers all custom Prometheus metrics for the
// facegate service. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation; /metrics exposes them through echoprometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "facegate"

// Label values shared by the counters below.
const (
	ModePassword = "password"
	ModeFace     = "face"

	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"

	RegistrationCreated     = "created"
	RegistrationEmailTaken  = "email_taken"
	RegistrationNotDetected = "not_detected"

	SkipLength  = "length"
	SkipVersion = "version"
	SkipCorrupt = "corrupt"
)

// ── Login metrics ─────────────────────────────────────────────────────────────

// LoginAttemptsTotal counts login attempts.
// Labels:
//   - mode: "password" or "face"
//   - result: "success", "rejected" (bad credentials / face not recognized) or "error"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts, by mode and result.",
	},
	[]string{"mode", "result"},
)

// RegistrationsTotal counts registration attempts.
// Label:
//   - result: "created", "email_taken", "not_detected" or "error"
var RegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of registration attempts, by result.",
	},
	[]string{"result"},
)

// ── Matching metrics ──────────────────────────────────────────────────────────

// FaceMatchDistance records the best distance found by each face scan,
// whether or not it cleared the threshold. Useful for tuning the threshold.
var FaceMatchDistance = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "face_match_distance",
		Help:      "Minimum Euclidean distance observed per face login scan.",
		Buckets:   prometheus.LinearBuckets(500, 500, 12), // 500 … 6000
	},
)

// FaceMatchScanDuration measures a full linear scan over enrolled templates.
var FaceMatchScanDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "face_match_scan_duration_seconds",
		Help:      "Duration of a face match scan over all enrolled templates.",
		Buckets:   prometheus.DefBuckets,
	},
)

// TemplatesSkippedTotal counts stored templates excluded from a scan.
// Label:
//   - reason: "length" (blob size mismatch), "version" (stale format) or
//     "corrupt" (unreadable record or non-finite samples)
var TemplatesSkippedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "templates_skipped_total",
		Help:      "Total number of stored templates skipped as corrupted or stale.",
	},
	[]string{"reason"},
)
