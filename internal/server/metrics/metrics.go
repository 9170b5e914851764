// Package metrics exposes Prometheus instruments for the vault engine.
//
// A nil *Metrics is valid and records nothing, which keeps services usable
// without a registry in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation results used as label values.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultQuota    = "quota_exceeded"
	ResultNotFound = "not_found"
	ResultExpired  = "expired"
	ResultInvalid  = "invalid"
)

type Metrics struct {
	Operations        *prometheus.CounterVec   // vault_operations_total{operation,result}
	OperationDuration *prometheus.HistogramVec // vault_operation_duration_seconds{operation}

	BytesUploaded   prometheus.Counter // vault_bytes_uploaded_total
	BytesDownloaded prometheus.Counter // vault_bytes_downloaded_total

	LinksIssued   prometheus.Counter     // vault_links_issued_total
	LinksRedeemed *prometheus.CounterVec // vault_links_redeemed_total{result}

	SweepRetired prometheus.Counter // vault_sweep_retired_total
	SweepFailed  prometheus.Counter // vault_sweep_failed_total
}

// New registers all instruments with registry, or the default registerer
// when registry is nil.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	f := promauto.With(registry)

	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_operations_total",
			Help: "File operations by operation and result",
		}, []string{"operation", "result"}),

		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vault_operation_duration_seconds",
			Help:    "File operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),

		BytesUploaded: f.NewCounter(prometheus.CounterOpts{
			Name: "vault_bytes_uploaded_total",
			Help: "Plaintext bytes accepted by uploads",
		}),

		BytesDownloaded: f.NewCounter(prometheus.CounterOpts{
			Name: "vault_bytes_downloaded_total",
			Help: "Plaintext bytes returned by downloads",
		}),

		LinksIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "vault_links_issued_total",
			Help: "One-time download links issued",
		}),

		LinksRedeemed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_links_redeemed_total",
			Help: "One-time download link redemptions by result",
		}, []string{"result"}),

		SweepRetired: f.NewCounter(prometheus.CounterOpts{
			Name: "vault_sweep_retired_total",
			Help: "Files retired by the expiry sweep",
		}),

		SweepFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "vault_sweep_failed_total",
			Help: "Files the expiry sweep failed to retire",
		}),
	}
}

// ObserveOperation counts one finished operation and its duration.
func (m *Metrics) ObserveOperation(operation, result string, started time.Time) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, result).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *Metrics) RecordUpload(bytes int64) {
	if m == nil {
		return
	}
	m.BytesUploaded.Add(float64(bytes))
}

func (m *Metrics) RecordDownload(bytes int64) {
	if m == nil {
		return
	}
	m.BytesDownloaded.Add(float64(bytes))
}

func (m *Metrics) RecordLinkIssued() {
	if m == nil {
		return
	}
	m.LinksIssued.Inc()
}

func (m *Metrics) RecordLinkRedeemed(result string) {
	if m == nil {
		return
	}
	m.LinksRedeemed.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordSweep(retired, failed int) {
	if m == nil {
		return
	}
	m.SweepRetired.Add(float64(retired))
	m.SweepFailed.Add(float64(failed))
}
