// Package metrics provides Prometheus metrics for renter-probe runs.
//
// A probe is a one-shot process, so metrics live in a private registry that
// is exported once at the end of a run, either to a node-exporter textfile or
// to a Pushgateway.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds the collectors of one probe run. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	reg *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestsActive  prometheus.Gauge

	phaseDuration  *prometheus.GaugeVec
	uploadsTotal   *prometheus.CounterVec
	uploadedBytes  prometheus.Counter
	checkPassed    *prometheus.GaugeVec
	runSuccess     prometheus.Gauge
	runFinishedAt  prometheus.Gauge
	missingEntries prometheus.Gauge
}

// New creates the collectors and registers them in a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "renterprobe_http_requests_total",
				Help: "Total number of requests sent to the renter API",
			},
			[]string{"code", "method"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "renterprobe_http_request_duration_seconds",
				Help:    "Renter API request duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.005, 4, 9),
			},
			[]string{"method"},
		),
		requestsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "renterprobe_http_requests_in_flight",
				Help: "Number of renter API requests in flight",
			},
		),
		phaseDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "renterprobe_phase_duration_seconds",
				Help: "Wall time spent in each harness phase",
			},
			[]string{"phase"},
		),
		uploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "renterprobe_uploads_total",
				Help: "Uploads issued by the harness",
			},
			[]string{"result"},
		),
		uploadedBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "renterprobe_uploaded_bytes_total",
				Help: "Bytes of synthetic content successfully uploaded",
			},
		),
		checkPassed: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "renterprobe_check_passed",
				Help: "1 if the named check passed, 0 otherwise",
			},
			[]string{"check"},
		),
		runSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "renterprobe_last_run_success",
				Help: "1 if the last probe run passed, 0 otherwise",
			},
		),
		runFinishedAt: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "renterprobe_last_run_timestamp_seconds",
				Help: "Unix time the last probe run finished",
			},
		),
		missingEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "renterprobe_missing_entries",
				Help: "Expected namespace paths missing from the listing",
			},
		),
	}

	m.reg.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.requestsActive,
		m.phaseDuration,
		m.uploadsTotal,
		m.uploadedBytes,
		m.checkPassed,
		m.runSuccess,
		m.runFinishedAt,
		m.missingEntries,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// InstrumentTransport wraps next so every renter API request is counted and
// timed. A nil next uses http.DefaultTransport.
func (m *Metrics) InstrumentTransport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if m == nil {
		return next
	}
	return promhttp.InstrumentRoundTripperInFlight(m.requestsActive,
		promhttp.InstrumentRoundTripperCounter(m.requestsTotal,
			promhttp.InstrumentRoundTripperDuration(m.requestDuration, next),
		),
	)
}

// ObservePhase records how long a harness phase took.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.phaseDuration.WithLabelValues(phase).Set(d.Seconds())
}

// RecordUpload counts an upload and, on success, its size.
func (m *Metrics) RecordUpload(size int64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.uploadsTotal.WithLabelValues("error").Inc()
		return
	}
	m.uploadsTotal.WithLabelValues("ok").Inc()
	m.uploadedBytes.Add(float64(size))
}

// RecordCheck records the outcome of a named check.
func (m *Metrics) RecordCheck(name string, passed bool) {
	if m == nil {
		return
	}
	m.checkPassed.WithLabelValues(name).Set(boolValue(passed))
}

// RecordRun records the outcome of a whole run.
func (m *Metrics) RecordRun(passed bool, missing int, finished time.Time) {
	if m == nil {
		return
	}
	m.runSuccess.Set(boolValue(passed))
	m.missingEntries.Set(float64(missing))
	m.runFinishedAt.Set(float64(finished.Unix()))
}

// WriteTextfile writes the registry in the text exposition format, for the
// node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}

// Push sends the registry to a Pushgateway under the given job name.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	return push.New(url, job).Gatherer(m.reg).PushContext(ctx)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
