// Package metrics provides Prometheus metrics for the triage pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "yoocare"

type Metrics struct {
	// Pipeline
	PipelineRuns  *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	StageErrors   *prometheus.CounterVec

	// Inference
	InferenceCalls  *prometheus.CounterVec
	QuotaRejections *prometheus.CounterVec

	// Routing
	SpecialistMatches *prometheus.CounterVec
	Assignments       *prometheus.CounterVec
	Alerts            *prometheus.CounterVec

	// Async intake
	WorkerJobs *prometheus.CounterVec

	// HTTP
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// Default is the process-wide instance registered with the default registry.
var Default = New(prometheus.DefaultRegisterer)

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PipelineRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Voice intake runs by outcome (completed, degraded, failed)",
		}, []string{"outcome"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of each pipeline stage",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"stage"}),
		StageErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_errors_total",
			Help:      "Stage errors by error code",
		}, []string{"stage", "code"}),

		InferenceCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_calls_total",
			Help:      "Generative inference calls by model and result",
		}, []string{"model", "result"}),
		QuotaRejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_rejections_total",
			Help:      "Inference requests rejected by the daily quota",
		}, []string{"model"}),

		SpecialistMatches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "specialist_matches_total",
			Help:      "Specialist match attempts by result (matched, unmatched)",
		}, []string{"result"}),
		Assignments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "doctor_assignments_total",
			Help:      "Doctor assignments by specialist",
		}, []string{"specialist"}),
		Alerts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alert decisions by result (sent, failed, skipped)",
		}, []string{"result"}),

		WorkerJobs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intake_worker_jobs_total",
			Help:      "Async intake jobs processed by status",
		}, []string{"status"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "path", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

func (m *Metrics) RecordRun(outcome string) {
	m.PipelineRuns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) RecordStageError(stage, code string) {
	m.StageErrors.WithLabelValues(stage, code).Inc()
}

func (m *Metrics) RecordInference(model string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.InferenceCalls.WithLabelValues(model, result).Inc()
}

func (m *Metrics) RecordQuotaRejection(model string) {
	m.QuotaRejections.WithLabelValues(model).Inc()
}

func (m *Metrics) RecordMatch(matched bool) {
	if matched {
		m.SpecialistMatches.WithLabelValues("matched").Inc()
		return
	}
	m.SpecialistMatches.WithLabelValues("unmatched").Inc()
}

func (m *Metrics) RecordAssignment(specialist string) {
	m.Assignments.WithLabelValues(specialist).Inc()
}

func (m *Metrics) RecordAlert(result string) {
	m.Alerts.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordWorkerJob(status string) {
	m.WorkerJobs.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordHTTP(method, path string, status int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
