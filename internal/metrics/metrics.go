package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/joshuadavidthomas/meteofetch/internal/models"
)

// Recorder publishes engine metrics. A nil *Recorder is valid and records
// nothing, so callers never need to check.
type Recorder struct {
	registry *prometheus.Registry

	// ProviderRequests counts upstream HTTP calls by provider and result
	ProviderRequests *prometheus.CounterVec
	// ProviderDuration tracks upstream call latency
	ProviderDuration *prometheus.HistogramVec
	// Fallbacks counts tasks served by a provider other than the preferred one
	Fallbacks *prometheus.CounterVec
	// TaskOutcomes counts finished tasks by terminal status
	TaskOutcomes *prometheus.CounterVec
	// TasksInFlight tracks tasks currently holding a concurrency slot
	TasksInFlight prometheus.Gauge
	// MonthlyRequests mirrors the usage ledger per provider
	MonthlyRequests *prometheus.GaugeVec
	// AppStartTime records when the engine started
	AppStartTime prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	r := &Recorder{
		registry: reg,
		ProviderRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meteofetch_provider_requests_total",
				Help: "Total number of upstream provider requests",
			},
			[]string{"provider", "status"},
		),
		ProviderDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "meteofetch_provider_request_duration_seconds",
				Help:    "Duration of upstream provider requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		Fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meteofetch_provider_fallbacks_total",
				Help: "Tasks served by a provider other than the preferred one",
			},
			[]string{"from", "to"},
		),
		TaskOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meteofetch_tasks_total",
				Help: "Finished fetch tasks by status",
			},
			[]string{"status"},
		),
		TasksInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "meteofetch_tasks_in_flight",
				Help: "Fetch tasks currently running",
			},
		),
		MonthlyRequests: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "meteofetch_provider_monthly_requests",
				Help: "Requests recorded against each provider this month",
			},
			[]string{"provider"},
		),
		AppStartTime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "meteofetch_start_time_seconds",
				Help: "Unix timestamp of when the engine started",
			},
		),
	}
	r.AppStartTime.SetToCurrentTime()
	return r
}

// Registry exposes the underlying registry for the /metrics handler.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RecordProviderRequest records one upstream call. status is a short label
// such as "ok", "http_429" or "transport".
func (r *Recorder) RecordProviderRequest(id models.ProviderID, status string, d time.Duration) {
	if r == nil {
		return
	}
	r.ProviderRequests.WithLabelValues(string(id), status).Inc()
	r.ProviderDuration.WithLabelValues(string(id)).Observe(d.Seconds())
}

func (r *Recorder) RecordFallback(from, to models.ProviderID) {
	if r == nil {
		return
	}
	r.Fallbacks.WithLabelValues(string(from), string(to)).Inc()
}

func (r *Recorder) RecordOutcome(status string) {
	if r == nil {
		return
	}
	r.TaskOutcomes.WithLabelValues(status).Inc()
}

func (r *Recorder) TaskStarted() {
	if r == nil {
		return
	}
	r.TasksInFlight.Inc()
}

func (r *Recorder) TaskFinished() {
	if r == nil {
		return
	}
	r.TasksInFlight.Dec()
}

func (r *Recorder) SetMonthlyRequests(id models.ProviderID, n int) {
	if r == nil {
		return
	}
	r.MonthlyRequests.WithLabelValues(string(id)).Set(float64(n))
}
