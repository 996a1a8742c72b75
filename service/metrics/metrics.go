package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal   *prometheus.CounterVec
	solanaRPCCallDuration *prometheus.HistogramVec

	// Ledger Metrics
	recordsCreatedTotal     *prometheus.CounterVec
	recordCreateErrorsTotal *prometheus.CounterVec
	reconciliationsTotal    *prometheus.CounterVec
	enrichmentLookupsTotal  *prometheus.CounterVec
	historyQueriesTotal     *prometheus.CounterVec
	historyQueryDuration    prometheus.Histogram
	pendingReconcileBacklog prometheus.Gauge

	// Workflow Metrics
	reconcileWorkflowsTotal *prometheus.CounterVec
	activityDuration        *prometheus.HistogramVec

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS Metrics
	natsEventsPublished *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		recordsCreatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_records_created_total",
				Help: "Total number of transaction records created, by type and status",
			},
			[]string{"type", "status"},
		),
		recordCreateErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_record_create_errors_total",
				Help: "Total number of failed record creates, by error kind",
			},
			[]string{"kind"},
		),
		reconciliationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_reconciliations_total",
				Help: "Total number of status reconciliations, by outcome",
			},
			[]string{"outcome"},
		),
		enrichmentLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_enrichment_lookups_total",
				Help: "Total number of chain enrichment lookups, by result",
			},
			[]string{"result"},
		),
		historyQueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_history_queries_total",
				Help: "Total number of history queries, by filter",
			},
			[]string{"filter"},
		),
		historyQueryDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ledger_history_query_duration_seconds",
				Help:    "Duration of history queries in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
		),
		pendingReconcileBacklog: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ledger_pending_reconcile_backlog",
				Help: "Number of pending records seen by the last reconcile pass",
			},
		),
		reconcileWorkflowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconcile_workflow_executions_total",
				Help: "Total number of reconcile workflow executions, by status",
			},
			[]string{"status"},
		),
		activityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reconcile_activity_duration_seconds",
				Help:    "Duration of reconcile activities in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"activity"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by handler, method, and status code",
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method"},
		),
		natsEventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_events_published_total",
				Help: "Total number of record events published to NATS, by kind and status",
			},
			[]string{"kind", "status"},
		),
	}
}

// RecordRPCCall records a Solana RPC call.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, durationSeconds float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordRecordCreated records a successful ledger write.
func (m *Metrics) RecordRecordCreated(txnType, status string) {
	m.recordsCreatedTotal.WithLabelValues(txnType, status).Inc()
}

// RecordRecordCreateError records a failed ledger write by error kind.
func (m *Metrics) RecordRecordCreateError(kind string) {
	m.recordCreateErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordReconciliation records a status reconciliation outcome
// ("applied", "noop", "not_found", "error").
func (m *Metrics) RecordReconciliation(outcome string) {
	m.reconciliationsTotal.WithLabelValues(outcome).Inc()
}

// RecordEnrichmentLookup records a chain enrichment lookup result
// ("hit", "miss", "degraded").
func (m *Metrics) RecordEnrichmentLookup(result string) {
	m.enrichmentLookupsTotal.WithLabelValues(result).Inc()
}

// RecordHistoryQuery records a history query and its duration.
func (m *Metrics) RecordHistoryQuery(filter string, durationSeconds float64) {
	m.historyQueriesTotal.WithLabelValues(filter).Inc()
	m.historyQueryDuration.Observe(durationSeconds)
}

// SetPendingBacklog records the pending-record backlog size.
func (m *Metrics) SetPendingBacklog(n int) {
	m.pendingReconcileBacklog.Set(float64(n))
}

// RecordReconcileWorkflow records a reconcile workflow execution.
func (m *Metrics) RecordReconcileWorkflow(status string) {
	m.reconcileWorkflowsTotal.WithLabelValues(status).Inc()
}

// RecordActivityDuration records the duration of a Temporal activity.
func (m *Metrics) RecordActivityDuration(activity string, durationSeconds float64) {
	m.activityDuration.WithLabelValues(activity).Observe(durationSeconds)
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, durationSeconds float64) {
	m.httpRequestsTotal.WithLabelValues(handler, method, statusText(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(handler, method).Observe(durationSeconds)
}

// RecordNATSPublish records a NATS event publish attempt.
func (m *Metrics) RecordNATSPublish(kind, status string) {
	m.natsEventsPublished.WithLabelValues(kind, status).Inc()
}

// statusText buckets a status code into its class ("2xx", "4xx", ...) to keep
// label cardinality low.
func statusText(code int) string {
	switch {
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
