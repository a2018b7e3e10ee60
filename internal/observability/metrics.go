package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting application metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - Outbound call origination attempts and outcomes
//   - Webhook transitions through the call state machine
//   - Dialogue policy tier selection
//   - Intent classification outcomes and the method that produced them
//   - Voice synthesis engine selection and fallbacks
//   - Active call session counts
type Metrics struct {
	// CallsOriginated counts outbound call attempts.
	// Labels: status (success|error)
	CallsOriginated *prometheus.CounterVec

	// WebhookTransitions counts state machine transitions.
	// Labels: transition (entry|turn|closing|terminal), status (ok|error)
	WebhookTransitions *prometheus.CounterVec

	// DialogueTierHits counts which policy tier produced each reply.
	// Labels: tier (opening|language|confusion|keyword|phrase|generative|default)
	DialogueTierHits *prometheus.CounterVec

	// IntentResults counts classification outcomes.
	// Labels: result (interested|not_interested), method (keyword|llm|default)
	IntentResults *prometheus.CounterVec

	// SynthesisRequests counts voice synthesis dispatch decisions.
	// Labels: engine (native|openai|elevenlabs), status (ok|fallback)
	SynthesisRequests *prometheus.CounterVec

	// LLMRequestDuration measures completion API call latency in seconds.
	// Labels: operation (dialogue|intent)
	LLMRequestDuration *prometheus.HistogramVec

	// ActiveSessions is a gauge tracking live call sessions.
	ActiveSessions prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default registry.
func NewMetrics() *Metrics {
	return newMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates metrics registered against a custom
// registry. Used by tests to avoid duplicate registration panics.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	return newMetricsWith(reg)
}

func newMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CallsOriginated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leadline_calls_originated_total",
			Help: "Outbound call origination attempts by status.",
		}, []string{"status"}),

		WebhookTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leadline_webhook_transitions_total",
			Help: "Call state machine transitions by type and status.",
		}, []string{"transition", "status"}),

		DialogueTierHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leadline_dialogue_tier_hits_total",
			Help: "Dialogue policy replies by the tier that produced them.",
		}, []string{"tier"}),

		IntentResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leadline_intent_results_total",
			Help: "Intent classification outcomes by result and method.",
		}, []string{"result", "method"}),

		SynthesisRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leadline_synthesis_requests_total",
			Help: "Voice synthesis dispatch decisions by engine and status.",
		}, []string{"engine", "status"}),

		LLMRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leadline_llm_request_duration_seconds",
			Help:    "Completion API call latency in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"operation"}),

		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "leadline_active_sessions",
			Help: "Live call sessions currently held in memory.",
		}),
	}
}
