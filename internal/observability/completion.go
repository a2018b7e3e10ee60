package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CompletionClient is the completion call shape shared by the dialogue
// and intent packages.
type CompletionClient interface {
	Complete(ctx context.Context, system, user string, maxTokens int, temperature float32) (string, error)
}

// MeterCompletion wraps a completion client so every call records its
// latency under the given operation label. Failed calls are recorded
// too; slow failures matter as much as slow successes.
func MeterCompletion(client CompletionClient, duration *prometheus.HistogramVec, operation string) CompletionClient {
	return &meteredCompletion{client: client, duration: duration, operation: operation}
}

type meteredCompletion struct {
	client    CompletionClient
	duration  *prometheus.HistogramVec
	operation string
}

func (m *meteredCompletion) Complete(ctx context.Context, system, user string, maxTokens int, temperature float32) (string, error) {
	start := time.Now()
	reply, err := m.client.Complete(ctx, system, user, maxTokens, temperature)
	m.duration.WithLabelValues(m.operation).Observe(time.Since(start).Seconds())
	return reply, err
}
