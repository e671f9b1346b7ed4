package ai

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reply is the normalized result of one upstream model call.
type Reply struct {
	Text      string
	ModelName string
}

// Provider answers a single composed prompt with one outbound call. Upstream
// failures are returned as-is; callers decide how much detail to surface.
type Provider interface {
	Ask(ctx context.Context, prompt string) (Reply, error)
}

// ErrMissingCredential indicates the adapter has no API key configured.
// Teachers see this as an actionable configuration error.
var ErrMissingCredential = errors.New("api key not configured")

var (
	askDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kita",
		Subsystem: "ai",
		Name:      "ask_duration_seconds",
		Help:      "Duration of upstream AI calls",
	}, []string{"model"})

	askFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kita",
		Subsystem: "ai",
		Name:      "ask_failures_total",
		Help:      "Number of failed upstream AI calls",
	}, []string{"model"})
)
