// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assistant

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the library-level Prometheus collectors.
type Metrics struct {
	Papers    prometheus.Gauge
	Questions *prometheus.CounterVec
	Uploads   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Papers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "research_assistant",
			Name:      "papers_total",
			Help:      "Number of papers in the library.",
		}),
		Questions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "research_assistant",
			Name:      "questions_total",
			Help:      "Questions answered, by detected question type.",
		}, []string{"type"}),
		Uploads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "research_assistant",
			Name:      "uploads_total",
			Help:      "Paper uploads, by outcome.",
		}, []string{"status"}),
	}
}
