// Package metrics defines the Prometheus collectors exported by hiltest.
//
// Collectors are registered on a caller-supplied registry rather than the
// global default one; a nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeOK      = "ok"
	OutcomeTimeout = "timeout"
	OutcomeError   = "error"
)

// Metrics groups every collector.
type Metrics struct {
	// Commands counts executor operations by kind and outcome.
	Commands *prometheus.CounterVec
	// CommandDuration tracks how long completion detection took.
	CommandDuration *prometheus.HistogramVec
	// Steps counts batch steps by kind and outcome.
	Steps *prometheus.CounterVec
	// TranscriptEntries counts entries captured by event recorders.
	TranscriptEntries prometheus.Counter
	// Swaps counts recorder transport swaps.
	Swaps prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Commands: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hiltest_commands_total",
				Help: "Total number of executor operations",
			},
			[]string{"kind", "outcome"},
		),
		CommandDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hiltest_command_duration_seconds",
				Help:    "Time until the completion marker was observed",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"kind"},
		),
		Steps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hiltest_batch_steps_total",
				Help: "Total number of batch steps executed",
			},
			[]string{"kind", "outcome"},
		),
		TranscriptEntries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "hiltest_transcript_entries_total",
				Help: "Total number of transcript entries captured",
			},
		),
		Swaps: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "hiltest_recorder_swaps_total",
				Help: "Total number of recorder transport swaps",
			},
		),
	}
}

// ObserveCommand records one executor operation.
func (m *Metrics) ObserveCommand(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(kind, outcome).Inc()
	if outcome == OutcomeOK {
		m.CommandDuration.WithLabelValues(kind).Observe(d.Seconds())
	}
}

// ObserveStep records one batch step.
func (m *Metrics) ObserveStep(kind, outcome string) {
	if m == nil {
		return
	}
	m.Steps.WithLabelValues(kind, outcome).Inc()
}

// AddTranscriptEntry counts one captured transcript entry.
func (m *Metrics) AddTranscriptEntry() {
	if m == nil {
		return
	}
	m.TranscriptEntries.Inc()
}

// AddSwap counts one recorder swap.
func (m *Metrics) AddSwap() {
	if m == nil {
		return
	}
	m.Swaps.Inc()
}

// WriteTextfile writes every metric gathered from g to path in the text
// exposition format, for node_exporter's textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
