package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics for the battle server. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Battle metrics
	BattlesTotal     prometheus.Counter
	PhaseTransitions *prometheus.CounterVec

	// Generation metrics
	GenerationDuration *prometheus.HistogramVec
	GenerationErrors   *prometheus.CounterVec
	AnnouncerFallbacks prometheus.Counter

	// Clap metrics
	ClapScores       *prometheus.HistogramVec
	ClapFlags        *prometheus.CounterVec
	MicrophoneErrors prometheus.Counter

	// Viewer metrics
	ViewersActive prometheus.Gauge
}

// NewMetrics creates a Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "clapbattle"
	}

	registry := prometheus.NewRegistry()

	battlesTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "battles_total",
			Help:      "Total number of battles that reached verse generation",
		},
	)

	phaseTransitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_transitions_total",
			Help:      "Battle phase transitions",
		},
		[]string{"from", "to"},
	)

	generationDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Time spent generating both verses",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40},
		},
		[]string{"status"},
	)

	generationErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_errors_total",
			Help:      "Verse generation failures by kind",
		},
		[]string{"kind"},
	)

	announcerFallbacks := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "announcer_fallbacks_total",
			Help:      "Announcer lines replaced by the fallback phrase",
		},
	)

	clapScores := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "clap_score",
			Help:      "Final clap scores",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		},
		[]string{"verse"},
	)

	clapFlags := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clap_flags_total",
			Help:      "Listening windows flagged as overdrive or too quiet",
		},
		[]string{"flag"},
	)

	microphoneErrors := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "microphone_errors_total",
			Help:      "Listening windows that could not open the microphone",
		},
	)

	viewersActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "viewers_active",
			Help:      "Connected WebSocket viewers",
		},
	)

	registry.MustRegister(
		battlesTotal,
		phaseTransitions,
		generationDuration,
		generationErrors,
		announcerFallbacks,
		clapScores,
		clapFlags,
		microphoneErrors,
		viewersActive,
	)

	return &Metrics{
		registry:           registry,
		BattlesTotal:       battlesTotal,
		PhaseTransitions:   phaseTransitions,
		GenerationDuration: generationDuration,
		GenerationErrors:   generationErrors,
		AnnouncerFallbacks: announcerFallbacks,
		ClapScores:         clapScores,
		ClapFlags:          clapFlags,
		MicrophoneErrors:   microphoneErrors,
		ViewersActive:      viewersActive,
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordPhase records a phase transition.
func (m *Metrics) RecordPhase(from, to string) {
	if m == nil {
		return
	}
	m.PhaseTransitions.WithLabelValues(from, to).Inc()
}

// RecordGeneration records a finished generation attempt. An empty kind
// means success.
func (m *Metrics) RecordGeneration(duration time.Duration, kind string) {
	if m == nil {
		return
	}
	status := "ok"
	if kind != "" {
		status = "error"
		m.GenerationErrors.WithLabelValues(kind).Inc()
	} else {
		m.BattlesTotal.Inc()
	}
	m.GenerationDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordAnnouncerFallback records a swallowed announcer failure.
func (m *Metrics) RecordAnnouncerFallback() {
	if m == nil {
		return
	}
	m.AnnouncerFallbacks.Inc()
}

// RecordClap records a completed listening window.
func (m *Metrics) RecordClap(verse string, score int, overdrive, tooQuiet bool) {
	if m == nil {
		return
	}
	m.ClapScores.WithLabelValues(verse).Observe(float64(score))
	if overdrive {
		m.ClapFlags.WithLabelValues("overdrive").Inc()
	}
	if tooQuiet {
		m.ClapFlags.WithLabelValues("too_quiet").Inc()
	}
}

// RecordMicrophoneError records a failed microphone start.
func (m *Metrics) RecordMicrophoneError() {
	if m == nil {
		return
	}
	m.MicrophoneErrors.Inc()
}

// RecordViewerConnect records a WebSocket viewer joining.
func (m *Metrics) RecordViewerConnect() {
	if m == nil {
		return
	}
	m.ViewersActive.Inc()
}

// RecordViewerDisconnect records a WebSocket viewer leaving.
func (m *Metrics) RecordViewerDisconnect() {
	if m == nil {
		return
	}
	m.ViewersActive.Dec()
}
