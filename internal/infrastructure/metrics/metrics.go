// Package metrics provides Prometheus metrics for the widget-api service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/janhq/jan-widget/internal/domain/conversation"
	"github.com/janhq/jan-widget/internal/domain/stream"
)

const (
	namespace = "jan"
	subsystem = "widget_api"
)

var (
	// HTTPRequests counts requests by route and status.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests handled",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPDuration tracks request latency by route.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Turns counts finished turns by status.
	Turns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "turns_total",
			Help:      "Total conversation turns by final status",
		},
		[]string{"status"},
	)

	// TurnDuration tracks the time from submit to completion.
	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "turn_duration_seconds",
			Help:      "Duration of conversation turns",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"status"},
	)

	// StreamDeltas counts content deltas applied to conversations.
	StreamDeltas = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stream_deltas_total",
			Help:      "Total content deltas decoded from upstream streams",
		},
	)

	// StreamMalformedLines counts skipped data lines.
	StreamMalformedLines = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stream_malformed_lines_total",
			Help:      "Total stream data lines skipped because they could not be parsed",
		},
	)

	// RejectedSubmits counts submits that did not open a turn.
	RejectedSubmits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rejected_submits_total",
			Help:      "Total submits ignored because the text was empty or a turn was in flight",
		},
		[]string{"reason"},
	)

	// TTSRequests counts speech synthesis requests by outcome.
	TTSRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tts_requests_total",
			Help:      "Total text-to-speech requests by outcome",
		},
		[]string{"status"},
	)

	// ActiveConversations tracks live conversations.
	ActiveConversations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_conversations",
			Help:      "Number of live conversations held in memory",
		},
	)

	// EventSubscribers tracks open event-feed subscriptions.
	EventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "event_subscribers",
			Help:      "Number of open conversation event subscriptions",
		},
	)

	// DroppedEvents counts events dropped for slow subscribers.
	DroppedEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dropped_events_total",
			Help:      "Total events dropped because a subscriber buffer was full",
		},
	)
)

// RecordHTTPRequest records one handled request.
func RecordHTTPRequest(method, route, status string, duration time.Duration) {
	HTTPRequests.WithLabelValues(method, route, status).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordTTS records one synthesis outcome.
func RecordTTS(status string) {
	TTSRequests.WithLabelValues(status).Inc()
}

// RecordSubscribersChanged adjusts the subscriber gauge.
func RecordSubscribersChanged(delta int) {
	EventSubscribers.Add(float64(delta))
}

// RecordConversationOpened increments the live conversation gauge.
func RecordConversationOpened() {
	ActiveConversations.Inc()
}

// RecordConversationClosed decrements the live conversation gauge.
func RecordConversationClosed() {
	ActiveConversations.Dec()
}

// RecordDroppedEvent counts one dropped event.
func RecordDroppedEvent() {
	DroppedEvents.Inc()
}

// Recorder reports turn measurements to Prometheus.
type Recorder struct{}

// NewRecorder returns the Prometheus-backed turn recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (Recorder) RecordTurn(status string, duration time.Duration, stats stream.Stats) {
	Turns.WithLabelValues(status).Inc()
	TurnDuration.WithLabelValues(status).Observe(duration.Seconds())
	StreamDeltas.Add(float64(stats.Deltas))
	StreamMalformedLines.Add(float64(stats.Malformed))
}

func (Recorder) RecordRejectedSubmit(reason string) {
	RejectedSubmits.WithLabelValues(reason).Inc()
}

var _ conversation.Recorder = Recorder{}
