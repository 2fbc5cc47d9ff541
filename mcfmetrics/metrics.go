// Package mcfmetrics mirrors the spec's internal per-component/recorder/
// remote statistics (spec.md §4.3, §4.4, §4.5) onto a Prometheus registry,
// following the teacher's ws/metrics.go pattern of package-level
// prometheus.New* declarations plus an HTTP handler for scraping.
package mcfmetrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry groups every MCF Prometheus collector so it can be constructed
// once per process and handed to every subsystem (component, recorder,
// remote) rather than relying on the default global registerer.
type Registry struct {
	reg *prometheus.Registry

	PublicationsTotal   *prometheus.CounterVec
	ReceiverFanoutTotal *prometheus.CounterVec
	WriteAgainTotal     *prometheus.CounterVec
	WriteBlockedGauge   *prometheus.GaugeVec

	ComponentHandlerDurationUs *prometheus.HistogramVec
	ComponentState             *prometheus.GaugeVec

	RecorderQueueDepth    prometheus.Gauge
	RecorderDroppedTotal  prometheus.Counter
	RecorderWriteErrors   prometheus.Counter
	RecorderLatencyMsAvg  prometheus.Gauge
	RecorderLatencyMsMax  prometheus.Gauge
	RecorderCPUPercent    prometheus.Gauge
	RecorderBytesWritten  prometheus.Counter

	RemoteLivenessState   *prometheus.GaugeVec
	RemoteSendTimeouts    *prometheus.CounterVec
	RemoteValuesForwarded *prometheus.CounterVec
}

// NewRegistry constructs and registers every MCF collector on a fresh
// Prometheus registry.
func NewRegistry() *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}

	r.PublicationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mcf_publications_total",
		Help: "Total successful Store.SetValue publications, by topic.",
	}, []string{"topic"})

	r.ReceiverFanoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mcf_receiver_fanout_total",
		Help: "Total Receive calls delivered to subscribers, by topic.",
	}, []string{"topic"})

	r.WriteAgainTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mcf_write_again_total",
		Help: "Total non-blocking SetValue calls that returned Again.",
	}, []string{"topic"})

	r.WriteBlockedGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mcf_write_blocked_writers",
		Help: "Current count of blocking SetValue calls waiting on a full receiver.",
	}, []string{"topic"})

	r.ComponentHandlerDurationUs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mcf_component_handler_duration_us",
		Help:    "Trigger/port handler execution time in microseconds.",
		Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000},
	}, []string{"component", "handler"})

	r.ComponentState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mcf_component_state",
		Help: "Component lifecycle state (1 = current state, by name).",
	}, []string{"component", "state"})

	r.RecorderQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mcf_recorder_queue_depth",
		Help: "Current recorder internal deque depth.",
	})
	r.RecorderDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mcf_recorder_dropped_total",
		Help: "Total entries dropped by the recorder due to queue overflow.",
	})
	r.RecorderWriteErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mcf_recorder_write_errors_total",
		Help: "Total file write errors encountered by the recorder.",
	})
	r.RecorderLatencyMsAvg = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mcf_recorder_latency_ms_avg",
		Help: "Average recorder write latency (write-time minus publish-time) over the last status window.",
	})
	r.RecorderLatencyMsMax = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mcf_recorder_latency_ms_max",
		Help: "Max recorder write latency over the last status window.",
	})
	r.RecorderCPUPercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mcf_recorder_cpu_percent",
		Help: "Recorder writer thread CPU usage percent.",
	})
	r.RecorderBytesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mcf_recorder_bytes_written_total",
		Help: "Total bytes written to the recorder log file.",
	})

	r.RemoteLivenessState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mcf_remote_liveness_state",
		Help: "Remote pair liveness FSM state (1 = current state, by pair and state).",
	}, []string{"pair", "state"})
	r.RemoteSendTimeouts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mcf_remote_send_timeouts_total",
		Help: "Total send-rule timeouts, by pair.",
	}, []string{"pair"})
	r.RemoteValuesForwarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mcf_remote_values_forwarded_total",
		Help: "Total values forwarded across a remote pair, by pair and direction.",
	}, []string{"pair", "direction"})

	r.reg.MustRegister(
		r.PublicationsTotal, r.ReceiverFanoutTotal, r.WriteAgainTotal, r.WriteBlockedGauge,
		r.ComponentHandlerDurationUs, r.ComponentState,
		r.RecorderQueueDepth, r.RecorderDroppedTotal, r.RecorderWriteErrors,
		r.RecorderLatencyMsAvg, r.RecorderLatencyMsMax, r.RecorderCPUPercent, r.RecorderBytesWritten,
		r.RemoteLivenessState, r.RemoteSendTimeouts, r.RemoteValuesForwarded,
	)
	return r
}

// Handler returns an http.Handler serving this registry's metrics in the
// Prometheus text exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObservePublication, ObserveFanout and ObserveAgain implement
// valuestore.Metrics structurally (no import of valuestore here, to keep
// mcfmetrics free of a dependency on the package it instruments).
func (r *Registry) ObservePublication(topic string) { r.PublicationsTotal.WithLabelValues(topic).Inc() }
func (r *Registry) ObserveFanout(topic string)      { r.ReceiverFanoutTotal.WithLabelValues(topic).Inc() }
func (r *Registry) ObserveAgain(topic string)       { r.WriteAgainTotal.WithLabelValues(topic).Inc() }

// The ObserveRecorder* methods implement recorder.Metrics structurally,
// for the same reason: mcfmetrics instruments the recorder without the
// recorder importing mcfmetrics.
func (r *Registry) ObserveRecorderQueueDepth(n int)    { r.RecorderQueueDepth.Set(float64(n)) }
func (r *Registry) ObserveRecorderDropped()            { r.RecorderDroppedTotal.Inc() }
func (r *Registry) ObserveRecorderWriteError()         { r.RecorderWriteErrors.Inc() }
func (r *Registry) ObserveRecorderCPU(percent float64) { r.RecorderCPUPercent.Set(percent) }
func (r *Registry) ObserveRecorderBytesWritten(n int)  { r.RecorderBytesWritten.Add(float64(n)) }

func (r *Registry) ObserveRecorderLatency(avgMs, maxMs float64) {
	r.RecorderLatencyMsAvg.Set(avgMs)
	r.RecorderLatencyMsMax.Set(maxMs)
}

// ObserveRemoteLiveness, ObserveRemoteSendTimeout and
// ObserveRemoteValueForwarded implement remote's own structural metrics
// interface for the liveness FSM and per-rule send protocol.
func (r *Registry) ObserveRemoteLiveness(pair, state string) {
	r.RemoteLivenessState.DeletePartialMatch(prometheus.Labels{"pair": pair})
	r.RemoteLivenessState.WithLabelValues(pair, state).Set(1)
}
func (r *Registry) ObserveRemoteSendTimeout(pair string) {
	r.RemoteSendTimeouts.WithLabelValues(pair).Inc()
}
func (r *Registry) ObserveRemoteValueForwarded(pair, direction string) {
	r.RemoteValuesForwarded.WithLabelValues(pair, direction).Inc()
}
