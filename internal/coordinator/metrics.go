package coordinator

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the coordinator's Prometheus instruments (SPEC_FULL.md,
// "Metrics"). They are updated under the same mutex as the state they
// describe, so a scrape never observes them ahead of the queue/step they
// report on.
type Metrics struct {
	QueueSize             prometheus.Gauge
	CurrentStep           prometheus.Gauge
	BatchesServedTotal    prometheus.Counter
	EnvsRegistered        prometheus.Gauge
	RegroupBufferSeqs     *prometheus.GaugeVec
	HTTPRequestsTotal     *prometheus.CounterVec
}

// NewMetrics registers the coordinator's instruments against reg. Passing
// a fresh prometheus.NewRegistry() per Coordinator keeps tests isolated
// from the global default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "atropos_queue_size",
			Help: "Number of complete scored groups awaiting batch assembly.",
		}),
		CurrentStep: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "atropos_current_step",
			Help: "The run's current step.",
		}),
		BatchesServedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atropos_batches_served_total",
			Help: "Total batches handed to the trainer via /batch.",
		}),
		EnvsRegistered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "atropos_envs_registered",
			Help: "Number of environments ever registered (connected or not).",
		}),
		RegroupBufferSeqs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "atropos_regroup_buffer_sequences",
			Help: "Sequences currently buffered per environment awaiting regroup.",
		}, []string{"env"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "atropos_http_requests_total",
			Help: "HTTP requests served, labeled by route and status class.",
		}, []string{"route", "status_class"}),
	}
	reg.MustRegister(m.QueueSize, m.CurrentStep, m.BatchesServedTotal, m.EnvsRegistered, m.RegroupBufferSeqs, m.HTTPRequestsTotal)
	return m
}
