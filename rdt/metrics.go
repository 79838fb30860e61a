package rdt

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds protocol counters. A nil *Metrics records nothing.
type Metrics struct {
	SegmentsSent       prometheus.Counter
	Retransmissions    prometheus.Counter
	AcksReceived       prometheus.Counter
	DuplicateSegments  prometheus.Counter
	MalformedDatagrams prometheus.Counter
	BytesDelivered     prometheus.Counter

	RetransmitTimeout prometheus.Gauge
	RTTSeconds        prometheus.Histogram
}

// NewMetrics builds the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SegmentsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rdt_segments_sent_total",
			Help: "Data segments sent for the first time",
		}),
		Retransmissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rdt_retransmissions_total",
			Help: "Data and FIN segments sent again after a timeout",
		}),
		AcksReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rdt_acks_received_total",
			Help: "Cumulative ACKs that retired at least one segment",
		}),
		DuplicateSegments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rdt_duplicate_segments_total",
			Help: "Data segments received for already delivered data",
		}),
		MalformedDatagrams: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rdt_malformed_datagrams_total",
			Help: "Datagrams discarded for being shorter than a header",
		}),
		BytesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rdt_bytes_delivered_total",
			Help: "Payload bytes written to the receiver sink",
		}),
		RetransmitTimeout: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rdt_retransmit_timeout_seconds",
			Help: "Current retransmission timeout",
		}),
		RTTSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rdt_rtt_seconds",
			Help:    "Round-trip time samples taken from unambiguous ACKs",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.SegmentsSent,
			m.Retransmissions,
			m.AcksReceived,
			m.DuplicateSegments,
			m.MalformedDatagrams,
			m.BytesDelivered,
			m.RetransmitTimeout,
			m.RTTSeconds,
		)
	}
	return m
}

func (m *Metrics) segmentSent() {
	if m != nil {
		m.SegmentsSent.Inc()
	}
}

func (m *Metrics) retransmitted(n int) {
	if m != nil {
		m.Retransmissions.Add(float64(n))
	}
}

func (m *Metrics) ackReceived() {
	if m != nil {
		m.AcksReceived.Inc()
	}
}

func (m *Metrics) duplicate() {
	if m != nil {
		m.DuplicateSegments.Inc()
	}
}

func (m *Metrics) malformed() {
	if m != nil {
		m.MalformedDatagrams.Inc()
	}
}

func (m *Metrics) delivered(n int) {
	if m != nil {
		m.BytesDelivered.Add(float64(n))
	}
}

func (m *Metrics) rttSample(sample, timeout float64) {
	if m != nil {
		m.RTTSeconds.Observe(sample)
		m.RetransmitTimeout.Set(timeout)
	}
}
