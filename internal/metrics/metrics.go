// Package metrics provides Prometheus metrics for rawicmp.
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "rawicmp"
)

// Metrics contains all Prometheus metrics for the sniffer and pinger.
type Metrics struct {
	// Receive path
	PacketsReceived    prometheus.Counter
	BytesReceived      prometheus.Counter
	PacketsByType      *prometheus.CounterVec
	ParseErrors        *prometheus.CounterVec
	ChecksumMismatches *prometheus.CounterVec
	ReadErrors         prometheus.Counter
	PacketSize         prometheus.Histogram

	// Send path
	PacketsSent prometheus.Counter
	BytesSent   prometheus.Counter
	SendErrors  *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Default returns the default metrics instance.
func Default() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a new Metrics instance with a custom registry.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PacketsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_received_total",
			Help:      "Total number of raw datagrams read",
		}),
		BytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Total number of bytes read",
		}),
		PacketsByType: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_decoded_total",
			Help:      "Decoded packets by ICMP type",
		}, []string{"type"}),
		ParseErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Datagrams that could not be decoded, by error kind",
		}, []string{"kind"}),
		ChecksumMismatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checksum_mismatches_total",
			Help:      "Decoded packets whose checksum did not verify, by header",
		}, []string{"header"}),
		ReadErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_errors_total",
			Help:      "Socket or capture read failures",
		}),
		PacketSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "packet_size_bytes",
			Help:      "Size of received datagrams",
			Buckets:   []float64{28, 64, 84, 128, 256, 576, 1500, 9000, 65535},
		}),

		PacketsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_sent_total",
			Help:      "Total number of echo requests sent",
		}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Total number of bytes sent",
		}),
		SendErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_errors_total",
			Help:      "Failed sends by reason",
		}, []string{"reason"}),
	}
}

// RecordReceived records a datagram of n bytes being read.
func (m *Metrics) RecordReceived(n int) {
	m.PacketsReceived.Inc()
	m.BytesReceived.Add(float64(n))
	m.PacketSize.Observe(float64(n))
}

// RecordDecoded records a successfully decoded packet of the given ICMP type.
func (m *Metrics) RecordDecoded(icmpType uint8) {
	m.PacketsByType.WithLabelValues(strconv.Itoa(int(icmpType))).Inc()
}

// RecordParseError records a decode failure.
func (m *Metrics) RecordParseError(kind string) {
	m.ParseErrors.WithLabelValues(kind).Inc()
}

// RecordChecksumMismatch records a checksum that did not verify.
// header is "ip" or "icmp".
func (m *Metrics) RecordChecksumMismatch(header string) {
	m.ChecksumMismatches.WithLabelValues(header).Inc()
}

// RecordReadError records a failed read.
func (m *Metrics) RecordReadError() {
	m.ReadErrors.Inc()
}

// RecordSent records an echo request of n bytes being sent.
func (m *Metrics) RecordSent(n int) {
	m.PacketsSent.Inc()
	m.BytesSent.Add(float64(n))
}

// RecordSendError records a failed send.
func (m *Metrics) RecordSendError(reason string) {
	m.SendErrors.WithLabelValues(reason).Inc()
}
