package web

import (
	"strings"

	"github.com/landyrev/simple-nmea-simulator/simulator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the simulator collectors exposed on /metrics.
type Metrics struct {
	TicksTotal       prometheus.Counter
	SentencesTotal   *prometheus.CounterVec
	WebSocketClients prometheus.Gauge
}

// NewMetrics registers the collectors with reg. subscribers is sampled on
// every scrape.
func NewMetrics(reg prometheus.Registerer, subscribers func() int) *Metrics {
	factory := promauto.With(reg)

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "nmea_simulator_subscribers",
			Help: "Current number of attached batch subscribers",
		},
		func() float64 { return float64(subscribers()) },
	)

	return &Metrics{
		TicksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "nmea_simulator_ticks_total",
				Help: "Total number of simulator ticks",
			},
		),
		SentencesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nmea_simulator_sentences_total",
				Help: "Total number of rendered sentences",
			},
			[]string{"sentence"},
		),
		WebSocketClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "nmea_simulator_websocket_clients",
				Help: "Current number of connected websocket clients",
			},
		),
	}
}

// Observe records one batch.
func (m *Metrics) Observe(batch simulator.Batch) {
	m.TicksTotal.Inc()
	for _, s := range batch.Sentences {
		m.SentencesTotal.WithLabelValues(address(s)).Inc()
	}
}

// address returns the talker and type of a framed sentence, e.g. "GPRMC".
func address(s string) string {
	if len(s) < 2 {
		return "unknown"
	}
	end := strings.IndexByte(s, ',')
	if end < 1 {
		return "unknown"
	}
	return s[1:end]
}
