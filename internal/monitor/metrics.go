package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the bot's Prometheus collectors on a private registry. It
// satisfies the recorder interfaces of the REST client, the stream and the
// strategy engine.
type Metrics struct {
	registry *prometheus.Registry

	streamReconnects prometheus.Counter
	streamEvents     *prometheus.CounterVec
	restRequests     *prometheus.CounterVec
	trades           *prometheus.CounterVec
	openTrades       prometheus.Gauge
}

// NewMetrics registers all collectors, including the Go and process ones.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		streamReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_reconnects_total",
			Help: "Number of websocket reconnect attempts",
		}),
		streamEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_events_total",
			Help: "Decoded stream events by kind",
		}, []string{"kind"}),
		restRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rest_requests_total",
			Help: "Exchange REST calls by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trades_total",
			Help: "Trade lifecycle events by strategy kind",
		}, []string{"strategy", "event"}),
		openTrades: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "open_trades",
			Help: "Trades currently open across all strategies",
		}),
	}

	m.registry.MustRegister(
		m.streamReconnects,
		m.streamEvents,
		m.restRequests,
		m.trades,
		m.openTrades,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// WatchBusDrops exposes the event bus drop count.
func (m *Metrics) WatchBusDrops(dropped func() uint64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "event_bus_dropped_total",
		Help: "UI events dropped because a subscriber was slow",
	}, func() float64 { return float64(dropped()) }))
}

func (m *Metrics) ObserveREST(endpoint, outcome string) {
	m.restRequests.WithLabelValues(endpoint, outcome).Inc()
}

func (m *Metrics) ObserveReconnect() { m.streamReconnects.Inc() }

func (m *Metrics) ObserveStreamEvent(kind string) {
	m.streamEvents.WithLabelValues(kind).Inc()
}

// ObserveTrade counts a trade event and keeps the open gauge in step.
func (m *Metrics) ObserveTrade(kind, event string) {
	m.trades.WithLabelValues(kind, event).Inc()
	switch event {
	case "opened":
		m.openTrades.Inc()
	case "closed":
		m.openTrades.Dec()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
