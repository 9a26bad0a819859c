package monitor

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics()
	var dropped uint64 = 4
	m.WatchBusDrops(func() uint64 { return dropped })

	m.ObserveReconnect()
	m.ObserveStreamEvent("quote")
	m.ObserveStreamEvent("quote")
	m.ObserveREST("/api/v3/order", "rejected")
	m.ObserveTrade("breakout", "opened")
	m.ObserveTrade("breakout", "opened")
	m.ObserveTrade("breakout", "closed")

	body := scrape(t, m)
	assert.Contains(t, body, "stream_reconnects_total 1")
	assert.Contains(t, body, `stream_events_total{kind="quote"} 2`)
	assert.Contains(t, body, `rest_requests_total{endpoint="/api/v3/order",outcome="rejected"} 1`)
	assert.Contains(t, body, `trades_total{event="opened",strategy="breakout"} 2`)
	assert.Contains(t, body, "open_trades 1")
	assert.Contains(t, body, "event_bus_dropped_total 4")
	assert.Contains(t, body, "go_goroutines")
}
