package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-bot/internal/events"
	"trading-bot/internal/strategy"
	"trading-bot/pkg/cache"
	"trading-bot/pkg/db"
	"trading-bot/pkg/exchanges/common"
	market "trading-bot/pkg/market/binance"
)

type fakePrices map[string]cache.Quote

func (f fakePrices) All() map[string]cache.Quote { return f }

func (f fakePrices) GetWithAge(symbol string) (cache.Quote, time.Duration, bool) {
	q, ok := f[symbol]
	return q, 1500 * time.Millisecond, ok
}

type fakeContracts map[string]common.Contract

func (f fakeContracts) Get(symbol string) (common.Contract, bool) {
	c, ok := f[symbol]
	return c, ok
}
func (f fakeContracts) Len() int { return len(f) }

type fakeStrategies struct {
	trades      map[string][]strategy.Trade
	lastPending bool
}

func (f *fakeStrategies) Snapshot() []strategy.Snapshot {
	return []strategy.Snapshot{{Config: strategy.Config{ID: "brk", Kind: strategy.KindBreakout, Symbol: "ABCUSD"}}}
}

func (f *fakeStrategies) Trades(id string) ([]strategy.Trade, bool) {
	t, ok := f.trades[id]
	return t, ok
}

func (f *fakeStrategies) Logs(id string, pendingOnly bool) ([]strategy.LogEntry, bool) {
	f.lastPending = pendingOnly
	if _, ok := f.trades[id]; !ok {
		return nil, false
	}
	return []strategy.LogEntry{{Message: "trade opened"}}, true
}

type fakeBalances struct{}

func (fakeBalances) Snapshot() (map[string]common.Balance, time.Time) {
	return map[string]common.Balance{"USDT": {Asset: "USDT", Free: 100}}, time.Unix(0, 0)
}

func (b fakeBalances) Get(asset string) (common.Balance, bool) {
	all, _ := b.Snapshot()
	v, ok := all[asset]
	return v, ok
}

type fakeStream struct{}

func (fakeStream) State() market.State { return market.StateConnected }
func (fakeStream) Subscriptions() []market.Subscription {
	return []market.Subscription{{Symbol: "BTCUSDT", Channel: market.ChannelBookTicker}}
}

type fakeHistory struct {
	rows []db.TradeRow
	err  error
	last string
}

func (f *fakeHistory) ListTrades(_ context.Context, strategyID string) ([]db.TradeRow, error) {
	f.last = strategyID
	return f.rows, f.err
}

func newTestServer(t *testing.T, mutate func(*Options)) (*Server, *fakeStrategies) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	strategies := &fakeStrategies{trades: map[string][]strategy.Trade{
		"brk": {{ID: 1, Symbol: "ABCUSD", Side: strategy.SideLong, Quantity: 2, EntryPrice: 100, EntrySet: true, Status: strategy.TradeOpen, PnL: 3}},
	}}
	opts := Options{
		Bus:        events.NewBus(),
		Prices:     fakePrices{"ABCUSD": {Bid: 101.5, Ask: 101.6}},
		Contracts:  fakeContracts{"ABCUSD": {Symbol: "ABCUSD", TickSize: 0.01, LotSize: 0.001}},
		Strategies: strategies,
		Balances:   fakeBalances{},
		Stream:     fakeStream{},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("open_trades 1\n"))
		}),
		RateLimit: 1000,
	}
	if mutate != nil {
		mutate(&opts)
	}
	return NewServer(opts), strategies
}

func do(s *Server, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","stream":"connected"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "open_trades 1")
}

func TestReadEndpoints(t *testing.T) {
	s, strategies := newTestServer(t, nil)

	rec := do(s, http.MethodGet, "/api/prices", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var prices map[string]cache.Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prices))
	assert.Equal(t, 101.5, prices["ABCUSD"].Bid)

	rec = do(s, http.MethodGet, "/api/prices/abcusd", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"symbol":"ABCUSD","bid":101.5,"ask":101.6,"age_ms":1500}`, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, do(s, http.MethodGet, "/api/prices/XYZ", nil).Code)

	rec = do(s, http.MethodGet, "/api/contracts/abcusd", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var contract common.Contract
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &contract))
	assert.Equal(t, 0.001, contract.LotSize)

	assert.Equal(t, http.StatusNotFound, do(s, http.MethodGet, "/api/contracts/XYZ", nil).Code)

	rec = do(s, http.MethodGet, "/api/strategies", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"brk"`)

	rec = do(s, http.MethodGet, "/api/strategies/brk/trades", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var trades []strategy.Trade
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trades))
	require.Len(t, trades, 1)
	assert.Equal(t, 3.0, trades[0].PnL)

	assert.Equal(t, http.StatusNotFound, do(s, http.MethodGet, "/api/strategies/nope/trades", nil).Code)

	rec = do(s, http.MethodGet, "/api/strategies/brk/logs?pending=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strategies.lastPending)
	assert.Contains(t, rec.Body.String(), "trade opened")

	rec = do(s, http.MethodGet, "/api/balances", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"USDT"`)

	rec = do(s, http.MethodGet, "/api/balances/usdt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var bal common.Balance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bal))
	assert.Equal(t, 100.0, bal.Free)
	assert.Equal(t, http.StatusNotFound, do(s, http.MethodGet, "/api/balances/DOGE", nil).Code)

	rec = do(s, http.MethodGet, "/api/system", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"subscriptions":1`)
}

func TestHistory(t *testing.T) {
	opened := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	history := &fakeHistory{rows: []db.TradeRow{
		{ID: 1, StrategyID: "brk", Symbol: "ABCUSD", Side: "long", Quantity: 2,
			EntryPrice: sql.NullFloat64{Float64: 100, Valid: true}, Status: "closed", PnL: 3,
			ExitReason: "take_profit", OpenedAt: opened, ClosedAt: sql.NullTime{Time: opened.Add(time.Minute), Valid: true}},
		{ID: 2, StrategyID: "brk", Symbol: "ABCUSD", Side: "short", Quantity: 1, Status: "open", OpenedAt: opened},
	}}
	s, _ := newTestServer(t, func(o *Options) { o.History = history })

	rec := do(s, http.MethodGet, "/api/history?strategy=brk", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "brk", history.last)

	var items []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 2)
	assert.Equal(t, 100.0, items[0]["entry_price"])
	assert.Equal(t, "take_profit", items[0]["exit_reason"])
	assert.Contains(t, items[0], "closed_at")
	assert.Nil(t, items[1]["entry_price"])
	assert.NotContains(t, items[1], "closed_at")

	history.err = errors.New("disk I/O error")
	assert.Equal(t, http.StatusInternalServerError, do(s, http.MethodGet, "/api/history", nil).Code)
}

func TestMissingViewsAnswerUnavailable(t *testing.T) {
	s, _ := newTestServer(t, func(o *Options) {
		o.Prices = nil
		o.Balances = nil
	})
	assert.Equal(t, http.StatusServiceUnavailable, do(s, http.MethodGet, "/api/prices", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(s, http.MethodGet, "/api/balances", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(s, http.MethodGet, "/api/history", nil).Code)
}

func TestAuthMiddleware(t *testing.T) {
	const secret = "s3cret"
	s, _ := newTestServer(t, func(o *Options) { o.JWTSecret = secret })

	rec := do(s, http.MethodGet, "/api/prices", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "MISSING_TOKEN")

	rec = do(s, http.MethodGet, "/api/prices", http.Header{"Authorization": {"Basic abc"}})
	assert.Contains(t, rec.Body.String(), "INVALID_AUTH_HEADER")

	token, err := IssueToken("ui", secret, time.Minute)
	require.NoError(t, err)
	rec = do(s, http.MethodGet, "/api/prices", http.Header{"Authorization": {"Bearer " + token}})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, http.MethodGet, "/api/prices?token="+token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	other, err := IssueToken("ui", "other-secret", time.Minute)
	require.NoError(t, err)
	rec = do(s, http.MethodGet, "/api/prices", http.Header{"Authorization": {"Bearer " + other}})
	assert.Contains(t, rec.Body.String(), "INVALID_TOKEN")

	expired, err := IssueToken("ui", secret, -time.Minute)
	require.NoError(t, err)
	rec = do(s, http.MethodGet, "/api/prices", http.Header{"Authorization": {"Bearer " + expired}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Health stays public.
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/health", nil).Code)

	_, err = IssueToken("ui", "", time.Minute)
	assert.Error(t, err)
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t, func(o *Options) { o.RateLimit = 1 })
	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		codes = append(codes, do(s, http.MethodGet, "/health", nil).Code)
	}
	assert.Equal(t, []int{200, 200, 200, 429}, codes)
}

func TestWebsocketPushesBusEvents(t *testing.T) {
	s, _ := newTestServer(t, nil)
	srv := httptest.NewServer(s.Router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The subscription is registered after the upgrade; keep publishing
	// until the first message arrives.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.Bus.Publish(events.EventQuote, common.Quote{Symbol: "ABCUSD", Bid: 1, Ask: 2})
			}
		}
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Topic   string       `json:"topic"`
		Payload common.Quote `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "quote", msg.Topic)
	assert.Equal(t, "ABCUSD", msg.Payload.Symbol)
}
