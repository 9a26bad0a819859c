package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trading-bot/internal/events"
	"trading-bot/internal/strategy"
	"trading-bot/pkg/cache"
	"trading-bot/pkg/db"
	"trading-bot/pkg/exchanges/common"
	market "trading-bot/pkg/market/binance"
)

// PriceView reads the quote cache.
type PriceView interface {
	All() map[string]cache.Quote
	GetWithAge(symbol string) (cache.Quote, time.Duration, bool)
}

// ContractView reads the contract catalog.
type ContractView interface {
	Get(symbol string) (common.Contract, bool)
	Len() int
}

// StrategyView reads strategy instances.
type StrategyView interface {
	Snapshot() []strategy.Snapshot
	Trades(id string) ([]strategy.Trade, bool)
	Logs(id string, pendingOnly bool) ([]strategy.LogEntry, bool)
}

// BalanceView reads the cached account balances.
type BalanceView interface {
	Snapshot() (map[string]common.Balance, time.Time)
	Get(asset string) (common.Balance, bool)
}

// HistoryView reads persisted trades, including those of earlier runs.
type HistoryView interface {
	ListTrades(ctx context.Context, strategyID string) ([]db.TradeRow, error)
}

// StreamView reports the market data connection.
type StreamView interface {
	State() market.State
	Subscriptions() []market.Subscription
}

// SystemMeta describes runtime status exposed to the UI.
type SystemMeta struct {
	Market  common.MarketType `json:"market"`
	Testnet bool              `json:"testnet"`
	Version string            `json:"version"`
}

// Options carries the server's collaborators. Nil views answer 503.
type Options struct {
	Bus        *events.Bus
	Prices     PriceView
	Contracts  ContractView
	Strategies StrategyView
	Balances   BalanceView
	Stream     StreamView
	History    HistoryView
	Metrics    http.Handler
	JWTSecret  string
	RateLimit  float64 // requests per second per IP
	Meta       SystemMeta
	Logger     *zap.Logger
}

// Server is the read-only HTTP surface of the bot.
type Server struct {
	Options
	Router *gin.Engine
	logger *zap.Logger
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "api"))
	rps := opts.RateLimit
	if rps <= 0 {
		rps = 20
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(logger))
	r.Use(RateLimitMiddleware(newIPLimiters(rps, int(rps*2)+1), logger))
	r.Use(CORSMiddleware())

	s := &Server{Options: opts, Router: r, logger: logger}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	if s.Metrics != nil {
		s.Router.GET("/metrics", gin.WrapH(s.Metrics))
	}

	api := s.Router.Group("/api")
	api.Use(AuthMiddleware(s.JWTSecret))
	{
		api.GET("/system", s.getSystem)
		api.GET("/prices", s.getPrices)
		api.GET("/prices/:symbol", s.getPrice)
		api.GET("/contracts/:symbol", s.getContract)
		api.GET("/strategies", s.getStrategies)
		api.GET("/strategies/:id/trades", s.getStrategyTrades)
		api.GET("/strategies/:id/logs", s.getStrategyLogs)
		api.GET("/balances", s.getBalances)
		api.GET("/balances/:asset", s.getBalance)
		api.GET("/history", s.getHistory)
		api.GET("/ws", s.websocket)
	}
}

func (s *Server) health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if s.Stream != nil {
		body["stream"] = s.Stream.State().String()
	}
	c.JSON(http.StatusOK, body)
}
