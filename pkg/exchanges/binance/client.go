package binance

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"trading-bot/pkg/exchanges/common"
)

// Config holds Binance credentials and the venue selection.
type Config struct {
	APIKey            string
	APISecret         string
	Testnet           bool
	Market            common.MarketType
	RecvWindow        int64 // ms
	Timeout           time.Duration
	RequestsPerSecond float64
	BaseURL           string // overrides the venue default
}

// Recorder receives the outcome of every REST call.
type Recorder interface {
	ObserveREST(endpoint, outcome string)
}

type endpoints struct {
	time         string
	exchangeInfo string
	klines       string
	bookTicker   string
	account      string
	order        string
	trades       string
}

var spotEndpoints = endpoints{
	time:         "/api/v3/time",
	exchangeInfo: "/api/v3/exchangeInfo",
	klines:       "/api/v3/klines",
	bookTicker:   "/api/v3/ticker/bookTicker",
	account:      "/api/v3/account",
	order:        "/api/v3/order",
	trades:       "/api/v3/myTrades",
}

var futuresEndpoints = endpoints{
	time:         "/fapi/v1/time",
	exchangeInfo: "/fapi/v1/exchangeInfo",
	klines:       "/fapi/v1/klines",
	bookTicker:   "/fapi/v1/ticker/bookTicker",
	account:      "/fapi/v2/account",
	order:        "/fapi/v1/order",
	trades:       "/fapi/v1/userTrades",
}

// Client talks to either Binance spot or USDT-M futures, selected once by
// Config.Market.
type Client struct {
	cfg         Config
	baseURL     string
	paths       endpoints
	httpClient  *http.Client
	timeSync    *common.TimeSync
	rateLimiter *common.RateLimiter
	logger      *zap.Logger
	recorder    Recorder
}

// New builds a client for the configured market.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Market == "" {
		cfg.Market = common.MarketSpot
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}

	paths := spotEndpoints
	base := "https://api.binance.com"
	weightLimit := 1200
	if cfg.Testnet {
		base = "https://testnet.binance.vision"
	}
	if cfg.Market.IsFutures() {
		paths = futuresEndpoints
		base = "https://fapi.binance.com"
		weightLimit = 2400
		if cfg.Testnet {
			base = "https://testnet.binancefuture.com"
		}
	}
	if cfg.BaseURL != "" {
		base = cfg.BaseURL
	}

	logger = logger.With(zap.String("component", "binance"), zap.String("market", string(cfg.Market)))
	client := &Client{
		cfg:         cfg,
		baseURL:     base,
		paths:       paths,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: common.NewRateLimiter(weightLimit, time.Minute, cfg.RequestsPerSecond, logger),
		logger:      logger,
	}
	client.timeSync = common.NewTimeSync(client.ServerTime, logger)
	return client
}

// SetRecorder installs a REST outcome recorder.
func (c *Client) SetRecorder(r Recorder) { c.recorder = r }

// Market reports which venue this client trades on.
func (c *Client) Market() common.MarketType { return c.cfg.Market }

// StartTimeSync keeps request timestamps aligned with the server clock.
func (c *Client) StartTimeSync(ctx context.Context) { c.timeSync.Start(ctx) }

func (c *Client) observe(endpoint, outcome string) {
	if c.recorder != nil {
		c.recorder.ObserveREST(endpoint, outcome)
	}
}
