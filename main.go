package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"trading-bot/internal/api"
	"trading-bot/internal/balance"
	"trading-bot/internal/catalog"
	"trading-bot/internal/events"
	marketfeed "trading-bot/internal/market"
	"trading-bot/internal/monitor"
	"trading-bot/internal/strategy"
	"trading-bot/pkg/cache"
	"trading-bot/pkg/config"
	"trading-bot/pkg/db"
	"trading-bot/pkg/exchanges/binance"
	"trading-bot/pkg/logger"
	market "trading-bot/pkg/market/binance"
)

var buildVersion = "dev"

const (
	catalogRefresh  = time.Hour
	balanceRefresh  = 30 * time.Second
	shutdownTimeout = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if len(os.Args) > 1 && os.Args[1] == "token" {
		issueToken(cfg, os.Args[2:])
		return
	}
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	zlog, err := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("trading bot stopped", zap.Error(err))
	}
}

// issueToken prints an API bearer token: `trading-bot token [subject]`.
func issueToken(cfg *config.Config, args []string) {
	subject := "ui"
	if len(args) > 0 {
		subject = args[0]
	}
	token, err := api.IssueToken(subject, cfg.JWTSecret, 30*24*time.Hour)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Println(token)
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zlog.Info("starting trading bot",
		zap.String("market", string(cfg.Market())),
		zap.Bool("testnet", cfg.BinanceTestnet),
		zap.String("db", cfg.DBPath),
		zap.String("version", buildVersion))

	database, err := db.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open workspace: %w", err)
	}
	defer database.Close()
	store := database.Store()

	if cfg.StrategiesFile != "" {
		if configs, err := strategy.LoadConfig(cfg.StrategiesFile); err != nil {
			zlog.Error("strategies file ignored", zap.String("path", cfg.StrategiesFile), zap.Error(err))
		} else if err := strategy.SyncConfigToStore(ctx, store, configs); err != nil {
			zlog.Error("strategies not saved", zap.Error(err))
		} else {
			zlog.Info("strategies loaded from file", zap.Int("count", len(configs)))
		}
	}

	metrics := monitor.NewMetrics()
	bus := events.NewBus()
	metrics.WatchBusDrops(bus.Dropped)

	client := binance.New(binance.Config{
		APIKey:            cfg.BinanceAPIKey,
		APISecret:         cfg.BinanceAPISecret,
		Testnet:           cfg.BinanceTestnet,
		Market:            cfg.Market(),
		RecvWindow:        cfg.RecvWindow,
		Timeout:           cfg.HTTPTimeout,
		RequestsPerSecond: cfg.RESTRequestsPerS,
	}, zlog)
	client.SetRecorder(metrics)
	client.StartTimeSync(ctx)

	contracts := catalog.New(client, zlog)
	zlog.Info("contracts loaded", zap.Int("count", contracts.Reload(ctx)))
	go refreshCatalog(ctx, contracts)

	quotes := cache.NewShardedQuoteCache()
	stream := market.NewStream(market.Options{
		URL:            market.StreamURL(cfg.Market(), cfg.BinanceTestnet),
		ReconnectDelay: cfg.WSReconnectDelay,
		Recorder:       metrics,
	}, zlog)

	engine := strategy.NewEngine(strategy.Deps{
		Exchange:  client,
		Contracts: contracts,
		Stream:    stream,
		Bus:       bus,
		Recorder:  metrics,
		Trades:    store,
		Logger:    zlog,
	})

	feed := &marketfeed.Feed{
		Source:  stream,
		Cache:   quotes,
		Engine:  engine,
		Tickers: client,
		Bus:     bus,
		Logger:  zlog,
	}

	go stream.Run(ctx)
	go feed.Run(ctx)
	go publishStreamState(ctx, stream, bus)

	watchlist(ctx, cfg, store, feed, zlog)

	started, err := engine.LoadFromStore(ctx, store)
	if err != nil {
		zlog.Warn("some strategies did not start", zap.Error(err))
	}
	zlog.Info("strategies running", zap.Int("count", started))

	balances := balance.NewManager(client, balanceRefresh, zlog)
	balances.Start(ctx)

	server := api.NewServer(api.Options{
		Bus:        bus,
		Prices:     quotes,
		Contracts:  contracts,
		Strategies: engine,
		Balances:   balances,
		Stream:     stream,
		History:    store,
		Metrics:    metrics.Handler(),
		JWTSecret:  cfg.JWTSecret,
		Meta: api.SystemMeta{
			Market:  cfg.Market(),
			Testnet: cfg.BinanceTestnet,
			Version: buildVersion,
		},
		Logger: zlog,
	})
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		zlog.Info("api listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	if cfg.JWTSecret == "" {
		zlog.Warn("JWT_SECRET not set; api is unauthenticated")
	}

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		stream.Close()
		engine.StopAll()
		return fmt.Errorf("api server: %w", err)
	}

	zlog.Info("shutting down")
	stream.Close()
	engine.StopAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("api shutdown", zap.Error(err))
	}
	return nil
}

// watchlist subscribes the saved and configured symbols plus the default
// one, then saves the merged list back.
func watchlist(ctx context.Context, cfg *config.Config, store *db.Store, feed *marketfeed.Feed, zlog *zap.Logger) {
	saved, err := store.LoadWatchlist(ctx)
	if err != nil {
		zlog.Warn("saved watchlist unavailable", zap.Error(err))
	}

	feed.Watch(ctx, marketfeed.DefaultSymbol)
	for _, e := range saved {
		feed.Watch(ctx, e.Symbol)
	}
	for _, s := range cfg.Watchlist {
		feed.Watch(ctx, s)
	}

	symbols := feed.Watched()
	entries := make([]db.WatchlistEntry, 0, len(symbols))
	for _, s := range symbols {
		entries = append(entries, db.WatchlistEntry{Symbol: s, Exchange: string(cfg.Market())})
	}
	if err := store.SaveWatchlist(ctx, entries); err != nil {
		zlog.Warn("watchlist not saved", zap.Error(err))
	}
}

func refreshCatalog(ctx context.Context, contracts *catalog.Catalog) {
	ticker := time.NewTicker(catalogRefresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			contracts.Reload(ctx)
		}
	}
}

// publishStreamState forwards connection state changes to UI subscribers.
func publishStreamState(ctx context.Context, stream *market.Stream, bus *events.Bus) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	last := stream.State()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s := stream.State(); s != last {
				last = s
				bus.Publish(events.EventStreamState, s.String())
			}
		}
	}
}
