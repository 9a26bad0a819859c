package market

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"trading-bot/internal/events"
	"trading-bot/pkg/exchanges/common"
	market "trading-bot/pkg/market/binance"
)

// DefaultSymbol is watched even when no watchlist is configured.
const DefaultSymbol = "BTCUSDT"

// Source is the decoded stream the feed drains.
type Source interface {
	Events() <-chan market.Event
	Subscribe(symbols []string, channel market.Channel)
}

// QuoteCache stores the latest top of book.
type QuoteCache interface {
	Set(symbol string, bid, ask float64)
}

// Dispatcher receives ticks for strategy instances.
type Dispatcher interface {
	OnQuote(symbol string, bid, ask float64)
	OnTrade(t market.Trade)
}

// TickerFetcher reads the current top of book over REST.
type TickerFetcher interface {
	GetBookTicker(ctx context.Context, symbol string) (common.Quote, error)
}

// Feed is the single consumer of stream events. It owns writes to the quote
// cache and fans ticks out to the strategy engine.
type Feed struct {
	Source  Source
	Cache   QuoteCache
	Engine  Dispatcher
	Tickers TickerFetcher
	Bus     *events.Bus
	Logger  *zap.Logger

	mu      sync.Mutex
	watched []string
}

// Run drains the stream until ctx is done or the stream closes its channel.
func (f *Feed) Run(ctx context.Context) {
	logger := f.logger()
	logger.Info("market feed started")
	defer logger.Info("market feed stopped")

	stream := f.Source.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-stream:
			if !ok {
				return
			}
			f.handle(ev)
		}
	}
}

func (f *Feed) handle(ev market.Event) {
	switch ev.Kind {
	case market.KindQuote:
		q := ev.Quote
		if f.Cache != nil {
			f.Cache.Set(q.Symbol, q.BidPrice, q.AskPrice)
		}
		if f.Engine != nil {
			f.Engine.OnQuote(q.Symbol, q.BidPrice, q.AskPrice)
		}
		if f.Bus != nil {
			f.Bus.Publish(events.EventQuote, common.Quote{Symbol: q.Symbol, Bid: q.BidPrice, Ask: q.AskPrice})
		}
	case market.KindTrade:
		if f.Engine != nil {
			f.Engine.OnTrade(ev.Trade)
		}
	}
}

// Watch adds symbol to the watchlist: the cache is primed from REST and the
// book ticker stream subscribed. Watching a symbol twice is a no-op.
func (f *Feed) Watch(ctx context.Context, symbol string) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return
	}

	f.mu.Lock()
	for _, s := range f.watched {
		if s == symbol {
			f.mu.Unlock()
			return
		}
	}
	f.watched = append(f.watched, symbol)
	f.mu.Unlock()

	if f.Tickers != nil {
		q, err := f.Tickers.GetBookTicker(ctx, symbol)
		if err != nil {
			f.logger().Warn("watchlist price unavailable", zap.String("symbol", symbol), zap.Error(err))
		} else if f.Cache != nil {
			f.Cache.Set(symbol, q.Bid, q.Ask)
		}
	}
	f.Source.Subscribe([]string{symbol}, market.ChannelBookTicker)
}

// Watched returns the watchlist in insertion order.
func (f *Feed) Watched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.watched...)
}

func (f *Feed) logger() *zap.Logger {
	if f.Logger == nil {
		return zap.NewNop()
	}
	return f.Logger.With(zap.String("component", "feed"))
}
