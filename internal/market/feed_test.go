package market

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"trading-bot/internal/events"
	"trading-bot/pkg/cache"
	"trading-bot/pkg/exchanges/common"
	market "trading-bot/pkg/market/binance"
)

type fakeSource struct {
	events chan market.Event
	mu     sync.Mutex
	subs   []market.Subscription
}

func (s *fakeSource) Events() <-chan market.Event { return s.events }

func (s *fakeSource) Subscribe(symbols []string, channel market.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sym := range symbols {
		s.subs = append(s.subs, market.Subscription{Symbol: sym, Channel: channel})
	}
}

type recordingEngine struct {
	mu     sync.Mutex
	quotes []common.Quote
	trades []market.Trade
}

func (e *recordingEngine) OnQuote(symbol string, bid, ask float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.quotes = append(e.quotes, common.Quote{Symbol: symbol, Bid: bid, Ask: ask})
}

func (e *recordingEngine) OnTrade(t market.Trade) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.trades = append(e.trades, t)
}

func (e *recordingEngine) counts() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.quotes), len(e.trades)
}

type tickerFunc func(ctx context.Context, symbol string) (common.Quote, error)

func (f tickerFunc) GetBookTicker(ctx context.Context, symbol string) (common.Quote, error) {
	return f(ctx, symbol)
}

func TestFeedDispatchesEvents(t *testing.T) {
	src := &fakeSource{events: make(chan market.Event, 4)}
	quotes := cache.NewShardedQuoteCache()
	eng := &recordingEngine{}
	bus := events.NewBus()
	busCh, unsub := bus.Subscribe(4, events.EventQuote)
	defer unsub()

	f := &Feed{Source: src, Cache: quotes, Engine: eng, Bus: bus}
	done := make(chan struct{})
	go func() {
		f.Run(context.Background())
		close(done)
	}()

	src.events <- market.Event{Kind: market.KindQuote, Quote: market.BookTicker{Symbol: "ABCUSD", BidPrice: 101.5, AskPrice: 101.6}}
	src.events <- market.Event{Kind: market.KindTrade, Trade: market.Trade{Symbol: "ABCUSD", Price: 101.55, Qty: 1, Time: 1}}
	close(src.events)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("feed did not stop after the stream closed")
	}

	q, ok := quotes.Get("ABCUSD")
	require.True(t, ok)
	assert.Equal(t, 101.5, q.Bid)
	assert.Equal(t, 101.6, q.Ask)

	nq, nt := eng.counts()
	assert.Equal(t, 1, nq)
	assert.Equal(t, 1, nt)

	msg := <-busCh
	assert.Equal(t, common.Quote{Symbol: "ABCUSD", Bid: 101.5, Ask: 101.6}, msg.Payload)
}

func TestFeedStopsOnContextCancel(t *testing.T) {
	src := &fakeSource{events: make(chan market.Event)}
	f := &Feed{Source: src}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("feed ignored cancellation")
	}
}

func TestWatchPrimesCacheAndSubscribesOnce(t *testing.T) {
	src := &fakeSource{}
	quotes := cache.NewShardedQuoteCache()
	calls := 0
	f := &Feed{
		Source: src,
		Cache:  quotes,
		Tickers: tickerFunc(func(_ context.Context, symbol string) (common.Quote, error) {
			calls++
			return common.Quote{Symbol: symbol, Bid: 1, Ask: 2}, nil
		}),
	}

	f.Watch(context.Background(), "btcusdt")
	f.Watch(context.Background(), "BTCUSDT ")

	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"BTCUSDT"}, f.Watched())
	assert.Equal(t, []market.Subscription{{Symbol: "BTCUSDT", Channel: market.ChannelBookTicker}}, src.subs)
	q, ok := quotes.Get("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 2.0, q.Ask)
}

func TestWatchSubscribesWhenPrimingFails(t *testing.T) {
	src := &fakeSource{}
	core, logs := observer.New(zap.WarnLevel)
	f := &Feed{
		Source: src,
		Cache:  cache.NewShardedQuoteCache(),
		Logger: zap.New(core),
		Tickers: tickerFunc(func(context.Context, string) (common.Quote, error) {
			return common.Quote{}, errors.New("no result")
		}),
	}

	f.Watch(context.Background(), DefaultSymbol)

	assert.Len(t, src.subs, 1)
	assert.Equal(t, 1, logs.FilterMessage("watchlist price unavailable").Len())
}
