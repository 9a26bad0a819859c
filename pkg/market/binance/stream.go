package market

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"trading-bot/pkg/exchanges/common"
)

// maxBatch is the number of streams above which Binance tends to reject a
// single SUBSCRIBE.
const maxBatch = 200

// Recorder receives stream lifecycle counters.
type Recorder interface {
	ObserveReconnect()
	ObserveStreamEvent(kind string)
}

// Options configures a Stream.
type Options struct {
	URL            string
	ReconnectDelay time.Duration
	Buffer         int
	Dialer         *websocket.Dialer
	Recorder       Recorder
}

// StreamURL returns the raw websocket endpoint for a market.
func StreamURL(m common.MarketType, testnet bool) string {
	host := "stream.binance.com:9443"
	switch {
	case m.IsFutures() && testnet:
		host = "stream.binancefuture.com"
	case m.IsFutures():
		host = "fstream.binance.com"
	case testnet:
		host = "testnet.binance.vision"
	}
	return (&url.URL{Scheme: "wss", Host: host, Path: "/ws"}).String()
}

type controlMessage struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// Stream is a single multiplexed websocket connection carrying bookTicker
// and aggTrade channels. It keeps a registry of subscriptions, replays it on
// every (re)connect and emits decoded events on Events().
type Stream struct {
	url      string
	dialer   *websocket.Dialer
	backoff  *backoff.ConstantBackOff
	logger   *zap.Logger
	recorder Recorder
	events   chan Event

	mu    sync.Mutex // guards subs, order, conn
	subs  map[Subscription]struct{}
	order []Subscription
	conn  *websocket.Conn

	writeMu sync.Mutex

	state     atomic.Int32
	nextID    atomic.Int64
	reconnect atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewStream builds a stream; call Run to connect.
func NewStream(opts Options, logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 2 * time.Second
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 1024
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	s := &Stream{
		url:      opts.URL,
		dialer:   opts.Dialer,
		backoff:  backoff.NewConstantBackOff(opts.ReconnectDelay),
		logger:   logger.With(zap.String("component", "stream")),
		recorder: opts.Recorder,
		events:   make(chan Event, opts.Buffer),
		subs:     make(map[Subscription]struct{}),
		done:     make(chan struct{}),
	}
	s.reconnect.Store(true)
	return s
}

// Events is closed when Run returns.
func (s *Stream) Events() <-chan Event { return s.events }

// State returns the current connection state.
func (s *Stream) State() State { return State(s.state.Load()) }

// Subscriptions returns the registry in registration order.
func (s *Stream) Subscriptions() []Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Subscription, len(s.order))
	copy(out, s.order)
	return out
}

// Subscribe registers symbols on channel. Pairs already registered are
// skipped; when nothing new remains no message is sent. While disconnected
// the pairs are only registered and go out on the next connect.
func (s *Stream) Subscribe(symbols []string, channel Channel) {
	if len(symbols) > maxBatch {
		s.logger.Warn("subscribing to more than 200 symbols will most likely fail",
			zap.Int("count", len(symbols)), zap.String("channel", string(channel)))
	}

	s.mu.Lock()
	var params []string
	for _, sym := range symbols {
		sub := Subscription{Symbol: sym, Channel: channel}
		if _, ok := s.subs[sub]; ok {
			continue
		}
		s.subs[sub] = struct{}{}
		s.order = append(s.order, sub)
		params = append(params, sub.Param())
	}
	conn := s.conn
	s.mu.Unlock()

	if len(params) == 0 || conn == nil {
		return
	}
	s.send(conn, params)
}

func (s *Stream) send(conn *websocket.Conn, params []string) {
	msg := controlMessage{Method: "SUBSCRIBE", Params: params, ID: s.nextID.Add(1)}

	s.writeMu.Lock()
	err := conn.WriteJSON(msg)
	s.writeMu.Unlock()
	if err != nil {
		// The pairs stay registered and are replayed on reconnect.
		s.logger.Error("subscribe failed", zap.Strings("params", params), zap.Error(err))
		return
	}
	s.logger.Info("subscribed", zap.Strings("params", params), zap.Int64("id", msg.ID))
}

// Run connects and keeps the connection alive until ctx is done or Close is
// called. Reconnects use a fixed delay and never give up.
func (s *Stream) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	defer func() {
		s.state.Store(int32(StateDisconnected))
		close(s.events)
	}()

	for s.reconnect.Load() && ctx.Err() == nil {
		s.state.Store(int32(StateConnecting))
		if err := s.session(ctx); err != nil && s.reconnect.Load() && ctx.Err() == nil {
			s.logger.Warn("stream connection lost", zap.Error(err))
		}
		if !s.reconnect.Load() || ctx.Err() != nil {
			return
		}

		s.state.Store(int32(StateReconnecting))
		if s.recorder != nil {
			s.recorder.ObserveReconnect()
		}
		timer := time.NewTimer(s.backoff.NextBackOff())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// session dials, replays the registry and reads until the connection fails.
func (s *Stream) session(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	s.mu.Lock()
	if !s.reconnect.Load() {
		s.mu.Unlock()
		return nil
	}
	s.conn = conn
	batches := make(map[Channel][]string)
	var channels []Channel
	for _, sub := range s.order {
		if _, seen := batches[sub.Channel]; !seen {
			channels = append(channels, sub.Channel)
		}
		batches[sub.Channel] = append(batches[sub.Channel], sub.Param())
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}()

	s.state.Store(int32(StateConnected))
	s.backoff.Reset()
	s.logger.Info("stream connected", zap.String("url", s.url))

	for _, ch := range channels {
		if len(batches[ch]) > maxBatch {
			s.logger.Warn("subscribing to more than 200 symbols will most likely fail",
				zap.Int("count", len(batches[ch])), zap.String("channel", string(ch)))
		}
		s.send(conn, batches[ch])
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		ev, ok, err := Decode(msg)
		if err != nil {
			s.logger.Warn("dropping malformed stream message", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		if s.recorder != nil {
			s.recorder.ObserveStreamEvent(ev.Kind.String())
		}
		select {
		case s.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops reconnecting and closes the active connection. It is safe to
// call more than once and from any goroutine.
func (s *Stream) Close() {
	s.reconnect.Store(false)
	s.closeOnce.Do(func() {
		close(s.done)
	})

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	_ = conn.Close()
}
