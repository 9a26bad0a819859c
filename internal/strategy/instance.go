package strategy

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"trading-bot/internal/events"
	"trading-bot/pkg/db"
	"trading-bot/pkg/exchanges/common"
	market "trading-bot/pkg/market/binance"
)

const (
	tickBuffer     = 1024
	entryPollDelay = 2 * time.Second
	maxTickLag     = 2 * time.Second
)

// Exchange is the REST surface an instance trades through.
type Exchange interface {
	common.Gateway
	GetHistoricalCandles(ctx context.Context, contract common.Contract, interval string) ([]common.Candle, error)
	TradeSize(ctx context.Context, contract common.Contract, price, balancePct float64) (float64, error)
}

// Subscriber registers stream channels for a symbol.
type Subscriber interface {
	Subscribe(symbols []string, channel market.Channel)
}

// Publisher receives UI events.
type Publisher interface {
	Publish(e events.Event, payload any)
}

// Recorder counts trade lifecycle events.
type Recorder interface {
	ObserveTrade(kind, event string)
}

// TradeStore persists ledger entries.
type TradeStore interface {
	UpsertTrade(ctx context.Context, t db.TradeRow) error
}

// ContractSource resolves symbols to contracts.
type ContractSource interface {
	Get(symbol string) (common.Contract, bool)
}

// Deps are the collaborators shared by all instances. Only Exchange and
// Contracts are required.
type Deps struct {
	Exchange  Exchange
	Contracts ContractSource
	Stream    Subscriber
	Bus       Publisher
	Recorder  Recorder
	Trades    TradeStore
	Logger    *zap.Logger
}

// LogPayload is published on events.EventStrategyLog.
type LogPayload struct {
	StrategyID string   `json:"strategy_id"`
	Entry      LogEntry `json:"entry"`
}

// Instance runs one strategy on one contract. Trade ticks are processed on
// its own goroutine; quotes only refresh PnL.
type Instance struct {
	cfg      Config
	contract common.Contract
	tf       time.Duration
	rule     Rule
	deps     Deps
	logger   *zap.Logger

	ledger Ledger
	logs   logBook
	ticks  chan market.Trade
	done   chan struct{}

	// owned by the run goroutine
	series    *candleSeries
	lastPrice float64
	held      exitHold

	pollDelay time.Duration
	now       func() time.Time
}

// exitHold parks a trade whose exit order failed until the next candle.
type exitHold struct {
	trade  int64
	candle int64
}

func newInstance(cfg Config, contract common.Contract, deps Deps) (*Instance, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rule, err := newRule(cfg)
	if err != nil {
		return nil, err
	}
	tf, err := timeframeDuration(cfg.Timeframe)
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Instance{
		cfg:       cfg,
		contract:  contract,
		tf:        tf,
		rule:      rule,
		deps:      deps,
		logger:    logger.With(zap.String("strategy", cfg.ID), zap.String("symbol", cfg.Symbol)),
		ticks:     make(chan market.Trade, tickBuffer),
		done:      make(chan struct{}),
		series:    newCandleSeries(cfg.Timeframe, tf.Milliseconds(), nil),
		pollDelay: entryPollDelay,
		now:       time.Now,
	}, nil
}

func (i *Instance) ID() string { return i.cfg.ID }
func (i *Instance) Config() Config { return i.cfg }
func (i *Instance) Contract() common.Contract { return i.contract }
func (i *Instance) Trades() []Trade { return i.ledger.Snapshot() }
func (i *Instance) Logs() []LogEntry { return i.logs.snapshot() }
func (i *Instance) PendingLogs() []LogEntry { return i.logs.pending() }
func (i *Instance) Done() <-chan struct{} { return i.done }

// ActiveTrades returns the open trades (at most one).
func (i *Instance) ActiveTrades() []Trade {
	if t, ok := i.ledger.Open(); ok {
		return []Trade{t}
	}
	return nil
}

// start subscribes the contract's streams and launches the run loop.
func (i *Instance) start(ctx context.Context) {
	if i.deps.Stream != nil {
		i.deps.Stream.Subscribe([]string{i.cfg.Symbol}, market.ChannelAggTrade)
		i.deps.Stream.Subscribe([]string{i.cfg.Symbol}, market.ChannelBookTicker)
	}
	go i.run(ctx)
}

func (i *Instance) run(ctx context.Context) {
	defer close(i.done)

	seed, err := i.deps.Exchange.GetHistoricalCandles(ctx, i.contract, i.cfg.Timeframe)
	if err != nil {
		i.record(zapcore.WarnLevel, "historical candles unavailable", zap.Error(err))
	}
	i.series = newCandleSeries(i.cfg.Timeframe, i.tf.Milliseconds(), seed)
	i.record(zapcore.InfoLevel, "strategy started", zap.String("kind", string(i.cfg.Kind)), zap.Int("candles", len(seed)))

	for {
		select {
		case <-ctx.Done():
			i.record(zapcore.InfoLevel, "strategy stopped")
			return
		case t := <-i.ticks:
			i.onTrade(ctx, t)
		}
	}
}

// Enqueue hands a trade tick to the run loop without blocking the caller.
func (i *Instance) Enqueue(t market.Trade) {
	select {
	case i.ticks <- t:
	default:
		i.logger.Warn("tick dropped; strategy is falling behind", zap.Int64("time", t.Time))
	}
}

// OnQuote refreshes PnL of the open trade.
func (i *Instance) OnQuote(bid, ask float64) {
	i.ledger.MarkPrices(bid, ask)
}

func (i *Instance) onTrade(ctx context.Context, t market.Trade) {
	if lag := i.now().UnixMilli() - t.Time; lag >= maxTickLag.Milliseconds() {
		i.logger.Warn("trade tick lags wall clock", zap.Int64("lag_ms", lag))
	}

	candleClosed := i.series.add(t.Price, t.Qty, t.Time)
	i.lastPrice = t.Price

	if i.checkExit(ctx, t.Price) {
		return
	}

	sig := i.rule.OnTick(i.series.all())
	if candleClosed {
		if s := i.rule.OnCandleClose(i.series.closed()); s != SignalNone {
			sig = s
		}
	}
	i.act(ctx, sig)
}

func (i *Instance) act(ctx context.Context, sig Signal) {
	if sig == SignalNone {
		return
	}
	open, hasOpen := i.ledger.Open()
	switch sig {
	case SignalExit:
		if hasOpen {
			i.closeTrade(ctx, open, "signal")
		}
	case SignalLong, SignalShort:
		side := sideOf(sig)
		if !hasOpen {
			i.openTrade(ctx, side)
		} else if open.Side != side {
			i.closeTrade(ctx, open, "reverse_signal")
		}
	}
}

func (i *Instance) openTrade(ctx context.Context, side Side) {
	size, err := i.deps.Exchange.TradeSize(ctx, i.contract, i.lastPrice, i.cfg.BalancePct)
	if err != nil {
		i.record(zapcore.WarnLevel, "entry skipped", zap.String("side", string(side)), zap.Error(err))
		return
	}

	res, err := i.deps.Exchange.PlaceOrder(ctx, i.contract, common.OrderRequest{
		Side: side.entryOrderSide(),
		Type: common.OrderTypeMarket,
		Qty:  size,
	})
	if err != nil {
		i.record(zapcore.ErrorLevel, "entry order failed", zap.String("side", string(side)), zap.Error(err))
		return
	}
	if res.Status.Dead() {
		i.record(zapcore.WarnLevel, "entry order not accepted",
			zap.String("side", string(side)),
			zap.Int64("order_id", res.OrderID),
			zap.String("order_status", string(res.Status)))
		return
	}

	now := i.now()
	trade := Trade{
		ID:           now.UnixMilli(),
		StrategyID:   i.cfg.ID,
		Symbol:       i.cfg.Symbol,
		Side:         side,
		Quantity:     size,
		EntryOrderID: res.OrderID,
		Status:       TradeOpen,
		OpenedAt:     now,
	}
	if res.Status == common.StatusFilled && res.AvgPrice > 0 {
		trade.EntryPrice = res.AvgPrice
		trade.EntrySet = true
	}
	trade = i.ledger.Append(trade)

	i.record(zapcore.InfoLevel, "trade opened",
		zap.String("side", string(side)),
		zap.Float64("qty", size),
		zap.Float64("entry", trade.EntryPrice),
		zap.String("order_status", string(res.Status)))
	i.afterChange(ctx, events.EventTradeOpened, "opened", trade)

	if !trade.EntrySet {
		go i.pollEntry(ctx, trade.ID, res.OrderID)
	}
}

// pollEntry checks an unfilled entry order once after pollDelay.
func (i *Instance) pollEntry(ctx context.Context, tradeID, orderID int64) {
	timer := time.NewTimer(i.pollDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	res, err := i.deps.Exchange.GetOrderStatus(ctx, i.contract, orderID)
	if err != nil {
		i.record(zapcore.WarnLevel, "entry status unavailable", zap.Int64("order_id", orderID), zap.Error(err))
		return
	}
	if res.Status.Dead() {
		i.dropEntry(ctx, tradeID, orderID, res.Status)
		return
	}
	if res.Status != common.StatusFilled || res.AvgPrice <= 0 {
		i.record(zapcore.InfoLevel, "entry order not filled", zap.Int64("order_id", orderID), zap.String("order_status", string(res.Status)))
		return
	}

	trade, ok := i.ledger.Update(tradeID, func(t *Trade) {
		if t.Status == TradeOpen && !t.EntrySet {
			t.EntryPrice = res.AvgPrice
			t.EntrySet = true
		}
	})
	if ok {
		i.record(zapcore.InfoLevel, "entry price set", zap.Int64("order_id", orderID), zap.Float64("entry", trade.EntryPrice))
		i.persist(ctx, trade)
	}
}

// dropEntry closes a trade whose entry order died before filling.
func (i *Instance) dropEntry(ctx context.Context, tradeID, orderID int64, status common.OrderStatus) {
	closedAt := i.now()
	dropped := false
	trade, ok := i.ledger.Update(tradeID, func(t *Trade) {
		if t.Status == TradeOpen && !t.EntrySet {
			t.Status = TradeClosed
			t.ExitReason = "entry_" + strings.ToLower(string(status))
			t.ClosedAt = closedAt
			dropped = true
		}
	})
	if !ok || !dropped {
		return
	}
	i.record(zapcore.WarnLevel, "entry order not filled; trade closed",
		zap.Int64("trade", trade.ID),
		zap.Int64("order_id", orderID),
		zap.String("order_status", string(status)))
	i.afterChange(ctx, events.EventTradeClosed, "closed", trade)
}

// closeTrade exits t and reports whether an exit was attempted. After a
// failed exit the trade is held until the next candle opens.
func (i *Instance) closeTrade(ctx context.Context, t Trade, reason string) bool {
	if i.held.trade == t.ID && i.held.candle == i.series.openTime() {
		return false
	}
	var (
		res common.OrderResult
		err error
	)
	if t.EntrySet {
		res, err = i.deps.Exchange.PlaceOrder(ctx, i.contract, common.OrderRequest{
			Side: t.Side.entryOrderSide().Opposite(),
			Type: common.OrderTypeMarket,
			Qty:  t.Quantity,
		})
	} else {
		res, err = i.deps.Exchange.CancelOrder(ctx, i.contract, t.EntryOrderID)
	}
	if err != nil {
		i.record(zapcore.ErrorLevel, "exit failed; retrying on next candle", zap.Int64("trade", t.ID), zap.String("reason", reason), zap.Error(err))
		i.held = exitHold{trade: t.ID, candle: i.series.openTime()}
		return true
	}

	closedAt := i.now()
	changed := false
	closed, _ := i.ledger.Update(t.ID, func(tr *Trade) {
		if tr.Status != TradeOpen {
			return
		}
		tr.Status = TradeClosed
		tr.ExitReason = reason
		tr.ClosedAt = closedAt
		changed = true
	})
	if !changed {
		return true
	}
	i.record(zapcore.InfoLevel, "trade closed",
		zap.Int64("trade", closed.ID),
		zap.String("reason", reason),
		zap.Float64("pnl", closed.PnL),
		zap.String("order_status", string(res.Status)))
	i.afterChange(ctx, events.EventTradeClosed, "closed", closed)
	return true
}

// checkExit closes the open trade when price crosses take-profit or
// stop-loss. It reports whether a close was attempted.
func (i *Instance) checkExit(ctx context.Context, price float64) bool {
	if i.cfg.TakeProfit <= 0 && i.cfg.StopLoss <= 0 {
		return false
	}
	t, ok := i.ledger.Open()
	if !ok || !t.EntrySet {
		return false
	}
	reason := exitReason(t, price, i.cfg.TakeProfit, i.cfg.StopLoss)
	if reason == "" {
		return false
	}
	return i.closeTrade(ctx, t, reason)
}

func exitReason(t Trade, price, tp, sl float64) string {
	if t.Side == SideShort {
		switch {
		case tp > 0 && price <= t.EntryPrice*(1-tp/100):
			return "take_profit"
		case sl > 0 && price >= t.EntryPrice*(1+sl/100):
			return "stop_loss"
		}
		return ""
	}
	switch {
	case tp > 0 && price >= t.EntryPrice*(1+tp/100):
		return "take_profit"
	case sl > 0 && price <= t.EntryPrice*(1-sl/100):
		return "stop_loss"
	}
	return ""
}

func (i *Instance) afterChange(ctx context.Context, topic events.Event, event string, t Trade) {
	if i.deps.Bus != nil {
		i.deps.Bus.Publish(topic, t)
	}
	if i.deps.Recorder != nil {
		i.deps.Recorder.ObserveTrade(string(i.cfg.Kind), event)
	}
	i.persist(ctx, t)
}

func (i *Instance) persist(ctx context.Context, t Trade) {
	if i.deps.Trades == nil {
		return
	}
	if err := i.deps.Trades.UpsertTrade(context.WithoutCancel(ctx), tradeRow(t)); err != nil {
		i.logger.Warn("trade not persisted", zap.Int64("trade", t.ID), zap.Error(err))
	}
}

// record logs to zap and to the instance's UI log.
func (i *Instance) record(level zapcore.Level, msg string, fields ...zap.Field) {
	i.logger.Log(level, msg, fields...)
	entry := LogEntry{Time: i.now(), Level: level.String(), Message: renderFields(msg, fields)}
	i.logs.add(entry)
	if i.deps.Bus != nil {
		i.deps.Bus.Publish(events.EventStrategyLog, LogPayload{StrategyID: i.cfg.ID, Entry: entry})
	}
}

func tradeRow(t Trade) db.TradeRow {
	row := db.TradeRow{
		ID:           t.ID,
		StrategyID:   t.StrategyID,
		Symbol:       t.Symbol,
		Side:         string(t.Side),
		Quantity:     t.Quantity,
		EntryPrice:   sql.NullFloat64{Float64: t.EntryPrice, Valid: t.EntrySet},
		EntryOrderID: t.EntryOrderID,
		Status:       string(t.Status),
		PnL:          t.PnL,
		ExitReason:   t.ExitReason,
		OpenedAt:     t.OpenedAt,
	}
	if !t.ClosedAt.IsZero() {
		row.ClosedAt = sql.NullTime{Time: t.ClosedAt, Valid: true}
	}
	return row
}
