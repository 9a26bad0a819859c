package strategy

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"trading-bot/pkg/exchanges/common"
)

var (
	ErrUnknownKind      = errors.New("unknown strategy kind")
	ErrUnknownContract  = errors.New("unknown contract")
	ErrInvalidTimeframe = errors.New("invalid timeframe")
	ErrDuplicateID      = errors.New("strategy id already running")
	ErrNotFound         = errors.New("strategy not found")
)

// Kind selects the signal rule of an instance.
type Kind string

const (
	KindTechnical Kind = "technical"
	KindBreakout  Kind = "breakout"
)

// ParseKind validates s as a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindTechnical, KindBreakout:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Signal is the outcome of evaluating a rule.
type Signal int

const (
	SignalNone Signal = iota
	SignalLong
	SignalShort
	SignalExit
)

func (s Signal) String() string {
	switch s {
	case SignalLong:
		return "enter-long"
	case SignalShort:
		return "enter-short"
	case SignalExit:
		return "exit"
	default:
		return "no-op"
	}
}

// Side is the direction of a trade.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

func (s Side) entryOrderSide() common.Side {
	if s == SideShort {
		return common.SideSell
	}
	return common.SideBuy
}

func sideOf(sig Signal) Side {
	if sig == SignalShort {
		return SideShort
	}
	return SideLong
}

// TradeStatus is open until the position is flattened or the entry order
// cancelled.
type TradeStatus string

const (
	TradeOpen   TradeStatus = "open"
	TradeClosed TradeStatus = "closed"
)

// Trade is one position taken by an instance.
type Trade struct {
	ID           int64       `json:"id"` // creation time in ms
	StrategyID   string      `json:"strategy_id"`
	Symbol       string      `json:"symbol"`
	Side         Side        `json:"side"`
	Quantity     float64     `json:"quantity"`
	EntryPrice   float64     `json:"entry_price"`
	EntrySet     bool        `json:"entry_set"`
	EntryOrderID int64       `json:"entry_order_id"`
	Status       TradeStatus `json:"status"`
	PnL          float64     `json:"pnl"`
	ExitReason   string      `json:"exit_reason,omitempty"`
	OpenedAt     time.Time   `json:"opened_at"`
	ClosedAt     time.Time   `json:"closed_at,omitzero"`
}

// PnLAt returns the unrealized PnL against the given top of book. ok is false
// when the trade is closed or its entry price is not known yet.
func (t Trade) PnLAt(bid, ask float64) (pnl float64, ok bool) {
	if t.Status != TradeOpen || !t.EntrySet {
		return 0, false
	}
	if t.Side == SideShort {
		return (t.EntryPrice - ask) * t.Quantity, true
	}
	return (bid - t.EntryPrice) * t.Quantity, true
}

// Rule evaluates a candle series. OnTick sees the live candle as the last
// element; OnCandleClose sees only completed candles.
type Rule interface {
	OnTick(candles []common.Candle) Signal
	OnCandleClose(candles []common.Candle) Signal
}

// Config describes one strategy instance. TakeProfit and StopLoss are
// percentages of the entry price; zero disables them.
type Config struct {
	ID         string             `yaml:"id" json:"id"`
	Kind       Kind               `yaml:"type" json:"kind"`
	Symbol     string             `yaml:"symbol" json:"symbol"`
	Timeframe  string             `yaml:"timeframe" json:"timeframe"`
	BalancePct float64            `yaml:"balance_pct" json:"balance_pct"`
	TakeProfit float64            `yaml:"take_profit" json:"take_profit"`
	StopLoss   float64            `yaml:"stop_loss" json:"stop_loss"`
	Params     map[string]float64 `yaml:"parameters" json:"params"`
}

// Validate normalizes c and rejects unusable settings.
func (c *Config) Validate() error {
	var errs []error
	c.Symbol = strings.ToUpper(strings.TrimSpace(c.Symbol))
	if c.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if c.Symbol == "" {
		errs = append(errs, errors.New("symbol is required"))
	}
	k, err := ParseKind(string(c.Kind))
	if err != nil {
		errs = append(errs, err)
	}
	c.Kind = k
	if _, err := timeframeDuration(c.Timeframe); err != nil {
		errs = append(errs, err)
	}
	if c.BalancePct <= 0 || c.BalancePct > 100 {
		errs = append(errs, fmt.Errorf("balance_pct %v out of (0, 100]", c.BalancePct))
	}
	if c.TakeProfit < 0 || c.StopLoss < 0 {
		errs = append(errs, errors.New("take_profit and stop_loss must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("strategy %q: %w", c.ID, err)
	}
	return nil
}

func (c Config) param(key string, def float64) float64 {
	if v, ok := c.Params[key]; ok {
		return v
	}
	return def
}

var timeframes = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
}

func timeframeDuration(tf string) (time.Duration, error) {
	d, ok := timeframes[tf]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeframe, tf)
	}
	return d, nil
}
