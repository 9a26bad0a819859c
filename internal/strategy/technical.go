package strategy

import (
	"trading-bot/internal/indicators"
	"trading-bot/pkg/exchanges/common"
)

// technicalRule combines MACD and RSI on closed candles.
type technicalRule struct {
	fast, slow, signal int
	rsiPeriod          int
	oversold           float64
	overbought         float64
}

func newTechnicalRule(cfg Config) *technicalRule {
	return &technicalRule{
		fast:       int(cfg.param("ema_fast", 12)),
		slow:       int(cfg.param("ema_slow", 26)),
		signal:     int(cfg.param("ema_signal", 9)),
		rsiPeriod:  int(cfg.param("rsi_length", 14)),
		oversold:   cfg.param("rsi_oversold", 30),
		overbought: cfg.param("rsi_overbought", 70),
	}
}

func (r *technicalRule) OnTick([]common.Candle) Signal { return SignalNone }

func (r *technicalRule) OnCandleClose(candles []common.Candle) Signal {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	macd, ok := indicators.MACD(closes, r.fast, r.slow, r.signal)
	if !ok {
		return SignalNone
	}
	rsi, ok := indicators.RSI(closes, r.rsiPeriod)
	if !ok {
		return SignalNone
	}

	switch {
	case rsi < r.oversold && macd.MACD > macd.Signal:
		return SignalLong
	case rsi > r.overbought && macd.MACD < macd.Signal:
		return SignalShort
	}
	return SignalNone
}
