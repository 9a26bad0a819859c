package strategy

import "trading-bot/pkg/exchanges/common"

// breakoutRule fires when the live candle breaks the previous candle's
// range on enough volume.
type breakoutRule struct {
	minVolume float64
}

func newBreakoutRule(cfg Config) *breakoutRule {
	return &breakoutRule{minVolume: cfg.param("min_volume", 0)}
}

func (r *breakoutRule) OnTick(candles []common.Candle) Signal {
	if len(candles) < 2 {
		return SignalNone
	}
	live, prev := candles[len(candles)-1], candles[len(candles)-2]
	if live.Volume <= r.minVolume {
		return SignalNone
	}
	switch {
	case live.Close > prev.High:
		return SignalLong
	case live.Close < prev.Low:
		return SignalShort
	}
	return SignalNone
}

func (r *breakoutRule) OnCandleClose([]common.Candle) Signal { return SignalNone }

// newRule picks the rule for cfg.Kind.
func newRule(cfg Config) (Rule, error) {
	switch cfg.Kind {
	case KindTechnical:
		return newTechnicalRule(cfg), nil
	case KindBreakout:
		return newBreakoutRule(cfg), nil
	default:
		return nil, ErrUnknownKind
	}
}
