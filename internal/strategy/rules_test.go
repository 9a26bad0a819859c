package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"trading-bot/pkg/exchanges/common"
)

func candlesFromCloses(closes []float64) []common.Candle {
	out := make([]common.Candle, len(closes))
	for i, c := range closes {
		out[i] = common.Candle{OpenTime: int64(i) * minute, Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	return out
}

func TestBreakoutRule(t *testing.T) {
	r := newBreakoutRule(Config{Params: map[string]float64{"min_volume": 2}})
	prev := common.Candle{High: 100, Low: 90}

	cases := []struct {
		name string
		live common.Candle
		want Signal
	}{
		{"above high", common.Candle{Close: 101, Volume: 3}, SignalLong},
		{"below low", common.Candle{Close: 89, Volume: 3}, SignalShort},
		{"inside range", common.Candle{Close: 95, Volume: 3}, SignalNone},
		{"thin volume", common.Candle{Close: 101, Volume: 2}, SignalNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, r.OnTick([]common.Candle{prev, tc.live}))
		})
	}
	assert.Equal(t, SignalNone, r.OnTick([]common.Candle{prev}))
	assert.Equal(t, SignalNone, r.OnCandleClose([]common.Candle{prev, prev}))
}

func TestTechnicalRule(t *testing.T) {
	r := newTechnicalRule(Config{})

	var falling, rising []float64
	for i := 0; i < 200; i++ {
		falling = append(falling, 500-float64(i))
		rising = append(rising, 100+float64(i))
	}
	// Oversold, and the bounce lifts MACD above its signal line.
	falling = append(falling, falling[len(falling)-1]+1)
	// Overbought, and the dip drops MACD below its signal line.
	rising = append(rising, rising[len(rising)-1]-1)

	assert.Equal(t, SignalLong, r.OnCandleClose(candlesFromCloses(falling)))
	assert.Equal(t, SignalShort, r.OnCandleClose(candlesFromCloses(rising)))
	assert.Equal(t, SignalNone, r.OnCandleClose(candlesFromCloses(falling[:20])))
	assert.Equal(t, SignalNone, r.OnTick(candlesFromCloses(falling)))
}

func TestNewRuleRejectsUnknownKind(t *testing.T) {
	_, err := newRule(Config{Kind: "grid"})
	assert.ErrorIs(t, err, ErrUnknownKind)
}
