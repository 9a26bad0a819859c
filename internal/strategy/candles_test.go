package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-bot/pkg/exchanges/common"
)

const minute = int64(60_000)

func TestCandleSeriesAggregation(t *testing.T) {
	s := newCandleSeries("1m", minute, nil)

	assert.False(t, s.add(10, 1, 5_000))
	require.Len(t, s.all(), 1)
	assert.Equal(t, int64(0), s.all()[0].OpenTime)

	assert.False(t, s.add(12, 2, 30_000))
	assert.False(t, s.add(9, 1, 59_999))
	c := s.all()[0]
	assert.Equal(t, common.Candle{OpenTime: 0, Open: 10, High: 12, Low: 9, Close: 9, Volume: 4, Interval: "1m"}, c)

	assert.True(t, s.add(11, 3, minute))
	require.Len(t, s.all(), 2)
	assert.Len(t, s.closed(), 1)
	assert.Equal(t, common.Candle{OpenTime: minute, Open: 11, High: 11, Low: 11, Close: 11, Volume: 3, Interval: "1m"}, s.all()[1])
}

func TestCandleSeriesFillsMissingIntervals(t *testing.T) {
	s := newCandleSeries("1m", minute, []common.Candle{{OpenTime: minute, Open: 5, High: 6, Low: 4, Close: 5.5, Volume: 1, Interval: "1m"}})

	assert.True(t, s.add(7, 2, 4*minute+10))

	all := s.all()
	require.Len(t, all, 4)
	for i, c := range all[1:3] {
		assert.Equal(t, int64(i+2)*minute, c.OpenTime)
		assert.Equal(t, 5.5, c.Open)
		assert.Equal(t, 5.5, c.Close)
		assert.Equal(t, 0.0, c.Volume)
		assert.Equal(t, "1m", c.Interval)
	}
	assert.Equal(t, 4*minute, all[3].OpenTime)
	assert.Equal(t, 7.0, all[3].Close)
}

func TestCandleSeriesIsCapped(t *testing.T) {
	seed := make([]common.Candle, maxCandles)
	for i := range seed {
		seed[i] = common.Candle{OpenTime: int64(i) * minute, Close: 1}
	}
	s := newCandleSeries("1m", minute, seed)
	require.True(t, s.add(2, 1, int64(maxCandles)*minute))

	assert.Len(t, s.all(), maxCandles)
	assert.Equal(t, minute, s.all()[0].OpenTime)
	assert.Equal(t, int64(maxCandles)*minute, s.all()[maxCandles-1].OpenTime)
}
