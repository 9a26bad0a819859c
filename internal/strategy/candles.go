package strategy

import "trading-bot/pkg/exchanges/common"

const maxCandles = 1000

// candleSeries aggregates trade ticks into fixed-width candles. It is owned
// by a single instance goroutine.
type candleSeries struct {
	interval string
	tf       int64 // ms
	candles  []common.Candle
}

func newCandleSeries(interval string, tfMillis int64, seed []common.Candle) *candleSeries {
	s := &candleSeries{interval: interval, tf: tfMillis}
	s.candles = append(s.candles, seed...)
	s.trim()
	return s
}

// add folds one tick in and reports whether it opened a new candle, which
// means the previous one is complete.
func (s *candleSeries) add(price, qty float64, ts int64) bool {
	if len(s.candles) == 0 {
		open := ts - ts%s.tf
		s.candles = append(s.candles, common.Candle{OpenTime: open, Open: price, High: price, Low: price, Close: price, Volume: qty, Interval: s.interval})
		return false
	}

	last := &s.candles[len(s.candles)-1]
	if ts < last.OpenTime+s.tf {
		last.Close = price
		last.High = max(last.High, price)
		last.Low = min(last.Low, price)
		last.Volume += qty
		return false
	}

	// Intervals without trades become flat zero-volume candles.
	missing := (ts-last.OpenTime)/s.tf - 1
	prevClose, open := last.Close, last.OpenTime
	for i := int64(1); i <= missing; i++ {
		s.candles = append(s.candles, common.Candle{
			OpenTime: open + i*s.tf,
			Open:     prevClose, High: prevClose, Low: prevClose, Close: prevClose,
			Interval: s.interval,
		})
	}
	s.candles = append(s.candles, common.Candle{
		OpenTime: open + (missing+1)*s.tf,
		Open:     price, High: price, Low: price, Close: price, Volume: qty,
		Interval: s.interval,
	})
	s.trim()
	return true
}

func (s *candleSeries) trim() {
	if n := len(s.candles); n > maxCandles {
		s.candles = append(s.candles[:0:0], s.candles[n-maxCandles:]...)
	}
}

// all returns the series including the live candle.
func (s *candleSeries) all() []common.Candle { return s.candles }

// openTime is the start of the live candle, or -1 for an empty series.
func (s *candleSeries) openTime() int64 {
	if len(s.candles) == 0 {
		return -1
	}
	return s.candles[len(s.candles)-1].OpenTime
}

// closed returns the completed candles.
func (s *candleSeries) closed() []common.Candle {
	if len(s.candles) == 0 {
		return nil
	}
	return s.candles[:len(s.candles)-1]
}
