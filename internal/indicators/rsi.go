package indicators

import "github.com/markcheno/go-talib"

// RSI computes Wilder's Relative Strength Index of the latest value.
// ok is false until period+1 values are available.
func RSI(values []float64, period int) (rsi float64, ok bool) {
	if period <= 1 || len(values) < period+1 {
		return 0, false
	}
	out := talib.Rsi(values, period)
	return out[len(out)-1], true
}
