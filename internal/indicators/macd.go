package indicators

import "github.com/markcheno/go-talib"

// MACDResult is the latest point of a MACD series.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MinMACDLen is the number of closes MACD needs before it is defined.
func MinMACDLen(fast, slow, signal int) int {
	if fast > slow {
		fast, slow = slow, fast
	}
	return slow + signal - 1
}

// MACD computes the MACD line and its signal line on the latest close.
func MACD(values []float64, fast, slow, signal int) (MACDResult, bool) {
	if fast <= 1 || slow <= 1 || signal <= 0 || len(values) < MinMACDLen(fast, slow, signal) {
		return MACDResult{}, false
	}
	macd, sig, hist := talib.Macd(values, fast, slow, signal)
	n := len(values) - 1
	return MACDResult{MACD: macd[n], Signal: sig[n], Histogram: hist[n]}, true
}
