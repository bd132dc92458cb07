// internal/quant/indicators.go
//
// Technical indicators over close-price series.
// All functions operate on plain float64 slices, index-aligned with the
// input; positions inside the warm-up window hold NaN so callers can
// distinguish "not enough data yet" from a real value.

package quant

import "math"

// SMA returns the simple moving average with the given window.
// The first window-1 positions are NaN.
func SMA(closes []float64, window int) []float64 {
	out := warmup(len(closes))
	if window <= 0 || len(closes) < window {
		return out
	}
	var sum float64
	for i, c := range closes {
		sum += c
		if i >= window {
			sum -= closes[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// Volatility returns the rolling sample standard deviation of closes
// with the given window.
func Volatility(closes []float64, window int) []float64 {
	out := warmup(len(closes))
	if window <= 1 || len(closes) < window {
		return out
	}
	for i := window - 1; i < len(closes); i++ {
		seg := closes[i-window+1 : i+1]
		var mean float64
		for _, v := range seg {
			mean += v
		}
		mean /= float64(window)
		var ss float64
		for _, v := range seg {
			d := v - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(window-1))
	}
	return out
}

// RSI returns the relative strength index computed from simple rolling
// means of gains and losses (not Wilder smoothing). Positions where the
// ratio is undefined, including the warm-up window, hold the neutral
// value 50.
func RSI(closes []float64, window int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = 50
	}
	if window <= 0 || len(closes) < window+1 {
		return out
	}

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}

	for i := window; i < len(closes); i++ {
		var g, l float64
		for j := i - window + 1; j <= i; j++ {
			g += gains[j]
			l += losses[j]
		}
		if l == 0 {
			continue // undefined ratio, keep neutral 50
		}
		rs := g / l
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// CumulativeReturn returns percentage returns relative to the first
// close: ((close/initial)-1)*100.
func CumulativeReturn(closes []float64) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 || closes[0] == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	initial := closes[0]
	for i, c := range closes {
		out[i] = (c/initial - 1) * 100
	}
	return out
}

// warmup allocates an all-NaN slice of length n.
func warmup(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
