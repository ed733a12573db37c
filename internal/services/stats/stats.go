package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean computes the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// PopStd computes the population standard deviation. Fewer than two
// observations carry no spread information and return 0.
func PopStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.PopStdDev(values, nil)
}

// Classify buckets a value against low/high thresholds.
func Classify(value, low, high float64) string {
	switch {
	case value <= low:
		return "low"
	case value <= high:
		return "medium"
	default:
		return "high"
	}
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	f := math.Pow(10, float64(places))
	return math.Round(v*f) / f
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// OLSResult holds a least-squares fit of y = Intercept + Slope*x.
type OLSResult struct {
	Slope     float64
	Intercept float64
	R2        float64
	N         int
}

// OLS fits y on x by ordinary least squares over the shorter length.
// Degenerate inputs fail soft: fewer than 3 points gives a zero result,
// a near-zero denominator (constant x) gives slope 0 with the mean of y
// as intercept. R2 is clamped at 0.
func OLS(x, y []float64) OLSResult {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	if n < 3 {
		return OLSResult{N: n}
	}
	x, y = x[:n], y[:n]

	var sumX, sumY, sumXY, sumXX float64
	for i := 0; i < n; i++ {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumXX += x[i] * x[i]
	}
	fn := float64(n)
	den := fn*sumXX - sumX*sumX
	if math.Abs(den) < 1e-10 {
		return OLSResult{Intercept: sumY / fn, N: n}
	}

	slope := (fn*sumXY - sumX*sumY) / den
	intercept := (sumY - slope*sumX) / fn

	meanY := sumY / fn
	var ssRes, ssTot float64
	for i := 0; i < n; i++ {
		pred := intercept + slope*x[i]
		ssRes += (y[i] - pred) * (y[i] - pred)
		ssTot += (y[i] - meanY) * (y[i] - meanY)
	}
	r2 := 0.0
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}
	if r2 < 0 {
		r2 = 0
	}
	return OLSResult{Slope: slope, Intercept: intercept, R2: r2, N: n}
}

// ZScoreCorrelation computes the mean pairwise product of z-scores over the
// shorter length. Each series is standardized against its own full mean and
// population std, so unpaired tail observations still shape the scale.
// Zero variance on either side returns 0.
func ZScoreCorrelation(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}

	ma, mb := Mean(a), Mean(b)
	sa, sb := PopStd(a), PopStd(b)
	if sa == 0 || sb == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += ((a[i] - ma) / sa) * ((b[i] - mb) / sb)
	}
	return sum / float64(n)
}
