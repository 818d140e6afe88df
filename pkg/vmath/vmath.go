// Package vmath holds the small numeric helpers shared by the sketch
// packages and their tests: compensated summation, moments, and exact
// quantiles over sorted data.
package vmath

import (
	"math"
	"slices"
)

// Sum computes a Kahan-compensated sum, keeping long accumulations of
// small increments stable.
func Sum(vals []float64) float64 {
	var sum, comp float64
	for _, v := range vals {
		y := v - comp
		t := sum + y
		comp = (t - sum) - y
		sum = t
	}
	return sum
}

func Mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return Sum(vals) / float64(len(vals))
}

// Variance is the population variance.
func Variance(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	mu := Mean(vals)
	var acc float64
	for _, v := range vals {
		d := v - mu
		acc += d * d
	}
	return acc / float64(len(vals))
}

// Kurtosis is the population kurtosis (Pearson's, not excess).  A
// zero-variance series reports +Inf, which orders it above any finite
// kurtosis.
func Kurtosis(vals []float64) float64 {
	v := Variance(vals)
	if v == 0 {
		return math.Inf(1)
	}
	mu := Mean(vals)
	var acc float64
	for _, x := range vals {
		d := x - mu
		acc += d * d * d * d
	}
	return acc / float64(len(vals)) / (v * v)
}

// Quantile returns the exact linear-interpolated quantile of sorted
// values, the oracle the sketch tests compare against.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}
	pos := q * float64(n-1)
	i := int(pos)
	frac := pos - float64(i)
	if i+1 >= n {
		return sorted[n-1]
	}
	return sorted[i] + frac*(sorted[i+1]-sorted[i])
}

// MedianInt64 returns the upper median without mutating its input.
func MedianInt64(vals []int64) int64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := slices.Clone(vals)
	slices.Sort(sorted)
	return sorted[len(sorted)/2]
}
