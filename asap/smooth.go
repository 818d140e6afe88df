package asap

import (
	"fmt"
	"math"

	"github.com/lakeland-data/sketch"
	"github.com/lakeland-data/sketch/pkg/vmath"
)

// Smooth finalizes an ASAP state: the retained points are sorted,
// normalized onto an even grid, and smoothed with the moving-average
// window that minimizes roughness without washing out the series'
// outliers.  The returned series covers the same time span as the
// input; its step is scaled up to account for the points the window
// consumed.
func (s *Series) Smooth() (*NormalSeries, error) {
	if s.kind != sketch.KindASAP {
		return nil, fmt.Errorf("%w: Smooth on %s state", sketch.ErrIncompatibleState, s.kind)
	}
	s.sortPoints()
	points := s.points
	resolution := int64(s.resolution)

	var step int64
	if len(points) >= 2*s.resolution {
		step = downsampleInterval(points, resolution)
	} else if len(points) >= 2 {
		// Too few points to downsample; still normalize onto an even
		// grid so the gaps are filled.
		step = (points[len(points)-1].Ts - points[0].Ts) / int64(len(points))
		if step < 1 {
			step = 1
		}
	}
	normal, err := normalize(points, step)
	if err != nil {
		return nil, err
	}
	// The trailing bucket holds only the stragglers past the last full
	// grid slot; drop it so the window search sees even buckets.
	if len(normal.Values) > 1 {
		normal.Values = normal.Values[:len(normal.Values)-1]
	}
	smoothed := smooth(normal.Values, s.resolution)
	out := &NormalSeries{
		Start:  normal.Start,
		Step:   normal.Step,
		Values: smoothed,
	}
	if len(smoothed) > 0 {
		out.Step = normal.Step * int64(len(normal.Values)) / int64(len(smoothed))
	}
	return out, nil
}

// smooth picks the SMA window.  Candidate windows are the lags of
// autocorrelation peaks, searched from the strongest correlation down;
// a window is accepted when it reduces roughness while keeping
// kurtosis at or above the input's, so spikes survive smoothing.
// When no candidate qualifies the input is returned unchanged.
func smooth(values []float64, resolution int) []float64 {
	n := len(values)
	if n < 4 {
		return append([]float64(nil), values...)
	}
	origKurt := vmath.Kurtosis(values)
	bestRough := roughness(values)
	bestWindow := 1
	maxWindow := n / 2
	if limit := n - resolution + 1; limit > 1 && limit < maxWindow {
		maxWindow = limit
	}
	for _, lag := range acfPeaks(values, maxWindow) {
		trial := sma(values, lag)
		if vmath.Kurtosis(trial) >= origKurt && roughness(trial) < bestRough {
			bestRough = roughness(trial)
			bestWindow = lag
		}
	}
	return sma(values, bestWindow)
}

// sma is a simple moving average of the given window, sliding one
// value at a time; the output has len(values)-window+1 entries.
func sma(values []float64, window int) []float64 {
	if window <= 1 {
		return append([]float64(nil), values...)
	}
	out := make([]float64, len(values)-window+1)
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out[i-window+1] = sum / float64(window)
		}
	}
	return out
}

// roughness is the standard deviation of the first differences.
func roughness(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	diffs := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		diffs[i-1] = values[i] - values[i-1]
	}
	return math.Sqrt(vmath.Variance(diffs))
}

// acfPeaks returns the local maxima of the autocorrelation function up
// to maxLag, ordered by descending correlation.  Only positive
// correlations count: an anti-correlated lag makes a poor smoothing
// window.
func acfPeaks(values []float64, maxLag int) []int {
	n := len(values)
	if maxLag >= n {
		maxLag = n - 1
	}
	if maxLag < 2 {
		return nil
	}
	mu := vmath.Mean(values)
	var denom float64
	for _, v := range values {
		d := v - mu
		denom += d * d
	}
	if denom == 0 {
		return nil
	}
	acf := make([]float64, maxLag+1)
	for lag := 1; lag <= maxLag; lag++ {
		var num float64
		for i := 0; i+lag < n; i++ {
			num += (values[i] - mu) * (values[i+lag] - mu)
		}
		acf[lag] = num / denom
	}
	var peaks []int
	for lag := 2; lag < maxLag; lag++ {
		if acf[lag] > 0 && acf[lag] > acf[lag-1] && acf[lag] >= acf[lag+1] {
			peaks = append(peaks, lag)
		}
	}
	// Strongest correlation first; cap the search so finalize stays
	// linear-ish in the series length.
	const maxCandidates = 10
	for i := 1; i < len(peaks); i++ {
		for j := i; j > 0 && acf[peaks[j]] > acf[peaks[j-1]]; j-- {
			peaks[j], peaks[j-1] = peaks[j-1], peaks[j]
		}
	}
	if len(peaks) > maxCandidates {
		peaks = peaks[:maxCandidates]
	}
	return peaks
}
