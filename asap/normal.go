package asap

import (
	"fmt"

	"github.com/lakeland-data/sketch"
	"github.com/lakeland-data/sketch/pkg/vmath"
)

// NormalSeries is a series normalized onto an even time grid: values
// at Start, Start+Step, Start+2*Step, ...
type NormalSeries struct {
	Start  int64
	Step   int64
	Values []float64
}

// Points expands the grid back into explicit points.
func (n *NormalSeries) Points() []sketch.Point {
	pts := make([]sketch.Point, len(n.Values))
	for i, v := range n.Values {
		pts[i] = sketch.Point{Ts: n.Start + int64(i)*n.Step, Val: v}
	}
	return pts
}

// downsampleInterval picks the grid step for normalization: the even
// division of the time range by the resolution, truncated to a
// multiple of the median inter-point gap.  Truncating keeps bucket
// populations even, which matters because smoothing is much rougher
// when buckets hold unequal point counts; the median rather than the
// mean gap keeps data holes from skewing the choice.
func downsampleInterval(points []sketch.Point, resolution int64) int64 {
	candidate := (points[len(points)-1].Ts - points[0].Ts) / resolution
	gaps := make([]int64, len(points)-1)
	for i := 1; i < len(points); i++ {
		gaps[i-1] = points[i].Ts - points[i-1].Ts
	}
	median := vmath.MedianInt64(gaps)
	if median > 0 && candidate >= median {
		candidate = candidate / median * median
	}
	if candidate < 1 {
		candidate = 1
	}
	return candidate
}

// normalize buckets sorted points onto an even grid of the given step.
// Bucket values are the mean of the points that fall in the bucket;
// empty interior buckets are filled by linear interpolation between
// their filled neighbors.  The first and last buckets are always
// populated, anchoring the interpolation.
func normalize(points []sketch.Point, step int64) (*NormalSeries, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("%w: normalization needs at least two points", sketch.ErrEmptyState)
	}
	start := points[0].Ts
	nbuckets := int((points[len(points)-1].Ts-start)/step) + 1
	sums := make([]float64, nbuckets)
	counts := make([]int, nbuckets)
	for _, p := range points {
		b := int((p.Ts - start) / step)
		sums[b] += p.Val
		counts[b]++
	}
	values := make([]float64, nbuckets)
	lastFilled := -1
	for i := range values {
		if counts[i] == 0 {
			continue
		}
		values[i] = sums[i] / float64(counts[i])
		if gap := i - lastFilled; gap > 1 && lastFilled >= 0 {
			for j := lastFilled + 1; j < i; j++ {
				frac := float64(j-lastFilled) / float64(gap)
				values[j] = values[lastFilled] + frac*(values[i]-values[lastFilled])
			}
		}
		lastFilled = i
	}
	return &NormalSeries{Start: start, Step: step, Values: values}, nil
}
