package asap

import (
	"fmt"

	"github.com/lakeland-data/sketch"
)

// Downsample finalizes an LTTB state, reducing the retained series to
// at most the configured resolution points.  The first and last points
// are always kept; each interior output point is the one from its
// bucket forming the largest triangle with the previously selected
// point and the mean of the next bucket, which preserves the visual
// shape of the series.
func (s *Series) Downsample() ([]sketch.Point, error) {
	if s.kind != sketch.KindLTTB {
		return nil, fmt.Errorf("%w: Downsample on %s state", sketch.ErrIncompatibleState, s.kind)
	}
	s.sortPoints()
	return lttb(s.points, s.resolution), nil
}

func lttb(points []sketch.Point, threshold int) []sketch.Point {
	if threshold >= len(points) {
		return append([]sketch.Point(nil), points...)
	}
	out := make([]sketch.Point, 0, threshold)
	out = append(out, points[0])
	// threshold-2 interior buckets over everything but the endpoints.
	bucketSize := float64(len(points)-2) / float64(threshold-2)
	prev := 0
	for i := 0; i < threshold-2; i++ {
		lo := int(float64(i)*bucketSize) + 1
		hi := int(float64(i+1)*bucketSize) + 1

		// Average of the next bucket, or the final point for the last
		// bucket; the third triangle vertex.
		nextLo := hi
		nextHi := int(float64(i+2)*bucketSize) + 1
		if nextHi >= len(points) {
			nextHi = len(points) - 1
		}
		if nextLo > nextHi {
			nextLo = nextHi
		}
		var avgTs, avgVal float64
		for _, p := range points[nextLo : nextHi+1] {
			avgTs += float64(p.Ts)
			avgVal += p.Val
		}
		n := float64(nextHi - nextLo + 1)
		avgTs /= n
		avgVal /= n

		a := points[prev]
		best := lo
		var bestArea float64 = -1
		for j := lo; j < hi; j++ {
			area := triangleArea(float64(a.Ts), a.Val, float64(points[j].Ts), points[j].Val, avgTs, avgVal)
			if area > bestArea {
				bestArea = area
				best = j
			}
		}
		out = append(out, points[best])
		prev = best
	}
	out = append(out, points[len(points)-1])
	return out
}

func triangleArea(ax, ay, bx, by, cx, cy float64) float64 {
	area := (ax-cx)*(by-ay) - (ax-bx)*(cy-ay)
	if area < 0 {
		area = -area
	}
	return area / 2
}
