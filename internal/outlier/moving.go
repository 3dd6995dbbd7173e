package outlier

import (
	"math"

	"github.com/verte-zerg/ctrplot/internal/model"
)

// MovingStats holds the moving mean and standard deviation of a series.
type MovingStats struct {
	Mean []model.NullFloat
	Std  []model.NullFloat
}

// Rolling computes the trailing-window mean and sample standard deviation.
// Both are undefined until the window is full; the deviation is also
// undefined for a window of one.
func Rolling(values []float64, window int) MovingStats {
	out := MovingStats{
		Mean: make([]model.NullFloat, len(values)),
		Std:  make([]model.NullFloat, len(values)),
	}
	if window < 1 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		mean, m2 := welford(values[i-window+1 : i+1])
		out.Mean[i] = model.Float(mean)
		if window >= 2 {
			out.Std[i] = model.Float(math.Sqrt(m2 / float64(window-1)))
		}
	}
	return out
}

// welford returns the mean and the sum of squared deviations of values.
func welford(values []float64) (mean, m2 float64) {
	for k, v := range values {
		delta := v - mean
		mean += delta / float64(k+1)
		m2 += delta * (v - mean)
	}
	if m2 < 0 {
		m2 = 0
	}
	return mean, m2
}

// ExponentialStats computes the adjusted exponentially weighted mean and the
// bias-corrected standard deviation with alpha = 2/(span+1). Observation j
// contributes to point i with weight (1-alpha)^(i-j).
func ExponentialStats(values []float64, span int) MovingStats {
	out := MovingStats{
		Mean: make([]model.NullFloat, len(values)),
		Std:  make([]model.NullFloat, len(values)),
	}
	if span < 1 || len(values) == 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1.0)
	decay := 1 - alpha

	mean := values[0]
	variance := 0.0 // biased weighted variance
	oldWt := 1.0
	sumWt := 1.0
	sumWt2 := 1.0
	out.Mean[0] = model.Float(mean)

	for i := 1; i < len(values); i++ {
		x := values[i]
		sumWt *= decay
		sumWt2 *= decay * decay
		oldWt *= decay

		oldMean := mean
		if mean != x {
			mean = (oldWt*oldMean + x) / (oldWt + 1)
		}
		d := oldMean - mean
		e := x - mean
		variance = (oldWt*(variance+d*d) + e*e) / (oldWt + 1)

		sumWt++
		sumWt2++
		oldWt++

		out.Mean[i] = model.Float(mean)
		num := sumWt * sumWt
		den := num - sumWt2
		if den > 0 {
			v := variance * num / den
			if v < 0 {
				v = 0
			}
			out.Std[i] = model.Float(math.Sqrt(v))
		}
	}
	return out
}
