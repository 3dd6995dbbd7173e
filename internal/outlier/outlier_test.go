package outlier

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/ctrplot/internal/aggregate"
	"github.com/verte-zerg/ctrplot/internal/model"
)

func pointsOf(values ...float64) []model.AggregatedPoint {
	out := make([]model.AggregatedPoint, len(values))
	for i, v := range values {
		out[i] = model.AggregatedPoint{Date: aggregate.HourToDate(int64(14031500 + i)), Click: v}
	}
	return out
}

func randomPoints(seed int64, n int) []model.AggregatedPoint {
	rnd := rand.New(rand.NewSource(seed))
	values := make([]float64, n)
	for i := range values {
		values[i] = 0.15 + rnd.NormFloat64()*0.03
		if rnd.Float64() < 0.05 {
			values[i] += 0.2
		}
	}
	return pointsOf(values...)
}

func cfgWith(avg AverageType, window int, threshold float64) Config {
	return Config{Average: avg, Window: window, Threshold: threshold, ShowBounds: true, HighlightOutliers: true}
}

func TestEndToEndScenario(t *testing.T) {
	points, err := aggregate.Aggregate(context.Background(), []model.RawEvent{
		{Hour: 14031500, Click: 0},
		{Hour: 14031501, Click: 1},
		{Hour: 14031502, Click: 1},
	})
	require.NoError(t, err)
	require.Equal(t, pointsOf(0, 1, 1), points)

	s, err := ComputeSeries(points, cfgWith(Simple, 2, 1.5))
	require.NoError(t, err)
	require.Len(t, s.Points, 3)

	assert.False(t, s.Points[0].MAMean.Valid)
	assert.False(t, s.Points[0].MAStd.Valid)
	assert.InDelta(t, 0.5, s.Points[1].MAMean.Float64, 1e-12)
	assert.InDelta(t, 0.707, s.Points[1].MAStd.Float64, 1e-3)
	assert.Equal(t, 1.0, s.Points[2].MAMean.Float64)
	assert.Equal(t, 0.0, s.Points[2].MAStd.Float64)
	assert.Equal(t, 1.0, s.Points[2].UpperBound.Float64)
	assert.Equal(t, 1.0, s.Points[2].LowerBound.Float64)
	for _, p := range s.Points {
		assert.False(t, p.IsUpperOutlier)
		assert.False(t, p.IsLowerOutlier)
	}
	assert.Empty(t, s.Outliers())
}

func TestConstantSeriesSimple(t *testing.T) {
	for _, c := range []float64{0, 0.1, 0.3333333333333333, 1} {
		values := make([]float64, 30)
		for i := range values {
			values[i] = c
		}
		for w := MinWindow; w <= MaxWindow; w++ {
			s, err := ComputeSeries(pointsOf(values...), cfgWith(Simple, w, 1.0))
			require.NoError(t, err)
			for i, p := range s.Points {
				if i < w-1 {
					assert.False(t, p.MAMean.Valid, "w=%d i=%d", w, i)
					continue
				}
				require.True(t, p.MAMean.Valid, "w=%d i=%d", w, i)
				assert.Equal(t, c, p.MAMean.Float64)
				if p.MAStd.Valid {
					assert.Equal(t, 0.0, p.MAStd.Float64)
					assert.Equal(t, c, p.UpperBound.Float64)
					assert.Equal(t, c, p.LowerBound.Float64)
				}
				assert.False(t, p.IsUpperOutlier || p.IsLowerOutlier)
			}
		}
	}
}

func TestSimpleWindowDefinedness(t *testing.T) {
	points := randomPoints(1, 40)
	for w := MinWindow; w <= MaxWindow; w++ {
		s, err := ComputeSeries(points, cfgWith(Simple, w, 1.5))
		require.NoError(t, err)
		for i, p := range s.Points {
			assert.Equal(t, i >= w-1, p.MAMean.Valid, "w=%d i=%d", w, i)
			assert.Equal(t, i >= w-1 && w >= 2, p.MAStd.Valid, "w=%d i=%d", w, i)
		}
	}
}

func TestOutliersMonotonicInThreshold(t *testing.T) {
	points := randomPoints(7, 200)
	for _, avg := range []AverageType{Simple, Exponential} {
		for _, w := range []int{2, 5, 12, 24} {
			var prev map[int]bool
			for step := 10; step <= 30; step++ {
				s, err := ComputeSeries(points, cfgWith(avg, w, float64(step)/10))
				require.NoError(t, err)
				current := map[int]bool{}
				for _, f := range s.Outliers() {
					current[f.Index] = true
				}
				if prev != nil {
					for idx := range current {
						assert.True(t, prev[idx], "avg=%s w=%d step=%d: index %d became an outlier", avg, w, step, idx)
					}
				}
				prev = current
			}
		}
	}
}

func TestUpperBoundNotBelowLower(t *testing.T) {
	points := randomPoints(3, 120)
	for _, avg := range []AverageType{Simple, Exponential} {
		s, err := ComputeSeries(points, cfgWith(avg, 6, 2.0))
		require.NoError(t, err)
		for i, p := range s.Points {
			if p.UpperBound.Valid && p.LowerBound.Valid {
				assert.GreaterOrEqual(t, p.UpperBound.Float64, p.LowerBound.Float64, "index %d", i)
			}
		}
	}
}

func TestExponentialStats(t *testing.T) {
	ms := ExponentialStats([]float64{0, 1}, 2)
	require.True(t, ms.Mean[0].Valid)
	assert.Equal(t, 0.0, ms.Mean[0].Float64)
	assert.False(t, ms.Std[0].Valid)
	assert.InDelta(t, 0.75, ms.Mean[1].Float64, 1e-12)
	assert.InDelta(t, math.Sqrt(0.5), ms.Std[1].Float64, 1e-12)

	// Adjusted weights (1-alpha)^(i-j) checked against the closed form.
	values := []float64{0.2, 0.1, 0.4, 0.3, 0.25}
	span := 3
	ms = ExponentialStats(values, span)
	alpha := 2.0 / float64(span+1)
	for i := range values {
		var sw, sw2, swx float64
		for j := 0; j <= i; j++ {
			wt := math.Pow(1-alpha, float64(i-j))
			sw += wt
			sw2 += wt * wt
			swx += wt * values[j]
		}
		mean := swx / sw
		assert.InDelta(t, mean, ms.Mean[i].Float64, 1e-12, "mean %d", i)
		if i == 0 {
			assert.False(t, ms.Std[i].Valid)
			continue
		}
		var biased float64
		for j := 0; j <= i; j++ {
			wt := math.Pow(1-alpha, float64(i-j))
			biased += wt * (values[j] - mean) * (values[j] - mean)
		}
		biased /= sw
		want := math.Sqrt(biased * sw * sw / (sw*sw - sw2))
		assert.InDelta(t, want, ms.Std[i].Float64, 1e-12, "std %d", i)
	}
}

func TestExponentialConstantAndSpike(t *testing.T) {
	values := make([]float64, 20)
	for i := range values {
		values[i] = 0.2
	}
	ms := ExponentialStats(values, 12)
	for i := range values {
		assert.Equal(t, 0.2, ms.Mean[i].Float64)
		if i > 0 {
			assert.Equal(t, 0.0, ms.Std[i].Float64)
		}
	}

	values = append(values[:19:19], 0.2, 0.21, 0.19, 0.2, 0.9)
	s, err := ComputeSeries(pointsOf(values...), cfgWith(Exponential, 12, 2.0))
	require.NoError(t, err)
	flagged := s.Outliers()
	require.NotEmpty(t, flagged)
	last := flagged[len(flagged)-1]
	assert.Equal(t, len(values)-1, last.Index)
	assert.Equal(t, Upper, last.Direction)
}

func TestHighlightOffLeavesFlagsFalse(t *testing.T) {
	cfg := cfgWith(Simple, 3, 1.0)
	cfg.HighlightOutliers = false
	s, err := ComputeSeries(pointsOf(0.1, 0.1, 0.1, 0.1, 0.9), cfg)
	require.NoError(t, err)
	assert.Empty(t, s.Outliers())
	assert.True(t, s.Points[4].UpperBound.Valid, "bounds are computed regardless")

	cfg.HighlightOutliers = true
	s, err = ComputeSeries(pointsOf(0.1, 0.1, 0.1, 0.1, 0.9), cfg)
	require.NoError(t, err)
	sum := s.Summary()
	assert.Equal(t, 5, sum.Points)
	assert.Equal(t, 3, sum.WithBounds)
	assert.Equal(t, 1, sum.UpperOutliers)
	assert.Zero(t, sum.LowerOutliers)
}

func TestInvalidConfig(t *testing.T) {
	cases := []struct {
		name  string
		cfg   Config
		field string
	}{
		{name: "threshold too high", cfg: cfgWith(Simple, 12, 5.0), field: "threshold"},
		{name: "threshold too low", cfg: cfgWith(Simple, 12, 0.9), field: "threshold"},
		{name: "threshold off grid", cfg: cfgWith(Simple, 12, 1.55), field: "threshold"},
		{name: "threshold nan", cfg: cfgWith(Simple, 12, math.NaN()), field: "threshold"},
		{name: "window zero", cfg: cfgWith(Simple, 0, 1.5), field: "window"},
		{name: "window too wide", cfg: cfgWith(Exponential, 25, 1.5), field: "window"},
		{name: "unknown average", cfg: cfgWith("wma", 12, 1.5), field: "average"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputeSeries(pointsOf(1, 2, 3), tc.cfg)
			var invalid *model.InvalidConfigError
			require.True(t, errors.As(err, &invalid), "expected InvalidConfigError, got %v", err)
			assert.Equal(t, tc.field, invalid.Field)
		})
	}

	for step := 10; step <= 30; step++ {
		assert.NoError(t, cfgWith(Simple, 12, float64(step)*0.1).Validate(), "step %d", step)
	}
}

func TestParseAverageType(t *testing.T) {
	for in, want := range map[string]AverageType{"sma": Simple, "Simple": Simple, "EMA": Exponential, "exponential": Exponential} {
		got, err := ParseAverageType(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseAverageType("median")
	var invalid *model.InvalidConfigError
	assert.True(t, errors.As(err, &invalid))
}

func TestStepHelpers(t *testing.T) {
	assert.Equal(t, 1.6, StepThreshold(1.5, 1))
	assert.Equal(t, 1.4, StepThreshold(1.5, -1))
	assert.Equal(t, MaxThreshold, StepThreshold(3.0, 1))
	assert.Equal(t, MinThreshold, StepThreshold(1.0, -1))
	assert.Equal(t, 13, StepWindow(12, 1))
	assert.Equal(t, MinWindow, StepWindow(1, -1))
	assert.Equal(t, MaxWindow, StepWindow(24, 1))
}

func TestComputeSeriesEmpty(t *testing.T) {
	for _, avg := range []AverageType{Simple, Exponential} {
		s, err := ComputeSeries(nil, cfgWith(avg, 12, 1.5))
		require.NoError(t, err)
		assert.Empty(t, s.Points)
	}
}
