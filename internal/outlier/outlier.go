package outlier

import (
	"github.com/verte-zerg/ctrplot/internal/model"
)

// Point is an aggregated point augmented with its moving statistics.
type Point struct {
	Date           string          `json:"date" yaml:"date"`
	Click          float64         `json:"click" yaml:"click"`
	MAMean         model.NullFloat `json:"ma_mean" yaml:"ma_mean"`
	MAStd          model.NullFloat `json:"ma_std" yaml:"ma_std"`
	UpperBound     model.NullFloat `json:"upper_bound" yaml:"upper_bound"`
	LowerBound     model.NullFloat `json:"lower_bound" yaml:"lower_bound"`
	IsUpperOutlier bool            `json:"is_upper_outlier" yaml:"is_upper_outlier"`
	IsLowerOutlier bool            `json:"is_lower_outlier" yaml:"is_lower_outlier"`
}

// Series is the statistics-augmented series for one configuration.
type Series struct {
	Config Config  `json:"-" yaml:"-"`
	Points []Point `json:"points" yaml:"points"`
}

// Direction tells which bound an outlier crossed.
type Direction string

const (
	Upper Direction = "upper"
	Lower Direction = "lower"
)

// Flagged is a point outside the band.
type Flagged struct {
	Index      int
	Date       string
	Click      float64
	LowerBound float64
	UpperBound float64
	Direction  Direction
}

// Summary counts defined statistics and outliers.
type Summary struct {
	Points        int
	WithBounds    int
	UpperOutliers int
	LowerOutliers int
}

// ComputeSeries computes moving statistics, bounds and, when enabled, the
// outlier flags. The input is not modified.
func ComputeSeries(points []model.AggregatedPoint, cfg Config) (Series, error) {
	if err := cfg.Validate(); err != nil {
		return Series{}, err
	}
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Click
	}
	var ms MovingStats
	switch cfg.Average {
	case Exponential:
		ms = ExponentialStats(values, cfg.Window)
	default:
		ms = Rolling(values, cfg.Window)
	}

	out := make([]Point, len(points))
	for i, p := range points {
		pt := Point{
			Date:   p.Date,
			Click:  p.Click,
			MAMean: ms.Mean[i],
			MAStd:  ms.Std[i],
		}
		if pt.MAMean.Valid && pt.MAStd.Valid {
			spread := pt.MAStd.Float64 * cfg.Threshold
			pt.UpperBound = model.Float(pt.MAMean.Float64 + spread)
			pt.LowerBound = model.Float(pt.MAMean.Float64 - spread)
		}
		if cfg.HighlightOutliers {
			pt.IsUpperOutlier = pt.UpperBound.Valid && pt.Click > pt.UpperBound.Float64
			pt.IsLowerOutlier = pt.LowerBound.Valid && pt.Click < pt.LowerBound.Float64
		}
		out[i] = pt
	}
	return Series{Config: cfg, Points: out}, nil
}

// Outliers lists flagged points in series order.
func (s Series) Outliers() []Flagged {
	var out []Flagged
	for i, p := range s.Points {
		if !p.IsUpperOutlier && !p.IsLowerOutlier {
			continue
		}
		dir := Upper
		if p.IsLowerOutlier {
			dir = Lower
		}
		out = append(out, Flagged{
			Index:      i,
			Date:       p.Date,
			Click:      p.Click,
			LowerBound: p.LowerBound.Float64,
			UpperBound: p.UpperBound.Float64,
			Direction:  dir,
		})
	}
	return out
}

// Summary counts points, defined bands and outliers by direction.
func (s Series) Summary() Summary {
	sum := Summary{Points: len(s.Points)}
	for _, p := range s.Points {
		if p.UpperBound.Valid {
			sum.WithBounds++
		}
		if p.IsUpperOutlier {
			sum.UpperOutliers++
		}
		if p.IsLowerOutlier {
			sum.LowerOutliers++
		}
	}
	return sum
}

// Result bundles a computed series with its chart.
type Result struct {
	Series Series           `json:"series" yaml:"series"`
	Chart  ChartDescription `json:"chart" yaml:"chart"`
}

// Render computes the series and builds its chart in one step.
func Render(points []model.AggregatedPoint, cfg Config) (Result, error) {
	series, err := ComputeSeries(points, cfg)
	if err != nil {
		return Result{}, err
	}
	return Result{Series: series, Chart: BuildChart(series, cfg)}, nil
}
