package outlier

// Trace colors and marker symbols.
const (
	ColorClicks   = "#8E71B2"
	ColorBounds   = "#DFE0DF"
	ColorOutliers = "#EC6A2D"

	SymbolTriangleUp   = "triangle-up"
	SymbolTriangleDown = "triangle-down"

	outlierMarkerSize = 10
)

// Trace drawing modes.
const (
	ModeLinesMarkers = "lines+markers"
	ModeLines        = "lines"
	ModeMarkers      = "markers"
)

// Trace names.
const (
	TraceClicks        = "Click-through rates"
	TraceUpperBound    = "Upper threshold"
	TraceLowerBound    = "Lower threshold"
	TraceUpperOutliers = "Upper Outliers"
	TraceLowerOutliers = "Lower Outliers"
)

// Marker styles the points of a trace.
type Marker struct {
	Color  string `json:"color,omitempty" yaml:"color,omitempty"`
	Symbol string `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	Size   int    `json:"size,omitempty" yaml:"size,omitempty"`
}

// Line styles the segments of a trace.
type Line struct {
	Color string `json:"color,omitempty" yaml:"color,omitempty"`
}

// Trace is one drawable series.
type Trace struct {
	Name   string    `json:"name" yaml:"name"`
	Mode   string    `json:"mode" yaml:"mode"`
	X      []string  `json:"x" yaml:"x"`
	Y      []float64 `json:"y" yaml:"y"`
	Marker *Marker   `json:"marker,omitempty" yaml:"marker,omitempty"`
	Line   *Line     `json:"line,omitempty" yaml:"line,omitempty"`
}

// Legend places the legend.
type Legend struct {
	X        float64 `json:"x" yaml:"x"`
	Y        float64 `json:"y" yaml:"y"`
	FontSize int     `json:"font_size" yaml:"font_size"`
}

// Layout holds figure-level settings.
type Layout struct {
	Title     string  `json:"title" yaml:"title"`
	TitleX    float64 `json:"title_x" yaml:"title_x"`
	Legend    Legend  `json:"legend" yaml:"legend"`
	HoverMode string  `json:"hovermode" yaml:"hovermode"`
}

// ChartDescription is the ordered list of traces to draw.
type ChartDescription struct {
	Layout Layout  `json:"layout" yaml:"layout"`
	Traces []Trace `json:"traces" yaml:"traces"`
}

// BuildChart describes the chart for a computed series. The click trace is
// always first; bound traces follow when cfg.ShowBounds is set and cover only
// points with a defined band; outlier traces follow when
// cfg.HighlightOutliers is set.
func BuildChart(s Series, cfg Config) ChartDescription {
	chart := ChartDescription{
		Layout: Layout{
			Title:     "Click-Through Rates",
			TitleX:    0.5,
			Legend:    Legend{X: 1, Y: 0.5, FontSize: 12},
			HoverMode: "closest",
		},
	}

	clicks := Trace{
		Name:   TraceClicks,
		Mode:   ModeLinesMarkers,
		X:      make([]string, 0, len(s.Points)),
		Y:      make([]float64, 0, len(s.Points)),
		Marker: &Marker{Color: ColorClicks},
	}
	for _, p := range s.Points {
		clicks.X = append(clicks.X, p.Date)
		clicks.Y = append(clicks.Y, p.Click)
	}
	chart.Traces = append(chart.Traces, clicks)

	if cfg.ShowBounds {
		upper := Trace{Name: TraceUpperBound, Mode: ModeLines, X: []string{}, Y: []float64{}, Line: &Line{Color: ColorBounds}}
		lower := Trace{Name: TraceLowerBound, Mode: ModeLines, X: []string{}, Y: []float64{}, Line: &Line{Color: ColorBounds}}
		for _, p := range s.Points {
			if p.UpperBound.Valid {
				upper.X = append(upper.X, p.Date)
				upper.Y = append(upper.Y, p.UpperBound.Float64)
			}
			if p.LowerBound.Valid {
				lower.X = append(lower.X, p.Date)
				lower.Y = append(lower.Y, p.LowerBound.Float64)
			}
		}
		chart.Traces = append(chart.Traces, upper, lower)
	}

	if cfg.HighlightOutliers {
		up := outlierTrace(TraceUpperOutliers, SymbolTriangleUp)
		down := outlierTrace(TraceLowerOutliers, SymbolTriangleDown)
		for _, p := range s.Points {
			if p.IsUpperOutlier {
				up.X = append(up.X, p.Date)
				up.Y = append(up.Y, p.Click)
			}
			if p.IsLowerOutlier {
				down.X = append(down.X, p.Date)
				down.Y = append(down.Y, p.Click)
			}
		}
		chart.Traces = append(chart.Traces, up, down)
	}
	return chart
}

func outlierTrace(name, symbol string) Trace {
	return Trace{
		Name: name,
		Mode: ModeMarkers,
		X:    []string{},
		Y:    []float64{},
		Marker: &Marker{
			Color:  ColorOutliers,
			Symbol: symbol,
			Size:   outlierMarkerSize,
		},
	}
}
