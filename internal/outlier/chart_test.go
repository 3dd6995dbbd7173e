package outlier

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func traceNames(chart ChartDescription) []string {
	names := make([]string, len(chart.Traces))
	for i, tr := range chart.Traces {
		names[i] = tr.Name
	}
	return names
}

func TestBuildChartTraceSelection(t *testing.T) {
	points := pointsOf(0.1, 0.1, 0.1, 0.1, 0.9, 0.1, 0.1, -0.6)
	cases := []struct {
		bounds, outliers bool
		want             []string
	}{
		{false, false, []string{TraceClicks}},
		{true, false, []string{TraceClicks, TraceUpperBound, TraceLowerBound}},
		{false, true, []string{TraceClicks, TraceUpperOutliers, TraceLowerOutliers}},
		{true, true, []string{TraceClicks, TraceUpperBound, TraceLowerBound, TraceUpperOutliers, TraceLowerOutliers}},
	}
	for _, tc := range cases {
		cfg := cfgWith(Simple, 3, 1.0)
		cfg.ShowBounds = tc.bounds
		cfg.HighlightOutliers = tc.outliers
		res, err := Render(points, cfg)
		require.NoError(t, err)
		assert.Equal(t, tc.want, traceNames(res.Chart))
	}
}

func TestBuildChartContent(t *testing.T) {
	points := pointsOf(0.1, 0.1, 0.1, 0.1, 0.9, 0.1, 0.1, -0.6)
	res, err := Render(points, cfgWith(Simple, 3, 1.0))
	require.NoError(t, err)
	chart := res.Chart

	clicks := chart.Traces[0]
	assert.Equal(t, ModeLinesMarkers, clicks.Mode)
	assert.Len(t, clicks.X, len(points))
	assert.Equal(t, ColorClicks, clicks.Marker.Color)

	upper := chart.Traces[1]
	assert.Equal(t, ModeLines, upper.Mode)
	assert.Len(t, upper.X, len(points)-2, "bounds only where defined")
	assert.Equal(t, points[2].Date, upper.X[0])

	up := chart.Traces[3]
	assert.Equal(t, SymbolTriangleUp, up.Marker.Symbol)
	assert.Equal(t, []string{points[4].Date}, up.X)
	assert.Equal(t, []float64{0.9}, up.Y)

	down := chart.Traces[4]
	assert.Equal(t, SymbolTriangleDown, down.Marker.Symbol)
	assert.Equal(t, []string{points[7].Date}, down.X)
	assert.Equal(t, ColorOutliers, down.Marker.Color)
	assert.Equal(t, 10, down.Marker.Size)

	assert.Equal(t, "Click-Through Rates", chart.Layout.Title)
}

func TestChartEncodes(t *testing.T) {
	res, err := Render(pointsOf(0, 1, 1), cfgWith(Simple, 2, 1.5))
	require.NoError(t, err)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	var decoded struct {
		Series struct {
			Points []struct {
				MAMean *float64 `json:"ma_mean"`
			} `json:"points"`
		} `json:"series"`
		Chart struct {
			Traces []struct {
				Name string `json:"name"`
			} `json:"traces"`
		} `json:"chart"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Series.Points, 3)
	assert.Nil(t, decoded.Series.Points[0].MAMean)
	require.NotNil(t, decoded.Series.Points[1].MAMean)
	assert.Equal(t, 0.5, *decoded.Series.Points[1].MAMean)
	assert.Len(t, decoded.Chart.Traces, 5)

	out, err := yaml.Marshal(res.Chart)
	require.NoError(t, err)
	assert.Contains(t, string(out), "Upper threshold")
}
