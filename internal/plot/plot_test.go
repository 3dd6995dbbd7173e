package plot

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/verte-zerg/ctrplot/internal/model"
	"github.com/verte-zerg/ctrplot/internal/outlier"
)

func testChart(t *testing.T, values ...float64) outlier.ChartDescription {
	t.Helper()
	points := make([]model.AggregatedPoint, len(values))
	for i, v := range values {
		points[i] = model.AggregatedPoint{Date: "2014-3-15T" + twoDigits(i), Click: v}
	}
	res, err := outlier.Render(points, outlier.Config{
		Average:           outlier.Simple,
		Window:            3,
		Threshold:         1.0,
		ShowBounds:        true,
		HighlightOutliers: true,
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	return res.Chart
}

func twoDigits(i int) string {
	return string([]byte{byte('0' + i/10), byte('0' + i%10)})
}

func TestRenderChart(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	chart := testChart(t, 0.1, 0.1, 0.1, 0.1, 0.9, 0.1, 0.1, -0.6)

	var buf bytes.Buffer
	if err := RenderChart(&buf, chart, Options{Width: 40, Height: 6}); err != nil {
		t.Fatalf("RenderChart failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Click-Through Rates") {
		t.Fatalf("expected title in output")
	}
	for _, want := range []string{"Legend:", outlier.TraceClicks, outlier.TraceUpperBound, "▲ Upper Outliers (1)", "▼ Lower Outliers (1)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Count(out, "▲") != 2 || strings.Count(out, "▼") != 2 {
		t.Fatalf("expected one marker of each direction plus legend glyphs:\n%s", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("expected no escape codes with NO_COLOR set")
	}

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	// title + rows + date axis + legend
	if len(lines) != 1+6+1+1 {
		t.Fatalf("expected %d lines, got %d", 9, len(lines))
	}
	if !strings.HasPrefix(strings.TrimSpace(lines[1]), "0.9") {
		t.Fatalf("expected max value on the top axis label, got %q", lines[1])
	}
	if !strings.HasPrefix(strings.TrimSpace(lines[6]), "-0.6") {
		t.Fatalf("expected min value on the bottom axis label, got %q", lines[6])
	}
	if !strings.Contains(lines[7], "2014-3-15T00") || !strings.Contains(lines[7], "2014-3-15T07") {
		t.Fatalf("expected first and last date on the axis, got %q", lines[7])
	}
}

func TestRenderChartEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderChart(&buf, outlier.ChartDescription{}, Options{Width: 20, Height: 4}); err != nil {
		t.Fatalf("RenderChart failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output for an empty chart, got %q", buf.String())
	}
}

func TestRenderChartColor(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	chart := testChart(t, 0.1, 0.2, 0.3)
	var buf bytes.Buffer
	if err := RenderChart(&buf, chart, Options{Width: 12, Height: 4, ForceColor: true}); err != nil {
		t.Fatalf("RenderChart failed: %v", err)
	}
	if !strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("expected escape codes when color is forced")
	}
}

func TestResampleKeepsGaps(t *testing.T) {
	nan := math.NaN()
	got := resampleSeries([]float64{nan, nan, 1, 2}, 10)
	if len(got) != 10 {
		t.Fatalf("expected 10 columns, got %d", len(got))
	}
	if !math.IsNaN(got[0]) || !math.IsNaN(got[3]) {
		t.Fatalf("expected leading gap to survive, got %v", got)
	}
	if got[6] != 1 || got[9] != 2 {
		t.Fatalf("expected defined points at their columns, got %v", got)
	}
	if got[7] <= 1 || got[7] >= 2 {
		t.Fatalf("expected interpolation between defined points, got %v", got[7])
	}

	down := resampleSeries([]float64{1, 3, nan, nan, 5, 7}, 3)
	if down[0] != 2 || !math.IsNaN(down[1]) || down[2] != 6 {
		t.Fatalf("unexpected downsampled values %v", down)
	}
}

func TestColumnFor(t *testing.T) {
	if got := columnFor(0, 1, 10); got != 0 {
		t.Fatalf("expected column 0 for a single point, got %d", got)
	}
	if got := columnFor(4, 5, 9); got != 8 {
		t.Fatalf("expected last column, got %d", got)
	}
	if got := columnFor(99, 100, 10); got != 9 {
		t.Fatalf("expected last column when downsampling, got %d", got)
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline([]float64{0, 1, math.NaN(), 0.5}); got != "▁█ ▅" {
		t.Fatalf("unexpected sparkline %q", got)
	}
	if got := Sparkline([]float64{2, 2}); got != "▁▁" {
		t.Fatalf("unexpected flat sparkline %q", got)
	}
}
