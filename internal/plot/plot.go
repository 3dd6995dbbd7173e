// Package plot renders chart descriptions as terminal text.
package plot

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/verte-zerg/ctrplot/internal/outlier"
)

const (
	defaultPlotHeight   = 12
	minPlotWidth        = 10
	minPlotHeight       = 3
	axisLabelWidth      = 9
	axisSeparator       = " │ "
	terminalWidthBackup = 80

	glyphUp   = '▲'
	glyphDown = '▼'
)

// Options controls the plot size and color output.
type Options struct {
	Width  int
	Height int
	// ForceColor enables colors even when w is not a terminal.
	ForceColor bool
}

type lineLayer struct {
	trace  outlier.Trace
	values []float64
	cells  [][]uint8
}

type markerLayer struct {
	trace  outlier.Trace
	glyph  rune
	index  []int
	values []float64
}

// RenderChart draws the chart as a braille plot with a shared y axis.
// Line traces are aligned to the dates of the first trace; marker traces are
// drawn as direction glyphs over the lines.
func RenderChart(w io.Writer, chart outlier.ChartDescription, opts Options) error {
	if len(chart.Traces) == 0 || len(chart.Traces[0].X) == 0 {
		return nil
	}
	dates := chart.Traces[0].X
	position := make(map[string]int, len(dates))
	for i, d := range dates {
		position[d] = i
	}

	width := opts.Width
	if width <= 0 {
		width = autoPlotWidth()
	}
	if width < minPlotWidth {
		width = minPlotWidth
	}
	height := opts.Height
	if height <= 0 {
		height = defaultPlotHeight
	}
	if height < minPlotHeight {
		height = minPlotHeight
	}

	var lines []lineLayer
	var markers []markerLayer
	minVal, maxVal := math.Inf(1), math.Inf(-1)
	for _, tr := range chart.Traces {
		for _, v := range tr.Y {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			minVal = math.Min(minVal, v)
			maxVal = math.Max(maxVal, v)
		}
		if tr.Mode == outlier.ModeMarkers {
			index, values := markerPoints(tr, position)
			markers = append(markers, markerLayer{trace: tr, glyph: glyphFor(tr), index: index, values: values})
			continue
		}
		lines = append(lines, lineLayer{trace: tr, values: alignTrace(tr, position, len(dates))})
	}
	if math.IsInf(minVal, 1) {
		return nil
	}
	minVal, maxVal = padRange(minVal, maxVal)

	for i := range lines {
		lines[i].cells = makeCells(height, width)
		drawSeries(lines[i].cells, resampleSeries(lines[i].values, width), minVal, maxVal, height)
	}
	glyphs := makeGlyphs(height, width)
	for mi, m := range markers {
		for k, idx := range m.index {
			col := columnFor(idx, len(dates), width)
			row := valueToRow(m.values[k], minVal, maxVal, height*4) / 4
			glyphs[row][col] = mi + 1
		}
	}

	colors := newPalette(w, opts.ForceColor)

	if title := chart.Layout.Title; title != "" {
		if _, err := fmt.Fprintln(w, title); err != nil {
			return err
		}
	}
	labels := makeAxisLabels(height, minVal, maxVal)
	for y := 0; y < height; y++ {
		var row strings.Builder
		row.WriteString(fmt.Sprintf("%*s%s", axisLabelWidth, labels[y], axisSeparator))
		for x := 0; x < width; x++ {
			if mi := glyphs[y][x]; mi > 0 {
				m := markers[mi-1]
				row.WriteString(colors.paint(traceColor(m.trace), string(m.glyph)))
				continue
			}
			mask, layer := composeCell(lines, x, y)
			ch := string(brailleFromMask(mask))
			if layer >= 0 {
				ch = colors.paint(traceColor(lines[layer].trace), ch)
			}
			row.WriteString(ch)
		}
		if _, err := fmt.Fprintln(w, row.String()); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, dateAxis(dates[0], dates[len(dates)-1], width)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, renderLegend(lines, markers, colors)); err != nil {
		return err
	}
	return nil
}

// PlotWidthFor computes a plot width that fits within the total available width.
func PlotWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	plotWidth := totalWidth - axisWidth()
	if plotWidth < minPlotWidth {
		plotWidth = minPlotWidth
	}
	return plotWidth
}

// PlotHeightFor computes a plot height for the given number of terminal rows,
// leaving room for the title, date axis and legend.
func PlotHeightFor(totalHeight int) int {
	h := totalHeight - 3
	if h < minPlotHeight {
		return minPlotHeight
	}
	return h
}

func axisWidth() int {
	return axisLabelWidth + runewidth.StringWidth(axisSeparator)
}

func autoPlotWidth() int {
	return PlotWidthFor(terminalWidth())
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func alignTrace(tr outlier.Trace, position map[string]int, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	for k, d := range tr.X {
		if idx, ok := position[d]; ok && k < len(tr.Y) {
			out[idx] = tr.Y[k]
		}
	}
	return out
}

// markerPoints keeps the defined marker points whose dates are on the axis.
func markerPoints(tr outlier.Trace, position map[string]int) ([]int, []float64) {
	index := make([]int, 0, len(tr.X))
	values := make([]float64, 0, len(tr.X))
	for k, d := range tr.X {
		if k >= len(tr.Y) || math.IsNaN(tr.Y[k]) {
			continue
		}
		if idx, ok := position[d]; ok {
			index = append(index, idx)
			values = append(values, tr.Y[k])
		}
	}
	return index, values
}

func glyphFor(tr outlier.Trace) rune {
	if tr.Marker != nil && tr.Marker.Symbol == outlier.SymbolTriangleDown {
		return glyphDown
	}
	return glyphUp
}

func traceColor(tr outlier.Trace) string {
	if tr.Line != nil && tr.Line.Color != "" {
		return tr.Line.Color
	}
	if tr.Marker != nil {
		return tr.Marker.Color
	}
	return ""
}

func padRange(minVal, maxVal float64) (float64, float64) {
	if math.Abs(maxVal-minVal) >= 1e-9 {
		return minVal, maxVal
	}
	pad := math.Abs(maxVal) * 0.1
	if pad < 1e-9 {
		pad = 1
	}
	return minVal - pad, maxVal + pad
}

// columnFor maps a point index to its plot column.
func columnFor(idx, n, width int) int {
	if n <= 1 || width <= 1 {
		return 0
	}
	var col int
	if n > width {
		col = idx * width / n
	} else {
		col = int(math.Round(float64(idx) * float64(width-1) / float64(n-1)))
	}
	if col >= width {
		col = width - 1
	}
	return col
}

func drawSeries(cells [][]uint8, values []float64, minVal, maxVal float64, height int) {
	prevX, prevY := -1, -1
	for x, v := range values {
		if math.IsNaN(v) {
			prevX, prevY = -1, -1
			continue
		}
		px := x * 2
		py := valueToRow(v, minVal, maxVal, height*4)
		if prevX >= 0 {
			drawLine(prevX, prevY, px, py, func(dx, dy int) {
				setBrailleDot(cells, dx, dy)
			})
		} else {
			setBrailleDot(cells, px, py)
		}
		prevX, prevY = px, py
	}
}

func makeAxisLabels(height int, minVal, maxVal float64) []string {
	labels := make([]string, height)
	labels[0] = formatAxisValue(maxVal)
	labels[height-1] = formatAxisValue(minVal)
	if height > 2 {
		labels[height/2] = formatAxisValue((minVal + maxVal) / 2)
	}
	return labels
}

func formatAxisValue(v float64) string {
	return fmt.Sprintf("%.4g", v)
}

func dateAxis(first, last string, width int) string {
	pad := strings.Repeat(" ", axisWidth())
	gap := width - runewidth.StringWidth(first) - runewidth.StringWidth(last)
	if gap < 1 {
		return pad + first
	}
	return pad + first + strings.Repeat(" ", gap) + last
}

func makeCells(height, width int) [][]uint8 {
	cells := make([][]uint8, height)
	for y := 0; y < height; y++ {
		cells[y] = make([]uint8, width)
	}
	return cells
}

func makeGlyphs(height, width int) [][]int {
	glyphs := make([][]int, height)
	for y := 0; y < height; y++ {
		glyphs[y] = make([]int, width)
	}
	return glyphs
}

func composeCell(layers []lineLayer, x, y int) (uint8, int) {
	var mask uint8
	layer := -1
	for i, l := range layers {
		cellMask := l.cells[y][x]
		if cellMask == 0 {
			continue
		}
		if layer == -1 {
			layer = i
		}
		mask |= cellMask
	}
	return mask, layer
}

// resampleSeries fits values to width columns. Undefined values stay NaN so
// gaps survive resampling.
func resampleSeries(values []float64, width int) []float64 {
	if len(values) == 0 || width <= 0 {
		return nil
	}
	out := make([]float64, width)
	for i := range out {
		out[i] = math.NaN()
	}
	if len(values) > width {
		for i := 0; i < width; i++ {
			start := i * len(values) / width
			end := (i + 1) * len(values) / width
			if end <= start {
				end = start + 1
			}
			var sum float64
			var n int
			for _, v := range values[start:end] {
				if math.IsNaN(v) {
					continue
				}
				sum += v
				n++
			}
			if n > 0 {
				out[i] = sum / float64(n)
			}
		}
		return out
	}
	for i, v := range values {
		c0 := columnFor(i, len(values), width)
		out[c0] = v
		if i+1 >= len(values) || math.IsNaN(v) || math.IsNaN(values[i+1]) {
			continue
		}
		// Fill the columns up to the next point when both ends are defined.
		c1 := columnFor(i+1, len(values), width)
		for k := c0 + 1; k < c1; k++ {
			frac := float64(k-c0) / float64(c1-c0)
			out[k] = v*(1-frac) + values[i+1]*frac
		}
	}
	return out
}

func valueToRow(v, minVal, maxVal float64, height int) int {
	if height <= 1 {
		return 0
	}
	pos := (v - minVal) / (maxVal - minVal)
	row := int(math.Round((1 - pos) * float64(height-1)))
	if row < 0 {
		row = 0
	}
	if row >= height {
		row = height - 1
	}
	return row
}

func renderLegend(lines []lineLayer, markers []markerLayer, colors palette) string {
	parts := make([]string, 0, len(lines)+len(markers))
	for _, l := range lines {
		glyph := "─"
		if l.trace.Mode == outlier.ModeLinesMarkers {
			glyph = "⣿"
		}
		parts = append(parts, colors.paint(traceColor(l.trace), glyph+" "+l.trace.Name))
	}
	for _, m := range markers {
		label := fmt.Sprintf("%c %s (%d)", m.glyph, m.trace.Name, len(m.index))
		parts = append(parts, colors.paint(traceColor(m.trace), label))
	}
	return "Legend: " + strings.Join(parts, "  ")
}

func drawLine(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := int(math.Abs(float64(x1 - x0)))
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -int(math.Abs(float64(y1 - y0)))
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			if x0 == x1 {
				break
			}
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			if y0 == y1 {
				break
			}
			err += dx
			y0 += sy
		}
	}
}

func setBrailleDot(cells [][]uint8, x, y int) {
	if y < 0 || x < 0 {
		return
	}
	cellY := y / 4
	cellX := x / 2
	if cellY >= len(cells) || cellX >= len(cells[cellY]) {
		return
	}
	cells[cellY][cellX] |= brailleDotMask(x%2, y%4)
}

func brailleDotMask(x, y int) uint8 {
	switch {
	case x == 0 && y == 0:
		return 0x01
	case x == 0 && y == 1:
		return 0x02
	case x == 0 && y == 2:
		return 0x04
	case x == 0 && y == 3:
		return 0x40
	case x == 1 && y == 0:
		return 0x08
	case x == 1 && y == 1:
		return 0x10
	case x == 1 && y == 2:
		return 0x20
	case x == 1 && y == 3:
		return 0x80
	default:
		return 0
	}
}

func brailleFromMask(mask uint8) rune {
	return rune(0x2800 + int(mask))
}

// palette paints text in trace colors, or passes it through when colors are
// disabled.
type palette struct {
	renderer *lipgloss.Renderer
}

func newPalette(w io.Writer, force bool) palette {
	if !shouldUseColor(w, force) {
		return palette{}
	}
	r := lipgloss.NewRenderer(w)
	if force {
		r.SetColorProfile(termenv.TrueColor)
	}
	return palette{renderer: r}
}

func (p palette) paint(color, s string) string {
	if p.renderer == nil || color == "" {
		return s
	}
	return p.renderer.NewStyle().Foreground(lipgloss.Color(color)).Render(s)
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
