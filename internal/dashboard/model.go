// Package dashboard provides the Bubble Tea outlier dashboard.
package dashboard

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mattn/go-runewidth"
	"go.uber.org/zap"

	"github.com/verte-zerg/ctrplot/internal/model"
	"github.com/verte-zerg/ctrplot/internal/outlier"
	"github.com/verte-zerg/ctrplot/internal/plot"
	"github.com/verte-zerg/ctrplot/internal/series"
)

const (
	tabChart = iota
	tabOutliers
)

const (
	resultCacheSize = 64
	defaultWidth    = 80
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color(outlier.ColorClicks))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	sparkStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color(outlier.ColorClicks))
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Loader reads the aggregated series.
type Loader func(path string) ([]model.AggregatedPoint, error)

// Options configures a dashboard session.
type Options struct {
	StorePath string
	Config    outlier.Config
	// Watch reloads the series when the store file changes.
	Watch  bool
	Logger *zap.Logger
	// Load defaults to series.Read.
	Load Loader
}

// Model implements the Bubble Tea dashboard.
type Model struct {
	storePath string
	load      Loader
	log       *zap.Logger
	watcher   *Watcher

	cfg       outlier.Config
	points    []model.AggregatedPoint
	loaded    bool
	result    outlier.Result
	hasResult bool
	cache     *lru.Cache[outlier.Config, outlier.Result]
	loadErr   error
	cfgErr    error

	tabs       []string
	activeTab  int
	chart      viewport.Model
	outliers   table.Model
	keys       keyMap
	help       help.Model
	width      int
	height     int
	formMode   bool
	formInputs []textinput.Model
	formIndex  int
	formError  string
}

// NewModel loads the series and computes the initial chart. A load failure
// is shown in the footer rather than returned.
func NewModel(opts Options) (*Model, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	cache, err := lru.New[outlier.Config, outlier.Result](resultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}
	m := &Model{
		storePath: opts.StorePath,
		load:      opts.Load,
		log:       opts.Logger,
		cfg:       opts.Config,
		cache:     cache,
		tabs:      []string{"Chart", "Outliers"},
		chart:     viewport.New(0, 0),
		keys:      defaultKeyMap(),
		help:      help.New(),
	}
	if m.load == nil {
		m.load = series.Read
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	m.initInputs()
	m.initTable()
	if opts.Watch {
		w, err := NewWatcher(opts.StorePath)
		if err != nil {
			return nil, err
		}
		m.watcher = w
	}
	m.reload()
	return m, nil
}

// Close releases the store watcher.
func (m *Model) Close() error {
	if m.watcher == nil {
		return nil
	}
	return m.watcher.Close()
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	if m.watcher == nil {
		return nil
	}
	return m.watcher.wait()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderContents()
		return m, nil
	case storeChangedMsg:
		m.log.Info("store changed", zap.String("path", m.storePath))
		m.reload()
		return m, m.watcher.wait()
	case watchErrMsg:
		m.log.Warn("store watcher failed", zap.Error(msg.err))
		m.loadErr = msg.err
		return m, m.watcher.wait()
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.formMode {
			return m.updateForm(msg)
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.PrevTab):
			m.moveTab(-1)
			return m, tea.ClearScreen
		case key.Matches(msg, m.keys.NextTab):
			m.moveTab(1)
			return m, tea.ClearScreen
		case key.Matches(msg, m.keys.Average):
			next := m.cfg
			next.Average = toggleAverage(next.Average)
			m.applyConfig(next)
			return m, nil
		case key.Matches(msg, m.keys.WindowDown):
			next := m.cfg
			next.Window = outlier.StepWindow(next.Window, -1)
			m.applyConfig(next)
			return m, nil
		case key.Matches(msg, m.keys.WindowUp):
			next := m.cfg
			next.Window = outlier.StepWindow(next.Window, 1)
			m.applyConfig(next)
			return m, nil
		case key.Matches(msg, m.keys.ThresholdDown):
			next := m.cfg
			next.Threshold = outlier.StepThreshold(next.Threshold, -1)
			m.applyConfig(next)
			return m, nil
		case key.Matches(msg, m.keys.ThresholdUp):
			next := m.cfg
			next.Threshold = outlier.StepThreshold(next.Threshold, 1)
			m.applyConfig(next)
			return m, nil
		case key.Matches(msg, m.keys.Bounds):
			next := m.cfg
			next.ShowBounds = !next.ShowBounds
			m.applyConfig(next)
			return m, nil
		case key.Matches(msg, m.keys.Outliers):
			next := m.cfg
			next.HighlightOutliers = !next.HighlightOutliers
			m.applyConfig(next)
			return m, nil
		case key.Matches(msg, m.keys.Settings):
			return m.startForm()
		case key.Matches(msg, m.keys.Reload):
			m.reload()
			return m, nil
		default:
			if m.activeTab == tabOutliers {
				var cmd tea.Cmd
				m.outliers, cmd = m.outliers.Update(msg)
				return m, cmd
			}
			var cmd tea.Cmd
			m.chart, cmd = m.chart.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

// Config returns the active chart parameters.
func (m *Model) Config() outlier.Config {
	return m.cfg
}

// reload reads the store. On failure the previous series and chart stay.
func (m *Model) reload() {
	points, err := m.load(m.storePath)
	if err != nil {
		m.log.Warn("failed to load series", zap.String("path", m.storePath), zap.Error(err))
		m.loadErr = err
		m.renderContents()
		return
	}
	m.log.Info("series loaded", zap.String("path", m.storePath), zap.Int("points", len(points)))
	m.points = points
	m.loaded = true
	m.loadErr = nil
	m.cache.Purge()
	m.recompute()
}

// applyConfig switches to next when it is valid. An invalid configuration
// is reported and the current chart is kept.
func (m *Model) applyConfig(next outlier.Config) error {
	if err := next.Validate(); err != nil {
		m.cfgErr = err
		return err
	}
	if next != m.cfg {
		m.log.Debug("config changed",
			zap.String("average", string(next.Average)),
			zap.Int("window", next.Window),
			zap.Float64("threshold", next.Threshold),
			zap.Bool("bounds", next.ShowBounds),
			zap.Bool("outliers", next.HighlightOutliers),
		)
	}
	m.cfg = next
	m.recompute()
	return nil
}

func (m *Model) recompute() {
	if !m.loaded {
		m.renderContents()
		return
	}
	if res, ok := m.cache.Get(m.cfg); ok {
		m.setResult(res)
		return
	}
	res, err := outlier.Render(m.points, m.cfg)
	if err != nil {
		m.cfgErr = err
		m.renderContents()
		return
	}
	m.cache.Add(m.cfg, res)
	m.setResult(res)
}

func (m *Model) setResult(res outlier.Result) {
	m.result = res
	m.hasResult = true
	m.cfgErr = nil
	m.applyOutlierRows()
	m.renderContents()
}

// errorLine joins the pending load and config errors.
func (m *Model) errorLine() string {
	var parts []string
	for _, err := range []error{m.loadErr, m.cfgErr} {
		if err != nil {
			parts = append(parts, err.Error())
		}
	}
	return strings.Join(parts, "; ")
}

func toggleAverage(a outlier.AverageType) outlier.AverageType {
	if a == outlier.Exponential {
		return outlier.Simple
	}
	return outlier.Exponential
}

func (m *Model) initInputs() {
	m.formInputs = []textinput.Model{
		newFormInput("Window (1-24): "),
		newFormInput("Threshold (1.0-3.0): "),
	}
}

func newFormInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 8
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) setInputsFromConfig() {
	m.formInputs[0].SetValue(strconv.Itoa(m.cfg.Window))
	m.formInputs[1].SetValue(strconv.FormatFloat(m.cfg.Threshold, 'f', 1, 64))
}

func (m *Model) startForm() (tea.Model, tea.Cmd) {
	m.formMode = true
	m.formError = ""
	m.setInputsFromConfig()
	return m, m.setFormIndex(0)
}

func (m *Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.formMode = false
		m.formError = ""
		return m, nil
	case tea.KeyEnter:
		next, err := m.parseForm()
		if err == nil {
			err = m.applyConfig(next)
		}
		if err != nil {
			m.formError = err.Error()
			return m, nil
		}
		m.formMode = false
		m.formError = ""
		m.updateLayout()
		return m, nil
	case tea.KeyTab, tea.KeyDown:
		return m, m.setFormIndex(m.formIndex + 1)
	case tea.KeyShiftTab, tea.KeyUp:
		return m, m.setFormIndex(m.formIndex - 1)
	}
	var cmd tea.Cmd
	m.formInputs[m.formIndex], cmd = m.formInputs[m.formIndex].Update(msg)
	return m, cmd
}

func (m *Model) parseForm() (outlier.Config, error) {
	next := m.cfg
	windowInput := strings.TrimSpace(m.formInputs[0].Value())
	window, err := strconv.Atoi(windowInput)
	if err != nil {
		return next, &model.InvalidConfigError{Field: "window", Value: strconv.Quote(windowInput), Reason: "not an integer"}
	}
	thresholdInput := strings.TrimSpace(m.formInputs[1].Value())
	threshold, err := strconv.ParseFloat(thresholdInput, 64)
	if err != nil {
		return next, &model.InvalidConfigError{Field: "threshold", Value: strconv.Quote(thresholdInput), Reason: "not a number"}
	}
	next.Window = window
	next.Threshold = threshold
	if err := next.Validate(); err != nil {
		return next, err
	}
	return next, nil
}

func (m *Model) setFormIndex(idx int) tea.Cmd {
	count := len(m.formInputs)
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	m.formIndex = idx
	var cmd tea.Cmd
	for i := range m.formInputs {
		if i == m.formIndex {
			cmd = m.formInputs[i].Focus()
		} else {
			m.formInputs[i].Blur()
		}
	}
	return cmd
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if !m.formMode && m.errorLine() != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.chart.Width = m.width
	m.chart.Height = bodyHeight
	m.outliers.SetWidth(m.width)
	m.outliers.SetHeight(maxInt(1, bodyHeight-2))
	m.help.Width = m.width
	for i := range m.formInputs {
		promptWidth := lipgloss.Width(m.formInputs[i].Prompt)
		m.formInputs[i].Width = maxInt(10, m.width-promptWidth-2)
	}
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
	if m.activeTab == tabOutliers {
		m.outliers.Focus()
	} else {
		m.outliers.Blur()
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	return tabs + "\n" + m.renderSettingsSummary()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func (m *Model) renderSettingsSummary() string {
	summary := fmt.Sprintf("Settings: %s  window=%d  threshold=%.1f  bounds=%s  outliers=%s",
		m.cfg.Average.Label(), m.cfg.Window, m.cfg.Threshold, onOff(m.cfg.ShowBounds), onOff(m.cfg.HighlightOutliers))
	return headerStyle.Render(truncateLine(summary, m.width))
}

func (m *Model) renderFooter() string {
	if m.formMode {
		return headerStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel")
	}
	helpView := m.help.View(m.keys)
	if line := m.errorLine(); line != "" {
		return helpView + "\n" + errorStyle.Render(truncateLine(line, m.width))
	}
	return helpView
}

func (m *Model) renderForm() string {
	lines := []string{"Settings (enter to apply, esc to cancel)"}
	for _, input := range m.formInputs {
		lines = append(lines, input.View())
	}
	if m.formError != "" {
		lines = append(lines, errorStyle.Render(m.formError))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderBody(height int) string {
	if m.formMode {
		return fitLines(m.renderForm(), m.width, height)
	}
	if m.activeTab == tabOutliers {
		return fitLines(m.renderOutliersTab(), m.width, height)
	}
	return fitLines(m.chart.View(), m.width, height)
}

// renderContents redraws the chart for the current layout, which shrinks
// while an error line is shown.
func (m *Model) renderContents() {
	m.updateLayout()
	m.chart.SetContent(m.renderChart())
}

func (m *Model) renderChart() string {
	if !m.hasResult {
		if m.loadErr != nil {
			return "Failed to load series."
		}
		return "Loading series..."
	}
	if len(m.result.Series.Points) == 0 {
		return "No data points."
	}
	width := m.width
	if width <= 0 {
		width = defaultWidth
	}
	height := 0
	if m.height > 0 {
		_, bodyHeight, _ := m.layoutHeights()
		height = plot.PlotHeightFor(bodyHeight)
	}
	var buf bytes.Buffer
	err := plot.RenderChart(&buf, m.result.Chart, plot.Options{
		Width:      plot.PlotWidthFor(width),
		Height:     height,
		ForceColor: true,
	})
	if err != nil {
		return fmt.Sprintf("Failed to render chart: %v", err)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func (m *Model) renderOutliersTab() string {
	if !m.hasResult {
		return "No series loaded."
	}
	sum := m.result.Series.Summary()
	line := fmt.Sprintf("Points %d  With bounds %d  Upper %d  Lower %d",
		sum.Points, sum.WithBounds, sum.UpperOutliers, sum.LowerOutliers)
	spark := sparkStyle.Render(m.sparkline())
	if !m.cfg.HighlightOutliers {
		return strings.Join([]string{headerStyle.Render(line), spark, "Outlier highlighting is off. Press o to enable."}, "\n")
	}
	if sum.UpperOutliers+sum.LowerOutliers == 0 {
		return strings.Join([]string{headerStyle.Render(line), spark, "No outliers."}, "\n")
	}
	return strings.Join([]string{headerStyle.Render(line), spark, tableMutedStyle.Render(m.outliers.View())}, "\n")
}

// sparkline shows the most recent clicks that fit the width.
func (m *Model) sparkline() string {
	width := m.width
	if width <= 0 {
		width = defaultWidth
	}
	points := m.result.Series.Points
	if len(points) > width {
		points = points[len(points)-width:]
	}
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Click
	}
	return plot.Sparkline(values)
}

func (m *Model) initTable() {
	t := table.New(
		table.WithColumns(outlierColumns()),
		table.WithHeight(1),
	)
	t.SetStyles(outlierTableStyles())
	m.outliers = t
}

func outlierColumns() []table.Column {
	return []table.Column{
		{Title: "Date", Width: 14},
		{Title: "Click", Width: 10},
		{Title: "Lower", Width: 10},
		{Title: "Upper", Width: 10},
		{Title: "Direction", Width: 9},
	}
}

func (m *Model) applyOutlierRows() {
	flagged := m.result.Series.Outliers()
	rows := make([]table.Row, 0, len(flagged))
	for _, f := range flagged {
		rows = append(rows, table.Row{
			f.Date,
			formatValue(f.Click),
			formatValue(f.LowerBound),
			formatValue(f.UpperBound),
			string(f.Direction),
		})
	}
	m.outliers.SetRows(rows)
	m.outliers.GotoTop()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func outlierTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color(outlier.ColorOutliers)).
		Bold(true)
	return styles
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}
