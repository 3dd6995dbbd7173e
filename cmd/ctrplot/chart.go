package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/ctrplot/internal/config"
	"github.com/verte-zerg/ctrplot/internal/model"
	"github.com/verte-zerg/ctrplot/internal/outlier"
	"github.com/verte-zerg/ctrplot/internal/plot"
	"github.com/verte-zerg/ctrplot/internal/series"
)

// Output formats of the chart command.
const (
	formatPlot  = "plot"
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

var (
	chartParams paramFlags
	chartFormat string
	chartWidth  int
	chartHeight int
)

// paramFlags binds the five chart parameters to a command.
type paramFlags struct {
	average           string
	window            int
	threshold         float64
	showBounds        bool
	highlightOutliers bool
}

func (p *paramFlags) register(cmd *cobra.Command) {
	def := outlier.DefaultConfig()
	cmd.Flags().StringVar(&p.average, "average", string(def.Average), "moving average type (sma or ema)")
	cmd.Flags().IntVar(&p.window, "window", def.Window,
		fmt.Sprintf("moving window in hours (%d-%d)", outlier.MinWindow, outlier.MaxWindow))
	cmd.Flags().Float64Var(&p.threshold, "threshold", def.Threshold,
		fmt.Sprintf("band width in standard deviations (%.1f-%.1f, step %.1f)", outlier.MinThreshold, outlier.MaxThreshold, outlier.ThresholdStep))
	cmd.Flags().BoolVar(&p.showBounds, "show-bounds", def.ShowBounds, "draw the upper and lower thresholds")
	cmd.Flags().BoolVar(&p.highlightOutliers, "highlight-outliers", def.HighlightOutliers, "mark points outside the band")
}

// resolve applies config file values to flags the user did not set and
// validates the result.
func (p *paramFlags) resolve(cmd *cobra.Command, fileCfg config.DashboardConfig) (outlier.Config, error) {
	applyStringConfig(cmd, "average", &p.average, fileCfg.Average)
	applyIntConfig(cmd, "window", &p.window, fileCfg.Window)
	applyFloatConfig(cmd, "threshold", &p.threshold, fileCfg.Threshold)
	applyBoolConfig(cmd, "show-bounds", &p.showBounds, fileCfg.ShowBounds)
	applyBoolConfig(cmd, "highlight-outliers", &p.highlightOutliers, fileCfg.HighlightOutliers)

	avg, err := outlier.ParseAverageType(p.average)
	if err != nil {
		return outlier.Config{}, err
	}
	cfg := outlier.Config{
		Average:           avg,
		Window:            p.window,
		Threshold:         p.threshold,
		ShowBounds:        p.showBounds,
		HighlightOutliers: p.highlightOutliers,
	}
	if err := cfg.Validate(); err != nil {
		return outlier.Config{}, err
	}
	return cfg, nil
}

func newChartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Render the chart without the dashboard",
		Args:  cobra.NoArgs,
		RunE:  runChartCmd,
	}
	chartParams.register(cmd)
	cmd.Flags().StringVar(&chartFormat, "format", formatPlot, "output format (plot, table, json, yaml)")
	cmd.Flags().IntVar(&chartWidth, "width", 0, "plot width in columns (default: terminal width)")
	cmd.Flags().IntVar(&chartHeight, "height", 0, "plot height in rows")
	return cmd
}

func runChartCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	cfg, err := chartParams.resolve(cmd, fileCfg.Dashboard)
	if err != nil {
		return err
	}
	points, err := series.Read(resolveStorePath(cmd, fileCfg))
	if err != nil {
		return err
	}
	res, err := outlier.Render(points, cfg)
	if err != nil {
		return err
	}
	return writeChart(cmd.OutOrStdout(), res, chartFormat, plot.Options{Width: chartWidth, Height: chartHeight})
}

func writeChart(w io.Writer, res outlier.Result, format string, opts plot.Options) error {
	switch format {
	case formatPlot:
		if len(res.Series.Points) == 0 {
			_, err := fmt.Fprintln(w, "No data points.")
			return err
		}
		if opts.Width > 0 {
			opts.Width = plot.PlotWidthFor(opts.Width)
		}
		return plot.RenderChart(w, res.Chart, opts)
	case formatTable:
		return writeTable(w, res.Series)
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return err
		}
		return enc.Close()
	}
	return &model.InvalidConfigError{Field: "format", Value: format, Reason: "use plot, table, json or yaml"}
}

func writeTable(w io.Writer, s outlier.Series) error {
	headers := []string{"Date", "Click", "Mean", "Std", "Lower", "Upper", "Outlier"}
	rows := make([][]string, 0, len(s.Points))
	for _, p := range s.Points {
		flag := ""
		switch {
		case p.IsUpperOutlier:
			flag = string(outlier.Upper)
		case p.IsLowerOutlier:
			flag = string(outlier.Lower)
		}
		rows = append(rows, []string{
			p.Date,
			formatCell(model.Float(p.Click)),
			formatCell(p.MAMean),
			formatCell(p.MAStd),
			formatCell(p.LowerBound),
			formatCell(p.UpperBound),
			flag,
		})
	}
	right := map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true}
	for _, line := range plot.FormatTable(headers, rows, right) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func formatCell(v model.NullFloat) string {
	if !v.Valid {
		return "-"
	}
	return strconv.FormatFloat(v.Float64, 'f', 4, 64)
}
