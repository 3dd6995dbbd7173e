// Package main provides the CLI entrypoint for ctrplot.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verte-zerg/ctrplot/internal/aggregate"
	"github.com/verte-zerg/ctrplot/internal/config"
	"github.com/verte-zerg/ctrplot/internal/dashboard"
	"github.com/verte-zerg/ctrplot/internal/logging"
	"github.com/verte-zerg/ctrplot/internal/outlier"
	"github.com/verte-zerg/ctrplot/internal/sample"
)

var (
	storeFlag string

	convertInput  string
	convertOutput string

	dashParams paramFlags
	dashWatch  bool

	sampleOutput string
	sampleOpts   sample.Options
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ctrplot",
		Short:         "Hourly click-through rate outlier dashboard",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runDashboardCmd,
	}

	rootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", "aggregated series file (default: $XDG_DATA_HOME/ctrplot/ctr.csv)")
	dashParams.register(rootCmd)
	rootCmd.Flags().BoolVar(&dashWatch, "watch", false, "reload the chart when the series file changes")

	rootCmd.AddCommand(newConvertCmd())
	rootCmd.AddCommand(newChartCmd())
	rootCmd.AddCommand(newSampleCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func loadFileConfig() (config.FileConfig, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	return fileCfg, nil
}

// resolveStorePath prefers --store, then [store] path, then the XDG default.
func resolveStorePath(cmd *cobra.Command, fileCfg config.FileConfig) string {
	path := fileCfg.StorePath()
	if cmd.Flags().Changed("store") && storeFlag != "" {
		path = storeFlag
	}
	return path
}

func runDashboardCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	cfg, err := dashParams.resolve(cmd, fileCfg.Dashboard)
	if err != nil {
		return err
	}
	applyBoolConfig(cmd, "watch", &dashWatch, fileCfg.Dashboard.Watch)

	log, closer, err := logging.NewFile(logging.FileConfig{
		Path:  fileCfg.LogFile(),
		Level: fileCfg.LogLevel(),
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
		if cerr := closer.Close(); cerr != nil {
			logErrf("failed to close log file: %v\n", cerr)
		}
	}()

	storePath := resolveStorePath(cmd, fileCfg)
	log.Info("starting dashboard", zap.String("store", storePath), zap.Bool("watch", dashWatch))
	m, err := dashboard.NewModel(dashboard.Options{
		StorePath: storePath,
		Config:    cfg,
		Watch:     dashWatch,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("failed to start dashboard: %w", err)
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			log.Warn("failed to close watcher", zap.Error(cerr))
		}
	}()

	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run dashboard: %w", err)
	}
	return nil
}

func newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Aggregate a raw click file into the hourly series",
		Args:  cobra.NoArgs,
		RunE:  runConvertCmd,
	}
	cmd.Flags().StringVarP(&convertInput, "input", "i", "", "raw CSV file with click and hour columns (.gz supported)")
	cmd.Flags().StringVarP(&convertOutput, "output", "o", "", "series file to write (default: the store path)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runConvertCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	log, err := logging.NewStderr(fileCfg.LogLevel())
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	output := resolveStorePath(cmd, fileCfg)
	if convertOutput != "" {
		output = convertOutput
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Processing input file: %s\n", convertInput)
	res, err := aggregate.Convert(ctx, aggregate.ConvertOptions{
		InputPath:  convertInput,
		OutputPath: output,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("failed to convert %s: %w", convertInput, err)
	}
	fmt.Fprintf(out, "Saving file to %s\n", res.OutputPath)
	fmt.Fprintf(out, "Aggregated %s events into %s hourly points\n",
		humanize.Comma(res.Events), humanize.Comma(int64(res.Points)))
	return nil
}

func newSampleCmd() *cobra.Command {
	sampleOpts = sample.DefaultOptions()
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Generate a synthetic raw click file",
		Args:  cobra.NoArgs,
		RunE:  runSampleCmd,
	}
	cmd.Flags().StringVarP(&sampleOutput, "output", "o", "", "raw CSV file to write (.gz compresses)")
	cmd.Flags().Int64Var(&sampleOpts.StartHour, "start", sampleOpts.StartHour, "first hour bucket (YYMMDDHH)")
	cmd.Flags().IntVar(&sampleOpts.Hours, "hours", sampleOpts.Hours, "number of hourly buckets")
	cmd.Flags().IntVar(&sampleOpts.EventsPerHour, "events", sampleOpts.EventsPerHour, "events per hour")
	cmd.Flags().Float64Var(&sampleOpts.Rate, "rate", sampleOpts.Rate, "base click probability (0-1)")
	cmd.Flags().Float64Var(&sampleOpts.SpikeProb, "spike-prob", sampleOpts.SpikeProb, "probability an hour spikes or dips (0-1)")
	cmd.Flags().Float64Var(&sampleOpts.SpikeFactor, "spike-factor", sampleOpts.SpikeFactor, "rate multiplier for spikes and divisor for dips")
	cmd.Flags().Int64Var(&sampleOpts.Seed, "seed", sampleOpts.Seed, "random seed")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runSampleCmd(cmd *cobra.Command, _ []string) error {
	n, err := sample.WriteFile(sampleOutput, sampleOpts)
	if err != nil {
		return fmt.Errorf("failed to generate sample: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s events over %d hours to %s\n",
		humanize.Comma(n), sampleOpts.Hours, sampleOutput)
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func defaultConfigTemplate() string {
	def := outlier.DefaultConfig()
	return fmt.Sprintf(`# ctrplot configuration
# Uncomment a value to enable it. CLI flags override config values.

[dashboard]
# average = %q            # sma or ema
# window = %d             # Moving window in hours (%d-%d)
# threshold = %.1f        # Band width in standard deviations (%.1f-%.1f, step %.1f)
# show-bounds = %t        # Draw the upper and lower thresholds
# highlight-outliers = %t # Mark points outside the band
# watch = false           # Reload when the series file changes

[store]
# path = %q

[log]
# level = "info"          # debug, info, warn, error
# file = %q
`,
		string(def.Average),
		def.Window, outlier.MinWindow, outlier.MaxWindow,
		def.Threshold, outlier.MinThreshold, outlier.MaxThreshold, outlier.ThresholdStep,
		def.ShowBounds,
		def.HighlightOutliers,
		config.DefaultStorePath(),
		config.DefaultLogPath(),
	)
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
