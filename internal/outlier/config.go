// Package outlier computes moving statistics over the hourly series, derives
// the outlier band and describes the resulting chart.
package outlier

import (
	"fmt"
	"math"
	"strings"

	"github.com/verte-zerg/ctrplot/internal/model"
)

// AverageType selects the moving-statistics policy.
type AverageType string

const (
	// Simple is an equally weighted trailing window.
	Simple AverageType = "sma"
	// Exponential weights every prior point with geometric decay.
	Exponential AverageType = "ema"
)

// Parameter domains.
const (
	MinWindow     = 1
	MaxWindow     = 24
	MinThreshold  = 1.0
	MaxThreshold  = 3.0
	ThresholdStep = 0.1

	thresholdTolerance = 1e-9
	thresholdScale     = 1 / ThresholdStep
)

// Config holds the five chart parameters.
type Config struct {
	Average           AverageType
	Window            int
	Threshold         float64
	ShowBounds        bool
	HighlightOutliers bool
}

// DefaultConfig returns the initial dashboard state.
func DefaultConfig() Config {
	return Config{
		Average:           Simple,
		Window:            12,
		Threshold:         1.5,
		ShowBounds:        true,
		HighlightOutliers: true,
	}
}

// ParseAverageType accepts sma, simple, ema and exponential.
func ParseAverageType(s string) (AverageType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sma", "simple":
		return Simple, nil
	case "ema", "exponential":
		return Exponential, nil
	}
	return "", &model.InvalidConfigError{Field: "average", Value: s, Reason: "use sma or ema"}
}

// Label returns a human readable name for the policy.
func (a AverageType) Label() string {
	switch a {
	case Simple:
		return "SMA - Simple Moving Average"
	case Exponential:
		return "EMA - Exponential Moving Average"
	}
	return string(a)
}

// Validate reports the first parameter outside its domain.
func (c Config) Validate() error {
	if c.Average != Simple && c.Average != Exponential {
		return &model.InvalidConfigError{Field: "average", Value: string(c.Average), Reason: "use sma or ema"}
	}
	if c.Window < MinWindow || c.Window > MaxWindow {
		return &model.InvalidConfigError{
			Field:  "window",
			Value:  c.Window,
			Reason: fmt.Sprintf("must be between %d and %d", MinWindow, MaxWindow),
		}
	}
	if math.IsNaN(c.Threshold) || c.Threshold < MinThreshold-thresholdTolerance || c.Threshold > MaxThreshold+thresholdTolerance {
		return &model.InvalidConfigError{
			Field:  "threshold",
			Value:  c.Threshold,
			Reason: fmt.Sprintf("must be between %.1f and %.1f", MinThreshold, MaxThreshold),
		}
	}
	steps := c.Threshold * thresholdScale
	if math.Abs(steps-math.Round(steps)) > thresholdTolerance*thresholdScale {
		return &model.InvalidConfigError{
			Field:  "threshold",
			Value:  c.Threshold,
			Reason: fmt.Sprintf("must be a multiple of %.1f", ThresholdStep),
		}
	}
	return nil
}

// StepThreshold moves the threshold by delta steps, clamped to its domain and
// snapped to the step grid.
func StepThreshold(threshold float64, delta int) float64 {
	steps := math.Round(threshold*thresholdScale) + float64(delta)
	v := steps / thresholdScale
	if v < MinThreshold {
		v = MinThreshold
	}
	if v > MaxThreshold {
		v = MaxThreshold
	}
	return v
}

// StepWindow moves the window by delta, clamped to its domain.
func StepWindow(window, delta int) int {
	w := window + delta
	if w < MinWindow {
		return MinWindow
	}
	if w > MaxWindow {
		return MaxWindow
	}
	return w
}
