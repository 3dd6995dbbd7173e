// Package sample generates synthetic raw click datasets.
package sample

import (
	"bufio"
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/ctrplot/internal/model"
)

const hourLayout = "06010215"

// Options shapes the generated dataset.
type Options struct {
	// StartHour is the first bucket as a YYMMDDHH code.
	StartHour     int64
	Hours         int
	EventsPerHour int
	// Rate is the base click probability per event.
	Rate float64
	// SpikeProb is the chance an hour is a spike or a dip.
	SpikeProb   float64
	SpikeFactor float64
	Seed        int64
}

// DefaultOptions returns a week of hourly data starting 2014-10-21.
func DefaultOptions() Options {
	return Options{
		StartHour:     14102100,
		Hours:         7 * 24,
		EventsPerHour: 200,
		Rate:          0.17,
		SpikeProb:     0.03,
		SpikeFactor:   2.5,
		Seed:          1,
	}
}

// Validate reports the first out-of-range option.
func (o Options) Validate() error {
	switch {
	case o.Hours < 1:
		return &model.InvalidConfigError{Field: "hours", Value: o.Hours, Reason: "must be at least 1"}
	case o.EventsPerHour < 1:
		return &model.InvalidConfigError{Field: "events per hour", Value: o.EventsPerHour, Reason: "must be at least 1"}
	case o.Rate < 0 || o.Rate > 1:
		return &model.InvalidConfigError{Field: "rate", Value: o.Rate, Reason: "must be within [0, 1]"}
	case o.SpikeProb < 0 || o.SpikeProb > 1:
		return &model.InvalidConfigError{Field: "spike probability", Value: o.SpikeProb, Reason: "must be within [0, 1]"}
	case o.SpikeFactor < 1:
		return &model.InvalidConfigError{Field: "spike factor", Value: o.SpikeFactor, Reason: "must be at least 1"}
	}
	if _, err := parseHour(o.StartHour); err != nil {
		return &model.InvalidConfigError{Field: "start hour", Value: o.StartHour, Reason: "must be a YYMMDDHH code"}
	}
	return nil
}

// Generator produces randomized click events.
type Generator struct {
	rnd *rand.Rand
}

// New returns a Generator with a fixed seed.
func New(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Write emits an id,click,hour CSV and returns the number of events written.
func (g *Generator) Write(w io.Writer, opts Options) (int64, error) {
	if err := opts.Validate(); err != nil {
		return 0, err
	}
	start, _ := parseHour(opts.StartHour)
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "click", "hour"}); err != nil {
		return 0, err
	}

	var written int64
	record := make([]string, 3)
	for h := 0; h < opts.Hours; h++ {
		ts := start.Add(time.Duration(h) * time.Hour)
		hour := ts.Format(hourLayout)
		rate := g.hourlyRate(opts, ts.Hour())
		for e := 0; e < opts.EventsPerHour; e++ {
			record[0] = strconv.FormatUint(g.rnd.Uint64(), 10)
			record[1] = "0"
			if g.rnd.Float64() < rate {
				record[1] = "1"
			}
			record[2] = hour
			if err := cw.Write(record); err != nil {
				return written, err
			}
			written++
		}
	}
	cw.Flush()
	return written, cw.Error()
}

// hourlyRate applies a daily cycle and the occasional spike or dip.
func (g *Generator) hourlyRate(opts Options, hourOfDay int) float64 {
	rate := opts.Rate * (1 + 0.25*math.Sin(2*math.Pi*float64(hourOfDay-6)/24))
	if g.rnd.Float64() < opts.SpikeProb {
		if g.rnd.Intn(2) == 0 {
			rate *= opts.SpikeFactor
		} else {
			rate /= opts.SpikeFactor
		}
	}
	return math.Min(math.Max(rate, 0), 1)
}

// WriteFile generates a dataset at path, gzip compressed when the path ends
// in .gz.
func WriteFile(path string, opts Options) (int64, error) {
	if err := opts.Validate(); err != nil {
		return 0, err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create sample dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create sample file: %w", err)
	}
	defer file.Close()

	buf := bufio.NewWriter(file)
	var out io.Writer = buf
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(buf)
		out = gz
	}
	n, err := New(opts.Seed).Write(out, opts)
	if err != nil {
		return n, fmt.Errorf("write sample: %w", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return n, fmt.Errorf("close gzip: %w", err)
		}
	}
	if err := buf.Flush(); err != nil {
		return n, fmt.Errorf("flush sample: %w", err)
	}
	return n, file.Close()
}

func parseHour(code int64) (time.Time, error) {
	return time.Parse(hourLayout, fmt.Sprintf("%08d", code))
}
