// Package aggregate turns raw click events into the hourly series.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/verte-zerg/ctrplot/internal/model"
	"github.com/verte-zerg/ctrplot/internal/raw"
	"github.com/verte-zerg/ctrplot/internal/series"
	"github.com/verte-zerg/ctrplot/internal/store"
)

const defaultBatchSize = 50000

// HourToDate converts a YYMMDDHH bucket key into "20YY-M-DTHH". Month and day
// are not validated. Keys are non-negative; readers reject negative hours.
func HourToDate(hour int64) string {
	year := hour / 1000000
	month := (hour % 1000000) / 10000
	day := (hour % 10000) / 100
	hh := hour % 100
	return fmt.Sprintf("20%d-%d-%dT%02d", year, month, day, hh)
}

// Aggregate groups events by hour and averages their clicks. The result is
// ordered by ascending bucket key.
func Aggregate(ctx context.Context, events []model.RawEvent) ([]model.AggregatedPoint, error) {
	st, err := store.Open(store.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open staging store: %w", err)
	}
	defer func() {
		_ = st.Close()
	}()
	src := &sliceSource{events: events}
	if _, err := stageEvents(ctx, st, src, defaultBatchSize); err != nil {
		return nil, err
	}
	points, _, err := groupPoints(ctx, st)
	return points, err
}

// ConvertOptions configures a file-to-file aggregation run.
type ConvertOptions struct {
	InputPath  string
	OutputPath string
	// StagingDir holds the temporary staging database. Defaults to os.TempDir.
	StagingDir string
	BatchSize  int
	Logger     *zap.Logger
}

// ConvertResult summarizes a completed run.
type ConvertResult struct {
	InputPath  string
	OutputPath string
	Events     int64
	Points     int
}

// Convert reads the raw file, aggregates it and writes the series file. The
// output is written only after the whole input was read and grouped.
func Convert(ctx context.Context, opts ConvertOptions) (ConvertResult, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.InputPath == "" {
		return ConvertResult{}, fmt.Errorf("input path is empty")
	}
	if opts.OutputPath == "" {
		return ConvertResult{}, fmt.Errorf("output path is empty")
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	reader, err := raw.Open(opts.InputPath)
	if err != nil {
		return ConvertResult{}, fmt.Errorf("failed to open input: %w", err)
	}
	defer func() {
		if cerr := reader.Close(); cerr != nil {
			log.Warn("failed to close input", zap.Error(cerr))
		}
	}()

	stagingDir := opts.StagingDir
	if stagingDir == "" {
		stagingDir = os.TempDir()
	}
	tmp, err := os.MkdirTemp(stagingDir, "ctrplot-staging-*")
	if err != nil {
		return ConvertResult{}, fmt.Errorf("failed to create staging dir: %w", err)
	}
	defer func() {
		if rerr := os.RemoveAll(tmp); rerr != nil {
			log.Warn("failed to remove staging dir", zap.String("dir", tmp), zap.Error(rerr))
		}
	}()
	st, err := store.Open(filepath.Join(tmp, "staging.db"))
	if err != nil {
		return ConvertResult{}, fmt.Errorf("failed to open staging store: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			log.Warn("failed to close staging store", zap.Error(cerr))
		}
	}()

	events, err := stageEvents(ctx, st, reader, batchSize)
	if err != nil {
		return ConvertResult{}, err
	}
	staged, err := st.Count(ctx)
	if err != nil {
		return ConvertResult{}, fmt.Errorf("failed to count staged events: %w", err)
	}
	log.Debug("staged raw events",
		zap.Int("rows", reader.Row()),
		zap.Int64("events", events),
		zap.Int64("staged", staged),
	)

	points, grouped, err := groupPoints(ctx, st)
	if err != nil {
		return ConvertResult{}, err
	}
	log.Debug("grouped hourly buckets", zap.Int("buckets", len(points)), zap.Int64("events", grouped))
	if err := ctx.Err(); err != nil {
		return ConvertResult{}, err
	}
	if err := series.Write(opts.OutputPath, points); err != nil {
		return ConvertResult{}, err
	}
	log.Debug("wrote series", zap.String("path", opts.OutputPath), zap.Int("points", len(points)))
	return ConvertResult{
		InputPath:  opts.InputPath,
		OutputPath: opts.OutputPath,
		Events:     events,
		Points:     len(points),
	}, nil
}

type eventSource interface {
	Next() (model.RawEvent, error)
}

type sliceSource struct {
	events []model.RawEvent
	pos    int
}

// Next applies the checks raw.Reader applies to file rows. Rows count from 1.
func (s *sliceSource) Next() (model.RawEvent, error) {
	if s.pos >= len(s.events) {
		return model.RawEvent{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	if ev.Hour < 0 {
		return model.RawEvent{}, &model.MalformedInputError{
			Row:   s.pos,
			Field: "hour",
			Value: strconv.FormatInt(ev.Hour, 10),
			Err:   errors.New("negative bucket key"),
		}
	}
	if math.IsNaN(ev.Click) || math.IsInf(ev.Click, 0) {
		return model.RawEvent{}, &model.MalformedInputError{
			Row:   s.pos,
			Field: "click",
			Value: strconv.FormatFloat(ev.Click, 'g', -1, 64),
			Err:   errors.New("not a finite number"),
		}
	}
	return ev, nil
}

func stageEvents(ctx context.Context, st *store.Store, src eventSource, batchSize int) (int64, error) {
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		batch, err := st.Begin(ctx)
		if err != nil {
			return total, fmt.Errorf("failed to begin staging batch: %w", err)
		}
		done := false
		for batch.Len() < batchSize {
			ev, err := src.Next()
			if errors.Is(err, io.EOF) {
				done = true
				break
			}
			if err != nil {
				_ = batch.Rollback()
				return total, err
			}
			if err := batch.Add(ctx, ev.Hour, ev.Click); err != nil {
				_ = batch.Rollback()
				return total, fmt.Errorf("failed to stage event: %w", err)
			}
		}
		n := batch.Len()
		if err := batch.Commit(); err != nil {
			return total, fmt.Errorf("failed to commit staging batch: %w", err)
		}
		total += int64(n)
		if done {
			return total, nil
		}
	}
}

// groupPoints returns the hourly points and the number of events they cover.
// A bucket mean that overflows is malformed.
func groupPoints(ctx context.Context, st *store.Store) ([]model.AggregatedPoint, int64, error) {
	buckets, err := st.HourlyMeans(ctx)
	if err != nil {
		return nil, 0, err
	}
	points := make([]model.AggregatedPoint, 0, len(buckets))
	var events int64
	for _, b := range buckets {
		if math.IsNaN(b.Click) || math.IsInf(b.Click, 0) {
			return nil, 0, &model.MalformedInputError{
				Field: "click",
				Value: strconv.FormatFloat(b.Click, 'g', -1, 64),
				Err:   fmt.Errorf("mean of hour %d is not finite", b.Hour),
			}
		}
		points = append(points, model.AggregatedPoint{
			Date:  HourToDate(b.Hour),
			Click: b.Click,
		})
		events += b.Count
	}
	return points, events, nil
}
