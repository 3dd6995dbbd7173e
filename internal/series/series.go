// Package series reads and writes the aggregated hourly series file.
package series

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/verte-zerg/ctrplot/internal/model"
)

const (
	columnClick = "click"
	columnDate  = "date"
)

// Write replaces the file at path with the given points. The file is staged
// next to its destination and renamed into place, so a failed write leaves
// the previous file untouched.
func Write(path string, points []model.AggregatedPoint) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create store dir: %w", err)
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".series-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp store: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	writer := bufio.NewWriter(tmpFile)
	if err := Encode(writer, points); err != nil {
		return err
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush store: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to write store: %w", err)
	}
	return nil
}

// Encode writes points as CSV with a click,date header.
func Encode(w io.Writer, points []model.AggregatedPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{columnClick, columnDate}); err != nil {
		return fmt.Errorf("failed to write store header: %w", err)
	}
	for _, p := range points {
		if err := cw.Write([]string{FormatFloat(p.Click), p.Date}); err != nil {
			return fmt.Errorf("failed to write store row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write store: %w", err)
	}
	return nil
}

// Read loads the series at path. Any failure, including a truncated or
// partially written file, is reported as *model.DataUnavailableError.
func Read(path string) ([]model.AggregatedPoint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &model.DataUnavailableError{Path: path, Err: err}
	}
	defer func() {
		_ = file.Close()
	}()
	points, err := Decode(file)
	if err != nil {
		return nil, &model.DataUnavailableError{Path: path, Err: err}
	}
	return points, nil
}

// Decode parses CSV produced by Encode. Row order is preserved.
func Decode(r io.Reader) ([]model.AggregatedPoint, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("store is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	clickCol, dateCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case columnClick:
			clickCol = i
		case columnDate:
			dateCol = i
		}
	}
	if clickCol < 0 || dateCol < 0 {
		return nil, fmt.Errorf("unexpected header %q", strings.Join(header, ","))
	}

	var points []model.AggregatedPoint
	for row := 1; ; row++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return points, nil
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		if len(record) != len(header) {
			return nil, fmt.Errorf("row %d: expected %d fields, got %d", row, len(header), len(record))
		}
		click, err := strconv.ParseFloat(strings.TrimSpace(record[clickCol]), 64)
		if err != nil || math.IsNaN(click) || math.IsInf(click, 0) {
			return nil, fmt.Errorf("row %d: invalid click %q", row, record[clickCol])
		}
		date := strings.TrimSpace(record[dateCol])
		if date == "" {
			return nil, fmt.Errorf("row %d: empty date", row)
		}
		points = append(points, model.AggregatedPoint{Date: date, Click: click})
	}
}

// FormatFloat renders v in shortest round-trip form, keeping a ".0" suffix
// on integral values.
func FormatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if strings.ContainsAny(s, ".eEnN") {
		return s
	}
	return s + ".0"
}
