// Package raw reads event-level records from the raw dataset.
package raw

import (
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/verte-zerg/ctrplot/internal/model"
)

const (
	fieldClick = "click"
	fieldHour  = "hour"

	// Positional fallback when the header does not name the columns.
	defaultClickCol = 1
	defaultHourCol  = 2
)

// Reader streams RawEvents from CSV input. The first record is the header.
type Reader struct {
	csv      *csv.Reader
	closers  []io.Closer
	clickCol int
	hourCol  int
	row      int
	started  bool
	eof      bool
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	return &Reader{csv: cr, clickCol: defaultClickCol, hourCol: defaultHourCol}
}

// Open opens a raw file. Files ending in .gz are decompressed.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(strings.ToLower(path), ".gz") {
		r := NewReader(file)
		r.closers = []io.Closer{file}
		return r, nil
	}
	gz, err := gzip.NewReader(file)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	r := NewReader(gz)
	r.closers = []io.Closer{gz, file}
	return r, nil
}

// Close releases the underlying file, if any.
func (r *Reader) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	r.closers = nil
	return first
}

// Row returns the number of data rows consumed so far.
func (r *Reader) Row() int {
	return r.row
}

// Next returns the next event, or io.EOF when the input is exhausted.
// Invalid rows fail with *model.MalformedInputError.
func (r *Reader) Next() (model.RawEvent, error) {
	if r.eof {
		return model.RawEvent{}, io.EOF
	}
	if !r.started {
		r.started = true
		if err := r.readHeader(); err != nil {
			return model.RawEvent{}, err
		}
		if r.eof {
			return model.RawEvent{}, io.EOF
		}
	}
	for {
		record, err := r.csv.Read()
		if errors.Is(err, io.EOF) {
			r.eof = true
			return model.RawEvent{}, io.EOF
		}
		r.row++
		if err != nil {
			return model.RawEvent{}, &model.MalformedInputError{Row: r.row, Err: err}
		}
		if isBlank(record) {
			continue
		}
		return r.parse(record)
	}
}

func (r *Reader) readHeader() error {
	header, err := r.csv.Read()
	if errors.Is(err, io.EOF) {
		r.eof = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	clickCol, hourCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case fieldClick:
			clickCol = i
		case fieldHour:
			hourCol = i
		}
	}
	if clickCol >= 0 && hourCol >= 0 {
		r.clickCol, r.hourCol = clickCol, hourCol
	}
	return nil
}

func (r *Reader) parse(record []string) (model.RawEvent, error) {
	need := r.clickCol
	if r.hourCol > need {
		need = r.hourCol
	}
	if len(record) <= need {
		field := fieldHour
		if len(record) <= r.clickCol {
			field = fieldClick
		}
		return model.RawEvent{}, &model.MalformedInputError{
			Row:   r.row,
			Field: field,
			Err:   fmt.Errorf("expected at least %d columns, got %d", need+1, len(record)),
		}
	}
	hourText := strings.TrimSpace(record[r.hourCol])
	hour, err := ParseHour(hourText)
	if err != nil {
		return model.RawEvent{}, &model.MalformedInputError{Row: r.row, Field: fieldHour, Value: hourText, Err: err}
	}
	clickText := strings.TrimSpace(record[r.clickCol])
	click, err := ParseClick(clickText)
	if err != nil {
		return model.RawEvent{}, &model.MalformedInputError{Row: r.row, Field: fieldClick, Value: clickText, Err: err}
	}
	return model.RawEvent{Hour: hour, Click: click}, nil
}

// ReadAll reads every event from r.
func ReadAll(r io.Reader) ([]model.RawEvent, error) {
	reader := NewReader(r)
	var events []model.RawEvent
	for {
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
}

// ParseHour parses a non-negative integer-like bucket key. Integral float
// text such as "14102100.0" is accepted.
func ParseHour(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		if v < 0 {
			return 0, fmt.Errorf("negative bucket key")
		}
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, fmt.Errorf("not an integer")
	}
	if f < 0 {
		return 0, fmt.Errorf("negative bucket key")
	}
	return int64(f), nil
}

// ParseClick parses a finite numeric metric.
func ParseClick(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	return v, nil
}

func isBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
