package model

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"testing"
)

func TestMalformedInputErrorMessage(t *testing.T) {
	err := &MalformedInputError{Row: 3, Field: "hour", Value: "x", Err: io.ErrUnexpectedEOF}
	msg := err.Error()
	for _, want := range []string{"row 3", `"hour"`, `"x"`, io.ErrUnexpectedEOF.Error()} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in %q", want, msg)
		}
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected wrapped cause")
	}
}

func TestErrorsAsThroughWrapping(t *testing.T) {
	base := &DataUnavailableError{Path: "ctr.csv", Err: io.EOF}
	wrapped := fmt.Errorf("load series: %w", base)
	var target *DataUnavailableError
	if !errors.As(wrapped, &target) {
		t.Fatalf("expected DataUnavailableError")
	}
	if target.Path != "ctr.csv" {
		t.Fatalf("unexpected path %q", target.Path)
	}
}

func TestNullFloat(t *testing.T) {
	if Float(math.NaN()).Valid {
		t.Fatalf("NaN must be undefined")
	}
	if Float(math.Inf(1)).Valid {
		t.Fatalf("Inf must be undefined")
	}
	b, err := Float(0.5).MarshalJSON()
	if err != nil || string(b) != "0.5" {
		t.Fatalf("unexpected json %q (%v)", b, err)
	}
	b, err = Null.MarshalJSON()
	if err != nil || string(b) != "null" {
		t.Fatalf("unexpected json %q (%v)", b, err)
	}
}
