package model

import "fmt"

// MalformedInputError reports a raw row with a missing or invalid field.
// Row is 1-based and excludes the header.
type MalformedInputError struct {
	Row   int
	Field string
	Value string
	Err   error
}

func (e *MalformedInputError) Error() string {
	msg := fmt.Sprintf("malformed input at row %d", e.Row)
	if e.Field != "" {
		msg += fmt.Sprintf(": field %q", e.Field)
	}
	if e.Value != "" {
		msg += fmt.Sprintf(" value %q", e.Value)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// InvalidConfigError reports a parameter outside its recognized domain.
type InvalidConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// DataUnavailableError reports an aggregated store that is missing or unreadable.
type DataUnavailableError struct {
	Path string
	Err  error
}

func (e *DataUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("data unavailable: %s", e.Path)
	}
	return fmt.Sprintf("data unavailable: %s: %v", e.Path, e.Err)
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }
