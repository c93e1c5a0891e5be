package telemetry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrEmptyInverterID indicates a series built without an identity.
var ErrEmptyInverterID = errors.New("telemetry: empty inverter id")

// ErrUnorderedSamples indicates samples that violate the ascending,
// duplicate-free timestamp invariant.
var ErrUnorderedSamples = errors.New("telemetry: samples not strictly ascending by timestamp")

// SchemaError reports required columns missing from an uploaded table.
type SchemaError struct {
	Source  string
	Missing []string
}

func (e *SchemaError) Error() string {
	missing := append([]string(nil), e.Missing...)
	sort.Strings(missing)
	return fmt.Sprintf("telemetry: %s is missing columns: %s", e.Source, strings.Join(missing, ", "))
}

// ParseError reports a cell that could not be parsed as a timestamp or number.
type ParseError struct {
	Source string
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("telemetry: %s row %d column %q: cannot parse %q: %v", e.Source, e.Row, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DuplicateTimestampError reports a timestamp occurring more than once in one
// series. Duplicates are rejected rather than merged: silently merging would
// double-count energy in KPI aggregation.
type DuplicateTimestampError struct {
	Source    string
	Timestamp string
}

func (e *DuplicateTimestampError) Error() string {
	return fmt.Sprintf("telemetry: %s has duplicate timestamp %s", e.Source, e.Timestamp)
}

// Warning is a non-fatal finding attached to a validation or alignment step.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Warning codes.
const (
	WarnOutOfRange     = "out_of_range"
	WarnWeatherDropped = "weather_rows_dropped"
)
