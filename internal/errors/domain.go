package errors

import (
	"errors"
	"fmt"
)

// ParseError reports a malformed or truncated instrument CSV file.
// Line is 1-based; zero means the error is not tied to a line.
type ParseError struct {
	Path   string
	Line   int
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse %s: line %d: %s", e.Path, e.Line, msg)
	}
	return fmt.Sprintf("parse %s: %s", e.Path, msg)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a parse error for a file and line
func NewParseError(path string, line int, reason string, cause error) *ParseError {
	return &ParseError{Path: path, Line: line, Reason: reason, Err: cause}
}

// DuplicateMetricError is returned when a metric name is registered twice.
// At startup this is a configuration bug and aborts the application.
type DuplicateMetricError struct {
	Name string
}

func (e *DuplicateMetricError) Error() string {
	return fmt.Sprintf("metric %q already registered", e.Name)
}

// MetricComputeError attributes an evaluation failure to a metric
type MetricComputeError struct {
	Metric string
	Err    error
}

func (e *MetricComputeError) Error() string {
	return fmt.Sprintf("metric %s: %v", e.Metric, e.Err)
}

func (e *MetricComputeError) Unwrap() error {
	return e.Err
}

// PersistenceError reports an output file that could not be read or written
type PersistenceError struct {
	Path string
	Op   string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError wraps an I/O failure on an output file
func NewPersistenceError(op, path string, cause error) *PersistenceError {
	return &PersistenceError{Path: path, Op: op, Err: cause}
}

// IsPersistenceError reports whether err is or wraps a PersistenceError
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// IsDuplicateMetric reports whether err is or wraps a DuplicateMetricError
func IsDuplicateMetric(err error) bool {
	var de *DuplicateMetricError
	return errors.As(err, &de)
}
