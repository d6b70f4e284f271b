package paymentfile

import (
	"errors"
	"fmt"
)

// Row-level error codes reported back to the caller per rejected row.
const (
	ErrCodeRequiredField      = "ERR_IMPORT_REQUIRED_FIELD"
	ErrCodeInvalidAmount      = "ERR_IMPORT_INVALID_AMOUNT"
	ErrCodeInvalidDate        = "ERR_IMPORT_INVALID_DATE"
	ErrCodeInvalidAccount     = "ERR_IMPORT_INVALID_ACCOUNT"
	ErrCodeInvalidCurrency    = "ERR_IMPORT_INVALID_CURRENCY"
	ErrCodeDuplicateReference = "ERR_IMPORT_DUPLICATE_REFERENCE"
)

// File-level errors that reject the whole upload.
var (
	ErrEmptyFile       = errors.New("payment file is empty")
	ErrInvalidEncoding = errors.New("payment file is not valid UTF-8")
	ErrMissingHeader   = errors.New("payment file is missing a header row")
	ErrNoDataRows      = errors.New("payment file contains no data rows")
)

// RowError describes why a single row was rejected.
type RowError struct {
	Line    int    `json:"line"`
	Column  string `json:"column"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// Error implements the error interface.
func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("line %d, column %q: %s", e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// maxReportedErrors caps how many row errors a single response carries;
// the total count is still reported.
const maxReportedErrors = 100

// ErrorCollection accumulates row errors up to maxReportedErrors.
type ErrorCollection struct {
	errors []RowError
	total  int
}

// Add records a row error.
func (ec *ErrorCollection) Add(err RowError) {
	ec.total++
	if len(ec.errors) < maxReportedErrors {
		ec.errors = append(ec.errors, err)
	}
}

// AddField records an error for a named column with the offending value.
func (ec *ErrorCollection) AddField(line int, column, code, message, value string) {
	ec.Add(RowError{Line: line, Column: column, Code: code, Message: message, Value: value})
}

// Errors returns the collected errors, at most maxReportedErrors of them.
func (ec *ErrorCollection) Errors() []RowError {
	return ec.errors
}

// Total returns the total number of errors, including uncollected ones.
func (ec *ErrorCollection) Total() int {
	return ec.total
}

// HasErrors reports whether any error was recorded.
func (ec *ErrorCollection) HasErrors() bool {
	return ec.total > 0
}

// Truncated reports whether some errors were dropped by the cap.
func (ec *ErrorCollection) Truncated() bool {
	return ec.total > maxReportedErrors
}
