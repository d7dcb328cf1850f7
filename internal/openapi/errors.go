package openapi

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by the typed errors below through errors.Is.
var (
	ErrMissingInput      = errors.New("missing input document")
	ErrMalformedDocument = errors.New("malformed document")
	ErrWriteFailure      = errors.New("write failure")
)

// MissingInputError reports that the existing document could not be found.
type MissingInputError struct {
	Path  string
	Cause error
}

func (e *MissingInputError) Error() string {
	msg := "missing input document " + e.Path
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *MissingInputError) Unwrap() error { return e.Cause }

func (e *MissingInputError) Is(target error) bool { return target == ErrMissingInput }

// MalformedDocumentError reports a document that does not decode into the
// expected tree shape.
type MalformedDocumentError struct {
	// Source is the file path or name of the document.
	Source string
	// Field is the dotted path to the offending node, empty for the root.
	Field string
	// Line and Column are 1-based; zero when unknown.
	Line   int
	Column int
	// Message describes the problem.
	Message string
	// Cause is the underlying decode error, if any.
	Cause error
}

func (e *MalformedDocumentError) Error() string {
	msg := "malformed document"
	if e.Source != "" {
		msg += " " + e.Source
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" at line %d", e.Line)
		if e.Column > 0 {
			msg += fmt.Sprintf(", column %d", e.Column)
		}
	}
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *MalformedDocumentError) Unwrap() error { return e.Cause }

func (e *MalformedDocumentError) Is(target error) bool { return target == ErrMalformedDocument }

// WriteFailureError reports that the output document could not be persisted.
type WriteFailureError struct {
	Path  string
	Cause error
}

func (e *WriteFailureError) Error() string {
	msg := "write " + e.Path + " failed"
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *WriteFailureError) Unwrap() error { return e.Cause }

func (e *WriteFailureError) Is(target error) bool { return target == ErrWriteFailure }
