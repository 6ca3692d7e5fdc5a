package logging

import (
	"errors"
	"fmt"
	"strings"
)

// OperationError annotates an error with the pipeline stage it came from.
type OperationError struct {
	Operation string
	RequestID string
	ObjectID  string
	Err       error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	var attrs []string
	if e.RequestID != "" {
		attrs = append(attrs, "request_id="+e.RequestID)
	}
	if e.ObjectID != "" {
		attrs = append(attrs, "object_id="+e.ObjectID)
	}
	if len(attrs) == 0 {
		return fmt.Sprintf("%s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Operation, strings.Join(attrs, " "), e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOperationError wraps an error with the operation and request it belongs to.
func NewOperationError(operation, requestID string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, RequestID: requestID, Err: err}
}

// NewObjectError is NewOperationError for stages that already know the provider object.
func NewObjectError(operation, requestID, objectID string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, RequestID: requestID, ObjectID: objectID, Err: err}
}

// OperationOf reports the outermost operation recorded in err, if any.
func OperationOf(err error) string {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Operation
	}
	return ""
}
