package utils

import (
	"errors"
	"fmt"
)

// AppError wraps an operation, human-facing message, and underlying error.
// Kind, when set, is a package sentinel matched by errors.Is alongside Err.
type AppError struct {
	Op   string
	Msg  string
	Kind error
	Err  error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// WrapKind builds an AppError whose chain matches both kind and cause under errors.Is.
func WrapKind(op string, kind, cause error) error {
	return &AppError{Op: op, Msg: kind.Error(), Kind: kind, Err: cause}
}

// OpOf returns the Op of the outermost AppError in err's chain, or "".
func OpOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Op
	}
	return ""
}
