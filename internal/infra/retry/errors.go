package retry

import (
	"context"
	"errors"
	"fmt"
)

// permanentError marks an error as non-retryable.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as terminal: the executor stops on it regardless of the
// remaining attempt budget. Permanent(nil) returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err, or any error it wraps, was marked Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// OperationError names the operation that failed. It is retryable unless
// wrapped with Permanent.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *OperationError) Unwrap() error { return e.Err }

// Op wraps err in an OperationError. Op(name, nil) returns nil.
func Op(name string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Op: name, Err: err}
}

// TerminalError is returned when an attempt fails with a non-retryable error.
type TerminalError struct {
	Attempts int
	Err      error
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("terminal failure after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *TerminalError) Unwrap() error { return e.Err }

// RetriesExhaustedError is returned when every attempt failed retryably.
type RetriesExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Err }

// CancelledError is returned when the caller cancels the execution.
type CancelledError struct {
	Attempts int
	Err      error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("cancelled after %d attempt(s): %v", e.Attempts, e.Err)
}

// Unwrap exposes both the last cause and context.Canceled.
func (e *CancelledError) Unwrap() []error {
	if errors.Is(e.Err, context.Canceled) {
		return []error{e.Err}
	}
	return []error{e.Err, context.Canceled}
}

// DeadlineExceededError is returned when the overall deadline expires.
type DeadlineExceededError struct {
	Attempts int
	Err      error
}

func (e *DeadlineExceededError) Error() string {
	return fmt.Sprintf("deadline exceeded after %d attempt(s): %v", e.Attempts, e.Err)
}

// Unwrap exposes both the last cause and context.DeadlineExceeded.
func (e *DeadlineExceededError) Unwrap() []error {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return []error{e.Err}
	}
	return []error{e.Err, context.DeadlineExceeded}
}

// AttemptsOf returns the number of attempts recorded on an executor error,
// or 0 if err did not come from an Executor.
func AttemptsOf(err error) int {
	var (
		te *TerminalError
		re *RetriesExhaustedError
		ce *CancelledError
		de *DeadlineExceededError
	)
	switch {
	case errors.As(err, &te):
		return te.Attempts
	case errors.As(err, &re):
		return re.Attempts
	case errors.As(err, &ce):
		return ce.Attempts
	case errors.As(err, &de):
		return de.Attempts
	}
	return 0
}
