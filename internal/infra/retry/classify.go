package retry

import (
	"context"
	"errors"
	"strconv"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// OutcomeKind describes the executor's decision about an attempt result.
type OutcomeKind int

const (
	OutcomeUnknown OutcomeKind = iota // Classifier has no opinion (see Chain)
	OutcomeSuccess
	OutcomeRetryable
	OutcomeTerminal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Outcome is the classification of a single attempt.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
	Cause  error
}

// Classifier decides the outcome of one attempt from the error it returned.
// Classifiers must be pure.
type Classifier func(err error) Outcome

func success() Outcome { return Outcome{Kind: OutcomeSuccess, Reason: "success"} }

func retryable(reason string, err error) Outcome {
	return Outcome{Kind: OutcomeRetryable, Reason: reason, Cause: err}
}

func terminal(reason string, err error) Outcome {
	return Outcome{Kind: OutcomeTerminal, Reason: reason, Cause: err}
}

// DefaultClassifier treats every error as retryable unless it was marked with
// Permanent, reports Retryable() == false, or is a caller cancellation.
func DefaultClassifier(err error) Outcome {
	if err == nil {
		return success()
	}
	if IsPermanent(err) {
		return terminal("permanent", err)
	}
	var r interface{ Retryable() bool }
	if errors.As(err, &r) && !r.Retryable() {
		return terminal("non_retryable", err)
	}
	if errors.Is(err, context.Canceled) {
		return terminal("canceled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		// Per-attempt timeouts are transient; the overall deadline is
		// enforced by the executor independently.
		return retryable("attempt_timeout", err)
	}
	return retryable("error", err)
}

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// HTTPClassifier treats 408, 425, 429 and 5xx as transient and every other
// 4xx as terminal. Errors without a status code fall back to DefaultClassifier.
func HTTPClassifier(err error) Outcome {
	if err == nil {
		return success()
	}
	if IsPermanent(err) {
		return terminal("permanent", err)
	}

	var sc StatusCoder
	if !errors.As(err, &sc) {
		return DefaultClassifier(err)
	}

	code := sc.StatusCode()
	reason := "http_" + strconv.Itoa(code)
	switch {
	case code == 408 || code == 425 || code == 429:
		return retryable(reason, err)
	case code >= 500 && code <= 599:
		return retryable(reason, err)
	case code >= 400 && code <= 499:
		return terminal(reason, err)
	default:
		return DefaultClassifier(err)
	}
}

// GRPCClassifier classifies errors carrying a gRPC status.
func GRPCClassifier(err error) Outcome {
	if err == nil {
		return success()
	}
	if IsPermanent(err) {
		return terminal("permanent", err)
	}

	st, ok := status.FromError(err)
	if !ok {
		return DefaultClassifier(err)
	}

	reason := "grpc_" + st.Code().String()

	// Error details override the code where the server is explicit.
	for _, d := range st.Details() {
		switch d.(type) {
		case *errdetails.BadRequest, *errdetails.PreconditionFailure:
			return terminal(reason, err)
		case *errdetails.QuotaFailure:
			return retryable(reason, err)
		}
	}

	switch st.Code() {
	case codes.OK:
		return success()
	case codes.Unavailable, codes.ResourceExhausted, codes.Aborted,
		codes.DeadlineExceeded, codes.Internal, codes.Unknown:
		return retryable(reason, err)
	default:
		return terminal(reason, err)
	}
}

// Chain returns a classifier that asks each classifier in order and uses the
// first decision other than OutcomeUnknown. DefaultClassifier decides if none do.
func Chain(classifiers ...Classifier) Classifier {
	return func(err error) Outcome {
		for _, c := range classifiers {
			if c == nil {
				continue
			}
			if out := c(err); out.Kind != OutcomeUnknown {
				return out
			}
		}
		return DefaultClassifier(err)
	}
}
