package retry

import (
	"errors"
	"log/slog"
)

// FailureKind distinguishes how an execution ended.
type FailureKind string

const (
	KindSuccess   FailureKind = "success"
	KindTerminal  FailureKind = "terminal"
	KindExhausted FailureKind = "exhausted"
	KindCancelled FailureKind = "cancelled"
	KindDeadline  FailureKind = "deadline"
	KindUnknown   FailureKind = "unknown" // error did not come from an Executor
)

// Report summarises an execution error for logs and metrics.
type Report struct {
	Kind     FailureKind
	Attempts int
	Cause    error
}

// FailedFast reports whether the execution stopped on its first attempt
// because the failure was terminal.
func (r Report) FailedFast() bool {
	return r.Kind == KindTerminal && r.Attempts == 1
}

// LogValue implements slog.LogValuer.
func (r Report) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("kind", string(r.Kind)),
		slog.Int("attempts", r.Attempts),
	}
	if r.Cause != nil {
		attrs = append(attrs, slog.String("cause", r.Cause.Error()))
	}
	return slog.GroupValue(attrs...)
}

// Describe classifies an error returned by Do, Run or Execute.
func Describe(err error) Report {
	if err == nil {
		return Report{Kind: KindSuccess}
	}

	var (
		te *TerminalError
		re *RetriesExhaustedError
		ce *CancelledError
		de *DeadlineExceededError
	)
	switch {
	case errors.As(err, &te):
		return Report{Kind: KindTerminal, Attempts: te.Attempts, Cause: te.Err}
	case errors.As(err, &re):
		return Report{Kind: KindExhausted, Attempts: re.Attempts, Cause: re.Err}
	case errors.As(err, &ce):
		return Report{Kind: KindCancelled, Attempts: ce.Attempts, Cause: ce.Err}
	case errors.As(err, &de):
		return Report{Kind: KindDeadline, Attempts: de.Attempts, Cause: de.Err}
	}
	return Report{Kind: KindUnknown, Cause: err}
}
