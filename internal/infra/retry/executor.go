package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Operation is a unit of work the executor may invoke more than once.
type Operation[T any] func(ctx context.Context) (T, error)

// Attempt records one invocation of an Operation.
type Attempt struct {
	Index     int
	StartedAt time.Time
	Duration  time.Duration
	Outcome   Outcome
}

// Result is the outcome of a whole execution. Err is nil on success and one of
// the executor error types otherwise.
type Result[T any] struct {
	Value    T
	Attempts int
	Err      error
	History  []Attempt
}

// Unwrap returns the value and error, for callers that only need those.
func (r Result[T]) Unwrap() (T, error) {
	return r.Value, r.Err
}

// Observer receives attempt-level events. Implementations must be safe for
// concurrent use.
type Observer interface {
	OnAttempt(name string, a Attempt)
	OnRetry(name string, next int, delay time.Duration)
	OnFinish(name string, attempts int, err error)
}

type noopObserver struct{}

func (noopObserver) OnAttempt(string, Attempt)          {}
func (noopObserver) OnRetry(string, int, time.Duration) {}
func (noopObserver) OnFinish(string, int, error)        {}

// Executor runs operations under a Policy. It holds no per-execution state and
// may be shared between goroutines.
type Executor struct {
	name     string
	policy   Policy
	classify Classifier
	timeout  time.Duration
	observer Observer
	log      *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	clock    func() time.Time
}

// Option configures an Executor.
type Option func(e *Executor)

// WithName labels the executor in logs and metrics.
func WithName(name string) Option {
	return func(e *Executor) { e.name = name }
}

// WithClassifier overrides DefaultClassifier.
func WithClassifier(c Classifier) Option {
	return func(e *Executor) {
		if c != nil {
			e.classify = c
		}
	}
}

// WithTimeout bounds the whole execution, waits included. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// WithObserver registers an Observer.
func WithObserver(o Observer) Option {
	return func(e *Executor) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default at call time.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.log = l }
}

// WithSleep replaces the inter-attempt wait. The function must return early
// with a non-nil error when ctx is done.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) {
		if fn != nil {
			e.sleep = fn
		}
	}
}

// WithClock replaces time.Now for attempt timestamps.
func WithClock(fn func() time.Time) Option {
	return func(e *Executor) {
		if fn != nil {
			e.clock = fn
		}
	}
}

// New creates an Executor. Zero policy fields are filled from DefaultPolicy
// and MaxAttempts is never below 1.
func New(policy Policy, opts ...Option) *Executor {
	policy = policy.WithDefaults()
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	e := &Executor{
		name:     "default",
		policy:   policy,
		classify: DefaultClassifier,
		observer: noopObserver{},
		sleep:    sleepContext,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the executor label.
func (e *Executor) Name() string { return e.name }

// Policy returns the policy in effect.
func (e *Executor) Policy() Policy { return e.policy }

// Run executes fn and returns only its error.
func (e *Executor) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, e, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Do executes op and returns its value or the executor error.
func Do[T any](ctx context.Context, e *Executor, op Operation[T]) (T, error) {
	return Execute(ctx, e, op).Unwrap()
}

// Execute invokes op until it succeeds, fails terminally, exhausts the
// attempt budget, or ctx is done. Attempts are strictly sequential.
func Execute[T any](ctx context.Context, e *Executor, op Operation[T]) Result[T] {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var (
		res     Result[T]
		lastErr error
	)

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			res.Err = interrupted(ctx, attempt-1, lastErr)
			break
		}

		start := e.clock()
		value, err := op(ctx)
		out := e.outcome(err)

		a := Attempt{
			Index:     attempt,
			StartedAt: start,
			Duration:  e.clock().Sub(start),
			Outcome:   out,
		}
		res.Attempts = attempt
		res.History = append(res.History, a)
		e.observer.OnAttempt(e.name, a)

		if out.Kind == OutcomeSuccess {
			res.Value = value
			break
		}

		lastErr = err
		if ctx.Err() != nil {
			res.Err = interrupted(ctx, attempt, err)
			break
		}
		if out.Kind == OutcomeTerminal {
			res.Err = &TerminalError{Attempts: attempt, Err: err}
			break
		}
		if attempt >= e.policy.MaxAttempts {
			res.Err = &RetriesExhaustedError{Attempts: attempt, Err: err}
			break
		}

		delay := e.policy.Delay(attempt + 1)
		e.logger().Debug("Retrying operation",
			"op", e.name,
			"attempt", attempt,
			"max_attempts", e.policy.MaxAttempts,
			"reason", out.Reason,
			"delay", delay,
			"error", err,
		)
		e.observer.OnRetry(e.name, attempt+1, delay)

		if err := e.sleep(ctx, delay); err != nil {
			res.Err = interrupted(ctx, attempt, lastErr)
			break
		}
	}

	if res.Err != nil {
		e.logger().Debug("Operation failed", "op", e.name, "result", Describe(res.Err))
	}
	e.observer.OnFinish(e.name, res.Attempts, res.Err)
	return res
}

// outcome classifies err, falling back to DefaultClassifier when the
// configured classifier has no opinion. A nil error is always success and a
// non-nil error is never success.
func (e *Executor) outcome(err error) Outcome {
	if err == nil {
		return success()
	}
	out := e.classify(err)
	if out.Kind == OutcomeUnknown {
		out = DefaultClassifier(err)
	}
	if out.Kind == OutcomeSuccess {
		out = retryable("error", err)
	}
	out.Cause = err
	return out
}

func (e *Executor) logger() *slog.Logger {
	if e.log != nil {
		return e.log
	}
	return slog.Default()
}

// interrupted builds the error for a context that ended the execution.
func interrupted(ctx context.Context, attempts int, cause error) error {
	ctxErr := ctx.Err()
	if cause == nil {
		cause = ctxErr
	}
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		return &DeadlineExceededError{Attempts: attempts, Err: cause}
	}
	return &CancelledError{Attempts: attempts, Err: cause}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
