// Package retry provides a bounded retry executor with exponential backoff,
// gated by error classification: non-retryable failures abort immediately
// without consuming the retry budget.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"coffee-queue/internal/sync/classify"
)

// Operation is a single retryable unit of work. Results are returned through
// closure capture; the executor only observes success or failure.
type Operation func(ctx context.Context) error

// Options control retry behavior for one Execute call.
type Options struct {
	// MaxRetries is the total attempt budget. Zero means exactly one attempt.
	MaxRetries int
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// ExponentialBackoff doubles the delay per attempt when set; otherwise
	// every retry waits BaseDelay.
	ExponentialBackoff bool
}

// DefaultOptions provides sensible defaults.
var DefaultOptions = Options{
	MaxRetries:         3,
	BaseDelay:          1 * time.Second,
	ExponentialBackoff: true,
}

// MaxDelay caps the backoff schedule.
const MaxDelay = 30 * time.Second

// jitterFraction is the maximum random addition to a delay, to avoid
// synchronized retry storms.
const jitterFraction = 0.1

// State is the observable progress of an in-flight or settled operation.
type State struct {
	IsLoading     bool
	Error         *classify.Error
	RetryCount    int
	LastAttemptAt time.Time
}

// Executor runs operations with bounded retries. It is safe for concurrent
// use; state reflects the most recent Execute call.
type Executor struct {
	online func() bool

	mu       sync.Mutex
	state    State
	lastOp   Operation
	lastOpts Options
}

// NewExecutor creates an executor. online reports connectivity for the
// classifier's offline check; nil means always online.
func NewExecutor(online func() bool) *Executor {
	if online == nil {
		online = func() bool { return true }
	}
	return &Executor{online: online}
}

// State returns a snapshot of the current operation state.
func (e *Executor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// ClearError resets the surfaced error without touching anything else.
func (e *Executor) ClearError() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Error = nil
}

// Execute runs op with the given options. Intermediate failures are
// swallowed and only observable via RetryCount/LastAttemptAt; the final
// error after exhaustion is classified. Permission and validation failures
// abort on the first attempt regardless of budget.
func (e *Executor) Execute(ctx context.Context, op Operation, opts Options) error {
	e.mu.Lock()
	e.lastOp = op
	e.lastOpts = opts
	e.state = State{IsLoading: true}
	e.mu.Unlock()

	err := e.run(ctx, op, opts)

	e.mu.Lock()
	e.state.IsLoading = false
	e.state.Error = nil
	if err != nil {
		e.state.Error = classify.Classify(err, !e.online())
	}
	e.mu.Unlock()

	if err != nil {
		return classify.Classify(err, !e.online())
	}
	return nil
}

// RetryLast re-invokes the operation of the most recent Execute call with
// its original options. It fails if nothing was executed yet.
func (e *Executor) RetryLast(ctx context.Context) error {
	e.mu.Lock()
	op := e.lastOp
	opts := e.lastOpts
	e.mu.Unlock()

	if op == nil {
		return fmt.Errorf("no operation to retry")
	}
	return e.Execute(ctx, op, opts)
}

func (e *Executor) run(ctx context.Context, op Operation, opts Options) error {
	attempts := opts.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr *classify.Error
	for attempt := 1; attempt <= attempts; attempt++ {
		e.mu.Lock()
		e.state.RetryCount = attempt - 1
		e.state.LastAttemptAt = time.Now()
		e.mu.Unlock()

		err := invoke(ctx, op)
		if err == nil {
			return nil
		}

		lastErr = classify.Classify(err, !e.online())
		if !lastErr.Retryable() {
			// Permission/validation/conflict: retrying cannot help.
			return lastErr
		}
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoffDelay(attempt, opts)):
		}
	}

	return lastErr
}

// invoke runs the operation, normalizing panics with non-error values into
// errors before classification.
func invoke(ctx context.Context, op Operation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("operation panic: %v", r)
			}
		}
	}()
	return op(ctx)
}

// backoffDelay computes the sleep before the next attempt. attempt is the
// 1-indexed number of failures so far.
func backoffDelay(attempt int, opts Options) time.Duration {
	delay := float64(opts.BaseDelay)
	if opts.ExponentialBackoff {
		delay = float64(opts.BaseDelay) * math.Pow(2, float64(attempt-1))
	}
	if delay > float64(MaxDelay) {
		delay = float64(MaxDelay)
	}
	// Jitter by up to 10%.
	delay += delay * jitterFraction * rand.Float64()
	return time.Duration(delay)
}
