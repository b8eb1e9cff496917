// Package retry runs fallible actions under a bounded-attempt, fixed-delay policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"binkeeper/internal/clock"
	"binkeeper/internal/logger"
	"binkeeper/internal/metrics"

	"github.com/rs/zerolog"
)

type Policy struct {
	MaxAttempts int           `yaml:"attempts" validate:"gte=1"`
	Delay       time.Duration `yaml:"delay" validate:"gte=0"`
}

// ExhaustedError is the only failure Do returns. Intermediate errors are logged, never returned.
type ExhaustedError struct {
	Op       string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: exhausted after %d attempt(s): %v", e.Op, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// IsExhausted reports whether err carries an ExhaustedError and returns it.
func IsExhausted(err error) (*ExhaustedError, bool) {
	var ex *ExhaustedError
	if errors.As(err, &ex) {
		return ex, true
	}
	return nil, false
}

type Executor struct {
	clk clock.Clock
	lg  zerolog.Logger
}

func NewExecutor(clk clock.Clock) *Executor {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Executor{
		clk: clk,
		lg:  logger.New("Retry"),
	}
}

func (e *Executor) Do(ctx context.Context, op string, p Policy, action func(ctx context.Context) error) error {
	_, err := Value(ctx, e, op, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, action(ctx)
	})
	return err
}

// Value is Do for actions that produce a result.
func Value[T any](ctx context.Context, e *Executor, op string, p Policy, action func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var last error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		v, err := action(ctx)
		if err == nil {
			if attempt > 1 {
				e.lg.Info().Str("op", op).Int("attempt", attempt).Msg("succeeded after retry")
			}
			return v, nil
		}
		last = err

		metrics.AttemptFailures.WithLabelValues(op).Inc()
		e.lg.Warn().Err(err).Str("op", op).Int("attempt", attempt).Int("max", maxAttempts).Msg("attempt failed")

		if attempt == maxAttempts {
			break
		}
		if err := e.clk.Sleep(ctx, p.Delay); err != nil {
			metrics.Exhaustions.WithLabelValues(op).Inc()
			return zero, &ExhaustedError{Op: op, Attempts: attempt, Last: errors.Join(last, err)}
		}
	}

	metrics.Exhaustions.WithLabelValues(op).Inc()
	e.lg.Error().Err(last).Str("op", op).Int("attempts", maxAttempts).Msg("retries exhausted")
	return zero, &ExhaustedError{Op: op, Attempts: maxAttempts, Last: last}
}
