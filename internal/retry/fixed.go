package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrPending is returned by an operation whose condition does not hold yet.
// FixedIntervalStrategy retries it; any other error ends the run.
var ErrPending = errors.New("condition not met yet")

// ErrExhausted is returned once every attempt came back pending.
var ErrExhausted = errors.New("attempts exhausted")

// FixedIntervalStrategy runs an operation up to maxAttempts times, waiting
// interval after every pending outcome. A run that never succeeds therefore
// makes exactly maxAttempts calls and waits maxAttempts*interval in total.
type FixedIntervalStrategy struct {
	maxAttempts int
	interval    time.Duration
	sleep       Sleeper
}

// NewFixedIntervalStrategy creates a FixedIntervalStrategy. A nil sleep uses
// a real timer.
func NewFixedIntervalStrategy(maxAttempts int, interval time.Duration, sleep Sleeper) *FixedIntervalStrategy {
	if sleep == nil {
		sleep = Sleep
	}
	return &FixedIntervalStrategy{
		maxAttempts: maxAttempts,
		interval:    interval,
		sleep:       sleep,
	}
}

// Execute polls operation until it succeeds, fails with a non-pending error
// or runs out of attempts.
func (s *FixedIntervalStrategy) Execute(ctx context.Context, operation Operation) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrPending) {
			return err
		}

		slog.Debug("Condition not met, polling again",
			"attempt", attempt,
			"max_attempts", s.maxAttempts,
			"interval", s.interval)

		if err := s.sleep(ctx, s.interval); err != nil {
			return fmt.Errorf("context cancelled while polling: %w", err)
		}
	}
	return fmt.Errorf("%w after %d attempts", ErrExhausted, s.maxAttempts)
}

// Name returns the strategy name
func (s *FixedIntervalStrategy) Name() string {
	return "FixedInterval"
}
