package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"tvmdeploy/internal/errs"

	"github.com/jackc/pgx/v5/pgconn"
)

// ExponentialBackoffStrategy retries transient failures, doubling the wait
// after each one up to maxDelay. It makes at most maxRetries+1 calls.
type ExponentialBackoffStrategy struct {
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
	sleep        Sleeper
}

// NewExponentialBackoffStrategy creates a new ExponentialBackoffStrategy
func NewExponentialBackoffStrategy(maxRetries int, initialDelay, maxDelay time.Duration) *ExponentialBackoffStrategy {
	return &ExponentialBackoffStrategy{
		maxRetries:   maxRetries,
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
		sleep:        Sleep,
	}
}

// Execute runs operation until it succeeds, fails permanently or the retry
// budget is spent.
func (s *ExponentialBackoffStrategy) Execute(ctx context.Context, operation Operation) error {
	calls := s.maxRetries + 1
	var err error

	for attempt := 1; attempt <= calls; attempt++ {
		if err = operation(); err == nil {
			if attempt > 1 {
				slog.Info("Recovered after transient failures", "attempt", attempt, "max_attempts", calls)
			}
			return nil
		}

		if !isRecoverableError(err) {
			slog.Error("Permanent failure, not retrying", "attempt", attempt, "error", err)
			return err
		}
		if attempt == calls {
			break
		}

		wait := s.delay(attempt)
		slog.Warn("Transient failure, backing off",
			"attempt", attempt,
			"max_attempts", calls,
			"retry_in", wait,
			"error", err)

		if serr := s.sleep(ctx, wait); serr != nil {
			return fmt.Errorf("context cancelled during retry: %w", serr)
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", calls, err)
}

// delay is the wait after the given failed attempt, starting at 1.
func (s *ExponentialBackoffStrategy) delay(attempt int) time.Duration {
	d := s.initialDelay
	for i := 1; i < attempt && d < s.maxDelay; i++ {
		d *= 2
	}
	return min(d, s.maxDelay)
}

// Name returns the strategy name
func (s *ExponentialBackoffStrategy) Name() string {
	return "ExponentialBackoff"
}

// Postgres SQLSTATEs worth waiting out while the server comes up.
var transientSQLStates = map[string]bool{
	"57P03": true, // cannot_connect_now
	"53300": true, // too_many_connections
	"08006": true, // connection_failure
	"08001": true, // sqlclient_unable_to_establish_sqlconnection
}

var transientMessages = []string{
	"connection reset by peer",
	"connection refused",
	"timeout",
	"temporary failure",
	"network is unreachable",
	"broken pipe",
	"eof",
	"no such host",
	"dial tcp",
	"the database system is starting up",
	"too many clients",
}

// isRecoverableError reports whether err is transient: a network-kind
// failure, a network timeout, a transient Postgres state or a known
// transient message.
func isRecoverableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errs.ErrNetwork) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return transientSQLStates[pgErr.Code]
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range transientMessages {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
