package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"tvmdeploy/internal/errs"

	"github.com/jackc/pgx/v5/pgconn"
)

// recordingSleeper records requested waits without sleeping.
type recordingSleeper struct {
	waits []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.waits = append(r.waits, d)
	return nil
}

func newTestBackoff(maxRetries int, rec *recordingSleeper) *ExponentialBackoffStrategy {
	s := NewExponentialBackoffStrategy(maxRetries, 10*time.Millisecond, 40*time.Millisecond)
	s.sleep = rec.sleep
	return s
}

func TestExponentialBackoffStrategy_Success(t *testing.T) {
	rec := &recordingSleeper{}
	strategy := newTestBackoff(3, rec)

	err := strategy.Execute(context.Background(), func() error {
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if len(rec.waits) != 0 {
		t.Errorf("Expected no waits, got: %v", rec.waits)
	}
}

func TestExponentialBackoffStrategy_SuccessAfterRetries(t *testing.T) {
	rec := &recordingSleeper{}
	strategy := newTestBackoff(5, rec)

	attempts := 0
	err := strategy.Execute(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("connection reset by peer")
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error after retries, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts)
	}
}

func TestExponentialBackoffStrategy_NonRecoverableError(t *testing.T) {
	strategy := newTestBackoff(5, &recordingSleeper{})

	attempts := 0
	err := strategy.Execute(context.Background(), func() error {
		attempts++
		return errors.New("invalid data")
	})

	if err == nil {
		t.Error("Expected error for non-recoverable failure")
	}
	if attempts != 1 {
		t.Errorf("Expected only 1 attempt for non-recoverable error, got: %d", attempts)
	}
}

func TestExponentialBackoffStrategy_MaxRetriesExceeded(t *testing.T) {
	rec := &recordingSleeper{}
	strategy := newTestBackoff(4, rec)

	attempts := 0
	err := strategy.Execute(context.Background(), func() error {
		attempts++
		return errors.New("connection refused")
	})

	if err == nil {
		t.Error("Expected error after max retries exceeded")
	}
	if attempts != 5 {
		t.Errorf("Expected 5 attempts, got: %d", attempts)
	}

	expected := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond, 40 * time.Millisecond}
	if fmt.Sprint(rec.waits) != fmt.Sprint(expected) {
		t.Errorf("Expected waits %v, got: %v", expected, rec.waits)
	}
}

func TestExponentialBackoffStrategy_ContextCancellation(t *testing.T) {
	strategy := NewExponentialBackoffStrategy(10, time.Second, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := strategy.Execute(ctx, func() error {
		attempts++
		return errors.New("timeout")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context cancellation, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestIsRecoverableError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection reset", errors.New("connection reset by peer"), true},
		{"timeout", errors.New("i/o timeout"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"connection refused", errors.New("connection refused"), true},
		{"postgres starting", errors.New("FATAL: the database system is starting up"), true},
		{"network kind", errs.Newf(errs.ErrNetwork, "net.query", "bridge unavailable"), true},
		{"postgres cannot connect now", &pgconn.PgError{Code: "57P03", Message: "starting"}, true},
		{"postgres syntax error", &pgconn.PgError{Code: "42601", Message: "syntax error"}, false},
		{"invalid data", errors.New("invalid data format"), false},
		{"permission denied", errors.New("permission denied"), false},
		{"encoding kind", errs.Newf(errs.ErrEncoding, "abi.encode_message", "bad input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isRecoverableError(tt.err)
			if result != tt.expected {
				t.Errorf("isRecoverableError(%v) = %v, expected %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestNewStrategy(t *testing.T) {
	if name := NewStrategy(Config{Enabled: false}).Name(); name != "NoRetry" {
		t.Errorf("Expected NoRetry, got: %s", name)
	}
	if name := NewStrategy(Config{Enabled: true, MaxRetries: 1}).Name(); name != "ExponentialBackoff" {
		t.Errorf("Expected ExponentialBackoff, got: %s", name)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("RETRY_ENABLED", "false")
	t.Setenv("RETRY_MAX_RETRIES", "7")
	t.Setenv("RETRY_INITIAL_DELAY_SEC", "")
	t.Setenv("RETRY_MAX_DELAY_SEC", "not-a-number")

	cfg := LoadConfig()
	if cfg.Enabled {
		t.Error("Expected retry disabled")
	}
	if cfg.MaxRetries != 7 {
		t.Errorf("Expected 7 retries, got: %d", cfg.MaxRetries)
	}
	if cfg.InitialDelay != time.Second {
		t.Errorf("Expected default initial delay, got: %v", cfg.InitialDelay)
	}
	if cfg.MaxDelay != 30*time.Second {
		t.Errorf("Expected default max delay, got: %v", cfg.MaxDelay)
	}
}
