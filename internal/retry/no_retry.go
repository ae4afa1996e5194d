package retry

import "context"

// NoRetryStrategy calls the operation exactly once. It is used when
// RETRY_ENABLED=false.
type NoRetryStrategy struct{}

func NewNoRetryStrategy() *NoRetryStrategy {
	return &NoRetryStrategy{}
}

func (NoRetryStrategy) Execute(_ context.Context, operation Operation) error {
	return operation()
}

func (NoRetryStrategy) Name() string { return "NoRetry" }
