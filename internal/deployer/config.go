package deployer

import (
	"time"

	"tvmdeploy/internal/errs"
	"tvmdeploy/internal/message"
)

const (
	DefaultFundingAmount uint64 = 1_000_000_000
	DefaultMaxAttempts          = 30
	DefaultPollInterval         = 2 * time.Second
)

// Config bounds the funding wait and sets the amount requested from the
// funding source.
type Config struct {
	FundingAmount uint64        // nanotokens requested from the funding source
	MaxAttempts   int           // account observations before giving up
	PollInterval  time.Duration // wait after every unsuccessful observation
	Workchain     int32
}

// DefaultConfig returns the stock funding bounds.
func DefaultConfig() Config {
	return Config{
		FundingAmount: DefaultFundingAmount,
		MaxAttempts:   DefaultMaxAttempts,
		PollInterval:  DefaultPollInterval,
	}
}

// Validate checks the bounds are usable.
func (c Config) Validate() error {
	switch {
	case c.FundingAmount == 0:
		return errs.Newf(errs.ErrConfig, "validate deployer config", "funding amount must be positive")
	case c.MaxAttempts < 1:
		return errs.Newf(errs.ErrConfig, "validate deployer config", "max attempts must be at least 1, got %d", c.MaxAttempts)
	case c.PollInterval < 0:
		return errs.Newf(errs.ErrConfig, "validate deployer config", "poll interval must not be negative")
	case c.Workchain < message.MinWorkchain || c.Workchain > message.MaxWorkchain:
		return errs.Newf(errs.ErrConfig, "validate deployer config", "workchain %d out of range", c.Workchain)
	}
	return nil
}
