package retry

import (
	"os"
	"strconv"
	"time"
)

// Config controls the backoff used when connecting to the journal database.
type Config struct {
	Enabled      bool
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// LoadConfig reads RETRY_* variables. Missing or unparsable values fall back
// to the defaults: enabled, 5 retries, 1s growing to 30s.
func LoadConfig() Config {
	return Config{
		Enabled:      envBool("RETRY_ENABLED", true),
		MaxRetries:   envInt("RETRY_MAX_RETRIES", 5),
		InitialDelay: envSeconds("RETRY_INITIAL_DELAY_SEC", time.Second),
		MaxDelay:     envSeconds("RETRY_MAX_DELAY_SEC", 30*time.Second),
	}
}

func envBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v >= 0 {
		return v
	}
	return def
}

func envSeconds(key string, def time.Duration) time.Duration {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return time.Duration(v) * time.Second
	}
	return def
}
