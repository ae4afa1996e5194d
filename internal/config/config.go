package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tvmdeploy/internal/contract"
	"tvmdeploy/internal/deployer"
	"tvmdeploy/internal/errs"
	"tvmdeploy/internal/message"
	"tvmdeploy/internal/retry"
)

const (
	DefaultSDKURL       = "http://localhost:8650/rpc"
	DefaultEndpoints    = "https://ackinacki-testnet.tvmlabs.dev"
	DefaultContractName = "helloWorld"
)

type Config struct {
	// JSON-RPC bridge exposing the TVM SDK
	SDKURL string

	// Network endpoints handed to the SDK context
	Endpoints []string

	// Funding source ( giver ) address and key file
	GiverAddress  string
	GiverKeysPath string

	// Code image of the contract to deploy and its display name
	ContractCodePath string
	ContractName     string

	// Funding amount, poll bounds and workchain
	Deployer deployer.Config

	// What to do with a call on a contract whose keys are not held
	UnsignedCalls contract.UnsignedPolicy

	// Optional transfer after deployment ( 0 disables it )
	SendValueAmount uint64

	// Postgres journal ( empty uses an in-memory journal )
	DatabaseURL string

	// Status server port ( 0 disables it )
	MetricsPort int

	LogLevel string

	// Backoff for the journal connection
	Retry retry.Config
}

// Load reads the configuration from the environment. Values that are
// present but cannot be parsed are reported, naming the variable.
func Load() (*Config, error) {
	p := &parser{}
	workchain := p.intVar("WORKCHAIN_ID", 0)
	if workchain < message.MinWorkchain || workchain > message.MaxWorkchain {
		p.fail("WORKCHAIN_ID", strconv.Itoa(workchain))
		workchain = 0
	}

	cfg := &Config{
		SDKURL:           getEnv("TVM_SDK_URL", DefaultSDKURL),
		Endpoints:        splitList(getEnv("NETWORK_ENDPOINTS", DefaultEndpoints)),
		GiverAddress:     os.Getenv("GIVER_ADDRESS"),
		GiverKeysPath:    os.Getenv("GIVER_KEYS"),
		ContractCodePath: os.Getenv("CONTRACT_CODE"),
		ContractName:     getEnv("CONTRACT_NAME", DefaultContractName),
		Deployer: deployer.Config{
			FundingAmount: p.uint64Var("FUNDING_AMOUNT", deployer.DefaultFundingAmount),
			MaxAttempts:   p.intVar("FUNDING_MAX_ATTEMPTS", deployer.DefaultMaxAttempts),
			PollInterval:  time.Duration(p.intVar("FUNDING_POLL_INTERVAL_SEC", int(deployer.DefaultPollInterval/time.Second))) * time.Second,
			Workchain:     int32(workchain),
		},
		SendValueAmount: p.uint64Var("SEND_VALUE_AMOUNT", 0),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		MetricsPort:     p.intVar("METRICS_PORT", 0),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Retry:           retry.LoadConfig(),
	}

	policy, err := contract.ParseUnsignedPolicy(getEnv("UNSIGNED_CALLS", "reject"))
	if err != nil && p.err == nil {
		p.err = configError("UNSIGNED_CALLS", err.Error())
	}
	cfg.UnsignedCalls = policy

	if p.err != nil {
		return nil, p.err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.SDKURL == "" {
		return configError("TVM_SDK_URL", "is required")
	}
	if len(c.Endpoints) == 0 {
		return configError("NETWORK_ENDPOINTS", "at least one endpoint is required")
	}
	if c.GiverAddress == "" {
		return configError("GIVER_ADDRESS", "is required")
	}
	if c.GiverKeysPath == "" {
		return configError("GIVER_KEYS", "is required")
	}
	if c.ContractCodePath == "" {
		return configError("CONTRACT_CODE", "is required")
	}
	if c.Deployer.Workchain < message.MinWorkchain || c.Deployer.Workchain > message.MaxWorkchain {
		return configError("WORKCHAIN_ID", fmt.Sprintf("%d is out of range", c.Deployer.Workchain))
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		return configError("METRICS_PORT", fmt.Sprintf("%d is not a port", c.MetricsPort))
	}
	if err := c.Deployer.Validate(); err != nil {
		return err
	}
	return nil
}

func configError(variable, msg string) error {
	return errs.Newf(errs.ErrConfig, "load config", "%s %s", variable, msg)
}

// parser keeps the first parse failure so Load can report it.
type parser struct {
	err error
}

func (p *parser) intVar(key string, def int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		p.fail(key, raw)
		return def
	}
	return v
}

func (p *parser) uint64Var(key string, def uint64) uint64 {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def
	}
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		p.fail(key, raw)
		return def
	}
	return v
}

func (p *parser) fail(key, raw string) {
	if p.err == nil {
		p.err = configError(key, fmt.Sprintf("has invalid value %q", raw))
	}
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
