package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tvmdeploy/internal/abi"
	"tvmdeploy/internal/api"
	"tvmdeploy/internal/config"
	"tvmdeploy/internal/contract"
	"tvmdeploy/internal/deployer"
	"tvmdeploy/internal/keys"
	"tvmdeploy/internal/message"
	"tvmdeploy/internal/metrics"
	"tvmdeploy/internal/retry"
	"tvmdeploy/internal/storage"
	"tvmdeploy/internal/tvm"

	"github.com/joho/godotenv"
)

func main() {
	fmt.Println("🚀 Starting TVM Contract Deployer...")

	// 1. Load configuration
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	// 2. Configure logger
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("Configuration loaded",
		"sdk_url", cfg.SDKURL,
		"endpoints", cfg.Endpoints,
		"giver", cfg.GiverAddress,
		"unsigned_calls", cfg.UnsignedCalls.String(),
		"log_level", cfg.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		stop()
		log.Fatalf("❌ %v", err)
	}
	slog.Info("Deployer finished")
}

func run(ctx context.Context, cfg *config.Config) error {
	// 3. Open the deployment journal
	journal, err := openJournal(ctx, cfg)
	if err != nil {
		return err
	}
	defer journal.Close()

	// 4. Start the status server
	if cfg.MetricsPort > 0 {
		server := api.NewServer(cfg.MetricsPort, journal)
		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to start status server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				slog.Error("Error stopping status server", "error", err)
			}
		}()
	}

	// 5. Connect to the SDK bridge
	client, err := tvm.Dial(ctx, cfg.SDKURL, cfg.Endpoints)
	if err != nil {
		return fmt.Errorf("failed to connect to the SDK bridge: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			slog.Warn("Failed to close SDK context", "error", err)
		}
	}()
	slog.Info("SDK context created", "sdk_url", cfg.SDKURL)

	rt := contract.NewRuntime(client,
		contract.WithUnsignedPolicy(cfg.UnsignedCalls),
		contract.WithJournal(journal),
	)

	// 6. Bind the funding source
	giverKeys, err := keys.Load(cfg.GiverKeysPath)
	if err != nil {
		return err
	}
	giver, err := rt.Bind(cfg.GiverAddress, abi.Giver, &giverKeys, "giver")
	if err != nil {
		return err
	}

	code, err := os.ReadFile(cfg.ContractCodePath)
	if err != nil {
		return fmt.Errorf("failed to read code image %s: %w", cfg.ContractCodePath, err)
	}

	// 7. Deploy
	d, err := deployer.New(rt, giver, cfg.Deployer, deployer.WithProgress(os.Stdout))
	if err != nil {
		return err
	}
	hello, err := d.Deploy(ctx, deployer.Request{
		Name:      cfg.ContractName,
		Code:      code,
		Interface: abi.HelloWorld,
	})
	if err != nil {
		return err
	}

	// 8. Exercise the deployed contract
	return exercise(ctx, cfg, hello)
}

func openJournal(ctx context.Context, cfg *config.Config) (storage.Repository, error) {
	if cfg.DatabaseURL == "" {
		slog.Info("No database configured, journaling in memory")
		return storage.NewMemoryRepository(), nil
	}

	repository, err := storage.NewPostgresRepository(ctx, cfg.DatabaseURL, retry.NewStrategy(cfg.Retry))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return repository, nil
}

type timestampResult struct {
	Timestamp uint64 `json:"timestamp,string"`
}

type renderResult struct {
	Value string `json:"value0"`
}

func exercise(ctx context.Context, cfg *config.Config, hello *contract.Contract) error {
	first, err := contract.RunLocal[timestampResult](ctx, hello, "timestamp", nil)
	if err != nil {
		return err
	}
	fmt.Printf("Timestamp result[1]: %d\n", first.Timestamp)

	txID, err := hello.Call(ctx, "touch", nil)
	if err != nil {
		return err
	}
	fmt.Printf("touch() transaction id: %s\n", txID)

	second, err := contract.RunLocal[timestampResult](ctx, hello, "timestamp", nil)
	if err != nil {
		return err
	}
	fmt.Printf("Timestamp result[2]: %d\n", second.Timestamp)

	if hello.Interface().HasFunction("renderHelloWorld") {
		greeting, err := contract.RunLocal[renderResult](ctx, hello, "renderHelloWorld", nil)
		if err != nil {
			return err
		}
		fmt.Printf("renderHelloWorld result: %s\n", greeting.Value)
	}

	snap, err := hello.Snapshot(ctx)
	if err != nil {
		return err
	}
	metrics.AccountBalance.WithLabelValues(hello.Name()).Set(float64(snap.Balance))
	fmt.Printf("Contract status: %s\n", snap.Type)
	fmt.Printf("Contract balance: %s tokens\n", api.NanotokensToTokens(snap.Balance))

	if cfg.SendValueAmount == 0 {
		return nil
	}

	dest, err := message.RandomAddress(cfg.Deployer.Workchain)
	if err != nil {
		return err
	}
	txID, err = hello.Call(ctx, "sendShell", abi.Args{
		"dest":  abi.Address(dest),
		"value": abi.Uint(cfg.SendValueAmount),
	})
	if err != nil {
		return err
	}
	fmt.Printf("Sent %d nanotokens to %s, transaction id: %s\n", cfg.SendValueAmount, dest, txID)
	return nil
}
