// Package deployer takes a code image to a deployed contract: derive the
// future address, request funds for it, wait until they land and submit the
// deploy message.
//
// Only the funding wait is retried. Funding and the final submission are
// single attempts, and a failure after funding leaves the address funded but
// not deployed; nothing is rolled back.
package deployer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"tvmdeploy/internal/abi"
	"tvmdeploy/internal/account"
	"tvmdeploy/internal/contract"
	"tvmdeploy/internal/errs"
	"tvmdeploy/internal/keys"
	"tvmdeploy/internal/message"
	"tvmdeploy/internal/metrics"
	"tvmdeploy/internal/models"
	"tvmdeploy/internal/retry"
	"tvmdeploy/internal/storage"
	"tvmdeploy/internal/tvm"

	"github.com/google/uuid"
)

// FundingFunction is the funding-source function asked for tokens.
const FundingFunction = "sendTransaction"

// Request describes the contract to deploy.
type Request struct {
	Name      string
	Code      []byte
	Interface *abi.Interface
	// Keys become the contract keys. A fresh pair is generated when nil.
	Keys *keys.KeyPair
}

// Deployer deploys contracts funded by a single funding-source contract.
type Deployer struct {
	rt       *contract.Runtime
	giver    *contract.Contract
	cfg      Config
	sleep    retry.Sleeper
	progress io.Writer
}

// Option configures a Deployer.
type Option func(*Deployer)

// WithSleeper replaces the timer used between funding polls.
func WithSleeper(s retry.Sleeper) Option {
	return func(d *Deployer) { d.sleep = s }
}

// WithProgress prints milestone lines to w.
func WithProgress(w io.Writer) Option {
	return func(d *Deployer) { d.progress = w }
}

// New creates a Deployer that requests funds from giver.
func New(rt *contract.Runtime, giver *contract.Contract, cfg Config, opts ...Option) (*Deployer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !giver.Interface().HasFunction(FundingFunction) {
		return nil, errs.Newf(errs.ErrConfig, "create deployer", "funding source %s does not declare %s", giver, FundingFunction)
	}

	d := &Deployer{
		rt:       rt,
		giver:    giver,
		cfg:      cfg,
		sleep:    retry.Sleep,
		progress: io.Discard,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Deploy runs a deployment to completion and returns the deployed contract,
// bound to the derived address and the deployment keys.
func (d *Deployer) Deploy(ctx context.Context, req Request) (*contract.Contract, error) {
	if req.Interface == nil {
		return nil, errs.Newf(errs.ErrConfig, "deploy", "no interface description")
	}
	if req.Name == "" {
		req.Name = req.Interface.Name()
	}

	kp, err := deploymentKeys(req.Keys)
	if err != nil {
		return nil, err
	}
	target := message.Deploy{Code: req.Code, Interface: req.Interface, Keys: kp, Workchain: d.cfg.Workchain}

	// AddressDerived
	addr, err := message.DeriveDeployAddress(req.Code, kp.Public, d.cfg.Workchain)
	if err != nil {
		metrics.DeploymentsTotal.WithLabelValues("failure").Inc()
		return nil, err
	}
	run := d.newRun(ctx, req, kp, addr)
	run.enter(StateAddressDerived)
	d.printf("Future address: %s\n", addr)

	if err := d.checkEncoderAddress(ctx, target, addr); err != nil {
		return nil, run.fail(err)
	}

	// Funding
	run.enter(StateFunding)
	d.printf("Requesting tokens from giver-contract...\n")
	fundingTx, err := d.giver.Call(ctx, FundingFunction, abi.Args{
		"dest":   abi.Address(addr),
		"value":  abi.Uint(d.cfg.FundingAmount),
		"bounce": abi.Bool(false),
	})
	if err != nil {
		return nil, run.fail(err)
	}
	d.printf("Transaction id: %s\n", fundingTx)
	run.record.FundingTxID = fundingTx
	run.save(models.StageFundingRequested)

	// WaitingForFunds
	run.enter(StateWaitingForFunds)
	funded, err := d.waitForFunds(ctx, run)
	if err != nil {
		return nil, run.fail(err)
	}
	d.printf("Contract status: %s (ready to deploy)\n", funded.Type)
	d.printf("Contract balance: %d nanotokens\n", funded.Balance)
	run.record.Balance = funded.Balance
	run.save(models.StageFunded)

	// Ready
	run.enter(StateReady)
	deployTx, err := d.submit(ctx, target, addr)
	if err != nil {
		return nil, run.fail(err)
	}
	run.record.DeployTxID = deployTx
	run.save(models.StageDeployed)
	run.enter(StateDeployed)
	metrics.DeploymentsTotal.WithLabelValues("success").Inc()
	d.printf("Contract has been deployed\n")

	return d.rt.Bind(addr, req.Interface, &kp, req.Name)
}

func deploymentKeys(supplied *keys.KeyPair) (keys.KeyPair, error) {
	if supplied != nil {
		if err := supplied.Validate(); err != nil {
			return keys.KeyPair{}, errs.New(errs.ErrConfig, "deploy", fmt.Errorf("invalid deployment keys: %w", err))
		}
		return *supplied, nil
	}
	kp, err := keys.Generate()
	if err != nil {
		return keys.KeyPair{}, errs.New(errs.ErrConfig, "deploy", err)
	}
	return kp, nil
}

// checkEncoderAddress makes sure the encoder will send the deploy message to
// the address about to be funded.
func (d *Deployer) checkEncoderAddress(ctx context.Context, target message.Deploy, derived string) error {
	encoded, err := d.rt.Builder().EncoderAddress(ctx, target)
	if err != nil {
		return err
	}
	if encoded != derived {
		return &errs.Error{
			Kind:    errs.ErrEncoding,
			Op:      "check deploy address",
			Address: derived,
			Err:     fmt.Errorf("encoder calculated %s", encoded),
		}
	}
	return nil
}

func (d *Deployer) waitForFunds(ctx context.Context, run *deployRun) (account.Snapshot, error) {
	var (
		snapshot account.Snapshot
		start    = time.Now()
		strategy = retry.NewFixedIntervalStrategy(d.cfg.MaxAttempts, d.cfg.PollInterval, d.sleep)
	)

	err := strategy.Execute(ctx, func() error {
		snap, err := d.rt.Fetcher().FetchSnapshot(ctx, run.record.Address)
		run.record.FundingPolls++
		metrics.FundingPolls.Inc()
		if err != nil {
			return err
		}

		slog.Debug("Account observed",
			"address", run.record.Address,
			"attempt", run.record.FundingPolls,
			"type", snap.Type,
			"balance", snap.Balance)

		if !snap.ReadyToDeploy() {
			return retry.ErrPending
		}
		snapshot = snap
		return nil
	})

	switch {
	case err == nil:
		metrics.FundingWaitDuration.Observe(time.Since(start).Seconds())
		return snapshot, nil
	case errors.Is(err, retry.ErrExhausted):
		return account.Snapshot{}, &errs.Error{
			Kind:    errs.ErrTimeout,
			Op:      "wait for funds",
			Address: run.record.Address,
			Err:     fmt.Errorf("deploy failed: requested funds never arrived (%d attempts)", run.record.FundingPolls),
		}
	case ctx.Err() != nil:
		return account.Snapshot{}, &errs.Error{Kind: errs.ErrTimeout, Op: "wait for funds", Address: run.record.Address, Err: err}
	default:
		return account.Snapshot{}, err
	}
}

func (d *Deployer) submit(ctx context.Context, target message.Deploy, addr string) (string, error) {
	params, err := d.rt.Builder().DeployParams(target)
	if err != nil {
		return "", err
	}

	start := time.Now()
	res, err := d.rt.Processor().ProcessMessage(ctx, tvm.ParamsOfProcessMessage{MessageEncodeParams: params})
	metrics.SubmissionDuration.WithLabelValues("deploy").Observe(time.Since(start).Seconds())
	if err != nil {
		if e, ok := errs.As(err); ok {
			return "", e.WithAddress(addr).WithFunction("constructor")
		}
		return "", &errs.Error{Kind: errs.ErrNetwork, Op: "submit deploy message", Address: addr, Function: "constructor", Err: err}
	}

	txID, err := res.TransactionID()
	if err != nil {
		slog.Warn("Deploy confirmed without a transaction id", "address", addr, "error", err)
	}
	return txID, nil
}

func (d *Deployer) printf(format string, args ...any) {
	fmt.Fprintf(d.progress, format, args...)
}

// deployRun tracks one deployment for logging and the journal.
type deployRun struct {
	ctx     context.Context
	journal storage.Repository
	state   State
	record  models.Deployment
}

func (d *Deployer) newRun(ctx context.Context, req Request, kp keys.KeyPair, addr string) *deployRun {
	hash := sha256.Sum256(req.Code)
	now := time.Now().UTC()

	run := &deployRun{
		ctx:     ctx,
		journal: d.rt.Journal(),
		record: models.Deployment{
			ID:            uuid.NewString(),
			ContractName:  req.Name,
			Address:       addr,
			PublicKey:     kp.Public,
			CodeHash:      hex.EncodeToString(hash[:]),
			Workchain:     d.cfg.Workchain,
			FundingAmount: d.cfg.FundingAmount,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
	}
	run.save(models.StageAddressDerived)
	return run
}

func (r *deployRun) enter(s State) {
	r.state = s
	slog.Info("Deployment state changed",
		"deployment", r.record.ID,
		"contract", r.record.ContractName,
		"address", r.record.Address,
		"state", s.String())
}

func (r *deployRun) save(stage models.Stage) {
	r.record.Stage = stage
	r.record.UpdatedAt = time.Now().UTC()
	if r.journal == nil {
		return
	}
	// journal failures never fail the deployment
	if err := r.journal.SaveDeployment(context.WithoutCancel(r.ctx), &r.record); err != nil {
		slog.Warn("Failed to journal deployment", "deployment", r.record.ID, "stage", stage, "error", err)
	}
}

func (r *deployRun) fail(err error) error {
	failedIn := r.state
	r.record.Error = err.Error()
	r.record.FailedStage = r.record.Stage
	r.save(models.StageFailed)
	r.enter(StateFailed)

	metrics.DeploymentsTotal.WithLabelValues("failure").Inc()
	if kind := errs.KindOf(err); kind != nil {
		metrics.ErrorsTotal.WithLabelValues(kind.Error()).Inc()
	}

	attrs := []any{"deployment", r.record.ID, "address", r.record.Address, "failed_in", failedIn.String(), "error", err}
	if failedIn >= StateWaitingForFunds {
		attrs = append(attrs, "funding_tx_id", r.record.FundingTxID)
		slog.Error("Deployment failed after funding; the address keeps the funds", attrs...)
	} else {
		slog.Error("Deployment failed", attrs...)
	}
	return err
}
