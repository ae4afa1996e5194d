package contract

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"tvmdeploy/internal/abi"
	"tvmdeploy/internal/account"
	"tvmdeploy/internal/errs"
	"tvmdeploy/internal/keys"
	"tvmdeploy/internal/message"
	"tvmdeploy/internal/metrics"
	"tvmdeploy/internal/models"
	"tvmdeploy/internal/tvm"

	"github.com/google/uuid"
)

// Contract is an immutable contract identity: address, interface
// description, optional keys and a display name.
type Contract struct {
	address string
	iface   *abi.Interface
	keys    *keys.KeyPair
	name    string
	rt      *Runtime
}

func (c *Contract) Address() string { return c.address }

func (c *Contract) Name() string { return c.name }

func (c *Contract) Interface() *abi.Interface { return c.iface }

// Keys returns a copy of the contract keys, if held.
func (c *Contract) Keys() (keys.KeyPair, bool) {
	if c.keys == nil {
		return keys.KeyPair{}, false
	}
	return *c.keys, true
}

func (c *Contract) String() string {
	return c.name + " (" + c.address + ")"
}

// Snapshot fetches the current account state of the contract.
func (c *Contract) Snapshot(ctx context.Context) (account.Snapshot, error) {
	return c.rt.fetcher.FetchSnapshot(ctx, c.address)
}

// Call submits fn as a transaction and waits until it is included. The
// message is signed with the contract keys; without keys it is sent unsigned
// only if the runtime allows it. Nothing is retried.
func (c *Contract) Call(ctx context.Context, fn string, args abi.Args) (string, error) {
	signer := message.SignerFor(c.keys)
	txID, err := c.call(ctx, fn, args, signer)

	metrics.CallsTotal.WithLabelValues(fn, metrics.Outcome(err)).Inc()
	c.journalCall(ctx, fn, signer, txID, err)

	if err != nil {
		slog.Error("Contract call failed", "contract", c.name, "address", c.address, "function", fn, "error", err)
		return "", err
	}
	slog.Info("Contract call confirmed", "contract", c.name, "address", c.address, "function", fn, "tx_id", txID)
	return txID, nil
}

func (c *Contract) call(ctx context.Context, fn string, args abi.Args, signer message.Signer) (string, error) {
	const op = "call"

	if !signer.IsKeyed() && c.rt.policy == RejectUnsigned {
		return "", &errs.Error{
			Kind:     errs.ErrConfig,
			Op:       op,
			Address:  c.address,
			Function: fn,
			Err:      errors.New("contract has no keys and unsigned calls are rejected"),
		}
	}

	params, err := message.CallParams(c.address, c.iface, fn, args, signer)
	if err != nil {
		return "", err
	}

	start := time.Now()
	res, err := c.rt.processor.ProcessMessage(ctx, tvm.ParamsOfProcessMessage{MessageEncodeParams: params})
	metrics.SubmissionDuration.WithLabelValues("call").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", c.bind(err, op, fn, errs.ErrNetwork)
	}

	txID, err := res.TransactionID()
	if err != nil {
		return "", &errs.Error{Kind: errs.ErrDecode, Op: op, Address: c.address, Function: fn, Err: err}
	}
	return txID, nil
}

// RunLocalRaw executes fn against the current account state without
// submitting anything and returns the decoded output object. Every declared
// output is guaranteed to be present.
func (c *Contract) RunLocalRaw(ctx context.Context, fn string, args abi.Args) (json.RawMessage, error) {
	f, out, err := c.runLocal(ctx, fn, args)
	if err == nil {
		err = c.bind(f.DecodeOutput(out, nil), "run local", fn, errs.ErrDecode)
	}
	metrics.LocalRunsTotal.WithLabelValues(fn, metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RunLocal executes fn locally and decodes its output into T.
func RunLocal[T any](ctx context.Context, c *Contract, fn string, args abi.Args) (T, error) {
	var result T

	f, out, err := c.runLocal(ctx, fn, args)
	if err == nil {
		err = c.bind(f.DecodeOutput(out, &result), "run local", fn, errs.ErrDecode)
	}
	metrics.LocalRunsTotal.WithLabelValues(fn, metrics.Outcome(err)).Inc()
	return result, err
}

func (c *Contract) runLocal(ctx context.Context, fn string, args abi.Args) (*abi.Function, json.RawMessage, error) {
	const op = "run local"

	f, err := c.iface.Function(fn)
	if err != nil {
		return nil, nil, c.bind(err, op, fn, errs.ErrEncoding)
	}

	state, err := c.rt.fetcher.FetchSerializedState(ctx, c.address)
	if err != nil {
		return nil, nil, c.bind(err, op, fn, errs.ErrNetwork)
	}

	msg, err := c.rt.builder.BuildCallMessage(ctx, c.address, c.iface, fn, args, message.Unsigned())
	if err != nil {
		return nil, nil, err
	}

	abiRef := tvm.AbiJSON(c.iface.JSON())
	res, err := c.rt.executor.RunTvm(ctx, tvm.ParamsOfRunTvm{
		Message: msg.Payload,
		Account: state,
		Abi:     &abiRef,
	})
	if err != nil {
		return nil, nil, c.bind(err, op, fn, errs.ErrNetwork)
	}
	if res.Decoded == nil {
		return nil, nil, &errs.Error{Kind: errs.ErrDecode, Op: op, Address: c.address, Function: fn,
			Err: errors.New("execution returned no decoded output")}
	}

	slog.Debug("Local run finished", "contract", c.name, "function", fn)
	return f, res.Decoded.Output, nil
}

// bind attaches the contract address and function to err. Errors without a
// kind get fallback.
func (c *Contract) bind(err error, op, fn string, fallback error) error {
	if err == nil {
		return nil
	}
	e, ok := errs.As(err)
	if !ok {
		return &errs.Error{Kind: fallback, Op: op, Address: c.address, Function: fn, Err: err}
	}
	if e.Address == "" {
		e = e.WithAddress(c.address)
	}
	if e.Function == "" {
		e = e.WithFunction(fn)
	}
	return e
}

func (c *Contract) journalCall(ctx context.Context, fn string, signer message.Signer, txID string, callErr error) {
	if c.rt.journal == nil {
		return
	}

	record := &models.ContractCall{
		ID:        uuid.NewString(),
		Contract:  c.name,
		Address:   c.address,
		Function:  fn,
		Signed:    signer.IsKeyed(),
		TxID:      txID,
		CreatedAt: time.Now().UTC(),
	}
	if callErr != nil {
		record.Error = callErr.Error()
	}

	if err := c.rt.journal.SaveContractCall(context.WithoutCancel(ctx), record); err != nil {
		slog.Warn("Failed to journal contract call", "function", fn, "error", err)
	}
}
