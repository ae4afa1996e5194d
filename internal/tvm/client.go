// Package tvm is the network capability used by the deployer: GraphQL
// queries, message encoding, message processing and local execution.
//
// The capability is split into small interfaces so that each component asks
// only for what it uses. Client implements all of them on top of a JSON-RPC
// bridge that hosts the TVM SDK.
package tvm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"tvmdeploy/internal/errs"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"
)

// Querier reads blockchain state through the GraphQL API.
type Querier interface {
	Query(ctx context.Context, params ParamsOfQuery) (ResultOfQuery, error)
	QueryCollection(ctx context.Context, params ParamsOfQueryCollection) (ResultOfQueryCollection, error)
}

// Encoder builds external messages and calculates deploy addresses.
type Encoder interface {
	EncodeMessage(ctx context.Context, params ParamsOfEncodeMessage) (ResultOfEncodeMessage, error)
}

// Processor encodes, sends and waits for the resulting transaction.
type Processor interface {
	ProcessMessage(ctx context.Context, params ParamsOfProcessMessage) (ResultOfProcessMessage, error)
}

// Executor runs a message against a serialized account state locally.
type Executor interface {
	RunTvm(ctx context.Context, params ParamsOfRunTvm) (ResultOfRunTvm, error)
}

// Network is the full capability.
type Network interface {
	Querier
	Encoder
	Processor
	Executor
}

// Caller is the JSON-RPC transport. *jrpc2.Client satisfies it.
type Caller interface {
	CallResult(ctx context.Context, method string, params, result any) error
	Close() error
}

// SDK function names exposed by the bridge.
const (
	methodCreateContext   = "client.create_context"
	methodDestroyContext  = "client.destroy_context"
	methodQuery           = "net.query"
	methodQueryCollection = "net.query_collection"
	methodEncodeMessage   = "abi.encode_message"
	methodProcessMessage  = "processing.process_message"
	methodRunTvm          = "tvm.run_tvm"
)

// Client talks to the SDK bridge within a single SDK context. It holds no
// mutable state after construction and is safe for concurrent use.
type Client struct {
	rpc     Caller
	context uint32
}

var _ Network = (*Client)(nil)

type networkConfig struct {
	Endpoints []string `json:"endpoints"`
}

type clientConfig struct {
	Network networkConfig `json:"network"`
}

type createContextParams struct {
	Config clientConfig `json:"config"`
}

type createContextResult struct {
	Handle uint32 `json:"handle"`
}

type envelope struct {
	Context uint32 `json:"context"`
	Params  any    `json:"params,omitempty"`
}

// Dial connects to the bridge at url and creates an SDK context bound to the
// given network endpoints.
func Dial(ctx context.Context, url string, endpoints []string) (*Client, error) {
	rpc := jrpc2.NewClient(jhttp.NewChannel(url, nil), nil)
	c, err := NewClient(ctx, rpc, endpoints)
	if err != nil {
		rpc.Close()
		return nil, err
	}
	return c, nil
}

// NewClient creates an SDK context over an existing transport.
func NewClient(ctx context.Context, rpc Caller, endpoints []string) (*Client, error) {
	if len(endpoints) == 0 {
		return nil, errs.Newf(errs.ErrConfig, "create sdk context", "no network endpoints configured")
	}

	var res createContextResult
	params := createContextParams{Config: clientConfig{Network: networkConfig{Endpoints: endpoints}}}
	if err := rpc.CallResult(ctx, methodCreateContext, params, &res); err != nil {
		return nil, classify("create sdk context", err)
	}

	slog.Debug("SDK context created", "context", res.Handle, "endpoints", endpoints)
	return &Client{rpc: rpc, context: res.Handle}, nil
}

// Close destroys the SDK context and closes the transport.
func (c *Client) Close() error {
	var (
		ack        json.RawMessage
		destroyErr error
	)
	if err := c.rpc.CallResult(context.Background(), methodDestroyContext, envelope{Context: c.context}, &ack); err != nil {
		destroyErr = classify("destroy sdk context", err)
	}
	if err := c.rpc.Close(); err != nil && destroyErr == nil {
		return fmt.Errorf("failed to close bridge connection: %w", err)
	}
	return destroyErr
}

func (c *Client) Query(ctx context.Context, params ParamsOfQuery) (ResultOfQuery, error) {
	var res ResultOfQuery
	err := c.call(ctx, methodQuery, params, &res)
	return res, err
}

func (c *Client) QueryCollection(ctx context.Context, params ParamsOfQueryCollection) (ResultOfQueryCollection, error) {
	var res ResultOfQueryCollection
	err := c.call(ctx, methodQueryCollection, params, &res)
	return res, err
}

func (c *Client) EncodeMessage(ctx context.Context, params ParamsOfEncodeMessage) (ResultOfEncodeMessage, error) {
	var res ResultOfEncodeMessage
	err := c.call(ctx, methodEncodeMessage, params, &res)
	return res, err
}

func (c *Client) ProcessMessage(ctx context.Context, params ParamsOfProcessMessage) (ResultOfProcessMessage, error) {
	var res ResultOfProcessMessage
	err := c.call(ctx, methodProcessMessage, params, &res)
	return res, err
}

func (c *Client) RunTvm(ctx context.Context, params ParamsOfRunTvm) (ResultOfRunTvm, error) {
	var res ResultOfRunTvm
	err := c.call(ctx, methodRunTvm, params, &res)
	return res, err
}

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	if err := c.rpc.CallResult(ctx, method, envelope{Context: c.context, Params: params}, result); err != nil {
		return classify(method, err)
	}
	return nil
}

// classify maps a bridge failure onto the error taxonomy. SDK errors keep
// their numeric code; the SDK groups codes by module.
func classify(op string, err error) error {
	var rpcErr *jrpc2.Error
	if errors.As(err, &rpcErr) {
		return errs.New(kindForCode(int(rpcErr.Code)), op, fmt.Errorf("sdk error %d: %s", rpcErr.Code, rpcErr.Message))
	}
	return errs.New(errs.ErrNetwork, op, err)
}

func kindForCode(code int) error {
	switch {
	case code >= 300 && code < 400: // abi
		return errs.ErrEncoding
	case code >= 400 && code < 500: // tvm
		return errs.ErrDecode
	default: // processing, net, transport
		return errs.ErrNetwork
	}
}
