package tvm

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"tvmdeploy/internal/errs"
	"tvmdeploy/internal/keys"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type callLog struct {
	mu      sync.Mutex
	methods []string
	params  map[string]json.RawMessage
}

func (l *callLog) record(method string, params json.RawMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.methods = append(l.methods, method)
	if l.params == nil {
		l.params = make(map[string]json.RawMessage)
	}
	l.params[method] = params
}

type rawEnvelope struct {
	Context uint32          `json:"context"`
	Params  json.RawMessage `json:"params"`
}

// newBridge starts an in-process bridge. Handlers in overrides replace the
// defaults, which answer every SDK call with a fixed result.
func newBridge(t *testing.T, overrides handler.Map) (*Client, *callLog) {
	t.Helper()
	log := &callLog{}

	reply := func(result any) jrpc2.Handler {
		return func(ctx context.Context, req *jrpc2.Request) (any, error) {
			var env rawEnvelope
			if err := req.UnmarshalParams(&env); err != nil {
				return nil, err
			}
			if env.Context != 7 {
				return nil, &jrpc2.Error{Code: 23, Message: "invalid context handle"}
			}
			log.record(req.Method(), env.Params)
			return result, nil
		}
	}

	methods := handler.Map{
		methodCreateContext: func(ctx context.Context, req *jrpc2.Request) (any, error) {
			var p createContextParams
			if err := req.UnmarshalParams(&p); err != nil {
				return nil, err
			}
			raw, _ := json.Marshal(p)
			log.record(req.Method(), raw)
			return createContextResult{Handle: 7}, nil
		},
		methodDestroyContext:  reply(true),
		methodQuery:           reply(map[string]any{"result": map[string]any{"data": nil}}),
		methodQueryCollection: reply(map[string]any{"result": []any{map[string]any{"boc": "te6c"}}}),
		methodEncodeMessage:   reply(ResultOfEncodeMessage{Message: "msg", Address: "0:abc", MessageID: "m1"}),
		methodProcessMessage:  reply(map[string]any{"transaction": map[string]any{"id": "tx1"}}),
		methodRunTvm:          reply(map[string]any{"decoded": map[string]any{"output": map[string]any{"timestamp": "5"}}}),
	}
	for name, h := range overrides {
		methods[name] = h
	}

	loc := server.NewLocal(methods, nil)
	t.Cleanup(func() { loc.Close() })

	c, err := NewClient(context.Background(), loc.Client, []string{"https://net.example"})
	require.NoError(t, err)
	return c, log
}

func TestNewClientCreatesContext(t *testing.T) {
	_, log := newBridge(t, nil)

	require.Equal(t, []string{methodCreateContext}, log.methods)
	assert.JSONEq(t, `{"config":{"network":{"endpoints":["https://net.example"]}}}`, string(log.params[methodCreateContext]))
}

func TestNewClientRequiresEndpoints(t *testing.T) {
	_, err := NewClient(context.Background(), nil, nil)
	assert.True(t, errors.Is(err, errs.ErrConfig))
}

func TestClientCalls(t *testing.T) {
	c, log := newBridge(t, nil)
	ctx := context.Background()

	q, err := c.Query(ctx, ParamsOfQuery{Query: "query{}", Variables: map[string]any{"address": "0:abc"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":null}`, string(q.Result))

	qc, err := c.QueryCollection(ctx, ParamsOfQueryCollection{Collection: "accounts", Result: "boc", Limit: 1})
	require.NoError(t, err)
	require.Len(t, qc.Result, 1)

	kp := keys.KeyPair{Public: "aa", Secret: "bb"}
	enc, err := c.EncodeMessage(ctx, ParamsOfEncodeMessage{Abi: AbiJSON("{}"), Signer: SignerKeys(kp)})
	require.NoError(t, err)
	assert.Equal(t, "0:abc", enc.Address)
	assert.JSONEq(t,
		`{"abi":{"type":"Json","value":"{}"},"signer":{"type":"Keys","keys":{"public":"aa","secret":"bb"}}}`,
		string(log.params[methodEncodeMessage]))

	pm, err := c.ProcessMessage(ctx, ParamsOfProcessMessage{})
	require.NoError(t, err)
	id, err := pm.TransactionID()
	require.NoError(t, err)
	assert.Equal(t, "tx1", id)

	run, err := c.RunTvm(ctx, ParamsOfRunTvm{Message: "msg", Account: "te6c"})
	require.NoError(t, err)
	require.NotNil(t, run.Decoded)
	assert.JSONEq(t, `{"timestamp":"5"}`, string(run.Decoded.Output))

	require.NoError(t, c.Close())
	assert.Equal(t, methodDestroyContext, log.methods[len(log.methods)-1])
}

func TestClientClassifiesErrors(t *testing.T) {
	failing := func(rpcErr *jrpc2.Error) jrpc2.Handler {
		return func(ctx context.Context, req *jrpc2.Request) (any, error) {
			return nil, rpcErr
		}
	}
	tests := []struct {
		name string
		err  *jrpc2.Error
		kind error
	}{
		{"abi", &jrpc2.Error{Code: 312, Message: "boom"}, errs.ErrEncoding},
		{"tvm", &jrpc2.Error{Code: 414, Message: "boom"}, errs.ErrDecode},
		{"processing", &jrpc2.Error{Code: 507, Message: "boom"}, errs.ErrNetwork},
		{"net", &jrpc2.Error{Code: 603, Message: "boom"}, errs.ErrNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newBridge(t, handler.Map{methodEncodeMessage: failing(tt.err)})

			_, err := c.EncodeMessage(context.Background(), ParamsOfEncodeMessage{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
			assert.Contains(t, err.Error(), methodEncodeMessage)
			assert.Contains(t, err.Error(), "boom")
		})
	}
}

func TestTransactionIDErrors(t *testing.T) {
	_, err := ResultOfProcessMessage{}.TransactionID()
	assert.Error(t, err)
	_, err = ResultOfProcessMessage{Transaction: json.RawMessage(`{"status":3}`)}.TransactionID()
	assert.Error(t, err)
}
