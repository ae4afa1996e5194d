package contract

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"tvmdeploy/internal/abi"
	"tvmdeploy/internal/errs"
	"tvmdeploy/internal/keys"
	"tvmdeploy/internal/models"
	"tvmdeploy/internal/storage"
	"tvmdeploy/internal/tvm"
	"tvmdeploy/internal/tvm/tvmtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const addr = "0:3333333333333333333333333333333333333333333333333333333333333333"

type timestampResult struct {
	Timestamp uint32 `json:"timestamp,string"`
}

func newKeys(t *testing.T) *keys.KeyPair {
	t.Helper()
	kp, err := keys.Generate()
	require.NoError(t, err)
	return &kp
}

// chain answers encode, process and local runs for a single contract whose
// timestamp only changes when a transaction is processed.
func chain(timestamp *uint32) *tvmtest.Network {
	return &tvmtest.Network{
		QueryCollectionFunc: func(tvm.ParamsOfQueryCollection) (tvm.ResultOfQueryCollection, error) {
			return tvm.ResultOfQueryCollection{Result: []json.RawMessage{json.RawMessage(`{"boc":"te6cstate"}`)}}, nil
		},
		EncodeMessageFunc: func(p tvm.ParamsOfEncodeMessage) (tvm.ResultOfEncodeMessage, error) {
			return tvm.ResultOfEncodeMessage{Message: "te6cmsg:" + p.CallSet.FunctionName, Address: p.Address}, nil
		},
		ProcessMessageFunc: func(p tvm.ParamsOfProcessMessage) (tvm.ResultOfProcessMessage, error) {
			*timestamp++
			return tvm.ResultOfProcessMessage{Transaction: json.RawMessage(`{"id":"tx-touch"}`)}, nil
		},
		RunTvmFunc: func(p tvm.ParamsOfRunTvm) (tvm.ResultOfRunTvm, error) {
			out, _ := json.Marshal(map[string]string{"timestamp": jsonUint(*timestamp)})
			return tvm.ResultOfRunTvm{Decoded: &tvm.DecodedOutput{Output: out}}, nil
		},
	}
}

func jsonUint(v uint32) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestParseUnsignedPolicy(t *testing.T) {
	for in, want := range map[string]UnsignedPolicy{"": RejectUnsigned, "reject": RejectUnsigned, "ALLOW": AllowUnsigned} {
		got, err := ParseUnsignedPolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseUnsignedPolicy("sometimes")
	assert.True(t, errors.Is(err, errs.ErrConfig))
	assert.Equal(t, "allow", AllowUnsigned.String())
}

func TestBind(t *testing.T) {
	rt := NewRuntime(&tvmtest.Network{})

	_, err := rt.Bind("nowhere", abi.HelloWorld, nil, "x")
	assert.True(t, errors.Is(err, errs.ErrConfig))

	_, err = rt.Bind(addr, nil, nil, "x")
	assert.True(t, errors.Is(err, errs.ErrConfig))

	_, err = rt.Bind(addr, abi.HelloWorld, &keys.KeyPair{Public: "00", Secret: "00"}, "x")
	assert.True(t, errors.Is(err, errs.ErrConfig))

	kp := newKeys(t)
	c, err := rt.Bind(addr, abi.HelloWorld, kp, "")
	require.NoError(t, err)
	assert.Equal(t, "helloWorld", c.Name())
	assert.Equal(t, addr, c.Address())

	kp.Secret = "changed"
	held, ok := c.Keys()
	require.True(t, ok)
	assert.NotEqual(t, "changed", held.Secret)
}

func TestCallSignerSelection(t *testing.T) {
	var ts uint32
	tests := []struct {
		name   string
		keys   *keys.KeyPair
		policy UnsignedPolicy
		signer string
	}{
		{"keyed", newKeys(t), RejectUnsigned, "Keys"},
		{"keyed ignores policy", newKeys(t), AllowUnsigned, "Keys"},
		{"unsigned allowed", nil, AllowUnsigned, "None"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			net := chain(&ts)
			var seen tvm.ParamsOfProcessMessage
			process := net.ProcessMessageFunc
			net.ProcessMessageFunc = func(p tvm.ParamsOfProcessMessage) (tvm.ResultOfProcessMessage, error) {
				seen = p
				return process(p)
			}

			c, err := NewRuntime(net, WithUnsignedPolicy(tt.policy)).Bind(addr, abi.HelloWorld, tt.keys, "hello")
			require.NoError(t, err)

			txID, err := c.Call(context.Background(), "touch", nil)
			require.NoError(t, err)
			assert.Equal(t, "tx-touch", txID)

			assert.Equal(t, tt.signer, seen.MessageEncodeParams.Signer.Type)
			if tt.keys != nil {
				require.NotNil(t, seen.MessageEncodeParams.Signer.Keys)
				assert.Equal(t, *tt.keys, *seen.MessageEncodeParams.Signer.Keys)
			} else {
				assert.Nil(t, seen.MessageEncodeParams.Signer.Keys)
			}
			assert.Equal(t, addr, seen.MessageEncodeParams.Address)
		})
	}
}

func TestCallRejectsUnsignedByDefault(t *testing.T) {
	var ts uint32
	net := chain(&ts)
	c, err := NewRuntime(net).Bind(addr, abi.HelloWorld, nil, "hello")
	require.NoError(t, err)

	_, err = c.Call(context.Background(), "touch", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrConfig))
	assert.Zero(t, net.Count("ProcessMessage"))
	assert.Contains(t, err.Error(), addr)
	assert.Contains(t, err.Error(), "touch")
}

func TestCallUnknownFunctionDoesNoIO(t *testing.T) {
	net := &tvmtest.Network{}
	c, err := NewRuntime(net).Bind(addr, abi.HelloWorld, newKeys(t), "hello")
	require.NoError(t, err)

	_, err = c.Call(context.Background(), "destroy", nil)
	assert.True(t, errors.Is(err, errs.ErrEncoding))

	_, err = RunLocal[timestampResult](context.Background(), c, "destroy", nil)
	assert.True(t, errors.Is(err, errs.ErrEncoding))

	assert.Empty(t, net.Calls())
}

func TestCallFailures(t *testing.T) {
	t.Run("submission", func(t *testing.T) {
		net := &tvmtest.Network{ProcessMessageFunc: func(tvm.ParamsOfProcessMessage) (tvm.ResultOfProcessMessage, error) {
			return tvm.ResultOfProcessMessage{}, errors.New("message expired")
		}}
		c, err := NewRuntime(net).Bind(addr, abi.HelloWorld, newKeys(t), "hello")
		require.NoError(t, err)

		_, err = c.Call(context.Background(), "touch", nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrNetwork))
		assert.Equal(t, 1, net.Count("ProcessMessage"))

		e, ok := errs.As(err)
		require.True(t, ok)
		assert.Equal(t, addr, e.Address)
		assert.Equal(t, "touch", e.Function)
	})

	t.Run("no transaction id", func(t *testing.T) {
		net := &tvmtest.Network{ProcessMessageFunc: func(tvm.ParamsOfProcessMessage) (tvm.ResultOfProcessMessage, error) {
			return tvm.ResultOfProcessMessage{Transaction: json.RawMessage(`{}`)}, nil
		}}
		c, err := NewRuntime(net).Bind(addr, abi.HelloWorld, newKeys(t), "hello")
		require.NoError(t, err)

		_, err = c.Call(context.Background(), "touch", nil)
		assert.True(t, errors.Is(err, errs.ErrDecode))
	})
}

func TestCallIsJournaled(t *testing.T) {
	var ts uint32
	repo := storage.NewMemoryRepository()
	c, err := NewRuntime(chain(&ts), WithJournal(repo)).Bind(addr, abi.HelloWorld, newKeys(t), "hello")
	require.NoError(t, err)

	_, err = c.Call(context.Background(), "touch", nil)
	require.NoError(t, err)

	calls, err := repo.ListContractCalls(context.Background(), addr, 10, 0)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "touch", calls[0].Function)
	assert.Equal(t, "tx-touch", calls[0].TxID)
	assert.True(t, calls[0].Signed)
	assert.NotEmpty(t, calls[0].ID)
}

// ctxRepository refuses writes on a done context, like a database driver.
type ctxRepository struct {
	*storage.MemoryRepository
}

func (r ctxRepository) SaveContractCall(ctx context.Context, call *models.ContractCall) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.MemoryRepository.SaveContractCall(ctx, call)
}

func TestCancelledCallIsStillJournaled(t *testing.T) {
	repo := ctxRepository{storage.NewMemoryRepository()}
	ctx, cancel := context.WithCancel(context.Background())
	net := &tvmtest.Network{ProcessMessageFunc: func(tvm.ParamsOfProcessMessage) (tvm.ResultOfProcessMessage, error) {
		cancel()
		return tvm.ResultOfProcessMessage{}, context.Canceled
	}}
	c, err := NewRuntime(net, WithJournal(repo)).Bind(addr, abi.HelloWorld, newKeys(t), "hello")
	require.NoError(t, err)

	_, err = c.Call(ctx, "touch", nil)
	require.Error(t, err)

	calls, err := repo.ListContractCalls(context.Background(), addr, 10, 0)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "touch", calls[0].Function)
	assert.NotEmpty(t, calls[0].Error)
	assert.Empty(t, calls[0].TxID)
}

func TestRunLocalIsSideEffectFree(t *testing.T) {
	ts := uint32(1700000000)
	net := chain(&ts)
	c, err := NewRuntime(net).Bind(addr, abi.HelloWorld, newKeys(t), "hello")
	require.NoError(t, err)
	ctx := context.Background()

	first, err := RunLocal[timestampResult](ctx, c, "timestamp", nil)
	require.NoError(t, err)
	second, err := RunLocal[timestampResult](ctx, c, "timestamp", nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1700000000, first.Timestamp)
	assert.Zero(t, net.Count("ProcessMessage"))
	assert.Equal(t, 2, net.Count("RunTvm"))

	_, err = c.Call(ctx, "touch", nil)
	require.NoError(t, err)
	third, err := RunLocal[timestampResult](ctx, c, "timestamp", nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, third.Timestamp, first.Timestamp)
}

func TestRunLocalUsesUnsignedMessageAndFetchedState(t *testing.T) {
	var ts uint32
	net := chain(&ts)
	var encoded tvm.ParamsOfEncodeMessage
	var executed tvm.ParamsOfRunTvm
	encode, run := net.EncodeMessageFunc, net.RunTvmFunc
	net.EncodeMessageFunc = func(p tvm.ParamsOfEncodeMessage) (tvm.ResultOfEncodeMessage, error) {
		encoded = p
		return encode(p)
	}
	net.RunTvmFunc = func(p tvm.ParamsOfRunTvm) (tvm.ResultOfRunTvm, error) {
		executed = p
		return run(p)
	}

	c, err := NewRuntime(net).Bind(addr, abi.HelloWorld, newKeys(t), "hello")
	require.NoError(t, err)

	raw, err := c.RunLocalRaw(context.Background(), "timestamp", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"timestamp":"0"}`, string(raw))

	assert.Equal(t, "None", encoded.Signer.Type)
	assert.Equal(t, "te6cstate", executed.Account)
	assert.Equal(t, "te6cmsg:timestamp", executed.Message)
	require.NotNil(t, executed.Abi)
	assert.Equal(t, abi.HelloWorld.JSON(), executed.Abi.Value)
}

func TestRunLocalFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("no state", func(t *testing.T) {
		net := &tvmtest.Network{QueryCollectionFunc: func(tvm.ParamsOfQueryCollection) (tvm.ResultOfQueryCollection, error) {
			return tvm.ResultOfQueryCollection{}, nil
		}}
		c, err := NewRuntime(net).Bind(addr, abi.HelloWorld, nil, "hello")
		require.NoError(t, err)

		_, err = RunLocal[timestampResult](ctx, c, "timestamp", nil)
		assert.True(t, errors.Is(err, errs.ErrNotFound))
		assert.Zero(t, net.Count("RunTvm"))
	})

	output := func(out string) *tvmtest.Network {
		var ts uint32
		net := chain(&ts)
		net.RunTvmFunc = func(tvm.ParamsOfRunTvm) (tvm.ResultOfRunTvm, error) {
			if out == "" {
				return tvm.ResultOfRunTvm{}, nil
			}
			return tvm.ResultOfRunTvm{Decoded: &tvm.DecodedOutput{Output: json.RawMessage(out)}}, nil
		}
		return net
	}

	for name, out := range map[string]string{
		"missing output":  `{}`,
		"wrong shape":     `{"timestamp":"not a number"}`,
		"nothing decoded": "",
	} {
		t.Run(name, func(t *testing.T) {
			c, err := NewRuntime(output(out)).Bind(addr, abi.HelloWorld, nil, "hello")
			require.NoError(t, err)

			_, err = RunLocal[timestampResult](ctx, c, "timestamp", nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrDecode), "got %v", err)

			e, ok := errs.As(err)
			require.True(t, ok)
			assert.Equal(t, "timestamp", e.Function)
			assert.Equal(t, addr, e.Address)
		})
	}
}
