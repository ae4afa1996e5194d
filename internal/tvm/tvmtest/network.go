// Package tvmtest provides a scriptable tvm.Network for tests.
package tvmtest

import (
	"context"
	"errors"
	"sync"

	"tvmdeploy/internal/tvm"
)

// ErrUnexpected is returned by a Network method that has no handler.
var ErrUnexpected = errors.New("tvmtest: unexpected call")

// Network dispatches every capability call to the matching func field and
// records the method names in order. A nil field fails the call.
type Network struct {
	QueryFunc           func(tvm.ParamsOfQuery) (tvm.ResultOfQuery, error)
	QueryCollectionFunc func(tvm.ParamsOfQueryCollection) (tvm.ResultOfQueryCollection, error)
	EncodeMessageFunc   func(tvm.ParamsOfEncodeMessage) (tvm.ResultOfEncodeMessage, error)
	ProcessMessageFunc  func(tvm.ParamsOfProcessMessage) (tvm.ResultOfProcessMessage, error)
	RunTvmFunc          func(tvm.ParamsOfRunTvm) (tvm.ResultOfRunTvm, error)

	mu    sync.Mutex
	calls []string
}

var _ tvm.Network = (*Network)(nil)

func (n *Network) record(method string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, method)
}

// Calls returns the recorded method names.
func (n *Network) Calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.calls...)
}

// Count returns how many times method was called.
func (n *Network) Count(method string) int {
	count := 0
	for _, c := range n.Calls() {
		if c == method {
			count++
		}
	}
	return count
}

func (n *Network) Query(_ context.Context, p tvm.ParamsOfQuery) (tvm.ResultOfQuery, error) {
	n.record("Query")
	if n.QueryFunc == nil {
		return tvm.ResultOfQuery{}, ErrUnexpected
	}
	return n.QueryFunc(p)
}

func (n *Network) QueryCollection(_ context.Context, p tvm.ParamsOfQueryCollection) (tvm.ResultOfQueryCollection, error) {
	n.record("QueryCollection")
	if n.QueryCollectionFunc == nil {
		return tvm.ResultOfQueryCollection{}, ErrUnexpected
	}
	return n.QueryCollectionFunc(p)
}

func (n *Network) EncodeMessage(_ context.Context, p tvm.ParamsOfEncodeMessage) (tvm.ResultOfEncodeMessage, error) {
	n.record("EncodeMessage")
	if n.EncodeMessageFunc == nil {
		return tvm.ResultOfEncodeMessage{}, ErrUnexpected
	}
	return n.EncodeMessageFunc(p)
}

func (n *Network) ProcessMessage(_ context.Context, p tvm.ParamsOfProcessMessage) (tvm.ResultOfProcessMessage, error) {
	n.record("ProcessMessage")
	if n.ProcessMessageFunc == nil {
		return tvm.ResultOfProcessMessage{}, ErrUnexpected
	}
	return n.ProcessMessageFunc(p)
}

func (n *Network) RunTvm(_ context.Context, p tvm.ParamsOfRunTvm) (tvm.ResultOfRunTvm, error) {
	n.record("RunTvm")
	if n.RunTvmFunc == nil {
		return tvm.ResultOfRunTvm{}, ErrUnexpected
	}
	return n.RunTvmFunc(p)
}
