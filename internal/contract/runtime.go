// Package contract binds an address to its interface description and keys,
// and runs functions on it either locally against a state snapshot or as
// submitted transactions.
package contract

import (
	"fmt"
	"strings"

	"tvmdeploy/internal/abi"
	"tvmdeploy/internal/account"
	"tvmdeploy/internal/errs"
	"tvmdeploy/internal/keys"
	"tvmdeploy/internal/message"
	"tvmdeploy/internal/storage"
	"tvmdeploy/internal/tvm"
)

// UnsignedPolicy decides what Call does for a contract bound without keys.
type UnsignedPolicy int

const (
	// RejectUnsigned refuses to submit unsigned calls.
	RejectUnsigned UnsignedPolicy = iota
	// AllowUnsigned submits them with no signature.
	AllowUnsigned
)

func (p UnsignedPolicy) String() string {
	if p == AllowUnsigned {
		return "allow"
	}
	return "reject"
}

// ParseUnsignedPolicy parses "reject" or "allow". An empty string is reject.
func ParseUnsignedPolicy(s string) (UnsignedPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return RejectUnsigned, nil
	case "allow":
		return AllowUnsigned, nil
	default:
		return 0, errs.Newf(errs.ErrConfig, "parse unsigned call policy", "unknown policy %q (want reject or allow)", s)
	}
}

// Runtime holds what every bound contract shares: the network capability
// and the components built on top of it. It is read-only after construction.
type Runtime struct {
	builder   *message.Builder
	fetcher   *account.Fetcher
	processor tvm.Processor
	executor  tvm.Executor
	policy    UnsignedPolicy
	journal   storage.Repository
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithUnsignedPolicy sets the unsigned call policy. The default rejects.
func WithUnsignedPolicy(p UnsignedPolicy) Option {
	return func(r *Runtime) { r.policy = p }
}

// WithJournal records every submitted call in repo.
func WithJournal(repo storage.Repository) Option {
	return func(r *Runtime) { r.journal = repo }
}

// NewRuntime creates a Runtime on top of network.
func NewRuntime(network tvm.Network, opts ...Option) *Runtime {
	r := &Runtime{
		builder:   message.NewBuilder(network),
		fetcher:   account.NewFetcher(network),
		processor: network,
		executor:  network,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runtime) Builder() *message.Builder { return r.builder }

func (r *Runtime) Fetcher() *account.Fetcher { return r.fetcher }

func (r *Runtime) Processor() tvm.Processor { return r.processor }

func (r *Runtime) Journal() storage.Repository { return r.journal }

// Bind creates the identity of a contract at address. kp may be nil for a
// contract whose keys are not held.
func (r *Runtime) Bind(address string, iface *abi.Interface, kp *keys.KeyPair, name string) (*Contract, error) {
	if err := abi.ValidateAddress(address); err != nil {
		return nil, errs.New(errs.ErrConfig, "bind contract "+name, err)
	}
	if iface == nil {
		return nil, errs.Newf(errs.ErrConfig, "bind contract "+name, "no interface description")
	}
	if name == "" {
		name = iface.Name()
	}

	c := &Contract{address: address, iface: iface, name: name, rt: r}
	if kp != nil {
		if err := kp.Validate(); err != nil {
			return nil, errs.New(errs.ErrConfig, "bind contract "+name, fmt.Errorf("invalid keys: %w", err))
		}
		cp := *kp
		c.keys = &cp
	}
	return c, nil
}
