// Package errs defines the failure taxonomy shared by every component of the
// deployer. Each failure carries a kind, the step that failed and, when known,
// the contract address and function involved.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kinds of failure. Match them with errors.Is.
var (
	ErrConfig   = errors.New("config error")
	ErrNetwork  = errors.New("network error")
	ErrEncoding = errors.New("encoding error")
	ErrNotFound = errors.New("not found")
	ErrTimeout  = errors.New("timeout")
	ErrDecode   = errors.New("decode error")
)

// Error is a failure of a single step against a single contract.
type Error struct {
	Kind     error
	Op       string
	Address  string
	Function string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Function != "" {
		fmt.Fprintf(&b, " %s", e.Function)
	}
	if e.Address != "" {
		fmt.Fprintf(&b, " (%s)", e.Address)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	} else if e.Kind != nil {
		fmt.Fprintf(&b, ": %v", e.Kind)
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// New creates an Error of the given kind for op.
func New(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf creates an Error of the given kind with a formatted cause.
func Newf(kind error, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// WithAddress returns a copy of e bound to addr.
func (e *Error) WithAddress(addr string) *Error {
	c := *e
	c.Address = addr
	return &c
}

// WithFunction returns a copy of e bound to fn.
func (e *Error) WithFunction(fn string) *Error {
	c := *e
	c.Function = fn
	return &c
}

// KindOf returns the kind of err, or nil when err carries none.
func KindOf(err error) error {
	for _, k := range []error{ErrConfig, ErrNetwork, ErrEncoding, ErrNotFound, ErrTimeout, ErrDecode} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// As returns the outermost *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
