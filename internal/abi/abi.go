// Package abi parses contract interface descriptions (ABI documents) and
// checks call arguments against them before any message is encoded.
package abi

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"tvmdeploy/internal/errs"
)

// Param is a function input or output.
type Param struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Components []Param `json:"components,omitempty"`
}

// Function is a callable entry point of a contract.
type Function struct {
	Name    string  `json:"name"`
	Inputs  []Param `json:"inputs"`
	Outputs []Param `json:"outputs"`
}

// Field is a persistent storage field (ABI 2.4+).
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Init bool   `json:"init"`
}

type document struct {
	ABIVersion int               `json:"ABI version"`
	Version    string            `json:"version"`
	Header     []string          `json:"header"`
	Functions  []Function        `json:"functions"`
	Events     []json.RawMessage `json:"events"`
	Data       []json.RawMessage `json:"data"`
	Fields     []Field           `json:"fields"`
}

// Interface is a parsed interface description. It is immutable and safe to
// share between contracts and goroutines.
type Interface struct {
	name      string
	raw       string
	doc       document
	functions map[string]*Function
}

// Parse parses an ABI document. name is only used for display.
func Parse(name string, raw []byte) (*Interface, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errs.New(errs.ErrConfig, "parse interface "+name, err)
	}
	if doc.ABIVersion == 0 {
		return nil, errs.Newf(errs.ErrConfig, "parse interface "+name, "missing \"ABI version\"")
	}

	functions := make(map[string]*Function, len(doc.Functions))
	for i := range doc.Functions {
		fn := &doc.Functions[i]
		if fn.Name == "" {
			return nil, errs.Newf(errs.ErrConfig, "parse interface "+name, "function #%d has no name", i)
		}
		if _, dup := functions[fn.Name]; dup {
			return nil, errs.Newf(errs.ErrConfig, "parse interface "+name, "duplicate function %q", fn.Name)
		}
		functions[fn.Name] = fn
	}

	return &Interface{
		name:      name,
		raw:       string(raw),
		doc:       doc,
		functions: functions,
	}, nil
}

// MustParse is Parse for documents known to be valid, such as embedded ones.
func MustParse(name string, raw []byte) *Interface {
	iface, err := Parse(name, raw)
	if err != nil {
		panic(err)
	}
	return iface
}

// LoadFile reads and parses an ABI document from disk. The display name is
// the file name without its ".abi.json" suffix.
func LoadFile(path string) (*Interface, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.New(errs.ErrConfig, "load interface", fmt.Errorf("failed to read %s: %w", path, err))
	}
	name := strings.TrimSuffix(filepath.Base(path), ".abi.json")
	return Parse(name, raw)
}

// Name returns the display name of the interface.
func (i *Interface) Name() string { return i.name }

// JSON returns the document exactly as it was parsed.
func (i *Interface) JSON() string { return i.raw }

// Version returns the declared ABI version string, e.g. "2.4".
func (i *Interface) Version() string {
	if i.doc.Version != "" {
		return i.doc.Version
	}
	return fmt.Sprintf("%d", i.doc.ABIVersion)
}

// Header lists the message header fields the contract expects.
func (i *Interface) Header() []string { return i.doc.Header }

// Fields lists the persistent storage fields, if the document declares them.
func (i *Interface) Fields() []Field { return i.doc.Fields }

// HasFunction reports whether name is declared.
func (i *Interface) HasFunction(name string) bool {
	_, ok := i.functions[name]
	return ok
}

// Function looks up a declared function.
func (i *Interface) Function(name string) (*Function, error) {
	fn, ok := i.functions[name]
	if !ok {
		return nil, &errs.Error{
			Kind:     errs.ErrEncoding,
			Op:       "lookup function",
			Function: name,
			Err:      fmt.Errorf("interface %s does not declare function %q", i.name, name),
		}
	}
	return fn, nil
}

// Functions returns the declared function names in sorted order.
func (i *Interface) Functions() []string {
	names := make([]string, 0, len(i.functions))
	for name := range i.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
