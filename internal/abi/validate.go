package abi

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"tvmdeploy/internal/errs"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// ValidateInputs checks args against the declared inputs of fn: every input
// must be present with a value of the declared shape, and nothing else may be
// passed. It performs no I/O.
func (fn *Function) ValidateInputs(args Args) error {
	declared := make(map[string]bool, len(fn.Inputs))
	for _, p := range fn.Inputs {
		declared[p.Name] = true
		v, ok := args[p.Name]
		if !ok {
			return fn.encodingError(fmt.Errorf("missing argument %q", p.Name))
		}
		if err := checkValue(p.Type, p.Components, v); err != nil {
			return fn.encodingError(fmt.Errorf("argument %q: %w", p.Name, err))
		}
	}
	for _, name := range args.Names() {
		if !declared[name] {
			return fn.encodingError(fmt.Errorf("unknown argument %q", name))
		}
	}
	return nil
}

// DecodeOutput checks that output holds every declared output of fn and
// unmarshals it into target.
func (fn *Function) DecodeOutput(output json.RawMessage, target any) error {
	var fields map[string]json.RawMessage
	if len(output) == 0 || string(output) == "null" {
		fields = map[string]json.RawMessage{}
	} else if err := json.Unmarshal(output, &fields); err != nil {
		return fn.decodeError(fmt.Errorf("output is not an object: %w", err))
	}
	for _, p := range fn.Outputs {
		if _, ok := fields[p.Name]; !ok {
			return fn.decodeError(fmt.Errorf("output %q missing", p.Name))
		}
	}
	if target == nil {
		return nil
	}
	if len(output) == 0 {
		output = json.RawMessage("{}")
	}
	if err := json.Unmarshal(output, target); err != nil {
		return fn.decodeError(err)
	}
	return nil
}

func (fn *Function) encodingError(err error) error {
	return &errs.Error{Kind: errs.ErrEncoding, Op: "validate arguments", Function: fn.Name, Err: err}
}

func (fn *Function) decodeError(err error) error {
	return &errs.Error{Kind: errs.ErrDecode, Op: "decode output", Function: fn.Name, Err: err}
}

func checkValue(typ string, components []Param, v Value) error {
	switch {
	case strings.HasSuffix(typ, "[]"):
		if v.kind != KindArray {
			return mismatch(typ, v)
		}
		elem := strings.TrimSuffix(typ, "[]")
		for i, item := range v.items {
			if err := checkValue(elem, components, item); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
		return nil
	case strings.HasPrefix(typ, "optional(") && strings.HasSuffix(typ, ")"):
		if v.kind == KindNull {
			return nil
		}
		return checkValue(typ[len("optional("):len(typ)-1], components, v)
	case typ == "tuple":
		return checkTuple(components, v)
	case typ == "bool":
		if v.kind != KindBool {
			return mismatch(typ, v)
		}
		return nil
	case typ == "string":
		if v.kind != KindString {
			return mismatch(typ, v)
		}
		return nil
	case typ == "address" || typ == "address_std":
		if v.kind != KindAddress {
			return mismatch(typ, v)
		}
		return ValidateAddress(v.text)
	case typ == "cell":
		if v.kind != KindCell {
			return mismatch(typ, v)
		}
		return checkCell(v.text)
	case typ == "bytes":
		if v.kind != KindBytes {
			return mismatch(typ, v)
		}
		return nil
	case strings.HasPrefix(typ, "fixedbytes"):
		n, err := strconv.Atoi(strings.TrimPrefix(typ, "fixedbytes"))
		if err != nil {
			return fmt.Errorf("unsupported type %q", typ)
		}
		if v.kind != KindBytes {
			return mismatch(typ, v)
		}
		if len(v.raw) != n {
			return fmt.Errorf("%s needs %d bytes, got %d", typ, n, len(v.raw))
		}
		return nil
	case strings.HasPrefix(typ, "varuint"), strings.HasPrefix(typ, "varint"):
		signed := strings.HasPrefix(typ, "varint")
		n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimPrefix(typ, "varuint"), "varint"))
		if err != nil || (n != 16 && n != 32) {
			return fmt.Errorf("unsupported type %q", typ)
		}
		return checkInteger(typ, (n-1)*8, signed, v)
	case strings.HasPrefix(typ, "uint"), strings.HasPrefix(typ, "int"):
		signed := strings.HasPrefix(typ, "int")
		bits, err := strconv.Atoi(strings.TrimPrefix(strings.TrimPrefix(typ, "uint"), "int"))
		if err != nil || bits < 1 || bits > 256 {
			return fmt.Errorf("unsupported type %q", typ)
		}
		return checkInteger(typ, bits, signed, v)
	default:
		return fmt.Errorf("unsupported type %q", typ)
	}
}

func checkTuple(components []Param, v Value) error {
	if v.kind != KindTuple {
		return mismatch("tuple", v)
	}
	declared := make(map[string]bool, len(components))
	for _, c := range components {
		declared[c.Name] = true
		field, ok := v.fields[c.Name]
		if !ok {
			return fmt.Errorf("missing tuple field %q", c.Name)
		}
		if err := checkValue(c.Type, c.Components, field); err != nil {
			return fmt.Errorf("tuple field %q: %w", c.Name, err)
		}
	}
	for name := range v.fields {
		if !declared[name] {
			return fmt.Errorf("unknown tuple field %q", name)
		}
	}
	return nil
}

func checkInteger(typ string, bits int, signed bool, v Value) error {
	if v.kind != KindInteger {
		return mismatch(typ, v)
	}
	if !signed {
		if v.num.Sign() < 0 {
			return fmt.Errorf("%s cannot hold negative value %s", typ, v.num)
		}
		if v.num.BitLen() > bits {
			return fmt.Errorf("%s overflow: %s", typ, v.num)
		}
		return nil
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
	lowest := new(big.Int).Neg(limit)
	if v.num.Cmp(lowest) < 0 || v.num.Cmp(limit) >= 0 {
		return fmt.Errorf("%s overflow: %s", typ, v.num)
	}
	return nil
}

// ValidateAddress accepts a raw ("wc:hex") or user-friendly address.
func ValidateAddress(s string) error {
	if _, err := address.ParseRawAddr(s); err == nil {
		return nil
	}
	if _, err := address.ParseAddr(s); err != nil {
		return fmt.Errorf("invalid address %q", s)
	}
	return nil
}

func checkCell(boc string) error {
	raw, err := base64.StdEncoding.DecodeString(boc)
	if err != nil {
		return fmt.Errorf("cell is not base64: %w", err)
	}
	if _, err := cell.FromBOC(raw); err != nil {
		return fmt.Errorf("cell is not a valid bag of cells: %w", err)
	}
	return nil
}

func mismatch(typ string, v Value) error {
	return fmt.Errorf("expected %s, got %s", typ, v.kind)
}
