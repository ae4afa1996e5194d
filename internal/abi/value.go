package abi

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
)

// Kind tags the shape held by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInteger
	KindBool
	KindAddress
	KindString
	KindBytes
	KindCell
	KindTuple
	KindArray
	KindNull
)

var kindNames = map[Kind]string{
	KindInvalid: "invalid",
	KindInteger: "integer",
	KindBool:    "bool",
	KindAddress: "address",
	KindString:  "string",
	KindBytes:   "bytes",
	KindCell:    "cell",
	KindTuple:   "tuple",
	KindArray:   "array",
	KindNull:    "null",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Value is a single call argument. Build values with the constructors below;
// the zero Value is invalid and never passes validation.
type Value struct {
	kind   Kind
	num    *big.Int
	flag   bool
	text   string
	raw    []byte
	fields map[string]Value
	items  []Value
}

// Args maps input names to values.
type Args map[string]Value

func Uint(v uint64) Value { return Value{kind: KindInteger, num: new(big.Int).SetUint64(v)} }

func Int(v int64) Value { return Value{kind: KindInteger, num: big.NewInt(v)} }

// BigInt copies v.
func BigInt(v *big.Int) Value { return Value{kind: KindInteger, num: new(big.Int).Set(v)} }

func Bool(v bool) Value { return Value{kind: KindBool, flag: v} }

// Address holds a contract address, raw ("0:<hex>") or user-friendly.
func Address(addr string) Value { return Value{kind: KindAddress, text: addr} }

func String(s string) Value { return Value{kind: KindString, text: s} }

func Bytes(b []byte) Value { return Value{kind: KindBytes, raw: append([]byte(nil), b...)} }

// Cell holds a base64 encoded bag of cells.
func Cell(boc string) Value { return Value{kind: KindCell, text: boc} }

func Tuple(fields map[string]Value) Value {
	cp := make(map[string]Value, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return Value{kind: KindTuple, fields: cp}
}

func Array(items ...Value) Value {
	return Value{kind: KindArray, items: append([]Value(nil), items...)}
}

// Null is the absent value of an optional(T) input.
func Null() Value { return Value{kind: KindNull} }

func (v Value) Kind() Kind { return v.kind }

// MarshalJSON renders the value the way the SDK expects call inputs:
// integers as decimal strings, bytes as hex.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInteger:
		return json.Marshal(v.num.String())
	case KindBool:
		return json.Marshal(v.flag)
	case KindAddress, KindString, KindCell:
		return json.Marshal(v.text)
	case KindBytes:
		return json.Marshal(hex.EncodeToString(v.raw))
	case KindTuple:
		return json.Marshal(v.fields)
	case KindArray:
		if v.items == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.items)
	case KindNull:
		return []byte("null"), nil
	default:
		return nil, fmt.Errorf("cannot marshal %s value", v.kind)
	}
}

// Names returns the argument names in sorted order.
func (a Args) Names() []string {
	names := make([]string, 0, len(a))
	for name := range a {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
