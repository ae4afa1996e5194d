// Package message builds deploy and call messages for contracts described by
// an ABI document. Argument checks happen here, before any encoding request
// leaves the process.
package message

import (
	"context"
	"encoding/base64"
	"time"

	"tvmdeploy/internal/abi"
	"tvmdeploy/internal/errs"
	"tvmdeploy/internal/keys"
	"tvmdeploy/internal/tvm"
)

const constructor = "constructor"

// Encoded is an encoded external message.
type Encoded struct {
	// Payload is the base64 bag of cells of the message.
	Payload string
	// Address is the destination. For deploy messages it is the address
	// calculated by the encoder.
	Address string
	ID      string
}

// Signer decides whether a message is signed. The zero value is unsigned.
type Signer struct {
	keys *keys.KeyPair
}

// Keyed signs with the full key pair.
func Keyed(kp keys.KeyPair) Signer { return Signer{keys: &kp} }

// Unsigned leaves the message unsigned.
func Unsigned() Signer { return Signer{} }

// SignerFor picks Keyed when kp is present and Unsigned otherwise.
func SignerFor(kp *keys.KeyPair) Signer {
	if kp == nil {
		return Unsigned()
	}
	return Keyed(*kp)
}

func (s Signer) IsKeyed() bool { return s.keys != nil }

func (s Signer) String() string {
	if s.IsKeyed() {
		return "keyed"
	}
	return "unsigned"
}

func (s Signer) sdk() tvm.Signer {
	if s.keys == nil {
		return tvm.SignerNone()
	}
	return tvm.SignerKeys(*s.keys)
}

// Deploy describes a contract about to be deployed.
type Deploy struct {
	Code      []byte
	Interface *abi.Interface
	Keys      keys.KeyPair
	Workchain int32
}

// Builder builds messages. Params methods are pure; Build methods hand the
// params to the encoder.
type Builder struct {
	encoder tvm.Encoder
	now     func() time.Time
}

// NewBuilder creates a Builder backed by encoder.
func NewBuilder(encoder tvm.Encoder) *Builder {
	return &Builder{encoder: encoder, now: time.Now}
}

// AddressParams returns encode params that only compute the future address:
// code image plus initial public key, no constructor call.
func (b *Builder) AddressParams(d Deploy) tvm.ParamsOfEncodeMessage {
	return tvm.ParamsOfEncodeMessage{
		Abi:       tvm.AbiJSON(d.Interface.JSON()),
		DeploySet: deploySet(d),
		Signer:    tvm.SignerExternal(d.Keys.Public),
	}
}

// DeployParams returns encode params for the deploy message: the code image
// and a constructor call stamped with the current time in milliseconds,
// signed with the full key pair.
func (b *Builder) DeployParams(d Deploy) (tvm.ParamsOfEncodeMessage, error) {
	fn, err := d.Interface.Function(constructor)
	if err != nil {
		return tvm.ParamsOfEncodeMessage{}, err
	}
	if err := fn.ValidateInputs(nil); err != nil {
		return tvm.ParamsOfEncodeMessage{}, err
	}

	now := uint64(b.now().UnixMilli())
	return tvm.ParamsOfEncodeMessage{
		Abi:       tvm.AbiJSON(d.Interface.JSON()),
		DeploySet: deploySet(d),
		CallSet: &tvm.CallSet{
			FunctionName: constructor,
			Header:       &tvm.FunctionHeader{Time: &now},
		},
		Signer: tvm.SignerKeys(d.Keys),
	}, nil
}

// CallParams checks fn and args against iface and returns encode params for
// a call to address. It performs no I/O.
func CallParams(address string, iface *abi.Interface, fn string, args abi.Args, signer Signer) (tvm.ParamsOfEncodeMessage, error) {
	f, err := iface.Function(fn)
	if err != nil {
		return tvm.ParamsOfEncodeMessage{}, addressed(err, address)
	}
	if err := f.ValidateInputs(args); err != nil {
		return tvm.ParamsOfEncodeMessage{}, addressed(err, address)
	}

	callSet := &tvm.CallSet{FunctionName: fn}
	if len(args) > 0 {
		callSet.Input = args
	}
	return tvm.ParamsOfEncodeMessage{
		Abi:     tvm.AbiJSON(iface.JSON()),
		Address: address,
		CallSet: callSet,
		Signer:  signer.sdk(),
	}, nil
}

// BuildDeployMessage encodes the deploy message for d.
func (b *Builder) BuildDeployMessage(ctx context.Context, d Deploy) (Encoded, error) {
	params, err := b.DeployParams(d)
	if err != nil {
		return Encoded{}, err
	}
	return b.encode(ctx, "build deploy message", params)
}

// BuildCallMessage encodes a call of fn on address.
func (b *Builder) BuildCallMessage(ctx context.Context, address string, iface *abi.Interface, fn string, args abi.Args, signer Signer) (Encoded, error) {
	params, err := CallParams(address, iface, fn, args, signer)
	if err != nil {
		return Encoded{}, err
	}
	msg, err := b.encode(ctx, "build call message", params)
	if err != nil {
		return Encoded{}, addressed(withFunction(err, fn), address)
	}
	return msg, nil
}

// EncoderAddress asks the encoder where d will be deployed.
func (b *Builder) EncoderAddress(ctx context.Context, d Deploy) (string, error) {
	msg, err := b.encode(ctx, "calculate deploy address", b.AddressParams(d))
	if err != nil {
		return "", err
	}
	return msg.Address, nil
}

func (b *Builder) encode(ctx context.Context, op string, params tvm.ParamsOfEncodeMessage) (Encoded, error) {
	res, err := b.encoder.EncodeMessage(ctx, params)
	if err != nil {
		if _, ok := errs.As(err); ok {
			return Encoded{}, err
		}
		return Encoded{}, errs.New(errs.ErrEncoding, op, err)
	}
	return Encoded{Payload: res.Message, Address: res.Address, ID: res.MessageID}, nil
}

func deploySet(d Deploy) *tvm.DeploySet {
	wc := d.Workchain
	return &tvm.DeploySet{
		Tvc:           base64.StdEncoding.EncodeToString(d.Code),
		WorkchainID:   &wc,
		InitialPubkey: d.Keys.Public,
	}
}

func addressed(err error, address string) error {
	if e, ok := errs.As(err); ok && e.Address == "" {
		return e.WithAddress(address)
	}
	return err
}

func withFunction(err error, fn string) error {
	if e, ok := errs.As(err); ok && e.Function == "" {
		return e.WithFunction(fn)
	}
	return err
}
