// Package account reads the on-chain state of a contract address.
package account

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"tvmdeploy/internal/errs"
	"tvmdeploy/internal/tvm"
)

// Type is the lifecycle state of an account.
type Type int

// The zero value is Nonexistent.
const (
	Nonexistent Type = iota
	Uninit
	Active
	Frozen
)

func (t Type) String() string {
	switch t {
	case Uninit:
		return "Uninit"
	case Active:
		return "Active"
	case Frozen:
		return "Frozen"
	case Nonexistent:
		return "NonExist"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Snapshot is the account state observed at one point in time.
type Snapshot struct {
	Type    Type
	Balance uint64
}

// ReadyToDeploy reports whether the address holds funds but no code yet.
func (s Snapshot) ReadyToDeploy() bool {
	return s.Type == Uninit && s.Balance > 0
}

const infoQuery = `query($address: String!){
  blockchain {
    account(address: $address) {
      info {
        acc_type
        balance(format: DEC)
      }
    }
  }
}`

// Fetcher reads account state through the GraphQL API.
type Fetcher struct {
	querier tvm.Querier
}

// NewFetcher creates a Fetcher.
func NewFetcher(querier tvm.Querier) *Fetcher {
	return &Fetcher{querier: querier}
}

type infoResponse struct {
	Data *struct {
		Blockchain *struct {
			Account *struct {
				Info *struct {
					AccType *int            `json:"acc_type"`
					Balance json.RawMessage `json:"balance"`
				} `json:"info"`
			} `json:"account"`
		} `json:"blockchain"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// FetchSnapshot returns the current lifecycle state and balance of address.
// An address the network has never seen is reported as Nonexistent with a
// zero balance.
func (f *Fetcher) FetchSnapshot(ctx context.Context, address string) (Snapshot, error) {
	const op = "fetch account snapshot"

	res, err := f.querier.Query(ctx, tvm.ParamsOfQuery{
		Query:     infoQuery,
		Variables: map[string]any{"address": address},
	})
	if err != nil {
		return Snapshot{}, wrap(err, op, address)
	}

	var resp infoResponse
	if err := json.Unmarshal(res.Result, &resp); err != nil {
		return Snapshot{}, (&errs.Error{Kind: errs.ErrDecode, Op: op, Err: err}).WithAddress(address)
	}

	if len(resp.Errors) > 0 {
		return Snapshot{}, errs.Newf(errs.ErrDecode, op, "query returned errors: %s", resp.Errors[0].Message).WithAddress(address)
	}
	if resp.Data == nil || resp.Data.Blockchain == nil {
		return Snapshot{}, errs.Newf(errs.ErrDecode, op, "response has no blockchain data").WithAddress(address)
	}

	acc := resp.Data.Blockchain.Account
	if acc == nil || acc.Info == nil {
		return Snapshot{Type: Nonexistent}, nil
	}
	if acc.Info.AccType == nil {
		return Snapshot{}, errs.Newf(errs.ErrDecode, op, "acc_type missing").WithAddress(address)
	}

	typ, err := typeFromCode(*acc.Info.AccType)
	if err != nil {
		return Snapshot{}, errs.New(errs.ErrDecode, op, err).WithAddress(address)
	}
	balance, err := parseBalance(acc.Info.Balance)
	if err != nil {
		return Snapshot{}, errs.New(errs.ErrDecode, op, err).WithAddress(address)
	}
	return Snapshot{Type: typ, Balance: balance}, nil
}

// FetchSerializedState returns the base64 bag of cells holding the full
// account state of address.
func (f *Fetcher) FetchSerializedState(ctx context.Context, address string) (string, error) {
	const op = "fetch account state"

	res, err := f.querier.QueryCollection(ctx, tvm.ParamsOfQueryCollection{
		Collection: "accounts",
		Filter:     map[string]any{"id": map[string]any{"eq": address}},
		Result:     "boc",
		Limit:      1,
	})
	if err != nil {
		return "", wrap(err, op, address)
	}
	if len(res.Result) == 0 {
		return "", errs.Newf(errs.ErrNotFound, op, "account not found").WithAddress(address)
	}

	var row struct {
		Boc *string `json:"boc"`
	}
	if err := json.Unmarshal(res.Result[0], &row); err != nil {
		return "", errs.New(errs.ErrDecode, op, err).WithAddress(address)
	}
	if row.Boc == nil || *row.Boc == "" {
		return "", errs.Newf(errs.ErrNotFound, op, "account does not contain boc").WithAddress(address)
	}
	return *row.Boc, nil
}

func typeFromCode(code int) (Type, error) {
	switch code {
	case 0:
		return Uninit, nil
	case 1:
		return Active, nil
	case 2:
		return Frozen, nil
	case 3:
		return Nonexistent, nil
	default:
		return 0, fmt.Errorf("unknown acc_type %d", code)
	}
}

// parseBalance accepts a decimal or 0x-prefixed hex string, or a JSON number.
func parseBalance(raw json.RawMessage) (uint64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	s = strings.TrimSpace(s)

	n, ok := new(big.Int), false
	if hex, found := strings.CutPrefix(s, "0x"); found {
		n, ok = n.SetString(hex, 16)
	} else {
		n, ok = n.SetString(s, 10)
	}
	if !ok || n.Sign() < 0 || !n.IsUint64() {
		return 0, fmt.Errorf("invalid balance %q", s)
	}
	return n.Uint64(), nil
}

// wrap binds address to a capability error, keeping its kind.
func wrap(err error, op, address string) error {
	if e, ok := errs.As(err); ok {
		return e.WithAddress(address)
	}
	return errs.New(errs.ErrNetwork, op, err).WithAddress(address)
}
