package message

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"

	"tvmdeploy/internal/errs"

	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

const pubkeyBits = 256

// Workchain ids are signed 8-bit values.
const (
	MinWorkchain = -128
	MaxWorkchain = 127
)

func checkWorkchain(op string, workchain int32) error {
	if workchain < MinWorkchain || workchain > MaxWorkchain {
		return errs.Newf(errs.ErrEncoding, op, "workchain %d out of range [%d, %d]", workchain, MinWorkchain, MaxWorkchain)
	}
	return nil
}

// rawAddress renders the "wc:hex" form of an account id.
func rawAddress(workchain int32, hash []byte) string {
	return fmt.Sprintf("%d:%s", workchain, hex.EncodeToString(hash))
}

// DeriveDeployAddress computes the address a code image will occupy once the
// initial public key is written into its data. The result depends only on
// the inputs; no network I/O is performed.
//
// Two initial-data layouts are recognized: the legacy one, where the key sits
// at index 0 of a 64-bit keyed dictionary, and the fields layout, where the
// data starts with the 256-bit key.
func DeriveDeployAddress(code []byte, publicKey string, workchain int32) (string, error) {
	const op = "derive deploy address"

	if err := checkWorkchain(op, workchain); err != nil {
		return "", err
	}
	pub, err := hex.DecodeString(publicKey)
	if err != nil || len(pub) != pubkeyBits/8 {
		return "", errs.Newf(errs.ErrEncoding, op, "initial public key must be %d hex-encoded bytes", pubkeyBits/8)
	}

	root, err := cell.FromBOC(code)
	if err != nil {
		return "", errs.New(errs.ErrEncoding, op, fmt.Errorf("code image is not a bag of cells: %w", err))
	}
	var si tlb.StateInit
	if err := tlb.LoadFromCell(&si, root.BeginParse()); err != nil {
		return "", errs.New(errs.ErrEncoding, op, fmt.Errorf("code image is not a state init: %w", err))
	}
	if si.Code == nil {
		return "", errs.Newf(errs.ErrEncoding, op, "code image carries no code")
	}

	data, err := withPublicKey(si.Data, pub)
	if err != nil {
		return "", errs.New(errs.ErrEncoding, op, err)
	}
	si.Data = data

	stateCell, err := tlb.ToCell(&si)
	if err != nil {
		return "", errs.New(errs.ErrEncoding, op, fmt.Errorf("failed to serialize state init: %w", err))
	}
	return rawAddress(workchain, stateCell.Hash()), nil
}

func withPublicKey(data *cell.Cell, pub []byte) (*cell.Cell, error) {
	if data == nil {
		return nil, fmt.Errorf("code image carries no initial data")
	}
	switch bits := data.BitsSize(); {
	case bits == 1:
		dict, err := data.BeginParse().LoadDict(64)
		if err != nil {
			return nil, fmt.Errorf("failed to load initial data dictionary: %w", err)
		}
		if dict == nil {
			dict = cell.NewDict(64)
		}
		key := cell.BeginCell().MustStoreSlice(pub, pubkeyBits).EndCell()
		if err := dict.SetIntKey(big.NewInt(0), key); err != nil {
			return nil, fmt.Errorf("failed to store public key: %w", err)
		}
		return cell.BeginCell().MustStoreDict(dict).EndCell(), nil

	case bits >= pubkeyBits:
		s := data.BeginParse()
		if _, err := s.LoadSlice(pubkeyBits); err != nil {
			return nil, err
		}
		b := cell.BeginCell().MustStoreSlice(pub, pubkeyBits)
		if rest := s.BitsLeft(); rest > 0 {
			tail, err := s.LoadSlice(rest)
			if err != nil {
				return nil, err
			}
			b.MustStoreSlice(tail, rest)
		}
		for s.RefsNum() > 0 {
			ref, err := s.LoadRefCell()
			if err != nil {
				return nil, err
			}
			b.MustStoreRef(ref)
		}
		return b.EndCell(), nil

	default:
		return nil, fmt.Errorf("unsupported initial data layout (%d bits)", bits)
	}
}

// RandomAddress returns a fresh raw address in workchain. Nothing is
// deployed there.
func RandomAddress(workchain int32) (string, error) {
	if err := checkWorkchain("generate random address", workchain); err != nil {
		return "", err
	}
	var hash [32]byte
	if _, err := rand.Read(hash[:]); err != nil {
		return "", fmt.Errorf("failed to generate address: %w", err)
	}
	return rawAddress(workchain, hash[:]), nil
}
