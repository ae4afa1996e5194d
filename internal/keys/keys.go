// Package keys loads and generates the ed25519 key pairs that sign deploy and
// call messages.
package keys

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"tvmdeploy/internal/errs"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/strkey"
)

// KeyLength is the size in bytes of both halves of an ed25519 key pair as the
// TVM SDK exchanges them (public key and 32-byte seed).
const KeyLength = 32

// KeyPair is a signing key pair in the TVM SDK JSON layout: both halves are
// lowercase hex.
type KeyPair struct {
	Public string `json:"public"`
	Secret string `json:"secret"`
}

// Load reads a key pair document from path and checks that the public half
// belongs to the secret half.
func Load(path string) (KeyPair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return KeyPair{}, errs.New(errs.ErrConfig, "load keys", fmt.Errorf("failed to read key file %s: %w", path, err))
	}

	var kp KeyPair
	if err := json.Unmarshal(raw, &kp); err != nil {
		return KeyPair{}, errs.New(errs.ErrConfig, "load keys", fmt.Errorf("invalid key file %s: %w", path, err))
	}
	kp.Public = strings.ToLower(strings.TrimSpace(kp.Public))
	kp.Secret = strings.ToLower(strings.TrimSpace(kp.Secret))

	if err := kp.Validate(); err != nil {
		return KeyPair{}, errs.New(errs.ErrConfig, "load keys", fmt.Errorf("invalid key file %s: %w", path, err))
	}
	return kp, nil
}

// Generate returns a fresh random key pair.
func Generate() (KeyPair, error) {
	full, err := keypair.Random()
	if err != nil {
		return KeyPair{}, fmt.Errorf("failed to generate key pair: %w", err)
	}
	return fromFull(full)
}

// FromSeed rebuilds the key pair for a 32-byte seed.
func FromSeed(seed [KeyLength]byte) (KeyPair, error) {
	full, err := keypair.FromRawSeed(seed)
	if err != nil {
		return KeyPair{}, fmt.Errorf("failed to derive key pair: %w", err)
	}
	return fromFull(full)
}

func fromFull(full *keypair.Full) (KeyPair, error) {
	seed, err := strkey.Decode(strkey.VersionByteSeed, full.Seed())
	if err != nil {
		return KeyPair{}, fmt.Errorf("failed to decode seed: %w", err)
	}
	public, err := strkey.Decode(strkey.VersionByteAccountID, full.Address())
	if err != nil {
		return KeyPair{}, fmt.Errorf("failed to decode public key: %w", err)
	}
	return KeyPair{
		Public: hex.EncodeToString(public),
		Secret: hex.EncodeToString(seed),
	}, nil
}

// Validate checks both halves are well formed and belong together.
func (kp KeyPair) Validate() error {
	public, err := decodeKey("public", kp.Public)
	if err != nil {
		return err
	}
	secret, err := decodeKey("secret", kp.Secret)
	if err != nil {
		return err
	}

	var seed [KeyLength]byte
	copy(seed[:], secret)
	derived, err := FromSeed(seed)
	if err != nil {
		return err
	}
	if derived.Public != hex.EncodeToString(public) {
		return fmt.Errorf("public key does not match secret key")
	}
	return nil
}

// PublicKey returns the raw public key bytes.
func (kp KeyPair) PublicKey() ([]byte, error) {
	return decodeKey("public", kp.Public)
}

// String never prints the secret half.
func (kp KeyPair) String() string {
	return "KeyPair{public: " + kp.Public + "}"
}

func decodeKey(name, value string) ([]byte, error) {
	b, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%s key is not hex: %w", name, err)
	}
	if len(b) != KeyLength {
		return nil, fmt.Errorf("%s key must be %d bytes, got %d", name, KeyLength, len(b))
	}
	return b, nil
}
