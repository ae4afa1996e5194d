package keys

import (
	"crypto/ed25519"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"tvmdeploy/internal/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keys.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestGenerateMatchesEd25519(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)
	require.NoError(t, kp.Validate())

	seed, err := hex.DecodeString(kp.Secret)
	require.NoError(t, err)
	expected := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	assert.Equal(t, hex.EncodeToString(expected), kp.Public)

	other, err := Generate()
	require.NoError(t, err)
	assert.NotEqual(t, kp.Public, other.Public)
}

func TestLoad(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	path := writeFile(t, `{"public": "`+kp.Public+`", "secret": "`+kp.Secret+`"}`)
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, kp, loaded)
}

func TestLoadFailures(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)
	other, err := Generate()
	require.NoError(t, err)

	tests := []struct {
		name    string
		content string
	}{
		{"not json", `not json`},
		{"short public", `{"public": "abcd", "secret": "` + kp.Secret + `"}`},
		{"not hex", `{"public": "` + kp.Public + `", "secret": "zz"}`},
		{"mismatched halves", `{"public": "` + other.Public + `", "secret": "` + kp.Secret + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrConfig)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
		assert.ErrorIs(t, err, errs.ErrConfig)
	})
}

func TestStringHidesSecret(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)
	assert.NotContains(t, kp.String(), kp.Secret)
}
