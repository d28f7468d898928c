package wallet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinafi/leverbot/internal/domain"
)

// Well-known development key (hardhat account #0).
const devKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
const devAddr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey("0x"+devKey, "pass123")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "pass123")
	require.NoError(t, err)
	assert.Equal(t, devKey, got)

	_, err = DecryptKey(blob, "wrong")
	assert.Error(t, err)
}

func TestEncryptKeyRejectsBadInput(t *testing.T) {
	_, err := EncryptKey(devKey, "")
	assert.Error(t, err)

	_, err = EncryptKey("zzzz", "pass")
	assert.Error(t, err)

	_, err = EncryptKey("abcd", "pass")
	assert.Error(t, err, "short keys are rejected")
}

func TestNewFromRawKey(t *testing.T) {
	w, err := New(KeyConfig{RawPrivateKey: "0x" + devKey}, 421614)
	require.NoError(t, err)
	assert.Equal(t, devAddr, w.Address().Hex())
	assert.EqualValues(t, 421614, w.ChainID().Int64())
}

func TestNewFromEncryptedFile(t *testing.T) {
	blob, err := EncryptKey(devKey, "pass123")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	w, err := New(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pass123"}, 31337)
	require.NoError(t, err)
	assert.Equal(t, devAddr, w.Address().Hex())
}

func TestNewWithoutKeySource(t *testing.T) {
	_, err := New(KeyConfig{}, 1)
	assert.ErrorIs(t, err, domain.ErrWalletNotConfigured)
}
