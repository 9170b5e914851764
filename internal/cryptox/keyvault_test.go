package cryptox

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/common"
)

func newTestVault(t *testing.T) *KeyVault {
	t.Helper()
	v, err := NewSingleKeyVault("master-password", MinIterations)
	require.NoError(t, err)
	return v
}

func TestNewKeyVault_Validation(t *testing.T) {
	_, err := NewSingleKeyVault("pw", MinIterations-1)
	assert.Error(t, err, "iterations below minimum must be rejected")

	_, err = NewKeyVault(map[int]string{1: "pw"}, 2, MinIterations)
	assert.Error(t, err, "current version without secret must be rejected")

	_, err = NewKeyVault(map[int]string{1: ""}, 1, MinIterations)
	assert.Error(t, err, "empty secret must be rejected")
}

func TestKeyVault_NewDataKey(t *testing.T) {
	v := newTestVault(t)
	k1, err := v.NewDataKey()
	require.NoError(t, err)
	k2, err := v.NewDataKey()
	require.NoError(t, err)

	assert.Len(t, k1, KeySize)
	assert.NotEqual(t, k1, k2, "data keys must not repeat")
}

func TestKeyVault_WrapUnwrap(t *testing.T) {
	v := newTestVault(t)
	dataKey, err := v.NewDataKey()
	require.NoError(t, err)

	env, version, err := v.Wrap(dataKey)
	require.NoError(t, err)
	assert.Equal(t, DefaultKeyVersion, version)

	raw, err := base64.StdEncoding.DecodeString(env)
	require.NoError(t, err)
	assert.Len(t, raw, SaltSize+NonceSize+TagSize+KeySize)

	got, err := v.Unwrap(env, version)
	require.NoError(t, err)
	assert.Equal(t, dataKey, got)
}

func TestKeyVault_WrapIsNotDeterministic(t *testing.T) {
	v := newTestVault(t)
	dataKey, err := v.NewDataKey()
	require.NoError(t, err)

	e1, _, err := v.Wrap(dataKey)
	require.NoError(t, err)
	e2, _, err := v.Wrap(dataKey)
	require.NoError(t, err)
	assert.NotEqual(t, e1, e2, "salt and nonce must be fresh per wrap")

	r1, _ := base64.StdEncoding.DecodeString(e1)
	r2, _ := base64.StdEncoding.DecodeString(e2)
	assert.False(t, bytes.Equal(r1[:SaltSize], r2[:SaltSize]))
	assert.False(t, bytes.Equal(r1[SaltSize:SaltSize+NonceSize], r2[SaltSize:SaltSize+NonceSize]))
}

func TestKeyVault_UnwrapTampered(t *testing.T) {
	v := newTestVault(t)
	dataKey, err := v.NewDataKey()
	require.NoError(t, err)
	env, version, err := v.Wrap(dataKey)
	require.NoError(t, err)

	raw, _ := base64.StdEncoding.DecodeString(env)
	for _, i := range []int{0, SaltSize, SaltSize + NonceSize, len(raw) - 1} {
		c := append([]byte(nil), raw...)
		c[i] ^= 0x80
		_, err := v.Unwrap(base64.StdEncoding.EncodeToString(c), version)
		assert.Truef(t, errors.Is(err, common.ErrIntegrity), "offset %d: want ErrIntegrity, got %v", i, err)
	}
}

func TestKeyVault_UnwrapWrongMaster(t *testing.T) {
	v := newTestVault(t)
	other, err := NewSingleKeyVault("another-password", MinIterations)
	require.NoError(t, err)

	dataKey, _ := v.NewDataKey()
	env, version, err := v.Wrap(dataKey)
	require.NoError(t, err)

	_, err = other.Unwrap(env, version)
	assert.ErrorIs(t, err, common.ErrIntegrity)
}

func TestKeyVault_UnwrapFormatErrors(t *testing.T) {
	v := newTestVault(t)

	_, err := v.Unwrap("***not base64***", DefaultKeyVersion)
	assert.ErrorIs(t, err, common.ErrFormat)

	short := base64.StdEncoding.EncodeToString(make([]byte, SaltSize+NonceSize+TagSize))
	_, err = v.Unwrap(short, DefaultKeyVersion)
	assert.ErrorIs(t, err, common.ErrFormat)

	dataKey, _ := v.NewDataKey()
	env, _, err := v.Wrap(dataKey)
	require.NoError(t, err)
	_, err = v.Unwrap(env, 42)
	assert.ErrorIs(t, err, common.ErrFormat)
}

func TestKeyVault_RotationKeepsOldEnvelopesReadable(t *testing.T) {
	old, err := NewKeyVault(map[int]string{1: "v1-secret"}, 1, MinIterations)
	require.NoError(t, err)
	dataKey, _ := old.NewDataKey()
	env, version, err := old.Wrap(dataKey)
	require.NoError(t, err)

	rotated, err := NewKeyVault(map[int]string{1: "v1-secret", 2: "v2-secret"}, 2, MinIterations)
	require.NoError(t, err)
	assert.Equal(t, 2, rotated.CurrentVersion())

	got, err := rotated.Unwrap(env, version)
	require.NoError(t, err)
	assert.Equal(t, dataKey, got)

	_, newVersion, err := rotated.Wrap(dataKey)
	require.NoError(t, err)
	assert.Equal(t, 2, newVersion)
}

func TestKeyVault_WrapInvalidKey(t *testing.T) {
	v := newTestVault(t)
	_, _, err := v.Wrap([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}
