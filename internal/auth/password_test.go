package auth

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	h := NewPasswordHasher()

	hash, salt, err := h.Hash("Sup3r$ecret")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEmpty(t, salt)

	assert.True(t, h.Verify("Sup3r$ecret", hash, salt))
	assert.False(t, h.Verify("wrong-password", hash, salt))
}

func TestPasswordHasher_Hash_EmptyPassword(t *testing.T) {
	h := NewPasswordHasher()
	_, _, err := h.Hash("")
	assert.Error(t, err)
}

func TestPasswordHasher_Hash_SaltIsUnique(t *testing.T) {
	h := NewPasswordHasher()

	hash1, salt1, err := h.Hash("Sup3r$ecret")
	require.NoError(t, err)
	hash2, salt2, err := h.Hash("Sup3r$ecret")
	require.NoError(t, err)

	assert.NotEqual(t, salt1, salt2, "each hash should use a fresh salt")
	assert.NotEqual(t, hash1, hash2, "same password with different salts should differ")
}

func TestPasswordHasher_Hash_OutputSizes(t *testing.T) {
	h := NewPasswordHasher()

	hash, salt, err := h.Hash("Sup3r$ecret")
	require.NoError(t, err)

	rawHash, err := base64.StdEncoding.DecodeString(hash)
	require.NoError(t, err)
	rawSalt, err := base64.StdEncoding.DecodeString(salt)
	require.NoError(t, err)

	assert.Len(t, rawHash, 64)
	assert.Len(t, rawSalt, 32)
}

func TestPasswordHasher_Verify_MalformedInputs(t *testing.T) {
	h := NewPasswordHasher()

	hash, salt, err := h.Hash("Sup3r$ecret")
	require.NoError(t, err)

	assert.False(t, h.Verify("", hash, salt))
	assert.False(t, h.Verify("Sup3r$ecret", "", salt))
	assert.False(t, h.Verify("Sup3r$ecret", hash, ""))
	assert.False(t, h.Verify("Sup3r$ecret", "not base64 !!!", salt))
	assert.False(t, h.Verify("Sup3r$ecret", hash, "not base64 !!!"))
}

func TestPasswordHasher_Verify_SwappedSalt(t *testing.T) {
	h := NewPasswordHasher()

	hash1, _, err := h.Hash("Sup3r$ecret")
	require.NoError(t, err)
	_, salt2, err := h.Hash("Sup3r$ecret")
	require.NoError(t, err)

	assert.False(t, h.Verify("Sup3r$ecret", hash1, salt2))
}
