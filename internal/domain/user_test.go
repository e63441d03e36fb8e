package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func TestNewUser_Valid(t *testing.T) {
	u, err := NewUser("Alice@Example.COM", "  Alice  ", "hash", "salt", testNow)

	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, "Alice", u.DisplayName)
	assert.True(t, u.IsActive)
	assert.Equal(t, testNow, u.CreatedAt)
	assert.Equal(t, testNow, u.UpdatedAt)
}

func TestNewUser_InvalidEmail(t *testing.T) {
	for _, email := range []string{"", "no-at-sign", "a@b", "a b@c.com", "a@b c.com", "@example.com"} {
		t.Run(email, func(t *testing.T) {
			_, err := NewUser(email, "Alice", "hash", "salt", testNow)
			assert.Error(t, err)
		})
	}
}

func TestNewUser_DisplayNameBounds(t *testing.T) {
	_, err := NewUser("a@b.com", "A", "hash", "salt", testNow)
	assert.Error(t, err, "single character name should fail")

	_, err = NewUser("a@b.com", "Al", "hash", "salt", testNow)
	assert.NoError(t, err, "two character name should pass")

	long := make([]byte, 101)
	for i := range long {
		long[i] = 'x'
	}
	_, err = NewUser("a@b.com", string(long), "hash", "salt", testNow)
	assert.Error(t, err, "101 character name should fail")

	_, err = NewUser("a@b.com", string(long[:100]), "hash", "salt", testNow)
	assert.NoError(t, err, "100 character name should pass")
}

func TestNewUser_DisplayNameCountsRunesNotBytes(t *testing.T) {
	// 60 runes but well over 100 bytes in UTF-8.
	name := strings.Repeat("名", 60)
	require.Greater(t, len(name), 100)

	u, err := NewUser("a@b.com", name, "hash", "salt", testNow)
	require.NoError(t, err)
	assert.Equal(t, name, u.DisplayName)
}

func TestNewUser_MissingCredentialMaterial(t *testing.T) {
	_, err := NewUser("a@b.com", "Alice", "", "salt", testNow)
	assert.Error(t, err)

	_, err = NewUser("a@b.com", "Alice", "hash", "", testNow)
	assert.Error(t, err)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "alice@example.com", NormalizeEmail("  Alice@EXAMPLE.com  "))
}

func TestUser_Deactivate_Idempotent(t *testing.T) {
	u, err := NewUser("a@b.com", "Alice", "hash", "salt", testNow)
	require.NoError(t, err)

	later := testNow.Add(time.Hour)
	u.Deactivate(later)
	assert.False(t, u.IsActive)
	assert.Equal(t, later, u.UpdatedAt)

	evenLater := later.Add(time.Hour)
	u.Deactivate(evenLater)
	assert.Equal(t, later, u.UpdatedAt, "second deactivate should not touch the record")
}

func TestUser_SetPassword(t *testing.T) {
	u, err := NewUser("a@b.com", "Alice", "hash", "salt", testNow)
	require.NoError(t, err)

	later := testNow.Add(time.Minute)
	u.SetPassword("newhash", "newsalt", later)
	assert.Equal(t, "newhash", u.PasswordHash)
	assert.Equal(t, "newsalt", u.PasswordSalt)
	assert.Equal(t, later, u.UpdatedAt)
}

func TestNewRefreshToken_Valid(t *testing.T) {
	tok, err := NewRefreshToken("u-1", "abc123", testNow, testNow.Add(time.Hour))

	require.NoError(t, err)
	assert.NotEmpty(t, tok.ID)
	assert.Equal(t, "u-1", tok.UserID)
	assert.Equal(t, "abc123", tok.TokenHash)
	assert.Nil(t, tok.RevokedAt)
	assert.True(t, tok.IsActive(testNow))
}

func TestNewRefreshToken_ExpiryMustFollowCreation(t *testing.T) {
	_, err := NewRefreshToken("u-1", "abc123", testNow, testNow)
	assert.Error(t, err, "expiry equal to creation should fail")

	_, err = NewRefreshToken("u-1", "abc123", testNow, testNow.Add(-time.Second))
	assert.Error(t, err, "expiry before creation should fail")
}

func TestNewRefreshToken_RequiresUserAndHash(t *testing.T) {
	_, err := NewRefreshToken("", "abc123", testNow, testNow.Add(time.Hour))
	assert.Error(t, err)

	_, err = NewRefreshToken("u-1", "", testNow, testNow.Add(time.Hour))
	assert.Error(t, err)
}

func TestRefreshToken_IsActive(t *testing.T) {
	tok := RefreshToken{ExpiresAt: testNow.Add(time.Hour)}

	assert.True(t, tok.IsActive(testNow))
	assert.False(t, tok.IsActive(testNow.Add(time.Hour)), "expiry instant is not active")
	assert.False(t, tok.IsActive(testNow.Add(2*time.Hour)))

	revoked := testNow
	tok.RevokedAt = &revoked
	assert.False(t, tok.IsActive(testNow), "revoked token is never active")
}

func TestRefreshToken_Revoke_KeepsFirstTimestamp(t *testing.T) {
	tok := RefreshToken{ExpiresAt: testNow.Add(time.Hour)}

	tok.Revoke(testNow)
	require.NotNil(t, tok.RevokedAt)
	assert.Equal(t, testNow, *tok.RevokedAt)

	tok.Revoke(testNow.Add(time.Minute))
	assert.Equal(t, testNow, *tok.RevokedAt)
}

func TestDefaultRoles(t *testing.T) {
	assert.ElementsMatch(t, []string{RoleUser, RoleAdmin}, DefaultRoles())
	assert.True(t, IsDefaultRole("User"))
	assert.True(t, IsDefaultRole("Admin"))
	assert.False(t, IsDefaultRole("user"), "role names are case-sensitive")
	assert.False(t, IsDefaultRole("Moderator"))
}
