package domain

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/utafrali/identity-service/pkg/errors"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const (
	displayNameMinLen = 2
	displayNameMaxLen = 100
)

// User represents a registered account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	PasswordSalt string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewUser builds an active user with a generated ID. The email is trimmed
// and lowercased before validation; hash and salt must already be computed.
func NewUser(email, displayName, passwordHash, passwordSalt string, now time.Time) (*User, error) {
	email = NormalizeEmail(email)
	if !emailPattern.MatchString(email) {
		return nil, errors.InvalidInput("email is not a valid address")
	}

	displayName = strings.TrimSpace(displayName)
	if n := utf8.RuneCountInString(displayName); n < displayNameMinLen || n > displayNameMaxLen {
		return nil, errors.InvalidInput("display name must be between 2 and 100 characters")
	}

	if passwordHash == "" || passwordSalt == "" {
		return nil, errors.InvalidInput("password hash and salt are required")
	}

	return &User{
		ID:           uuid.New().String(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		PasswordSalt: passwordSalt,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeEmail trims whitespace and lowercases an email address so
// lookups and uniqueness checks are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SetPassword replaces the stored credential material.
func (u *User) SetPassword(hash, salt string, now time.Time) {
	u.PasswordHash = hash
	u.PasswordSalt = salt
	u.UpdatedAt = now
}

// Deactivate marks the user as inactive. Deactivating an already inactive
// user is a no-op.
func (u *User) Deactivate(now time.Time) {
	if !u.IsActive {
		return
	}
	u.IsActive = false
	u.UpdatedAt = now
}

// RefreshToken is a stored single-use refresh token. Only a SHA-256 hash of
// the opaque token is persisted.
type RefreshToken struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	TokenHash string     `json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// NewRefreshToken builds a stored token record with a generated ID. The
// expiry must fall strictly after the creation time.
func NewRefreshToken(userID, tokenHash string, createdAt, expiresAt time.Time) (*RefreshToken, error) {
	if userID == "" || tokenHash == "" {
		return nil, errors.InvalidInput("user id and token hash are required")
	}
	if !expiresAt.After(createdAt) {
		return nil, errors.InvalidInput("refresh token expiry must be after its creation time")
	}

	return &RefreshToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// IsActive reports whether the token can still be redeemed at the given time.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// Revoke marks the token as revoked. Revoking twice keeps the first timestamp.
func (t *RefreshToken) Revoke(now time.Time) {
	if t.RevokedAt != nil {
		return
	}
	t.RevokedAt = &now
}

// TokenPair holds the credentials returned on login and refresh.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}
