package repository

import (
	"context"
	"time"

	"github.com/utafrali/identity-service/internal/domain"
	"github.com/utafrali/identity-service/pkg/pagination"
)

// UserFilter narrows ListUsers results. Zero values mean "no filter".
type UserFilter struct {
	// Email matches as a case-insensitive substring.
	Email string
	// Role restricts to users holding the named role.
	Role string
	// IsActive restricts to active or inactive users when set.
	IsActive *bool
}

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user into the store.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by their normalized email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// EmailExists reports whether a user with the given email exists.
	EmailExists(ctx context.Context, email string) (bool, error)

	// Update modifies an existing user in the store.
	Update(ctx context.Context, user *domain.User) error

	// List returns users matching the filter, newest first, with the total
	// count before pagination.
	List(ctx context.Context, filter UserFilter, params pagination.Params) ([]domain.User, int, error)
}

// RoleRepository defines the interface for role persistence operations.
type RoleRepository interface {
	// EnsureSeed inserts the default roles if they are missing.
	EnsureSeed(ctx context.Context, names []string) error

	// GetByName retrieves a role by its exact name.
	GetByName(ctx context.Context, name string) (*domain.Role, error)

	// Assign grants the role to the user. Assigning an already-held role
	// is a no-op.
	Assign(ctx context.Context, userID, roleID string) error

	// Remove revokes the role from the user.
	Remove(ctx context.Context, userID, roleID string) error

	// NamesByUserID returns the role names held by the user, sorted.
	NamesByUserID(ctx context.Context, userID string) ([]string, error)

	// NamesByUserIDs returns role names grouped by user for a batch of users.
	NamesByUserIDs(ctx context.Context, userIDs []string) (map[string][]string, error)
}

// RefreshTokenRepository defines the interface for refresh token persistence operations.
type RefreshTokenRepository interface {
	// Create stores a new refresh token hash.
	Create(ctx context.Context, token *domain.RefreshToken) error

	// GetByHash retrieves a refresh token record by its hash.
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)

	// RevokeIfActive atomically revokes the token with the given hash if it
	// has not been revoked yet. It returns false when the token was already
	// revoked or does not exist, which signals a replayed rotation.
	RevokeIfActive(ctx context.Context, tokenHash string, now time.Time) (bool, error)

	// RevokeByUserID revokes all active refresh tokens for the given user.
	RevokeByUserID(ctx context.Context, userID string, now time.Time) error
}
