package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/identity-service/internal/auth"
	"github.com/utafrali/identity-service/internal/domain"
	"github.com/utafrali/identity-service/internal/repository"
	apperrors "github.com/utafrali/identity-service/pkg/errors"
	"github.com/utafrali/identity-service/pkg/pagination"
)

// UserWithRoles pairs a user with their role names for read endpoints.
type UserWithRoles struct {
	User  domain.User
	Roles []string
}

// ListUsersInput holds the filters for the admin user listing.
type ListUsersInput struct {
	Email    string
	Role     string
	IsActive *bool
	Params   pagination.Params
}

// UserService implements account management operations.
type UserService struct {
	userRepo  repository.UserRepository
	roleRepo  repository.RoleRepository
	tokenRepo repository.RefreshTokenRepository
	hasher    *auth.PasswordHasher
	events    EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewUserService creates a new user service.
func NewUserService(
	userRepo repository.UserRepository,
	roleRepo repository.RoleRepository,
	tokenRepo repository.RefreshTokenRepository,
	hasher *auth.PasswordHasher,
	events EventPublisher,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		userRepo:  userRepo,
		roleRepo:  roleRepo,
		tokenRepo: tokenRepo,
		hasher:    hasher,
		events:    events,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// GetUser retrieves a user and their roles by ID.
func (s *UserService) GetUser(ctx context.Context, userID string) (*UserWithRoles, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", userID)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	roles, err := s.roleRepo.NamesByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user roles: %w", err)
	}

	return &UserWithRoles{User: *user, Roles: roles}, nil
}

// ListUsers returns a filtered, paginated user listing with roles attached.
func (s *UserService) ListUsers(ctx context.Context, input ListUsersInput) (*pagination.Result[UserWithRoles], error) {
	filter := repository.UserFilter{
		Email:    input.Email,
		Role:     input.Role,
		IsActive: input.IsActive,
	}

	users, total, err := s.userRepo.List(ctx, filter, input.Params)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	rolesByUser, err := s.roleRepo.NamesByUserIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get roles for users: %w", err)
	}

	items := make([]UserWithRoles, len(users))
	for i, u := range users {
		roles := rolesByUser[u.ID]
		if roles == nil {
			roles = []string{}
		}
		items[i] = UserWithRoles{User: u, Roles: roles}
	}

	result := pagination.NewResult(items, total, input.Params)
	return &result, nil
}

// ChangePassword sets a new password for the target user. Users changing
// their own password must present the current one; admins changing another
// account skip that check. All refresh tokens are revoked afterwards.
func (s *UserService) ChangePassword(ctx context.Context, targetID, currentPassword, newPassword string, actorIsAdmin bool) error {
	user, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("user", targetID)
		}
		return fmt.Errorf("get user: %w", err)
	}

	if !user.IsActive {
		return apperrors.Conflict("account is deactivated")
	}

	if !actorIsAdmin {
		if !s.hasher.Verify(currentPassword, user.PasswordHash, user.PasswordSalt) {
			return apperrors.Unauthorized("current password is incorrect")
		}
	}

	hash, salt, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperrors.InvalidInput("new password is required")
	}

	now := s.now()
	user.SetPassword(hash, salt, now)
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.tokenRepo.RevokeByUserID(ctx, user.ID, now); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke refresh tokens after password change",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.events.PublishUserPasswordChanged(ctx, user.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.password_changed event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password changed",
		slog.String("user_id", user.ID),
	)

	return nil
}

// Deactivate disables an account and revokes its refresh tokens.
// Deactivating an already inactive account succeeds without changes.
func (s *UserService) Deactivate(ctx context.Context, userID string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("user", userID)
		}
		return fmt.Errorf("get user: %w", err)
	}

	if !user.IsActive {
		return nil
	}

	now := s.now()
	user.Deactivate(now)
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}

	if err := s.tokenRepo.RevokeByUserID(ctx, user.ID, now); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke refresh tokens on deactivation",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.events.PublishUserDeactivated(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.deactivated event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user deactivated",
		slog.String("user_id", user.ID),
	)

	return nil
}

// AssignRole grants a named role to a user.
func (s *UserService) AssignRole(ctx context.Context, userID, roleName string) error {
	role, err := s.resolveUserAndRole(ctx, userID, roleName)
	if err != nil {
		return err
	}

	if err := s.roleRepo.Assign(ctx, userID, role.ID); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}

	s.publishRoleChanged(ctx, userID, roleName, true)
	return nil
}

// RemoveRole revokes a named role from a user.
func (s *UserService) RemoveRole(ctx context.Context, userID, roleName string) error {
	role, err := s.resolveUserAndRole(ctx, userID, roleName)
	if err != nil {
		return err
	}

	if err := s.roleRepo.Remove(ctx, userID, role.ID); err != nil {
		return fmt.Errorf("remove role: %w", err)
	}

	s.publishRoleChanged(ctx, userID, roleName, false)
	return nil
}

func (s *UserService) resolveUserAndRole(ctx context.Context, userID, roleName string) (*domain.Role, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", userID)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	role, err := s.roleRepo.GetByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("role", roleName)
		}
		return nil, fmt.Errorf("get role: %w", err)
	}

	return role, nil
}

func (s *UserService) publishRoleChanged(ctx context.Context, userID, roleName string, granted bool) {
	if err := s.events.PublishUserRoleChanged(ctx, userID, roleName, granted); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.role_changed event",
			slog.String("user_id", userID),
			slog.String("role", roleName),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user role changed",
		slog.String("user_id", userID),
		slog.String("role", roleName),
		slog.Bool("granted", granted),
	)
}
