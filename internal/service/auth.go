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
	"github.com/utafrali/identity-service/pkg/database"
	apperrors "github.com/utafrali/identity-service/pkg/errors"
)

// EventPublisher is the subset of event.Producer the services use. Publish
// failures are logged, never surfaced to callers.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, user *domain.User, roles []string) error
	PublishUserDeactivated(ctx context.Context, user *domain.User) error
	PublishUserPasswordChanged(ctx context.Context, userID string) error
	PublishUserRoleChanged(ctx context.Context, userID, role string, granted bool) error
}

// AuthService implements registration, login, and the refresh token lifecycle.
type AuthService struct {
	db        database.DBTX
	userRepo  repository.UserRepository
	roleRepo  repository.RoleRepository
	tokenRepo repository.RefreshTokenRepository
	hasher    *auth.PasswordHasher
	issuer    *auth.TokenIssuer
	events    EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewAuthService creates a new auth service.
func NewAuthService(
	db database.DBTX,
	userRepo repository.UserRepository,
	roleRepo repository.RoleRepository,
	tokenRepo repository.RefreshTokenRepository,
	hasher *auth.PasswordHasher,
	issuer *auth.TokenIssuer,
	events EventPublisher,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		db:        db,
		userRepo:  userRepo,
		roleRepo:  roleRepo,
		tokenRepo: tokenRepo,
		hasher:    hasher,
		issuer:    issuer,
		events:    events,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

// AuthResult bundles a user, their roles, and fresh credentials.
type AuthResult struct {
	User   *domain.User
	Roles  []string
	Tokens *domain.TokenPair
}

// Register creates a new account with the default role and returns tokens.
// User creation and role assignment happen in one transaction.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	hash, salt, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, apperrors.InvalidInput("password is required")
	}

	now := s.now()
	user, err := domain.NewUser(input.Email, input.DisplayName, hash, salt, now)
	if err != nil {
		return nil, err
	}

	err = database.WithTx(ctx, s.db, func(ctx context.Context) error {
		exists, err := s.userRepo.EmailExists(ctx, user.Email)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if exists {
			return apperrors.AlreadyExists("user", "email", user.Email)
		}

		if err := s.userRepo.Create(ctx, user); err != nil {
			return err
		}

		// The default role must exist; seeding runs at startup.
		role, err := s.roleRepo.GetByName(ctx, domain.RoleUser)
		if err != nil {
			return fmt.Errorf("default role lookup: %w", err)
		}

		return s.roleRepo.Assign(ctx, user.ID, role.ID)
	})
	if err != nil {
		return nil, err
	}

	roles := []string{domain.RoleUser}
	tokens, err := s.issueTokens(ctx, user, roles, now)
	if err != nil {
		return nil, err
	}

	if err := s.events.PublishUserRegistered(ctx, user, roles); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return &AuthResult{User: user, Roles: roles, Tokens: tokens}, nil
}

// Login authenticates with email and password. Unknown email and wrong
// password return the same error so accounts cannot be enumerated.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid email or password")
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	if !user.IsActive {
		return nil, apperrors.Unauthorized("account is deactivated")
	}

	if !s.hasher.Verify(password, user.PasswordHash, user.PasswordSalt) {
		return nil, apperrors.Unauthorized("invalid email or password")
	}

	roles, err := s.roleRepo.NamesByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("get user roles: %w", err)
	}

	tokens, err := s.issueTokens(ctx, user, roles, s.now())
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
	)

	return &AuthResult{User: user, Roles: roles, Tokens: tokens}, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued. A token that is expired, revoked, or already redeemed is
// rejected, so each refresh token works at most once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, apperrors.Unauthorized("invalid refresh token")
	}

	now := s.now()
	tokenHash := auth.HashToken(refreshToken)

	stored, err := s.tokenRepo.GetByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid refresh token")
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}

	if !stored.IsActive(now) {
		return nil, apperrors.Unauthorized("invalid refresh token")
	}

	// Revoke and re-issue commit together: a failure storing the successor
	// token rolls the revocation back, so the presented token stays usable.
	var result *AuthResult
	err = database.WithTx(ctx, s.db, func(ctx context.Context) error {
		// Conditional revoke: when two requests race on the same token,
		// only one succeeds here and the other is treated as a replay.
		revoked, err := s.tokenRepo.RevokeIfActive(ctx, tokenHash, now)
		if err != nil {
			return fmt.Errorf("revoke refresh token: %w", err)
		}
		if !revoked {
			s.logger.WarnContext(ctx, "refresh token replay detected",
				slog.String("user_id", stored.UserID),
			)
			return apperrors.Unauthorized("invalid refresh token")
		}

		user, err := s.userRepo.GetByID(ctx, stored.UserID)
		if err != nil {
			return fmt.Errorf("get user for refresh: %w", err)
		}
		if !user.IsActive {
			return apperrors.Unauthorized("account is deactivated")
		}

		roles, err := s.roleRepo.NamesByUserID(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("get user roles: %w", err)
		}

		tokens, err := s.issueTokens(ctx, user, roles, now)
		if err != nil {
			return err
		}

		result = &AuthResult{User: user, Roles: roles, Tokens: tokens}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tokens refreshed",
		slog.String("user_id", result.User.ID),
	)

	return result, nil
}

// Logout revokes the presented refresh token. Logging out with an unknown or
// already-revoked token succeeds: the end state is the same. A token owned by
// a different user is rejected with the same generic unauthorized error as
// any other token failure.
func (s *AuthService) Logout(ctx context.Context, userID, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	tokenHash := auth.HashToken(refreshToken)
	stored, err := s.tokenRepo.GetByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get refresh token: %w", err)
	}

	if stored.UserID != userID {
		return apperrors.Unauthorized("invalid refresh token")
	}

	if _, err := s.tokenRepo.RevokeIfActive(ctx, tokenHash, s.now()); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged out",
		slog.String("user_id", userID),
	)

	return nil
}

// ValidateAccessToken verifies a bearer token and returns its claims.
func (s *AuthService) ValidateAccessToken(token string) (*auth.Claims, error) {
	return s.issuer.ValidateAccessToken(token)
}

// issueTokens mints an access token and a stored refresh token for the user.
func (s *AuthService) issueTokens(ctx context.Context, user *domain.User, roles []string, now time.Time) (*domain.TokenPair, error) {
	accessToken, err := s.issuer.CreateAccessToken(user, roles, now)
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	refreshToken, err := auth.NewRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}

	refreshExpiry := now.Add(s.issuer.RefreshTTL())
	record, err := domain.NewRefreshToken(user.ID, auth.HashToken(refreshToken), now, refreshExpiry)
	if err != nil {
		return nil, err
	}
	if err := s.tokenRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  now.Add(s.issuer.AccessTTL()),
		RefreshExpiresAt: refreshExpiry,
	}, nil
}
