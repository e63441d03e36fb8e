package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/identity-service/internal/auth"
	"github.com/utafrali/identity-service/internal/domain"
	"github.com/utafrali/identity-service/internal/repository"
	apperrors "github.com/utafrali/identity-service/pkg/errors"
	"github.com/utafrali/identity-service/pkg/pagination"
)

type userFixture struct {
	svc       *UserService
	userRepo  *mockUserRepository
	roleRepo  *mockRoleRepository
	tokenRepo *mockTokenRepository
	events    *mockEventPublisher
	hasher    *auth.PasswordHasher
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()

	f := &userFixture{
		userRepo:  new(mockUserRepository),
		roleRepo:  new(mockRoleRepository),
		tokenRepo: new(mockTokenRepository),
		events:    new(mockEventPublisher),
		hasher:    auth.NewPasswordHasher(),
	}
	f.svc = NewUserService(f.userRepo, f.roleRepo, f.tokenRepo, f.hasher, f.events, discardLogger())
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func (f *userFixture) userWithPassword(t *testing.T, password string) *domain.User {
	t.Helper()
	hash, salt, err := f.hasher.Hash(password)
	require.NoError(t, err)
	u, err := domain.NewUser("alice@example.com", "Alice", hash, salt, fixedNow.Add(-time.Hour))
	require.NoError(t, err)
	return u
}

// ---------------------------------------------------------------------------
// GetUser / ListUsers
// ---------------------------------------------------------------------------

func TestUserService_GetUser_Success(t *testing.T) {
	f := newUserFixture(t)
	user := f.userWithPassword(t, "Sup3r$ecret")

	f.userRepo.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	f.roleRepo.On("NamesByUserID", mock.Anything, user.ID).Return([]string{"Admin", "User"}, nil)

	got, err := f.svc.GetUser(context.Background(), user.ID)

	require.NoError(t, err)
	assert.Equal(t, user.Email, got.User.Email)
	assert.Equal(t, []string{"Admin", "User"}, got.Roles)
}

func TestUserService_GetUser_NotFound(t *testing.T) {
	f := newUserFixture(t)

	f.userRepo.On("GetByID", mock.Anything, "missing").Return(nil, apperrors.ErrNotFound)

	_, err := f.svc.GetUser(context.Background(), "missing")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestUserService_ListUsers_AttachesRoles(t *testing.T) {
	f := newUserFixture(t)

	users := []domain.User{
		{ID: "u-1", Email: "a@example.com"},
		{ID: "u-2", Email: "b@example.com"},
	}
	params := pagination.Params{Page: 1, PerPage: 20, Offset: 0}

	f.userRepo.On("List", mock.Anything, repository.UserFilter{}, params).Return(users, 2, nil)
	f.roleRepo.On("NamesByUserIDs", mock.Anything, []string{"u-1", "u-2"}).
		Return(map[string][]string{"u-1": {"Admin", "User"}}, nil)

	res, err := f.svc.ListUsers(context.Background(), ListUsersInput{Params: params})

	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalCount)
	require.Len(t, res.Data, 2)
	assert.Equal(t, []string{"Admin", "User"}, res.Data[0].Roles)
	assert.Empty(t, res.Data[1].Roles, "user without rows gets an empty slice, not nil")
	assert.NotNil(t, res.Data[1].Roles)
}

func TestUserService_ListUsers_PassesFilter(t *testing.T) {
	f := newUserFixture(t)

	active := true
	params := pagination.Params{Page: 1, PerPage: 10, Offset: 0}
	expected := repository.UserFilter{Email: "alice", Role: "Admin", IsActive: &active}

	f.userRepo.On("List", mock.Anything, expected, params).Return([]domain.User{}, 0, nil)
	f.roleRepo.On("NamesByUserIDs", mock.Anything, []string{}).Return(map[string][]string{}, nil)

	res, err := f.svc.ListUsers(context.Background(), ListUsersInput{
		Email:    "alice",
		Role:     "Admin",
		IsActive: &active,
		Params:   params,
	})

	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalCount)
	f.userRepo.AssertExpectations(t)
}

// ---------------------------------------------------------------------------
// ChangePassword
// ---------------------------------------------------------------------------

func TestUserService_ChangePassword_Self_Success(t *testing.T) {
	f := newUserFixture(t)
	user := f.userWithPassword(t, "OldP4ss$word")

	f.userRepo.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	f.userRepo.On("Update", mock.Anything, user).Return(nil)
	f.tokenRepo.On("RevokeByUserID", mock.Anything, user.ID, fixedNow).Return(nil)
	f.events.On("PublishUserPasswordChanged", mock.Anything, user.ID).Return(nil)

	err := f.svc.ChangePassword(context.Background(), user.ID, "OldP4ss$word", "NewP4ss$word", false)

	require.NoError(t, err)
	assert.True(t, f.hasher.Verify("NewP4ss$word", user.PasswordHash, user.PasswordSalt))
	f.tokenRepo.AssertExpectations(t)
}

func TestUserService_ChangePassword_Self_WrongCurrent(t *testing.T) {
	f := newUserFixture(t)
	user := f.userWithPassword(t, "OldP4ss$word")

	f.userRepo.On("GetByID", mock.Anything, user.ID).Return(user, nil)

	err := f.svc.ChangePassword(context.Background(), user.ID, "wrong-current", "NewP4ss$word", false)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
	f.userRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestUserService_ChangePassword_Admin_SkipsCurrentCheck(t *testing.T) {
	f := newUserFixture(t)
	user := f.userWithPassword(t, "OldP4ss$word")

	f.userRepo.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	f.userRepo.On("Update", mock.Anything, user).Return(nil)
	f.tokenRepo.On("RevokeByUserID", mock.Anything, user.ID, fixedNow).Return(nil)
	f.events.On("PublishUserPasswordChanged", mock.Anything, user.ID).Return(nil)

	err := f.svc.ChangePassword(context.Background(), user.ID, "", "NewP4ss$word", true)

	require.NoError(t, err)
	assert.True(t, f.hasher.Verify("NewP4ss$word", user.PasswordHash, user.PasswordSalt))
}

func TestUserService_ChangePassword_DeactivatedAccount(t *testing.T) {
	f := newUserFixture(t)
	user := f.userWithPassword(t, "OldP4ss$word")
	user.Deactivate(fixedNow)

	f.userRepo.On("GetByID", mock.Anything, user.ID).Return(user, nil)

	err := f.svc.ChangePassword(context.Background(), user.ID, "OldP4ss$word", "NewP4ss$word", false)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
}

func TestUserService_ChangePassword_UserNotFound(t *testing.T) {
	f := newUserFixture(t)

	f.userRepo.On("GetByID", mock.Anything, "missing").Return(nil, apperrors.ErrNotFound)

	err := f.svc.ChangePassword(context.Background(), "missing", "old", "NewP4ss$word", true)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

// ---------------------------------------------------------------------------
// Deactivate
// ---------------------------------------------------------------------------

func TestUserService_Deactivate_Success(t *testing.T) {
	f := newUserFixture(t)
	user := f.userWithPassword(t, "Sup3r$ecret")

	f.userRepo.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	f.userRepo.On("Update", mock.Anything, user).Return(nil)
	f.tokenRepo.On("RevokeByUserID", mock.Anything, user.ID, fixedNow).Return(nil)
	f.events.On("PublishUserDeactivated", mock.Anything, user).Return(nil)

	err := f.svc.Deactivate(context.Background(), user.ID)

	require.NoError(t, err)
	assert.False(t, user.IsActive)
	f.tokenRepo.AssertExpectations(t)
	f.events.AssertExpectations(t)
}

func TestUserService_Deactivate_AlreadyInactive(t *testing.T) {
	f := newUserFixture(t)
	user := f.userWithPassword(t, "Sup3r$ecret")
	user.Deactivate(fixedNow.Add(-time.Hour))

	f.userRepo.On("GetByID", mock.Anything, user.ID).Return(user, nil)

	err := f.svc.Deactivate(context.Background(), user.ID)

	assert.NoError(t, err, "deactivation is idempotent")
	f.userRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	f.events.AssertNotCalled(t, "PublishUserDeactivated", mock.Anything, mock.Anything)
}

// ---------------------------------------------------------------------------
// AssignRole / RemoveRole
// ---------------------------------------------------------------------------

func TestUserService_AssignRole_Success(t *testing.T) {
	f := newUserFixture(t)
	user := f.userWithPassword(t, "Sup3r$ecret")

	f.userRepo.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	f.roleRepo.On("GetByName", mock.Anything, "Admin").
		Return(&domain.Role{ID: "r-admin", Name: "Admin"}, nil)
	f.roleRepo.On("Assign", mock.Anything, user.ID, "r-admin").Return(nil)
	f.events.On("PublishUserRoleChanged", mock.Anything, user.ID, "Admin", true).Return(nil)

	err := f.svc.AssignRole(context.Background(), user.ID, "Admin")

	require.NoError(t, err)
	f.roleRepo.AssertExpectations(t)
}

func TestUserService_AssignRole_UnknownRole(t *testing.T) {
	f := newUserFixture(t)
	user := f.userWithPassword(t, "Sup3r$ecret")

	f.userRepo.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	f.roleRepo.On("GetByName", mock.Anything, "Moderator").
		Return(nil, apperrors.NotFound("role", "Moderator"))

	err := f.svc.AssignRole(context.Background(), user.ID, "Moderator")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	f.roleRepo.AssertNotCalled(t, "Assign", mock.Anything, mock.Anything, mock.Anything)
}

func TestUserService_AssignRole_UnknownUser(t *testing.T) {
	f := newUserFixture(t)

	f.userRepo.On("GetByID", mock.Anything, "missing").Return(nil, apperrors.ErrNotFound)

	err := f.svc.AssignRole(context.Background(), "missing", "Admin")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestUserService_RemoveRole_Success(t *testing.T) {
	f := newUserFixture(t)
	user := f.userWithPassword(t, "Sup3r$ecret")

	f.userRepo.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	f.roleRepo.On("GetByName", mock.Anything, "Admin").
		Return(&domain.Role{ID: "r-admin", Name: "Admin"}, nil)
	f.roleRepo.On("Remove", mock.Anything, user.ID, "r-admin").Return(nil)
	f.events.On("PublishUserRoleChanged", mock.Anything, user.ID, "Admin", false).Return(nil)

	err := f.svc.RemoveRole(context.Background(), user.ID, "Admin")

	require.NoError(t, err)
	f.roleRepo.AssertExpectations(t)
	f.events.AssertExpectations(t)
}
