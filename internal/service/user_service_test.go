package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/timetablepro/timetablepro-api/internal/models"
	appErrors "github.com/timetablepro/timetablepro-api/pkg/errors"
)

type userRepoStub struct {
	users       map[string]*models.User
	revoked     []string
	deactivated []string
}

func newUserRepoStub() *userRepoStub {
	return &userRepoStub{users: map[string]*models.User{}}
}

func (r *userRepoStub) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var out []models.User
	for _, u := range r.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.Active != nil && u.Active != *filter.Active {
			continue
		}
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (r *userRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (r *userRepoStub) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	for _, u := range r.users {
		if u.Email == email && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *userRepoStub) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "user-generated"
	}
	r.users[user.ID] = user
	return nil
}

func (r *userRepoStub) Update(ctx context.Context, user *models.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *userRepoStub) Deactivate(ctx context.Context, id string) error {
	if u, ok := r.users[id]; ok {
		u.Active = false
	}
	r.deactivated = append(r.deactivated, id)
	return nil
}

func (r *userRepoStub) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	r.revoked = append(r.revoked, userID)
	return nil
}

func TestUserServiceCreateHashesPassword(t *testing.T) {
	repo := newUserRepoStub()
	svc := NewUserService(repo, nil, zap.NewNop())

	user, err := svc.Create(context.Background(), CreateUserRequest{
		Email:    "Ada@School.Test",
		Password: "correct-horse",
		FullName: "Ada Lovelace",
		Role:     "TEACHER",
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@school.test", user.Email)
	assert.True(t, user.Active)
	assert.NotEqual(t, "correct-horse", user.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct-horse")))
}

func TestUserServiceCreateRejectsDuplicateEmail(t *testing.T) {
	repo := newUserRepoStub()
	repo.users["u1"] = &models.User{ID: "u1", Email: "ada@school.test", Role: models.RoleTeacher, Active: true}
	svc := NewUserService(repo, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Email:    "ADA@school.test",
		Password: "correct-horse",
		FullName: "Ada Lovelace",
		Role:     "TEACHER",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreateValidation(t *testing.T) {
	svc := NewUserService(newUserRepoStub(), nil, zap.NewNop())

	cases := []struct {
		name string
		req  CreateUserRequest
	}{
		{"bad email", CreateUserRequest{Email: "not-an-email", Password: "longenough", FullName: "X", Role: "ADMIN"}},
		{"short password", CreateUserRequest{Email: "a@b.test", Password: "short", FullName: "X", Role: "ADMIN"}},
		{"unknown role", CreateUserRequest{Email: "a@b.test", Password: "longenough", FullName: "X", Role: "PRINCIPAL"}},
		{"missing name", CreateUserRequest{Email: "a@b.test", Password: "longenough", Role: "ADMIN"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.req)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestUserServiceUpdateRehashesPassword(t *testing.T) {
	repo := newUserRepoStub()
	repo.users["u1"] = &models.User{ID: "u1", Email: "ada@school.test", PasswordHash: "old-hash", FullName: "Ada", Role: models.RoleTeacher, Active: true}
	svc := NewUserService(repo, nil, zap.NewNop())

	updated, err := svc.Update(context.Background(), "u1", UpdateUserRequest{
		Email:    "ada@school.test",
		Password: "new-password",
		FullName: "Ada Lovelace",
		Role:     "TEACHER",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "old-hash", updated.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("new-password")))

	// Omitting the password keeps the stored hash.
	again, err := svc.Update(context.Background(), "u1", UpdateUserRequest{
		Email:    "ada@school.test",
		FullName: "Ada Lovelace",
		Role:     "TEACHER",
	})
	require.NoError(t, err)
	assert.Equal(t, updated.PasswordHash, again.PasswordHash)
}

func TestUserServiceListTeachers(t *testing.T) {
	repo := newUserRepoStub()
	repo.users["t1"] = &models.User{ID: "t1", Email: "t1@school.test", Role: models.RoleTeacher, Active: true}
	repo.users["t2"] = &models.User{ID: "t2", Email: "t2@school.test", Role: models.RoleTeacher, Active: false}
	repo.users["s1"] = &models.User{ID: "s1", Email: "s1@school.test", Role: models.RoleStudent, Active: true}
	svc := NewUserService(repo, nil, zap.NewNop())

	teachers, err := svc.ListTeachers(context.Background())
	require.NoError(t, err)
	require.Len(t, teachers, 1)
	assert.Equal(t, "t1", teachers[0].ID)
}

func TestUserServiceDeactivateRevokesSessions(t *testing.T) {
	repo := newUserRepoStub()
	repo.users["u1"] = &models.User{ID: "u1", Email: "ada@school.test", Role: models.RoleTeacher, Active: true}
	svc := NewUserService(repo, nil, zap.NewNop())

	require.NoError(t, svc.Deactivate(context.Background(), "u1"))
	assert.False(t, repo.users["u1"].Active)
	assert.Contains(t, repo.revoked, "u1")

	err := svc.Deactivate(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
