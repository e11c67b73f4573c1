package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/aulafit/checkin-api/internal/models"
	appErrors "github.com/aulafit/checkin-api/pkg/errors"
)

type mockUserRepo struct {
	users        map[string]*models.User
	createErr    error
	tokenRevokes []string
	deleted      []string
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var list []models.User
	for _, u := range m.users {
		list = append(list, *u)
	}
	return list, len(list), nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if user.ID == "" {
		user.ID = "usr-new"
	}
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.users, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.tokenRevokes = append(m.tokenRevokes, userID)
	return nil
}

func newUserTestService(repo *mockUserRepo) *UserService {
	return NewUserService(repo, validator.New(), zap.NewNop())
}

func TestUserServiceCreateHashesPassword(t *testing.T) {
	repo := &mockUserRepo{}
	svc := newUserTestService(repo)

	user, err := svc.Create(context.Background(), CreateUserInput{
		Login:            "maria",
		Password:         "secret123",
		Role:             "STUDENT",
		RemainingClasses: 8,
	})
	require.NoError(t, err)
	assert.True(t, user.Active)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.NotEqual(t, "secret123", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret123")))
}

func TestUserServiceCreateDuplicateLogin(t *testing.T) {
	repo := &mockUserRepo{createErr: &pq.Error{Code: "23505"}}
	svc := newUserTestService(repo)

	_, err := svc.Create(context.Background(), CreateUserInput{Login: "maria", Password: "secret123", Role: "STUDENT"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreateRejectsUnknownRole(t *testing.T) {
	svc := newUserTestService(&mockUserRepo{})

	_, err := svc.Create(context.Background(), CreateUserInput{Login: "maria", Password: "secret123", Role: "SUPERUSER"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceUpdateSeatQuota(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"usr-1": {ID: "usr-1", Login: "maria", Role: models.RoleStudent, RemainingClasses: 2, Active: true},
	}}
	svc := newUserTestService(repo)

	quota := 10
	user, err := svc.Update(context.Background(), "usr-1", UpdateUserInput{RemainingClasses: &quota})
	require.NoError(t, err)
	assert.Equal(t, 10, user.RemainingClasses)
	assert.Empty(t, repo.tokenRevokes)
}

func TestUserServiceUpdateDeactivationRevokesTokens(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"usr-1": {ID: "usr-1", Login: "maria", Role: models.RoleStudent, Active: true},
	}}
	svc := newUserTestService(repo)

	inactive := false
	user, err := svc.Update(context.Background(), "usr-1", UpdateUserInput{Active: &inactive})
	require.NoError(t, err)
	assert.False(t, user.Active)
	assert.Contains(t, repo.tokenRevokes, "usr-1")
}

func TestUserServiceUpdatePasswordRevokesTokens(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"usr-1": {ID: "usr-1", Login: "maria", Role: models.RoleStudent, Active: true},
	}}
	svc := newUserTestService(repo)

	password := "newsecret"
	user, err := svc.Update(context.Background(), "usr-1", UpdateUserInput{Password: &password})
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("newsecret")))
	assert.Contains(t, repo.tokenRevokes, "usr-1")
}

func TestUserServiceDeleteNotFound(t *testing.T) {
	svc := newUserTestService(&mockUserRepo{})

	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
