package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chatapp/internal/domain"
	"chatapp/internal/security"
	"chatapp/internal/service"
)

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	args := m.Called(ctx, email, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepo) Search(ctx context.Context, term, excludeID string, limit int) ([]*domain.User, error) {
	return nil, nil // Not used in auth tests
}

func (m *MockUserRepo) SetStatus(ctx context.Context, id string, status domain.Status) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockUserRepo) ResetStatuses(ctx context.Context) error {
	return nil
}

func newAuthService(repo domain.UserRepository) (*service.AuthService, *security.TokenService, *security.PasswordHasher) {
	tokens := security.NewTokenService("secret", time.Hour, "chatapp")
	hasher := security.NewPasswordHasher(4) // low cost for tests
	return service.NewAuthService(repo, tokens, hasher), tokens, hasher
}

func TestRegister(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		svc, tokens, _ := newAuthService(mockRepo)

		mockRepo.On("ExistsByEmailOrUsername", mock.Anything, "new@example.com", "newuser").Return(false, nil).Once()
		mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
			return u.Username == "newuser" && u.Email == "new@example.com" && u.PasswordHash != "password123"
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*domain.User).ID = "user-1"
		}).Return(nil).Once()

		res, err := svc.Register(context.Background(), service.RegisterInput{
			Username: " newuser ",
			Email:    "New@Example.com",
			Password: "password123",
		})
		require.NoError(t, err)
		assert.Equal(t, "user-1", res.User.ID)
		assert.Equal(t, domain.StatusOffline, res.User.Status)

		userID, err := tokens.Verify(res.Token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", userID)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Duplicate", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		svc, _, _ := newAuthService(mockRepo)
		mockRepo.On("ExistsByEmailOrUsername", mock.Anything, "dup@example.com", "dup").Return(true, nil).Once()

		_, err := svc.Register(context.Background(), service.RegisterInput{
			Username: "dup", Email: "dup@example.com", Password: "password123",
		})
		assert.ErrorIs(t, err, domain.ErrConflict)
		mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Validation", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		svc, _, _ := newAuthService(mockRepo)

		cases := []service.RegisterInput{
			{Username: "ab", Email: "a@example.com", Password: "password123"},
			{Username: "abc", Email: "not-an-email", Password: "password123"},
			{Username: "abc", Email: "a@example.com", Password: "12345"},
		}
		for _, in := range cases {
			_, err := svc.Register(context.Background(), in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		}
		mockRepo.AssertExpectations(t)
	})

	t.Run("StoreFailure", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		svc, _, _ := newAuthService(mockRepo)
		mockRepo.On("ExistsByEmailOrUsername", mock.Anything, mock.Anything, mock.Anything).
			Return(false, errors.New("connection reset")).Once()

		_, err := svc.Register(context.Background(), service.RegisterInput{
			Username: "abc", Email: "a@example.com", Password: "password123",
		})
		assert.ErrorIs(t, err, domain.ErrStore)
	})
}

func TestLogin(t *testing.T) {
	mockRepo := new(MockUserRepo)
	svc, _, hasher := newAuthService(mockRepo)

	hashed, err := hasher.Hash("password123")
	require.NoError(t, err)
	user := &domain.User{ID: "user-1", Username: "alice", Email: "alice@example.com", PasswordHash: hashed}

	mockRepo.On("GetByEmail", mock.Anything, "alice@example.com").Return(user, nil)
	mockRepo.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, domain.ErrNotFound)

	t.Run("Success", func(t *testing.T) {
		res, err := svc.Login(context.Background(), service.LoginInput{Email: "alice@example.com", Password: "password123"})
		require.NoError(t, err)
		assert.Equal(t, "alice", res.User.Username)
		assert.NotEmpty(t, res.Token)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		_, err := svc.Login(context.Background(), service.LoginInput{Email: "alice@example.com", Password: "nope"})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		_, err := svc.Login(context.Background(), service.LoginInput{Email: "ghost@example.com", Password: "password123"})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}

func TestAuthenticate(t *testing.T) {
	mockRepo := new(MockUserRepo)
	svc, tokens, _ := newAuthService(mockRepo)
	user := &domain.User{ID: "user-1", Username: "alice"}
	mockRepo.On("GetByID", mock.Anything, "user-1").Return(user, nil)
	mockRepo.On("GetByID", mock.Anything, "gone").Return(nil, domain.ErrNotFound)

	t.Run("Valid", func(t *testing.T) {
		token, err := tokens.CreateForUser("user-1")
		require.NoError(t, err)
		got, err := svc.Authenticate(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, user, got)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := svc.Authenticate(context.Background(), "")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("Expired", func(t *testing.T) {
		token, err := tokens.CreateWithTTL("user-1", -time.Minute)
		require.NoError(t, err)
		_, err = svc.Authenticate(context.Background(), token)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("UserGone", func(t *testing.T) {
		token, err := tokens.CreateForUser("gone")
		require.NoError(t, err)
		_, err = svc.Authenticate(context.Background(), token)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}
