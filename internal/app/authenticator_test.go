package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/shrimpsizemoose/semla/internal/apperrors"
	"github.com/shrimpsizemoose/semla/internal/models"
)

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) CreateUser(ctx context.Context, user *models.User) error {
	args := m.Called(user)
	if args.Error(0) == nil {
		user.ID = 42
	}
	return args.Error(0)
}

func (m *MockUserStore) GetUserByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	args := m.Called(identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserStore) FindUserByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	args := m.Called(username, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) Create(ctx context.Context, userID int64) (*Session, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Session), args.Error(1)
}

func (m *MockSessionStore) Resolve(ctx context.Context, id string) (int64, error) {
	args := m.Called(id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSessionStore) Destroy(ctx context.Context, id string) error {
	return m.Called(id).Error(0)
}

func newMockAuthenticator(t *testing.T) (*Authenticator, *MockUserStore, *MockSessionStore) {
	users := &MockUserStore{}
	sessions := &MockSessionStore{}
	auth, err := NewAuthenticator(users, sessions, bcrypt.MinCost)
	require.NoError(t, err)
	return auth, users, sessions
}

func TestRegisterOrdering(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid input never reaches the store", func(t *testing.T) {
		auth, users, sessions := newMockAuthenticator(t)

		_, err := auth.Register(ctx, signup("ab", "a@b.co", "Passw0rd!"))
		assert.ErrorIs(t, err, apperrors.ErrValidation)

		_, err = auth.Register(ctx, signup("alice", "alice@x.com", "weak"))
		assert.ErrorIs(t, err, apperrors.ErrValidation)

		users.AssertNotCalled(t, "FindUserByUsernameOrEmail", mock.Anything, mock.Anything)
		users.AssertNotCalled(t, "CreateUser", mock.Anything)
		sessions.AssertNotCalled(t, "Create", mock.Anything)
	})

	t.Run("duplicate stops before create", func(t *testing.T) {
		auth, users, sessions := newMockAuthenticator(t)
		users.On("FindUserByUsernameOrEmail", "alice", "alice@x.com").
			Return(&models.User{ID: 7, Username: "alice"}, nil)

		result, err := auth.Register(ctx, signup("alice", "alice@x.com", "Passw0rd!"))
		require.NoError(t, err)
		assert.Equal(t, AlreadyExists, result.Outcome)
		assert.Nil(t, result.User)
		assert.Nil(t, result.Session)

		users.AssertExpectations(t)
		users.AssertNotCalled(t, "CreateUser", mock.Anything)
		sessions.AssertNotCalled(t, "Create", mock.Anything)
	})

	t.Run("created user gets a session", func(t *testing.T) {
		auth, users, sessions := newMockAuthenticator(t)
		users.On("FindUserByUsernameOrEmail", "alice", "alice@x.com").Return(nil, nil)
		users.On("CreateUser", mock.MatchedBy(func(u *models.User) bool {
			return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("Passw0rd!")) == nil
		})).Return(nil)
		sessions.On("Create", int64(42)).Return(&Session{ID: "sess-x", UserID: 42}, nil)

		result, err := auth.Register(ctx, signup("alice", "alice@x.com", "Passw0rd!"))
		require.NoError(t, err)
		assert.Equal(t, Created, result.Outcome)
		assert.Equal(t, "sess-x", result.Session.ID)

		users.AssertExpectations(t)
		sessions.AssertExpectations(t)
	})

	t.Run("unique violation on insert is a duplicate", func(t *testing.T) {
		auth, users, sessions := newMockAuthenticator(t)
		users.On("FindUserByUsernameOrEmail", "alice", "alice@x.com").Return(nil, nil)
		users.On("CreateUser", mock.Anything).
			Return(apperrors.Conflict("failed to create user", errors.New("UNIQUE constraint failed: users.email")))

		result, err := auth.Register(ctx, signup("alice", "alice@x.com", "Passw0rd!"))
		require.NoError(t, err)
		assert.Equal(t, AlreadyExists, result.Outcome)

		users.AssertExpectations(t)
		sessions.AssertNotCalled(t, "Create", mock.Anything)
	})

	t.Run("store failure is returned", func(t *testing.T) {
		auth, users, _ := newMockAuthenticator(t)
		boom := apperrors.FromStore("find user", errors.New("boom"))
		users.On("FindUserByUsernameOrEmail", "alice", "alice@x.com").Return(nil, boom)

		_, err := auth.Register(ctx, signup("alice", "alice@x.com", "Passw0rd!"))
		assert.ErrorIs(t, err, apperrors.ErrPersistence)
	})
}

func TestAuthenticateUnknownUser(t *testing.T) {
	auth, users, sessions := newMockAuthenticator(t)
	users.On("GetUserByIdentifier", "nobody").Return(nil, nil)

	_, err := auth.Authenticate(context.Background(), "nobody", "Passw0rd!")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	users.AssertExpectations(t)
	sessions.AssertNotCalled(t, "Create", mock.Anything)
}
