package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryUserRepository struct {
	mu    sync.Mutex
	users map[string]*User
}

func newMemoryUserRepository() *memoryUserRepository {
	return &memoryUserRepository{users: make(map[string]*User)}
}

func (r *memoryUserRepository) Create(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	r.users[user.Email] = user
	return nil
}

func (r *memoryUserRepository) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *memoryUserRepository) GetByEmail(_ context.Context, email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[email]; ok {
		return u, nil
	}
	return nil, ErrUserNotFound
}

func newTestService() *Service {
	jwtManager := NewJWTManager(&JWTConfig{Secret: "test-secret", AccessTokenExpiry: time.Hour, Issuer: "splitmate"})
	return NewService(newMemoryUserRepository(), jwtManager, zap.NewNop())
}

func TestService_Register(t *testing.T) {
	svc := newTestService()

	result, err := svc.Register(context.Background(), "  Alex@Example.COM ", "Alex", "password123")
	require.NoError(t, err)
	assert.Equal(t, "alex@example.com", result.User.Email)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEqual(t, "password123", result.User.PasswordHash)
}

func TestService_RegisterDuplicateEmail(t *testing.T) {
	svc := newTestService()

	_, err := svc.Register(context.Background(), "alex@example.com", "Alex", "password123")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "ALEX@example.com", "Other", "password456")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestService_Login(t *testing.T) {
	svc := newTestService()

	_, err := svc.Register(context.Background(), "alex@example.com", "Alex", "password123")
	require.NoError(t, err)

	result, err := svc.Login(context.Background(), "alex@example.com", "password123")
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, claims.UserID)
}

func TestService_LoginWrongPassword(t *testing.T) {
	svc := newTestService()

	_, err := svc.Register(context.Background(), "alex@example.com", "Alex", "password123")
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "alex@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_LoginUnknownUser(t *testing.T) {
	svc := newTestService()

	_, err := svc.Login(context.Background(), "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
