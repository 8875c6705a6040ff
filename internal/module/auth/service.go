package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Service handles authentication business logic.
type Service struct {
	users  UserRepository
	jwt    *JWTManager
	logger *zap.Logger
}

// NewService creates a new auth service.
func NewService(users UserRepository, jwtManager *JWTManager, logger *zap.Logger) *Service {
	return &Service{
		users:  users,
		jwt:    jwtManager,
		logger: logger,
	}
}

// AuthResult holds the outcome of a successful register or login.
type AuthResult struct {
	User        *User
	AccessToken string
	ExpiresAt   time.Time
}

// Register creates a new user account and issues an access token.
func (s *Service) Register(ctx context.Context, email, name, password string) (*AuthResult, error) {
	email = normalizeEmail(email)

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrUserAlreadyExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &User{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID.String()))

	return s.issueToken(user)
}

// Login authenticates a user and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issueToken(user)
}

// ValidateAccessToken validates a bearer token and returns its claims.
func (s *Service) ValidateAccessToken(token string) (*Claims, error) {
	return s.jwt.ValidateAccessToken(token)
}

func (s *Service) issueToken(user *User) (*AuthResult, error) {
	token, expiresAt, err := s.jwt.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, AccessToken: token, ExpiresAt: expiresAt}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
