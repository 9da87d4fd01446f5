package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/heartline-app/relay-server/internal/store"
)

var (
	// ErrInvalidCredentials is returned when username/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when the username or email is already taken.
	ErrUserExists = errors.New("username or email already exists")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrInvalidEmail is returned when the email is blank or malformed.
	ErrInvalidEmail = errors.New("invalid email")
)

// Service provides registration and credential verification against the
// identity store. Registering never authenticates a connection; the relay
// requires a separate login.
type Service struct {
	store     store.IdentityStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(identityStore store.IdentityStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     identityStore,
		jwtConfig: jwtConfig,
	}
}

// Register creates a new identity with a hashed credential.
func (s *Service) Register(ctx context.Context, username, password, email string) error {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 32 {
		return ErrInvalidUsername
	}
	if len(password) < 6 {
		return ErrInvalidPassword
	}
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return ErrInvalidEmail
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if _, err := s.store.CreateUser(ctx, username, email, hashedPassword); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return ErrUserExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Authenticate validates credentials and returns the stored identity,
// including the cached-on-login avatar and bio.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*store.User, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := ComparePassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// IssueToken generates a JWT for REST clients.
func (s *Service) IssueToken(userID int64, username string) (string, error) {
	return GenerateToken(s.jwtConfig, userID, username)
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}
