package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pulsechat/pulsechat-server/internal/core"
)

var (
	// ErrInvalidCredentials is returned when username/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register with existing username.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrAccountInactive is returned for tokens of deactivated accounts.
	ErrAccountInactive = errors.New("account inactive")
)

// Service is the identity/permission collaborator: it issues credential
// tokens and verifies them for the realtime handshake.
type Service struct {
	registry  UserRegistry
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(registry UserRegistry, jwtConfig *JWTConfig) *Service {
	return &Service{
		registry:  registry,
		jwtConfig: jwtConfig,
	}
}

// Register creates a new user with hashed password and returns a JWT token.
func (s *Service) Register(_ context.Context, username, password, displayName string) (string, error) {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 32 {
		return "", ErrInvalidUsername
	}
	if len(password) < 6 {
		return "", ErrInvalidPassword
	}
	if displayName == "" {
		displayName = username
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		ID:           uuid.NewString(),
		Username:     username,
		DisplayName:  displayName,
		Role:         RoleUser,
		Active:       true,
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now(),
	}
	if err := s.registry.CreateUser(user); err != nil {
		return "", err
	}

	token, err := GenerateToken(s.jwtConfig, user)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// Login validates credentials and returns a JWT token.
func (s *Service) Login(_ context.Context, username, password string) (string, error) {
	user, ok := s.registry.GetUserByUsername(strings.TrimSpace(username))
	if !ok {
		return "", ErrInvalidCredentials
	}
	if err := ComparePassword(user.PasswordHash, password); err != nil {
		return "", ErrInvalidCredentials
	}
	if !user.Active {
		return "", ErrAccountInactive
	}

	token, err := GenerateToken(s.jwtConfig, user)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// CreateGuestUser creates a temporary guest user and returns a JWT token.
func (s *Service) CreateGuestUser(_ context.Context) (token, sessionID string, err error) {
	sessionID, err = generateSessionID()
	if err != nil {
		return "", "", fmt.Errorf("generate session ID: %w", err)
	}

	user := &User{
		ID:          uuid.NewString(),
		Username:    "guest_" + sessionID[:8],
		DisplayName: "Guest " + sessionID[:4],
		Role:        RoleGuest,
		IsGuest:     true,
		Active:      true,
		SessionID:   sessionID,
		CreatedAt:   time.Now(),
	}
	if err := s.registry.CreateUser(user); err != nil {
		return "", "", fmt.Errorf("create guest user: %w", err)
	}

	token, err = GenerateToken(s.jwtConfig, user)
	if err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}
	return token, sessionID, nil
}

// Deactivate flips an account inactive; its tokens stop verifying.
func (s *Service) Deactivate(id string) bool {
	return s.registry.SetActive(id, false)
}

// Verify implements core.IdentityProvider: validate the credential, check
// the account is live, and return the identity descriptor plus capability
// set. Called exactly once per handshake.
func (s *Service) Verify(ctx context.Context, token string) (*core.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	claims, err := ValidateToken(s.jwtConfig, token)
	if err != nil {
		return nil, fmt.Errorf("invalid credential: %w", err)
	}

	// Token claims are a snapshot; the account may have been deactivated
	// since issuance.
	if user, ok := s.registry.GetUserByID(claims.UserID); ok && !user.Active {
		return nil, ErrAccountInactive
	}

	caps := make([]core.Capability, 0, len(claims.Capabilities))
	for _, c := range claims.Capabilities {
		caps = append(caps, core.Capability(c))
	}

	return &core.Identity{
		ID:           claims.UserID,
		Username:     claims.Username,
		DisplayName:  claims.DisplayName,
		AvatarURL:    claims.AvatarURL,
		Role:         claims.Role,
		Capabilities: caps,
	}, nil
}

// generateSessionID generates a random session ID for guest users.
func generateSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
