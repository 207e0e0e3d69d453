package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pulsechat/pulsechat-server/internal/core"
)

func newTestAuthService(t *testing.T) *Service {
	t.Helper()

	jwtConfig := &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}
	return NewService(NewMemoryRegistry(), jwtConfig)
}

func TestRegister_RejectsInvalidUsername(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "ab", "password123", ""); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}

	// Should be validated after trimming whitespace.
	if _, err := svc.Register(ctx, " ab ", "password123", ""); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
}

func TestRegister_RejectsInvalidPassword(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "abc", "12345", ""); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestRegister_TrimsUsernameAndCreatesUser(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	token, err := svc.Register(ctx, " alice ", "password123", "")
	if err != nil {
		t.Fatalf("expected registration success, got %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}

	// Should collide because the stored username is trimmed.
	if _, err := svc.Register(ctx, "alice", "password123", ""); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "password123", "Alice"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Login(ctx, "alice", "password123"); err != nil {
		t.Fatalf("expected login success, got %v", err)
	}
	if _, err := svc.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestVerify_ReturnsIdentityWithCapabilities(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	token, err := svc.Register(ctx, "alice", "password123", "Alice")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	id, err := svc.Verify(ctx, token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.Username != "alice" || id.DisplayName != "Alice" {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if !id.Has(core.CapabilityRealtime) || !id.Has(core.CapabilityWrite) {
		t.Fatalf("regular user missing base capabilities: %v", id.Capabilities)
	}
	if id.Has(core.CapabilityModerate) {
		t.Fatalf("regular user must not moderate: %v", id.Capabilities)
	}
}

func TestVerify_RejectsGarbageToken(t *testing.T) {
	svc := newTestAuthService(t)

	if _, err := svc.Verify(context.Background(), "not-a-token"); err == nil {
		t.Fatal("expected verification failure")
	}
}

func TestVerify_RejectsDeactivatedAccount(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	token, err := svc.Register(ctx, "alice", "password123", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	id, err := svc.Verify(ctx, token)
	if err != nil {
		t.Fatalf("verify before deactivation: %v", err)
	}

	if !svc.Deactivate(id.ID) {
		t.Fatal("deactivate should find the user")
	}
	if _, err := svc.Verify(ctx, token); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}
	if _, err := svc.Login(ctx, "alice", "password123"); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive on login, got %v", err)
	}
}

func TestCreateGuestUser(t *testing.T) {
	svc := newTestAuthService(t)

	token, sessionID, err := svc.CreateGuestUser(context.Background())
	if err != nil {
		t.Fatalf("guest: %v", err)
	}
	if sessionID == "" {
		t.Fatal("expected a session id")
	}

	id, err := svc.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify guest: %v", err)
	}
	if !id.Has(core.CapabilityRealtime) {
		t.Fatalf("guest should join the realtime layer: %v", id.Capabilities)
	}
	if id.Has(core.CapabilityWrite) || id.Has(core.CapabilityModerate) {
		t.Fatalf("guest capabilities too broad: %v", id.Capabilities)
	}
}
