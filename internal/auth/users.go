package auth

import (
	"sync"
	"time"
)

// Role names and their capability grants. Policy definition lives here, on
// the collaborator side; the realtime core only consumes the result.
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
	RoleGuest     = "guest"
)

func capabilitiesForRole(role string) []string {
	switch role {
	case RoleAdmin, RoleModerator:
		return []string{"realtime", "write", "moderate"}
	case RoleGuest:
		return []string{"realtime"}
	default:
		return []string{"realtime", "write"}
	}
}

// User is an account known to the identity service.
type User struct {
	ID           string
	Username     string
	DisplayName  string
	AvatarURL    string
	Role         string
	IsGuest      bool
	Active       bool
	PasswordHash string
	SessionID    string
	CreatedAt    time.Time
}

// UserRegistry is the account lookup the service runs against.
type UserRegistry interface {
	CreateUser(u *User) error
	GetUserByID(id string) (*User, bool)
	GetUserByUsername(username string) (*User, bool)
	SetActive(id string, active bool) bool
}

// MemoryRegistry keeps accounts in process memory.
type MemoryRegistry struct {
	mu     sync.Mutex
	byID   map[string]*User
	byName map[string]*User
}

// NewMemoryRegistry builds an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		byID:   make(map[string]*User),
		byName: make(map[string]*User),
	}
}

// CreateUser stores the account.
func (r *MemoryRegistry) CreateUser(u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[u.Username]; ok {
		return ErrUserExists
	}
	copied := *u
	r.byID[u.ID] = &copied
	r.byName[u.Username] = &copied
	return nil
}

// GetUserByID returns a copy of the account.
func (r *MemoryRegistry) GetUserByID(id string) (*User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	copied := *u
	return &copied, true
}

// GetUserByUsername returns a copy of the account.
func (r *MemoryRegistry) GetUserByUsername(username string) (*User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byName[username]
	if !ok {
		return nil, false
	}
	copied := *u
	return &copied, true
}

// SetActive flips the account's active flag.
func (r *MemoryRegistry) SetActive(id string, active bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return false
	}
	u.Active = active
	return true
}
