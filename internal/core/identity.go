package core

import "context"

// Capability is a named permission granted to an identity.
type Capability string

const (
	// CapabilityRealtime allows joining the realtime layer at all.
	CapabilityRealtime Capability = "realtime"
	// CapabilityWrite allows sending messages.
	CapabilityWrite Capability = "write"
	// CapabilityModerate allows editing/deleting other users' messages.
	CapabilityModerate Capability = "moderate"
)

// Identity is the authenticated user descriptor supplied by the identity
// collaborator at handshake time. Immutable for the connection's lifetime.
type Identity struct {
	ID           string
	Username     string
	DisplayName  string
	AvatarURL    string
	Role         string
	Capabilities []Capability
}

// Has reports whether the identity holds the given capability.
func (i *Identity) Has(cap Capability) bool {
	if i == nil {
		return false
	}
	for _, c := range i.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// Ref returns the public descriptor attached to messages and presence.
func (i *Identity) Ref() UserRef {
	return UserRef{
		ID:          i.ID,
		Username:    i.Username,
		DisplayName: i.DisplayName,
		AvatarURL:   i.AvatarURL,
	}
}

// UserRef is the public slice of an identity embedded in messages.
type UserRef struct {
	ID          string `json:"id"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// IdentityProvider is the external identity/permission collaborator. The hub
// calls Verify exactly once per handshake with the presented credential.
type IdentityProvider interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}
