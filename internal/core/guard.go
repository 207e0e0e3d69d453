package core

import "fmt"

// AuthzResult is the typed outcome of a guard check.
type AuthzResult struct {
	OK     bool
	Code   string
	Reason string
}

// Allowed is the passing result.
func Allowed() AuthzResult { return AuthzResult{OK: true} }

// Denied builds a failing result.
func Denied(code, reason string) AuthzResult {
	return AuthzResult{Code: code, Reason: reason}
}

// Guard checks whether a client may perform an operation. Guards compose
// into a chain evaluated before the operation body runs.
type Guard func(c *Client) AuthzResult

// Chain evaluates guards in order and stops at the first denial.
func Chain(guards ...Guard) Guard {
	return func(c *Client) AuthzResult {
		for _, g := range guards {
			if res := g(c); !res.OK {
				return res
			}
		}
		return Allowed()
	}
}

// RequireCapability denies clients whose identity lacks the capability.
func RequireCapability(cap Capability) Guard {
	return func(c *Client) AuthzResult {
		if c.Identity.Has(cap) {
			return Allowed()
		}
		return Denied(ErrCodeNoCapability, fmt.Sprintf("missing %q capability", cap))
	}
}

// RequireRoomMembership denies clients not subscribed to the room.
func RequireRoomMembership(room string) Guard {
	return func(c *Client) AuthzResult {
		if _, ok := c.Rooms[room]; ok {
			return Allowed()
		}
		return Denied(ErrCodeNotInRoom, fmt.Sprintf("not in room %q", room))
	}
}

// RequireAuthorOrModerator denies everyone but the message author and
// moderate-capability holders.
func RequireAuthorOrModerator(msg *ChatMessage) Guard {
	return func(c *Client) AuthzResult {
		if msg.CanModify(c.Identity) {
			return Allowed()
		}
		return Denied(ErrCodeForbidden, "not the author and not a moderator")
	}
}
