package core

import "time"

// Client is one physical connection as seen by the core layer. The identity
// is attached by the handshake and immutable afterwards.
type Client struct {
	ID       string
	Identity *Identity
	Commands chan *Command
	Events   chan *Event
	Rooms    map[string]struct{}

	// Subscriptions maps data types ("presence", "notifications") to the
	// filters supplied on data:subscribe.
	Subscriptions map[string]map[string]string

	LastActivity time.Time

	done chan struct{}
}

// NewClient constructs a client with initialized channels.
func NewClient(id string, identity *Identity) *Client {
	return &Client{
		ID:            id,
		Identity:      identity,
		Commands:      make(chan *Command, 8),
		Events:        make(chan *Event, 32),
		Rooms:         make(map[string]struct{}),
		Subscriptions: make(map[string]map[string]string),
		LastActivity:  time.Now(),
		done:          make(chan struct{}),
	}
}

// UserID returns the owning user id, or empty for an unauthenticated client.
func (c *Client) UserID() string {
	if c.Identity == nil {
		return ""
	}
	return c.Identity.ID
}

// Send queues an event for the connection's write loop. Slow consumers drop;
// the caller decides whether to count the drop. Events for a torn-down
// client are discarded.
func (c *Client) Send(event *Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Events <- event:
		return true
	default:
		return false
	}
}

// Done is closed when the hub has finished tearing the client down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}
