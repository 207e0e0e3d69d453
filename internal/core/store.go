package core

import "context"

// MessageStore is the read/write contract for per-channel message logs:
// append with bounded eviction, cursor paging, lookup by id, update, delete.
// The in-memory implementation is authoritative; any durable backend must
// satisfy the same semantics.
type MessageStore interface {
	// AppendMessage adds the message to its channel log, evicting the
	// oldest entries beyond the channel cap.
	AppendMessage(ctx context.Context, msg *ChatMessage) error

	// MessageHistory returns up to limit messages from the channel ordered
	// by creation time ascending. A non-empty beforeID pages backwards from
	// that message. The bool reports whether older messages remain.
	MessageHistory(ctx context.Context, channelID, beforeID string, limit int) ([]ChatMessage, bool, error)

	// FindMessage locates a message by id. Implementations may scan
	// per-channel logs linearly.
	FindMessage(ctx context.Context, id string) (*ChatMessage, error)

	// UpdateMessage replaces the stored message with the same id.
	UpdateMessage(ctx context.Context, msg *ChatMessage) error

	// DeleteMessage removes the message from its channel log.
	DeleteMessage(ctx context.Context, id string) error
}

// NotificationStore retains per-user notification lists newest-first up to a
// cap. Reads exclude expired entries without deleting them.
type NotificationStore interface {
	// AppendNotification prepends to the target user's list, evicting
	// beyond the cap.
	AppendNotification(ctx context.Context, n *Notification) error

	// NotificationsByUser lists the user's notifications newest-first,
	// excluding expired entries.
	NotificationsByUser(ctx context.Context, userID string) ([]Notification, error)

	// MarkNotificationRead flags one notification read. Returns false when
	// the id is unknown for that user.
	MarkNotificationRead(ctx context.Context, userID, id string) (bool, error)

	// MarkAllNotificationsRead flags every notification read and returns
	// how many changed.
	MarkAllNotificationsRead(ctx context.Context, userID string) (int, error)

	// ClearNotification removes one notification outright.
	ClearNotification(ctx context.Context, userID, id string) (bool, error)
}

// Store is the full pluggable persistence contract.
type Store interface {
	MessageStore
	NotificationStore
	Close() error
}
