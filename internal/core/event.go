package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventMessageNew notifies room subscribers about a new chat message.
	EventMessageNew EventKind = iota
	// EventMessageEdit carries a partial update for an edited message.
	EventMessageEdit
	// EventMessageDelete carries the id of a deleted message.
	EventMessageDelete
	// EventTyping is the ephemeral typing indicator.
	EventTyping
	// EventUserOnline announces a user's first connection.
	EventUserOnline
	// EventUserOffline announces a user's last connection closing.
	EventUserOffline
	// EventPresenceSnapshot delivers the full online-user list.
	EventPresenceSnapshot
	// EventHistory delivers a page of channel history.
	EventHistory
	// EventNotification delivers a notification record.
	EventNotification
	// EventDataSync delivers a versioned data subscription payload.
	EventDataSync
	// EventAck acknowledges a client command.
	EventAck
	// EventError notifies clients about a domain error.
	EventError
)

// Ack correlates a result with the wire frame that requested it.
type Ack struct {
	ID string
	OK bool
	// Message is set for acknowledged sends (the stored message).
	Message *ChatMessage
	// Code and Reason are set on failure.
	Code   string
	Reason string
}

// DataSync is a versioned payload for a data subscription.
type DataSync struct {
	Type    string
	Version uint64
	Payload any
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind EventKind

	Room string
	User UserRef
	// UserID alone identifies a user whose descriptor is no longer
	// available (offline broadcasts).
	UserID string

	Message  *ChatMessage
	Messages []ChatMessage
	HasMore  bool

	Typing bool

	Presence []PresenceEntry

	Notification *Notification

	Sync *DataSync

	Ack   *Ack
	Error *CoreError
}
