package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinRoom subscribes the client to a room.
	CommandJoinRoom CommandKind = iota
	// CommandLeaveRoom unsubscribes the client from a room.
	CommandLeaveRoom
	// CommandSendMessage delivers a chat message to room participants.
	CommandSendMessage
	// CommandEditMessage mutates an existing message's content.
	CommandEditMessage
	// CommandDeleteMessage removes a message from its channel log.
	CommandDeleteMessage
	// CommandTyping broadcasts an ephemeral typing indicator.
	CommandTyping
	// CommandSetStatus applies an explicit presence status.
	CommandSetStatus
	// CommandHistory requests a page of channel history.
	CommandHistory
	// CommandMarkNotificationRead flags one notification read.
	CommandMarkNotificationRead
	// CommandMarkAllNotificationsRead flags all notifications read.
	CommandMarkAllNotificationsRead
	// CommandClearNotification removes one notification.
	CommandClearNotification
	// CommandSubscribeData registers a data subscription and triggers an
	// immediate sync.
	CommandSubscribeData
)

// Command represents an action requested by a client. AckID correlates the
// acknowledgment event with the wire frame that asked for it.
type Command struct {
	Kind  CommandKind
	AckID string

	Room    string
	Message ChatMessage

	// Edit/delete.
	MessageID string
	Content   string

	// Typing indicator.
	Typing bool

	// Presence status.
	Status PresenceStatus

	// History paging.
	Before string
	Limit  int

	// Notifications.
	NotificationID string

	// Data subscription.
	DataType string
	Filters  map[string]string
}
