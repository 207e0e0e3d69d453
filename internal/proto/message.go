package proto

import (
	"encoding/json"
	"time"
)

const ProtocolVersion = 1

// Inbound frame types (client -> server).
const (
	InboundTypeAuthenticate = "authenticate"
	InboundTypeRoomJoin     = "room:join"
	InboundTypeRoomLeave    = "room:leave"
	InboundTypeMessageSend  = "message:send"
	InboundTypeMessageEdit  = "message:edit"
	InboundTypeMessageDel   = "message:delete"
	InboundTypeTyping       = "message:typing"
	InboundTypeHistory      = "message:history"
	InboundTypeStatus       = "presence:status"
	InboundTypeMarkRead     = "notification:mark_read"
	InboundTypeMarkAllRead  = "notification:mark_all_read"
	InboundTypeClearNotif   = "notification:clear"
	InboundTypeSubscribe    = "data:subscribe"
)

// Outbound event names (server -> client).
const (
	EventPresenceUpdate = "presence:update"
	EventUserOnline     = "user:online"
	EventUserOffline    = "user:offline"
	EventMessageNew     = "message:new"
	EventMessageEdit    = "message:edit"
	EventMessageDelete  = "message:delete"
	EventTyping         = "message:typing"
	EventHistory        = "message:history"
	EventNotification   = "notification:new"
	EventDataSync       = "data:sync"
)

// Outbound envelope types.
const (
	OutboundTypeEvent = "event"
	OutboundTypeAck   = "ack"
	OutboundTypeError = "error"
)

// Inbound is the envelope for frames coming from the client. ID, when set,
// asks for an acknowledgment correlated via Outbound.ReplyTo.
type Inbound struct {
	ID   string          `json:"id,omitempty"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Outbound is the envelope for frames sent to the client.
type Outbound struct {
	Type    string `json:"type"`
	Event   string `json:"event,omitempty"`
	ReplyTo string `json:"replyTo,omitempty"`
	OK      *bool  `json:"ok,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// AuthenticateData is the first frame on every connection.
type AuthenticateData struct {
	Token    string `json:"token"`
	Protocol int    `json:"protocol,omitempty"`
}

// RoomData addresses a room for join/leave.
type RoomData struct {
	Room string `json:"room"`
}

// SendData is a new chat message from the client.
type SendData struct {
	Room        string       `json:"room"`
	Content     string       `json:"content"`
	Type        string       `json:"type,omitempty"`
	ReplyToID   string       `json:"replyToId,omitempty"`
	Mentions    []string     `json:"mentions,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment mirrors the stored attachment shape on the wire.
type Attachment struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	MimeType string `json:"mimeType,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// EditData mutates an existing message.
type EditData struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// DeleteData removes an existing message.
type DeleteData struct {
	ID string `json:"id"`
}

// TypingData is the ephemeral typing indicator.
type TypingData struct {
	Room   string `json:"room"`
	Typing bool   `json:"typing"`
}

// HistoryData pages a channel's log backwards from Before.
type HistoryData struct {
	Room   string `json:"room"`
	Before string `json:"before,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// StatusData applies an explicit presence status.
type StatusData struct {
	Status string `json:"status"`
}

// MarkReadData flags one notification read; ClearData removes one.
type MarkReadData struct {
	ID string `json:"id"`
}

// SubscribeData registers a data subscription.
type SubscribeData struct {
	DataType string            `json:"dataType"`
	Filters  map[string]string `json:"filters,omitempty"`
}

// HistoryPayload is the message:history event body.
type HistoryPayload struct {
	Room     string `json:"room"`
	Messages any    `json:"messages"`
	HasMore  bool   `json:"hasMore"`
}

// TypingPayload is the message:typing event body.
type TypingPayload struct {
	Room   string `json:"room"`
	User   any    `json:"user"`
	Typing bool   `json:"typing"`
}

// OfflinePayload carries only the user id; the descriptor is gone with the
// presence entry.
type OfflinePayload struct {
	UserID string `json:"userId"`
}

// SyncPayload is the data:sync event body.
type SyncPayload struct {
	DataType string `json:"dataType"`
	Version  uint64 `json:"version"`
	Payload  any    `json:"payload"`
	SyncedAt int64  `json:"syncedAt"`
}

// NewSyncPayload stamps the sync time.
func NewSyncPayload(dataType string, version uint64, payload any) SyncPayload {
	return SyncPayload{
		DataType: dataType,
		Version:  version,
		Payload:  payload,
		SyncedAt: time.Now().Unix(),
	}
}
