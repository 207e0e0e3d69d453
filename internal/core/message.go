package core

import "time"

// MessageType classifies a chat message.
type MessageType string

const (
	MessageTypeText         MessageType = "text"
	MessageTypeImage        MessageType = "image"
	MessageTypeFile         MessageType = "file"
	MessageTypeSystem       MessageType = "system"
	MessageTypeAnnouncement MessageType = "announcement"
)

// Attachment is a file or image attached to a message.
type Attachment struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	MimeType string `json:"mimeType,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Reaction is an emoji reaction and the users who applied it.
type Reaction struct {
	Emoji   string   `json:"emoji"`
	UserIDs []string `json:"userIds"`
}

// ChatMessage is the domain model for a chat message. It lives in a bounded
// per-channel log; oldest entries are evicted beyond the channel cap.
type ChatMessage struct {
	ID          string       `json:"id"`
	ChannelID   string       `json:"channelId"`
	Type        MessageType  `json:"type"`
	Content     string       `json:"content"`
	AuthorID    string       `json:"authorId"`
	Author      UserRef      `json:"author"`
	ReplyToID   string       `json:"replyToId,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Mentions    []string     `json:"mentions,omitempty"`
	Reactions   []Reaction   `json:"reactions,omitempty"`
	IsEdited    bool         `json:"isEdited"`
	EditedAt    *time.Time   `json:"editedAt,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// CanModify reports whether the identity may edit or delete the message:
// the author, or any holder of the moderate capability.
func (m *ChatMessage) CanModify(id *Identity) bool {
	if id == nil {
		return false
	}
	return m.AuthorID == id.ID || id.Has(CapabilityModerate)
}
