// Package memory is the in-process store: bounded per-channel message logs
// and per-user notification lists. It is the reference backend the durable
// implementations must match.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/pulsechat/pulsechat-server/internal/core"
)

// Store keeps everything in process memory behind one mutex.
type Store struct {
	mu sync.Mutex

	logs  map[string][]core.ChatMessage // channel id -> ascending by creation
	notes map[string][]core.Notification // user id -> newest-first

	historyCap int
	noteCap    int
	now        func() time.Time
}

// New builds a store with the given retention caps.
func New(historyCap, notificationCap int) *Store {
	if historyCap <= 0 {
		historyCap = 1000
	}
	if notificationCap <= 0 {
		notificationCap = 100
	}
	return &Store{
		logs:       make(map[string][]core.ChatMessage),
		notes:      make(map[string][]core.Notification),
		historyCap: historyCap,
		noteCap:    notificationCap,
		now:        time.Now,
	}
}

// AppendMessage adds to the channel log, evicting the oldest beyond the cap.
func (s *Store) AppendMessage(_ context.Context, msg *core.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := append(s.logs[msg.ChannelID], *msg)
	if len(log) > s.historyCap {
		log = log[len(log)-s.historyCap:]
	}
	s.logs[msg.ChannelID] = log
	return nil
}

// MessageHistory pages the channel log backwards from beforeID, returning
// the page in ascending creation order.
func (s *Store) MessageHistory(_ context.Context, channelID, beforeID string, limit int) ([]core.ChatMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logs[channelID]
	end := len(log)
	if beforeID != "" {
		for i := range log {
			if log[i].ID == beforeID {
				end = i
				break
			}
		}
	}

	start := end - limit
	if start < 0 {
		start = 0
	}
	page := make([]core.ChatMessage, end-start)
	copy(page, log[start:end])
	return page, start > 0, nil
}

// FindMessage locates a message by id with a linear scan across all channel
// logs. O(total messages); an id->location index would make this O(1).
func (s *Store) FindMessage(_ context.Context, id string) (*core.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, log := range s.logs {
		for i := range log {
			if log[i].ID == id {
				msg := log[i]
				return &msg, nil
			}
		}
	}
	return nil, core.ErrNotFound
}

// UpdateMessage replaces the stored message with the same id.
func (s *Store) UpdateMessage(_ context.Context, msg *core.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logs[msg.ChannelID]
	for i := range log {
		if log[i].ID == msg.ID {
			log[i] = *msg
			return nil
		}
	}
	return core.ErrNotFound
}

// DeleteMessage removes the message from its channel log.
func (s *Store) DeleteMessage(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for channel, log := range s.logs {
		for i := range log {
			if log[i].ID == id {
				s.logs[channel] = append(log[:i], log[i+1:]...)
				return nil
			}
		}
	}
	return core.ErrNotFound
}

// AppendNotification prepends to the user's list, evicting beyond the cap.
func (s *Store) AppendNotification(_ context.Context, n *core.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := append([]core.Notification{*n}, s.notes[n.UserID]...)
	if len(list) > s.noteCap {
		list = list[:s.noteCap]
	}
	s.notes[n.UserID] = list
	return nil
}

// NotificationsByUser lists newest-first, filtering expired entries at read
// time without deleting them.
func (s *Store) NotificationsByUser(_ context.Context, userID string) ([]core.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	list := s.notes[userID]
	out := make([]core.Notification, 0, len(list))
	for i := range list {
		if list[i].Expired(now) {
			continue
		}
		out = append(out, list[i])
	}
	return out, nil
}

// MarkNotificationRead flags one notification read in place.
func (s *Store) MarkNotificationRead(_ context.Context, userID, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.notes[userID]
	for i := range list {
		if list[i].ID == id {
			list[i].IsRead = true
			return true, nil
		}
	}
	return false, nil
}

// MarkAllNotificationsRead flags everything read; returns how many changed.
func (s *Store) MarkAllNotificationsRead(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	list := s.notes[userID]
	for i := range list {
		if !list[i].IsRead {
			list[i].IsRead = true
			changed++
		}
	}
	return changed, nil
}

// ClearNotification removes one notification outright.
func (s *Store) ClearNotification(_ context.Context, userID, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.notes[userID]
	for i := range list {
		if list[i].ID == id {
			s.notes[userID] = append(list[:i], list[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// Close is a no-op for the in-memory backend.
func (s *Store) Close() error { return nil }
