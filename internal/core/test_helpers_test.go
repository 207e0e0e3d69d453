package core

import (
	"context"
	"testing"
	"time"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func mustNoEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event kind %v: %+v", kind, ev)
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func ident(id string, caps ...Capability) *Identity {
	if len(caps) == 0 {
		caps = []Capability{CapabilityRealtime, CapabilityWrite}
	}
	return &Identity{
		ID:           id,
		Username:     id,
		DisplayName:  id,
		Capabilities: caps,
	}
}

func newTestHub(t *testing.T) (*Hub, *fakeStore) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := newFakeStore()
	hub := NewHub(store, DefaultHubConfig(), nil, nil)
	go hub.Run(ctx)
	return hub, store
}

// fakeStore is a minimal in-package fixture so hub tests do not depend on a
// concrete backend package.
type fakeStore struct {
	messages map[string][]ChatMessage
	notes    map[string][]Notification
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		messages: make(map[string][]ChatMessage),
		notes:    make(map[string][]Notification),
	}
}

func (s *fakeStore) AppendMessage(_ context.Context, msg *ChatMessage) error {
	s.messages[msg.ChannelID] = append(s.messages[msg.ChannelID], *msg)
	return nil
}

func (s *fakeStore) MessageHistory(_ context.Context, channelID, _ string, limit int) ([]ChatMessage, bool, error) {
	log := s.messages[channelID]
	if len(log) > limit {
		return append([]ChatMessage(nil), log[len(log)-limit:]...), true, nil
	}
	return append([]ChatMessage(nil), log...), false, nil
}

func (s *fakeStore) FindMessage(_ context.Context, id string) (*ChatMessage, error) {
	for _, log := range s.messages {
		for i := range log {
			if log[i].ID == id {
				msg := log[i]
				return &msg, nil
			}
		}
	}
	return nil, ErrNotFound
}

func (s *fakeStore) UpdateMessage(_ context.Context, msg *ChatMessage) error {
	log := s.messages[msg.ChannelID]
	for i := range log {
		if log[i].ID == msg.ID {
			log[i] = *msg
			return nil
		}
	}
	return ErrNotFound
}

func (s *fakeStore) DeleteMessage(_ context.Context, id string) error {
	for ch, log := range s.messages {
		for i := range log {
			if log[i].ID == id {
				s.messages[ch] = append(log[:i], log[i+1:]...)
				return nil
			}
		}
	}
	return ErrNotFound
}

func (s *fakeStore) AppendNotification(_ context.Context, n *Notification) error {
	s.notes[n.UserID] = append([]Notification{*n}, s.notes[n.UserID]...)
	return nil
}

func (s *fakeStore) NotificationsByUser(_ context.Context, userID string) ([]Notification, error) {
	return append([]Notification(nil), s.notes[userID]...), nil
}

func (s *fakeStore) MarkNotificationRead(_ context.Context, userID, id string) (bool, error) {
	for i := range s.notes[userID] {
		if s.notes[userID][i].ID == id {
			s.notes[userID][i].IsRead = true
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) MarkAllNotificationsRead(_ context.Context, userID string) (int, error) {
	changed := 0
	for i := range s.notes[userID] {
		if !s.notes[userID][i].IsRead {
			s.notes[userID][i].IsRead = true
			changed++
		}
	}
	return changed, nil
}

func (s *fakeStore) ClearNotification(_ context.Context, userID, id string) (bool, error) {
	for i := range s.notes[userID] {
		if s.notes[userID][i].ID == id {
			s.notes[userID] = append(s.notes[userID][:i], s.notes[userID][i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) Close() error { return nil }
