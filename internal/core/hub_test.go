package core

import (
	"context"
	"testing"
	"time"
)

func TestHubJoinSendBroadcast(t *testing.T) {
	hub, _ := newTestHub(t)

	alice := NewClient("a", ident("alice"))
	bob := NewClient("b", ident("bob"))
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	alice.Commands <- &Command{Kind: CommandJoinRoom, Room: "general"}
	bob.Commands <- &Command{Kind: CommandJoinRoom, Room: "general"}

	alice.Commands <- &Command{
		Kind:    CommandSendMessage,
		AckID:   "m1",
		Room:    "general",
		Message: ChatMessage{Content: "hi"},
	}

	msgEv := mustEvent(t, bob.Events, EventMessageNew)
	if msgEv.Message == nil || msgEv.Message.Content != "hi" {
		t.Fatalf("unexpected message event: %+v", msgEv)
	}
	if msgEv.Message.ChannelID != "general" || msgEv.Message.AuthorID != "alice" {
		t.Fatalf("message not attributed: %+v", msgEv.Message)
	}
	if msgEv.Message.ID == "" || msgEv.Message.CreatedAt.IsZero() {
		t.Fatalf("message missing server-side fields: %+v", msgEv.Message)
	}

	ackEv := mustEvent(t, alice.Events, EventAck)
	if ackEv.Ack == nil || ackEv.Ack.ID != "m1" || !ackEv.Ack.OK {
		t.Fatalf("expected positive ack for m1, got %+v", ackEv.Ack)
	}
	if ackEv.Ack.Message == nil || ackEv.Ack.Message.ID != msgEv.Message.ID {
		t.Fatalf("ack should carry the stored message, got %+v", ackEv.Ack)
	}
}

func TestHubSendWithoutJoinRejected(t *testing.T) {
	hub, _ := newTestHub(t)

	alice := NewClient("a", ident("alice"))
	hub.RegisterClient(alice)

	alice.Commands <- &Command{
		Kind:    CommandSendMessage,
		AckID:   "m1",
		Room:    "general",
		Message: ChatMessage{Content: "hi"},
	}

	ackEv := mustEvent(t, alice.Events, EventAck)
	if ackEv.Ack == nil || ackEv.Ack.OK {
		t.Fatalf("expected rejected ack, got %+v", ackEv.Ack)
	}
	if ackEv.Ack.Code != ErrCodeNotInRoom {
		t.Fatalf("expected not_in_room code, got %q", ackEv.Ack.Code)
	}
}

func TestHubSendRequiresWriteCapability(t *testing.T) {
	hub, _ := newTestHub(t)

	guest := NewClient("g", ident("guest", CapabilityRealtime))
	hub.RegisterClient(guest)

	guest.Commands <- &Command{Kind: CommandJoinRoom, Room: "general"}
	guest.Commands <- &Command{
		Kind:    CommandSendMessage,
		AckID:   "m1",
		Room:    "general",
		Message: ChatMessage{Content: "hi"},
	}

	ackEv := mustEvent(t, guest.Events, EventAck)
	if ackEv.Ack == nil || ackEv.Ack.ID != "m1" || ackEv.Ack.OK {
		t.Fatalf("expected capability rejection, got %+v", ackEv.Ack)
	}
	if ackEv.Ack.Code != ErrCodeNoCapability {
		t.Fatalf("expected missing_capability code, got %q", ackEv.Ack.Code)
	}
}

func TestHubOnlineBroadcastOncePerUser(t *testing.T) {
	hub, _ := newTestHub(t)

	observer := NewClient("o", ident("observer"))
	hub.RegisterClient(observer)

	first := NewClient("b1", ident("bob"))
	hub.RegisterClient(first)

	onlineEv := mustEvent(t, observer.Events, EventUserOnline)
	if onlineEv.User.ID != "bob" {
		t.Fatalf("unexpected online event: %+v", onlineEv)
	}

	// A second tab of the same user must not announce again.
	second := NewClient("b2", ident("bob"))
	hub.RegisterClient(second)
	mustNoEvent(t, observer.Events, EventUserOnline)
}

func TestHubOfflineOnLastDisconnectOnly(t *testing.T) {
	hub, _ := newTestHub(t)

	observer := NewClient("o", ident("observer"))
	hub.RegisterClient(observer)

	first := NewClient("b1", ident("bob"))
	second := NewClient("b2", ident("bob"))
	hub.RegisterClient(first)
	hub.RegisterClient(second)
	mustEvent(t, observer.Events, EventUserOnline)

	hub.UnregisterClient(first)
	mustNoEvent(t, observer.Events, EventUserOffline)

	hub.UnregisterClient(second)
	offEv := mustEvent(t, observer.Events, EventUserOffline)
	if offEv.UserID != "bob" {
		t.Fatalf("offline event should carry the user id, got %+v", offEv)
	}
}

func TestHubMentionNotifiesOncePerUser(t *testing.T) {
	hub, store := newTestHub(t)

	alice := NewClient("a", ident("alice"))
	bob := NewClient("b", ident("bob"))
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	alice.Commands <- &Command{Kind: CommandJoinRoom, Room: "general"}
	alice.Commands <- &Command{
		Kind:    CommandSendMessage,
		AckID:   "m1",
		Room:    "general",
		Message: ChatMessage{Content: "hey @bob", Mentions: []string{"bob", "bob", "alice"}},
	}

	noteEv := mustEvent(t, bob.Events, EventNotification)
	if noteEv.Notification == nil || noteEv.Notification.Type != "mention" {
		t.Fatalf("unexpected notification: %+v", noteEv)
	}
	mustNoEvent(t, bob.Events, EventNotification)

	mustEvent(t, alice.Events, EventAck)
	mustNoEvent(t, alice.Events, EventNotification)

	bobNotes, _ := store.NotificationsByUser(context.Background(), "bob")
	if len(bobNotes) != 1 {
		t.Fatalf("expected 1 stored notification for bob, got %d", len(bobNotes))
	}
	aliceNotes, _ := store.NotificationsByUser(context.Background(), "alice")
	if len(aliceNotes) != 0 {
		t.Fatalf("self-mention must not notify, got %d", len(aliceNotes))
	}
}

func TestHubEditByNonAuthorDenied(t *testing.T) {
	hub, store := newTestHub(t)

	alice := NewClient("a", ident("alice"))
	carol := NewClient("c", ident("carol"))
	hub.RegisterClient(alice)
	hub.RegisterClient(carol)

	alice.Commands <- &Command{Kind: CommandJoinRoom, Room: "general"}
	alice.Commands <- &Command{
		Kind:    CommandSendMessage,
		AckID:   "m1",
		Room:    "general",
		Message: ChatMessage{Content: "original"},
	}
	ackEv := mustEvent(t, alice.Events, EventAck)
	msgID := ackEv.Ack.Message.ID

	carol.Commands <- &Command{Kind: CommandEditMessage, AckID: "e1", MessageID: msgID, Content: "tampered"}
	editAck := mustEvent(t, carol.Events, EventAck)
	if editAck.Ack.OK {
		t.Fatalf("non-author edit must be rejected, got %+v", editAck.Ack)
	}

	stored, err := store.FindMessage(context.Background(), msgID)
	if err != nil || stored.Content != "original" {
		t.Fatalf("message should be unchanged, got %+v (err %v)", stored, err)
	}
}

func TestHubModeratorCanEditOthersMessage(t *testing.T) {
	hub, store := newTestHub(t)

	alice := NewClient("a", ident("alice"))
	mod := NewClient("m", ident("mod", CapabilityRealtime, CapabilityWrite, CapabilityModerate))
	hub.RegisterClient(alice)
	hub.RegisterClient(mod)

	alice.Commands <- &Command{Kind: CommandJoinRoom, Room: "general"}
	mod.Commands <- &Command{Kind: CommandJoinRoom, Room: "general"}
	alice.Commands <- &Command{
		Kind:    CommandSendMessage,
		AckID:   "m1",
		Room:    "general",
		Message: ChatMessage{Content: "original"},
	}
	ackEv := mustEvent(t, alice.Events, EventAck)
	msgID := ackEv.Ack.Message.ID

	mod.Commands <- &Command{Kind: CommandEditMessage, AckID: "e1", MessageID: msgID, Content: "moderated"}
	editAck := mustEvent(t, mod.Events, EventAck)
	if !editAck.Ack.OK {
		t.Fatalf("moderator edit should succeed, got %+v", editAck.Ack)
	}

	// Room subscribers see a partial update, not a full message.
	editEv := mustEvent(t, alice.Events, EventMessageEdit)
	if editEv.Message.ID != msgID || editEv.Message.Content != "moderated" || !editEv.Message.IsEdited {
		t.Fatalf("unexpected edit broadcast: %+v", editEv.Message)
	}
	if editEv.Message.AuthorID != "" {
		t.Fatalf("edit broadcast should be partial, got %+v", editEv.Message)
	}

	stored, _ := store.FindMessage(context.Background(), msgID)
	if stored.Content != "moderated" || !stored.IsEdited || stored.EditedAt == nil {
		t.Fatalf("edit not persisted: %+v", stored)
	}
}

func TestHubEditUnknownMessage(t *testing.T) {
	hub, _ := newTestHub(t)

	alice := NewClient("a", ident("alice"))
	hub.RegisterClient(alice)

	alice.Commands <- &Command{Kind: CommandEditMessage, AckID: "e1", MessageID: "nope", Content: "x"}
	ackEv := mustEvent(t, alice.Events, EventAck)
	if ackEv.Ack.OK || ackEv.Ack.Reason != "message not found" {
		t.Fatalf("expected not-found ack, got %+v", ackEv.Ack)
	}
	if ackEv.Ack.Code != ErrCodeNotFound {
		t.Fatalf("expected not_found code, got %q", ackEv.Ack.Code)
	}
}

func TestHubDeleteBroadcastsIDOnly(t *testing.T) {
	hub, store := newTestHub(t)

	alice := NewClient("a", ident("alice"))
	bob := NewClient("b", ident("bob"))
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	alice.Commands <- &Command{Kind: CommandJoinRoom, Room: "general"}
	bob.Commands <- &Command{Kind: CommandJoinRoom, Room: "general"}
	alice.Commands <- &Command{
		Kind:    CommandSendMessage,
		AckID:   "m1",
		Room:    "general",
		Message: ChatMessage{Content: "oops"},
	}
	ackEv := mustEvent(t, alice.Events, EventAck)
	msgID := ackEv.Ack.Message.ID
	mustEvent(t, bob.Events, EventMessageNew)

	alice.Commands <- &Command{Kind: CommandDeleteMessage, AckID: "d1", MessageID: msgID}

	delEv := mustEvent(t, bob.Events, EventMessageDelete)
	if delEv.Message.ID != msgID || delEv.Message.Content != "" {
		t.Fatalf("delete broadcast should carry the id only, got %+v", delEv.Message)
	}

	if _, err := store.FindMessage(context.Background(), msgID); err == nil {
		t.Fatal("message should be gone from the store")
	}
}

func TestHubTypingThrottledAndNotEchoed(t *testing.T) {
	hub, _ := newTestHub(t)

	alice := NewClient("a", ident("alice"))
	bob := NewClient("b", ident("bob"))
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	alice.Commands <- &Command{Kind: CommandJoinRoom, Room: "general"}
	bob.Commands <- &Command{Kind: CommandJoinRoom, Room: "general"}

	alice.Commands <- &Command{Kind: CommandTyping, Room: "general", Typing: true}
	alice.Commands <- &Command{Kind: CommandTyping, Room: "general", Typing: true}

	typingEv := mustEvent(t, bob.Events, EventTyping)
	if typingEv.User.ID != "alice" || !typingEv.Typing {
		t.Fatalf("unexpected typing event: %+v", typingEv)
	}
	// Second indicator inside the throttle window is swallowed.
	mustNoEvent(t, bob.Events, EventTyping)
	// The sender never sees their own indicator.
	mustNoEvent(t, alice.Events, EventTyping)
}

func TestHubHistoryPage(t *testing.T) {
	hub, store := newTestHub(t)

	now := time.Now()
	for _, id := range []string{"m1", "m2", "m3"} {
		store.AppendMessage(context.Background(), &ChatMessage{
			ID: id, ChannelID: "general", Content: id, CreatedAt: now,
		})
	}

	alice := NewClient("a", ident("alice"))
	hub.RegisterClient(alice)

	alice.Commands <- &Command{Kind: CommandHistory, Room: "general", Limit: 2}

	histEv := mustEvent(t, alice.Events, EventHistory)
	if len(histEv.Messages) != 2 || !histEv.HasMore {
		t.Fatalf("expected 2 messages with more remaining, got %+v", histEv)
	}
}

func TestHubSetStatus(t *testing.T) {
	hub, _ := newTestHub(t)

	alice := NewClient("a", ident("alice"))
	hub.RegisterClient(alice)

	alice.Commands <- &Command{Kind: CommandSetStatus, AckID: "s1", Status: "sleeping"}
	errEv := mustEvent(t, alice.Events, EventError)
	if errEv.Error == nil || errEv.Error.Code != ErrCodeBadRequest {
		t.Fatalf("expected bad_request for invalid status, got %+v", errEv)
	}

	alice.Commands <- &Command{Kind: CommandSetStatus, AckID: "s2", Status: StatusBusy}
	ackEv := mustEvent(t, alice.Events, EventAck)
	if ackEv.Ack.ID != "s2" || !ackEv.Ack.OK {
		t.Fatalf("expected status ack, got %+v", ackEv.Ack)
	}
}

func TestHubSubscribePresenceSync(t *testing.T) {
	hub, _ := newTestHub(t)

	alice := NewClient("a", ident("alice"))
	hub.RegisterClient(alice)

	alice.Commands <- &Command{Kind: CommandSubscribeData, DataType: "presence"}

	syncEv := mustEvent(t, alice.Events, EventDataSync)
	if syncEv.Sync == nil || syncEv.Sync.Type != "presence" || syncEv.Sync.Version == 0 {
		t.Fatalf("unexpected sync event: %+v", syncEv)
	}
}

func TestHubUnreadNotificationsDeliveredOnConnect(t *testing.T) {
	hub, store := newTestHub(t)

	store.AppendNotification(context.Background(), &Notification{
		ID: "n1", Type: "system", Title: "pending", UserID: "bob",
	})
	store.AppendNotification(context.Background(), &Notification{
		ID: "n2", Type: "system", Title: "seen", UserID: "bob", IsRead: true,
	})

	bob := NewClient("b", ident("bob"))
	hub.RegisterClient(bob)

	noteEv := mustEvent(t, bob.Events, EventNotification)
	if noteEv.Notification.ID != "n1" {
		t.Fatalf("expected the unread notification, got %+v", noteEv.Notification)
	}
	mustNoEvent(t, bob.Events, EventNotification)
}

func TestHubMarkAllNotificationsRead(t *testing.T) {
	hub, store := newTestHub(t)

	bob := NewClient("b", ident("bob"))
	hub.RegisterClient(bob)
	store.AppendNotification(context.Background(), &Notification{ID: "n1", UserID: "bob"})
	store.AppendNotification(context.Background(), &Notification{ID: "n2", UserID: "bob"})

	bob.Commands <- &Command{Kind: CommandMarkAllNotificationsRead, AckID: "r1"}
	ackEv := mustEvent(t, bob.Events, EventAck)
	if !ackEv.Ack.OK {
		t.Fatalf("expected ack, got %+v", ackEv.Ack)
	}

	notes, _ := store.NotificationsByUser(context.Background(), "bob")
	for _, n := range notes {
		if !n.IsRead {
			t.Fatalf("notification %s still unread", n.ID)
		}
	}
}

func TestHubExternalNotifyReachesAllConnections(t *testing.T) {
	hub, _ := newTestHub(t)

	tab1 := NewClient("b1", ident("bob"))
	tab2 := NewClient("b2", ident("bob"))
	hub.RegisterClient(tab1)
	hub.RegisterClient(tab2)

	hub.Notify(&Notification{Type: "announcement", Title: "maintenance", UserID: "bob"})

	for _, c := range []*Client{tab1, tab2} {
		noteEv := mustEvent(t, c.Events, EventNotification)
		if noteEv.Notification.Title != "maintenance" {
			t.Fatalf("unexpected notification on %s: %+v", c.ID, noteEv.Notification)
		}
	}
}

func TestHubSubscribeDataAcknowledged(t *testing.T) {
	hub, _ := newTestHub(t)

	alice := NewClient("a", ident("alice"))
	hub.RegisterClient(alice)

	alice.Commands <- &Command{Kind: CommandSubscribeData, AckID: "s1", DataType: "presence"}
	ackEv := mustEvent(t, alice.Events, EventAck)
	if ackEv.Ack.ID != "s1" || !ackEv.Ack.OK {
		t.Fatalf("subscribe not acknowledged: %+v", ackEv.Ack)
	}
	syncEv := mustEvent(t, alice.Events, EventDataSync)
	if syncEv.Sync == nil || syncEv.Sync.Type != "presence" {
		t.Fatalf("initial sync missing after ack: %+v", syncEv)
	}

	alice.Commands <- &Command{Kind: CommandSubscribeData, AckID: "s2", DataType: "weather"}
	nackEv := mustEvent(t, alice.Events, EventAck)
	if nackEv.Ack.ID != "s2" || nackEv.Ack.OK {
		t.Fatalf("unknown data type should fail the correlated ack: %+v", nackEv.Ack)
	}
	if nackEv.Ack.Code != ErrCodeBadRequest {
		t.Fatalf("expected bad_request code, got %q", nackEv.Ack.Code)
	}
}

func TestHubNotificationSyncCarriesUnreadCount(t *testing.T) {
	hub, store := newTestHub(t)

	store.AppendNotification(context.Background(), &Notification{ID: "n1", UserID: "bob"})
	store.AppendNotification(context.Background(), &Notification{ID: "n2", UserID: "bob", IsRead: true})

	bob := NewClient("b", ident("bob"))
	hub.RegisterClient(bob)

	bob.Commands <- &Command{Kind: CommandSubscribeData, AckID: "s1", DataType: "notifications"}
	syncEv := mustEvent(t, bob.Events, EventDataSync)
	payload, ok := syncEv.Sync.Payload.(*NotificationSync)
	if !ok {
		t.Fatalf("unexpected sync payload type %T", syncEv.Sync.Payload)
	}
	if len(payload.Notifications) != 2 || payload.Unread != 1 {
		t.Fatalf("unexpected sync payload: %+v", payload)
	}
}

func TestHubNotificationSyncBatchesBursts(t *testing.T) {
	hub, store := newTestHub(t)

	store.AppendNotification(context.Background(), &Notification{ID: "n1", UserID: "bob"})
	store.AppendNotification(context.Background(), &Notification{ID: "n2", UserID: "bob"})

	bob := NewClient("b", ident("bob"))
	hub.RegisterClient(bob)

	bob.Commands <- &Command{Kind: CommandSubscribeData, AckID: "s1", DataType: "notifications"}
	mustEvent(t, bob.Events, EventDataSync)

	bob.Commands <- &Command{Kind: CommandMarkNotificationRead, AckID: "r1", NotificationID: "n1"}
	bob.Commands <- &Command{Kind: CommandMarkNotificationRead, AckID: "r2", NotificationID: "n2"}

	// The burst coalesces into batched pushes; wait for the sync that
	// reflects both reads.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if time.Now().After(deadline) {
			t.Fatal("no sync with both notifications read")
		}
		ev := mustEvent(t, bob.Events, EventDataSync)
		if payload, ok := ev.Sync.Payload.(*NotificationSync); ok && payload.Unread == 0 {
			break
		}
	}

	if hub.metrics.Snapshot().Batched == 0 {
		t.Fatal("sync pushes should go through the batcher")
	}
}

func TestHubShutdownFlushesPendingSync(t *testing.T) {
	store := newFakeStore()
	cfg := DefaultHubConfig()
	cfg.SyncBatchWindow = time.Hour
	hub := NewHub(store, cfg, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	store.AppendNotification(context.Background(), &Notification{ID: "n1", UserID: "bob"})

	bob := NewClient("b", ident("bob"))
	hub.RegisterClient(bob)

	bob.Commands <- &Command{Kind: CommandSubscribeData, AckID: "s1", DataType: "notifications"}
	first := mustEvent(t, bob.Events, EventDataSync)
	if payload := first.Sync.Payload.(*NotificationSync); payload.Unread != 1 {
		t.Fatalf("expected one unread in the initial sync, got %+v", payload)
	}

	bob.Commands <- &Command{Kind: CommandMarkAllNotificationsRead, AckID: "r1"}
	ackEv := mustEvent(t, bob.Events, EventAck)
	if ackEv.Ack.ID != "r1" || !ackEv.Ack.OK {
		t.Fatalf("mark-all not acknowledged: %+v", ackEv.Ack)
	}

	// The push sits in the hour-long batch window; shutdown must flush it.
	cancel()
	<-done

	flushed := mustEvent(t, bob.Events, EventDataSync)
	if payload := flushed.Sync.Payload.(*NotificationSync); payload.Unread != 0 {
		t.Fatalf("flushed sync should reflect the reads, got %+v", payload)
	}
}

func TestHubDefaultsNotificationExpiry(t *testing.T) {
	hub, _ := newTestHub(t)

	bob := NewClient("b", ident("bob"))
	hub.RegisterClient(bob)
	mustEvent(t, bob.Events, EventPresenceSnapshot)

	hub.Notify(&Notification{UserID: "bob", Type: "system", Title: "t", Message: "m"})
	ev := mustEvent(t, bob.Events, EventNotification)
	if ev.Notification.ExpiresAt == nil {
		t.Fatal("notification without expiry should get the default")
	}
	want := ev.Notification.CreatedAt.Add(30 * 24 * time.Hour)
	if !ev.Notification.ExpiresAt.Equal(want) {
		t.Fatalf("expiry %v, want %v", ev.Notification.ExpiresAt, want)
	}

	custom := time.Now().Add(time.Hour).Truncate(time.Second)
	hub.Notify(&Notification{UserID: "bob", Type: "system", Title: "t", Message: "m", ExpiresAt: &custom})
	ev = mustEvent(t, bob.Events, EventNotification)
	if !ev.Notification.ExpiresAt.Equal(custom) {
		t.Fatalf("explicit expiry overridden: %v", ev.Notification.ExpiresAt)
	}
}
