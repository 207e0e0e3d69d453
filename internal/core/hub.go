package core

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/perf"
)

// HubConfig tunes the hub's timers and throttles.
type HubConfig struct {
	InactivityThreshold time.Duration
	PresenceSweep       time.Duration
	TypingThrottle      time.Duration
	HistoryPageSize     int
	// NotificationTTL is the default expiry for notifications created
	// without an explicit one. Zero retains them until the cap evicts.
	NotificationTTL time.Duration
	// SyncBatchSize and SyncBatchWindow bound how data subscription
	// pushes are coalesced before delivery.
	SyncBatchSize   int
	SyncBatchWindow time.Duration
}

// DefaultHubConfig mirrors the documented configuration defaults.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		InactivityThreshold: 5 * time.Minute,
		PresenceSweep:       60 * time.Second,
		TypingThrottle:      time.Second,
		HistoryPageSize:     50,
		NotificationTTL:     30 * 24 * time.Hour,
		SyncBatchSize:       16,
		SyncBatchWindow:     100 * time.Millisecond,
	}
}

// Hub owns every shared realtime registry: sessions, presence, rooms. All
// state is mutated on the single Run goroutine; clients reach it through
// channels, so no registry needs its own lock.
type Hub struct {
	cfg   HubConfig
	store Store
	log   *zerolog.Logger

	register   chan *Client
	unregister chan *Client
	commands   chan clientCommand
	tasks      chan func()

	sessions *sessionRegistry
	presence *presenceRegistry
	rooms    map[string]*Room

	throttler *perf.Throttler
	debouncer *perf.Debouncer
	batcher   *perf.Batcher
	metrics   *perf.Metrics

	syncVersion uint64
}

type clientCommand struct {
	client *Client
	cmd    *Command
}

// NewHub constructs a hub over the given store.
func NewHub(store Store, cfg HubConfig, metrics *perf.Metrics, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if metrics == nil {
		metrics = perf.NewMetrics(10)
	}
	if cfg.PresenceSweep <= 0 {
		cfg.PresenceSweep = 60 * time.Second
	}
	if cfg.HistoryPageSize <= 0 {
		cfg.HistoryPageSize = 50
	}
	if cfg.SyncBatchSize <= 0 {
		cfg.SyncBatchSize = 16
	}
	if cfg.SyncBatchWindow <= 0 {
		cfg.SyncBatchWindow = 100 * time.Millisecond
	}
	h := &Hub{
		cfg:        cfg,
		store:      store,
		log:        logger,
		register:   make(chan *Client, 8),
		unregister: make(chan *Client, 8),
		commands:   make(chan clientCommand, 64),
		tasks:      make(chan func(), 16),
		sessions:   newSessionRegistry(),
		presence:   newPresenceRegistry(cfg.InactivityThreshold),
		rooms:      make(map[string]*Room),
		throttler:  perf.NewThrottler(),
		debouncer:  perf.NewDebouncer(),
		metrics:    metrics,
	}
	h.batcher = perf.NewBatcher(cfg.SyncBatchSize, cfg.SyncBatchWindow, h.emitSyncBatch)
	return h
}

// Metrics exposes the hub's counter set.
func (h *Hub) Metrics() *perf.Metrics { return h.metrics }

// RegisterClient admits an authenticated connection.
func (h *Hub) RegisterClient(c *Client) {
	h.register <- c
}

// UnregisterClient removes a connection after any kind of disconnect.
func (h *Hub) UnregisterClient(c *Client) {
	h.unregister <- c
}

// Notify dispatches a notification from outside the hub loop.
func (h *Hub) Notify(n *Notification) {
	h.tasks <- func() { h.dispatchNotification(n) }
}

// Run processes hub traffic until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	reaper := time.NewTicker(h.cfg.PresenceSweep)
	defer reaper.Stop()
	defer h.debouncer.Stop()

	for {
		select {
		case c := <-h.register:
			h.handleRegister(ctx, c)
		case c := <-h.unregister:
			h.handleUnregister(c)
		case cc := <-h.commands:
			h.handleCommand(ctx, cc.client, cc.cmd)
		case task := <-h.tasks:
			task()
		case <-reaper.C:
			h.reap()
		case <-ctx.Done():
			// Pending sync batches are delivered before the loop exits
			// so a graceful shutdown does not swallow queued pushes.
			h.batcher.FlushAll()
			h.drainTasks()
			return
		}
	}
}

// drainTasks runs whatever the flush queued without blocking on more.
func (h *Hub) drainTasks() {
	for {
		select {
		case task := <-h.tasks:
			task()
		default:
			return
		}
	}
}

// pump forwards a client's commands into the hub's fan-in queue.
func (h *Hub) pump(c *Client) {
	for {
		select {
		case cmd, ok := <-c.Commands:
			if !ok {
				return
			}
			h.commands <- clientCommand{client: c, cmd: cmd}
		case <-c.done:
			return
		}
	}
}

func (h *Hub) handleRegister(ctx context.Context, c *Client) {
	h.sessions.add(c)
	isNew := h.presence.markOnline(c.Identity)

	h.log.Info().
		Str("conn_id", c.ID).
		Str("user_id", c.UserID()).
		Bool("first_connection", isNew).
		Msg("client registered")

	// Only the user's first connection produces an online broadcast;
	// reconnecting alongside a live tab must not duplicate it.
	if isNew {
		h.broadcastAll(&Event{Kind: EventUserOnline, User: c.Identity.Ref()}, c.ID)
		h.pushPresenceSync()
	}

	c.Send(&Event{Kind: EventPresenceSnapshot, Presence: h.presence.snapshot()})

	// Retained unread notifications wait for the next session; deliver them.
	if notes, err := h.store.NotificationsByUser(ctx, c.UserID()); err == nil {
		for i := range notes {
			if !notes[i].IsRead {
				n := notes[i]
				c.Send(&Event{Kind: EventNotification, Notification: &n})
			}
		}
	}

	go h.pump(c)
}

func (h *Hub) handleUnregister(c *Client) {
	select {
	case <-c.done:
		return // already torn down
	default:
	}

	// Synchronous cleanup: rooms, throttle/debounce keys, presence.
	for name := range c.Rooms {
		if room, ok := h.rooms[name]; ok {
			room.RemoveClient(c)
			if room.Empty() {
				delete(h.rooms, name)
			}
		}
	}
	h.throttler.Forget(c.ID)
	h.debouncer.CancelAll(c.ID)

	last := h.sessions.remove(c)
	if last && h.presence.remove(c.UserID()) {
		// The descriptor is gone with the entry; broadcast the id only.
		h.broadcastAll(&Event{Kind: EventUserOffline, UserID: c.UserID()}, c.ID)
		h.pushPresenceSync()
	}

	close(c.done)
	close(c.Events)

	h.log.Info().
		Str("conn_id", c.ID).
		Str("user_id", c.UserID()).
		Bool("last_connection", last).
		Msg("client unregistered")
}

// handleCommand runs one command to completion. Unexpected panics are
// contained here so a bad handler cannot take the loop down.
func (h *Hub) handleCommand(ctx context.Context, c *Client, cmd *Command) {
	defer func() {
		if r := recover(); r != nil {
			h.metrics.Error()
			h.log.Error().Interface("panic", r).Str("conn_id", c.ID).Msg("handler panic recovered")
		}
	}()

	select {
	case <-c.done:
		return // command raced a disconnect
	default:
	}

	h.metrics.Received(1)
	h.presence.touch(c.UserID())
	c.LastActivity = time.Now()

	switch cmd.Kind {
	case CommandJoinRoom:
		h.joinRoom(c, cmd)
	case CommandLeaveRoom:
		h.leaveRoom(c, cmd)
	case CommandSendMessage:
		h.sendMessage(ctx, c, cmd)
	case CommandEditMessage:
		h.editMessage(ctx, c, cmd)
	case CommandDeleteMessage:
		h.deleteMessage(ctx, c, cmd)
	case CommandTyping:
		h.typing(c, cmd)
	case CommandSetStatus:
		h.setStatus(c, cmd)
	case CommandHistory:
		h.history(ctx, c, cmd)
	case CommandMarkNotificationRead:
		h.markRead(ctx, c, cmd)
	case CommandMarkAllNotificationsRead:
		h.markAllRead(ctx, c, cmd)
	case CommandClearNotification:
		h.clearNotification(ctx, c, cmd)
	case CommandSubscribeData:
		h.subscribeData(ctx, c, cmd)
	default:
		c.Send(&Event{Kind: EventError, Error: coreError(ErrCodeBadRequest, "unknown command")})
	}
}

func (h *Hub) joinRoom(c *Client, cmd *Command) {
	room, ok := h.rooms[cmd.Room]
	if !ok {
		room = NewRoom(cmd.Room)
		h.rooms[cmd.Room] = room
	}
	room.AddClient(c)
	c.Rooms[cmd.Room] = struct{}{}
	h.ack(c, cmd.AckID, nil)
}

func (h *Hub) leaveRoom(c *Client, cmd *Command) {
	if room, ok := h.rooms[cmd.Room]; ok {
		room.RemoveClient(c)
		if room.Empty() {
			delete(h.rooms, cmd.Room)
		}
	}
	delete(c.Rooms, cmd.Room)
	h.ack(c, cmd.AckID, nil)
}

func (h *Hub) sendMessage(ctx context.Context, c *Client, cmd *Command) {
	guard := Chain(RequireCapability(CapabilityWrite), RequireRoomMembership(cmd.Room))
	if res := guard(c); !res.OK {
		h.nack(c, cmd.AckID, res.Code, res.Reason)
		return
	}

	now := time.Now()
	msg := cmd.Message
	msg.ID = uuid.NewString()
	msg.ChannelID = cmd.Room
	msg.AuthorID = c.UserID()
	msg.Author = c.Identity.Ref()
	msg.IsEdited = false
	msg.EditedAt = nil
	msg.CreatedAt = now
	msg.UpdatedAt = now
	if msg.Type == "" {
		msg.Type = MessageTypeText
	}

	if err := h.store.AppendMessage(ctx, &msg); err != nil {
		h.metrics.Error()
		h.log.Error().Err(err).Str("channel", cmd.Room).Msg("append message")
		h.nack(c, cmd.AckID, ErrCodeInternal, "internal error")
		return
	}

	h.broadcastRoom(cmd.Room, &Event{Kind: EventMessageNew, Room: cmd.Room, Message: &msg}, nil)
	h.ack(c, cmd.AckID, &msg)

	for _, target := range dedupeMentions(msg.Mentions) {
		if target == c.UserID() {
			continue
		}
		h.dispatchNotification(&Notification{
			Type:     "mention",
			Title:    "You were mentioned",
			Message:  msg.Author.DisplayName + " mentioned you in " + cmd.Room,
			Priority: PriorityHigh,
			UserID:   target,
		})
	}
}

func (h *Hub) editMessage(ctx context.Context, c *Client, cmd *Command) {
	msg, err := h.store.FindMessage(ctx, cmd.MessageID)
	if err != nil {
		h.nack(c, cmd.AckID, ErrCodeNotFound, "message not found")
		return
	}
	if res := RequireAuthorOrModerator(msg)(c); !res.OK {
		h.nack(c, cmd.AckID, res.Code, res.Reason)
		return
	}

	now := time.Now()
	msg.Content = cmd.Content
	msg.IsEdited = true
	msg.EditedAt = &now
	msg.UpdatedAt = now
	if err := h.store.UpdateMessage(ctx, msg); err != nil {
		h.metrics.Error()
		h.nack(c, cmd.AckID, ErrCodeInternal, "internal error")
		return
	}

	// Partial update: id, new content and edit markers only.
	partial := &ChatMessage{
		ID:        msg.ID,
		ChannelID: msg.ChannelID,
		Content:   msg.Content,
		IsEdited:  true,
		EditedAt:  msg.EditedAt,
		UpdatedAt: msg.UpdatedAt,
	}
	h.broadcastRoom(msg.ChannelID, &Event{Kind: EventMessageEdit, Room: msg.ChannelID, Message: partial}, nil)
	h.ack(c, cmd.AckID, nil)
}

func (h *Hub) deleteMessage(ctx context.Context, c *Client, cmd *Command) {
	msg, err := h.store.FindMessage(ctx, cmd.MessageID)
	if err != nil {
		h.nack(c, cmd.AckID, ErrCodeNotFound, "message not found")
		return
	}
	if res := RequireAuthorOrModerator(msg)(c); !res.OK {
		h.nack(c, cmd.AckID, res.Code, res.Reason)
		return
	}
	if err := h.store.DeleteMessage(ctx, msg.ID); err != nil {
		h.metrics.Error()
		h.nack(c, cmd.AckID, ErrCodeInternal, "internal error")
		return
	}

	// Deletion event carries only the id.
	h.broadcastRoom(msg.ChannelID, &Event{Kind: EventMessageDelete, Room: msg.ChannelID, Message: &ChatMessage{ID: msg.ID, ChannelID: msg.ChannelID}}, nil)
	h.ack(c, cmd.AckID, nil)
}

func (h *Hub) typing(c *Client, cmd *Command) {
	if _, ok := c.Rooms[cmd.Room]; !ok {
		return
	}
	if !h.throttler.Allow(c.ID, "message:typing", h.cfg.TypingThrottle) {
		h.metrics.Throttled()
		return
	}
	exclude := map[string]struct{}{c.ID: {}}
	h.broadcastRoom(cmd.Room, &Event{Kind: EventTyping, Room: cmd.Room, User: c.Identity.Ref(), Typing: cmd.Typing}, exclude)
}

func (h *Hub) setStatus(c *Client, cmd *Command) {
	if !ValidStatus(cmd.Status) {
		c.Send(&Event{Kind: EventError, Error: coreError(ErrCodeBadRequest, "invalid status")})
		return
	}
	h.presence.setStatus(c.UserID(), cmd.Status)
	h.scheduleSnapshotBroadcast()
	h.pushPresenceSync()
	h.ack(c, cmd.AckID, nil)
}

func (h *Hub) history(ctx context.Context, c *Client, cmd *Command) {
	limit := cmd.Limit
	if limit <= 0 || limit > h.cfg.HistoryPageSize {
		limit = h.cfg.HistoryPageSize
	}
	msgs, hasMore, err := h.store.MessageHistory(ctx, cmd.Room, cmd.Before, limit)
	if err != nil {
		h.metrics.Error()
		c.Send(&Event{Kind: EventError, Error: coreError(ErrCodeInternal, "history unavailable")})
		return
	}
	c.Send(&Event{Kind: EventHistory, Room: cmd.Room, Messages: msgs, HasMore: hasMore})
}

func (h *Hub) markRead(ctx context.Context, c *Client, cmd *Command) {
	ok, err := h.store.MarkNotificationRead(ctx, c.UserID(), cmd.NotificationID)
	switch {
	case err != nil:
		h.metrics.Error()
		h.nack(c, cmd.AckID, ErrCodeInternal, "internal error")
		return
	case !ok:
		h.nack(c, cmd.AckID, ErrCodeNotFound, "notification not found")
		return
	}
	h.ack(c, cmd.AckID, nil)
	h.pushNotificationSync(c.UserID())
}

func (h *Hub) markAllRead(ctx context.Context, c *Client, cmd *Command) {
	if _, err := h.store.MarkAllNotificationsRead(ctx, c.UserID()); err != nil {
		h.metrics.Error()
		h.nack(c, cmd.AckID, ErrCodeInternal, "internal error")
		return
	}
	h.ack(c, cmd.AckID, nil)
	h.pushNotificationSync(c.UserID())
}

func (h *Hub) clearNotification(ctx context.Context, c *Client, cmd *Command) {
	ok, err := h.store.ClearNotification(ctx, c.UserID(), cmd.NotificationID)
	switch {
	case err != nil:
		h.metrics.Error()
		h.nack(c, cmd.AckID, ErrCodeInternal, "internal error")
		return
	case !ok:
		h.nack(c, cmd.AckID, ErrCodeNotFound, "notification not found")
		return
	}
	h.ack(c, cmd.AckID, nil)
}

// subscribeData registers the subscription and replies with the correlated
// ack before the initial sync, so the caller's request resolves even when
// the sync payload races other traffic.
func (h *Hub) subscribeData(ctx context.Context, c *Client, cmd *Command) {
	switch cmd.DataType {
	case "presence":
		c.Subscriptions[cmd.DataType] = cmd.Filters
		h.ack(c, cmd.AckID, nil)
		c.Send(h.presenceSyncEvent())
	case "notifications":
		notes, err := h.store.NotificationsByUser(ctx, c.UserID())
		if err != nil {
			h.metrics.Error()
			h.nack(c, cmd.AckID, ErrCodeInternal, "internal error")
			return
		}
		c.Subscriptions[cmd.DataType] = cmd.Filters
		h.ack(c, cmd.AckID, nil)
		h.syncVersion++
		c.Send(&Event{Kind: EventDataSync, Sync: &DataSync{Type: "notifications", Version: h.syncVersion, Payload: NewNotificationSync(notes)}})
	default:
		h.nack(c, cmd.AckID, ErrCodeBadRequest, "unknown data type")
	}
}

// dispatchNotification stores the notification and pushes it to every open
// connection of the target. With no open connection it simply waits in the
// retained list.
func (h *Hub) dispatchNotification(n *Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Priority == "" {
		n.Priority = PriorityNormal
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.ExpiresAt == nil && h.cfg.NotificationTTL > 0 {
		expiry := n.CreatedAt.Add(h.cfg.NotificationTTL)
		n.ExpiresAt = &expiry
	}

	if err := h.store.AppendNotification(context.Background(), n); err != nil {
		h.metrics.Error()
		h.log.Error().Err(err).Str("user_id", n.UserID).Msg("append notification")
		return
	}

	event := &Event{Kind: EventNotification, Notification: n}
	if n.UserID == "" {
		h.broadcastAll(event, "")
		return
	}
	for _, conn := range h.sessions.connectionsFor(n.UserID) {
		if !conn.Send(event) {
			h.metrics.Dropped(1)
		} else {
			h.metrics.Sent(1)
		}
	}
}

// reap is the periodic safety net: idle users go away, abandoned entries
// whose connection bookkeeping leaked are removed outright.
func (h *Hub) reap() {
	if changed := h.presence.markIdle(); len(changed) > 0 {
		h.scheduleSnapshotBroadcast()
		h.pushPresenceSync()
	}

	for _, userID := range h.presence.stale(h.cfg.InactivityThreshold) {
		if h.sessions.hasUser(userID) {
			continue
		}
		if h.presence.remove(userID) {
			h.log.Warn().Str("user_id", userID).Msg("reaped abandoned presence entry")
			h.broadcastAll(&Event{Kind: EventUserOffline, UserID: userID}, "")
			h.scheduleSnapshotBroadcast()
		}
	}
}

// scheduleSnapshotBroadcast coalesces bursts of presence changes into one
// snapshot broadcast. The debounced callback re-enters the hub loop through
// the task queue so registry access stays single-threaded.
func (h *Hub) scheduleSnapshotBroadcast() {
	h.debouncer.Debounce("hub", "presence:update", 50*time.Millisecond, func() {
		h.metrics.Debounced()
		h.tasks <- func() {
			h.broadcastAll(&Event{Kind: EventPresenceSnapshot, Presence: h.presence.snapshot()}, "")
		}
	})
}

func (h *Hub) presenceSyncEvent() *Event {
	h.syncVersion++
	return &Event{Kind: EventDataSync, Sync: &DataSync{Type: "presence", Version: h.syncVersion, Payload: h.presence.snapshot()}}
}

// Sync pushes are coalesced through the batcher so a burst of changes
// produces one delivery per window instead of one per change. The batch
// event name doubles as the coalescing key.
const (
	syncBatchPresence   = "sync:presence"
	syncBatchNotePrefix = "sync:notifications:"
)

func (h *Hub) pushPresenceSync() {
	h.batcher.Add(syncBatchPresence, nil)
}

func (h *Hub) pushNotificationSync(userID string) {
	h.batcher.Add(syncBatchNotePrefix+userID, nil)
}

// emitSyncBatch re-enters the hub loop through the task queue so registry
// access stays single-threaded. Payloads are markers only, the delivery
// reads fresh state. Size-triggered flushes run on the hub goroutine
// itself, so the enqueue must not block.
func (h *Hub) emitSyncBatch(event string, payloads []any) {
	h.metrics.Batched(len(payloads))
	task := func() {
		switch {
		case event == syncBatchPresence:
			h.deliverPresenceSync()
		case strings.HasPrefix(event, syncBatchNotePrefix):
			h.deliverNotificationSync(strings.TrimPrefix(event, syncBatchNotePrefix))
		}
	}
	select {
	case h.tasks <- task:
	default:
		go func() { h.tasks <- task }()
	}
}

func (h *Hub) deliverPresenceSync() {
	var event *Event
	for _, conn := range h.sessions.all() {
		if _, ok := conn.Subscriptions["presence"]; !ok {
			continue
		}
		if event == nil {
			event = h.presenceSyncEvent()
		}
		conn.Send(event)
	}
}

func (h *Hub) deliverNotificationSync(userID string) {
	var sync *NotificationSync
	for _, conn := range h.sessions.connectionsFor(userID) {
		if _, ok := conn.Subscriptions["notifications"]; !ok {
			continue
		}
		if sync == nil {
			notes, err := h.store.NotificationsByUser(context.Background(), userID)
			if err != nil {
				h.metrics.Error()
				return
			}
			sync = NewNotificationSync(notes)
		}
		h.syncVersion++
		conn.Send(&Event{Kind: EventDataSync, Sync: &DataSync{Type: "notifications", Version: h.syncVersion, Payload: sync}})
	}
}

func (h *Hub) ack(c *Client, ackID string, msg *ChatMessage) {
	if ackID == "" && msg == nil {
		return
	}
	c.Send(&Event{Kind: EventAck, Ack: &Ack{ID: ackID, OK: true, Message: msg}})
}

func (h *Hub) nack(c *Client, ackID, code, reason string) {
	c.Send(&Event{Kind: EventAck, Ack: &Ack{ID: ackID, Code: code, Reason: reason}})
}

func (h *Hub) broadcastRoom(name string, event *Event, exclude map[string]struct{}) {
	room, ok := h.rooms[name]
	if !ok {
		return
	}
	delivered, dropped := room.Broadcast(event, exclude)
	if dropped > 0 {
		h.metrics.Dropped(dropped)
	}
	h.metrics.Sent(delivered)
}

func (h *Hub) broadcastAll(event *Event, excludeConn string) {
	for _, conn := range h.sessions.all() {
		if conn.ID == excludeConn {
			continue
		}
		if conn.Send(event) {
			h.metrics.Sent(1)
		} else {
			h.metrics.Dropped(1)
		}
	}
}

func dedupeMentions(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
