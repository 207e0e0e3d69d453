// Package redis implements the store contract on Redis lists. LPUSH+LTRIM
// map directly onto the newest-first, capped retention semantics.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pulsechat/pulsechat-server/internal/core"
)

const (
	channelSetKey = "pc:channels"
	msgKeyPrefix  = "pc:chan:"
	noteKeyPrefix = "pc:notif:"
)

// RedisStore implements core.Store on a Redis server.
type RedisStore struct {
	rdb        *redis.Client
	historyCap int
	noteCap    int
}

// New connects to the Redis server at addr.
func New(ctx context.Context, addr string, historyCap, notificationCap int) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if historyCap <= 0 {
		historyCap = 1000
	}
	if notificationCap <= 0 {
		notificationCap = 100
	}
	return &RedisStore{rdb: rdb, historyCap: historyCap, noteCap: notificationCap}, nil
}

// Close releases the client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func msgKey(channelID string) string { return msgKeyPrefix + channelID }
func noteKey(userID string) string   { return noteKeyPrefix + userID }

// ==== MessageStore implementation ====

// AppendMessage pushes onto the channel list and trims to the cap.
func (s *RedisStore) AppendMessage(ctx context.Context, msg *core.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.SAdd(ctx, channelSetKey, msg.ChannelID)
	pipe.RPush(ctx, msgKey(msg.ChannelID), data)
	pipe.LTrim(ctx, msgKey(msg.ChannelID), int64(-s.historyCap), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// MessageHistory pages backwards from beforeID over the ascending list.
func (s *RedisStore) MessageHistory(ctx context.Context, channelID, beforeID string, limit int) ([]core.ChatMessage, bool, error) {
	log, err := s.channelLog(ctx, channelID)
	if err != nil {
		return nil, false, err
	}

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
	return log[start:end], start > 0, nil
}

// FindMessage scans every channel list for the id.
func (s *RedisStore) FindMessage(ctx context.Context, id string) (*core.ChatMessage, error) {
	msg, _, _, err := s.locate(ctx, id)
	return msg, err
}

// UpdateMessage rewrites the list entry in place.
func (s *RedisStore) UpdateMessage(ctx context.Context, msg *core.ChatMessage) error {
	_, channel, idx, err := s.locate(ctx, msg.ID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := s.rdb.LSet(ctx, msgKey(channel), int64(idx), data).Err(); err != nil {
		return fmt.Errorf("lset message: %w", err)
	}
	return nil
}

// DeleteMessage removes the list entry.
func (s *RedisStore) DeleteMessage(ctx context.Context, id string) error {
	_, channel, idx, err := s.locate(ctx, id)
	if err != nil {
		return err
	}
	raw, err := s.rdb.LIndex(ctx, msgKey(channel), int64(idx)).Result()
	if err != nil {
		return fmt.Errorf("lindex message: %w", err)
	}
	if err := s.rdb.LRem(ctx, msgKey(channel), 1, raw).Err(); err != nil {
		return fmt.Errorf("lrem message: %w", err)
	}
	return nil
}

// ==== NotificationStore implementation ====

// AppendNotification prepends and trims the user's list.
func (s *RedisStore) AppendNotification(ctx context.Context, n *core.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, noteKey(n.UserID), data)
	pipe.LTrim(ctx, noteKey(n.UserID), 0, int64(s.noteCap-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append notification: %w", err)
	}
	return nil
}

// NotificationsByUser lists newest-first, filtering expired entries.
func (s *RedisStore) NotificationsByUser(ctx context.Context, userID string) ([]core.Notification, error) {
	list, err := s.userNotifications(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	out := make([]core.Notification, 0, len(list))
	for i := range list {
		if list[i].Expired(now) {
			continue
		}
		out = append(out, list[i])
	}
	return out, nil
}

// MarkNotificationRead rewrites the matching entry with is_read set.
func (s *RedisStore) MarkNotificationRead(ctx context.Context, userID, id string) (bool, error) {
	list, err := s.userNotifications(ctx, userID)
	if err != nil {
		return false, err
	}
	for i := range list {
		if list[i].ID == id {
			list[i].IsRead = true
			data, _ := json.Marshal(&list[i])
			if err := s.rdb.LSet(ctx, noteKey(userID), int64(i), data).Err(); err != nil {
				return false, fmt.Errorf("lset notification: %w", err)
			}
			return true, nil
		}
	}
	return false, nil
}

// MarkAllNotificationsRead rewrites every unread entry.
func (s *RedisStore) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	list, err := s.userNotifications(ctx, userID)
	if err != nil {
		return 0, err
	}
	changed := 0
	for i := range list {
		if list[i].IsRead {
			continue
		}
		list[i].IsRead = true
		data, _ := json.Marshal(&list[i])
		if err := s.rdb.LSet(ctx, noteKey(userID), int64(i), data).Err(); err != nil {
			return changed, fmt.Errorf("lset notification: %w", err)
		}
		changed++
	}
	return changed, nil
}

// ClearNotification removes the matching entry.
func (s *RedisStore) ClearNotification(ctx context.Context, userID, id string) (bool, error) {
	list, err := s.userNotifications(ctx, userID)
	if err != nil {
		return false, err
	}
	for i := range list {
		if list[i].ID == id {
			raw, err := s.rdb.LIndex(ctx, noteKey(userID), int64(i)).Result()
			if err != nil {
				return false, fmt.Errorf("lindex notification: %w", err)
			}
			if err := s.rdb.LRem(ctx, noteKey(userID), 1, raw).Err(); err != nil {
				return false, fmt.Errorf("lrem notification: %w", err)
			}
			return true, nil
		}
	}
	return false, nil
}

// ==== helpers ====

func (s *RedisStore) channelLog(ctx context.Context, channelID string) ([]core.ChatMessage, error) {
	raw, err := s.rdb.LRange(ctx, msgKey(channelID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange channel: %w", err)
	}
	out := make([]core.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var msg core.ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func (s *RedisStore) userNotifications(ctx context.Context, userID string) ([]core.Notification, error) {
	raw, err := s.rdb.LRange(ctx, noteKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange notifications: %w", err)
	}
	out := make([]core.Notification, 0, len(raw))
	for _, item := range raw {
		var n core.Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// locate finds a message id across channels: the same linear scan the
// in-memory backend performs.
func (s *RedisStore) locate(ctx context.Context, id string) (*core.ChatMessage, string, int, error) {
	channels, err := s.rdb.SMembers(ctx, channelSetKey).Result()
	if err != nil {
		return nil, "", 0, fmt.Errorf("smembers channels: %w", err)
	}
	for _, channel := range channels {
		log, err := s.channelLog(ctx, channel)
		if err != nil {
			return nil, "", 0, err
		}
		for i := range log {
			if log[i].ID == id {
				msg := log[i]
				return &msg, channel, i, nil
			}
		}
	}
	return nil, "", 0, core.ErrNotFound
}
