// Package sqlite implements the store contract on SQLite. Retention caps
// are enforced on write by deleting rows beyond the newest N.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pulsechat/pulsechat-server/internal/core"
)

// SQLiteStore implements core.Store for SQLite.
type SQLiteStore struct {
	db         *sql.DB
	historyCap int
	noteCap    int
}

// New opens (or creates) the database at dbPath and applies the schema.
func New(dbPath string, historyCap, notificationCap int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if historyCap <= 0 {
		historyCap = 1000
	}
	if notificationCap <= 0 {
		notificationCap = 100
	}
	return &SQLiteStore{db: db, historyCap: historyCap, noteCap: notificationCap}, nil
}

func applySchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			channel_id TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT 'text',
			content TEXT NOT NULL,
			author_id TEXT NOT NULL,
			author_json TEXT NOT NULL,
			reply_to_id TEXT,
			attachments_json TEXT,
			mentions_json TEXT,
			reactions_json TEXT,
			is_edited INTEGER NOT NULL DEFAULT 0,
			edited_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_channel_created
			ON messages(channel_id, created_at);

		CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			message TEXT NOT NULL,
			priority TEXT NOT NULL DEFAULT 'normal',
			is_read INTEGER NOT NULL DEFAULT 0,
			expires_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_notifications_user_created
			ON notifications(user_id, created_at DESC);
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== MessageStore implementation ====

// AppendMessage inserts the message and trims the channel to the cap.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *core.ChatMessage) error {
	authorJSON, _ := json.Marshal(msg.Author)
	attachmentsJSON, _ := json.Marshal(msg.Attachments)
	mentionsJSON, _ := json.Marshal(msg.Mentions)
	reactionsJSON, _ := json.Marshal(msg.Reactions)

	query := `
		INSERT INTO messages
			(id, channel_id, type, content, author_id, author_json, reply_to_id,
			 attachments_json, mentions_json, reactions_json, is_edited, edited_at,
			 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		msg.ID, msg.ChannelID, string(msg.Type), msg.Content, msg.AuthorID,
		string(authorJSON), nullString(msg.ReplyToID), string(attachmentsJSON),
		string(mentionsJSON), string(reactionsJSON), boolToInt(msg.IsEdited),
		msg.EditedAt, msg.CreatedAt, msg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	trim := `
		DELETE FROM messages
		WHERE channel_id = ? AND id NOT IN (
			SELECT id FROM messages
			WHERE channel_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)
	`
	if _, err := s.db.ExecContext(ctx, trim, msg.ChannelID, msg.ChannelID, s.historyCap); err != nil {
		return fmt.Errorf("trim channel: %w", err)
	}
	return nil
}

// MessageHistory pages backwards from beforeID, returning ascending order.
func (s *SQLiteStore) MessageHistory(ctx context.Context, channelID, beforeID string, limit int) ([]core.ChatMessage, bool, error) {
	cursor := time.Time{}
	haveCursor := false
	if beforeID != "" {
		row := s.db.QueryRowContext(ctx,
			`SELECT created_at FROM messages WHERE id = ?`, beforeID)
		if err := row.Scan(&cursor); err == nil {
			haveCursor = true
		}
	}

	query := `
		SELECT id, channel_id, type, content, author_id, author_json,
		       COALESCE(reply_to_id, ''), attachments_json, mentions_json,
		       reactions_json, is_edited, edited_at, created_at, updated_at
		FROM messages
		WHERE channel_id = ?
	`
	args := []any{channelID}
	if haveCursor {
		query += ` AND created_at < ?`
		args = append(args, cursor)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var page []core.ChatMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, false, err
		}
		page = append(page, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate history: %w", err)
	}

	hasMore := len(page) > limit
	if hasMore {
		page = page[:limit]
	}
	// Rows came newest-first; flip to ascending creation order.
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, hasMore, nil
}

// FindMessage locates a message by id.
func (s *SQLiteStore) FindMessage(ctx context.Context, id string) (*core.ChatMessage, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, channel_id, type, content, author_id, author_json,
		       COALESCE(reply_to_id, ''), attachments_json, mentions_json,
		       reactions_json, is_edited, edited_at, created_at, updated_at
		FROM messages WHERE id = ?
	`, id)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	return msg, err
}

// UpdateMessage replaces the mutable fields of the stored row.
func (s *SQLiteStore) UpdateMessage(ctx context.Context, msg *core.ChatMessage) error {
	reactionsJSON, _ := json.Marshal(msg.Reactions)
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET content = ?, reactions_json = ?, is_edited = ?, edited_at = ?, updated_at = ?
		WHERE id = ?
	`, msg.Content, string(reactionsJSON), boolToInt(msg.IsEdited), msg.EditedAt, msg.UpdatedAt, msg.ID)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// DeleteMessage removes the row.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// ==== NotificationStore implementation ====

// AppendNotification inserts and trims the user's list to the cap.
func (s *SQLiteStore) AppendNotification(ctx context.Context, n *core.Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications
			(id, user_id, type, title, message, priority, is_read, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.UserID, n.Type, n.Title, n.Message, string(n.Priority),
		boolToInt(n.IsRead), n.ExpiresAt, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	trim := `
		DELETE FROM notifications
		WHERE user_id = ? AND id NOT IN (
			SELECT id FROM notifications
			WHERE user_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)
	`
	if _, err := s.db.ExecContext(ctx, trim, n.UserID, n.UserID, s.noteCap); err != nil {
		return fmt.Errorf("trim notifications: %w", err)
	}
	return nil
}

// NotificationsByUser lists newest-first, excluding expired rows at read time.
func (s *SQLiteStore) NotificationsByUser(ctx context.Context, userID string) ([]core.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, type, title, message, priority, is_read, expires_at, created_at
		FROM notifications
		WHERE user_id = ? AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY created_at DESC, id DESC
	`, userID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []core.Notification
	for rows.Next() {
		var n core.Notification
		var priority string
		var isRead int
		var expiresAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message,
			&priority, &isRead, &expiresAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Priority = core.NotificationPriority(priority)
		n.IsRead = isRead != 0
		if expiresAt.Valid {
			t := expiresAt.Time
			n.ExpiresAt = &t
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead flags one row read.
func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, userID, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return false, fmt.Errorf("mark read: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// MarkAllNotificationsRead flags every unread row.
func (s *SQLiteStore) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ClearNotification removes one row.
func (s *SQLiteStore) ClearNotification(ctx context.Context, userID, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return false, fmt.Errorf("clear notification: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ==== helpers ====

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*core.ChatMessage, error) {
	var msg core.ChatMessage
	var msgType, authorJSON, attachmentsJSON, mentionsJSON, reactionsJSON string
	var isEdited int
	var editedAt sql.NullTime
	if err := row.Scan(&msg.ID, &msg.ChannelID, &msgType, &msg.Content,
		&msg.AuthorID, &authorJSON, &msg.ReplyToID, &attachmentsJSON,
		&mentionsJSON, &reactionsJSON, &isEdited, &editedAt,
		&msg.CreatedAt, &msg.UpdatedAt); err != nil {
		return nil, err
	}
	msg.Type = core.MessageType(msgType)
	msg.IsEdited = isEdited != 0
	if editedAt.Valid {
		t := editedAt.Time
		msg.EditedAt = &t
	}
	_ = json.Unmarshal([]byte(authorJSON), &msg.Author)
	_ = json.Unmarshal([]byte(attachmentsJSON), &msg.Attachments)
	_ = json.Unmarshal([]byte(mentionsJSON), &msg.Mentions)
	_ = json.Unmarshal([]byte(reactionsJSON), &msg.Reactions)
	return &msg, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
