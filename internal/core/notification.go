package core

import "time"

// NotificationPriority orders notifications by urgency.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

// Notification targets a single user (or everyone when UserID is empty).
// Retained newest-first per user up to a cap; expired entries are filtered
// lazily at read time rather than actively purged.
type Notification struct {
	ID        string               `json:"id"`
	Type      string               `json:"type"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Priority  NotificationPriority `json:"priority"`
	UserID    string               `json:"userId,omitempty"`
	IsRead    bool                 `json:"isRead"`
	ExpiresAt *time.Time           `json:"expiresAt,omitempty"`
	CreatedAt time.Time            `json:"createdAt"`
}

// Expired reports whether the notification is past its optional expiry.
func (n *Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && now.After(*n.ExpiresAt)
}

// NotificationSync is the data subscription payload for notifications: the
// retained list plus the user's unread counter.
type NotificationSync struct {
	Notifications []Notification `json:"notifications"`
	Unread        int            `json:"unread"`
}

// NewNotificationSync builds the payload, counting unread entries.
func NewNotificationSync(notes []Notification) *NotificationSync {
	sync := &NotificationSync{Notifications: notes}
	for i := range notes {
		if !notes[i].IsRead {
			sync.Unread++
		}
	}
	return sync
}
