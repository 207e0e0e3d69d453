package core

import "time"

// PresenceStatus is the per-user visibility state.
type PresenceStatus string

const (
	StatusOnline    PresenceStatus = "online"
	StatusAway      PresenceStatus = "away"
	StatusBusy      PresenceStatus = "busy"
	StatusInvisible PresenceStatus = "invisible"
)

// ValidStatus reports whether s is one of the four allowed states.
func ValidStatus(s PresenceStatus) bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy, StatusInvisible:
		return true
	}
	return false
}

// PresenceEntry exists iff the user has at least one open authenticated
// connection. Manual marks an explicitly chosen status, which the inactivity
// sweep must never overwrite.
type PresenceEntry struct {
	UserID       string         `json:"userId"`
	Username     string         `json:"username,omitempty"`
	DisplayName  string         `json:"displayName"`
	AvatarURL    string         `json:"avatarUrl,omitempty"`
	Status       PresenceStatus `json:"status"`
	Manual       bool           `json:"-"`
	LastActivity time.Time      `json:"lastActivity"`
}

// presenceRegistry tracks one entry per user. Owned by the hub goroutine;
// never accessed concurrently.
type presenceRegistry struct {
	entries    map[string]*PresenceEntry
	inactivity time.Duration
	now        func() time.Time
}

func newPresenceRegistry(inactivity time.Duration) *presenceRegistry {
	return &presenceRegistry{
		entries:    make(map[string]*PresenceEntry),
		inactivity: inactivity,
		now:        time.Now,
	}
}

// markOnline creates or refreshes the entry for a user coming online.
// Returns true when the entry is new (first connection).
func (p *presenceRegistry) markOnline(id *Identity) bool {
	if e, ok := p.entries[id.ID]; ok {
		e.LastActivity = p.now()
		return false
	}
	p.entries[id.ID] = &PresenceEntry{
		UserID:       id.ID,
		Username:     id.Username,
		DisplayName:  id.DisplayName,
		AvatarURL:    id.AvatarURL,
		Status:       StatusOnline,
		LastActivity: p.now(),
	}
	return true
}

// setStatus applies an explicit status command and marks it manual.
func (p *presenceRegistry) setStatus(userID string, status PresenceStatus) bool {
	e, ok := p.entries[userID]
	if !ok {
		return false
	}
	e.Status = status
	e.Manual = true
	e.LastActivity = p.now()
	return true
}

// touch refreshes last-activity and restores an automatic "away" back to
// online. A manual status is left alone.
func (p *presenceRegistry) touch(userID string) {
	e, ok := p.entries[userID]
	if !ok {
		return
	}
	e.LastActivity = p.now()
	if e.Status == StatusAway && !e.Manual {
		e.Status = StatusOnline
	}
}

// remove deletes the entry when the user's last connection closes.
func (p *presenceRegistry) remove(userID string) bool {
	if _, ok := p.entries[userID]; !ok {
		return false
	}
	delete(p.entries, userID)
	return true
}

// snapshot lists current entries, hiding invisible users from others.
func (p *presenceRegistry) snapshot() []PresenceEntry {
	out := make([]PresenceEntry, 0, len(p.entries))
	for _, e := range p.entries {
		if e.Status == StatusInvisible {
			continue
		}
		out = append(out, *e)
	}
	return out
}

// markIdle transitions inactive users to away unless their status was chosen
// manually. Returns ids that changed.
func (p *presenceRegistry) markIdle() []string {
	cutoff := p.now().Add(-p.inactivity)
	var changed []string
	for id, e := range p.entries {
		if e.Manual || e.Status != StatusOnline {
			continue
		}
		if e.LastActivity.Before(cutoff) {
			e.Status = StatusAway
			changed = append(changed, id)
		}
	}
	return changed
}

// stale returns entries whose last activity exceeds the threshold by a wide
// margin. Safety net against leaked connection bookkeeping; the primary
// removal path is the session registry.
func (p *presenceRegistry) stale(grace time.Duration) []string {
	cutoff := p.now().Add(-p.inactivity - grace)
	var ids []string
	for id, e := range p.entries {
		if e.LastActivity.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}
