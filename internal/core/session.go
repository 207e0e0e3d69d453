package core

// sessionRegistry maps users to their open connections. One user may hold
// many connections (multi-tab, multi-device). Owned by the hub goroutine.
type sessionRegistry struct {
	conns  map[string]*Client            // connection id -> client
	byUser map[string]map[string]*Client // user id -> connection id -> client
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{
		conns:  make(map[string]*Client),
		byUser: make(map[string]map[string]*Client),
	}
}

// add registers the connection under its user. Returns true when it is the
// user's first open connection.
func (s *sessionRegistry) add(c *Client) bool {
	s.conns[c.ID] = c
	userID := c.UserID()
	set, ok := s.byUser[userID]
	if !ok {
		set = make(map[string]*Client)
		s.byUser[userID] = set
	}
	set[c.ID] = c
	return len(set) == 1
}

// remove deregisters the connection. Returns true when it was the user's
// last open connection.
func (s *sessionRegistry) remove(c *Client) bool {
	delete(s.conns, c.ID)
	userID := c.UserID()
	set, ok := s.byUser[userID]
	if !ok {
		return true
	}
	delete(set, c.ID)
	if len(set) == 0 {
		delete(s.byUser, userID)
		return true
	}
	return false
}

// connectionsFor lists the user's open connections.
func (s *sessionRegistry) connectionsFor(userID string) []*Client {
	set := s.byUser[userID]
	out := make([]*Client, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

// hasUser reports whether the user holds any open connection.
func (s *sessionRegistry) hasUser(userID string) bool {
	return len(s.byUser[userID]) > 0
}

// all lists every open connection.
func (s *sessionRegistry) all() []*Client {
	out := make([]*Client, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c)
	}
	return out
}
