package ws

import "sync"

// Registry maps live connections to the users they authenticated as. A user may hold
// several connections at once.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	byUser  map[string]map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*Client),
		byUser:  make(map[string]map[string]*Client),
	}
}

// Register adds c and reports whether it is its user's first live connection.
func (r *Registry) Register(c *Client) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[c.id]; ok {
		return false
	}
	r.clients[c.id] = c
	conns := r.byUser[c.userID]
	if conns == nil {
		conns = make(map[string]*Client)
		r.byUser[c.userID] = conns
	}
	conns[c.id] = c
	return len(conns) == 1
}

// Unregister removes c and reports whether it was its user's last live connection.
// Removing an unknown client is a no-op reporting false.
func (r *Registry) Unregister(c *Client) (last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[c.id]; !ok {
		return false
	}
	delete(r.clients, c.id)
	conns := r.byUser[c.userID]
	delete(conns, c.id)
	if len(conns) == 0 {
		delete(r.byUser, c.userID)
		return true
	}
	return false
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// SocketsFor returns a snapshot of the user's live connections.
func (r *Registry) SocketsFor(userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.byUser[userID]
	res := make([]*Client, 0, len(conns))
	for _, c := range conns {
		res = append(res, c)
	}
	return res
}

// All returns a snapshot of every live connection.
func (r *Registry) All() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		res = append(res, c)
	}
	return res
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
