package ws

import "sync"

// Rooms indexes which connections are subscribed to which chat. It is never consulted
// for access control; callers re-check persisted participation before Join.
type Rooms struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]*Client  // chat id -> client id -> client
	joined map[string]map[string]struct{} // client id -> chat ids
}

func NewRooms() *Rooms {
	return &Rooms{
		rooms:  make(map[string]map[string]*Client),
		joined: make(map[string]map[string]struct{}),
	}
}

// Join subscribes c to chatID. It is idempotent and refuses closed clients, so a
// connection torn down concurrently can never be left subscribed.
func (r *Rooms) Join(c *Client, chatID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.Closed() {
		return false
	}
	subs := r.rooms[chatID]
	if subs == nil {
		subs = make(map[string]*Client)
		r.rooms[chatID] = subs
	}
	if _, ok := subs[c.id]; ok {
		return false
	}
	subs[c.id] = c

	chats := r.joined[c.id]
	if chats == nil {
		chats = make(map[string]struct{})
		r.joined[c.id] = chats
	}
	chats[chatID] = struct{}{}
	return true
}

// Leave unsubscribes c from chatID; leaving a room c is not in is a no-op.
func (r *Rooms) Leave(c *Client, chatID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(c.id, chatID)
}

// LeaveAll removes c from every room and returns the rooms it was in.
func (r *Rooms) LeaveAll(c *Client) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	chats := r.joined[c.id]
	res := make([]string, 0, len(chats))
	for chatID := range chats {
		res = append(res, chatID)
		r.leaveLocked(c.id, chatID)
	}
	delete(r.joined, c.id)
	return res
}

// Drop discards a room entirely and returns its former subscribers.
func (r *Rooms) Drop(chatID string) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.rooms[chatID]
	res := make([]*Client, 0, len(subs))
	for id, c := range subs {
		res = append(res, c)
		if chats := r.joined[id]; chats != nil {
			delete(chats, chatID)
			if len(chats) == 0 {
				delete(r.joined, id)
			}
		}
	}
	delete(r.rooms, chatID)
	return res
}

// Subscribers returns a snapshot of the connections subscribed to chatID.
func (r *Rooms) Subscribers(chatID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.rooms[chatID]
	res := make([]*Client, 0, len(subs))
	for _, c := range subs {
		res = append(res, c)
	}
	return res
}

func (r *Rooms) IsSubscribed(c *Client, chatID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[chatID][c.id]
	return ok
}

// RoomsOf returns the chat ids c is subscribed to.
func (r *Rooms) RoomsOf(c *Client) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chats := r.joined[c.id]
	res := make([]string, 0, len(chats))
	for chatID := range chats {
		res = append(res, chatID)
	}
	return res
}

func (r *Rooms) leaveLocked(clientID, chatID string) bool {
	subs := r.rooms[chatID]
	if _, ok := subs[clientID]; !ok {
		return false
	}
	delete(subs, clientID)
	if len(subs) == 0 {
		delete(r.rooms, chatID)
	}
	if chats := r.joined[clientID]; chats != nil {
		delete(chats, chatID)
		if len(chats) == 0 {
			delete(r.joined, clientID)
		}
	}
	return true
}
