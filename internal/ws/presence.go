package ws

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"chatapp/internal/domain"
)

const statusWriteTimeout = 5 * time.Second

// userLocks serializes presence transitions per user so that the persisted status and
// the announced status always follow connection order.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

// lock acquires the user's lock and returns its release func.
func (l *userLocks) lock(userID string) func() {
	l.mu.Lock()
	ul := l.locks[userID]
	if ul == nil {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

// announce persists the user's status, then tells every live connection. Callers hold
// the user's lock. A failed write is logged; live connections still learn the change.
func (g *Gateway) announce(userID string, status domain.Status) {
	ctx, cancel := context.WithTimeout(context.Background(), statusWriteTimeout)
	defer cancel()

	if err := g.users.SetStatus(ctx, userID, status); err != nil {
		g.log.Error("persist presence failed",
			zap.String("user_id", userID), zap.String("status", string(status)), zap.Error(err))
	}
	g.broadcastAll(EventUserStatus, statusEvent{UserID: userID, Status: status})
}
