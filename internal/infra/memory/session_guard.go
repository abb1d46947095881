package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// SessionGuard is an in-process implementation of app.SessionGuard.
type SessionGuard struct {
	mu     sync.Mutex
	active map[int64]string
}

func NewSessionGuard() *SessionGuard {
	return &SessionGuard{active: make(map[int64]string)}
}

func (g *SessionGuard) Acquire(_ context.Context, chatID int64) (string, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[chatID]; busy {
		return "", false, nil
	}
	token := uuid.NewString()
	g.active[chatID] = token
	return token, true, nil
}

func (g *SessionGuard) Release(_ context.Context, chatID int64, token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active[chatID] == token {
		delete(g.active, chatID)
	}
}

// Active reports whether chatID currently runs a session.
func (g *SessionGuard) Active(chatID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.active[chatID]
	return busy
}
