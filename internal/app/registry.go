package app

import (
	"time"

	"go.uber.org/zap"
	"quiz-poll-bot/internal/domain"
)

// RegisterPoll stores the mapping for a freshly dispatched poll. A poll id that
// is already registered keeps its first record; the collision is logged.
func (e *Engine) RegisterPoll(rec domain.PollRecord) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if e.retention > 0 {
		e.pruneLocked(now)
	}
	if _, exists := e.polls[rec.PollID]; exists {
		e.logger.Warn("poll already registered",
			zap.String("poll_id", rec.PollID),
			zap.String("subject", rec.Subject),
			zap.Int64("chat_id", rec.ChatID))
		return false
	}
	e.polls[rec.PollID] = rec
	return true
}

// LookupPoll resolves a poll id. A miss is the signal to discard an answer.
func (e *Engine) LookupPoll(pollID string) (domain.PollRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.polls[pollID]
	return rec, ok
}

// PollCount reports how many polls are currently registered.
func (e *Engine) PollCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.polls)
}

func (e *Engine) pruneLocked(now time.Time) {
	cutoff := now.Add(-e.retention)
	for id, rec := range e.polls {
		if rec.CreatedAt.Before(cutoff) {
			delete(e.polls, id)
		}
	}
}
