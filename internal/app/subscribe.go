package app

import (
	"sync"

	"quiz-poll-bot/internal/domain"
)

type subscriber struct {
	chatID int64
	topN   int
	// notify holds at most one pending change; bursts of answers coalesce.
	notify chan struct{}
}

// Subscribe returns a channel that receives the leaderboard as seen by chatID
// whenever tallies or settings change. The current leaderboard is delivered
// first. Boards are built on the subscriber's goroutine, so a slow reader only
// ever sees the latest state and never holds up scoring. The caller must invoke
// the returned cancel function to avoid leaks.
func (e *Engine) Subscribe(chatID int64, topN int) (<-chan domain.Leaderboard, func()) {
	sub := &subscriber{chatID: chatID, topN: topN, notify: make(chan struct{}, 1)}
	sub.notify <- struct{}{}

	e.mu.Lock()
	e.subscribers[sub] = struct{}{}
	e.mu.Unlock()

	out := make(chan domain.Leaderboard)
	done := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case <-sub.notify:
			case <-done:
				return
			}
			lb := e.Leaderboard(chatID, topN)
			select {
			case out <- lb:
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subscribers, sub)
			e.mu.Unlock()
			close(done)
		})
	}
	return out, cancel
}

// broadcastLocked only flags subscribers; it does no per-subscriber work.
func (e *Engine) broadcastLocked() {
	for sub := range e.subscribers {
		select {
		case sub.notify <- struct{}{}:
		default:
		}
	}
}
