package app

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"quiz-poll-bot/internal/domain"
)

// summaryDelayCycle is the order the settings menu steps through.
var summaryDelayCycle = []time.Duration{5 * time.Second, 8 * time.Second, 12 * time.Second, 20 * time.Second}

// DefaultChatSettings are applied the first time a chat is seen.
var DefaultChatSettings = domain.ChatSettings{
	NegativeMarking: true,
	SummaryDelay:    8 * time.Second,
}

type answerKey struct {
	participantID int64
	pollID        string
}

type scoreKey struct {
	participantID int64
	subject       string
}

// Engine owns every piece of mutable scoring state: poll registrations,
// score tallies, idempotency markers and per-chat settings. All of it is
// guarded by one mutex so check-then-mutate sequences are atomic.
type Engine struct {
	now       func() time.Time
	logger    *zap.Logger
	defaults  domain.ChatSettings
	retention time.Duration

	mu          sync.Mutex
	polls       map[string]domain.PollRecord
	scores      map[scoreKey]*domain.ScoreRecord
	answered    map[answerKey]struct{}
	names       map[int64]string
	settings    map[int64]*domain.ChatSettings
	subscribers map[*subscriber]struct{}
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithDefaultSettings overrides the settings new chats start with.
func WithDefaultSettings(s domain.ChatSettings) EngineOption {
	return func(e *Engine) { e.defaults = s }
}

// WithPollRetention bounds how long poll registrations are kept.
// Zero keeps them for the life of the process.
func WithPollRetention(d time.Duration) EngineOption {
	return func(e *Engine) { e.retention = d }
}

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		now:         time.Now,
		logger:      zap.NewNop(),
		defaults:    DefaultChatSettings,
		polls:       make(map[string]domain.PollRecord),
		scores:      make(map[scoreKey]*domain.ScoreRecord),
		answered:    make(map[answerKey]struct{}),
		names:       make(map[int64]string),
		settings:    make(map[int64]*domain.ChatSettings),
		subscribers: make(map[*subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Settings returns the chat's settings, creating defaults on first access.
func (e *Engine) Settings(chatID int64) domain.ChatSettings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.settingsLocked(chatID)
}

func (e *Engine) SetNegativeMarking(chatID int64, on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settingsLocked(chatID).NegativeMarking = on
	e.broadcastLocked()
}

// ToggleNegativeMarking flips the flag and returns the new value.
func (e *Engine) ToggleNegativeMarking(chatID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.settingsLocked(chatID)
	s.NegativeMarking = !s.NegativeMarking
	e.broadcastLocked()
	return s.NegativeMarking
}

func (e *Engine) SetSummaryDelay(chatID int64, d time.Duration) {
	if d < 0 {
		d = 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settingsLocked(chatID).SummaryDelay = d
}

// CycleSummaryDelay advances the summary delay to the next preset and returns it.
// A delay that is not one of the presets restarts the cycle.
func (e *Engine) CycleSummaryDelay(chatID int64) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.settingsLocked(chatID)
	next := summaryDelayCycle[0]
	for i, d := range summaryDelayCycle {
		if d == s.SummaryDelay {
			next = summaryDelayCycle[(i+1)%len(summaryDelayCycle)]
			break
		}
	}
	s.SummaryDelay = next
	return next
}

// Reset clears every score tally and idempotency marker. Chat settings and
// poll registrations are kept, so an answer to a poll sent before the reset
// counts as a fresh attempt.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	cleared := len(e.scores)
	e.scores = make(map[scoreKey]*domain.ScoreRecord)
	e.answered = make(map[answerKey]struct{})
	e.names = make(map[int64]string)
	e.broadcastLocked()
	e.logger.Info("scores reset", zap.Int("records_cleared", cleared))
}

func (e *Engine) settingsLocked(chatID int64) *domain.ChatSettings {
	s, ok := e.settings[chatID]
	if !ok {
		copied := e.defaults
		s = &copied
		e.settings[chatID] = s
	}
	return s
}
