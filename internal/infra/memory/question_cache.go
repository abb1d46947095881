package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"quiz-poll-bot/internal/app"
	"quiz-poll-bot/internal/domain"
)

const subjectsKey = "\x00subjects"

// QuestionCache caches a question source with TTL to avoid re-reading files or the DB
// for every session.
type QuestionCache struct {
	source app.QuestionSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu       sync.RWMutex
	subjects cachedSubjects
	cache    map[string]cachedQuestions
}

type cachedSubjects struct {
	names     []string
	expiresAt time.Time
}

type cachedQuestions struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionCache(source app.QuestionSource, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuestions),
	}
}

func (c *QuestionCache) ListSubjects(ctx context.Context) ([]string, error) {
	now := c.clock()
	c.mu.RLock()
	if c.subjects.expiresAt.After(now) {
		names := c.subjects.names
		c.mu.RUnlock()
		return names, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(subjectsKey, func() (interface{}, error) {
		names, err := c.source.ListSubjects(ctx)
		if err != nil {
			return nil, err
		}
		expiresAt := now.Add(c.ttlWithJitter())
		c.mu.Lock()
		c.subjects = cachedSubjects{names: names, expiresAt: expiresAt}
		c.mu.Unlock()
		return names, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

func (c *QuestionCache) LoadQuestions(ctx context.Context, subject string) ([]domain.Question, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[subject]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.questions, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(subject, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[subject]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.questions, nil
		}
		c.mu.RUnlock()

		questions, err := c.source.LoadQuestions(ctx, subject)
		if err != nil {
			return nil, err
		}

		expiresAt := now.Add(c.ttlWithJitter())
		c.mu.Lock()
		c.cache[subject] = cachedQuestions{questions: questions, expiresAt: expiresAt}
		c.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Invalidate drops every cached entry, e.g. after an import.
func (c *QuestionCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subjects = cachedSubjects{}
	c.cache = make(map[string]cachedQuestions)
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
