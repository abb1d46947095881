package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"quiz-poll-bot/internal/app"
	"quiz-poll-bot/internal/domain"
)

// QuestionCache caches quiz content in Redis and falls back to a source on cache miss.
// A zero TTL disables caching.
// Subjects are stored as:  SET quiz:subjects            <json []string>
// Questions are stored as: HSET quiz:questions {subject} <json []Question>
// so several bot instances share one warm cache.
type QuestionCache struct {
	client *redis.Client
	source app.QuestionSource
	ttl    time.Duration
	logger *zap.Logger
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

const (
	subjectsKey  = "quiz:subjects"
	questionsKey = "quiz:questions"
)

func NewQuestionCache(client *redis.Client, source app.QuestionSource, ttl time.Duration, logger *zap.Logger) *QuestionCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuestionCache{
		client: client,
		source: source,
		ttl:    ttl,
		logger: logger,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) ListSubjects(ctx context.Context) ([]string, error) {
	if names, ok := c.cachedSubjects(ctx); ok {
		return names, nil
	}

	result, err, _ := c.sf.Do(subjectsKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if names, ok := c.cachedSubjects(ctx); ok {
			return names, nil
		}
		names, err := c.source.ListSubjects(ctx)
		if err != nil {
			return nil, err
		}
		ttl := c.ttlWithJitter()
		if ttl <= 0 {
			return names, nil
		}
		raw, err := json.Marshal(names)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, subjectsKey, raw, ttl).Err(); err != nil {
			c.logger.Warn("cache subjects", zap.Error(err))
		}
		return names, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

func (c *QuestionCache) LoadQuestions(ctx context.Context, subject string) ([]domain.Question, error) {
	if questions, ok := c.cachedQuestions(ctx, subject); ok {
		return questions, nil
	}

	result, err, _ := c.sf.Do("q:"+subject, func() (interface{}, error) {
		if questions, ok := c.cachedQuestions(ctx, subject); ok {
			return questions, nil
		}
		questions, err := c.source.LoadQuestions(ctx, subject)
		if err != nil {
			return nil, err
		}
		// Unknown subjects are not cached so a later import shows up immediately.
		ttl := c.ttlWithJitter()
		if len(questions) == 0 || ttl <= 0 {
			return questions, nil
		}
		raw, err := json.Marshal(questions)
		if err != nil {
			return nil, err
		}
		pipe := c.client.Pipeline()
		pipe.HSet(ctx, questionsKey, subject, raw)
		pipe.Expire(ctx, questionsKey, ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			c.logger.Warn("cache questions", zap.String("subject", subject), zap.Error(err))
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Invalidate removes every cached subject and question list.
func (c *QuestionCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, subjectsKey, questionsKey).Err()
}

func (c *QuestionCache) cachedSubjects(ctx context.Context) ([]string, bool) {
	raw, err := c.client.Get(ctx, subjectsKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("read cached subjects", zap.Error(err))
		}
		return nil, false
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, false
	}
	return names, true
}

func (c *QuestionCache) cachedQuestions(ctx context.Context, subject string) ([]domain.Question, bool) {
	raw, err := c.client.HGet(ctx, questionsKey, subject).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("read cached questions", zap.String("subject", subject), zap.Error(err))
		}
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, false
	}
	return questions, true
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
