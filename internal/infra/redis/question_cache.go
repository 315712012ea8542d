package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"partner-quiz-service/internal/domain"
	"partner-quiz-service/internal/infra/memory"
)

// QuestionSetCache keeps frozen question sets in Redis as one JSON value
// per game and falls back to a loader on a miss.
// Key layout: game:{gameID}:questions
type QuestionSetCache struct {
	client *redis.Client
	loader memory.QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionSetCache(client *redis.Client, loader memory.QuestionLoader, ttl time.Duration) *QuestionSetCache {
	return &QuestionSetCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionSetCache) QuestionSet(ctx context.Context, gameID string) ([]domain.Question, error) {
	key := c.key(gameID)
	if qs, ok := c.fromCache(ctx, key); ok {
		return qs, nil
	}

	result, err, _ := c.sf.Do(gameID, func() (interface{}, error) {
		// Re-check in case another caller filled it.
		if qs, ok := c.fromCache(ctx, key); ok {
			return qs, nil
		}
		qs, err := c.loader.LoadQuestions(ctx, gameID)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(qs)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err(); err != nil {
			log.Printf("cache questions for game=%s: %v", gameID, err)
		}
		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *QuestionSetCache) fromCache(ctx context.Context, key string) ([]domain.Question, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("read cached questions %s: %v", key, err)
		}
		return nil, false
	}
	var qs []domain.Question
	if err := json.Unmarshal(raw, &qs); err != nil {
		log.Printf("decode cached questions %s: %v", key, err)
		return nil, false
	}
	return qs, true
}

func (c *QuestionSetCache) key(gameID string) string {
	return "game:" + gameID + ":questions"
}

func (c *QuestionSetCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
