package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"partner-quiz-service/internal/domain"
)

// QuestionLoader fetches a game's question set from the system of record.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, gameID string) ([]domain.Question, error)
}

// QuestionSetCache caches frozen question sets with a TTL. It must only be
// asked for games that left in_creation, since it never sees question edits.
type QuestionSetCache struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedSet
}

type cachedSet struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionSetCache(loader QuestionLoader, ttl time.Duration) *QuestionSetCache {
	return &QuestionSetCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedSet),
	}
}

func (c *QuestionSetCache) QuestionSet(ctx context.Context, gameID string) ([]domain.Question, error) {
	if qs, ok := c.lookup(gameID); ok {
		return qs, nil
	}

	result, err, _ := c.sf.Do(gameID, func() (interface{}, error) {
		if qs, ok := c.lookup(gameID); ok {
			return qs, nil
		}
		qs, err := c.loader.LoadQuestions(ctx, gameID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[gameID] = cachedSet{
			questions: qs,
			expiresAt: c.clock().Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	return copyQuestions(result.([]domain.Question)), nil
}

func (c *QuestionSetCache) lookup(gameID string) ([]domain.Question, bool) {
	now := c.clock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[gameID]
	if !ok || !entry.expiresAt.After(now) {
		return nil, false
	}
	return copyQuestions(entry.questions), true
}

// ttlWithJitter adds up to 10% so entries loaded together expire apart.
// Callers must hold c.mu.
func (c *QuestionSetCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func copyQuestions(in []domain.Question) []domain.Question {
	out := make([]domain.Question, len(in))
	for i, q := range in {
		out[i] = cloneQuestion(q)
	}
	return out
}
