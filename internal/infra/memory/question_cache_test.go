package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"partner-quiz-service/internal/domain"
)

func TestQuestionSetCacheCaches(t *testing.T) {
	loader := &countingLoader{sets: map[string][]domain.Question{"game-1": sampleQuestions()}}
	cache := NewQuestionSetCache(loader, time.Minute)

	if _, err := cache.QuestionSet(context.Background(), "game-1"); err != nil {
		t.Fatalf("question set: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected loader once, got %d", loader.count())
	}

	qs, err := cache.QuestionSet(context.Background(), "game-1")
	if err != nil {
		t.Fatalf("question set 2: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.count())
	}

	// callers get their own copy
	qs[0].Options[0] = "changed"
	again, _ := cache.QuestionSet(context.Background(), "game-1")
	if again[0].Options[0] != "A" {
		t.Fatalf("cached set was mutated through a returned slice")
	}
}

func TestQuestionSetCacheExpires(t *testing.T) {
	loader := &countingLoader{sets: map[string][]domain.Question{"game-1": sampleQuestions()}}
	cache := NewQuestionSetCache(loader, time.Minute)
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	cache.clock = func() time.Time { return now }

	_, _ = cache.QuestionSet(context.Background(), "game-1")
	now = now.Add(2 * time.Minute)
	_, _ = cache.QuestionSet(context.Background(), "game-1")
	if loader.count() != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.count())
	}
}

func TestQuestionSetCacheSharesConcurrentLoads(t *testing.T) {
	release := make(chan struct{})
	loader := &countingLoader{
		sets: map[string][]domain.Question{"game-1": sampleQuestions()},
		gate: release,
	}
	cache := NewQuestionSetCache(loader, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.QuestionSet(context.Background(), "game-1"); err != nil {
				t.Errorf("question set: %v", err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if loader.count() != 1 {
		t.Fatalf("expected a single shared load, got %d", loader.count())
	}
}

func TestQuestionSetCacheDoesNotCacheErrors(t *testing.T) {
	loader := &countingLoader{sets: map[string][]domain.Question{}}
	cache := NewQuestionSetCache(loader, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := cache.QuestionSet(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if loader.count() != 2 {
		t.Fatalf("expected failed loads to be retried, got %d", loader.count())
	}
}

type countingLoader struct {
	mu    sync.Mutex
	calls int
	sets  map[string][]domain.Question
	gate  chan struct{}
}

func (l *countingLoader) LoadQuestions(_ context.Context, gameID string) ([]domain.Question, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	if l.gate != nil {
		<-l.gate
	}
	qs, ok := l.sets[gameID]
	if !ok {
		return nil, domain.NotFound("game", gameID)
	}
	return copyQuestions(qs), nil
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "q1", GameID: "game-1", Text: "Pick one", Type: domain.QuestionSingleChoice, OrderPosition: 1, Options: []string{"A", "B"}},
		{ID: "q2", GameID: "game-1", Text: "Coffee?", Type: domain.QuestionBoolean, OrderPosition: 2},
	}
}
