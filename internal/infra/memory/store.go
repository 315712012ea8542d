package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"partner-quiz-service/internal/app"
	"partner-quiz-service/internal/domain"
)

// Store keeps games, questions and answers in process memory. A single mutex
// serialises writes, which makes every guarded write atomic with its status
// check. Suitable for tests and single-instance deployments.
type Store struct {
	mu        sync.RWMutex
	games     map[string]domain.Game
	codes     map[string]string
	questions map[string]domain.Question
	answers   map[string]domain.Answer
	history   map[string][]string
	seq       int64
}

func NewStore() *Store {
	return &Store{
		games:     make(map[string]domain.Game),
		codes:     make(map[string]string),
		questions: make(map[string]domain.Question),
		answers:   make(map[string]domain.Answer),
		history:   make(map[string][]string),
	}
}

func (s *Store) CreateGame(_ context.Context, game domain.Game, questions []domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[game.ID]; ok {
		return fmt.Errorf("game %q already exists", game.ID)
	}
	s.games[game.ID] = cloneGame(game)
	for _, q := range questions {
		q.GameID = game.ID
		s.questions[q.ID] = cloneQuestion(q)
	}
	return nil
}

func (s *Store) GetGame(_ context.Context, gameID string) (domain.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[gameID]
	if !ok {
		return domain.Game{}, domain.NotFound("game", gameID)
	}
	return cloneGame(g), nil
}

func (s *Store) FindGameByAccessCode(_ context.Context, code string) (domain.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.codes[code]
	if !ok {
		return domain.Game{}, domain.NotFound("access code", code)
	}
	return cloneGame(s.games[id]), nil
}

func (s *Store) ListGamesByCreator(_ context.Context, creatorID string) ([]domain.GameSummary, error) {
	return s.summaries(func(g domain.Game) bool { return g.CreatorID == creatorID }), nil
}

func (s *Store) ListGamesByInterviewedEmail(_ context.Context, email string) ([]domain.GameSummary, error) {
	email = strings.TrimSpace(email)
	return s.summaries(func(g domain.Game) bool {
		return strings.EqualFold(g.InterviewedPartner.Email, email)
	}), nil
}

func (s *Store) summaries(match func(domain.Game) bool) []domain.GameSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	for _, q := range s.questions {
		counts[q.GameID]++
	}
	var out []domain.GameSummary
	for _, g := range s.games {
		if !match(g) {
			continue
		}
		out = append(out, domain.GameSummary{
			ID:            g.ID,
			Name:          g.Name,
			Occasion:      g.Occasion,
			Status:        g.Status,
			Tier:          g.Tier,
			QuestionCount: counts[g.ID],
			CreatedAt:     g.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) UpdateGameDetails(_ context.Context, game domain.Game, guard domain.Guard) (domain.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, _, err := s.guardLocked(game.ID, guard)
	if err != nil {
		return domain.Game{}, err
	}
	current.Name = game.Name
	current.Occasion = game.Occasion
	current.InterviewedPartner = game.InterviewedPartner
	current.PlayingPartner = game.PlayingPartner
	current.UpdatedAt = game.UpdatedAt
	s.games[current.ID] = cloneGame(current)
	return cloneGame(current), nil
}

func (s *Store) UpdateStatus(_ context.Context, gameID string, guard domain.Guard, at time.Time) (domain.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, next, err := s.guardLocked(gameID, guard)
	if err != nil {
		return domain.Game{}, err
	}
	if next != g.Status {
		g.Status = next
		g.UpdatedAt = at
		s.games[gameID] = g
	}
	return cloneGame(g), nil
}

func (s *Store) Publish(_ context.Context, gameID string, tier domain.Tier, accessCode string, at time.Time) (domain.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, next, err := s.guardLocked(gameID, domain.MoveStatus(domain.StatusInCreation, domain.StatusReadyToPlay))
	if err != nil {
		return domain.Game{}, err
	}
	if _, taken := s.codes[accessCode]; taken {
		return domain.Game{}, app.ErrAccessCodeTaken
	}
	g.Tier = tier
	g.Status = next
	g.AccessCode = accessCode
	g.UpdatedAt = at
	s.games[gameID] = g
	s.codes[accessCode] = gameID
	return cloneGame(g), nil
}

func (s *Store) AssignAccessCode(_ context.Context, gameID, code string, at time.Time) (domain.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[gameID]
	if !ok {
		return domain.Game{}, domain.NotFound("game", gameID)
	}
	if g.AccessCode != "" {
		return cloneGame(g), nil
	}
	if _, taken := s.codes[code]; taken {
		return domain.Game{}, app.ErrAccessCodeTaken
	}
	g.AccessCode = code
	g.UpdatedAt = at
	s.games[gameID] = g
	s.codes[code] = gameID
	return cloneGame(g), nil
}

func (s *Store) AddQuestion(_ context.Context, q domain.Question, guard domain.Guard) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, _, err := s.guardLocked(q.GameID, guard); err != nil {
		return domain.Question{}, err
	}
	last := 0
	for _, existing := range s.questions {
		if existing.GameID == q.GameID && existing.OrderPosition > last {
			last = existing.OrderPosition
		}
	}
	q.OrderPosition = last + 1
	s.questions[q.ID] = cloneQuestion(q)
	return cloneQuestion(q), nil
}

func (s *Store) UpdateQuestion(_ context.Context, q domain.Question, guard domain.Guard) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.questions[q.ID]
	if !ok || current.GameID != q.GameID {
		return domain.Question{}, domain.NotFound("question", q.ID)
	}
	if _, _, err := s.guardLocked(q.GameID, guard); err != nil {
		return domain.Question{}, err
	}
	q.OrderPosition = current.OrderPosition
	q.CreatedAt = current.CreatedAt
	s.questions[q.ID] = cloneQuestion(q)
	return cloneQuestion(q), nil
}

func (s *Store) RemoveQuestion(_ context.Context, gameID, questionID string, guard domain.Guard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[questionID]
	if !ok || q.GameID != gameID {
		return domain.NotFound("question", questionID)
	}
	if _, _, err := s.guardLocked(gameID, guard); err != nil {
		return err
	}
	remaining := 0
	for _, other := range s.questions {
		if other.GameID == gameID {
			remaining++
		}
	}
	if remaining <= 1 {
		return domain.ErrLastQuestion
	}
	delete(s.questions, questionID)
	for _, id := range s.history[questionID] {
		delete(s.answers, id)
	}
	delete(s.history, questionID)
	return nil
}

func (s *Store) GetQuestion(_ context.Context, questionID string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[questionID]
	if !ok {
		return domain.Question{}, domain.NotFound("question", questionID)
	}
	return cloneQuestion(q), nil
}

func (s *Store) ListQuestions(_ context.Context, gameID string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.games[gameID]; !ok {
		return nil, domain.NotFound("game", gameID)
	}
	return s.questionsLocked(gameID), nil
}

// LoadQuestions lets the store back a QuestionSetCache.
func (s *Store) LoadQuestions(ctx context.Context, gameID string) ([]domain.Question, error) {
	return s.ListQuestions(ctx, gameID)
}

func (s *Store) AppendAnswers(_ context.Context, gameID string, answers []domain.Answer, guard domain.Guard, at time.Time, check func(map[string]domain.Answer) error) ([]domain.Answer, domain.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, next, err := s.guardLocked(gameID, guard)
	if err != nil {
		return nil, domain.Game{}, err
	}

	resolved := s.resolveLocked(gameID)
	seq := s.seq
	saved := make([]domain.Answer, 0, len(answers))
	for _, a := range answers {
		q, ok := s.questions[a.QuestionID]
		if !ok || q.GameID != gameID {
			return nil, domain.Game{}, domain.NotFound("question", a.QuestionID)
		}
		seq++
		a.Seq = seq
		if current, ok := resolved[a.QuestionID]; !ok || a.After(current) {
			resolved[a.QuestionID] = a
		}
		saved = append(saved, a)
	}
	if check != nil {
		if err := check(resolved); err != nil {
			return nil, domain.Game{}, err
		}
	}

	s.seq = seq
	for _, a := range saved {
		s.answers[a.ID] = a
		s.history[a.QuestionID] = append(s.history[a.QuestionID], a.ID)
	}
	if next != g.Status {
		g.Status = next
		g.UpdatedAt = at
		s.games[gameID] = g
	}
	return saved, cloneGame(g), nil
}

func (s *Store) GetAnswer(_ context.Context, answerID string) (domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.answers[answerID]
	if !ok {
		return domain.Answer{}, domain.NotFound("answer", answerID)
	}
	return a, nil
}

// AnswerHistory returns every row of a question, oldest first.
func (s *Store) AnswerHistory(_ context.Context, questionID string) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]domain.Answer, 0, len(s.history[questionID]))
	for _, id := range s.history[questionID] {
		rows = append(rows, s.answers[id])
	}
	sort.Slice(rows, func(i, j int) bool { return rows[j].After(rows[i]) })
	return rows, nil
}

func (s *Store) ResolveAnswer(_ context.Context, questionID string) (domain.Answer, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.questions[questionID]; !ok {
		return domain.Answer{}, false, domain.NotFound("question", questionID)
	}
	a, ok := s.latestLocked(questionID)
	return a, ok, nil
}

func (s *Store) ResolveAnswers(_ context.Context, gameID string) (map[string]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveLocked(gameID), nil
}

func (s *Store) SetCorrectness(_ context.Context, answerID string, correctness domain.Correctness, guard domain.Guard) (domain.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.answers[answerID]
	if !ok {
		return domain.Answer{}, domain.NotFound("answer", answerID)
	}
	q := s.questions[a.QuestionID]
	if _, _, err := s.guardLocked(q.GameID, guard); err != nil {
		return domain.Answer{}, err
	}
	if latest, _ := s.latestLocked(a.QuestionID); latest.ID != answerID {
		return domain.Answer{}, supersededError(answerID, latest.ID)
	}
	a.Correctness = correctness
	s.answers[answerID] = a
	return a, nil
}

// guardLocked checks guard against the stored status and returns the game
// with the status it should move to. Callers must hold s.mu.
func (s *Store) guardLocked(gameID string, guard domain.Guard) (domain.Game, domain.Status, error) {
	g, ok := s.games[gameID]
	if !ok {
		return domain.Game{}, "", domain.NotFound("game", gameID)
	}
	next, err := guard.Check(g.Status)
	if err != nil {
		return domain.Game{}, "", err
	}
	return g, next, nil
}

func (s *Store) questionsLocked(gameID string) []domain.Question {
	var out []domain.Question
	for _, q := range s.questions {
		if q.GameID == gameID {
			out = append(out, cloneQuestion(q))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderPosition < out[j].OrderPosition })
	return out
}

func (s *Store) latestLocked(questionID string) (domain.Answer, bool) {
	var (
		latest domain.Answer
		found  bool
	)
	for _, id := range s.history[questionID] {
		a := s.answers[id]
		if !found || a.After(latest) {
			latest, found = a, true
		}
	}
	return latest, found
}

func (s *Store) resolveLocked(gameID string) map[string]domain.Answer {
	resolved := make(map[string]domain.Answer)
	for id, q := range s.questions {
		if q.GameID != gameID {
			continue
		}
		if a, ok := s.latestLocked(id); ok {
			resolved[id] = a
		}
	}
	return resolved
}

func supersededError(answerID, latestID string) error {
	return domain.PreconditionFailed(
		"answer was superseded by a newer one",
		map[string]string{"AnswerID": answerID, "ResolvedID": latestID},
	)
}

func cloneGame(g domain.Game) domain.Game {
	if g.PlayingPartner != nil {
		p := *g.PlayingPartner
		g.PlayingPartner = &p
	}
	return g
}

func cloneQuestion(q domain.Question) domain.Question {
	if q.Options != nil {
		q.Options = append([]string(nil), q.Options...)
	}
	return q
}
