package app

import (
	"context"
	"strconv"

	"partner-quiz-service/internal/domain"
)

var composing = domain.StatusIs(domain.StatusInCreation)

// AddQuestion appends a question at the end of the set.
func (s *GameService) AddQuestion(ctx context.Context, actor domain.Actor, gameID string, draft domain.QuestionDraft) (domain.Question, error) {
	if _, err := s.authorized(ctx, actor, gameID, domain.OpEditQuestions); err != nil {
		return domain.Question{}, err
	}
	draft, err := domain.NormalizeQuestionDraft(draft)
	if err != nil {
		return domain.Question{}, err
	}
	q := draft.Apply(domain.Question{
		ID:        s.newID(),
		GameID:    gameID,
		CreatedAt: s.stamp(),
	})
	return s.games.AddQuestion(ctx, q, composing)
}

// UpdateQuestion replaces the text, type and options of a question. The
// position is kept.
func (s *GameService) UpdateQuestion(ctx context.Context, actor domain.Actor, gameID, questionID string, draft domain.QuestionDraft) (domain.Question, error) {
	if _, err := s.authorized(ctx, actor, gameID, domain.OpEditQuestions); err != nil {
		return domain.Question{}, err
	}
	current, err := s.questionOf(ctx, gameID, questionID)
	if err != nil {
		return domain.Question{}, err
	}
	draft, err = domain.NormalizeQuestionDraft(draft)
	if err != nil {
		return domain.Question{}, err
	}
	return s.games.UpdateQuestion(ctx, draft.Apply(current), composing)
}

// RemoveQuestion deletes a question unless it is the only one left.
func (s *GameService) RemoveQuestion(ctx context.Context, actor domain.Actor, gameID, questionID string) error {
	if _, err := s.authorized(ctx, actor, gameID, domain.OpEditQuestions); err != nil {
		return err
	}
	if _, err := s.questionOf(ctx, gameID, questionID); err != nil {
		return err
	}
	return s.games.RemoveQuestion(ctx, gameID, questionID, composing)
}

// ListQuestions returns the full question set ordered by position. The
// interviewed partner is refused here and uses QuestionAt instead.
func (s *GameService) ListQuestions(ctx context.Context, actor domain.Actor, gameID string) ([]domain.Question, error) {
	game, err := s.authorized(ctx, actor, gameID, domain.OpReadQuestions)
	if err != nil {
		return nil, err
	}
	return s.questionsFor(ctx, game)
}

// GuidedStep is one page of the guided answer flow.
type GuidedStep struct {
	Index    int             `json:"index"`
	Total    int             `json:"total"`
	Question domain.Question `json:"question"`
	Answer   *AnswerView     `json:"answer,omitempty"`
	Game     domain.Game     `json:"game"`
}

// QuestionAt serves the interviewed partner one question at a time. Opening
// any page starts the game, and a page is only reachable once every earlier
// question holds an answer that passes its type rule.
func (s *GameService) QuestionAt(ctx context.Context, actor domain.Actor, gameID string, index int) (GuidedStep, error) {
	game, err := s.authorized(ctx, actor, gameID, domain.OpGuidedFlow)
	if err != nil {
		return GuidedStep{}, err
	}
	questions, err := s.questionsFor(ctx, game)
	if err != nil {
		return GuidedStep{}, err
	}
	if index < 0 || index >= len(questions) {
		return GuidedStep{}, domain.NotFound("question index", strconv.Itoa(index))
	}

	resolved, err := s.games.ResolveAnswers(ctx, gameID)
	if err != nil {
		return GuidedStep{}, err
	}
	if problems := domain.CheckAnswers(questions[:index], game.Tier, resolved); len(problems) > 0 {
		return GuidedStep{}, domain.ValidationFailed(problems)
	}

	game, err = s.lazyStart(ctx, actor, game)
	if err != nil {
		return GuidedStep{}, err
	}
	step := GuidedStep{Index: index, Total: len(questions), Question: questions[index], Game: game}
	if a, ok := resolved[questions[index].ID]; ok {
		view := ViewOf(a)
		step.Answer = &view
	}
	return step, nil
}

// questionOf loads a question and checks it belongs to gameID.
func (s *GameService) questionOf(ctx context.Context, gameID, questionID string) (domain.Question, error) {
	q, err := s.games.GetQuestion(ctx, questionID)
	if err != nil {
		return domain.Question{}, err
	}
	if q.GameID != gameID {
		return domain.Question{}, domain.NotFound("question", questionID)
	}
	return q, nil
}
