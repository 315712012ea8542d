package app

import (
	"context"
	"time"

	"partner-quiz-service/internal/domain"
)

// AnswerInput is one answer handed in by the interviewed partner.
type AnswerInput struct {
	QuestionID string
	Value      domain.AnswerValue
	Media      *domain.Media
}

// AnswerView is the client projection of an answer row.
type AnswerView struct {
	ID          string             `json:"id"`
	QuestionID  string             `json:"questionId"`
	Value       any                `json:"value"`
	Media       *domain.Media      `json:"media,omitempty"`
	Correctness domain.Correctness `json:"correctness"`
	CreatedAt   time.Time          `json:"createdAt"`
}

// ViewOf projects an answer row for clients.
func ViewOf(a domain.Answer) AnswerView {
	v := AnswerView{
		ID:          a.ID,
		QuestionID:  a.QuestionID,
		Media:       a.Media,
		Correctness: a.Correctness,
		CreatedAt:   a.CreatedAt,
	}
	switch val := a.Value.(type) {
	case domain.BoolValue:
		v.Value = bool(val)
	case domain.MultiChoiceValue:
		v.Value = []string(val)
	case domain.TextValue:
		v.Value = string(val)
	case domain.ChoiceValue:
		v.Value = string(val)
	}
	return v
}

// answering lets drafts in while the game is ready or playing and starts it
// on the first write, following the open rows of the lifecycle table.
var answering = openingGuard()

func openingGuard() domain.Guard {
	g := domain.Guard{Advance: map[domain.Status]domain.Status{}}
	for _, t := range domain.Transitions {
		if t.Action != domain.ActionOpen {
			continue
		}
		g.Allowed = append(g.Allowed, t.From, t.To)
		g.Advance[t.From] = t.To
	}
	return g
}

// SaveDraft appends a new answer row for a question. Drafts are only checked
// for shape; the required-answer rules run at page advance and submit.
func (s *GameService) SaveDraft(ctx context.Context, actor domain.Actor, questionID string, value domain.AnswerValue, media *domain.Media) (domain.Answer, error) {
	q, err := s.games.GetQuestion(ctx, questionID)
	if err != nil {
		return domain.Answer{}, err
	}
	return s.saveDraft(ctx, actor, q, AnswerInput{QuestionID: questionID, Value: value, Media: media})
}

// SaveGameDraft is SaveDraft for a question addressed through its game.
func (s *GameService) SaveGameDraft(ctx context.Context, actor domain.Actor, gameID string, in AnswerInput) (domain.Answer, error) {
	q, err := s.questionOf(ctx, gameID, in.QuestionID)
	if err != nil {
		return domain.Answer{}, err
	}
	return s.saveDraft(ctx, actor, q, in)
}

func (s *GameService) saveDraft(ctx context.Context, actor domain.Actor, q domain.Question, in AnswerInput) (domain.Answer, error) {
	game, err := s.authorized(ctx, actor, q.GameID, domain.OpWriteAnswer)
	if err != nil {
		return domain.Answer{}, err
	}
	row, err := s.newAnswer(game, q, in)
	if err != nil {
		return domain.Answer{}, err
	}

	saved, updated, err := s.games.AppendAnswers(ctx, game.ID, []domain.Answer{row}, answering, row.CreatedAt, nil)
	if err != nil {
		return domain.Answer{}, err
	}
	logTransition(game, updated)
	return saved[0], nil
}

// SubmitFinal appends the given answers and moves the game to answered when
// every question's resolved answer passes its rule. On any failure nothing
// is written and the status stays playing.
func (s *GameService) SubmitFinal(ctx context.Context, actor domain.Actor, gameID string, inputs []AnswerInput) (domain.Game, error) {
	game, err := s.loadGame(ctx, gameID)
	if err != nil {
		return domain.Game{}, err
	}
	next, err := domain.Decide(game, actor, domain.ActionSubmit)
	if err != nil {
		return domain.Game{}, err
	}
	questions, err := s.questionsFor(ctx, game)
	if err != nil {
		return domain.Game{}, err
	}
	byID := make(map[string]domain.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	rows := make([]domain.Answer, 0, len(inputs))
	var problems []domain.Problem
	for _, in := range inputs {
		q, ok := byID[in.QuestionID]
		if !ok {
			return domain.Game{}, domain.NotFound("question", in.QuestionID)
		}
		row, err := s.newAnswer(game, q, in)
		if err != nil {
			if ps := domain.ProblemsOf(err); len(ps) > 0 {
				problems = append(problems, ps...)
				continue
			}
			return domain.Game{}, err
		}
		rows = append(rows, row)
	}
	if len(problems) > 0 {
		return domain.Game{}, domain.ValidationFailed(problems)
	}

	check := func(resolved map[string]domain.Answer) error {
		if problems := domain.CheckAnswers(questions, game.Tier, resolved); len(problems) > 0 {
			return domain.ValidationFailed(problems)
		}
		return nil
	}
	_, updated, err := s.games.AppendAnswers(ctx, gameID, rows, domain.MoveStatus(game.Status, next), s.stamp(), check)
	if err != nil {
		return domain.Game{}, err
	}
	logTransition(game, updated)
	return updated, nil
}

// ResolveAnswer returns the authoritative answer of a question.
func (s *GameService) ResolveAnswer(ctx context.Context, actor domain.Actor, questionID string) (domain.Answer, bool, error) {
	q, err := s.games.GetQuestion(ctx, questionID)
	if err != nil {
		return domain.Answer{}, false, err
	}
	if _, err := s.authorized(ctx, actor, q.GameID, domain.OpReadAnswers); err != nil {
		return domain.Answer{}, false, err
	}
	return s.games.ResolveAnswer(ctx, questionID)
}

// ReviewItem pairs a question with its resolved answer, if any.
type ReviewItem struct {
	Question domain.Question `json:"question"`
	Answer   *AnswerView     `json:"answer,omitempty"`
}

// Answers lists every question of a game with its resolved answer, in
// question order. It is the review sheet: the interviewed partner never gets
// it, since it would show them the whole question list.
func (s *GameService) Answers(ctx context.Context, actor domain.Actor, gameID string) ([]ReviewItem, error) {
	game, err := s.authorized(ctx, actor, gameID, domain.OpReadAnswerSheet)
	if err != nil {
		return nil, err
	}
	questions, resolved, err := s.answerSheet(ctx, game)
	if err != nil {
		return nil, err
	}
	items := make([]ReviewItem, 0, len(questions))
	for _, q := range questions {
		item := ReviewItem{Question: q}
		if a, ok := resolved[q.ID]; ok {
			view := ViewOf(a)
			item.Answer = &view
		}
		items = append(items, item)
	}
	return items, nil
}

// AnswerHistory lists every row saved for a question, oldest first. The row
// that resolves the question is the last one.
func (s *GameService) AnswerHistory(ctx context.Context, actor domain.Actor, questionID string) ([]AnswerView, error) {
	q, err := s.games.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorized(ctx, actor, q.GameID, domain.OpReadAnswerSheet); err != nil {
		return nil, err
	}
	rows, err := s.games.AnswerHistory(ctx, questionID)
	if err != nil {
		return nil, err
	}
	views := make([]AnswerView, 0, len(rows))
	for _, a := range rows {
		views = append(views, ViewOf(a))
	}
	return views, nil
}

// MarkCorrectness records the creator's verdict on a resolved answer.
// Marking again overwrites the previous verdict.
func (s *GameService) MarkCorrectness(ctx context.Context, actor domain.Actor, answerID string, correct bool) (domain.Answer, error) {
	a, err := s.games.GetAnswer(ctx, answerID)
	if err != nil {
		return domain.Answer{}, err
	}
	q, err := s.games.GetQuestion(ctx, a.QuestionID)
	if err != nil {
		return domain.Answer{}, err
	}
	if _, err := s.authorized(ctx, actor, q.GameID, domain.OpMarkCorrectness); err != nil {
		return domain.Answer{}, err
	}
	return s.games.SetCorrectness(ctx, answerID, domain.CorrectnessOf(correct), domain.StatusIs(domain.StatusAnswered))
}

// newAnswer coerces an input into a row ready to append.
func (s *GameService) newAnswer(game domain.Game, q domain.Question, in AnswerInput) (domain.Answer, error) {
	value := in.Value
	if value == nil {
		value = domain.TextValue("")
	}
	value, err := domain.CoerceAnswerValue(q, value)
	if err != nil {
		return domain.Answer{}, domain.ValidationFailed([]domain.Problem{{QuestionID: q.ID, Reason: err.Error()}})
	}
	if in.Media != nil {
		if game.Tier != domain.TierPremium {
			return domain.Answer{}, domain.PreconditionFailed(
				"media answers need the premium tier",
				map[string]string{"Tier": string(game.Tier)},
			)
		}
		if err := domain.ValidateMedia(*in.Media); err != nil {
			return domain.Answer{}, domain.ValidationFailed([]domain.Problem{{QuestionID: q.ID, Reason: err.Error()}})
		}
	}
	return domain.Answer{
		ID:          s.newID(),
		QuestionID:  q.ID,
		Value:       value,
		Media:       in.Media,
		Correctness: domain.Unmarked,
		CreatedAt:   s.stamp(),
	}, nil
}
