package app

import (
	"context"
	"math"

	"partner-quiz-service/internal/domain"
)

// ScoreCard is the tally of a review. Total only counts reviewed answers.
type ScoreCard struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// MatchPercentage is Correct over Total rounded to a whole percent, or 0
// before anything was reviewed.
func (c ScoreCard) MatchPercentage() int {
	if c.Total == 0 {
		return 0
	}
	return int(math.Round(float64(c.Correct) * 100 / float64(c.Total)))
}

// ComputeScore walks questions in order and counts the marks on their
// resolved answers. Unanswered and unmarked questions are left out of Total.
func ComputeScore(questions []domain.Question, resolved map[string]domain.Answer) ScoreCard {
	var card ScoreCard
	for _, q := range questions {
		a, ok := resolved[q.ID]
		if !ok {
			continue
		}
		switch a.Correctness {
		case domain.Correct:
			card.Correct++
			card.Total++
		case domain.Incorrect:
			card.Total++
		}
	}
	return card
}

// Score tallies the review of a game.
func (s *GameService) Score(ctx context.Context, actor domain.Actor, gameID string) (ScoreCard, error) {
	game, err := s.authorized(ctx, actor, gameID, domain.OpReadResults)
	if err != nil {
		return ScoreCard{}, err
	}
	questions, resolved, err := s.answerSheet(ctx, game)
	if err != nil {
		return ScoreCard{}, err
	}
	return ComputeScore(questions, resolved), nil
}

// Results is the results page of a game.
type Results struct {
	Game            domain.Game  `json:"game"`
	Score           ScoreCard    `json:"score"`
	MatchPercentage int          `json:"matchPercentage"`
	Items           []ReviewItem `json:"items"`
}

// Results returns the score together with every question and its resolved
// answer.
func (s *GameService) Results(ctx context.Context, actor domain.Actor, gameID string) (Results, error) {
	game, err := s.authorized(ctx, actor, gameID, domain.OpReadResults)
	if err != nil {
		return Results{}, err
	}
	questions, resolved, err := s.answerSheet(ctx, game)
	if err != nil {
		return Results{}, err
	}
	card := ComputeScore(questions, resolved)
	res := Results{
		Game:            game,
		Score:           card,
		MatchPercentage: card.MatchPercentage(),
		Items:           make([]ReviewItem, 0, len(questions)),
	}
	for _, q := range questions {
		item := ReviewItem{Question: q}
		if a, ok := resolved[q.ID]; ok {
			view := ViewOf(a)
			item.Answer = &view
		}
		res.Items = append(res.Items, item)
	}
	return res, nil
}

func (s *GameService) answerSheet(ctx context.Context, game domain.Game) ([]domain.Question, map[string]domain.Answer, error) {
	questions, err := s.questionsFor(ctx, game)
	if err != nil {
		return nil, nil, err
	}
	resolved, err := s.games.ResolveAnswers(ctx, game.ID)
	if err != nil {
		return nil, nil, err
	}
	return questions, resolved, nil
}
