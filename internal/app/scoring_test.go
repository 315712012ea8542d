package app_test

import (
	"testing"

	"partner-quiz-service/internal/app"
	"partner-quiz-service/internal/domain"
)

func answersFor(questions []domain.Question) []app.AnswerInput {
	inputs := make([]app.AnswerInput, 0, len(questions))
	for _, q := range questions {
		var v domain.AnswerValue
		switch q.Type {
		case domain.QuestionBoolean:
			v = domain.BoolValue(true)
		case domain.QuestionSingleChoice, domain.QuestionMultiChoice:
			v = domain.TextValue(q.Options[0])
		default:
			v = domain.TextValue("an answer")
		}
		inputs = append(inputs, app.AnswerInput{QuestionID: q.ID, Value: v})
	}
	return inputs
}

func TestComputeScoreCountsOnlyReviewedAnswers(t *testing.T) {
	questions := []domain.Question{{ID: "q1"}, {ID: "q2"}, {ID: "q3"}, {ID: "q4"}, {ID: "q5"}}
	resolved := map[string]domain.Answer{
		"q1": {ID: "a1", Correctness: domain.Correct},
		"q2": {ID: "a2", Correctness: domain.Incorrect},
		"q3": {ID: "a3", Correctness: domain.Unmarked},
		// q4 and q5 were never answered
		"other": {ID: "a9", Correctness: domain.Correct},
	}
	card := app.ComputeScore(questions, resolved)
	if card.Correct != 1 || card.Total != 2 {
		t.Fatalf("expected (1, 2), got %+v", card)
	}
	if card.MatchPercentage() != 50 {
		t.Fatalf("expected 50%%, got %d", card.MatchPercentage())
	}
}

func TestMatchPercentage(t *testing.T) {
	cases := []struct {
		card app.ScoreCard
		want int
	}{
		{app.ScoreCard{}, 0},
		{app.ScoreCard{Correct: 2, Total: 3}, 67},
		{app.ScoreCard{Correct: 1, Total: 3}, 33},
		{app.ScoreCard{Correct: 4, Total: 4}, 100},
	}
	for _, tc := range cases {
		if got := tc.card.MatchPercentage(); got != tc.want {
			t.Fatalf("%+v: expected %d, got %d", tc.card, tc.want, got)
		}
	}
}
