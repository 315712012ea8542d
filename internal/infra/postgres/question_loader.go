package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"partner-quiz-service/internal/domain"
)

// QuestionLoader reads frozen question sets straight from Postgres through
// a pgx pool. It backs the question-set caches.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context, gameID string) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, game_id, text, type, order_position, options, allow_multiple, created_at
		FROM questions
		WHERE game_id = $1
		ORDER BY order_position`, gameID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var (
			q         domain.Question
			qType     string
			options   []string
			createdAt time.Time
		)
		if err := rows.Scan(&q.ID, &q.GameID, &q.Text, &qType, &q.OrderPosition, &options, &q.AllowMultiple, &createdAt); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Type = domain.QuestionType(qType)
		q.CreatedAt = createdAt.UTC()
		if len(options) > 0 {
			q.Options = options
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, domain.NotFound("question set", gameID)
	}
	return questions, nil
}
