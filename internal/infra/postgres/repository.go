package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
	"partner-quiz-service/internal/app"
	"partner-quiz-service/internal/domain"
)

// Repository is the bun-backed GameRepository. Guarded writes run in a
// transaction that locks the game row, so the status check and the write
// commit together.
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateGame(ctx context.Context, game domain.Game, questions []domain.Question) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := fromGame(game)
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return fmt.Errorf("insert game: %w", err)
		}
		if len(questions) == 0 {
			return nil
		}
		rows := make([]questionRow, 0, len(questions))
		for _, q := range questions {
			q.GameID = game.ID
			rows = append(rows, fromQuestion(q))
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("insert questions: %w", err)
		}
		return nil
	})
}

func (r *Repository) GetGame(ctx context.Context, gameID string) (domain.Game, error) {
	var row gameRow
	err := r.db.NewSelect().Model(&row).Where("g.id = ?", gameID).Scan(ctx)
	if err != nil {
		return domain.Game{}, notFound(err, "game", gameID)
	}
	return row.toDomain(), nil
}

func (r *Repository) FindGameByAccessCode(ctx context.Context, code string) (domain.Game, error) {
	var row gameRow
	err := r.db.NewSelect().Model(&row).Where("g.access_code = ?", code).Scan(ctx)
	if err != nil {
		return domain.Game{}, notFound(err, "access code", code)
	}
	return row.toDomain(), nil
}

func (r *Repository) ListGamesByCreator(ctx context.Context, creatorID string) ([]domain.GameSummary, error) {
	return r.summaries(ctx, "g.creator_id = ?", creatorID)
}

func (r *Repository) ListGamesByInterviewedEmail(ctx context.Context, email string) ([]domain.GameSummary, error) {
	return r.summaries(ctx, "lower(g.interviewed_email) = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *Repository) summaries(ctx context.Context, where string, arg interface{}) ([]domain.GameSummary, error) {
	var rows []summaryRow
	err := r.db.NewSelect().
		Model(&rows).
		ColumnExpr("g.id, g.name, g.occasion, g.status, g.payment_tier, g.created_at").
		ColumnExpr("(SELECT count(*) FROM questions AS q WHERE q.game_id = g.id) AS question_count").
		Where(where, arg).
		OrderExpr("g.created_at DESC, g.id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	out := make([]domain.GameSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *Repository) UpdateGameDetails(ctx context.Context, game domain.Game, guard domain.Guard) (domain.Game, error) {
	var updated domain.Game
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current, _, err := lockGame(ctx, tx, game.ID, guard)
		if err != nil {
			return err
		}
		next := fromGame(game)
		current.Name = next.Name
		current.Occasion = next.Occasion
		current.InterviewedEmail = next.InterviewedEmail
		current.InterviewedName = next.InterviewedName
		current.PlayingEmail = next.PlayingEmail
		current.PlayingName = next.PlayingName
		current.UpdatedAt = game.UpdatedAt
		_, err = tx.NewUpdate().
			Model(&current).
			Column("name", "occasion", "interviewed_email", "interviewed_name", "playing_email", "playing_name", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update game: %w", err)
		}
		updated = current.toDomain()
		return nil
	})
	return updated, err
}

func (r *Repository) UpdateStatus(ctx context.Context, gameID string, guard domain.Guard, at time.Time) (domain.Game, error) {
	var updated domain.Game
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current, next, err := lockGame(ctx, tx, gameID, guard)
		if err != nil {
			return err
		}
		if err := moveStatus(ctx, tx, &current, next, at); err != nil {
			return err
		}
		updated = current.toDomain()
		return nil
	})
	return updated, err
}

func (r *Repository) Publish(ctx context.Context, gameID string, tier domain.Tier, accessCode string, at time.Time) (domain.Game, error) {
	var updated domain.Game
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		guard := domain.MoveStatus(domain.StatusInCreation, domain.StatusReadyToPlay)
		current, next, err := lockGame(ctx, tx, gameID, guard)
		if err != nil {
			return err
		}
		current.PaymentTier = string(tier)
		current.Status = string(next)
		current.AccessCode = accessCode
		current.UpdatedAt = at
		_, err = tx.NewUpdate().
			Model(&current).
			Column("payment_tier", "status", "access_code", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return codeTaken(err, "publish game")
		}
		updated = current.toDomain()
		return nil
	})
	return updated, err
}

func (r *Repository) AssignAccessCode(ctx context.Context, gameID, code string, at time.Time) (domain.Game, error) {
	var updated domain.Game
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var current gameRow
		err := tx.NewSelect().Model(&current).Where("g.id = ?", gameID).For("UPDATE").Scan(ctx)
		if err != nil {
			return notFound(err, "game", gameID)
		}
		if current.AccessCode == "" {
			current.AccessCode = code
			current.UpdatedAt = at
			_, err = tx.NewUpdate().Model(&current).Column("access_code", "updated_at").WherePK().Exec(ctx)
			if err != nil {
				return codeTaken(err, "assign access code")
			}
		}
		updated = current.toDomain()
		return nil
	})
	return updated, err
}

func (r *Repository) AddQuestion(ctx context.Context, q domain.Question, guard domain.Guard) (domain.Question, error) {
	var added domain.Question
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, _, err := lockGame(ctx, tx, q.GameID, guard); err != nil {
			return err
		}
		var last int
		err := tx.NewSelect().
			Model((*questionRow)(nil)).
			ColumnExpr("coalesce(max(q.order_position), 0)").
			Where("q.game_id = ?", q.GameID).
			Scan(ctx, &last)
		if err != nil {
			return fmt.Errorf("next question position: %w", err)
		}
		q.OrderPosition = last + 1
		row := fromQuestion(q)
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
		added = row.toDomain()
		return nil
	})
	return added, err
}

func (r *Repository) UpdateQuestion(ctx context.Context, q domain.Question, guard domain.Guard) (domain.Question, error) {
	var updated domain.Question
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, _, err := lockGame(ctx, tx, q.GameID, guard); err != nil {
			return err
		}
		row := fromQuestion(q)
		res, err := tx.NewUpdate().
			Model(&row).
			Column("text", "type", "options", "allow_multiple").
			Where("q.id = ? AND q.game_id = ?", q.ID, q.GameID).
			Returning("order_position, created_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update question: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.NotFound("question", q.ID)
		}
		updated = row.toDomain()
		return nil
	})
	return updated, err
}

func (r *Repository) RemoveQuestion(ctx context.Context, gameID, questionID string, guard domain.Guard) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, _, err := lockGame(ctx, tx, gameID, guard); err != nil {
			return err
		}
		count, err := tx.NewSelect().Model((*questionRow)(nil)).Where("q.game_id = ?", gameID).Count(ctx)
		if err != nil {
			return fmt.Errorf("count questions: %w", err)
		}
		if count <= 1 {
			return domain.ErrLastQuestion
		}
		res, err := tx.NewDelete().
			Model((*questionRow)(nil)).
			Where("q.id = ? AND q.game_id = ?", questionID, gameID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete question: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.NotFound("question", questionID)
		}
		return nil
	})
}

func (r *Repository) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	var row questionRow
	if err := r.db.NewSelect().Model(&row).Where("q.id = ?", questionID).Scan(ctx); err != nil {
		return domain.Question{}, notFound(err, "question", questionID)
	}
	return row.toDomain(), nil
}

func (r *Repository) ListQuestions(ctx context.Context, gameID string) ([]domain.Question, error) {
	exists, err := r.db.NewSelect().Model((*gameRow)(nil)).Where("g.id = ?", gameID).Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check game: %w", err)
	}
	if !exists {
		return nil, domain.NotFound("game", gameID)
	}
	var rows []questionRow
	err = r.db.NewSelect().Model(&rows).Where("q.game_id = ?", gameID).Order("q.order_position").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	out := make([]domain.Question, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *Repository) AppendAnswers(ctx context.Context, gameID string, answers []domain.Answer, guard domain.Guard, at time.Time, check func(map[string]domain.Answer) error) ([]domain.Answer, domain.Game, error) {
	var (
		saved []domain.Answer
		game  domain.Game
	)
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current, next, err := lockGame(ctx, tx, gameID, guard)
		if err != nil {
			return err
		}
		if len(answers) > 0 {
			ids := make([]string, 0, len(answers))
			rows := make([]answerRow, 0, len(answers))
			for _, a := range answers {
				ids = append(ids, a.QuestionID)
				rows = append(rows, fromAnswer(a))
			}
			owned, err := tx.NewSelect().
				Model((*questionRow)(nil)).
				Where("q.game_id = ?", gameID).
				Where("q.id IN (?)", bun.In(ids)).
				Count(ctx)
			if err != nil {
				return fmt.Errorf("check answer questions: %w", err)
			}
			if owned != len(distinct(ids)) {
				return domain.NotFound("question", strings.Join(ids, ","))
			}
			if _, err := tx.NewInsert().Model(&rows).Returning("seq").Exec(ctx); err != nil {
				return fmt.Errorf("insert answers: %w", err)
			}
			saved = make([]domain.Answer, 0, len(rows))
			for i, row := range rows {
				a := answers[i]
				a.Seq = row.Seq
				saved = append(saved, a)
			}
		}
		if check != nil {
			resolved, err := resolveAnswers(ctx, tx, gameID)
			if err != nil {
				return err
			}
			if err := check(resolved); err != nil {
				return err
			}
		}
		if err := moveStatus(ctx, tx, &current, next, at); err != nil {
			return err
		}
		game = current.toDomain()
		return nil
	})
	if err != nil {
		return nil, domain.Game{}, err
	}
	return saved, game, nil
}

func (r *Repository) GetAnswer(ctx context.Context, answerID string) (domain.Answer, error) {
	var row answerRow
	if err := r.db.NewSelect().Model(&row).Where("a.id = ?", answerID).Scan(ctx); err != nil {
		return domain.Answer{}, notFound(err, "answer", answerID)
	}
	return row.toDomain()
}

// AnswerHistory returns every row of a question, oldest first.
func (r *Repository) AnswerHistory(ctx context.Context, questionID string) ([]domain.Answer, error) {
	var rows []answerRow
	err := r.db.NewSelect().
		Model(&rows).
		Where("a.question_id = ?", questionID).
		OrderExpr("a.created_at, a.seq").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("answer history: %w", err)
	}
	return toAnswers(rows)
}

func (r *Repository) ResolveAnswer(ctx context.Context, questionID string) (domain.Answer, bool, error) {
	if _, err := r.GetQuestion(ctx, questionID); err != nil {
		return domain.Answer{}, false, err
	}
	a, err := latestAnswer(ctx, r.db, questionID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Answer{}, false, nil
	}
	if err != nil {
		return domain.Answer{}, false, err
	}
	return a, true, nil
}

func (r *Repository) ResolveAnswers(ctx context.Context, gameID string) (map[string]domain.Answer, error) {
	return resolveAnswers(ctx, r.db, gameID)
}

func (r *Repository) SetCorrectness(ctx context.Context, answerID string, correctness domain.Correctness, guard domain.Guard) (domain.Answer, error) {
	var marked domain.Answer
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var row answerRow
		if err := tx.NewSelect().Model(&row).Where("a.id = ?", answerID).Scan(ctx); err != nil {
			return notFound(err, "answer", answerID)
		}
		var q questionRow
		if err := tx.NewSelect().Model(&q).Where("q.id = ?", row.QuestionID).Scan(ctx); err != nil {
			return notFound(err, "question", row.QuestionID)
		}
		if _, _, err := lockGame(ctx, tx, q.GameID, guard); err != nil {
			return err
		}
		latest, err := latestAnswer(ctx, tx, row.QuestionID)
		if err != nil {
			return err
		}
		if latest.ID != answerID {
			return domain.PreconditionFailed(
				"answer was superseded by a newer one",
				map[string]string{"AnswerID": answerID, "ResolvedID": latest.ID},
			)
		}
		row.Correctness = string(correctness)
		if _, err := tx.NewUpdate().Model(&row).Column("correctness").WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("mark answer: %w", err)
		}
		marked, err = row.toDomain()
		return err
	})
	return marked, err
}

// lockGame reads the game row FOR UPDATE and checks guard against it.
func lockGame(ctx context.Context, tx bun.Tx, gameID string, guard domain.Guard) (gameRow, domain.Status, error) {
	var row gameRow
	err := tx.NewSelect().Model(&row).Where("g.id = ?", gameID).For("UPDATE").Scan(ctx)
	if err != nil {
		return gameRow{}, "", notFound(err, "game", gameID)
	}
	next, err := guard.Check(domain.Status(row.Status))
	if err != nil {
		return gameRow{}, "", err
	}
	return row, next, nil
}

func moveStatus(ctx context.Context, tx bun.Tx, row *gameRow, next domain.Status, at time.Time) error {
	if domain.Status(row.Status) == next {
		return nil
	}
	res, err := tx.NewUpdate().
		Model((*gameRow)(nil)).
		Set("status = ?", string(next)).
		Set("updated_at = ?", at).
		Where("g.id = ? AND g.status = ?", row.ID, row.Status).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.PreconditionFailed("game status changed concurrently", map[string]string{"Status": row.Status})
	}
	row.Status = string(next)
	row.UpdatedAt = at
	return nil
}

func latestAnswer(ctx context.Context, db bun.IDB, questionID string) (domain.Answer, error) {
	var row answerRow
	err := db.NewSelect().
		Model(&row).
		Where("a.question_id = ?", questionID).
		OrderExpr("a.created_at DESC, a.seq DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Answer{}, err
	}
	return row.toDomain()
}

func resolveAnswers(ctx context.Context, db bun.IDB, gameID string) (map[string]domain.Answer, error) {
	var rows []answerRow
	err := db.NewSelect().
		Model(&rows).
		DistinctOn("a.question_id").
		Join("JOIN questions AS q ON q.id = a.question_id").
		Where("q.game_id = ?", gameID).
		OrderExpr("a.question_id, a.created_at DESC, a.seq DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve answers: %w", err)
	}
	answers, err := toAnswers(rows)
	if err != nil {
		return nil, err
	}
	resolved := make(map[string]domain.Answer, len(answers))
	for _, a := range answers {
		resolved[a.QuestionID] = a
	}
	return resolved, nil
}

func toAnswers(rows []answerRow) ([]domain.Answer, error) {
	out := make([]domain.Answer, 0, len(rows))
	for _, row := range rows {
		a, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func notFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFound(what, id)
	}
	return fmt.Errorf("load %s: %w", what, err)
}

// codeTaken maps a unique violation on games.access_code to app.ErrAccessCodeTaken.
func codeTaken(err error, op string) error {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.Field('C') == "23505" {
		return app.ErrAccessCodeTaken
	}
	return fmt.Errorf("%s: %w", op, err)
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
