package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"partner-quiz-service/internal/app"
	"partner-quiz-service/internal/domain"
	"partner-quiz-service/internal/infra/memory"
	"partner-quiz-service/internal/infra/postgres"
	pgmigrations "partner-quiz-service/internal/infra/postgres/migrations"
	infraredis "partner-quiz-service/internal/infra/redis"
)

var (
	creator     = domain.Actor{UserID: "creator-1", Email: "sam@example.com"}
	interviewed = domain.Actor{UserID: "partner-1", Email: "mia@example.com"}
)

type stack struct {
	service *app.GameService
	repo    *postgres.Repository
	outbox  *infraredis.InviteOutbox
}

func TestGameEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)
	s := newStack(t, ctx)

	game, questions, err := s.service.CreateGame(ctx, creator, app.NewGame{
		GameDetails: domain.GameDetails{
			Name:               "Ten years",
			InterviewedPartner: domain.Partner{Name: "Mia", Email: "mia@example.com"},
		},
		Questions: []domain.QuestionDraft{
			{Text: "Favourite dish?", Type: domain.QuestionFreeText},
			{Text: "Coffee first?", Type: domain.QuestionBoolean},
			{Text: "Pick one", Type: domain.QuestionSingleChoice, Options: []string{"A", "B"}},
			{Text: "Cities", Type: domain.QuestionMultiChoice, Options: []string{"Paris", "Rome", "Oslo"}, AllowMultiple: true},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	text, boolean, choice, multi := questions[0], questions[1], questions[2], questions[3]

	published, err := s.service.Publish(ctx, creator, game.ID, domain.TierBasic)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if published.Status != domain.StatusReadyToPlay || published.AccessCode == "" {
		t.Fatalf("unexpected published game %+v", published)
	}
	if _, err := s.service.AddQuestion(ctx, creator, game.ID, domain.QuestionDraft{Text: "Late?", Type: domain.QuestionFreeText}); !errors.Is(err, domain.ErrPreconditionFailed) {
		t.Fatalf("expected frozen question set, got %v", err)
	}

	if _, err := s.service.SendInvite(ctx, creator, game.ID); err != nil {
		t.Fatalf("send invite: %v", err)
	}
	pending, err := s.outbox.Pending(ctx)
	if err != nil || len(pending) != 1 || pending[0].AccessCode != published.AccessCode {
		t.Fatalf("expected queued invite, got %+v (%v)", pending, err)
	}

	if _, err := s.service.SaveGameDraft(ctx, interviewed, game.ID, app.AnswerInput{QuestionID: boolean.ID, Value: domain.TextValue("true")}); err != nil {
		t.Fatalf("draft: %v", err)
	}
	if _, err := s.service.SaveGameDraft(ctx, interviewed, game.ID, app.AnswerInput{QuestionID: multi.ID, Value: domain.MultiChoiceValue{"Rome", "Oslo"}}); err != nil {
		t.Fatalf("multi draft: %v", err)
	}

	_, err = s.service.SubmitFinal(ctx, interviewed, game.ID, []app.AnswerInput{{QuestionID: choice.ID, Value: domain.ChoiceValue("A")}})
	if !errors.Is(err, domain.ErrValidationFailed) {
		t.Fatalf("expected validation failure, got %v", err)
	}
	if _, found, _ := s.repo.ResolveAnswer(ctx, choice.ID); found {
		t.Fatalf("rejected submit must not write answers")
	}

	answered, err := s.service.SubmitFinal(ctx, interviewed, game.ID, []app.AnswerInput{
		{QuestionID: text.ID, Value: domain.TextValue("lasagne")},
		{QuestionID: choice.ID, Value: domain.ChoiceValue("A")},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if answered.Status != domain.StatusAnswered {
		t.Fatalf("expected answered, got %s", answered.Status)
	}

	items, err := s.service.Answers(ctx, creator, game.ID)
	if err != nil {
		t.Fatalf("answers: %v", err)
	}
	if got, ok := items[3].Answer.Value.([]string); !ok || strings.Join(got, ",") != "Rome,Oslo" {
		t.Fatalf("expected multi choice to survive storage, got %#v", items[3].Answer.Value)
	}
	if _, err := s.service.MarkCorrectness(ctx, creator, items[1].Answer.ID, true); err != nil {
		t.Fatalf("mark boolean: %v", err)
	}
	if _, err := s.service.MarkCorrectness(ctx, creator, items[2].Answer.ID, false); err != nil {
		t.Fatalf("mark choice: %v", err)
	}
	card, err := s.service.Score(ctx, creator, game.ID)
	if err != nil || card.Correct != 1 || card.Total != 2 {
		t.Fatalf("expected score 1/2, got %+v (%v)", card, err)
	}

	code, err := s.service.EnsureAccessCode(ctx, creator, game.ID)
	if err != nil || code != published.AccessCode {
		t.Fatalf("expected stable access code, got %q (%v)", code, err)
	}

	if _, err := s.service.CompleteGame(ctx, creator, game.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	_, err = s.service.SaveGameDraft(ctx, interviewed, game.ID, app.AnswerInput{QuestionID: text.ID, Value: domain.TextValue("pizza")})
	if !errors.Is(err, domain.ErrPreconditionFailed) {
		t.Fatalf("expected precondition failure after completion, got %v", err)
	}
}

func TestRepositoryResolvesLatestRow(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)
	s := newStack(t, ctx)
	seedPlayingGame(t, ctx, s.repo, "game-lww")

	at := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	appendOne := func(id string, offset time.Duration) {
		t.Helper()
		row := domain.Answer{ID: id, QuestionID: "game-lww-q1", Value: domain.TextValue(id), Correctness: domain.Unmarked, CreatedAt: at.Add(offset)}
		if _, _, err := s.repo.AppendAnswers(ctx, "game-lww", []domain.Answer{row}, domain.StatusIs(domain.StatusPlaying), row.CreatedAt, nil); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}
	resolved := func() string {
		t.Helper()
		a, found, err := s.repo.ResolveAnswer(ctx, "game-lww-q1")
		if err != nil || !found {
			t.Fatalf("resolve: found=%v err=%v", found, err)
		}
		return a.ID
	}

	appendOne("a1", time.Minute)
	appendOne("a2", 3*time.Minute)
	appendOne("a3", 2*time.Minute)
	if got := resolved(); got != "a2" {
		t.Fatalf("expected a2, got %s", got)
	}
	appendOne("a4", 3*time.Minute)
	if got := resolved(); got != "a4" {
		t.Fatalf("expected tie to go to the later insert, got %s", got)
	}
	history, err := s.repo.AnswerHistory(ctx, "game-lww-q1")
	if err != nil || len(history) != 4 {
		t.Fatalf("expected four rows, got %d (%v)", len(history), err)
	}
}

func TestConcurrentSubmitCommitsOnce(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)
	s := newStack(t, ctx)
	seedPlayingGame(t, ctx, s.repo, "game-race")

	submit := domain.MoveStatus(domain.StatusPlaying, domain.StatusAnswered)
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			row := domain.Answer{
				ID:          fmt.Sprintf("race-%d", i),
				QuestionID:  "game-race-q1",
				Value:       domain.TextValue("x"),
				Correctness: domain.Unmarked,
				CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
			}
			if _, _, err := s.repo.AppendAnswers(ctx, "game-race", []domain.Answer{row}, submit, row.CreatedAt, nil); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if succeeded != 1 {
		t.Fatalf("expected exactly one commit, got %d", succeeded)
	}
	game, err := s.repo.GetGame(ctx, "game-race")
	if err != nil || game.Status != domain.StatusAnswered {
		t.Fatalf("expected answered, got %+v (%v)", game, err)
	}
}

func seedPlayingGame(t *testing.T, ctx context.Context, repo *postgres.Repository, id string) {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	game := domain.Game{
		ID:                 id,
		CreatorID:          creator.UserID,
		InterviewedPartner: domain.Partner{Email: interviewed.Email},
		Tier:               domain.TierNone,
		Status:             domain.StatusInCreation,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	questions := []domain.Question{{ID: id + "-q1", Text: "Why?", Type: domain.QuestionFreeText, OrderPosition: 1, CreatedAt: now}}
	if err := repo.CreateGame(ctx, game, questions); err != nil {
		t.Fatalf("create game: %v", err)
	}
	if _, err := repo.Publish(ctx, id, domain.TierBasic, strings.ToUpper(id), now); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, err := repo.UpdateStatus(ctx, id, domain.MoveStatus(domain.StatusReadyToPlay, domain.StatusPlaying), now); err != nil {
		t.Fatalf("start: %v", err)
	}
}

func newStack(t *testing.T, ctx context.Context) stack {
	t.Helper()
	pgURL, pgCleanup := startPostgres(t, ctx)
	t.Cleanup(pgCleanup)
	redisURL, redisCleanup := startRedis(t, ctx)
	t.Cleanup(redisCleanup)

	db := bun.NewDB(sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(pgURL))), pgdialect.New())
	t.Cleanup(func() { _ = db.Close() })
	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	t.Cleanup(pool.Close)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { _ = redisClient.Close() })

	repo := postgres.NewRepository(db)
	outbox := infraredis.NewInviteOutbox(redisClient)
	service := app.NewGameService(repo, memory.NewPaymentGateway(), outbox,
		app.WithQuestionSets(infraredis.NewQuestionSetCache(redisClient, postgres.NewQuestionLoader(pool), 5*time.Minute)),
	)
	return stack{service: service, repo: repo, outbox: outbox}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
