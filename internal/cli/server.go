package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"partner-quiz-service/internal/app"
	"partner-quiz-service/internal/config"
	"partner-quiz-service/internal/infra/memory"
	"partner-quiz-service/internal/infra/postgres"
	infraredis "partner-quiz-service/internal/infra/redis"
	transport "partner-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret not configured")
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	service, cleanup, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	router := transport.NewRouter(transport.NewHandler(service), cfg.Auth.JWTSecret)
	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting partner quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildService picks Postgres and Redis adapters when they are configured
// and falls back to in-memory ones otherwise.
func buildService(ctx context.Context, cfg config.Config) (*app.GameService, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var (
		games  app.GameRepository
		loader memory.QuestionLoader
	)
	if cfg.Postgres.URL != "" {
		db := openBun(cfg.Postgres.URL)
		closers = append(closers, func() { _ = db.Close() })
		if err := migrateDB(ctx, db); err != nil {
			cleanup()
			return nil, nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, pool.Close)
		games = postgres.NewRepository(db)
		loader = postgres.NewQuestionLoader(pool)
	} else {
		log.Printf("postgres url not configured, keeping games in memory")
		store := memory.NewStore()
		games = store
		loader = store
	}

	cacheTTL := config.TTLDuration(cfg.Game.QuestionCacheTTL, 10*time.Minute)
	var (
		questionSets app.QuestionSetSource
		notifier     app.Notifier
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = client.Close() })
		questionSets = infraredis.NewQuestionSetCache(client, loader, config.TTLDuration(cfg.Redis.TTL, cacheTTL))
		notifier = infraredis.NewInviteOutbox(client)
	} else {
		questionSets = memory.NewQuestionSetCache(loader, cacheTTL)
		notifier = memory.NewInviteOutbox()
	}

	log.Printf("no payment gateway configured, publishing approves every charge")
	service := app.NewGameService(games, memory.NewPaymentGateway(), notifier,
		app.WithQuestionSets(questionSets),
		app.WithPrices(cfg.Game.Prices.Basic, cfg.Game.Prices.Premium),
		app.WithAccessCodeLength(cfg.Game.AccessCodeLength),
		app.WithInviteBaseURL(cfg.Game.InviteBaseURL),
	)
	return service, cleanup, nil
}
