package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"quizhive/internal/config"
	"quizhive/internal/domain"
	"quizhive/internal/filter"
	"quizhive/internal/game"
	"quizhive/internal/infra/memory"
	pgloader "quizhive/internal/infra/postgres"
	infraredis "quizhive/internal/infra/redis"
	transport "quizhive/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	zerolog.TimeFieldFormat = time.RFC3339
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuestionSetLoader = memory.NewStaticLoader(sampleQuestionSets())
	if pool != nil {
		loader = pgloader.NewQuestionSetLoader(pool)
	}

	quizTTL := config.Duration(cfg.Quiz.TTL, 10*time.Minute)
	var setRepo transport.QuestionSetRepository
	if redisClient != nil {
		setRepo = infraredis.NewQuestionSetRepository(redisClient, loader, quizTTL)
	} else {
		setRepo = memory.NewQuestionSetRepository(loader, quizTTL)
	}

	var presence game.Presence
	if redisClient != nil {
		presence = infraredis.NewPresence(redisClient, config.Duration(cfg.Redis.TTL, time.Hour))
	}

	nameFilter := filter.NewBasic(cfg.Game.BlockedNames)
	registry := game.NewRegistry(game.RegistryConfig{
		CodeLength: cfg.Game.CodeLength,
		SessionDefaults: game.Config{
			MaxPlayers:       cfg.Game.MaxPlayers,
			RevealPause:      config.Duration(cfg.Game.RevealPause, 5*time.Second),
			HostGrace:        config.Duration(cfg.Game.HostGrace, 30*time.Second),
			DefaultTimeLimit: config.Duration(cfg.Game.TimeLimit, 20*time.Second),
			BasePoints:       cfg.Game.BasePoints,
			FilterName:       nameFilter.Filter,
		},
		Presence: presence,
		Logger:   log,
	})

	images := memory.NewImageStore()
	wsHandler := transport.NewWSHandler(registry, log)
	apiHandler := transport.NewAPIHandler(registry, setRepo, images, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("/sessions", apiHandler.CreateSession)
	mux.HandleFunc("/images", apiHandler.UploadImage)
	mux.HandleFunc("/images/", apiHandler.ServeImage)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting quizhive")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server...")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestionSets seeds a demo set when no Postgres is configured.
func sampleQuestionSets() map[string]domain.QuestionSet {
	return map[string]domain.QuestionSet{
		"demo": {
			ID:    "demo",
			Title: "Demo quiz",
			Questions: []domain.Question{
				{
					Kind:         domain.SingleChoice,
					Title:        "Warmup",
					Prompt:       "What is 2 + 2?",
					Options:      []string{"3", "4", "5", "22"},
					Correct:      []int{1},
					TimeLimitSec: 20,
					Mode:         domain.ScoringStandard,
					Points:       1000,
				},
				{
					Kind:         domain.MultipleChoice,
					Title:        "Primes",
					Prompt:       "Select all prime numbers",
					Options:      []string{"2", "4", "5", "9"},
					Correct:      []int{0, 2},
					TimeLimitSec: 25,
					Mode:         domain.ScoringStandard,
					Points:       1000,
				},
			},
		},
	}
}
