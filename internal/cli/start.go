package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"freefall-server/internal/app"
	"freefall-server/internal/clock"
	"freefall-server/internal/config"
	"freefall-server/internal/domain"
	"freefall-server/internal/effects"
	"freefall-server/internal/infra/memory"
	"freefall-server/internal/infra/postgres"
	redisinfra "freefall-server/internal/infra/redis"
	"freefall-server/internal/infra/sqlite"
	"freefall-server/internal/logger"
	"freefall-server/internal/metrics"
	transport "freefall-server/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if *port != "" {
				cfg.Server.Port = *port
			}
			return runServer(cmd.Context(), cfg)
		},
	}
}

func runServer(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.New("freefall", cfg.Log.Level, nil)

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, logger.Component(log, "migrate")); err != nil {
			return err
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuestionSetLoader = memory.NewStaticQuestionSetLoader(sampleQuestionSets())
	if pool != nil {
		loader = postgres.NewQuestionSetLoader(pool)
	}

	setTTL := config.TTLDuration(cfg.QuestionSets.TTL, 10*time.Minute)
	var questions app.QuestionSetRepository
	if redisClient != nil {
		questions = redisinfra.NewQuestionSetRepository(redisClient, loader, setTTL)
	} else {
		questions = memory.NewQuestionSetRepository(loader, setTTL)
	}

	var store app.SessionRepository
	if redisClient != nil {
		store = redisinfra.NewSessionStore(redisClient, redisTTL, log)
	} else {
		store = memory.NewSessionStore()
	}

	var results app.ResultRecorder = app.NopRecorder{}
	switch {
	case pool != nil:
		results = postgres.NewResultStore(pool)
	case cfg.SQLite.Path != "":
		db, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return err
		}
		defer db.Close()
		results = db
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	generator, err := newGenerator(cfg)
	if err != nil {
		return err
	}

	hub := transport.NewHub(log)
	registry := effects.NewRegistry(clock.Real(), config.TTLDuration(cfg.Effects.SweepInterval, effects.DefaultSweepInterval), log)
	service, err := app.NewGameService(store, app.Options{
		Settings:  gameSettings(cfg),
		Clock:     clock.Real(),
		Generator: generator,
		Presenter: hub,
		Results:   results,
		Questions: questions,
		Registry:  registry,
		Durations: cfg.PowerUpDurations(),
		Metrics:   m,
		Logger:    log,
	})
	if err != nil {
		return err
	}
	defer service.Close()

	wsHandler := transport.NewWSHandler(service, hub, transport.NewAuthenticator(cfg.Auth.JWTSecret), log)
	server := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     transport.NewRouter(service, wsHandler, reg),
		ReadTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("port", cfg.Server.Port).Info("starting freefall server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return registry.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// sampleQuestionSets seeds a curated set when no database is configured.
func sampleQuestionSets() map[string]domain.QuestionSet {
	return map[string]domain.QuestionSet{
		"warmup": {
			ID:   "warmup",
			Name: "Warm-up",
			Questions: []domain.Problem{
				{Operand1: 2, Operand2: 3, Operator: domain.OpAdd, CorrectAnswer: 5, DecoyAnswers: []int{4, 6, 7}},
				{Operand1: 9, Operand2: 4, Operator: domain.OpSubtract, CorrectAnswer: 5, DecoyAnswers: []int{3, 6, 13}},
				{Operand1: 3, Operand2: 4, Operator: domain.OpMultiply, CorrectAnswer: 12, DecoyAnswers: []int{7, 10, 14}},
				{Operand1: 12, Operand2: 3, Operator: domain.OpDivide, CorrectAnswer: 4, DecoyAnswers: []int{3, 5, 6}},
			},
		},
	}
}
