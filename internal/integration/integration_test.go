package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"freefall-server/internal/app"
	"freefall-server/internal/domain"
	"freefall-server/internal/infra/postgres"
	pgmigrations "freefall-server/internal/infra/postgres/migrations"
	infraredis "freefall-server/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestCuratedChallengeEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	applyMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	if err := postgres.NewQuestionSetLoader(pool).SaveQuestionSet(ctx, sampleSet()); err != nil {
		t.Fatalf("seed question set: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	questions := infraredis.NewQuestionSetRepository(redisClient, postgres.NewQuestionSetLoader(pool), 5*time.Minute)
	sessions := infraredis.NewSessionStore(redisClient, 5*time.Minute, nil)
	results := postgres.NewResultStore(pool)
	settings := app.DefaultSettings()
	settings.MaxQuestions = 1
	settings.ResolveDelay = 10 * time.Millisecond
	service, err := app.NewGameService(sessions, app.Options{Settings: settings, Questions: questions, Results: results})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	defer service.Close()

	snap, err := service.CreateChallenge(ctx, "host", domain.ModeSurvival)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.JoinTeam(ctx, "u1", snap.ChallengeID, "red"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := service.JoinTeam(ctx, "u2", snap.ChallengeID, "blue"); err != nil {
		t.Fatalf("join: %v", err)
	}
	started, err := service.StartChallenge(ctx, snap.ChallengeID, "set-1", domain.DifficultyNormal)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.TotalRounds != 1 {
		t.Fatalf("expected curated set with 1 round, got %d", started.TotalRounds)
	}

	// the only question is 2 + 2; answering it finishes survival for red
	ok, err := service.RecordAnswer(ctx, "u1", 4, 500, 0)
	if err != nil || !ok {
		t.Fatalf("answer: ok=%v err=%v", ok, err)
	}
	final, err := service.ChallengeSnapshot(snap.ChallengeID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if final.State != domain.ChallengeEnded || final.WinningTeamID != "red" {
		t.Fatalf("expected red to win, got %+v", final)
	}

	var count int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM game_results WHERE kind='challenge' AND subject_id=$1`, snap.ChallengeID).Scan(&count); err != nil {
		t.Fatalf("count results: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one stored challenge result, got %d", count)
	}

	// solo sessions persist their summary once the feedback delay of the last round elapsed
	solo, err := service.StartSession(ctx, "u3")
	if err != nil {
		t.Fatalf("start solo: %v", err)
	}
	if _, err := service.RecordAnswer(ctx, "u3", solo.CurrentCorrectAnswer, 300, 0); err != nil {
		t.Fatalf("solo answer: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		recent, err := results.RecentSessions(ctx, "u3", 5)
		if err != nil {
			t.Fatalf("recent sessions: %v", err)
		}
		if len(recent) == 1 {
			if recent[0].Score != settings.PointsPerCorrect || recent[0].QuestionsAnswered != 1 {
				t.Fatalf("unexpected stored session %+v", recent[0])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session result not stored, got %d rows", len(recent))
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "freefall", "POSTGRES_PASSWORD": "freefallpass", "POSTGRES_DB": "freefalldb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
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
	dsn := fmt.Sprintf("postgres://freefall:freefallpass@%s:%s/freefalldb?sslmode=disable", host, port.Port())
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

func applyMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func sampleSet() domain.QuestionSet {
	return domain.QuestionSet{
		ID:   "set-1",
		Name: "integration",
		Questions: []domain.Problem{
			{Operand1: 2, Operand2: 2, Operator: domain.OpAdd, CorrectAnswer: 4, DecoyAnswers: []int{3, 5, 6}},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
