package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"campus-portal-service/internal/app"
	"campus-portal-service/internal/cli"
	"campus-portal-service/internal/domain"
	pgstore "campus-portal-service/internal/infra/postgres"
	infraredis "campus-portal-service/internal/infra/redis"
	"campus-portal-service/internal/qrtoken"
	"campus-portal-service/internal/securestore"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestQuizAndAttendanceEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	if err := cli.Migrate(ctx, pgURL); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := pgstore.NewQuizLoader(pool)
	if err := loader.SaveQuiz(ctx, sampleQuiz()); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	quizRepo := infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute)
	sessions := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	store := securestore.New(infraredis.NewKVStore(redisClient, "", time.Hour))
	quizzes := app.NewQuizService(sessions, quizRepo, store)

	engine, err := quizzes.Open(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	engine.HandleAnswer("o2")
	quizzes.Close("quiz-1", "u1")

	resumed, err := quizzes.Open(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer quizzes.Close("quiz-1", "u1")
	if got := resumed.State().Answers[0]; got != "o2" {
		t.Fatalf("expected answer restored from redis, got %q", got)
	}

	signer, err := qrtoken.NewSigner("integration-secret")
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	attendance := app.NewAttendanceService(signer, pgstore.NewAttendanceStore(pool), infraredis.NewReplay(redisClient, ""))
	defer attendance.Shutdown()

	_, token, err := attendance.IssueToken(ctx, "CS101")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := attendance.CheckIn(ctx, token, "CS101", "alice"); err != nil {
		t.Fatalf("check in: %v", err)
	}
	if _, err := attendance.CheckIn(ctx, token, "CS101", "alice"); !errors.Is(err, domain.ErrAlreadyRecorded) {
		t.Fatalf("expected replay rejected, got %v", err)
	}
	records, err := attendance.List(ctx, "CS101")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].StudentID != "alice" {
		t.Fatalf("unexpected records %+v", records)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "portal", "POSTGRES_PASSWORD": "portalpass", "POSTGRES_DB": "portaldb"},
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
	dsn := fmt.Sprintf("postgres://portal:portalpass@%s:%s/portaldb?sslmode=disable", host, port.Port())
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

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID: "quiz-1",
		Questions: []domain.Question{
			{
				ID:   "q1",
				Text: "What is 2 + 2?",
				Options: []domain.Option{
					{ID: "o1", Text: "3"},
					{ID: "o2", Text: "4"},
					{ID: "o3", Text: "5"},
				},
				CorrectAnswer: "o2",
			},
		},
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
