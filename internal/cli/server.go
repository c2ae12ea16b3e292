package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campus-portal-service/internal/app"
	"campus-portal-service/internal/config"
	"campus-portal-service/internal/domain"
	"campus-portal-service/internal/infra/memory"
	pgstore "campus-portal-service/internal/infra/postgres"
	redisinfra "campus-portal-service/internal/infra/redis"
	"campus-portal-service/internal/securestore"
	transport "campus-portal-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP and websocket server",
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

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
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
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes()...)
	if pool != nil {
		loader = pgstore.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var sessions app.SessionRepository
	var backend securestore.Backend
	var replay app.ReplayGuard
	if redisClient != nil {
		sessions = redisinfra.NewSessionStore(redisClient, redisTTL)
		backend = redisinfra.NewKVStore(redisClient, "", 2*config.TTLDuration(cfg.Quiz.StoreExpiration, securestore.DefaultExpiration))
		replay = redisinfra.NewReplay(redisClient, "")
	} else {
		sessions = memory.NewSessionStore()
		backend = memory.NewKVStore()
		replay = memory.NewReplay(nil, 0)
	}

	store := securestore.New(backend,
		securestore.WithExpiration(config.TTLDuration(cfg.Quiz.StoreExpiration, securestore.DefaultExpiration)),
	)
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go store.RunSweeper(sweepCtx, config.TTLDuration(cfg.Quiz.SweepInterval, securestore.DefaultSweepInterval))

	questionSeconds := cfg.Quiz.QuestionSeconds
	if questionSeconds <= 0 {
		questionSeconds = domain.DefaultQuestionSeconds
	}
	quizzes := app.NewQuizService(sessions, quizRepo, store, app.WithQuestionSeconds(questionSeconds))
	defer quizzes.Shutdown()

	signer, err := newSigner(cfg)
	if err != nil {
		return err
	}
	recorder, closeRecorder, err := newRecorder(ctx, cfg, pool)
	if err != nil {
		return err
	}
	defer closeRecorder()
	attendance := app.NewAttendanceService(signer, recorder, replay,
		app.WithRefreshInterval(config.TTLDuration(cfg.Attendance.RefreshInterval, signer.Validity())),
		app.WithReplaySlack(config.TTLDuration(cfg.Attendance.ReplayTTL, time.Minute)),
	)
	defer attendance.Shutdown()

	authSvc, err := newAuthService(cfg)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           transport.NewRouter(quizzes, attendance, authSvc, cfg.CORS.Origins),
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting campus portal service on :%s", finalPort)
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
