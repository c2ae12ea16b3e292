package cli

import (
	"context"
	"fmt"

	"campus-portal-service/internal/app"
	"campus-portal-service/internal/auth"
	"campus-portal-service/internal/config"
	"campus-portal-service/internal/domain"
	"campus-portal-service/internal/infra/memory"
	pgstore "campus-portal-service/internal/infra/postgres"
	"campus-portal-service/internal/infra/remote"
	"campus-portal-service/internal/infra/sqlite"
	"campus-portal-service/internal/qrtoken"
	"github.com/jackc/pgx/v4/pgxpool"
)

func newSigner(cfg config.Config) (*qrtoken.Signer, error) {
	if cfg.Attendance.Secret == "" {
		return nil, fmt.Errorf("%w: attendance secret not configured (set QR_SECRET)", domain.ErrSigningFailed)
	}
	return qrtoken.NewSigner(cfg.Attendance.Secret,
		qrtoken.WithValidity(config.TTLDuration(cfg.Attendance.Validity, qrtoken.DefaultValidity)),
	)
}

// newRecorder picks where attendance records go: a remote endpoint, Postgres,
// SQLite, or process memory, in that order of preference.
func newRecorder(ctx context.Context, cfg config.Config, pool *pgxpool.Pool) (app.Recorder, func(), error) {
	switch {
	case cfg.Attendance.RecordURL != "":
		var opts []remote.Option
		if cfg.Attendance.Retries != nil {
			opts = append(opts, remote.WithRetries(*cfg.Attendance.Retries))
		}
		return remote.NewForwarder(cfg.Attendance.RecordURL, opts...), func() {}, nil
	case pool != nil:
		return pgstore.NewAttendanceStore(pool), func() {}, nil
	case cfg.SQLite.DSN != "":
		store, err := sqlite.Open(ctx, cfg.SQLite.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return memory.NewAttendanceStore(), func() {}, nil
	}
}

func newAuthService(cfg config.Config) (*auth.Service, error) {
	users := make([]auth.User, 0, len(cfg.Auth.Users))
	for _, u := range cfg.Auth.Users {
		role := domain.Role(u.Role)
		if role != domain.RoleLecturer && role != domain.RoleStudent {
			return nil, fmt.Errorf("user %q: unknown role %q", u.Username, u.Role)
		}
		users = append(users, auth.User{Username: u.Username, PasswordHash: u.PasswordHash, Role: role})
	}
	return auth.NewService(cfg.Auth.Secret,
		auth.WithTTL(config.TTLDuration(cfg.Auth.TokenTTL, auth.DefaultTokenTTL)),
		auth.WithUsers(users...),
	)
}

// sampleQuizzes seeds the static loader when no database is configured.
func sampleQuizzes() []domain.Quiz {
	return []domain.Quiz{
		{
			ID:    "quiz-1",
			Title: "Warm-up",
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
				{
					ID:   "q2",
					Text: "Which HTTP method is idempotent?",
					Options: []domain.Option{
						{ID: "o1", Text: "POST"},
						{ID: "o2", Text: "PUT"},
						{ID: "o3", Text: "PATCH"},
					},
					CorrectAnswer: "o2",
				},
			},
		},
	}
}
