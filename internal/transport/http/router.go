package http

import (
	"net/http"
	"time"

	"campus-portal-service/internal/app"
	"campus-portal-service/internal/auth"
	"campus-portal-service/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter mounts the REST and websocket surfaces.
func NewRouter(quizzes *app.QuizService, attendance *app.AttendanceService, authSvc *auth.Service, origins []string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Post("/auth/login", LoginHandler(authSvc))

	quizWS := NewQuizWSHandler(quizzes, origins)
	qrWS := NewQRWSHandler(attendance, origins)
	api := &AttendanceHandler{service: attendance}

	r.Group(func(pr chi.Router) {
		pr.Use(auth.Middleware(authSvc))

		pr.Get("/ws/quiz", quizWS.ServeWS)

		pr.Group(func(lr chi.Router) {
			lr.Use(auth.RequireRole(domain.RoleLecturer))
			lr.Get("/ws/courses/{courseID}/qr", qrWS.ServeWS)
			lr.Route("/api/courses/{courseID}", func(cr chi.Router) {
				cr.Use(middleware.Timeout(30 * time.Second))
				cr.Post("/qr-tokens", api.IssueToken)
				cr.Post("/qr/refresh", api.RefreshDisplay)
				cr.Get("/qr.png", api.DisplayPNG)
				cr.Get("/attendance", api.List)
			})
		})

		pr.Group(func(sr chi.Router) {
			sr.Use(auth.RequireRole(domain.RoleStudent))
			sr.Use(middleware.Timeout(30 * time.Second))
			sr.Post("/api/attendance/check-in", api.CheckIn)
		})
	})
	return r
}

// LoginHandler exchanges username and password for an access token.
// POST /auth/login  { "username": "...", "password": "..." }
func LoginHandler(a *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := decodeJSON(r, &req); err != nil {
			respondJSON(w, http.StatusBadRequest, errorPayload{Message: "bad json"})
			return
		}
		token, user, err := a.Login(req.Username, req.Password)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{
			"access_token": token,
			"role":         string(user.Role),
		})
	}
}
