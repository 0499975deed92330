package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	api "github.com/studyhall/studyhall-backend/internal/api/http"
	"github.com/studyhall/studyhall-backend/internal/audit"
	auth "github.com/studyhall/studyhall-backend/internal/auth/middleware"
	"github.com/studyhall/studyhall-backend/internal/config"
	"github.com/studyhall/studyhall-backend/internal/db"
	"github.com/studyhall/studyhall-backend/internal/quiz"
	"github.com/studyhall/studyhall-backend/internal/rbac"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	if err := seedAdmin(ctx, dbh, cfg); err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	store := quiz.NewSQLStore(dbh, cfg.DBDriver)
	events := audit.NewEventRepo(dbh)
	svc := quiz.NewService(store,
		quiz.WithMaxOpenAttempts(cfg.MaxOpenAttempts),
		quiz.WithAuditLog(events),
	)

	authSvc := auth.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))

	// Protected API (JWT → subject+role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		// Quiz management (teacher/admin)
		pr.With(rbac.Require("quiz:manage")).
			Post("/quizzes", api.CreateQuizHandler(svc))
		pr.With(rbac.Require("quiz:manage")).
			Put("/quizzes/{quizID}", api.UpdateQuizHandler(svc))
		pr.With(rbac.Require("quiz:manage")).
			Delete("/quizzes/{quizID}", api.DeactivateQuizHandler(svc))
		pr.With(rbac.Require("quiz:manage")).
			Post("/quizzes/{quizID}/questions", api.AddQuestionHandler(svc))
		pr.With(rbac.Require("quiz:manage")).
			Put("/quizzes/{quizID}/questions/{questionID}", api.UpdateQuestionHandler(svc))
		pr.With(rbac.Require("quiz:manage")).
			Delete("/quizzes/{quizID}/questions/{questionID}", api.DeleteQuestionHandler(svc))

		// Quiz view (masked for students inside the handler)
		pr.With(rbac.Require("quiz:view")).
			Get("/quizzes/{quizID}", api.GetQuizHandler(svc))
		pr.With(rbac.Require("quiz:view")).
			Get("/quizzes/{quizID}/stats", api.QuizStatsHandler(svc))

		// Attempt flow (owner-scoped)
		pr.With(rbac.Require("attempt:create")).
			Post("/quizzes/{quizID}/attempts", api.StartAttemptHandler(svc))
		pr.With(rbac.Require("attempt:submit")).
			Post("/quizzes/{quizID}/attempts/{attemptID}/submit", api.SubmitAttemptHandler(svc))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/quizzes/{quizID}/attempts", api.ListAttemptsHandler(svc))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/quizzes/{quizID}/attempts/{attemptID}", api.GetAttemptHandler(svc))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/quizzes/{quizID}/attempts/{attemptID}/review", api.ReviewAttemptHandler(svc))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	log.Printf("listening on %s (db=%s)", cfg.HTTPAddr, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}

// seedAdmin makes sure a bootstrap admin exists so a fresh database is
// usable without manual SQL.
func seedAdmin(ctx context.Context, dbh *sql.DB, cfg config.Config) error {
	_, err := dbh.ExecContext(ctx,
		`INSERT INTO users (id, username, pass_hash, role) VALUES ($1, $2, $3, 'admin')
		 ON CONFLICT (username) DO NOTHING`,
		uuid.NewString(), cfg.AdminUser, cfg.AdminPassHash)
	return err
}
