package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/studyhall/studyhall-backend/internal/quiz"
	"github.com/studyhall/studyhall-backend/internal/rbac"
)

// QuizStatsHandler handles GET /quizzes/{quizID}/stats. Aggregates cover
// submitted attempts only; the personal best is the caller's own.
func QuizStatsHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID, ok := parseUUID(w, chi.URLParam(r, "quizID"))
		if !ok {
			return
		}
		stats, err := svc.QuizStats(r.Context(), quizID, rbac.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}
