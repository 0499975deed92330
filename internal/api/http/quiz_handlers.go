package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/studyhall/studyhall-backend/internal/quiz"
	"github.com/studyhall/studyhall-backend/internal/rbac"
)

// CreateQuizHandler handles POST /quizzes.
func CreateQuizHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in quiz.QuizInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, quiz.Invalid("bad json"))
			return
		}
		q, err := svc.CreateQuiz(r.Context(), in, rbac.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

// UpdateQuizHandler handles PUT /quizzes/{quizID}.
func UpdateQuizHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUID(w, chi.URLParam(r, "quizID"))
		if !ok {
			return
		}
		var in quiz.QuizInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, quiz.Invalid("bad json"))
			return
		}
		q, err := svc.UpdateQuiz(r.Context(), id, in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

// DeactivateQuizHandler handles DELETE /quizzes/{quizID}. The quiz is
// deactivated, never removed; past attempts stay reviewable.
func DeactivateQuizHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUID(w, chi.URLParam(r, "quizID"))
		if !ok {
			return
		}
		if err := svc.DeactivateQuiz(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GetQuizHandler handles GET /quizzes/{quizID}. Correctness flags are
// stripped unless the caller may manage quizzes.
func GetQuizHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUID(w, chi.URLParam(r, "quizID"))
		if !ok {
			return
		}
		detail, err := svc.GetQuiz(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		detail.Questions = quiz.MaskQuestions(detail.Questions, rbac.Can(r.Context(), "quiz:manage"))
		writeJSON(w, http.StatusOK, detail)
	}
}
