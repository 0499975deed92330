package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/studyhall/studyhall-backend/internal/quiz"
)

// AddQuestionHandler handles POST /quizzes/{quizID}/questions.
func AddQuestionHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID, ok := parseUUID(w, chi.URLParam(r, "quizID"))
		if !ok {
			return
		}
		var in quiz.QuestionInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, quiz.Invalid("bad json"))
			return
		}
		q, err := svc.AddQuestion(r.Context(), quizID, in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

// UpdateQuestionHandler handles PUT /quizzes/{quizID}/questions/{questionID}.
func UpdateQuestionHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID, ok := parseUUID(w, chi.URLParam(r, "quizID"))
		if !ok {
			return
		}
		questionID, ok := parseUUID(w, chi.URLParam(r, "questionID"))
		if !ok {
			return
		}
		var in quiz.QuestionInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, quiz.Invalid("bad json"))
			return
		}
		q, err := svc.UpdateQuestion(r.Context(), quizID, questionID, in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

// DeleteQuestionHandler handles DELETE /quizzes/{quizID}/questions/{questionID}.
// Soft delete: open attempts that already sampled the question keep it.
func DeleteQuestionHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID, ok := parseUUID(w, chi.URLParam(r, "quizID"))
		if !ok {
			return
		}
		questionID, ok := parseUUID(w, chi.URLParam(r, "questionID"))
		if !ok {
			return
		}
		if err := svc.DeleteQuestion(r.Context(), quizID, questionID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
