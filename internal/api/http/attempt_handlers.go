package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/studyhall/studyhall-backend/internal/quiz"
	"github.com/studyhall/studyhall-backend/internal/rbac"
)

// StartAttemptHandler handles POST /quizzes/{quizID}/attempts. Starting
// is idempotent per open attempt: a second start resumes it (reused=true)
// with 200 instead of 201. Correctness is stripped unless the caller may
// manage quizzes, same as the quiz read surface.
func StartAttemptHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID, ok := parseUUID(w, chi.URLParam(r, "quizID"))
		if !ok {
			return
		}
		var req struct {
			QuestionCount  int  `json:"question_count"`
			ShuffleOptions bool `json:"shuffle_options"`
		}
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, quiz.Invalid("bad json"))
				return
			}
		}
		res, err := svc.StartAttempt(r.Context(), quizID,
			rbac.SubjectFromContext(r.Context()), req.QuestionCount, req.ShuffleOptions)
		if err != nil {
			writeError(w, err)
			return
		}
		res.Questions = quiz.MaskQuestions(res.Questions, rbac.Can(r.Context(), "quiz:manage"))
		status := http.StatusCreated
		if res.Reused {
			status = http.StatusOK
		}
		writeJSON(w, status, res)
	}
}

// SubmitAttemptHandler handles POST /quizzes/{quizID}/attempts/{attemptID}/submit.
func SubmitAttemptHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID, ok := parseUUID(w, chi.URLParam(r, "quizID"))
		if !ok {
			return
		}
		attemptID, ok := parseUUID(w, chi.URLParam(r, "attemptID"))
		if !ok {
			return
		}
		var req struct {
			Answers []quiz.AnswerInput `json:"answers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, quiz.Invalid("bad json"))
			return
		}
		res, err := svc.SubmitAttempt(r.Context(), quizID, attemptID,
			rbac.SubjectFromContext(r.Context()), req.Answers)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// GetAttemptHandler handles GET /quizzes/{quizID}/attempts/{attemptID}.
// Owner-scoped; chosen options come back without correctness.
func GetAttemptHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID, ok := parseUUID(w, chi.URLParam(r, "quizID"))
		if !ok {
			return
		}
		attemptID, ok := parseUUID(w, chi.URLParam(r, "attemptID"))
		if !ok {
			return
		}
		detail, err := svc.GetAttempt(r.Context(), quizID, attemptID,
			rbac.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

// ReviewAttemptHandler handles GET /quizzes/{quizID}/attempts/{attemptID}/review.
// Available to the owner once the attempt is closed; correctness revealed.
func ReviewAttemptHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID, ok := parseUUID(w, chi.URLParam(r, "quizID"))
		if !ok {
			return
		}
		attemptID, ok := parseUUID(w, chi.URLParam(r, "attemptID"))
		if !ok {
			return
		}
		res, err := svc.ReviewAttempt(r.Context(), quizID, attemptID,
			rbac.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// ListAttemptsHandler handles GET /quizzes/{quizID}/attempts. Callers
// without attempt:view-all are pinned to their own attempts regardless
// of the user query parameter.
func ListAttemptsHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID, ok := parseUUID(w, chi.URLParam(r, "quizID"))
		if !ok {
			return
		}
		opts := quiz.AttemptListOpts{
			QuizID: quizID,
			UserID: r.URL.Query().Get("user"),
			Status: r.URL.Query().Get("status"),
			Limit:  parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset: parseIntDefault(r.URL.Query().Get("offset"), 0),
		}
		if !rbac.Can(r.Context(), "attempt:view-all") {
			opts.UserID = rbac.SubjectFromContext(r.Context())
		}
		attempts, err := svc.ListAttempts(r.Context(), opts)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"attempts": attempts})
	}
}
