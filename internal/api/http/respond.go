package http

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/studyhall/studyhall-backend/internal/quiz"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy to HTTP statuses. Anything outside
// the taxonomy is logged and served as an opaque internal_error; storage
// detail never reaches the caller.
func writeError(w http.ResponseWriter, err error) {
	kind := quiz.KindOf(err)
	status := http.StatusInternalServerError
	body := map[string]string{"error": string(kind)}
	switch kind {
	case quiz.KindQuizNotFound, quiz.KindAttemptNotFound:
		status = http.StatusNotFound
	case quiz.KindAlreadySubmit, quiz.KindNoQuestions:
		status = http.StatusConflict
	case quiz.KindTooManyAttempts:
		status = http.StatusTooManyRequests
	case quiz.KindValidation:
		status = http.StatusBadRequest
		body["detail"] = err.Error()
	default:
		log.Printf("internal error: %v", err)
	}
	writeJSON(w, status, body)
}

func parseUUID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, quiz.Invalid("malformed id"))
		return uuid.UUID{}, false
	}
	return id, true
}

func parseIntDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
