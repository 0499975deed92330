package quiz

import (
	"time"

	"github.com/google/uuid"
)

type QuestionType string

const (
	QuestionSingle    QuestionType = "single"
	QuestionMulti     QuestionType = "multi"
	QuestionTrueFalse QuestionType = "true_false"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionSingle, QuestionMulti, QuestionTrueFalse:
		return true
	}
	return false
}

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptExpired    AttemptStatus = "expired"
)

// Quiz is a named assessment bound to one topic tag. Quizzes are
// deactivated, never hard-deleted.
type Quiz struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	DurationMin  int       `json:"duration_min"`
	PassingScore int       `json:"passing_score"` // percent threshold
	Active       bool      `json:"active"`
	TopicTagID   uuid.UUID `json:"topic_tag_id"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Option correctness is a pointer so the visibility filter can strip it
// from responses served to non-managing callers.
type Option struct {
	ID         uuid.UUID `json:"id"`
	QuestionID uuid.UUID `json:"question_id"`
	Text       string    `json:"text"`
	IsCorrect  *bool     `json:"is_correct,omitempty"`
	Position   int       `json:"position"`
}

type Question struct {
	ID          uuid.UUID    `json:"id"`
	QuizID      uuid.UUID    `json:"quiz_id"`
	Type        QuestionType `json:"type"`
	Prompt      string       `json:"prompt"`
	Explanation string       `json:"explanation,omitempty"`
	Difficulty  string       `json:"difficulty,omitempty"`
	Position    int          `json:"position"`
	Active      bool         `json:"active"`
	Options     []Option     `json:"options,omitempty"`
}

// CorrectOptionIDs returns the ids of the correct, non-deleted options.
func (q Question) CorrectOptionIDs() []string {
	var out []string
	for _, o := range q.Options {
		if o.IsCorrect != nil && *o.IsCorrect {
			out = append(out, o.ID.String())
		}
	}
	return out
}

// Attempt is one learner's timed session against one quiz. Attempts are
// permanent audit records. DurationMin and PassingScore are snapshots
// taken at start; later quiz edits do not change an open attempt's rules.
type Attempt struct {
	ID           uuid.UUID     `json:"id"`
	QuizID       uuid.UUID     `json:"quiz_id"`
	UserID       string        `json:"user_id"`
	StartedAt    time.Time     `json:"started_at"`
	ExpiresAt    time.Time     `json:"expires_at"`
	SubmittedAt  *time.Time    `json:"submitted_at,omitempty"`
	PassingScore int           `json:"passing_score"`
	QuestionIDs  []uuid.UUID   `json:"question_ids"` // served order snapshot
	RawCorrect   int           `json:"raw_correct"`
	Points       float64       `json:"points"`
	Percent      int           `json:"percent"`
	Passed       bool          `json:"passed"`
	Status       AttemptStatus `json:"status"`
}

func (a Attempt) Open() bool { return a.SubmittedAt == nil }

// EffectiveStatus reports expired for open attempts past their deadline.
// Expiry is a computed predicate, not a stored transition; the row may
// stay in_progress in storage indefinitely.
func (a Attempt) EffectiveStatus(now time.Time) AttemptStatus {
	if a.Open() && now.After(a.ExpiresAt) {
		return AttemptExpired
	}
	return a.Status
}

// AnswerRecord is one append-only ledger row per chosen option, carrying
// the correctness seen at submission time. Never updated or deleted.
type AnswerRecord struct {
	AttemptID  uuid.UUID `json:"attempt_id"`
	QuestionID uuid.UUID `json:"question_id"`
	OptionID   uuid.UUID `json:"option_id"`
	IsCorrect  bool      `json:"is_correct"`
	CreatedAt  time.Time `json:"created_at"`
}
