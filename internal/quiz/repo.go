package quiz

import (
	"context"

	"github.com/google/uuid"
)

type AttemptListOpts struct {
	QuizID uuid.UUID
	UserID string // empty: all users (management view)
	Status string // optional: in_progress|completed
	Limit  int
	Offset int
}

// Stats is the per-quiz aggregate over submitted attempts only.
type Stats struct {
	Attempts       int      `json:"attempts"`
	AveragePercent float64  `json:"average_percent"`
	SuccessRate    float64  `json:"success_rate"`
	BestAttempt    *Attempt `json:"best_attempt,omitempty"`
}

// Store is the persistence boundary. Implementations must keep
// FinalizeAttempt atomic: the status flip, the score write and the
// ledger rows commit together or not at all.
type Store interface {
	CreateQuiz(ctx context.Context, q Quiz) error
	UpdateQuiz(ctx context.Context, q Quiz) error
	DeactivateQuiz(ctx context.Context, id uuid.UUID) error
	// GetQuiz returns the quiz regardless of active flag; callers decide.
	GetQuiz(ctx context.Context, id uuid.UUID) (Quiz, error)

	CreateQuestion(ctx context.Context, q Question) error
	UpdateQuestion(ctx context.Context, q Question) error
	SoftDeleteQuestion(ctx context.Context, quizID, questionID uuid.UUID) error
	// EligibleQuestions returns active, non-deleted questions with their
	// non-deleted options, correctness included (ground truth).
	EligibleQuestions(ctx context.Context, quizID uuid.UUID) ([]Question, error)
	// QuestionsByID resolves the given ids in the given order, correctness
	// included, regardless of current active flags (an open attempt keeps
	// its served set).
	QuestionsByID(ctx context.Context, quizID uuid.UUID, ids []uuid.UUID) ([]Question, error)

	// OpenAttempt returns the caller's most recent open attempt for the
	// quiz, if any.
	OpenAttempt(ctx context.Context, quizID uuid.UUID, userID string) (Attempt, bool, error)
	// CreateAttempt inserts the attempt while enforcing the open-attempt
	// cap inside the same transaction.
	CreateAttempt(ctx context.Context, a Attempt, maxOpen int) error
	// GetAttempt scopes by quiz and owner; any mismatch is ErrAttemptNotFound.
	GetAttempt(ctx context.Context, quizID, attemptID uuid.UUID, userID string) (Attempt, error)
	// FinalizeAttempt flips the attempt to completed and appends the
	// ledger rows in one transaction. Returns ErrAlreadySubmit if the
	// attempt was already closed.
	FinalizeAttempt(ctx context.Context, a Attempt, records []AnswerRecord) error
	AnswerRecords(ctx context.Context, attemptID uuid.UUID) ([]AnswerRecord, error)
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)

	// QuizStats aggregates submitted attempts; BestAttempt is filled only
	// when userID is non-empty.
	QuizStats(ctx context.Context, quizID uuid.UUID, userID string) (Stats, error)
}
