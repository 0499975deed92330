package quiz

import "errors"

// Kind is the closed vocabulary callers branch on. Anything outside it
// is surfaced as KindInternal without storage detail.
type Kind string

const (
	KindQuizNotFound    Kind = "quiz_not_found"
	KindAttemptNotFound Kind = "attempt_not_found"
	KindAlreadySubmit   Kind = "already_submitted"
	KindTooManyAttempts Kind = "too_many_active_attempts"
	KindNoQuestions     Kind = "no_questions"
	KindValidation      Kind = "validation_error"
	KindInternal        Kind = "internal_error"
)

type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return string(e.Kind) + ": " + e.Msg
	}
	return string(e.Kind)
}

var (
	ErrQuizNotFound = &Error{Kind: KindQuizNotFound, Msg: "quiz not found"}
	// Missing attempt, wrong owner and wrong quiz association all collapse
	// here so callers cannot probe for existence.
	ErrAttemptNotFound = &Error{Kind: KindAttemptNotFound, Msg: "attempt not found"}
	ErrAlreadySubmit   = &Error{Kind: KindAlreadySubmit, Msg: "attempt already submitted"}
	ErrTooManyAttempts = &Error{Kind: KindTooManyAttempts, Msg: "too many active attempts"}
	ErrNoQuestions     = &Error{Kind: KindNoQuestions, Msg: "quiz has no eligible questions"}
)

// Invalid builds a validation_error with a caller-facing message.
func Invalid(msg string) *Error { return &Error{Kind: KindValidation, Msg: msg} }

// KindOf classifies any error into the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
