package quiz

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/studyhall/studyhall-backend/internal/grading"
)

// DefaultMaxOpenAttempts caps simultaneously open attempts per (user, quiz).
const DefaultMaxOpenAttempts = 5

// Rand is the injected source of sampling randomness; *rand.Rand
// satisfies it, tests pass a fixed seed.
type Rand interface {
	Perm(n int) []int
}

// AuditLog receives an append-only event for every finalized attempt.
type AuditLog interface {
	Append(ctx context.Context, typ, key string, data any) error
}

// Service owns the attempt state machine. The clock and randomness are
// injected so expiry and sampling are deterministic under test.
type Service struct {
	store    Store
	grader   grading.Grader
	now      func() time.Time
	maxOpen  int
	audit    AuditLog
	validate *validator.Validate

	mu  sync.Mutex
	rng Rand
}

type ServiceOption func(*Service)

func WithClock(now func() time.Time) ServiceOption { return func(s *Service) { s.now = now } }
func WithRand(r Rand) ServiceOption                { return func(s *Service) { s.rng = r } }
func WithGrader(g grading.Grader) ServiceOption    { return func(s *Service) { s.grader = g } }
func WithMaxOpenAttempts(n int) ServiceOption      { return func(s *Service) { s.maxOpen = n } }
func WithAuditLog(a AuditLog) ServiceOption        { return func(s *Service) { s.audit = a } }

func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		grader:   grading.NewDefaultGrader(),
		now:      time.Now,
		maxOpen:  DefaultMaxOpenAttempts,
		validate: validator.New(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

/* ---------------- start / resume ---------------- */

type StartResult struct {
	Attempt    Attempt    `json:"attempt"`
	Quiz       Quiz       `json:"quiz"`
	Questions  []Question `json:"questions"` // unmasked; callers apply MaskQuestions
	PartialSet bool       `json:"partial_set"`
	Reused     bool       `json:"reused"`
}

// StartAttempt opens a timed attempt, or resumes the caller's existing
// open one (reused=true) so a second start can never resample questions
// or restart the timer.
func (s *Service) StartAttempt(ctx context.Context, quizID uuid.UUID, userID string, count int, shuffleOptions bool) (StartResult, error) {
	q, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return StartResult{}, err
	}
	if !q.Active {
		return StartResult{}, ErrQuizNotFound
	}

	if open, ok, err := s.store.OpenAttempt(ctx, quizID, userID); err != nil {
		return StartResult{}, err
	} else if ok {
		qs, err := s.store.QuestionsByID(ctx, quizID, open.QuestionIDs)
		if err != nil {
			return StartResult{}, err
		}
		return StartResult{Attempt: open, Quiz: q, Questions: qs, Reused: true}, nil
	}

	eligible, err := s.store.EligibleQuestions(ctx, quizID)
	if err != nil {
		return StartResult{}, err
	}
	if len(eligible) == 0 {
		return StartResult{}, ErrNoQuestions
	}

	if count <= 0 {
		count = len(eligible)
	}
	sampled := s.sample(eligible, count)
	partial := len(sampled) < count
	if shuffleOptions {
		s.shuffleOptions(sampled)
	}

	now := s.now().UTC()
	a := Attempt{
		ID:           uuid.New(),
		QuizID:       quizID,
		UserID:       userID,
		StartedAt:    now,
		ExpiresAt:    now.Add(time.Duration(q.DurationMin) * time.Minute),
		PassingScore: q.PassingScore,
		QuestionIDs:  questionIDs(sampled),
		Status:       AttemptInProgress,
	}
	if err := s.store.CreateAttempt(ctx, a, s.maxOpen); err != nil {
		return StartResult{}, err
	}
	return StartResult{Attempt: a, Quiz: q, Questions: sampled, PartialSet: partial}, nil
}

// sample takes up to count questions in random order; fewer than count
// eligible questions yields a partial set rather than an error.
func (s *Service) sample(qs []Question, count int) []Question {
	s.mu.Lock()
	perm := s.rng.Perm(len(qs))
	s.mu.Unlock()
	if count > len(qs) {
		count = len(qs)
	}
	out := make([]Question, 0, count)
	for _, idx := range perm[:count] {
		out = append(out, qs[idx])
	}
	return out
}

// Option order is cosmetic only; scoring is set-based and ignores it.
func (s *Service) shuffleOptions(qs []Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range qs {
		opts := qs[i].Options
		perm := s.rng.Perm(len(opts))
		shuffled := make([]Option, len(opts))
		for j, idx := range perm {
			shuffled[j] = opts[idx]
		}
		qs[i].Options = shuffled
	}
}

/* ---------------- submit ---------------- */

type AnswerInput struct {
	QuestionID string   `json:"question_id" validate:"required,uuid"`
	OptionIDs  []string `json:"option_ids" validate:"required,min=1,dive,uuid"`
}

type SubmitResult struct {
	Attempt      Attempt `json:"attempt"`
	TimeExceeded bool    `json:"time_exceeded"`
}

// SubmitAttempt scores the answers and finalizes the attempt exactly
// once. A late submission is still scored; TimeExceeded is informational.
func (s *Service) SubmitAttempt(ctx context.Context, quizID, attemptID uuid.UUID, userID string, answers []AnswerInput) (SubmitResult, error) {
	a, err := s.store.GetAttempt(ctx, quizID, attemptID, userID)
	if err != nil {
		return SubmitResult{}, err
	}
	if !a.Open() {
		return SubmitResult{}, ErrAlreadySubmit
	}

	chosen, err := s.parseAnswers(a, answers)
	if err != nil {
		return SubmitResult{}, err
	}

	// Correctness is resolved fresh at submission time; the ledger rows
	// below snapshot what was seen so history survives later edits.
	questions, err := s.store.QuestionsByID(ctx, quizID, a.QuestionIDs)
	if err != nil {
		return SubmitResult{}, err
	}
	byID := make(map[uuid.UUID]Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	now := s.now().UTC()
	var results []grading.Result
	var records []AnswerRecord
	for qid, optionIDs := range chosen {
		q, ok := byID[qid]
		if !ok {
			return SubmitResult{}, Invalid("question is not part of this attempt")
		}
		correctSet := map[uuid.UUID]bool{}
		optionSet := map[uuid.UUID]bool{}
		for _, o := range q.Options {
			optionSet[o.ID] = true
			if o.IsCorrect != nil && *o.IsCorrect {
				correctSet[o.ID] = true
			}
		}
		for _, oid := range optionIDs {
			if !optionSet[oid] {
				return SubmitResult{}, Invalid("option does not belong to question")
			}
			records = append(records, AnswerRecord{
				AttemptID:  a.ID,
				QuestionID: qid,
				OptionID:   oid,
				IsCorrect:  correctSet[oid],
				CreatedAt:  now,
			})
		}
		results = append(results, s.grader.Grade(grading.Q{
			Type:       string(q.Type),
			CorrectIDs: q.CorrectOptionIDs(),
		}, uuidStrings(optionIDs)))
	}

	sum := grading.Tally(results, len(a.QuestionIDs))
	a.SubmittedAt = &now
	a.RawCorrect = sum.RawCorrect
	a.Points = sum.Points
	a.Percent = sum.Percent
	a.Passed = sum.Percent >= a.PassingScore
	a.Status = AttemptCompleted

	if err := s.store.FinalizeAttempt(ctx, a, records); err != nil {
		return SubmitResult{}, err
	}
	timeExceeded := now.After(a.ExpiresAt)
	if s.audit != nil {
		if err := s.audit.Append(ctx, "attempt_submitted", a.ID.String(), a); err != nil {
			log.Printf("audit append failed for attempt %s: %v", a.ID, err)
		}
	}
	return SubmitResult{Attempt: a, TimeExceeded: timeExceeded}, nil
}

// parseAnswers validates the payload shape: uuid ids, non-empty option
// sets, no duplicate questions, only served questions.
func (s *Service) parseAnswers(a Attempt, answers []AnswerInput) (map[uuid.UUID][]uuid.UUID, error) {
	served := make(map[uuid.UUID]bool, len(a.QuestionIDs))
	for _, id := range a.QuestionIDs {
		served[id] = true
	}
	chosen := make(map[uuid.UUID][]uuid.UUID, len(answers))
	for _, in := range answers {
		if err := s.validate.Struct(in); err != nil {
			return nil, Invalid(err.Error())
		}
		qid, err := uuid.Parse(in.QuestionID)
		if err != nil {
			return nil, Invalid("malformed question id")
		}
		if !served[qid] {
			return nil, Invalid("question is not part of this attempt")
		}
		if _, dup := chosen[qid]; dup {
			return nil, Invalid("duplicate answer for question")
		}
		seen := map[uuid.UUID]bool{}
		var opts []uuid.UUID
		for _, raw := range in.OptionIDs {
			oid, err := uuid.Parse(raw)
			if err != nil {
				return nil, Invalid("malformed option id")
			}
			if !seen[oid] {
				seen[oid] = true
				opts = append(opts, oid)
			}
		}
		chosen[qid] = opts
	}
	return chosen, nil
}

/* ---------------- read / review ---------------- */

type ChosenAnswer struct {
	QuestionID uuid.UUID   `json:"question_id"`
	OptionIDs  []uuid.UUID `json:"option_ids"`
}

type AttemptDetail struct {
	Attempt Attempt        `json:"attempt"`
	Answers []ChosenAnswer `json:"answers"`
}

// GetAttempt returns the owner's attempt with chosen options but without
// correctness; effective expiry is computed at read time.
func (s *Service) GetAttempt(ctx context.Context, quizID, attemptID uuid.UUID, userID string) (AttemptDetail, error) {
	a, err := s.store.GetAttempt(ctx, quizID, attemptID, userID)
	if err != nil {
		return AttemptDetail{}, err
	}
	a.Status = a.EffectiveStatus(s.now())
	records, err := s.store.AnswerRecords(ctx, attemptID)
	if err != nil {
		return AttemptDetail{}, err
	}
	return AttemptDetail{Attempt: a, Answers: groupChosen(a.QuestionIDs, records)}, nil
}

type ReviewItem struct {
	Question  Question    `json:"question"` // correctness revealed
	ChosenIDs []uuid.UUID `json:"chosen_option_ids"`
}

type ReviewResult struct {
	Attempt Attempt      `json:"attempt"`
	Items   []ReviewItem `json:"items"`
}

// ReviewAttempt reconstructs chosen vs correct for the attempt's owner.
// The attempt is already closed, so revealing correctness is safe here.
func (s *Service) ReviewAttempt(ctx context.Context, quizID, attemptID uuid.UUID, userID string) (ReviewResult, error) {
	a, err := s.store.GetAttempt(ctx, quizID, attemptID, userID)
	if err != nil {
		return ReviewResult{}, err
	}
	if a.Open() {
		return ReviewResult{}, Invalid("attempt has not been submitted")
	}
	questions, err := s.store.QuestionsByID(ctx, quizID, a.QuestionIDs)
	if err != nil {
		return ReviewResult{}, err
	}
	records, err := s.store.AnswerRecords(ctx, attemptID)
	if err != nil {
		return ReviewResult{}, err
	}
	byQuestion := map[uuid.UUID][]uuid.UUID{}
	for _, r := range records {
		byQuestion[r.QuestionID] = append(byQuestion[r.QuestionID], r.OptionID)
	}
	items := make([]ReviewItem, 0, len(questions))
	for _, q := range questions {
		items = append(items, ReviewItem{Question: q, ChosenIDs: byQuestion[q.ID]})
	}
	return ReviewResult{Attempt: a, Items: items}, nil
}

// ListAttempts filters on the effective status: expired attempts are
// stored as open rows, so the deadline cut happens here, not in SQL.
func (s *Service) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	want := AttemptStatus(opts.Status)
	switch want {
	case "", AttemptInProgress, AttemptCompleted, AttemptExpired:
	default:
		return nil, Invalid("unknown status filter")
	}
	if want == AttemptExpired {
		opts.Status = string(AttemptInProgress)
	}
	attempts, err := s.store.ListAttempts(ctx, opts)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := attempts[:0]
	for _, a := range attempts {
		a.Status = a.EffectiveStatus(now)
		if want != "" && a.Status != want {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// QuizStats aggregates submitted attempts; the personal best is filled
// only for authenticated callers.
func (s *Service) QuizStats(ctx context.Context, quizID uuid.UUID, callerUserID string) (Stats, error) {
	q, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return Stats{}, err
	}
	if !q.Active {
		return Stats{}, ErrQuizNotFound
	}
	return s.store.QuizStats(ctx, quizID, callerUserID)
}

func questionIDs(qs []Question) []uuid.UUID {
	out := make([]uuid.UUID, len(qs))
	for i, q := range qs {
		out[i] = q.ID
	}
	return out
}

func groupChosen(order []uuid.UUID, records []AnswerRecord) []ChosenAnswer {
	byQuestion := map[uuid.UUID][]uuid.UUID{}
	for _, r := range records {
		byQuestion[r.QuestionID] = append(byQuestion[r.QuestionID], r.OptionID)
	}
	out := make([]ChosenAnswer, 0, len(byQuestion))
	for _, qid := range order {
		if opts, ok := byQuestion[qid]; ok {
			out = append(out, ChosenAnswer{QuestionID: qid, OptionIDs: opts})
		}
	}
	return out
}
