package quiz_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/studyhall/studyhall-backend/internal/audit"
	"github.com/studyhall/studyhall-backend/internal/db"
	"github.com/studyhall/studyhall-backend/internal/quiz"
)

func openTestStore(t *testing.T) *quiz.SQLStore {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dsn := "file:" + filepath.Join(t.TempDir(), "test.db")
	dbh, err := db.Open(ctx, db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	return quiz.NewSQLStore(dbh, "sqlite")
}

func seedStoreQuiz(t *testing.T, st *quiz.SQLStore) (uuid.UUID, []uuid.UUID, []uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	quizID := uuid.New()
	if err := st.CreateQuiz(ctx, quiz.Quiz{
		ID:           quizID,
		Title:        "Graph Traversal",
		DurationMin:  20,
		PassingScore: 50,
		Active:       true,
		TopicTagID:   uuid.New(),
		CreatedBy:    "teacher-1",
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		t.Fatalf("create quiz: %v", err)
	}

	var questionIDs, correctIDs []uuid.UUID
	for i := 0; i < 2; i++ {
		qid := uuid.New()
		correct := uuid.New()
		q := quiz.Question{
			ID:       qid,
			QuizID:   quizID,
			Type:     quiz.QuestionSingle,
			Prompt:   "pick one",
			Position: i,
			Active:   true,
			Options: []quiz.Option{
				{ID: correct, QuestionID: qid, Text: "right", IsCorrect: boolp(true), Position: 0},
				{ID: uuid.New(), QuestionID: qid, Text: "wrong", IsCorrect: boolp(false), Position: 1},
			},
		}
		if err := st.CreateQuestion(ctx, q); err != nil {
			t.Fatalf("create question: %v", err)
		}
		questionIDs = append(questionIDs, qid)
		correctIDs = append(correctIDs, correct)
	}
	return quizID, questionIDs, correctIDs
}

func TestSQLStore_AttemptRoundTrip(t *testing.T) {
	st := openTestStore(t)
	quizID, questionIDs, correctIDs := seedStoreQuiz(t, st)
	svc := quiz.NewService(st, quiz.WithClock(fixedClock(t0)))

	start, err := svc.StartAttempt(context.Background(), quizID, "student-1", 0, false)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(start.Attempt.QuestionIDs) != 2 {
		t.Fatalf("want full bank, got %d questions", len(start.Attempt.QuestionIDs))
	}

	// The open attempt survives a reload with its served order intact.
	reloaded, ok, err := st.OpenAttempt(context.Background(), quizID, "student-1")
	if err != nil || !ok {
		t.Fatalf("open attempt lookup: ok=%v err=%v", ok, err)
	}
	if len(reloaded.QuestionIDs) != 2 || reloaded.QuestionIDs[0] != start.Attempt.QuestionIDs[0] {
		t.Fatalf("question order lost across reload")
	}

	answers := []quiz.AnswerInput{
		{QuestionID: questionIDs[0].String(), OptionIDs: []string{correctIDs[0].String()}},
		{QuestionID: questionIDs[1].String(), OptionIDs: []string{correctIDs[1].String()}},
	}
	res, err := svc.SubmitAttempt(context.Background(), quizID, start.Attempt.ID, "student-1", answers)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Attempt.Percent != 100 || !res.Attempt.Passed || res.Attempt.RawCorrect != 2 {
		t.Fatalf("score wrong after round trip: %+v", res.Attempt)
	}

	records, err := st.AnswerRecords(context.Background(), start.Attempt.ID)
	if err != nil {
		t.Fatalf("answer records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("want 2 ledger rows, got %d", len(records))
	}
	for _, r := range records {
		if !r.IsCorrect {
			t.Fatalf("ledger lost correctness snapshot: %+v", r)
		}
	}

	review, err := svc.ReviewAttempt(context.Background(), quizID, start.Attempt.ID, "student-1")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if len(review.Items) != 2 {
		t.Fatalf("want 2 review items, got %d", len(review.Items))
	}
}

func TestSQLStore_FinalizeGuardsDoubleSubmit(t *testing.T) {
	st := openTestStore(t)
	quizID, _, _ := seedStoreQuiz(t, st)
	svc := quiz.NewService(st, quiz.WithClock(fixedClock(t0)))

	start, err := svc.StartAttempt(context.Background(), quizID, "student-1", 0, false)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	a := start.Attempt
	now := t0.Add(time.Minute)
	a.SubmittedAt = &now
	a.Status = quiz.AttemptCompleted

	if err := st.FinalizeAttempt(context.Background(), a, nil); err != nil {
		t.Fatalf("first finalize: %v", err)
	}
	err = st.FinalizeAttempt(context.Background(), a, nil)
	if quiz.KindOf(err) != quiz.KindAlreadySubmit {
		t.Fatalf("want already_submitted on second finalize, got %v", err)
	}
}

func TestSQLStore_CreateAttemptEnforcesCap(t *testing.T) {
	st := openTestStore(t)
	quizID, questionIDs, _ := seedStoreQuiz(t, st)

	mk := func() quiz.Attempt {
		return quiz.Attempt{
			ID:           uuid.New(),
			QuizID:       quizID,
			UserID:       "student-1",
			StartedAt:    t0,
			ExpiresAt:    t0.Add(20 * time.Minute),
			PassingScore: 50,
			QuestionIDs:  questionIDs,
			Status:       quiz.AttemptInProgress,
		}
	}
	for i := 0; i < 5; i++ {
		if err := st.CreateAttempt(context.Background(), mk(), 5); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	err := st.CreateAttempt(context.Background(), mk(), 5)
	if quiz.KindOf(err) != quiz.KindTooManyAttempts {
		t.Fatalf("want too_many_active_attempts, got %v", err)
	}
	// Another user is not affected by the cap.
	other := mk()
	other.UserID = "student-2"
	if err := st.CreateAttempt(context.Background(), other, 5); err != nil {
		t.Fatalf("other user blocked: %v", err)
	}
}

// A row whose served-question snapshot no longer parses must fail the
// read loudly instead of scoring against an empty set.
func TestSQLStore_CorruptQuestionSnapshotSurfaces(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db")
	dbh, err := db.Open(ctx, db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer dbh.Close()

	st := quiz.NewSQLStore(dbh, "sqlite")
	quizID, questionIDs, _ := seedStoreQuiz(t, st)
	a := quiz.Attempt{
		ID:           uuid.New(),
		QuizID:       quizID,
		UserID:       "student-1",
		StartedAt:    t0,
		ExpiresAt:    t0.Add(20 * time.Minute),
		PassingScore: 50,
		QuestionIDs:  questionIDs,
		Status:       quiz.AttemptInProgress,
	}
	if err := st.CreateAttempt(ctx, a, 5); err != nil {
		t.Fatalf("create attempt: %v", err)
	}
	if _, err := dbh.ExecContext(ctx,
		`UPDATE attempts SET question_ids_json='{broken' WHERE id=$1`, a.ID.String()); err != nil {
		t.Fatalf("corrupt row: %v", err)
	}

	_, err = st.GetAttempt(ctx, quizID, a.ID, "student-1")
	if err == nil {
		t.Fatalf("corrupt snapshot read succeeded")
	}
	if quiz.KindOf(err) != quiz.KindInternal {
		t.Fatalf("want internal_error, got %v", err)
	}
}

func TestSQLStore_SoftDeleteHidesFromSamplingNotAttempts(t *testing.T) {
	st := openTestStore(t)
	quizID, questionIDs, _ := seedStoreQuiz(t, st)
	ctx := context.Background()

	if err := st.SoftDeleteQuestion(ctx, quizID, questionIDs[0]); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	eligible, err := st.EligibleQuestions(ctx, quizID)
	if err != nil {
		t.Fatalf("eligible: %v", err)
	}
	if len(eligible) != 1 || eligible[0].ID != questionIDs[1] {
		t.Fatalf("deleted question still eligible: %d", len(eligible))
	}
	// An attempt that already sampled the question can still resolve it.
	resolved, err := st.QuestionsByID(ctx, quizID, questionIDs)
	if err != nil {
		t.Fatalf("by id: %v", err)
	}
	if len(resolved) != 2 {
		t.Fatalf("served set must survive soft delete, got %d", len(resolved))
	}
}

func TestSQLStore_QuizStats(t *testing.T) {
	st := openTestStore(t)
	quizID, questionIDs, correctIDs := seedStoreQuiz(t, st)
	svc := quiz.NewService(st, quiz.WithClock(fixedClock(t0)))
	ctx := context.Background()

	submit := func(user string, answers []quiz.AnswerInput) quiz.Attempt {
		start, err := svc.StartAttempt(ctx, quizID, user, 0, false)
		if err != nil {
			t.Fatalf("start %s: %v", user, err)
		}
		res, err := svc.SubmitAttempt(ctx, quizID, start.Attempt.ID, user, answers)
		if err != nil {
			t.Fatalf("submit %s: %v", user, err)
		}
		return res.Attempt
	}

	submit("student-1", []quiz.AnswerInput{
		{QuestionID: questionIDs[0].String(), OptionIDs: []string{correctIDs[0].String()}},
		{QuestionID: questionIDs[1].String(), OptionIDs: []string{correctIDs[1].String()}},
	})
	submit("student-2", nil) // scores zero

	stats, err := svc.QuizStats(ctx, quizID, "student-1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Attempts != 2 {
		t.Fatalf("want 2 submitted attempts, got %d", stats.Attempts)
	}
	if stats.AveragePercent != 50 {
		t.Fatalf("want average 50, got %v", stats.AveragePercent)
	}
	if stats.SuccessRate != 0.5 {
		t.Fatalf("want success rate 0.5, got %v", stats.SuccessRate)
	}
	if stats.BestAttempt == nil || stats.BestAttempt.Percent != 100 {
		t.Fatalf("personal best missing or wrong: %+v", stats.BestAttempt)
	}
}

func TestEventLog_AppendOnSubmit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db")
	dbh, err := db.Open(ctx, db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer dbh.Close()

	st := quiz.NewSQLStore(dbh, "sqlite")
	quizID, questionIDs, correctIDs := seedStoreQuiz(t, st)
	svc := quiz.NewService(st,
		quiz.WithClock(fixedClock(t0)),
		quiz.WithAuditLog(audit.NewEventRepo(dbh)),
	)

	start, err := svc.StartAttempt(ctx, quizID, "student-1", 0, false)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.SubmitAttempt(ctx, quizID, start.Attempt.ID, "student-1", []quiz.AnswerInput{
		{QuestionID: questionIDs[0].String(), OptionIDs: []string{correctIDs[0].String()}},
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	var n int
	var typ, key string
	if err := dbh.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM event_log`).Scan(&n); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if n != 1 {
		t.Fatalf("want 1 audit event, got %d", n)
	}
	if err := dbh.QueryRowContext(ctx,
		`SELECT typ, key FROM event_log LIMIT 1`).Scan(&typ, &key); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if typ != "attempt_submitted" || key != start.Attempt.ID.String() {
		t.Fatalf("event mismatch: %s %s", typ, key)
	}
}
