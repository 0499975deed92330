package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// SQLStore implements Store on database/sql. driver is "sqlite" or
// "postgres"; dialect branching is limited to row locking (sqlite
// serializes writers on its own).
type SQLStore struct {
	db     *sql.DB
	driver string
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

/* ---------------- quizzes ---------------- */

func (s *SQLStore) CreateQuiz(ctx context.Context, q Quiz) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quizzes (id,title,description,duration_min,passing_score,active,topic_tag_id,created_by,created_at,updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		q.ID.String(), q.Title, q.Description, q.DurationMin, q.PassingScore, q.Active,
		q.TopicTagID.String(), q.CreatedBy, q.CreatedAt.Unix(), q.UpdatedAt.Unix())
	return err
}

func (s *SQLStore) UpdateQuiz(ctx context.Context, q Quiz) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE quizzes SET title=$1, description=$2, duration_min=$3, passing_score=$4, active=$5, topic_tag_id=$6, updated_at=$7
		 WHERE id=$8`,
		q.Title, q.Description, q.DurationMin, q.PassingScore, q.Active,
		q.TopicTagID.String(), time.Now().Unix(), q.ID.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrQuizNotFound
	}
	return nil
}

func (s *SQLStore) DeactivateQuiz(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE quizzes SET active=$1, updated_at=$2 WHERE id=$3`,
		false, time.Now().Unix(), id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrQuizNotFound
	}
	return nil
}

func (s *SQLStore) GetQuiz(ctx context.Context, id uuid.UUID) (Quiz, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,title,description,duration_min,passing_score,active,topic_tag_id,created_by,created_at,updated_at
		 FROM quizzes WHERE id=$1`, id.String())
	return scanQuiz(row)
}

func scanQuiz(row *sql.Row) (Quiz, error) {
	var q Quiz
	var id, topic string
	var created, updated int64
	err := row.Scan(&id, &q.Title, &q.Description, &q.DurationMin, &q.PassingScore,
		&q.Active, &topic, &q.CreatedBy, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quiz{}, ErrQuizNotFound
		}
		return Quiz{}, err
	}
	q.ID, _ = uuid.Parse(id)
	q.TopicTagID, _ = uuid.Parse(topic)
	q.CreatedAt = time.Unix(created, 0).UTC()
	q.UpdatedAt = time.Unix(updated, 0).UTC()
	return q, nil
}

/* ---------------- questions & options ---------------- */

func (s *SQLStore) CreateQuestion(ctx context.Context, q Question) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO questions (id,quiz_id,qtype,prompt,explanation,difficulty,position,active)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		q.ID.String(), q.QuizID.String(), string(q.Type), q.Prompt, q.Explanation,
		q.Difficulty, q.Position, q.Active)
	if err != nil {
		return err
	}
	for _, o := range q.Options {
		correct := o.IsCorrect != nil && *o.IsCorrect
		_, err = tx.ExecContext(ctx,
			`INSERT INTO options (id,question_id,text,is_correct,position) VALUES ($1,$2,$3,$4,$5)`,
			o.ID.String(), q.ID.String(), o.Text, correct, o.Position)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpdateQuestion replaces the question row and its option set. Ledger
// rows keep their own correctness snapshots, so history is unaffected.
func (s *SQLStore) UpdateQuestion(ctx context.Context, q Question) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE questions SET qtype=$1, prompt=$2, explanation=$3, difficulty=$4, position=$5, active=$6
		 WHERE id=$7 AND quiz_id=$8 AND deleted_at IS NULL`,
		string(q.Type), q.Prompt, q.Explanation, q.Difficulty, q.Position, q.Active,
		q.ID.String(), q.QuizID.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrQuizNotFound
	}
	// Soft-delete options no longer present, upsert the rest.
	_, err = tx.ExecContext(ctx,
		`UPDATE options SET deleted_at=$1 WHERE question_id=$2 AND deleted_at IS NULL`,
		time.Now().Unix(), q.ID.String())
	if err != nil {
		return err
	}
	for _, o := range q.Options {
		correct := o.IsCorrect != nil && *o.IsCorrect
		_, err = tx.ExecContext(ctx,
			`INSERT INTO options (id,question_id,text,is_correct,position)
			 VALUES ($1,$2,$3,$4,$5)
			 ON CONFLICT (id) DO UPDATE SET text=EXCLUDED.text, is_correct=EXCLUDED.is_correct,
			   position=EXCLUDED.position, deleted_at=NULL`,
			o.ID.String(), q.ID.String(), o.Text, correct, o.Position)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) SoftDeleteQuestion(ctx context.Context, quizID, questionID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE questions SET deleted_at=$1 WHERE id=$2 AND quiz_id=$3 AND deleted_at IS NULL`,
		time.Now().Unix(), questionID.String(), quizID.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrQuizNotFound
	}
	return nil
}

func (s *SQLStore) EligibleQuestions(ctx context.Context, quizID uuid.UUID) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,quiz_id,qtype,prompt,explanation,difficulty,position,active
		 FROM questions
		 WHERE quiz_id=$1 AND active AND deleted_at IS NULL
		 ORDER BY position`, quizID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	qs, err := collectQuestions(rows)
	if err != nil {
		return nil, err
	}
	return s.attachOptions(ctx, qs)
}

func (s *SQLStore) QuestionsByID(ctx context.Context, quizID uuid.UUID, ids []uuid.UUID) ([]Question, error) {
	byID := map[string]Question{}
	for _, id := range ids {
		row := s.db.QueryRowContext(ctx,
			`SELECT id,quiz_id,qtype,prompt,explanation,difficulty,position,active
			 FROM questions WHERE id=$1 AND quiz_id=$2`, id.String(), quizID.String())
		q, err := scanQuestionRow(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, err
		}
		byID[q.ID.String()] = q
	}
	ordered := make([]Question, 0, len(byID))
	for _, id := range ids {
		if q, ok := byID[id.String()]; ok {
			ordered = append(ordered, q)
		}
	}
	return s.attachOptions(ctx, ordered)
}

func collectQuestions(rows *sql.Rows) ([]Question, error) {
	var qs []Question
	for rows.Next() {
		var q Question
		var id, quizID, qtype string
		if err := rows.Scan(&id, &quizID, &qtype, &q.Prompt, &q.Explanation,
			&q.Difficulty, &q.Position, &q.Active); err != nil {
			return nil, err
		}
		q.ID, _ = uuid.Parse(id)
		q.QuizID, _ = uuid.Parse(quizID)
		q.Type = QuestionType(qtype)
		qs = append(qs, q)
	}
	return qs, rows.Err()
}

func scanQuestionRow(row *sql.Row) (Question, error) {
	var q Question
	var id, quizID, qtype string
	err := row.Scan(&id, &quizID, &qtype, &q.Prompt, &q.Explanation,
		&q.Difficulty, &q.Position, &q.Active)
	if err != nil {
		return Question{}, err
	}
	q.ID, _ = uuid.Parse(id)
	q.QuizID, _ = uuid.Parse(quizID)
	q.Type = QuestionType(qtype)
	return q, nil
}

func (s *SQLStore) attachOptions(ctx context.Context, qs []Question) ([]Question, error) {
	for i := range qs {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id,question_id,text,is_correct,position
			 FROM options WHERE question_id=$1 AND deleted_at IS NULL
			 ORDER BY position`, qs[i].ID.String())
		if err != nil {
			return nil, err
		}
		var opts []Option
		for rows.Next() {
			var o Option
			var id, qid string
			var correct bool
			if err := rows.Scan(&id, &qid, &o.Text, &correct, &o.Position); err != nil {
				rows.Close()
				return nil, err
			}
			o.ID, _ = uuid.Parse(id)
			o.QuestionID, _ = uuid.Parse(qid)
			o.IsCorrect = &correct
			opts = append(opts, o)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
		qs[i].Options = opts
	}
	return qs, nil
}

/* ---------------- attempts ---------------- */

const attemptCols = `id,quiz_id,user_id,started_at,expires_at,submitted_at,passing_score,question_ids_json,raw_correct,points,percent,passed,status`

func (s *SQLStore) OpenAttempt(ctx context.Context, quizID uuid.UUID, userID string) (Attempt, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+attemptCols+` FROM attempts
		 WHERE quiz_id=$1 AND user_id=$2 AND submitted_at IS NULL
		 ORDER BY started_at DESC LIMIT 1`, quizID.String(), userID)
	a, err := scanAttemptRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, false, nil
		}
		return Attempt{}, false, err
	}
	return a, true, nil
}

// CreateAttempt counts the caller's open attempts and inserts inside one
// transaction. On postgres the quiz row is locked first so concurrent
// starts cannot slip past the cap; sqlite has a single writer.
func (s *SQLStore) CreateAttempt(ctx context.Context, a Attempt, maxOpen int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	lock := `SELECT 1 FROM quizzes WHERE id=$1`
	if s.driver == "postgres" {
		lock += ` FOR UPDATE`
	}
	var one int
	if err := tx.QueryRowContext(ctx, lock, a.QuizID.String()).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrQuizNotFound
		}
		return err
	}

	var open int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attempts WHERE quiz_id=$1 AND user_id=$2 AND submitted_at IS NULL`,
		a.QuizID.String(), a.UserID).Scan(&open)
	if err != nil {
		return err
	}
	if open >= maxOpen {
		return ErrTooManyAttempts
	}

	idsJSON, err := json.Marshal(uuidStrings(a.QuestionIDs))
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO attempts (`+attemptCols+`)
		 VALUES ($1,$2,$3,$4,$5,NULL,$6,$7,0,0,0,$8,$9)`,
		a.ID.String(), a.QuizID.String(), a.UserID, a.StartedAt.Unix(), a.ExpiresAt.Unix(),
		a.PassingScore, string(idsJSON), false, string(AttemptInProgress))
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) GetAttempt(ctx context.Context, quizID, attemptID uuid.UUID, userID string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+attemptCols+` FROM attempts WHERE id=$1 AND quiz_id=$2 AND user_id=$3`,
		attemptID.String(), quizID.String(), userID)
	a, err := scanAttemptRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrAttemptNotFound
		}
		return Attempt{}, err
	}
	return a, nil
}

// FinalizeAttempt guards on submitted_at IS NULL inside the transaction
// so a double-submit race can never produce two scores, and rolls the
// ledger back with the status flip on any failure.
func (s *SQLStore) FinalizeAttempt(ctx context.Context, a Attempt, records []AnswerRecord) error {
	if a.SubmittedAt == nil {
		return errors.New("finalize: submitted_at not set")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE attempts SET submitted_at=$1, raw_correct=$2, points=$3, percent=$4, passed=$5, status=$6
		 WHERE id=$7 AND submitted_at IS NULL`,
		a.SubmittedAt.Unix(), a.RawCorrect, a.Points, a.Percent, a.Passed,
		string(AttemptCompleted), a.ID.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadySubmit
	}
	for _, r := range records {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO attempt_answers (attempt_id,question_id,option_id,is_correct,created_at)
			 VALUES ($1,$2,$3,$4,$5)`,
			r.AttemptID.String(), r.QuestionID.String(), r.OptionID.String(), r.IsCorrect, r.CreatedAt.Unix())
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) AnswerRecords(ctx context.Context, attemptID uuid.UUID) ([]AnswerRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT attempt_id,question_id,option_id,is_correct,created_at
		 FROM attempt_answers WHERE attempt_id=$1`, attemptID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AnswerRecord
	for rows.Next() {
		var r AnswerRecord
		var aid, qid, oid string
		var created int64
		if err := rows.Scan(&aid, &qid, &oid, &r.IsCorrect, &created); err != nil {
			return nil, err
		}
		r.AttemptID, _ = uuid.Parse(aid)
		r.QuestionID, _ = uuid.Parse(qid)
		r.OptionID, _ = uuid.Parse(oid)
		r.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	q := `SELECT ` + attemptCols + ` FROM attempts WHERE quiz_id=$1`
	args := []any{opts.QuizID.String()}
	if opts.UserID != "" {
		args = append(args, opts.UserID)
		q += ` AND user_id=$2`
	}
	switch opts.Status {
	case string(AttemptInProgress):
		q += ` AND submitted_at IS NULL`
	case string(AttemptCompleted):
		q += ` AND submitted_at IS NOT NULL`
	}
	q += ` ORDER BY started_at DESC`
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q += ` LIMIT ` + strconv.Itoa(limit)
	if opts.Offset > 0 {
		q += ` OFFSET ` + strconv.Itoa(opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		a, err := scanAttemptRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

/* ---------------- stats ---------------- */

func (s *SQLStore) QuizStats(ctx context.Context, quizID uuid.UUID, userID string) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(AVG(percent), 0),
		        COALESCE(AVG(CASE WHEN passed THEN 1.0 ELSE 0.0 END), 0)
		 FROM attempts WHERE quiz_id=$1 AND submitted_at IS NOT NULL`,
		quizID.String()).Scan(&st.Attempts, &st.AveragePercent, &st.SuccessRate)
	if err != nil {
		return Stats{}, err
	}
	if userID == "" {
		return st, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+attemptCols+` FROM attempts
		 WHERE quiz_id=$1 AND user_id=$2 AND submitted_at IS NOT NULL
		 ORDER BY percent DESC, submitted_at DESC LIMIT 1`,
		quizID.String(), userID)
	best, err := scanAttemptRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return st, nil
		}
		return Stats{}, err
	}
	st.BestAttempt = &best
	return st, nil
}

/* ---------------- scan helpers ---------------- */

type rowScanner interface{ Scan(dest ...any) error }

func scanAttemptRow(row *sql.Row) (Attempt, error)    { return scanAttempt(row) }
func scanAttemptRows(rows *sql.Rows) (Attempt, error) { return scanAttempt(rows) }

func scanAttempt(sc rowScanner) (Attempt, error) {
	var a Attempt
	var id, quizID, status, idsJSON string
	var started, expires int64
	var submitted sql.NullInt64
	err := sc.Scan(&id, &quizID, &a.UserID, &started, &expires, &submitted,
		&a.PassingScore, &idsJSON, &a.RawCorrect, &a.Points, &a.Percent, &a.Passed, &status)
	if err != nil {
		return Attempt{}, err
	}
	a.ID, _ = uuid.Parse(id)
	a.QuizID, _ = uuid.Parse(quizID)
	a.StartedAt = time.Unix(started, 0).UTC()
	a.ExpiresAt = time.Unix(expires, 0).UTC()
	if submitted.Valid {
		t := time.Unix(submitted.Int64, 0).UTC()
		a.SubmittedAt = &t
	}
	a.Status = AttemptStatus(status)
	var ids []string
	if err := json.Unmarshal([]byte(idsJSON), &ids); err != nil {
		return Attempt{}, err
	}
	for _, s := range ids {
		if u, perr := uuid.Parse(s); perr == nil {
			a.QuestionIDs = append(a.QuestionIDs, u)
		}
	}
	return a, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
