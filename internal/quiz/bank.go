package quiz

import (
	"context"

	"github.com/google/uuid"
)

/* ---------------- quiz management ---------------- */

type QuizInput struct {
	Title        string `json:"title" validate:"required"`
	Description  string `json:"description"`
	DurationMin  int    `json:"duration_min" validate:"required,gt=0"`
	PassingScore int    `json:"passing_score" validate:"gte=0,lte=100"`
	Active       *bool  `json:"active"`
	TopicTagID   string `json:"topic_tag_id" validate:"required,uuid"`
}

func (s *Service) CreateQuiz(ctx context.Context, in QuizInput, createdBy string) (Quiz, error) {
	if err := s.validate.Struct(in); err != nil {
		return Quiz{}, Invalid(err.Error())
	}
	topic, _ := uuid.Parse(in.TopicTagID)
	now := s.now().UTC()
	q := Quiz{
		ID:           uuid.New(),
		Title:        in.Title,
		Description:  in.Description,
		DurationMin:  in.DurationMin,
		PassingScore: in.PassingScore,
		Active:       in.Active == nil || *in.Active,
		TopicTagID:   topic,
		CreatedBy:    createdBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateQuiz(ctx, q); err != nil {
		return Quiz{}, err
	}
	return q, nil
}

// UpdateQuiz changes the mutable fields. Attempts already in progress
// keep the duration and threshold they snapshotted at start.
func (s *Service) UpdateQuiz(ctx context.Context, id uuid.UUID, in QuizInput) (Quiz, error) {
	if err := s.validate.Struct(in); err != nil {
		return Quiz{}, Invalid(err.Error())
	}
	q, err := s.store.GetQuiz(ctx, id)
	if err != nil {
		return Quiz{}, err
	}
	q.Title = in.Title
	q.Description = in.Description
	q.DurationMin = in.DurationMin
	q.PassingScore = in.PassingScore
	if in.Active != nil {
		q.Active = *in.Active
	}
	q.TopicTagID, _ = uuid.Parse(in.TopicTagID)
	q.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateQuiz(ctx, q); err != nil {
		return Quiz{}, err
	}
	return q, nil
}

// DeactivateQuiz is the removal operation; quizzes are never hard-deleted.
func (s *Service) DeactivateQuiz(ctx context.Context, id uuid.UUID) error {
	return s.store.DeactivateQuiz(ctx, id)
}

type QuizDetail struct {
	Quiz      Quiz       `json:"quiz"`
	Questions []Question `json:"questions"`
}

// GetQuiz returns the quiz with its eligible questions, unmasked;
// callers apply MaskQuestions per their rights.
func (s *Service) GetQuiz(ctx context.Context, id uuid.UUID) (QuizDetail, error) {
	q, err := s.store.GetQuiz(ctx, id)
	if err != nil {
		return QuizDetail{}, err
	}
	if !q.Active {
		return QuizDetail{}, ErrQuizNotFound
	}
	qs, err := s.store.EligibleQuestions(ctx, id)
	if err != nil {
		return QuizDetail{}, err
	}
	return QuizDetail{Quiz: q, Questions: qs}, nil
}

/* ---------------- question management ---------------- */

type OptionInput struct {
	Text      string `json:"text" validate:"required"`
	IsCorrect bool   `json:"is_correct"`
}

type QuestionInput struct {
	Type        string        `json:"type" validate:"required,oneof=single multi true_false"`
	Prompt      string        `json:"prompt" validate:"required"`
	Explanation string        `json:"explanation"`
	Difficulty  string        `json:"difficulty"`
	Position    int           `json:"position"`
	Active      *bool         `json:"active"`
	Options     []OptionInput `json:"options" validate:"required,min=1,dive"`
}

// checkShape enforces the bank invariants: at least one option, at least
// one correct option, exactly one correct for single/true_false, exactly
// two options for true_false.
func checkShape(in QuestionInput) error {
	correct := 0
	for _, o := range in.Options {
		if o.IsCorrect {
			correct++
		}
	}
	if correct == 0 {
		return Invalid("at least one option must be correct")
	}
	switch QuestionType(in.Type) {
	case QuestionSingle:
		if correct != 1 {
			return Invalid("single-answer questions need exactly one correct option")
		}
	case QuestionTrueFalse:
		if len(in.Options) != 2 {
			return Invalid("true/false questions need exactly two options")
		}
		if correct != 1 {
			return Invalid("true/false questions need exactly one correct option")
		}
	}
	return nil
}

func (s *Service) AddQuestion(ctx context.Context, quizID uuid.UUID, in QuestionInput) (Question, error) {
	if err := s.validate.Struct(in); err != nil {
		return Question{}, Invalid(err.Error())
	}
	if err := checkShape(in); err != nil {
		return Question{}, err
	}
	if _, err := s.store.GetQuiz(ctx, quizID); err != nil {
		return Question{}, err
	}
	q := buildQuestion(uuid.New(), quizID, in)
	if err := s.store.CreateQuestion(ctx, q); err != nil {
		return Question{}, err
	}
	return q, nil
}

// UpdateQuestion replaces prompt, shape and options. Open attempts are
// unaffected until their owners submit (correctness is read live then).
func (s *Service) UpdateQuestion(ctx context.Context, quizID, questionID uuid.UUID, in QuestionInput) (Question, error) {
	if err := s.validate.Struct(in); err != nil {
		return Question{}, Invalid(err.Error())
	}
	if err := checkShape(in); err != nil {
		return Question{}, err
	}
	q := buildQuestion(questionID, quizID, in)
	if err := s.store.UpdateQuestion(ctx, q); err != nil {
		return Question{}, err
	}
	return q, nil
}

func (s *Service) DeleteQuestion(ctx context.Context, quizID, questionID uuid.UUID) error {
	return s.store.SoftDeleteQuestion(ctx, quizID, questionID)
}

func buildQuestion(id, quizID uuid.UUID, in QuestionInput) Question {
	q := Question{
		ID:          id,
		QuizID:      quizID,
		Type:        QuestionType(in.Type),
		Prompt:      in.Prompt,
		Explanation: in.Explanation,
		Difficulty:  in.Difficulty,
		Position:    in.Position,
		Active:      in.Active == nil || *in.Active,
	}
	for i, o := range in.Options {
		correct := o.IsCorrect
		q.Options = append(q.Options, Option{
			ID:         uuid.New(),
			QuestionID: id,
			Text:       o.Text,
			IsCorrect:  &correct,
			Position:   i,
		})
	}
	return q
}
