package quiz

import (
	"context"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/mathhub/factolearn/core"
	"github.com/mathhub/factolearn/core/lesson"
)

// Question kinds
const (
	KindChoice  = "choice"
	KindNumeric = "numeric"
	KindText    = "text"
)

var (
	Kinds = []string{KindChoice, KindNumeric, KindText}

	questionKindTag  = "questionkind"
	questionKindText = "unknown question kind"

	choiceAnswerTag  = "choiceanswer"
	choiceAnswerText = "answer must be one of the choices"

	numericAnswerTag  = "numericanswer"
	numericAnswerText = "answer must be a number"

	errNoSuchLesson = "lesson not found"
)

// InitValidators registers the quiz validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(questionKindTag, func(fl validator.FieldLevel) bool {
		return core.ContainsString(Kinds, fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, questionKindTag, questionKindText)

	validate.RegisterStructValidation(questionStructValidation, Question{})
	core.RegisterCustomTranslation(validate, translator, choiceAnswerTag, choiceAnswerText)
	core.RegisterCustomTranslation(validate, translator, numericAnswerTag, numericAnswerText)
}

func questionStructValidation(sl validator.StructLevel) {
	q := sl.Current().Interface().(Question)
	switch q.Kind {
	case KindChoice:
		if len(q.Choices) < 2 {
			sl.ReportError(q.Choices, "choices", "Choices", "min", "2")
			return
		}
		if !isChoice(q.Choices, q.Answer) {
			sl.ReportError(q.Answer, "answer", "Answer", choiceAnswerTag, "")
		}
	case KindNumeric:
		if _, err := parseNumber(q.Answer); err != nil {
			sl.ReportError(q.Answer, "answer", "Answer", numericAnswerTag, "")
		}
	}
}

func isChoice(choices []string, answer string) bool {
	for _, c := range choices {
		if strings.EqualFold(strings.TrimSpace(c), strings.TrimSpace(answer)) {
			return true
		}
	}
	return false
}

type Question struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt" validate:"required,max=1000"`
	Kind    string   `json:"kind" validate:"required,questionkind"`
	Choices []string `json:"choices,omitempty" validate:"omitempty,dive,required,max=200"`
	Answer  string   `json:"answer,omitempty" validate:"required,max=200"`
	Points  int      `json:"points" validate:"min=1,max=100"`
}

type Quiz struct {
	ID          string     `json:"id"`
	LessonID    string     `json:"lesson_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	TimeLimit   int        `json:"time_limit"` // seconds, 0 = no limit
	PassPercent int        `json:"pass_percent"`
	MaxAttempts int        `json:"max_attempts"` // 0 = unlimited
	IsPublished bool       `json:"is_published"`
	Questions   []Question `json:"questions"`
	AuthorID    string     `json:"author_id"`
	CreatedAt   time.Time  `json:"created_at"` // UTC
	UpdatedAt   time.Time  `json:"updated_at"` // UTC
}

func (q Quiz) MaxScore() int {
	var total int
	for _, qn := range q.Questions {
		total += qn.Points
	}
	return total
}

// Redacted returns a copy of the quiz whose questions don't carry their answers.
func (q Quiz) Redacted() Quiz {
	questions := make([]Question, len(q.Questions))
	for i, qn := range q.Questions {
		qn.Answer = ""
		questions[i] = qn
	}
	q.Questions = questions
	return q
}

// Deadline is the time after which an attempt started at startedAt can't be submitted anymore.
// The zero time is returned for quizzes without time limit.
func (q Quiz) Deadline(startedAt time.Time, grace time.Duration) time.Time {
	if q.TimeLimit <= 0 {
		return time.Time{}
	}
	return startedAt.Add(time.Duration(q.TimeLimit)*time.Second + grace)
}

// NewQuiz contains information needed to create a new Quiz.
type NewQuiz struct {
	LessonID    string     `json:"lesson_id" validate:"required"`
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=2000"`
	TimeLimit   int        `json:"time_limit" validate:"min=0"`
	PassPercent int        `json:"pass_percent" validate:"required,min=1,max=100"`
	MaxAttempts int        `json:"max_attempts" validate:"min=0"`
	IsPublished bool       `json:"is_published"`
	Questions   []Question `json:"questions" validate:"required,min=1,dive"`
}

func (nq *NewQuiz) Validate(ctx context.Context, validate *validator.Validate, lessonSvc lesson.Service) error {
	nq.LessonID = core.CleanString(nq.LessonID)
	nq.Title = core.CleanString(nq.Title)
	nq.Description = core.CleanString(nq.Description)
	cleanQuestions(nq.Questions)

	if err := validate.Struct(nq); err != nil {
		return err
	}
	return checkLesson(ctx, nq.LessonID, lessonSvc)
}

// UpdateQuiz defines what information may be provided to modify an existing Quiz.
type UpdateQuiz struct {
	Title       string     `json:"title" validate:"max=200"`
	Description *string    `json:"description" validate:"omitempty,max=2000"`
	TimeLimit   *int       `json:"time_limit" validate:"omitempty,min=0"`
	PassPercent int        `json:"pass_percent" validate:"omitempty,min=1,max=100"`
	MaxAttempts *int       `json:"max_attempts" validate:"omitempty,min=0"`
	IsPublished *bool      `json:"is_published"`
	Questions   []Question `json:"questions" validate:"omitempty,min=1,dive"`
}

func (uq *UpdateQuiz) Validate(orig Quiz, validate *validator.Validate) error {
	if title := core.CleanString(uq.Title); title != "" {
		uq.Title = title
	} else {
		uq.Title = orig.Title
	}
	if uq.Description == nil {
		uq.Description = &orig.Description
	} else {
		desc := core.CleanString(*uq.Description)
		uq.Description = &desc
	}
	if uq.TimeLimit == nil {
		uq.TimeLimit = &orig.TimeLimit
	}
	if uq.PassPercent == 0 {
		uq.PassPercent = orig.PassPercent
	}
	if uq.MaxAttempts == nil {
		uq.MaxAttempts = &orig.MaxAttempts
	}
	if uq.IsPublished == nil {
		uq.IsPublished = &orig.IsPublished
	}
	if uq.Questions == nil {
		uq.Questions = orig.Questions
	} else {
		cleanQuestions(uq.Questions)
	}
	return validate.Struct(uq)
}

func cleanQuestions(questions []Question) {
	for i := range questions {
		q := &questions[i]
		q.ID = core.CleanString(q.ID)
		q.Prompt = core.CleanString(q.Prompt)
		q.Kind = core.CleanString(q.Kind, true /* lower */)
		q.Answer = core.CleanString(q.Answer)
		for j := range q.Choices {
			q.Choices[j] = core.CleanString(q.Choices[j])
		}
		if q.Points == 0 {
			q.Points = 1
		}
	}
}

func checkLesson(ctx context.Context, lessonID string, lessonSvc lesson.Service) error {
	if _, err := lessonSvc.GetByID(ctx, lessonID); err != nil {
		if errors.Cause(err) == lesson.ErrNotFound {
			return core.NewValidationError(nil, core.FieldError{Field: "lesson_id", Error: errNoSuchLesson})
		}
		return errors.Wrap(err, "finding lesson")
	}
	return nil
}

type QueryFilter struct {
	Search      string   `query:"search"`
	LessonIDs   []string `query:"lesson"`
	IsPublished *bool    `query:"is_published"`
	AuthorID    string   `query:"author"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.AuthorID = core.CleanString(qf.AuthorID)
	ids := make([]string, 0, len(qf.LessonIDs))
	for _, id := range qf.LessonIDs {
		if id = core.CleanString(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		ids = nil
	}
	qf.LessonIDs = ids
}

// Attempt is a student's go at a quiz. Answers maps question IDs to the given answers.
type Attempt struct {
	ID          string            `json:"id"`
	QuizID      string            `json:"quiz_id"`
	StudentID   string            `json:"student_id"`
	StartedAt   time.Time         `json:"started_at"`   // UTC
	SubmittedAt time.Time         `json:"submitted_at"` // UTC, zero while open
	Answers     map[string]string `json:"answers"`
	Score       int               `json:"score"`
	MaxScore    int               `json:"max_score"`
	Percent     float64           `json:"percent"`
	Passed      bool              `json:"passed"`
}

func (a Attempt) IsSubmitted() bool {
	return !a.SubmittedAt.IsZero()
}

type SubmitAnswers struct {
	Answers map[string]string `json:"answers" validate:"required,dive,max=200"`
}

func (sa *SubmitAnswers) Validate(validate *validator.Validate) error {
	for id, ans := range sa.Answers {
		sa.Answers[id] = core.CleanString(ans)
	}
	return validate.Struct(sa)
}

type QuestionResult struct {
	QuestionID string `json:"question_id"`
	Given      string `json:"given"`
	Expected   string `json:"expected"`
	Correct    bool   `json:"correct"`
	Points     int    `json:"points"`
}

// AttemptResult is the outcome of a submitted attempt.
type AttemptResult struct {
	Attempt Attempt          `json:"attempt"`
	Results []QuestionResult `json:"results"`
	Message string           `json:"message"`
}

type AttemptFilter struct {
	QuizIDs    []string `query:"quiz"`
	StudentIDs []string `query:"student"`
	Submitted  *bool    `query:"submitted"`
}
