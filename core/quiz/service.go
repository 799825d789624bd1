package quiz

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mathhub/factolearn/core"
	"github.com/mathhub/factolearn/core/i18n"
	"github.com/mathhub/factolearn/core/progress"
)

var (
	// errors
	ErrNotFound            = errors.New("quiz not found")
	ErrAttemptNotFound     = errors.New("quiz attempt not found")
	ErrNotPublished        = errors.New("quiz is not published")
	ErrMaxAttemptsReached  = errors.New("maximum number of attempts reached")
	ErrAttemptSubmitted    = errors.New("quiz attempt already submitted")
	ErrAttemptTimeExceeded = errors.New("quiz attempt time limit exceeded")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateQuiz(ctx context.Context, q Quiz, exec ...core.DBExecutor) (Quiz, error)
		QueryQuizzes(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Quiz, error)
		GetQuiz(ctx context.Context, id string, exec ...core.DBExecutor) (Quiz, error)
		UpdateQuiz(ctx context.Context, q Quiz, exec ...core.DBExecutor) (Quiz, error)
		DeleteQuiz(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateAttempt(ctx context.Context, a Attempt, exec ...core.DBExecutor) (Attempt, error)
		GetAttempt(ctx context.Context, id string, exec ...core.DBExecutor) (Attempt, error)
		// GetAttemptForUpdate returns the attempt & locks it until the end of the transaction of exec.
		GetAttemptForUpdate(ctx context.Context, id string, exec core.DBExecutor) (Attempt, error)
		// UpdateAttempt saves an attempt that isn't submitted yet; ErrAttemptSubmitted otherwise.
		UpdateAttempt(ctx context.Context, a Attempt, exec ...core.DBExecutor) (Attempt, error)
		// QueryAttempts returns the matching attempts, newest first.
		QueryAttempts(ctx context.Context, filter *AttemptFilter, exec ...core.DBExecutor) ([]Attempt, error)
	}

	Service interface {
		Create(ctx context.Context, nq NewQuiz, authorID string) (Quiz, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Quiz, error)
		GetByID(ctx context.Context, id string) (Quiz, error)
		Update(ctx context.Context, q Quiz, uq UpdateQuiz) (Quiz, error)
		Delete(ctx context.Context, id string) error

		// StartAttempt opens an attempt of the student at the published quiz, or returns the attempt
		// the student left open if it can still be submitted.
		StartAttempt(ctx context.Context, q Quiz, studentID string) (Attempt, error)
		GetAttempt(ctx context.Context, id string) (Attempt, error)
		// SubmitAttempt grades the attempt & records the result in the student's progress.
		SubmitAttempt(ctx context.Context, q Quiz, a Attempt, sa SubmitAnswers, lang string) (AttemptResult, error)
		QueryAttempts(ctx context.Context, filter *AttemptFilter) ([]Attempt, error)
	}

	service struct {
		repo    Repository
		progSvc progress.Service
		tx      core.TxRunner
		grace   time.Duration
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, progSvc progress.Service, tx core.TxRunner, conf core.LearningConfig) Service {
	return &service{repo: repo, progSvc: progSvc, tx: tx, grace: conf.QuizGracePeriod}
}

func (svc *service) Create(ctx context.Context, nq NewQuiz, authorID string) (Quiz, error) {
	now := nowFunc().UTC()
	return svc.repo.CreateQuiz(ctx, Quiz{
		LessonID:    nq.LessonID,
		Title:       nq.Title,
		Description: nq.Description,
		TimeLimit:   nq.TimeLimit,
		PassPercent: nq.PassPercent,
		MaxAttempts: nq.MaxAttempts,
		IsPublished: nq.IsPublished,
		Questions:   withQuestionIDs(nq.Questions),
		AuthorID:    authorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

// withQuestionIDs gives an ID to the questions that don't have one yet.
func withQuestionIDs(questions []Question) []Question {
	res := make([]Question, len(questions))
	for i, q := range questions {
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		res[i] = q
	}
	return res
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Quiz, error) {
	ordering = core.FilterOrderings(ordering, "title", "created_at", "updated_at")
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: true}}
	}
	return svc.repo.QueryQuizzes(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Quiz, error) {
	return svc.repo.GetQuiz(ctx, core.CleanString(id))
}

func (svc *service) Update(ctx context.Context, q Quiz, uq UpdateQuiz) (Quiz, error) {
	q.Title = uq.Title
	q.Description = *uq.Description
	q.TimeLimit = *uq.TimeLimit
	q.PassPercent = uq.PassPercent
	q.MaxAttempts = *uq.MaxAttempts
	q.IsPublished = *uq.IsPublished
	q.Questions = withQuestionIDs(uq.Questions)
	q.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateQuiz(ctx, q)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteQuiz(ctx, id)
}

func (svc *service) StartAttempt(ctx context.Context, q Quiz, studentID string) (Attempt, error) {
	if !q.IsPublished {
		return Attempt{}, ErrNotPublished
	}

	var res Attempt
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		attempts, err := svc.repo.QueryAttempts(ctx, &AttemptFilter{QuizIDs: []string{q.ID}, StudentIDs: []string{studentID}}, exec)
		if err != nil {
			return errors.Wrap(err, "querying attempts")
		}

		now := nowFunc().UTC()
		for _, a := range attempts {
			if !a.IsSubmitted() && svc.canSubmit(q, a, now) {
				res = a // resume
				return nil
			}
		}
		if q.MaxAttempts > 0 && len(attempts) >= q.MaxAttempts {
			return ErrMaxAttemptsReached
		}

		res, err = svc.repo.CreateAttempt(ctx, Attempt{
			QuizID:    q.ID,
			StudentID: studentID,
			StartedAt: now,
			Answers:   map[string]string{},
			MaxScore:  q.MaxScore(),
		}, exec)
		return err
	})
	return res, err
}

func (svc *service) canSubmit(q Quiz, a Attempt, now time.Time) bool {
	deadline := q.Deadline(a.StartedAt, svc.grace)
	return deadline.IsZero() || !now.After(deadline)
}

func (svc *service) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	return svc.repo.GetAttempt(ctx, core.CleanString(id))
}

func (svc *service) SubmitAttempt(ctx context.Context, q Quiz, a Attempt, sa SubmitAnswers, lang string) (AttemptResult, error) {
	var results []QuestionResult
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		cur, err := svc.repo.GetAttemptForUpdate(ctx, a.ID, exec)
		if err != nil {
			return err
		}
		if cur.IsSubmitted() {
			return ErrAttemptSubmitted
		}
		now := nowFunc().UTC()
		if !svc.canSubmit(q, cur, now) {
			return ErrAttemptTimeExceeded
		}

		var score int
		score, results = Grade(q, sa.Answers)
		cur.Answers = sa.Answers
		if cur.Answers == nil {
			cur.Answers = map[string]string{}
		}
		cur.SubmittedAt = now
		cur.Score = score
		cur.MaxScore = q.MaxScore()
		if cur.MaxScore > 0 {
			cur.Percent = math.Round(float64(score)/float64(cur.MaxScore)*10000) / 100
		}
		cur.Passed = cur.Percent >= float64(q.PassPercent)

		if a, err = svc.repo.UpdateAttempt(ctx, cur, exec); err != nil {
			return errors.Wrap(err, "saving attempt")
		}
		if _, err = svc.progSvc.RecordQuiz(ctx, a.StudentID, q.LessonID, a.Percent, a.Passed, exec); err != nil {
			return errors.Wrap(err, "recording quiz")
		}
		return nil
	})
	if err != nil {
		return AttemptResult{}, err
	}

	msg := i18n.T(lang, "quiz.failed")
	if a.Passed {
		msg = i18n.T(lang, "quiz.passed")
	}
	return AttemptResult{Attempt: a, Results: results, Message: msg}, nil
}

func (svc *service) QueryAttempts(ctx context.Context, filter *AttemptFilter) ([]Attempt, error) {
	return svc.repo.QueryAttempts(ctx, filter)
}
