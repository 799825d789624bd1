package practice

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/mathhub/factolearn/core"
	"github.com/mathhub/factolearn/core/i18n"
	"github.com/mathhub/factolearn/core/lesson"
	"github.com/mathhub/factolearn/core/progress"
)

var (
	// errors
	ErrNotFound        = errors.New("practice session not found")
	ErrFinished        = errors.New("practice session is finished")
	ErrAlreadyAnswered = errors.New("problem already answered")

	nowFunc  = time.Now                                      // mockable
	seedFunc = func() int64 { return time.Now().UnixNano() } // mockable
)

type (
	Repository interface {
		CreateSession(ctx context.Context, s Session, exec ...core.DBExecutor) (Session, error)
		GetSession(ctx context.Context, id string, exec ...core.DBExecutor) (Session, error)
		// GetSessionForUpdate returns the session & locks it until the end of the transaction of exec.
		GetSessionForUpdate(ctx context.Context, id string, exec core.DBExecutor) (Session, error)
		// UpdateSession saves the answers & finish time of an unfinished session.
		// It returns ErrFinished when the stored session is already finished.
		UpdateSession(ctx context.Context, s Session, exec ...core.DBExecutor) (Session, error)
		// QuerySessions returns the matching sessions, newest first.
		QuerySessions(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Session, error)
	}

	Service interface {
		Start(ctx context.Context, studentID string, l lesson.Lesson, ns NewSession) (Session, error)
		GetByID(ctx context.Context, id string) (Session, error)
		Query(ctx context.Context, filter *QueryFilter) ([]Session, error)
		// Answer checks & stores the answer to a problem of the session. lang localizes the feedback message.
		Answer(ctx context.Context, s Session, sa SubmitAnswer, lang string) (Session, Feedback, error)
		// Finish closes the session & records its results in the student's progress.
		Finish(ctx context.Context, s Session, lang string) (Session, Summary, error)
	}

	service struct {
		repo    Repository
		progSvc progress.Service
		tx      core.TxRunner
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, progSvc progress.Service, tx core.TxRunner) Service {
	return &service{repo: repo, progSvc: progSvc, tx: tx}
}

func (svc *service) Start(ctx context.Context, studentID string, l lesson.Lesson, ns NewSession) (Session, error) {
	seed := seedFunc()
	problems, err := Generate(l.Topic, ns.Difficulty, seed, ns.Count)
	if err != nil {
		return Session{}, errors.Wrap(err, "generating problems")
	}
	return svc.repo.CreateSession(ctx, Session{
		StudentID:  studentID,
		LessonID:   l.ID,
		Topic:      l.Topic,
		Difficulty: clampDifficulty(ns.Difficulty),
		Seed:       seed,
		Problems:   problems,
		Answers:    make([]*Answer, len(problems)),
		StartedAt:  nowFunc().UTC(),
	})
}

func (svc *service) GetByID(ctx context.Context, id string) (Session, error) {
	return svc.repo.GetSession(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]Session, error) {
	return svc.repo.QuerySessions(ctx, filter)
}

func (svc *service) Answer(ctx context.Context, s Session, sa SubmitAnswer, lang string) (Session, Feedback, error) {
	if sa.Index < 0 || sa.Index >= len(s.Problems) {
		return Session{}, Feedback{}, core.NewValidationError(nil, core.FieldError{Field: "index", Error: "out of range"})
	}

	var fb Feedback
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		cur, err := svc.repo.GetSessionForUpdate(ctx, s.ID, exec)
		if err != nil {
			return err
		}
		if cur.IsFinished() {
			return ErrFinished
		}
		if len(cur.Answers) < len(cur.Problems) {
			cur.Answers = append(cur.Answers, make([]*Answer, len(cur.Problems)-len(cur.Answers))...)
		}
		if cur.Answers[sa.Index] != nil {
			return ErrAlreadyAnswered
		}

		p := cur.Problems[sa.Index]
		correct := Check(p, sa.Answer)
		cur.Answers[sa.Index] = &Answer{Given: sa.Answer, Correct: correct, AnsweredAt: nowFunc().UTC()}
		if s, err = svc.repo.UpdateSession(ctx, cur, exec); err != nil {
			return errors.Wrap(err, "saving answer")
		}
		fb = Feedback{Index: sa.Index, Correct: correct, Expected: p.Answer}
		return nil
	})
	if err != nil {
		return Session{}, Feedback{}, err
	}

	if fb.Correct {
		fb.Message = i18n.T(lang, "practice.feedback.correct")
	} else {
		fb.Message = i18n.T(lang, "practice.feedback.incorrect", map[string]interface{}{"Expected": fb.Expected})
	}
	return s, fb, nil
}

// Finish works on the stored session, s only names it: concurrent calls record the practice once.
func (svc *service) Finish(ctx context.Context, s Session, lang string) (Session, Summary, error) {
	var sum Summary
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		cur, err := svc.repo.GetSessionForUpdate(ctx, s.ID, exec)
		if err != nil {
			return err
		}
		if cur.IsFinished() {
			return ErrFinished
		}

		cur.FinishedAt = nowFunc().UTC()
		sum = cur.Summary()
		if s, err = svc.repo.UpdateSession(ctx, cur, exec); err != nil {
			return errors.Wrap(err, "finishing session")
		}
		if _, err = svc.progSvc.RecordPractice(ctx, s.StudentID, s.LessonID, sum.Correct, sum.Total, exec); err != nil {
			return errors.Wrap(err, "recording practice")
		}
		return nil
	})
	if err != nil {
		return Session{}, Summary{}, err
	}

	sum.Message = i18n.T(lang, "practice.summary", map[string]interface{}{"Correct": sum.Correct, "Total": sum.Total})
	return s, sum, nil
}
