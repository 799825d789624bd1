package progress

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/mathhub/factolearn/core"
)

var (
	// errors
	ErrNotFound = errors.New("progress not found")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		// GetProgress returns ErrNotFound when the student never touched the lesson.
		GetProgress(ctx context.Context, studentID, lessonID string, exec ...core.DBExecutor) (LessonProgress, error)
		// LockProgress returns the student's progress on the lesson, a not started one if there's none yet,
		// & locks it until the end of the transaction of exec.
		LockProgress(ctx context.Context, studentID, lessonID string, exec core.DBExecutor) (LessonProgress, error)
		SaveProgress(ctx context.Context, lp LessonProgress, exec ...core.DBExecutor) (LessonProgress, error)
		QueryProgress(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]LessonProgress, error)
		CreateActivity(ctx context.Context, a Activity, exec ...core.DBExecutor) (Activity, error)
		// QueryActivities returns the matching activities, newest first.
		QueryActivities(ctx context.Context, filter *ActivityFilter, exec ...core.DBExecutor) ([]Activity, error)
	}

	// Service records what students do & derives their progress from it.
	// The Record* methods join the transaction of the given executor, if any, or run in their own.
	Service interface {
		RecordLessonView(ctx context.Context, studentID, lessonID string, exec ...core.DBExecutor) (LessonProgress, error)
		RecordPractice(ctx context.Context, studentID, lessonID string, correct, total int, exec ...core.DBExecutor) (LessonProgress, error)
		RecordQuiz(ctx context.Context, studentID, lessonID string, percent float64, passed bool, exec ...core.DBExecutor) (LessonProgress, error)
		Get(ctx context.Context, studentID, lessonID string) (LessonProgress, error)
		Query(ctx context.Context, filter *QueryFilter) ([]LessonProgress, error)
		QueryActivities(ctx context.Context, filter *ActivityFilter) ([]Activity, error)
		StudentSummary(ctx context.Context, studentID string) (Summary, error)
	}

	service struct {
		repo Repository
		tx   core.TxRunner
		conf core.LearningConfig
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, tx core.TxRunner, conf core.LearningConfig) Service {
	return &service{repo: repo, tx: tx, conf: conf}
}

// inTx runs fn with the caller's executor or, when there's none, inside a new transaction.
func (svc *service) inTx(ctx context.Context, exec []core.DBExecutor, fn func(exec core.DBExecutor) error) error {
	if len(exec) > 0 {
		return fn(exec[0])
	}
	return svc.tx.RunInTx(ctx, fn)
}

// record loads (or starts) the student's progress on the lesson, lets apply update it & saves it along with
// the activity of the given kind. A lesson_completed activity is added when the update completes the lesson.
func (svc *service) record(
	ctx context.Context, studentID, lessonID, kind string, score float64, exec []core.DBExecutor,
	apply func(lp *LessonProgress),
) (LessonProgress, error) {
	var res LessonProgress
	err := svc.inTx(ctx, exec, func(ex core.DBExecutor) error {
		lp, err := svc.repo.LockProgress(ctx, studentID, lessonID, ex)
		if err != nil {
			return errors.Wrap(err, "locking progress")
		}

		now := nowFunc().UTC()
		apply(&lp)
		completed := lp.refresh(svc.conf, now)

		if res, err = svc.repo.SaveProgress(ctx, lp, ex); err != nil {
			return errors.Wrap(err, "saving progress")
		}
		act := Activity{StudentID: studentID, LessonID: lessonID, Kind: kind, Score: score, CreatedAt: now}
		if _, err = svc.repo.CreateActivity(ctx, act, ex); err != nil {
			return errors.Wrap(err, "creating activity")
		}
		if completed {
			act.Kind = ActivityLessonCompleted
			act.Score = lp.Mastery
			if _, err = svc.repo.CreateActivity(ctx, act, ex); err != nil {
				return errors.Wrap(err, "creating completion activity")
			}
		}
		return nil
	})
	return res, err
}

func (svc *service) RecordLessonView(ctx context.Context, studentID, lessonID string, exec ...core.DBExecutor) (LessonProgress, error) {
	return svc.record(ctx, studentID, lessonID, ActivityLessonViewed, 0, exec, func(*LessonProgress) {})
}

func (svc *service) RecordPractice(
	ctx context.Context, studentID, lessonID string, correct, total int, exec ...core.DBExecutor,
) (LessonProgress, error) {
	var accuracy float64
	if total > 0 {
		accuracy = float64(correct) / float64(total)
	}
	return svc.record(ctx, studentID, lessonID, ActivityPracticeFinished, accuracy, exec, func(lp *LessonProgress) {
		lp.PracticeSessions++
		lp.PracticeCorrect += correct
		lp.PracticeTotal += total
	})
}

func (svc *service) RecordQuiz(
	ctx context.Context, studentID, lessonID string, percent float64, passed bool, exec ...core.DBExecutor,
) (LessonProgress, error) {
	return svc.record(ctx, studentID, lessonID, ActivityQuizSubmitted, percent, exec, func(lp *LessonProgress) {
		lp.QuizAttempts++
		if percent > lp.BestQuizPercent {
			lp.BestQuizPercent = percent
		}
		lp.QuizPassed = lp.QuizPassed || passed
	})
}

func (svc *service) Get(ctx context.Context, studentID, lessonID string) (LessonProgress, error) {
	return svc.repo.GetProgress(ctx, studentID, lessonID)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]LessonProgress, error) {
	return svc.repo.QueryProgress(ctx, filter)
}

func (svc *service) QueryActivities(ctx context.Context, filter *ActivityFilter) ([]Activity, error) {
	return svc.repo.QueryActivities(ctx, filter)
}

func (svc *service) StudentSummary(ctx context.Context, studentID string) (Summary, error) {
	lps, err := svc.repo.QueryProgress(ctx, &QueryFilter{StudentIDs: []string{studentID}})
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying progress")
	}
	acts, err := svc.repo.QueryActivities(ctx, &ActivityFilter{StudentIDs: []string{studentID}})
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying activities")
	}

	sum := Summarize(studentID, lps)
	times := make([]time.Time, 0, len(acts))
	for _, a := range acts {
		times = append(times, a.CreatedAt)
	}
	sum.CurrentStreak, sum.LongestStreak = Streaks(times, nowFunc())
	return sum, nil
}

// Summarize aggregates lps, which must all belong to the student. Streaks are left out.
func Summarize(studentID string, lps []LessonProgress) Summary {
	sum := Summary{StudentID: studentID, Lessons: lps}
	if sum.Lessons == nil {
		sum.Lessons = []LessonProgress{}
	}

	var mastery, bestQuiz float64
	var quizzed int
	for _, lp := range lps {
		if lp.Status != StatusNotStarted {
			sum.LessonsStarted++
		}
		if lp.IsCompleted() {
			sum.LessonsCompleted++
		}
		sum.PracticeCorrect += lp.PracticeCorrect
		sum.PracticeTotal += lp.PracticeTotal
		mastery += lp.Mastery
		if lp.QuizAttempts > 0 {
			quizzed++
			bestQuiz += lp.BestQuizPercent
		}
		if lp.LastActivityAt.After(sum.LastActivityAt) {
			sum.LastActivityAt = lp.LastActivityAt
		}
	}
	if len(lps) > 0 {
		sum.AverageMastery = mastery / float64(len(lps))
	}
	if quizzed > 0 {
		sum.BestQuizAverage = bestQuiz / float64(quizzed)
	}
	return sum
}
