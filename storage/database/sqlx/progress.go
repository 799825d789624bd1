package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/mathhub/factolearn/core"
	"github.com/mathhub/factolearn/core/progress"
)

const (
	progressColumns = `student_id, lesson_id, status, practice_sessions, practice_correct, practice_total, quiz_attempts,
		best_quiz_percent, quiz_passed, mastery, last_activity_at, completed_at`
	activityColumns = `id, student_id, lesson_id, kind, score, created_at`
)

type progressRow struct {
	StudentID        string    `db:"student_id"`
	LessonID         string    `db:"lesson_id"`
	Status           string    `db:"status"`
	PracticeSessions int       `db:"practice_sessions"`
	PracticeCorrect  int       `db:"practice_correct"`
	PracticeTotal    int       `db:"practice_total"`
	QuizAttempts     int       `db:"quiz_attempts"`
	BestQuizPercent  float64   `db:"best_quiz_percent"`
	QuizPassed       bool      `db:"quiz_passed"`
	Mastery          float64   `db:"mastery"`
	LastActivityAt   null.Time `db:"last_activity_at"`
	CompletedAt      null.Time `db:"completed_at"`
}

func toProgressRow(lp progress.LessonProgress) progressRow {
	return progressRow{
		StudentID:        lp.StudentID,
		LessonID:         lp.LessonID,
		Status:           lp.Status,
		PracticeSessions: lp.PracticeSessions,
		PracticeCorrect:  lp.PracticeCorrect,
		PracticeTotal:    lp.PracticeTotal,
		QuizAttempts:     lp.QuizAttempts,
		BestQuizPercent:  lp.BestQuizPercent,
		QuizPassed:       lp.QuizPassed,
		Mastery:          lp.Mastery,
		LastActivityAt:   null.NewTime(lp.LastActivityAt.UTC(), !lp.LastActivityAt.IsZero()),
		CompletedAt:      null.NewTime(lp.CompletedAt.UTC(), !lp.CompletedAt.IsZero()),
	}
}

func (row progressRow) toProgress() progress.LessonProgress {
	lp := progress.LessonProgress{
		StudentID:        row.StudentID,
		LessonID:         row.LessonID,
		Status:           row.Status,
		PracticeSessions: row.PracticeSessions,
		PracticeCorrect:  row.PracticeCorrect,
		PracticeTotal:    row.PracticeTotal,
		QuizAttempts:     row.QuizAttempts,
		BestQuizPercent:  row.BestQuizPercent,
		QuizPassed:       row.QuizPassed,
		Mastery:          row.Mastery,
	}
	if row.LastActivityAt.Valid {
		lp.LastActivityAt = row.LastActivityAt.Time.UTC()
	}
	if row.CompletedAt.Valid {
		lp.CompletedAt = row.CompletedAt.Time.UTC()
	}
	return lp
}

type activityRow struct {
	ID        string      `db:"id"`
	StudentID string      `db:"student_id"`
	LessonID  null.String `db:"lesson_id"`
	Kind      string      `db:"kind"`
	Score     float64     `db:"score"`
	CreatedAt time.Time   `db:"created_at"`
}

type progressRepository struct {
	repo
}

var _ progress.Repository = (*progressRepository)(nil)

func NewProgressRepository(db *sqlx.DB) progress.Repository {
	return &progressRepository{repo{db: db}}
}

func (r *progressRepository) GetProgress(ctx context.Context, studentID, lessonID string, exec ...core.DBExecutor) (progress.LessonProgress, error) {
	if !isUUID(studentID) || !isUUID(lessonID) {
		return progress.LessonProgress{}, progress.ErrNotFound
	}
	var row progressRow
	q := `SELECT ` + progressColumns + ` FROM lesson_progress WHERE student_id = ? AND lesson_id = ?`
	if err := getQ(ctx, r.getExec(exec), &row, q, studentID, lessonID); err != nil {
		return progress.LessonProgress{}, trapNoRowsErr(err, progress.ErrNotFound, "finding lesson progress")
	}
	return row.toProgress(), nil
}

func (r *progressRepository) LockProgress(ctx context.Context, studentID, lessonID string, exec core.DBExecutor) (progress.LessonProgress, error) {
	if !isUUID(studentID) || !isUUID(lessonID) {
		return progress.LessonProgress{}, progress.ErrNotFound
	}
	ex := r.getExec([]core.DBExecutor{exec})
	_, err := execQ(ctx, ex, `INSERT INTO lesson_progress (student_id, lesson_id, status) VALUES (?, ?, ?)
		ON CONFLICT (student_id, lesson_id) DO NOTHING`, studentID, lessonID, progress.StatusNotStarted)
	if err != nil {
		return progress.LessonProgress{}, errors.Wrap(err, "inserting lesson progress")
	}
	var row progressRow
	q := `SELECT ` + progressColumns + ` FROM lesson_progress WHERE student_id = ? AND lesson_id = ? FOR UPDATE`
	if err = getQ(ctx, ex, &row, q, studentID, lessonID); err != nil {
		return progress.LessonProgress{}, errors.Wrap(err, "locking lesson progress")
	}
	return row.toProgress(), nil
}

func (r *progressRepository) SaveProgress(ctx context.Context, lp progress.LessonProgress, exec ...core.DBExecutor) (progress.LessonProgress, error) {
	row := toProgressRow(lp)
	_, err := namedExec(ctx, r.getExec(exec), `INSERT INTO lesson_progress (`+progressColumns+`) VALUES (
		:student_id, :lesson_id, :status, :practice_sessions, :practice_correct, :practice_total, :quiz_attempts,
		:best_quiz_percent, :quiz_passed, :mastery, :last_activity_at, :completed_at)
		ON CONFLICT (student_id, lesson_id) DO UPDATE SET
		status = EXCLUDED.status, practice_sessions = EXCLUDED.practice_sessions,
		practice_correct = EXCLUDED.practice_correct, practice_total = EXCLUDED.practice_total,
		quiz_attempts = EXCLUDED.quiz_attempts, best_quiz_percent = EXCLUDED.best_quiz_percent,
		quiz_passed = EXCLUDED.quiz_passed, mastery = EXCLUDED.mastery,
		last_activity_at = EXCLUDED.last_activity_at, completed_at = EXCLUDED.completed_at`, row)
	if err != nil {
		return progress.LessonProgress{}, errors.Wrap(err, "saving lesson progress")
	}
	return row.toProgress(), nil
}

func (r *progressRepository) QueryProgress(ctx context.Context, filter *progress.QueryFilter, exec ...core.DBExecutor) ([]progress.LessonProgress, error) {
	var w where
	if filter != nil {
		if len(filter.StudentIDs) > 0 {
			w.add(`student_id IN (?)`, filter.StudentIDs)
		}
		if len(filter.LessonIDs) > 0 {
			w.add(`lesson_id IN (?)`, filter.LessonIDs)
		}
		if len(filter.Statuses) > 0 {
			w.add(`status IN (?)`, filter.Statuses)
		}
	}

	var rows []progressRow
	q := `SELECT ` + progressColumns + ` FROM lesson_progress` + w.String() + ` ORDER BY last_activity_at DESC NULLS LAST`
	if err := selectQ(ctx, r.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying lesson progress")
	}
	lps := make([]progress.LessonProgress, 0, len(rows))
	for _, row := range rows {
		lps = append(lps, row.toProgress())
	}
	return lps, nil
}

func (r *progressRepository) CreateActivity(ctx context.Context, a progress.Activity, exec ...core.DBExecutor) (progress.Activity, error) {
	a.ID = newID()
	row := activityRow{
		ID:        a.ID,
		StudentID: a.StudentID,
		LessonID:  null.NewString(a.LessonID, a.LessonID != ""),
		Kind:      a.Kind,
		Score:     a.Score,
		CreatedAt: a.CreatedAt.UTC(),
	}
	_, err := namedExec(ctx, r.getExec(exec), `INSERT INTO activity (`+activityColumns+`)
		VALUES (:id, :student_id, :lesson_id, :kind, :score, :created_at)`, row)
	if err != nil {
		return progress.Activity{}, errors.Wrap(err, "inserting activity")
	}
	return a, nil
}

func (r *progressRepository) QueryActivities(ctx context.Context, filter *progress.ActivityFilter, exec ...core.DBExecutor) ([]progress.Activity, error) {
	var w where
	limit := ""
	if filter != nil {
		if len(filter.StudentIDs) > 0 {
			w.add(`student_id IN (?)`, filter.StudentIDs)
		}
		if len(filter.LessonIDs) > 0 {
			w.add(`lesson_id IN (?)`, filter.LessonIDs)
		}
		if len(filter.Kinds) > 0 {
			w.add(`kind IN (?)`, filter.Kinds)
		}
		if !filter.From.IsZero() {
			w.add(`created_at >= ?`, filter.From.UTC())
		}
		if !filter.To.IsZero() {
			w.add(`created_at < ?`, filter.To.UTC())
		}
		if filter.Limit > 0 {
			limit = " LIMIT ?"
			w.args = append(w.args, filter.Limit)
		}
	}

	var rows []activityRow
	q := `SELECT ` + activityColumns + ` FROM activity` + w.String() + ` ORDER BY created_at DESC` + limit
	if err := selectQ(ctx, r.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying activities")
	}
	acts := make([]progress.Activity, 0, len(rows))
	for _, row := range rows {
		acts = append(acts, progress.Activity{
			ID:        row.ID,
			StudentID: row.StudentID,
			LessonID:  row.LessonID.String,
			Kind:      row.Kind,
			Score:     row.Score,
			CreatedAt: row.CreatedAt.UTC(),
		})
	}
	return acts, nil
}
