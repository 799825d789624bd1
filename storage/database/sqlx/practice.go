package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/mathhub/factolearn/core"
	"github.com/mathhub/factolearn/core/practice"
)

const practiceColumns = `id, student_id, lesson_id, topic, difficulty, seed, problems, answers, started_at, finished_at`

type practiceRow struct {
	ID         string         `db:"id"`
	StudentID  string         `db:"student_id"`
	LessonID   string         `db:"lesson_id"`
	Topic      string         `db:"topic"`
	Difficulty int            `db:"difficulty"`
	Seed       int64          `db:"seed"`
	Problems   types.JSONText `db:"problems"`
	Answers    types.JSONText `db:"answers"`
	StartedAt  time.Time      `db:"started_at"`
	FinishedAt null.Time      `db:"finished_at"`
}

func toPracticeRow(s practice.Session) (practiceRow, error) {
	problems, err := json.Marshal(s.Problems)
	if err != nil {
		return practiceRow{}, errors.Wrap(err, "encoding problems")
	}
	answers, err := json.Marshal(s.Answers)
	if err != nil {
		return practiceRow{}, errors.Wrap(err, "encoding answers")
	}
	return practiceRow{
		ID:         s.ID,
		StudentID:  s.StudentID,
		LessonID:   s.LessonID,
		Topic:      s.Topic,
		Difficulty: s.Difficulty,
		Seed:       s.Seed,
		Problems:   problems,
		Answers:    answers,
		StartedAt:  s.StartedAt.UTC(),
		FinishedAt: null.NewTime(s.FinishedAt.UTC(), s.IsFinished()),
	}, nil
}

func (row practiceRow) toSession() (practice.Session, error) {
	s := practice.Session{
		ID:         row.ID,
		StudentID:  row.StudentID,
		LessonID:   row.LessonID,
		Topic:      row.Topic,
		Difficulty: row.Difficulty,
		Seed:       row.Seed,
		StartedAt:  row.StartedAt.UTC(),
	}
	if row.FinishedAt.Valid {
		s.FinishedAt = row.FinishedAt.Time.UTC()
	}
	if err := row.Problems.Unmarshal(&s.Problems); err != nil {
		return practice.Session{}, errors.Wrap(err, "decoding problems")
	}
	if err := row.Answers.Unmarshal(&s.Answers); err != nil {
		return practice.Session{}, errors.Wrap(err, "decoding answers")
	}
	if len(s.Answers) < len(s.Problems) {
		s.Answers = append(s.Answers, make([]*practice.Answer, len(s.Problems)-len(s.Answers))...)
	}
	return s, nil
}

type practiceRepository struct {
	repo
}

var _ practice.Repository = (*practiceRepository)(nil)

func NewPracticeRepository(db *sqlx.DB) practice.Repository {
	return &practiceRepository{repo{db: db}}
}

func (r *practiceRepository) CreateSession(ctx context.Context, s practice.Session, exec ...core.DBExecutor) (practice.Session, error) {
	s.ID = newID()
	row, err := toPracticeRow(s)
	if err != nil {
		return practice.Session{}, err
	}
	_, err = namedExec(ctx, r.getExec(exec), `INSERT INTO practice_session (`+practiceColumns+`) VALUES (
		:id, :student_id, :lesson_id, :topic, :difficulty, :seed, :problems, :answers, :started_at, :finished_at)`, row)
	if err != nil {
		return practice.Session{}, errors.Wrap(err, "inserting practice session")
	}
	return s, nil
}

func (r *practiceRepository) GetSession(ctx context.Context, id string, exec ...core.DBExecutor) (practice.Session, error) {
	if !isUUID(id) {
		return practice.Session{}, practice.ErrNotFound
	}
	var row practiceRow
	if err := getQ(ctx, r.getExec(exec), &row, `SELECT `+practiceColumns+` FROM practice_session WHERE id = ?`, id); err != nil {
		return practice.Session{}, trapNoRowsErr(err, practice.ErrNotFound, "finding practice session")
	}
	return row.toSession()
}

func (r *practiceRepository) GetSessionForUpdate(ctx context.Context, id string, exec core.DBExecutor) (practice.Session, error) {
	if !isUUID(id) {
		return practice.Session{}, practice.ErrNotFound
	}
	var row practiceRow
	q := `SELECT ` + practiceColumns + ` FROM practice_session WHERE id = ? FOR UPDATE`
	if err := getQ(ctx, r.getExec([]core.DBExecutor{exec}), &row, q, id); err != nil {
		return practice.Session{}, trapNoRowsErr(err, practice.ErrNotFound, "locking practice session")
	}
	return row.toSession()
}

func (r *practiceRepository) UpdateSession(ctx context.Context, s practice.Session, exec ...core.DBExecutor) (practice.Session, error) {
	row, err := toPracticeRow(s)
	if err != nil {
		return practice.Session{}, err
	}
	res, err := namedExec(ctx, r.getExec(exec), `UPDATE practice_session SET
		answers = :answers, finished_at = :finished_at WHERE id = :id AND finished_at IS NULL`, row)
	if err != nil {
		return practice.Session{}, errors.Wrap(err, "updating practice session")
	}
	if err = rowsAffected(res, practice.ErrFinished); err != nil {
		// no row: either finished or gone
		if _, gerr := r.GetSession(ctx, s.ID, exec...); gerr != nil {
			return practice.Session{}, gerr
		}
		return practice.Session{}, err
	}
	return s, nil
}

func (r *practiceRepository) QuerySessions(ctx context.Context, filter *practice.QueryFilter, exec ...core.DBExecutor) ([]practice.Session, error) {
	var w where
	if filter != nil {
		if filter.StudentID != "" {
			w.add(`student_id = ?`, filter.StudentID)
		}
		if filter.LessonID != "" {
			w.add(`lesson_id = ?`, filter.LessonID)
		}
		if filter.Finished != nil {
			if *filter.Finished {
				w.add(`finished_at IS NOT NULL`)
			} else {
				w.add(`finished_at IS NULL`)
			}
		}
	}

	var rows []practiceRow
	q := `SELECT ` + practiceColumns + ` FROM practice_session` + w.String() + ` ORDER BY started_at DESC`
	if err := selectQ(ctx, r.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying practice sessions")
	}
	sessions := make([]practice.Session, 0, len(rows))
	for _, row := range rows {
		s, err := row.toSession()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}
