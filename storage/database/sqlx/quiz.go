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
	"github.com/mathhub/factolearn/core/quiz"
)

const (
	quizColumns    = `id, lesson_id, title, description, time_limit, pass_percent, max_attempts, is_published, questions, author_id, created_at, updated_at`
	attemptColumns = `id, quiz_id, student_id, started_at, submitted_at, answers, score, max_score, percent, passed`
)

type quizRow struct {
	ID          string         `db:"id"`
	LessonID    string         `db:"lesson_id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	TimeLimit   int            `db:"time_limit"`
	PassPercent int            `db:"pass_percent"`
	MaxAttempts int            `db:"max_attempts"`
	IsPublished bool           `db:"is_published"`
	Questions   types.JSONText `db:"questions"`
	AuthorID    null.String    `db:"author_id"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func toQuizRow(q quiz.Quiz) (quizRow, error) {
	questions := q.Questions
	if questions == nil {
		questions = []quiz.Question{}
	}
	data, err := json.Marshal(questions)
	if err != nil {
		return quizRow{}, errors.Wrap(err, "encoding questions")
	}
	return quizRow{
		ID:          q.ID,
		LessonID:    q.LessonID,
		Title:       q.Title,
		Description: q.Description,
		TimeLimit:   q.TimeLimit,
		PassPercent: q.PassPercent,
		MaxAttempts: q.MaxAttempts,
		IsPublished: q.IsPublished,
		Questions:   data,
		AuthorID:    null.NewString(q.AuthorID, q.AuthorID != ""),
		CreatedAt:   q.CreatedAt.UTC(),
		UpdatedAt:   q.UpdatedAt.UTC(),
	}, nil
}

func (row quizRow) toQuiz() (quiz.Quiz, error) {
	q := quiz.Quiz{
		ID:          row.ID,
		LessonID:    row.LessonID,
		Title:       row.Title,
		Description: row.Description,
		TimeLimit:   row.TimeLimit,
		PassPercent: row.PassPercent,
		MaxAttempts: row.MaxAttempts,
		IsPublished: row.IsPublished,
		AuthorID:    row.AuthorID.String,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
	if err := row.Questions.Unmarshal(&q.Questions); err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "decoding questions")
	}
	return q, nil
}

type attemptRow struct {
	ID          string         `db:"id"`
	QuizID      string         `db:"quiz_id"`
	StudentID   string         `db:"student_id"`
	StartedAt   time.Time      `db:"started_at"`
	SubmittedAt null.Time      `db:"submitted_at"`
	Answers     types.JSONText `db:"answers"`
	Score       int            `db:"score"`
	MaxScore    int            `db:"max_score"`
	Percent     float64        `db:"percent"`
	Passed      bool           `db:"passed"`
}

func toAttemptRow(a quiz.Attempt) (attemptRow, error) {
	answers := a.Answers
	if answers == nil {
		answers = map[string]string{}
	}
	data, err := json.Marshal(answers)
	if err != nil {
		return attemptRow{}, errors.Wrap(err, "encoding answers")
	}
	return attemptRow{
		ID:          a.ID,
		QuizID:      a.QuizID,
		StudentID:   a.StudentID,
		StartedAt:   a.StartedAt.UTC(),
		SubmittedAt: null.NewTime(a.SubmittedAt.UTC(), a.IsSubmitted()),
		Answers:     data,
		Score:       a.Score,
		MaxScore:    a.MaxScore,
		Percent:     a.Percent,
		Passed:      a.Passed,
	}, nil
}

func (row attemptRow) toAttempt() (quiz.Attempt, error) {
	a := quiz.Attempt{
		ID:        row.ID,
		QuizID:    row.QuizID,
		StudentID: row.StudentID,
		StartedAt: row.StartedAt.UTC(),
		Score:     row.Score,
		MaxScore:  row.MaxScore,
		Percent:   row.Percent,
		Passed:    row.Passed,
	}
	if row.SubmittedAt.Valid {
		a.SubmittedAt = row.SubmittedAt.Time.UTC()
	}
	if err := row.Answers.Unmarshal(&a.Answers); err != nil {
		return quiz.Attempt{}, errors.Wrap(err, "decoding answers")
	}
	if a.Answers == nil {
		a.Answers = map[string]string{}
	}
	return a, nil
}

type quizRepository struct {
	repo
}

var _ quiz.Repository = (*quizRepository)(nil)

func NewQuizRepository(db *sqlx.DB) quiz.Repository {
	return &quizRepository{repo{db: db}}
}

func (r *quizRepository) CreateQuiz(ctx context.Context, q quiz.Quiz, exec ...core.DBExecutor) (quiz.Quiz, error) {
	q.ID = newID()
	row, err := toQuizRow(q)
	if err != nil {
		return quiz.Quiz{}, err
	}
	_, err = namedExec(ctx, r.getExec(exec), `INSERT INTO quiz (`+quizColumns+`) VALUES (
		:id, :lesson_id, :title, :description, :time_limit, :pass_percent, :max_attempts, :is_published, :questions,
		:author_id, :created_at, :updated_at)`, row)
	if err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "inserting quiz")
	}
	return q, nil
}

func (r *quizRepository) QueryQuizzes(
	ctx context.Context, filter *quiz.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor,
) ([]quiz.Quiz, error) {
	var w where
	if filter != nil {
		if filter.Search != "" {
			w.add(`title ILIKE ?`, "%"+filter.Search+"%")
		}
		if len(filter.LessonIDs) > 0 {
			w.add(`lesson_id IN (?)`, filter.LessonIDs)
		}
		if filter.IsPublished != nil {
			w.add(`is_published = ?`, *filter.IsPublished)
		}
		if filter.AuthorID != "" {
			w.add(`author_id = ?`, filter.AuthorID)
		}
	}

	var rows []quizRow
	if err := selectQ(ctx, r.getExec(exec), &rows, `SELECT `+quizColumns+` FROM quiz`+w.String()+orderBy(ordering), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying quizzes")
	}
	quizzes := make([]quiz.Quiz, 0, len(rows))
	for _, row := range rows {
		q, err := row.toQuiz()
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, nil
}

func (r *quizRepository) GetQuiz(ctx context.Context, id string, exec ...core.DBExecutor) (quiz.Quiz, error) {
	if !isUUID(id) {
		return quiz.Quiz{}, quiz.ErrNotFound
	}
	var row quizRow
	if err := getQ(ctx, r.getExec(exec), &row, `SELECT `+quizColumns+` FROM quiz WHERE id = ?`, id); err != nil {
		return quiz.Quiz{}, trapNoRowsErr(err, quiz.ErrNotFound, "finding quiz")
	}
	return row.toQuiz()
}

func (r *quizRepository) UpdateQuiz(ctx context.Context, q quiz.Quiz, exec ...core.DBExecutor) (quiz.Quiz, error) {
	row, err := toQuizRow(q)
	if err != nil {
		return quiz.Quiz{}, err
	}
	res, err := namedExec(ctx, r.getExec(exec), `UPDATE quiz SET
		title = :title, description = :description, time_limit = :time_limit, pass_percent = :pass_percent,
		max_attempts = :max_attempts, is_published = :is_published, questions = :questions, updated_at = :updated_at
		WHERE id = :id`, row)
	if err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "updating quiz")
	}
	if err = rowsAffected(res, quiz.ErrNotFound); err != nil {
		return quiz.Quiz{}, err
	}
	return q, nil
}

func (r *quizRepository) DeleteQuiz(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return quiz.ErrNotFound
	}
	res, err := execQ(ctx, r.getExec(exec), `DELETE FROM quiz WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	return rowsAffected(res, quiz.ErrNotFound)
}

func (r *quizRepository) CreateAttempt(ctx context.Context, a quiz.Attempt, exec ...core.DBExecutor) (quiz.Attempt, error) {
	a.ID = newID()
	row, err := toAttemptRow(a)
	if err != nil {
		return quiz.Attempt{}, err
	}
	_, err = namedExec(ctx, r.getExec(exec), `INSERT INTO quiz_attempt (`+attemptColumns+`) VALUES (
		:id, :quiz_id, :student_id, :started_at, :submitted_at, :answers, :score, :max_score, :percent, :passed)`, row)
	if err != nil {
		return quiz.Attempt{}, errors.Wrap(err, "inserting quiz attempt")
	}
	return row.toAttempt()
}

func (r *quizRepository) GetAttempt(ctx context.Context, id string, exec ...core.DBExecutor) (quiz.Attempt, error) {
	if !isUUID(id) {
		return quiz.Attempt{}, quiz.ErrAttemptNotFound
	}
	var row attemptRow
	if err := getQ(ctx, r.getExec(exec), &row, `SELECT `+attemptColumns+` FROM quiz_attempt WHERE id = ?`, id); err != nil {
		return quiz.Attempt{}, trapNoRowsErr(err, quiz.ErrAttemptNotFound, "finding quiz attempt")
	}
	return row.toAttempt()
}

func (r *quizRepository) GetAttemptForUpdate(ctx context.Context, id string, exec core.DBExecutor) (quiz.Attempt, error) {
	if !isUUID(id) {
		return quiz.Attempt{}, quiz.ErrAttemptNotFound
	}
	var row attemptRow
	q := `SELECT ` + attemptColumns + ` FROM quiz_attempt WHERE id = ? FOR UPDATE`
	if err := getQ(ctx, r.getExec([]core.DBExecutor{exec}), &row, q, id); err != nil {
		return quiz.Attempt{}, trapNoRowsErr(err, quiz.ErrAttemptNotFound, "locking quiz attempt")
	}
	return row.toAttempt()
}

func (r *quizRepository) UpdateAttempt(ctx context.Context, a quiz.Attempt, exec ...core.DBExecutor) (quiz.Attempt, error) {
	row, err := toAttemptRow(a)
	if err != nil {
		return quiz.Attempt{}, err
	}
	res, err := namedExec(ctx, r.getExec(exec), `UPDATE quiz_attempt SET
		submitted_at = :submitted_at, answers = :answers, score = :score, max_score = :max_score,
		percent = :percent, passed = :passed
		WHERE id = :id AND submitted_at IS NULL`, row)
	if err != nil {
		return quiz.Attempt{}, errors.Wrap(err, "updating quiz attempt")
	}
	if err = rowsAffected(res, quiz.ErrAttemptSubmitted); err != nil {
		// no row: either submitted or gone
		if _, gerr := r.GetAttempt(ctx, a.ID, exec...); gerr != nil {
			return quiz.Attempt{}, gerr
		}
		return quiz.Attempt{}, err
	}
	return a, nil
}

func (r *quizRepository) QueryAttempts(ctx context.Context, filter *quiz.AttemptFilter, exec ...core.DBExecutor) ([]quiz.Attempt, error) {
	var w where
	if filter != nil {
		if len(filter.QuizIDs) > 0 {
			w.add(`quiz_id IN (?)`, filter.QuizIDs)
		}
		if len(filter.StudentIDs) > 0 {
			w.add(`student_id IN (?)`, filter.StudentIDs)
		}
		if filter.Submitted != nil {
			if *filter.Submitted {
				w.add(`submitted_at IS NOT NULL`)
			} else {
				w.add(`submitted_at IS NULL`)
			}
		}
	}

	var rows []attemptRow
	q := `SELECT ` + attemptColumns + ` FROM quiz_attempt` + w.String() + ` ORDER BY started_at DESC`
	if err := selectQ(ctx, r.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying quiz attempts")
	}
	attempts := make([]quiz.Attempt, 0, len(rows))
	for _, row := range rows {
		a, err := row.toAttempt()
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, nil
}
