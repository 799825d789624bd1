package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/mathhub/factolearn/core"
	"github.com/mathhub/factolearn/core/lesson"
)

const lessonColumns = `id, slug, title, summary, content, topic, grade_level, position, is_published, author_id, created_at, updated_at`

type lessonRow struct {
	ID          string      `db:"id"`
	Slug        string      `db:"slug"`
	Title       string      `db:"title"`
	Summary     string      `db:"summary"`
	Content     string      `db:"content"`
	Topic       string      `db:"topic"`
	GradeLevel  int         `db:"grade_level"`
	Position    int         `db:"position"`
	IsPublished bool        `db:"is_published"`
	AuthorID    null.String `db:"author_id"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func toLessonRow(l lesson.Lesson) lessonRow {
	return lessonRow{
		ID:          l.ID,
		Slug:        l.Slug,
		Title:       l.Title,
		Summary:     l.Summary,
		Content:     l.Content,
		Topic:       l.Topic,
		GradeLevel:  l.GradeLevel,
		Position:    l.Position,
		IsPublished: l.IsPublished,
		AuthorID:    null.NewString(l.AuthorID, l.AuthorID != ""),
		CreatedAt:   l.CreatedAt.UTC(),
		UpdatedAt:   l.UpdatedAt.UTC(),
	}
}

func (row lessonRow) toLesson() lesson.Lesson {
	return lesson.Lesson{
		ID:          row.ID,
		Slug:        row.Slug,
		Title:       row.Title,
		Summary:     row.Summary,
		Content:     row.Content,
		Topic:       row.Topic,
		GradeLevel:  row.GradeLevel,
		Position:    row.Position,
		IsPublished: row.IsPublished,
		AuthorID:    row.AuthorID.String,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

type lessonRepository struct {
	repo
}

var _ lesson.Repository = (*lessonRepository)(nil)

func NewLessonRepository(db *sqlx.DB) lesson.Repository {
	return &lessonRepository{repo{db: db}}
}

func (r *lessonRepository) CheckSlugUniqueness(ctx context.Context, slug string, excluded []lesson.Lesson, exec ...core.DBExecutor) error {
	var w where
	w.add(`slug = ?`, slug)
	if len(excluded) > 0 {
		ids := make([]string, 0, len(excluded))
		for _, l := range excluded {
			ids = append(ids, l.ID)
		}
		w.add(`id NOT IN (?)`, ids)
	}

	var exists bool
	if err := getQ(ctx, r.getExec(exec), &exists, `SELECT EXISTS (SELECT 1 FROM lesson`+w.String()+`)`, w.args...); err != nil {
		return errors.Wrap(err, "checking slug uniqueness")
	}
	if exists {
		return lesson.ErrSlugExists
	}
	return nil
}

func (r *lessonRepository) CreateLesson(ctx context.Context, l lesson.Lesson, exec ...core.DBExecutor) (lesson.Lesson, error) {
	l.ID = newID()
	row := toLessonRow(l)
	_, err := namedExec(ctx, r.getExec(exec), `INSERT INTO lesson (`+lessonColumns+`) VALUES (
		:id, :slug, :title, :summary, :content, :topic, :grade_level, :position, :is_published, :author_id, :created_at, :updated_at)`, row)
	if err != nil {
		if isUniqueViolation(err) {
			return lesson.Lesson{}, lesson.ErrSlugExists
		}
		return lesson.Lesson{}, errors.Wrap(err, "inserting lesson")
	}
	return row.toLesson(), nil
}

func (r *lessonRepository) QueryLessons(
	ctx context.Context, filter *lesson.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor,
) ([]lesson.Lesson, error) {
	var w where
	if filter != nil {
		if filter.IDs != nil {
			if len(filter.IDs) == 0 {
				return []lesson.Lesson{}, nil
			}
			w.add(`id IN (?)`, filter.IDs)
		}
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			w.add(`title ILIKE ? OR summary ILIKE ?`, val, val)
		}
		if len(filter.Topics) > 0 {
			w.add(`topic IN (?)`, filter.Topics)
		}
		if filter.GradeLevel > 0 {
			w.add(`grade_level = ?`, filter.GradeLevel)
		}
		if filter.IsPublished != nil {
			w.add(`is_published = ?`, *filter.IsPublished)
		}
		if filter.AuthorID != "" {
			if !isUUID(filter.AuthorID) {
				return []lesson.Lesson{}, nil
			}
			w.add(`author_id = ?`, filter.AuthorID)
		}
	}

	var rows []lessonRow
	if err := selectQ(ctx, r.getExec(exec), &rows, `SELECT `+lessonColumns+` FROM lesson`+w.String()+orderBy(ordering), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}
	lessons := make([]lesson.Lesson, 0, len(rows))
	for _, row := range rows {
		lessons = append(lessons, row.toLesson())
	}
	return lessons, nil
}

func (r *lessonRepository) GetLesson(ctx context.Context, idOrSlug string, exec ...core.DBExecutor) (lesson.Lesson, error) {
	col := "slug"
	if isUUID(idOrSlug) {
		col = "id"
	}
	var row lessonRow
	if err := getQ(ctx, r.getExec(exec), &row, `SELECT `+lessonColumns+` FROM lesson WHERE `+col+` = ?`, idOrSlug); err != nil {
		return lesson.Lesson{}, trapNoRowsErr(err, lesson.ErrNotFound, "finding lesson")
	}
	return row.toLesson(), nil
}

func (r *lessonRepository) UpdateLesson(ctx context.Context, l lesson.Lesson, exec ...core.DBExecutor) (lesson.Lesson, error) {
	row := toLessonRow(l)
	res, err := namedExec(ctx, r.getExec(exec), `UPDATE lesson SET
		slug = :slug, title = :title, summary = :summary, content = :content, topic = :topic, grade_level = :grade_level,
		position = :position, is_published = :is_published, author_id = :author_id, updated_at = :updated_at
		WHERE id = :id`, row)
	if err != nil {
		if isUniqueViolation(err) {
			return lesson.Lesson{}, lesson.ErrSlugExists
		}
		return lesson.Lesson{}, errors.Wrap(err, "updating lesson")
	}
	if err = rowsAffected(res, lesson.ErrNotFound); err != nil {
		return lesson.Lesson{}, err
	}
	return row.toLesson(), nil
}

func (r *lessonRepository) DeleteLesson(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return lesson.ErrNotFound
	}
	res, err := execQ(ctx, r.getExec(exec), `DELETE FROM lesson WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	return rowsAffected(res, lesson.ErrNotFound)
}
