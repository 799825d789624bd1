package lesson

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/mathhub/factolearn/core"
)

var (
	// errors
	ErrNotFound   = errors.New("lesson not found")
	ErrSlugExists = errors.New("a lesson with this slug already exists")

	// DefaultOrdering sorts lessons the way they are meant to be followed.
	DefaultOrdering = []core.DBOrdering{
		{Field: "grade_level", Ascending: true},
		{Field: "position", Ascending: true},
		{Field: "title", Ascending: true},
	}
)

type (
	Repository interface {
		CheckSlugUniqueness(ctx context.Context, slug string, excluded []Lesson, exec ...core.DBExecutor) error
		CreateLesson(ctx context.Context, l Lesson, exec ...core.DBExecutor) (Lesson, error)
		QueryLessons(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Lesson, error)
		// GetLesson finds a Lesson by ID or, when idOrSlug is not a UUID, by slug.
		GetLesson(ctx context.Context, idOrSlug string, exec ...core.DBExecutor) (Lesson, error)
		UpdateLesson(ctx context.Context, l Lesson, exec ...core.DBExecutor) (Lesson, error)
		DeleteLesson(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service interface {
		CheckSlugUniqueness(ctx context.Context, slug string, exclLessons ...Lesson) error
		Create(ctx context.Context, nl NewLesson, authorID string) (Lesson, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Lesson, error)
		GetByID(ctx context.Context, idOrSlug string) (Lesson, error)
		Update(ctx context.Context, l Lesson, ul UpdateLesson) (Lesson, error)
		SetPublished(ctx context.Context, l Lesson, published bool) (Lesson, error)
		Delete(ctx context.Context, id string) error
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) CheckSlugUniqueness(ctx context.Context, slug string, exclLessons ...Lesson) error {
	if err := svc.repo.CheckSlugUniqueness(ctx, slug, exclLessons); err != nil {
		if err == ErrSlugExists {
			return core.NewValidationError(err, core.FieldError{Field: "slug", Error: err.Error()})
		}
		return errors.Wrap(err, "checking slug uniqueness")
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nl NewLesson, authorID string) (Lesson, error) {
	now := time.Now().UTC()
	return svc.repo.CreateLesson(ctx, Lesson{
		Slug:        nl.Slug,
		Title:       nl.Title,
		Summary:     nl.Summary,
		Content:     nl.Content,
		Topic:       nl.Topic,
		GradeLevel:  nl.GradeLevel,
		Position:    nl.Position,
		IsPublished: nl.IsPublished,
		AuthorID:    authorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Lesson, error) {
	ordering = core.FilterOrderings(ordering, "title", "slug", "topic", "grade_level", "position", "created_at", "updated_at")
	if len(ordering) == 0 {
		ordering = DefaultOrdering
	}
	return svc.repo.QueryLessons(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, idOrSlug string) (Lesson, error) {
	return svc.repo.GetLesson(ctx, core.CleanString(idOrSlug))
}

func (svc *service) Update(ctx context.Context, l Lesson, ul UpdateLesson) (Lesson, error) {
	l.Slug = ul.Slug
	l.Title = ul.Title
	l.Topic = ul.Topic
	l.GradeLevel = ul.GradeLevel
	if ul.Summary != nil {
		l.Summary = *ul.Summary
	}
	if ul.Content != nil {
		l.Content = *ul.Content
	}
	if ul.Position != nil {
		l.Position = *ul.Position
	}
	l.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateLesson(ctx, l)
}

func (svc *service) SetPublished(ctx context.Context, l Lesson, published bool) (Lesson, error) {
	if l.IsPublished == published {
		return l, nil
	}
	l.IsPublished = published
	l.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateLesson(ctx, l)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteLesson(ctx, id)
}
