package inmemdb

import (
	"context"
	"strings"

	"github.com/mathhub/factolearn/core"
	"github.com/mathhub/factolearn/core/lesson"
	"github.com/mathhub/factolearn/core/quiz"
)

var lessonComparators = comparators[lesson.Lesson]{
	"title":       func(a, b lesson.Lesson) int { return cmpStrings(a.Title, b.Title) },
	"slug":        func(a, b lesson.Lesson) int { return strings.Compare(a.Slug, b.Slug) },
	"topic":       func(a, b lesson.Lesson) int { return strings.Compare(a.Topic, b.Topic) },
	"grade_level": func(a, b lesson.Lesson) int { return cmpInts(a.GradeLevel, b.GradeLevel) },
	"position":    func(a, b lesson.Lesson) int { return cmpInts(a.Position, b.Position) },
	"created_at":  func(a, b lesson.Lesson) int { return cmpTimes(a.CreatedAt, b.CreatedAt) },
	"updated_at":  func(a, b lesson.Lesson) int { return cmpTimes(a.UpdatedAt, b.UpdatedAt) },
	"id":          func(a, b lesson.Lesson) int { return strings.Compare(a.ID, b.ID) },
}

type lessonRepository struct {
	db *DB
}

var _ lesson.Repository = (*lessonRepository)(nil)

func NewLessonRepository(db *DB) lesson.Repository {
	return &lessonRepository{db: db}
}

func (repo *lessonRepository) CheckSlugUniqueness(_ context.Context, slug string, excluded []lesson.Lesson, _ ...core.DBExecutor) error {
	clash := repo.db.lesson.filter(func(l lesson.Lesson) bool {
		for _, ex := range excluded {
			if ex.ID == l.ID {
				return false
			}
		}
		return l.Slug == slug
	})
	if len(clash) > 0 {
		return lesson.ErrSlugExists
	}
	return nil
}

func (repo *lessonRepository) CreateLesson(ctx context.Context, l lesson.Lesson, _ ...core.DBExecutor) (lesson.Lesson, error) {
	if err := repo.CheckSlugUniqueness(ctx, l.Slug, nil); err != nil {
		return lesson.Lesson{}, err
	}
	l.ID = newID()
	repo.db.lesson.set(l.ID, l)
	return l, nil
}

func (repo *lessonRepository) QueryLessons(
	_ context.Context, filter *lesson.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor,
) ([]lesson.Lesson, error) {
	lessons := repo.db.lesson.filter(func(l lesson.Lesson) bool {
		if filter == nil {
			return true
		}
		if filter.IDs != nil && !core.ContainsString(filter.IDs, l.ID) {
			return false
		}
		if filter.Search != "" && !(containsFold(l.Title, filter.Search) || containsFold(l.Summary, filter.Search)) {
			return false
		}
		if len(filter.Topics) > 0 && !core.ContainsString(filter.Topics, l.Topic) {
			return false
		}
		if filter.GradeLevel > 0 && l.GradeLevel != filter.GradeLevel {
			return false
		}
		if filter.IsPublished != nil && l.IsPublished != *filter.IsPublished {
			return false
		}
		if filter.AuthorID != "" && l.AuthorID != filter.AuthorID {
			return false
		}
		return true
	})

	sortRows(lessons, orderingWith(ordering, core.DBOrdering{Field: "id", Ascending: true}), lessonComparators)
	return lessons, nil
}

func (repo *lessonRepository) GetLesson(_ context.Context, idOrSlug string, _ ...core.DBExecutor) (lesson.Lesson, error) {
	if l, ok := repo.db.lesson.get(idOrSlug); ok {
		return l, nil
	}
	matches := repo.db.lesson.filter(func(l lesson.Lesson) bool { return l.Slug == idOrSlug })
	if len(matches) == 0 {
		return lesson.Lesson{}, lesson.ErrNotFound
	}
	return matches[0], nil
}

func (repo *lessonRepository) UpdateLesson(ctx context.Context, l lesson.Lesson, _ ...core.DBExecutor) (lesson.Lesson, error) {
	if err := repo.CheckSlugUniqueness(ctx, l.Slug, []lesson.Lesson{l}); err != nil {
		return lesson.Lesson{}, err
	}
	if !repo.db.lesson.update(l.ID, l) {
		return lesson.Lesson{}, lesson.ErrNotFound
	}
	return l, nil
}

// DeleteLesson also deletes the quizzes of the lesson.
func (repo *lessonRepository) DeleteLesson(_ context.Context, id string, _ ...core.DBExecutor) error {
	if repo.db.lesson.delete(id) == 0 {
		return lesson.ErrNotFound
	}
	for _, q := range repo.db.quiz.filter(func(q quiz.Quiz) bool { return q.LessonID == id }) {
		repo.db.quiz.delete(q.ID)
	}
	return nil
}
