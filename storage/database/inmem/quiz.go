package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/mathhub/factolearn/core"
	"github.com/mathhub/factolearn/core/quiz"
)

var quizComparators = comparators[quiz.Quiz]{
	"title":      func(a, b quiz.Quiz) int { return cmpStrings(a.Title, b.Title) },
	"created_at": func(a, b quiz.Quiz) int { return cmpTimes(a.CreatedAt, b.CreatedAt) },
	"updated_at": func(a, b quiz.Quiz) int { return cmpTimes(a.UpdatedAt, b.UpdatedAt) },
	"id":         func(a, b quiz.Quiz) int { return strings.Compare(a.ID, b.ID) },
}

type quizRepository struct {
	db *DB
}

var _ quiz.Repository = (*quizRepository)(nil)

func NewQuizRepository(db *DB) quiz.Repository {
	return &quizRepository{db: db}
}

func copyQuiz(q quiz.Quiz) quiz.Quiz {
	questions := make([]quiz.Question, len(q.Questions))
	for i, qn := range q.Questions {
		qn.Choices = cloneStrings(qn.Choices)
		questions[i] = qn
	}
	q.Questions = questions
	return q
}

func copyAttempt(a quiz.Attempt) quiz.Attempt {
	answers := make(map[string]string, len(a.Answers))
	for k, v := range a.Answers {
		answers[k] = v
	}
	a.Answers = answers
	return a
}

func (repo *quizRepository) CreateQuiz(_ context.Context, q quiz.Quiz, _ ...core.DBExecutor) (quiz.Quiz, error) {
	q = copyQuiz(q)
	q.ID = newID()
	repo.db.quiz.set(q.ID, q)
	return copyQuiz(q), nil
}

func (repo *quizRepository) QueryQuizzes(
	_ context.Context, filter *quiz.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor,
) ([]quiz.Quiz, error) {
	quizzes := repo.db.quiz.filter(func(q quiz.Quiz) bool {
		if filter == nil {
			return true
		}
		if filter.Search != "" && !containsFold(q.Title, filter.Search) {
			return false
		}
		if len(filter.LessonIDs) > 0 && !core.ContainsString(filter.LessonIDs, q.LessonID) {
			return false
		}
		if filter.IsPublished != nil && q.IsPublished != *filter.IsPublished {
			return false
		}
		if filter.AuthorID != "" && q.AuthorID != filter.AuthorID {
			return false
		}
		return true
	})

	sortRows(quizzes, orderingWith(ordering, core.DBOrdering{Field: "id", Ascending: true}), quizComparators)
	for i := range quizzes {
		quizzes[i] = copyQuiz(quizzes[i])
	}
	return quizzes, nil
}

func (repo *quizRepository) GetQuiz(_ context.Context, id string, _ ...core.DBExecutor) (quiz.Quiz, error) {
	q, ok := repo.db.quiz.get(id)
	if !ok {
		return quiz.Quiz{}, quiz.ErrNotFound
	}
	return copyQuiz(q), nil
}

func (repo *quizRepository) UpdateQuiz(_ context.Context, q quiz.Quiz, _ ...core.DBExecutor) (quiz.Quiz, error) {
	if !repo.db.quiz.update(q.ID, copyQuiz(q)) {
		return quiz.Quiz{}, quiz.ErrNotFound
	}
	return q, nil
}

// DeleteQuiz also deletes the attempts at the quiz.
func (repo *quizRepository) DeleteQuiz(_ context.Context, id string, _ ...core.DBExecutor) error {
	if repo.db.quiz.delete(id) == 0 {
		return quiz.ErrNotFound
	}
	for _, a := range repo.db.attempt.filter(func(a quiz.Attempt) bool { return a.QuizID == id }) {
		repo.db.attempt.delete(a.ID)
	}
	return nil
}

func (repo *quizRepository) CreateAttempt(_ context.Context, a quiz.Attempt, _ ...core.DBExecutor) (quiz.Attempt, error) {
	a = copyAttempt(a)
	a.ID = newID()
	repo.db.attempt.set(a.ID, a)
	return copyAttempt(a), nil
}

func (repo *quizRepository) GetAttempt(_ context.Context, id string, _ ...core.DBExecutor) (quiz.Attempt, error) {
	a, ok := repo.db.attempt.get(id)
	if !ok {
		return quiz.Attempt{}, quiz.ErrAttemptNotFound
	}
	return copyAttempt(a), nil
}

// GetAttemptForUpdate relies on DB.RunInTx serializing transactions.
func (repo *quizRepository) GetAttemptForUpdate(ctx context.Context, id string, _ core.DBExecutor) (quiz.Attempt, error) {
	return repo.GetAttempt(ctx, id)
}

func (repo *quizRepository) UpdateAttempt(_ context.Context, a quiz.Attempt, _ ...core.DBExecutor) (quiz.Attempt, error) {
	found, updated := repo.db.attempt.updateIf(a.ID, copyAttempt(a), func(old quiz.Attempt) bool { return !old.IsSubmitted() })
	switch {
	case !found:
		return quiz.Attempt{}, quiz.ErrAttemptNotFound
	case !updated:
		return quiz.Attempt{}, quiz.ErrAttemptSubmitted
	}
	return a, nil
}

func (repo *quizRepository) QueryAttempts(_ context.Context, filter *quiz.AttemptFilter, _ ...core.DBExecutor) ([]quiz.Attempt, error) {
	attempts := repo.db.attempt.filter(func(a quiz.Attempt) bool {
		if filter == nil {
			return true
		}
		if len(filter.QuizIDs) > 0 && !core.ContainsString(filter.QuizIDs, a.QuizID) {
			return false
		}
		if len(filter.StudentIDs) > 0 && !core.ContainsString(filter.StudentIDs, a.StudentID) {
			return false
		}
		if filter.Submitted != nil && a.IsSubmitted() != *filter.Submitted {
			return false
		}
		return true
	})

	sort.Slice(attempts, func(i, j int) bool { return attempts[i].StartedAt.After(attempts[j].StartedAt) })
	for i := range attempts {
		attempts[i] = copyAttempt(attempts[i])
	}
	return attempts, nil
}
