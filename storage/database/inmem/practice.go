package inmemdb

import (
	"context"
	"sort"

	"github.com/mathhub/factolearn/core"
	"github.com/mathhub/factolearn/core/practice"
)

type practiceRepository struct {
	db *DB
}

var _ practice.Repository = (*practiceRepository)(nil)

func NewPracticeRepository(db *DB) practice.Repository {
	return &practiceRepository{db: db}
}

func copySession(s practice.Session) practice.Session {
	s.Problems = append([]practice.Problem(nil), s.Problems...)
	answers := make([]*practice.Answer, len(s.Answers))
	for i, a := range s.Answers {
		if a != nil {
			cp := *a
			answers[i] = &cp
		}
	}
	s.Answers = answers
	return s
}

func (repo *practiceRepository) CreateSession(_ context.Context, s practice.Session, _ ...core.DBExecutor) (practice.Session, error) {
	s = copySession(s)
	s.ID = newID()
	repo.db.practice.set(s.ID, s)
	return copySession(s), nil
}

func (repo *practiceRepository) GetSession(_ context.Context, id string, _ ...core.DBExecutor) (practice.Session, error) {
	s, ok := repo.db.practice.get(id)
	if !ok {
		return practice.Session{}, practice.ErrNotFound
	}
	return copySession(s), nil
}

// GetSessionForUpdate relies on DB.RunInTx serializing transactions.
func (repo *practiceRepository) GetSessionForUpdate(ctx context.Context, id string, _ core.DBExecutor) (practice.Session, error) {
	return repo.GetSession(ctx, id)
}

func (repo *practiceRepository) UpdateSession(_ context.Context, s practice.Session, _ ...core.DBExecutor) (practice.Session, error) {
	found, updated := repo.db.practice.updateIf(s.ID, copySession(s), func(old practice.Session) bool { return !old.IsFinished() })
	switch {
	case !found:
		return practice.Session{}, practice.ErrNotFound
	case !updated:
		return practice.Session{}, practice.ErrFinished
	}
	return s, nil
}

func (repo *practiceRepository) QuerySessions(_ context.Context, filter *practice.QueryFilter, _ ...core.DBExecutor) ([]practice.Session, error) {
	sessions := repo.db.practice.filter(func(s practice.Session) bool {
		if filter == nil {
			return true
		}
		if filter.StudentID != "" && s.StudentID != filter.StudentID {
			return false
		}
		if filter.LessonID != "" && s.LessonID != filter.LessonID {
			return false
		}
		if filter.Finished != nil && s.IsFinished() != *filter.Finished {
			return false
		}
		return true
	})

	sort.Slice(sessions, func(i, j int) bool { return sessions[i].StartedAt.After(sessions[j].StartedAt) })
	for i := range sessions {
		sessions[i] = copySession(sessions[i])
	}
	return sessions, nil
}
