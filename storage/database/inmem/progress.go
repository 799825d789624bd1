package inmemdb

import (
	"context"
	"sort"

	"github.com/mathhub/factolearn/core"
	"github.com/mathhub/factolearn/core/progress"
)

type progressRepository struct {
	db *DB
}

var _ progress.Repository = (*progressRepository)(nil)

func NewProgressRepository(db *DB) progress.Repository {
	return &progressRepository{db: db}
}

func progressKey(studentID, lessonID string) string {
	return studentID + "/" + lessonID
}

func (repo *progressRepository) GetProgress(_ context.Context, studentID, lessonID string, _ ...core.DBExecutor) (progress.LessonProgress, error) {
	lp, ok := repo.db.progress.get(progressKey(studentID, lessonID))
	if !ok {
		return progress.LessonProgress{}, progress.ErrNotFound
	}
	return lp, nil
}

// LockProgress relies on DB.RunInTx serializing transactions.
func (repo *progressRepository) LockProgress(_ context.Context, studentID, lessonID string, _ core.DBExecutor) (progress.LessonProgress, error) {
	lp, ok := repo.db.progress.get(progressKey(studentID, lessonID))
	if !ok {
		lp = progress.LessonProgress{StudentID: studentID, LessonID: lessonID, Status: progress.StatusNotStarted}
	}
	return lp, nil
}

func (repo *progressRepository) SaveProgress(_ context.Context, lp progress.LessonProgress, _ ...core.DBExecutor) (progress.LessonProgress, error) {
	repo.db.progress.set(progressKey(lp.StudentID, lp.LessonID), lp)
	return lp, nil
}

func (repo *progressRepository) QueryProgress(_ context.Context, filter *progress.QueryFilter, _ ...core.DBExecutor) ([]progress.LessonProgress, error) {
	lps := repo.db.progress.filter(func(lp progress.LessonProgress) bool {
		if filter == nil {
			return true
		}
		if len(filter.StudentIDs) > 0 && !core.ContainsString(filter.StudentIDs, lp.StudentID) {
			return false
		}
		if len(filter.LessonIDs) > 0 && !core.ContainsString(filter.LessonIDs, lp.LessonID) {
			return false
		}
		if len(filter.Statuses) > 0 && !core.ContainsString(filter.Statuses, lp.Status) {
			return false
		}
		return true
	})

	sort.Slice(lps, func(i, j int) bool {
		if !lps[i].LastActivityAt.Equal(lps[j].LastActivityAt) {
			return lps[i].LastActivityAt.After(lps[j].LastActivityAt)
		}
		return progressKey(lps[i].StudentID, lps[i].LessonID) < progressKey(lps[j].StudentID, lps[j].LessonID)
	})
	return lps, nil
}

func (repo *progressRepository) CreateActivity(_ context.Context, a progress.Activity, _ ...core.DBExecutor) (progress.Activity, error) {
	a.ID = newID()
	log := repo.db.activities
	log.Lock()
	log.rows = append(log.rows, a)
	log.Unlock()
	return a, nil
}

func (repo *progressRepository) QueryActivities(_ context.Context, filter *progress.ActivityFilter, _ ...core.DBExecutor) ([]progress.Activity, error) {
	log := repo.db.activities
	log.RLock()
	acts := make([]progress.Activity, 0, len(log.rows))
	for i := len(log.rows) - 1; i >= 0; i-- { // newest first
		a := log.rows[i]
		if filter != nil {
			if len(filter.StudentIDs) > 0 && !core.ContainsString(filter.StudentIDs, a.StudentID) {
				continue
			}
			if len(filter.LessonIDs) > 0 && !core.ContainsString(filter.LessonIDs, a.LessonID) {
				continue
			}
			if len(filter.Kinds) > 0 && !core.ContainsString(filter.Kinds, a.Kind) {
				continue
			}
			if !filter.From.IsZero() && a.CreatedAt.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && !a.CreatedAt.Before(filter.To) {
				continue
			}
		}
		acts = append(acts, a)
	}
	log.RUnlock()

	sort.SliceStable(acts, func(i, j int) bool { return acts[i].CreatedAt.After(acts[j].CreatedAt) })
	if filter != nil && filter.Limit > 0 && len(acts) > filter.Limit {
		acts = acts[:filter.Limit]
	}
	return acts, nil
}
