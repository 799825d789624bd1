package progress_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathhub/factolearn/core"
	"github.com/mathhub/factolearn/core/progress"
	inmemdb "github.com/mathhub/factolearn/storage/database/inmem"
)

var conf = core.LearningConfig{CompletionAccuracy: 0.8, CompletionMinProblems: 10}

func newService() (progress.Service, *inmemdb.DB) {
	db := inmemdb.Open()
	return progress.NewService(inmemdb.NewProgressRepository(db), db, conf), db
}

func TestService_RecordPractice(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	lp, err := svc.RecordLessonView(ctx, "s1", "l1")
	require.NoError(t, err)
	assert.Equal(t, progress.StatusInProgress, lp.Status)

	lp, err = svc.RecordPractice(ctx, "s1", "l1", 4, 5)
	require.NoError(t, err)
	assert.Equal(t, progress.StatusInProgress, lp.Status)
	assert.Equal(t, 1, lp.PracticeSessions)

	lp, err = svc.RecordPractice(ctx, "s1", "l1", 5, 5)
	require.NoError(t, err)
	assert.Equal(t, progress.StatusCompleted, lp.Status)
	assert.Equal(t, 9, lp.PracticeCorrect)
	assert.Equal(t, 10, lp.PracticeTotal)
	assert.InDelta(t, 0.9, lp.Mastery, 1e-9)
	assert.False(t, lp.CompletedAt.IsZero())

	acts, err := svc.QueryActivities(ctx, &progress.ActivityFilter{StudentIDs: []string{"s1"}})
	require.NoError(t, err)
	kinds := make([]string, 0, len(acts))
	for _, a := range acts {
		kinds = append(kinds, a.Kind)
	}
	assert.ElementsMatch(t, []string{
		progress.ActivityLessonViewed,
		progress.ActivityPracticeFinished,
		progress.ActivityPracticeFinished,
		progress.ActivityLessonCompleted,
	}, kinds)

	// completion is recorded once
	_, err = svc.RecordPractice(ctx, "s1", "l1", 0, 5)
	require.NoError(t, err)
	completions, err := svc.QueryActivities(ctx, &progress.ActivityFilter{Kinds: []string{progress.ActivityLessonCompleted}})
	require.NoError(t, err)
	assert.Len(t, completions, 1)

	got, err := svc.Get(ctx, "s1", "l1")
	require.NoError(t, err)
	assert.Equal(t, progress.StatusCompleted, got.Status)
}

func TestService_concurrentRecords(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.RecordPractice(ctx, "s1", "l1", 1, 1)
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := svc.RecordLessonView(ctx, "s1", "l1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	lp, err := svc.Get(ctx, "s1", "l1")
	require.NoError(t, err)
	assert.Equal(t, 20, lp.PracticeSessions, "no lost increment")
	assert.Equal(t, 20, lp.PracticeTotal)
	assert.Equal(t, progress.StatusCompleted, lp.Status)

	completions, err := svc.QueryActivities(ctx, &progress.ActivityFilter{Kinds: []string{progress.ActivityLessonCompleted}})
	require.NoError(t, err)
	assert.Len(t, completions, 1)
}

func TestService_RecordQuiz(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	lp, err := svc.RecordQuiz(ctx, "s1", "l1", 40, false)
	require.NoError(t, err)
	assert.Equal(t, progress.StatusInProgress, lp.Status)
	assert.InDelta(t, 0.24, lp.Mastery, 1e-9)

	lp, err = svc.RecordQuiz(ctx, "s1", "l1", 80, true)
	require.NoError(t, err)
	assert.Equal(t, progress.StatusCompleted, lp.Status)
	assert.Equal(t, 2, lp.QuizAttempts)

	// a worse retake keeps the best score & the pass
	lp, err = svc.RecordQuiz(ctx, "s1", "l1", 20, false)
	require.NoError(t, err)
	assert.Equal(t, 80.0, lp.BestQuizPercent)
	assert.True(t, lp.QuizPassed)
}

func TestService_RecordInCallerTx(t *testing.T) {
	ctx := context.Background()
	svc, db := newService()

	err := db.RunInTx(ctx, func(exec core.DBExecutor) error {
		_, err := svc.RecordPractice(ctx, "s1", "l1", 1, 2, exec)
		return err
	})
	require.NoError(t, err)

	_, err = svc.Get(ctx, "s1", "l1")
	assert.NoError(t, err)
	_, err = svc.Get(ctx, "s1", "l2")
	assert.Equal(t, progress.ErrNotFound, err)
}

func TestService_StudentSummary(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	now := time.Now().UTC()

	for _, d := range []int{2, 1, 0} {
		reset := progress.SetNow(now.AddDate(0, 0, -d))
		_, err := svc.RecordPractice(ctx, "s1", "l1", 4, 4)
		reset()
		require.NoError(t, err)
	}
	_, err := svc.RecordLessonView(ctx, "s1", "l2")
	require.NoError(t, err)
	_, err = svc.RecordLessonView(ctx, "s2", "l1")
	require.NoError(t, err)

	sum, err := svc.StudentSummary(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, sum.Lessons, 2)
	assert.Equal(t, 2, sum.LessonsStarted)
	assert.Equal(t, 1, sum.LessonsCompleted)
	assert.Equal(t, 12, sum.PracticeCorrect)
	assert.Equal(t, 12, sum.PracticeTotal)
	assert.Equal(t, 3, sum.CurrentStreak)
	assert.Equal(t, 3, sum.LongestStreak)
}
