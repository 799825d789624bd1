// Package inmemdb implements the core repositories in memory, for tests & throwaway runs.
package inmemdb

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mathhub/factolearn/core"
	"github.com/mathhub/factolearn/core/classroom"
	"github.com/mathhub/factolearn/core/lesson"
	"github.com/mathhub/factolearn/core/practice"
	"github.com/mathhub/factolearn/core/progress"
	"github.com/mathhub/factolearn/core/quiz"
	"github.com/mathhub/factolearn/core/user"
)

type (
	table[T any] struct {
		sync.RWMutex
		rows map[string]T
	}

	// DB holds every table. It implements core.TxRunner by running one transaction at a time.
	DB struct {
		txMu sync.Mutex

		user       *table[user.User]
		classroom  *table[classroom.Classroom]
		lesson     *table[lesson.Lesson]
		quiz       *table[quiz.Quiz]
		attempt    *table[quiz.Attempt]
		practice   *table[practice.Session]
		progress   *table[progress.LessonProgress] // key: student_id/lesson_id
		activities *activityLog
	}

	activityLog struct {
		sync.RWMutex
		rows []progress.Activity
	}
)

var _ core.TxRunner = (*DB)(nil)

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]T)}
}

func Open() *DB {
	return &DB{
		user:       newTable[user.User](),
		classroom:  newTable[classroom.Classroom](),
		lesson:     newTable[lesson.Lesson](),
		quiz:       newTable[quiz.Quiz](),
		attempt:    newTable[quiz.Attempt](),
		practice:   newTable[practice.Session](),
		progress:   newTable[progress.LessonProgress](),
		activities: &activityLog{},
	}
}

// RunInTx runs fn with a nil executor, one transaction at a time: rows read within fn can't be changed by
// another transaction before fn returns. Writes are not rolled back when fn fails.
func (db *DB) RunInTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(nil)
}

func (t *table[T]) get(id string) (T, bool) {
	t.RLock()
	defer t.RUnlock()
	row, ok := t.rows[id]
	return row, ok
}

func (t *table[T]) set(id string, row T) {
	t.Lock()
	defer t.Unlock()
	t.rows[id] = row
}

// update replaces an existing row; it reports false when there's none.
func (t *table[T]) update(id string, row T) bool {
	t.Lock()
	defer t.Unlock()
	if _, ok := t.rows[id]; !ok {
		return false
	}
	t.rows[id] = row
	return true
}

// updateIf replaces an existing row when keep accepts the stored one.
// found reports whether the row exists, updated whether it got replaced.
func (t *table[T]) updateIf(id string, row T, keep func(old T) bool) (found, updated bool) {
	t.Lock()
	defer t.Unlock()
	old, ok := t.rows[id]
	if !ok {
		return false, false
	}
	if !keep(old) {
		return true, false
	}
	t.rows[id] = row
	return true, true
}

func (t *table[T]) delete(ids ...string) int {
	t.Lock()
	defer t.Unlock()
	var n int
	for _, id := range ids {
		if _, ok := t.rows[id]; ok {
			delete(t.rows, id)
			n++
		}
	}
	return n
}

// filter returns the rows that match keep, in no particular order.
func (t *table[T]) filter(keep func(T) bool) []T {
	t.RLock()
	defer t.RUnlock()
	res := make([]T, 0, len(t.rows))
	for _, row := range t.rows {
		if keep == nil || keep(row) {
			res = append(res, row)
		}
	}
	return res
}

func newID() string {
	return uuid.New().String()
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}

// comparators compare two rows on a single field: <0, 0 or >0.
type comparators[T any] map[string]func(a, b T) int

// sortRows sorts rows by the given orderings, the fields without comparator being ignored.
func sortRows[T any](rows []T, ordering []core.DBOrdering, cmps comparators[T]) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, ord := range ordering {
			cmp, ok := cmps[ord.Field]
			if !ok {
				continue
			}
			c := cmp(rows[i], rows[j])
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

func cmpStrings(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func cmpInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// orderingWith appends the fallback orderings to a copy of ordering, making the sort order deterministic.
func orderingWith(ordering []core.DBOrdering, fallback ...core.DBOrdering) []core.DBOrdering {
	res := make([]core.DBOrdering, 0, len(ordering)+len(fallback))
	res = append(res, ordering...)
	return append(res, fallback...)
}
