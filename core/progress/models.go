package progress

import (
	"sort"
	"time"

	"github.com/mathhub/factolearn/core"
)

// Lesson statuses
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Activity kinds
const (
	ActivityLessonViewed     = "lesson_viewed"
	ActivityPracticeFinished = "practice_finished"
	ActivityQuizSubmitted    = "quiz_submitted"
	ActivityLessonCompleted  = "lesson_completed"
)

var ActivityKinds = []string{ActivityLessonViewed, ActivityPracticeFinished, ActivityQuizSubmitted, ActivityLessonCompleted}

// LessonProgress is where a student stands on a lesson.
type LessonProgress struct {
	StudentID        string    `json:"student_id"`
	LessonID         string    `json:"lesson_id"`
	Status           string    `json:"status"`
	PracticeSessions int       `json:"practice_sessions"`
	PracticeCorrect  int       `json:"practice_correct"`
	PracticeTotal    int       `json:"practice_total"`
	QuizAttempts     int       `json:"quiz_attempts"`
	BestQuizPercent  float64   `json:"best_quiz_percent"`
	QuizPassed       bool      `json:"quiz_passed"`
	Mastery          float64   `json:"mastery"`          // 0..1
	LastActivityAt   time.Time `json:"last_activity_at"` // UTC
	CompletedAt      time.Time `json:"completed_at"`     // UTC, zero until completed
}

// Accuracy is the ratio of correct practice answers, 0 without practice.
func (lp LessonProgress) Accuracy() float64 {
	if lp.PracticeTotal == 0 {
		return 0
	}
	return float64(lp.PracticeCorrect) / float64(lp.PracticeTotal)
}

func (lp LessonProgress) IsCompleted() bool {
	return lp.Status == StatusCompleted
}

// refresh recomputes mastery & status. It reports whether the lesson just got completed.
func (lp *LessonProgress) refresh(conf core.LearningConfig, now time.Time) bool {
	acc := lp.Accuracy()
	if lp.QuizAttempts > 0 {
		lp.Mastery = 0.4*acc + 0.6*lp.BestQuizPercent/100
	} else {
		lp.Mastery = acc
	}
	lp.LastActivityAt = now

	if lp.IsCompleted() {
		return false
	}
	if lp.QuizPassed || (lp.PracticeTotal >= conf.CompletionMinProblems && acc >= conf.CompletionAccuracy) {
		lp.Status = StatusCompleted
		lp.CompletedAt = now
		return true
	}
	lp.Status = StatusInProgress
	return false
}

type Activity struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	LessonID  string    `json:"lesson_id"`
	Kind      string    `json:"kind"`
	Score     float64   `json:"score"`      // accuracy or quiz percent, depending on Kind
	CreatedAt time.Time `json:"created_at"` // UTC
}

// Summary aggregates a student's progress over all the lessons they touched.
type Summary struct {
	StudentID        string           `json:"student_id"`
	Lessons          []LessonProgress `json:"lessons"`
	LessonsStarted   int              `json:"lessons_started"`
	LessonsCompleted int              `json:"lessons_completed"`
	PracticeCorrect  int              `json:"practice_correct"`
	PracticeTotal    int              `json:"practice_total"`
	AverageMastery   float64          `json:"average_mastery"`
	BestQuizAverage  float64          `json:"best_quiz_average"`
	CurrentStreak    int              `json:"current_streak"` // days
	LongestStreak    int              `json:"longest_streak"` // days
	LastActivityAt   time.Time        `json:"last_activity_at"`
}

type QueryFilter struct {
	StudentIDs []string `query:"student"`
	LessonIDs  []string `query:"lesson"`
	Statuses   []string `query:"status"`
}

type ActivityFilter struct {
	StudentIDs []string  `query:"student"`
	LessonIDs  []string  `query:"lesson"`
	Kinds      []string  `query:"kind"`
	From       time.Time `query:"from"`
	To         time.Time `query:"to"`
	Limit      int       `query:"limit"`
}

// Streaks computes the current & longest runs of consecutive UTC days found in times.
// The current streak only counts when its last day is today or yesterday.
func Streaks(times []time.Time, now time.Time) (current, longest int) {
	if len(times) == 0 {
		return 0, 0
	}

	seen := make(map[int64]struct{}, len(times))
	days := make([]int64, 0, len(times))
	for _, t := range times {
		d := dayNumber(t)
		if _, ok := seen[d]; !ok {
			seen[d] = struct{}{}
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	run := 1
	longest = 1
	for i := 1; i < len(days); i++ {
		if days[i] == days[i-1]+1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	today := dayNumber(now)
	if last := days[len(days)-1]; last == today || last == today-1 {
		current = run
	}
	return current, longest
}

func dayNumber(t time.Time) int64 {
	return t.UTC().Unix() / 86400
}
