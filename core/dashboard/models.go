package dashboard

import (
	"time"

	"github.com/mathhub/factolearn/core/classroom"
)

type (
	// StudentRow is a student's line on the teacher dashboard.
	StudentRow struct {
		StudentID        string    `json:"student_id"`
		Name             string    `json:"name"`
		Username         string    `json:"username"`
		LessonsStarted   int       `json:"lessons_started"`
		LessonsCompleted int       `json:"lessons_completed"`
		AverageMastery   float64   `json:"average_mastery"`
		BestQuizAverage  float64   `json:"best_quiz_average"`
		LastActivityAt   time.Time `json:"last_activity_at"`
		CurrentStreak    int       `json:"current_streak"`
		Struggling       bool      `json:"struggling"`
	}

	// LessonRow is how a classroom is doing on one of the lessons of its grade.
	LessonRow struct {
		LessonID       string  `json:"lesson_id"`
		Title          string  `json:"title"`
		Topic          string  `json:"topic"`
		Started        int     `json:"started"`
		Completed      int     `json:"completed"`
		CompletionRate float64 `json:"completion_rate"`
		AverageMastery float64 `json:"average_mastery"`
	}

	ClassroomDashboard struct {
		Classroom       classroom.Classroom `json:"classroom"`
		Students        []StudentRow        `json:"students"`
		Lessons         []LessonRow         `json:"lessons"`
		AverageMastery  float64             `json:"average_mastery"`
		CompletionRate  float64             `json:"completion_rate"`
		StrugglingCount int                 `json:"struggling_count"`
	}

	TeacherDashboard struct {
		TeacherID   string               `json:"teacher_id"`
		Classrooms  []ClassroomDashboard `json:"classrooms"`
		GeneratedAt time.Time            `json:"generated_at"`
	}
)

type (
	UserStats struct {
		Total         int            `json:"total"`
		Active        int            `json:"active"`
		Inactive      int            `json:"inactive"`
		ByRole        map[string]int `json:"by_role"` // admin, teacher, student
		NewLast30Days int            `json:"new_last_30_days"`
	}

	LessonStats struct {
		Total     int `json:"total"`
		Published int `json:"published"`
		Draft     int `json:"draft"`
	}

	AttemptStats struct {
		Total     int     `json:"total"`
		Submitted int     `json:"submitted"`
		Passed    int     `json:"passed"`
		PassRate  float64 `json:"pass_rate"` // passed / submitted
	}

	DayCount struct {
		Date  string `json:"date"` // YYYY-MM-DD, UTC
		Count int    `json:"count"`
	}

	AdminDashboard struct {
		Users         UserStats    `json:"users"`
		Lessons       LessonStats  `json:"lessons"`
		Quizzes       int          `json:"quizzes"`
		Classrooms    int          `json:"classrooms"`
		Attempts      AttemptStats `json:"attempts"`
		DailyActivity []DayCount   `json:"daily_activity"` // last 7 days, oldest first
		GeneratedAt   time.Time    `json:"generated_at"`
	}
)
