// Package testutil holds the fixtures shared by the test suites of the apps & core packages.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mathhub/factolearn/core"
	"github.com/mathhub/factolearn/core/classroom"
	"github.com/mathhub/factolearn/core/lesson"
	"github.com/mathhub/factolearn/core/quiz"
	"github.com/mathhub/factolearn/core/user"
)

// NewConfig returns a config fit for tests: no env lookups, TestMode on.
func NewConfig() *core.Config {
	return &core.Config{
		Env:                       "TEST",
		TestMode:                  true,
		AppName:                   "FactoLearn",
		SecretKey:                 "test-secret",
		FrontendBaseURL:           "http://localhost:8080",
		DefaultLocale:             "en",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server: core.ServerConfig{
			Addr:                      ":0",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Learning: core.LearningConfig{
			PracticeDefaultCount:  10,
			PracticeMaxCount:      50,
			CompletionAccuracy:    0.8,
			CompletionMinProblems: 10,
			QuizGracePeriod:       30 * time.Second,
			StruggleMastery:       0.5,
			InactiveAfter:         7 * 24 * time.Hour,
		},
	}
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		require.NoError(t, usr.SetPassword(pwd), "CreateUser.SetPassword()")
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	require.NoError(t, err, "CreateUser()")
	return usr
}

func CreateLesson(t *testing.T, repo lesson.Repository, title, topic string, grade int, published bool, authorID string) lesson.Lesson {
	t.Helper()

	now := time.Now().UTC()
	l, err := repo.CreateLesson(context.Background(), lesson.Lesson{
		Slug:        core.Slugify(title),
		Title:       title,
		Topic:       topic,
		GradeLevel:  grade,
		IsPublished: published,
		AuthorID:    authorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	require.NoError(t, err, "CreateLesson()")
	return l
}

func CreateClassroom(t *testing.T, repo classroom.Repository, name string, grade int, teacherID string, studentIDs ...string) classroom.Classroom {
	t.Helper()

	now := time.Now().UTC()
	c, err := repo.CreateClassroom(context.Background(), classroom.Classroom{
		Name:       name,
		GradeLevel: grade,
		TeacherID:  teacherID,
		StudentIDs: studentIDs,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	require.NoError(t, err, "CreateClassroom()")
	return c
}

// CreateQuiz creates a published quiz of two questions: "7 x 8" (numeric, 2 points) & "Is 9 prime?" (choice).
func CreateQuiz(t *testing.T, repo quiz.Repository, lessonID, authorID string, timeLimit, maxAttempts int) quiz.Quiz {
	t.Helper()

	now := time.Now().UTC()
	q, err := repo.CreateQuiz(context.Background(), quiz.Quiz{
		LessonID:    lessonID,
		Title:       "Checkpoint",
		TimeLimit:   timeLimit,
		PassPercent: 60,
		MaxAttempts: maxAttempts,
		IsPublished: true,
		Questions: []quiz.Question{
			{ID: "q1", Prompt: "7 x 8", Kind: quiz.KindNumeric, Answer: "56", Points: 2},
			{ID: "q2", Prompt: "Is 9 prime?", Kind: quiz.KindChoice, Choices: []string{"yes", "no"}, Answer: "no", Points: 1},
		},
		AuthorID:  authorID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err, "CreateQuiz()")
	return q
}
