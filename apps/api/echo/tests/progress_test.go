package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathhub/factolearn/core/dashboard"
	"github.com/mathhub/factolearn/core/lesson"
	"github.com/mathhub/factolearn/core/progress"
	"github.com/mathhub/factolearn/core/user"
	testutil "github.com/mathhub/factolearn/tests"
)

func Test_progressApi(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	admin := testutil.CreateUser(t, e.usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	teacher := testutil.CreateUser(t, e.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	other := testutil.CreateUser(t, e.usrRepo, "Other", "other", "other@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, e.usrRepo, "Ada", "ada", "ada@test.cd", "", []string{user.RoleStudent}, true)
	testutil.CreateClassroom(t, e.classRepo, "5A", 5, teacher.ID, student.ID)
	l1 := testutil.CreateLesson(t, e.lessonRepo, "Factors", lesson.TopicFactors, 5, true, teacher.ID)
	l2 := testutil.CreateLesson(t, e.lessonRepo, "Primes", lesson.TopicPrimes, 5, true, teacher.ID)

	_, err := e.progSvc.RecordLessonView(ctx, student.ID, l1.ID)
	require.NoError(t, err)
	_, err = e.progSvc.RecordPractice(ctx, student.ID, l1.ID, 9, 10)
	require.NoError(t, err)
	_, err = e.progSvc.RecordQuiz(ctx, student.ID, l2.ID, 40, false)
	require.NoError(t, err)

	rec := e.do(http.MethodGet, "/v1/progress/me", getToken(t, e.conf, student))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sum progress.Summary
	decode(t, rec, &sum)
	assert.Equal(t, student.ID, sum.StudentID)
	assert.Equal(t, 2, sum.LessonsStarted)
	assert.Equal(t, 1, sum.LessonsCompleted)
	assert.Equal(t, 9, sum.PracticeCorrect)
	assert.Equal(t, 10, sum.PracticeTotal)
	assert.Equal(t, 1, sum.CurrentStreak)

	path := "/v1/progress/students/" + student.ID
	e.run(t, []httpTest{
		{name: "Staff only", path: path, token: getToken(t, e.conf, student), wantCode: http.StatusForbidden},
		{name: "Teacher of the student", path: path, token: getToken(t, e.conf, teacher), wantData: rec.Body.Bytes()},
		{name: "Admin", path: path, token: getToken(t, e.conf, admin), wantData: rec.Body.Bytes()},
		{name: "Another teacher", path: path, token: getToken(t, e.conf, other), wantCode: http.StatusForbidden},
		{name: "Not a student", path: "/v1/progress/students/" + other.ID, token: getToken(t, e.conf, admin), wantCode: http.StatusNotFound},
		{name: "Unknown", path: "/v1/progress/students/lol", token: getToken(t, e.conf, admin), wantCode: http.StatusNotFound},
		{name: "Teachers have no progress", path: "/v1/progress/me", token: getToken(t, e.conf, teacher), wantCode: http.StatusForbidden},
	})
}

func Test_dashboardApi(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	admin := testutil.CreateUser(t, e.usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	teacher := testutil.CreateUser(t, e.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	ada := testutil.CreateUser(t, e.usrRepo, "Ada", "ada", "ada@test.cd", "", []string{user.RoleStudent}, true)
	bob := testutil.CreateUser(t, e.usrRepo, "Bob", "bob", "bob@test.cd", "", []string{user.RoleStudent}, true,
		time.Now().Add(-30*24*time.Hour))
	c := testutil.CreateClassroom(t, e.classRepo, "5A", 5, teacher.ID, ada.ID, bob.ID)
	l := testutil.CreateLesson(t, e.lessonRepo, "Factors", lesson.TopicFactors, 5, true, teacher.ID)
	testutil.CreateLesson(t, e.lessonRepo, "Draft", lesson.TopicGCD, 5, false, teacher.ID)
	testutil.CreateQuiz(t, e.quizRepo, l.ID, teacher.ID, 0, 0)

	_, err := e.progSvc.RecordPractice(ctx, ada.ID, l.ID, 10, 10)
	require.NoError(t, err)

	teacherToken := getToken(t, e.conf, teacher)
	adminToken := getToken(t, e.conf, admin)

	rec := e.do(http.MethodGet, "/v1/dashboard/teacher", getToken(t, e.conf, ada))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(http.MethodGet, "/v1/dashboard/teacher", teacherToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var td dashboard.TeacherDashboard
	decode(t, rec, &td)
	assert.Equal(t, teacher.ID, td.TeacherID)
	require.Len(t, td.Classrooms, 1)
	cd := td.Classrooms[0]
	assert.Equal(t, c.ID, cd.Classroom.ID)
	require.Len(t, cd.Students, 2)
	assert.Equal(t, "Ada", cd.Students[0].Name)
	assert.Equal(t, 1, cd.Students[0].LessonsCompleted)
	assert.False(t, cd.Students[0].Struggling)
	assert.Equal(t, "Bob", cd.Students[1].Name)
	assert.True(t, cd.Students[1].Struggling, "inactive for a month")
	assert.Equal(t, 1, cd.StrugglingCount)
	require.Len(t, cd.Lessons, 1, "published lessons only")
	assert.Equal(t, 1, cd.Lessons[0].Completed)
	assert.InDelta(t, 0.5, cd.Lessons[0].CompletionRate, 0.001)

	// admins pick the teacher
	rec = e.do(http.MethodGet, "/v1/dashboard/teacher?teacher="+teacher.ID, adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &td)
	assert.Len(t, td.Classrooms, 1)

	rec = e.do(http.MethodGet, "/v1/dashboard/admin", teacherToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(http.MethodGet, "/v1/dashboard/admin", adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ad dashboard.AdminDashboard
	decode(t, rec, &ad)
	assert.Equal(t, 4, ad.Users.Total)
	assert.Equal(t, 2, ad.Users.ByRole["student"])
	assert.Equal(t, 2, ad.Lessons.Total)
	assert.Equal(t, 1, ad.Lessons.Published)
	assert.Equal(t, 1, ad.Quizzes)
	assert.Equal(t, 1, ad.Classrooms)
	require.Len(t, ad.DailyActivity, 7)
	assert.Equal(t, 1, ad.DailyActivity[6].Count)
}
