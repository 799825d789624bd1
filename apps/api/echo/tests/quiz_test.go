package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/mathhub/factolearn/apps/api/echo"
	"github.com/mathhub/factolearn/core/lesson"
	"github.com/mathhub/factolearn/core/quiz"
	"github.com/mathhub/factolearn/core/user"
	testutil "github.com/mathhub/factolearn/tests"
)

func Test_quizApi_crud(t *testing.T) {
	e := setup(t)

	teacher := testutil.CreateUser(t, e.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	other := testutil.CreateUser(t, e.usrRepo, "Other", "other", "other@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, e.usrRepo, "Ada", "ada", "ada@test.cd", "", []string{user.RoleStudent}, true)
	l := testutil.CreateLesson(t, e.lessonRepo, "Primes", lesson.TopicPrimes, 5, true, teacher.ID)

	teacherToken := getToken(t, e.conf, teacher)
	studentToken := getToken(t, e.conf, student)

	nq := quiz.NewQuiz{
		LessonID:    "lol",
		Title:       "Primes check",
		PassPercent: 50,
		Questions: []quiz.Question{
			{Prompt: "Is 7 prime?", Kind: quiz.KindChoice, Choices: []string{"yes", "no"}, Answer: "yes"},
			{Prompt: "Smallest prime?", Kind: quiz.KindNumeric, Answer: "2", Points: 2},
		},
	}
	rec := e.do(http.MethodPost, "/v1/quizzes", teacherToken, marshalObj(t, nq))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"lesson_id": "lesson not found"}`, rec.Body.String())

	nq.LessonID = l.ID
	nq.Questions[0].Answer = "maybe"
	rec = e.do(http.MethodPost, "/v1/quizzes", teacherToken, marshalObj(t, nq))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "answer is not a choice")

	nq.Questions[0].Answer = "yes"
	rec = e.do(http.MethodPost, "/v1/quizzes", studentToken, marshalObj(t, nq))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(http.MethodPost, "/v1/quizzes", teacherToken, marshalObj(t, nq))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var q quiz.Quiz
	decode(t, rec, &q)
	require.Len(t, q.Questions, 2)
	assert.NotEmpty(t, q.Questions[0].ID)
	assert.Equal(t, 1, q.Questions[0].Points)
	assert.Equal(t, 3, q.MaxScore())
	assert.False(t, q.IsPublished)

	path := "/v1/quizzes/" + q.ID
	e.run(t, []httpTest{
		{name: "Draft is hidden from students", path: path, token: studentToken, wantCode: http.StatusNotFound},
		{name: "Students list published only", path: "/v1/quizzes", token: studentToken, wantData: marshalList(t)},
		{name: "Staff lists drafts", path: "/v1/quizzes?lesson=" + l.ID, token: teacherToken, wantData: marshalList(t, q)},
		{
			name: "Only the author updates", method: http.MethodPut, path: path, token: getToken(t, e.conf, other),
			body: []byte(`{"is_published": true}`), wantCode: http.StatusForbidden,
		},
	})

	rec = e.do(http.MethodPut, path, teacherToken, []byte(`{"is_published": true, "time_limit": 300}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &q)
	assert.True(t, q.IsPublished)
	assert.Equal(t, 300, q.TimeLimit)
	assert.Equal(t, "Primes check", q.Title)

	// students don't get to see the answers
	rec = e.do(http.MethodGet, path, studentToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var redacted quiz.Quiz
	decode(t, rec, &redacted)
	for _, qu := range redacted.Questions {
		assert.Empty(t, qu.Answer)
	}
	assert.NotContains(t, rec.Body.String(), `"answer"`)

	rec = e.do(http.MethodDelete, path, teacherToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.do(http.MethodGet, path, teacherToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_quizApi_attempts(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, e.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, e.usrRepo, "Ada", "ada", "ada@test.cd", "", []string{user.RoleStudent}, true)
	classmate := testutil.CreateUser(t, e.usrRepo, "Bob", "bob", "bob@test.cd", "", []string{user.RoleStudent}, true)
	l := testutil.CreateLesson(t, e.lessonRepo, "Multiplication", lesson.TopicMultiplication, 5, true, teacher.ID)
	q := testutil.CreateQuiz(t, e.quizRepo, l.ID, teacher.ID, 600, 1)

	studentToken := getToken(t, e.conf, student)
	classmateToken := getToken(t, e.conf, classmate)
	teacherToken := getToken(t, e.conf, teacher)

	rec := e.do(http.MethodPost, "/v1/quizzes/"+q.ID+"/attempts", teacherToken)
	assert.Equal(t, http.StatusForbidden, rec.Code, "students only")

	rec = e.do(http.MethodPost, "/v1/quizzes/"+q.ID+"/attempts", studentToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var start echoapi.StartAttemptResponse
	decode(t, rec, &start)
	assert.Equal(t, student.ID, start.Attempt.StudentID)
	assert.Equal(t, 3, start.Attempt.MaxScore)
	require.NotNil(t, start.Deadline)
	assert.WithinDuration(t, start.Attempt.StartedAt.Add(10*time.Minute), *start.Deadline, time.Second)
	for _, qu := range start.Quiz.Questions {
		assert.Empty(t, qu.Answer)
	}

	// an open attempt is resumed
	rec = e.do(http.MethodPost, "/v1/quizzes/"+q.ID+"/attempts", studentToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resumed echoapi.StartAttemptResponse
	decode(t, rec, &resumed)
	assert.Equal(t, start.Attempt.ID, resumed.Attempt.ID)

	submitPath := "/v1/attempts/" + start.Attempt.ID + "/submit"
	answers := marshalObj(t, quiz.SubmitAnswers{Answers: map[string]string{"q1": " 56 ", "q2": "No"}})

	rec = e.do(http.MethodPost, submitPath, classmateToken, answers)
	assert.Equal(t, http.StatusNotFound, rec.Code, "not theirs")
	rec = e.do(http.MethodPost, "/v1/attempts/lol/submit", studentToken, answers)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(http.MethodPost, submitPath, studentToken, answers)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res quiz.AttemptResult
	decode(t, rec, &res)
	assert.Equal(t, 3, res.Attempt.Score)
	assert.True(t, res.Attempt.Passed)
	assert.InDelta(t, 100, res.Attempt.Percent, 0.001)
	require.Len(t, res.Results, 2)
	assert.NotEmpty(t, res.Message)

	rec = e.do(http.MethodPost, submitPath, studentToken, answers)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "already submitted")

	rec = e.do(http.MethodPost, "/v1/quizzes/"+q.ID+"/attempts", studentToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error": "maximum number of attempts reached"}`, rec.Body.String())

	lp, err := e.progSvc.Get(ctx, student.ID, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, lp.QuizAttempts)
	assert.True(t, lp.QuizPassed)

	// a late submission is turned down
	late, err := e.quizRepo.CreateAttempt(ctx, quiz.Attempt{
		QuizID:    q.ID,
		StudentID: classmate.ID,
		StartedAt: time.Now().UTC().Add(-time.Hour),
		Answers:   map[string]string{},
		MaxScore:  q.MaxScore(),
	})
	require.NoError(t, err)
	rec = e.do(http.MethodPost, "/v1/attempts/"+late.ID+"/submit", classmateToken, answers)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error": "quiz attempt time limit exceeded"}`, rec.Body.String())

	e.run(t, []httpTest{
		{
			name: "Students see their attempts", path: "/v1/quizzes/" + q.ID + "/attempts", token: classmateToken,
			wantData: marshalList(t, late),
		},
		{
			name: "Staff filter by student", path: "/v1/quizzes/" + q.ID + "/attempts?student=" + student.ID, token: teacherToken,
			wantData: marshalList(t, res.Attempt),
		},
	})
}

func Test_quizApi_attemptsAccess(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	admin := testutil.CreateUser(t, e.usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	author := testutil.CreateUser(t, e.usrRepo, "Author", "author", "author@test.cd", "", []string{user.RoleTeacher}, true)
	other := testutil.CreateUser(t, e.usrRepo, "Other", "other", "other@test.cd", "", []string{user.RoleTeacher}, true)
	lonely := testutil.CreateUser(t, e.usrRepo, "Lonely", "lonely", "lonely@test.cd", "", []string{user.RoleTeacher}, true)
	ada := testutil.CreateUser(t, e.usrRepo, "Ada", "ada", "ada@test.cd", "", []string{user.RoleStudent}, true)
	bob := testutil.CreateUser(t, e.usrRepo, "Bob", "bob", "bob@test.cd", "", []string{user.RoleStudent}, true)
	testutil.CreateClassroom(t, e.classRepo, "5B", 5, other.ID, bob.ID)
	l := testutil.CreateLesson(t, e.lessonRepo, "Multiplication", lesson.TopicMultiplication, 5, true, author.ID)
	q := testutil.CreateQuiz(t, e.quizRepo, l.ID, author.ID, 0, 0)

	now := time.Now().UTC()
	adaAttempt, err := e.quizRepo.CreateAttempt(ctx, quiz.Attempt{
		QuizID: q.ID, StudentID: ada.ID, StartedAt: now.Add(-time.Hour), Answers: map[string]string{}, MaxScore: q.MaxScore(),
	})
	require.NoError(t, err)
	bobAttempt, err := e.quizRepo.CreateAttempt(ctx, quiz.Attempt{
		QuizID: q.ID, StudentID: bob.ID, StartedAt: now, Answers: map[string]string{}, MaxScore: q.MaxScore(),
	})
	require.NoError(t, err)

	path := "/v1/quizzes/" + q.ID + "/attempts"
	otherToken := getToken(t, e.conf, other)
	e.run(t, []httpTest{
		{name: "Author sees all", path: path, token: getToken(t, e.conf, author), wantData: marshalList(t, bobAttempt, adaAttempt)},
		{name: "Admin filters any student", path: path + "?student=" + ada.ID, token: getToken(t, e.conf, admin), wantData: marshalList(t, adaAttempt)},
		{name: "Teacher of the student", path: path + "?student=" + bob.ID, token: otherToken, wantData: marshalList(t, bobAttempt)},
		{name: "Not their student", path: path + "?student=" + ada.ID, token: otherToken, wantCode: http.StatusForbidden},
		{name: "Teacher sees their students only", path: path, token: otherToken, wantData: marshalList(t, bobAttempt)},
		{name: "Teacher without classroom", path: path, token: getToken(t, e.conf, lonely), wantData: marshalList(t)},
	})
}

func Test_quizApi_unpublishedLesson(t *testing.T) {
	e := setup(t)

	teacher := testutil.CreateUser(t, e.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, e.usrRepo, "Ada", "ada", "ada@test.cd", "", []string{user.RoleStudent}, true)
	draft := testutil.CreateLesson(t, e.lessonRepo, "Primes", lesson.TopicPrimes, 5, false, teacher.ID)
	q := testutil.CreateQuiz(t, e.quizRepo, draft.ID, teacher.ID, 0, 0)

	studentToken := getToken(t, e.conf, student)
	e.run(t, []httpTest{
		{name: "Hidden from students", path: "/v1/quizzes/" + q.ID, token: studentToken, wantCode: http.StatusNotFound},
		{name: "Not listed to students", path: "/v1/quizzes", token: studentToken, wantData: marshalList(t)},
		{
			name: "Cannot be attempted", method: http.MethodPost, path: "/v1/quizzes/" + q.ID + "/attempts",
			token: studentToken, wantCode: http.StatusNotFound,
		},
		{name: "Staff still see it", path: "/v1/quizzes/" + q.ID, token: getToken(t, e.conf, teacher), wantData: marshalObj(t, q)},
	})
}
