package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathhub/factolearn/core/classroom"
	"github.com/mathhub/factolearn/core/user"
	testutil "github.com/mathhub/factolearn/tests"
)

func Test_classroomApi(t *testing.T) {
	e := setup(t)

	admin := testutil.CreateUser(t, e.usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	teacher := testutil.CreateUser(t, e.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	other := testutil.CreateUser(t, e.usrRepo, "Other", "other", "other@test.cd", "", []string{user.RoleTeacher}, true)
	ada := testutil.CreateUser(t, e.usrRepo, "Ada", "ada", "ada@test.cd", "", []string{user.RoleStudent}, true)
	bob := testutil.CreateUser(t, e.usrRepo, "Bob", "bob", "bob@test.cd", "", []string{user.RoleStudent}, true)

	adminToken := getToken(t, e.conf, admin)
	teacherToken := getToken(t, e.conf, teacher)
	otherToken := getToken(t, e.conf, other)
	adaToken := getToken(t, e.conf, ada)
	bobToken := getToken(t, e.conf, bob)

	// create
	rec := e.do(http.MethodPost, "/v1/classrooms", teacherToken, []byte(`{"name": "5A", "grade_level": 5}`))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(http.MethodPost, "/v1/classrooms", adminToken, marshalObj(t, classroom.NewClassroom{
		Name: "5A", GradeLevel: 5, TeacherID: ada.ID,
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"teacher_id": "user is not a teacher"}`, rec.Body.String())

	rec = e.do(http.MethodPost, "/v1/classrooms", adminToken, marshalObj(t, classroom.NewClassroom{
		Name: " 5A ", GradeLevel: 5, TeacherID: teacher.ID, StudentIDs: []string{ada.ID},
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c classroom.Classroom
	decode(t, rec, &c)
	assert.Equal(t, "5A", c.Name)
	assert.Equal(t, []string{ada.ID}, c.StudentIDs)

	path := "/v1/classrooms/" + c.ID
	e.run(t, []httpTest{
		{name: "Admin sees all", path: "/v1/classrooms", token: adminToken, wantData: marshalList(t, c)},
		{name: "Teacher sees theirs", path: "/v1/classrooms", token: teacherToken, wantData: marshalList(t, c)},
		{name: "Other teacher sees none", path: "/v1/classrooms", token: otherToken, wantData: marshalList(t)},
		{name: "Enrolled student", path: "/v1/classrooms", token: adaToken, wantData: marshalList(t, c)},
		{name: "Not enrolled student", path: "/v1/classrooms", token: bobToken, wantData: marshalList(t)},
		{name: "Retrieve (teacher)", path: path, token: teacherToken, wantData: marshalObj(t, c)},
		{name: "Retrieve (other teacher)", path: path, token: otherToken, wantCode: http.StatusNotFound},
		{name: "Retrieve (not enrolled)", path: path, token: bobToken, wantCode: http.StatusNotFound},
		{
			name: "Student cannot enrol", method: http.MethodPost, path: path + "/students", token: adaToken,
			body: marshalObj(t, classroom.Enrolment{StudentIDs: []string{bob.ID}}), wantCode: http.StatusForbidden,
		},
		{
			name: "Teacher cannot enrol teachers", method: http.MethodPost, path: path + "/students", token: teacherToken,
			body: marshalObj(t, classroom.Enrolment{StudentIDs: []string{other.ID}}), wantCode: http.StatusBadRequest,
		},
		{
			name: "Teacher cannot update", method: http.MethodPut, path: path, token: teacherToken,
			body: []byte(`{"name": "5B"}`), wantCode: http.StatusForbidden,
		},
	})

	// enrol & unenrol
	rec = e.do(http.MethodPost, path+"/students", teacherToken, marshalObj(t, classroom.Enrolment{StudentIDs: []string{bob.ID, ada.ID}}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &c)
	assert.ElementsMatch(t, []string{ada.ID, bob.ID}, c.StudentIDs)

	rec = e.do(http.MethodGet, path, bobToken)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(http.MethodDelete, path+"/students?id="+ada.ID, teacherToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &c)
	assert.Equal(t, []string{bob.ID}, c.StudentIDs)

	// update
	rec = e.do(http.MethodPut, path, adminToken, []byte(`{"name": "5B"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &c)
	assert.Equal(t, "5B", c.Name)
	assert.Equal(t, 5, c.GradeLevel)
	assert.Equal(t, teacher.ID, c.TeacherID)

	// delete
	rec = e.do(http.MethodDelete, path, adminToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.do(http.MethodGet, path, adminToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
