package classroom_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathhub/factolearn/core"
	"github.com/mathhub/factolearn/core/classroom"
	"github.com/mathhub/factolearn/core/user"
	emailsvc "github.com/mathhub/factolearn/services/email"
	inmemdb "github.com/mathhub/factolearn/storage/database/inmem"
	testutil "github.com/mathhub/factolearn/tests"
)

type env struct {
	svc      classroom.Service
	usrRepo  user.Repository
	validate *validator.Validate

	teacher, student, other user.User
}

func setup(t *testing.T) *env {
	t.Helper()
	conf := testutil.NewConfig()
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, emailsvc.NewMock(conf), conf)

	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	return &env{
		svc:      classroom.NewService(inmemdb.NewClassroomRepository(db), usrSvc, db),
		usrRepo:  usrRepo,
		validate: validate,
		teacher:  testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true),
		student:  testutil.CreateUser(t, usrRepo, "Ada", "ada", "ada@test.cd", "", []string{user.RoleStudent}, true),
		other:    testutil.CreateUser(t, usrRepo, "Bob", "bob", "bob@test.cd", "", []string{user.RoleStudent}, true),
	}
}

func fieldError(t *testing.T, err error) core.FieldError {
	t.Helper()
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr), "unexpected error: %v", err)
	require.NotEmpty(t, verr.Fields)
	return verr.Fields[0]
}

func TestNewClassroom_Validate(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	nc := classroom.NewClassroom{Name: "5A", GradeLevel: 13}
	assert.Error(t, nc.Validate(ctx, e.validate, e.svc), "grade level out of range")

	nc = classroom.NewClassroom{Name: "5A", GradeLevel: 5, TeacherID: e.student.ID}
	assert.Equal(t, core.FieldError{Field: "teacher_id", Error: "user is not a teacher"}, fieldError(t, nc.Validate(ctx, e.validate, e.svc)))

	nc = classroom.NewClassroom{Name: "5A", GradeLevel: 5, TeacherID: e.teacher.ID, StudentIDs: []string{e.teacher.ID}}
	fe := fieldError(t, nc.Validate(ctx, e.validate, e.svc))
	assert.Equal(t, "student_ids", fe.Field)
	assert.Contains(t, fe.Error, "user is not a student")

	nc = classroom.NewClassroom{Name: "  5A ", GradeLevel: 5, TeacherID: e.teacher.ID, StudentIDs: []string{e.student.ID, e.student.ID}}
	require.NoError(t, nc.Validate(ctx, e.validate, e.svc))
	assert.Equal(t, "5A", nc.Name)
	assert.Equal(t, []string{e.student.ID}, nc.StudentIDs)
}

func TestService_enrolment(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	c, err := e.svc.Create(ctx, classroom.NewClassroom{Name: "5A", GradeLevel: 5, TeacherID: e.teacher.ID, StudentIDs: []string{e.student.ID}})
	require.NoError(t, err)
	assert.Equal(t, []string{e.student.ID}, c.StudentIDs)

	ok, err := e.svc.TeacherHasStudent(ctx, e.teacher.ID, e.student.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = e.svc.TeacherHasStudent(ctx, e.teacher.ID, e.other.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = e.svc.TeacherHasStudent(ctx, "", e.student.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	// enrolling twice is a no-op
	c, err = e.svc.Enroll(ctx, c.ID, e.other.ID, e.student.ID, e.other.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{e.student.ID, e.other.ID}, c.StudentIDs)

	c, err = e.svc.Unenroll(ctx, c.ID, e.student.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{e.other.ID}, c.StudentIDs)

	mine, err := e.svc.Query(ctx, &classroom.QueryFilter{StudentID: e.other.ID}, nil)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	none, err := e.svc.Query(ctx, &classroom.QueryFilter{StudentID: e.student.ID}, nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = e.svc.Enroll(ctx, "lol", e.student.ID)
	assert.Equal(t, classroom.ErrNotFound, errors.Cause(err))
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	c, err := e.svc.Create(ctx, classroom.NewClassroom{Name: "5A", GradeLevel: 5, TeacherID: e.teacher.ID})
	require.NoError(t, err)

	uc := classroom.UpdateClassroom{Name: "5B"}
	require.NoError(t, uc.Validate(ctx, c, e.validate, e.svc))
	c, err = e.svc.Update(ctx, c, uc)
	require.NoError(t, err)
	assert.Equal(t, "5B", c.Name)
	assert.Equal(t, 5, c.GradeLevel)
	assert.Equal(t, e.teacher.ID, c.TeacherID, "teacher is kept")

	unassign := ""
	uc = classroom.UpdateClassroom{TeacherID: &unassign}
	require.NoError(t, uc.Validate(ctx, c, e.validate, e.svc))
	c, err = e.svc.Update(ctx, c, uc)
	require.NoError(t, err)
	assert.Empty(t, c.TeacherID)

	uc = classroom.UpdateClassroom{TeacherID: &e.student.ID}
	assert.Equal(t, "teacher_id", fieldError(t, uc.Validate(ctx, c, e.validate, e.svc)).Field)

	require.NoError(t, e.svc.Delete(ctx, c.ID))
	_, err = e.svc.GetByID(ctx, c.ID)
	assert.Equal(t, classroom.ErrNotFound, errors.Cause(err))
}
