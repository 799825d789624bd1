package classroom

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/mathhub/factolearn/core"
	"github.com/mathhub/factolearn/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("classroom not found")

	errNotATeacher = "user is not a teacher"
	errNotAStudent = "user is not a student"
	errNoSuchUser  = "user not found"
)

type (
	Repository interface {
		CreateClassroom(ctx context.Context, c Classroom, exec ...core.DBExecutor) (Classroom, error)
		QueryClassrooms(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Classroom, error)
		GetClassroom(ctx context.Context, id string, exec ...core.DBExecutor) (Classroom, error)
		UpdateClassroom(ctx context.Context, c Classroom, exec ...core.DBExecutor) (Classroom, error)
		DeleteClassroom(ctx context.Context, id string, exec ...core.DBExecutor) error
		AddStudents(ctx context.Context, classroomID string, studentIDs []string, exec ...core.DBExecutor) error
		RemoveStudents(ctx context.Context, classroomID string, studentIDs []string, exec ...core.DBExecutor) error
	}

	Service interface {
		CheckTeacher(ctx context.Context, teacherID string) error
		CheckStudents(ctx context.Context, studentIDs []string) error
		Create(ctx context.Context, nc NewClassroom) (Classroom, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Classroom, error)
		GetByID(ctx context.Context, id string) (Classroom, error)
		Update(ctx context.Context, c Classroom, uc UpdateClassroom) (Classroom, error)
		Delete(ctx context.Context, id string) error
		Enroll(ctx context.Context, classroomID string, studentIDs ...string) (Classroom, error)
		Unenroll(ctx context.Context, classroomID string, studentIDs ...string) (Classroom, error)
		// TeacherHasStudent reports whether the student is enrolled in one of the teacher's classrooms.
		TeacherHasStudent(ctx context.Context, teacherID, studentID string) (bool, error)
	}

	service struct {
		repo   Repository
		usrSvc user.Service
		tx     core.TxRunner
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service, tx core.TxRunner) Service {
	return &service{repo: repo, usrSvc: usrSvc, tx: tx}
}

func (svc *service) CheckTeacher(ctx context.Context, teacherID string) error {
	if teacherID == "" {
		return nil
	}
	usr, err := svc.usrSvc.GetByID(ctx, teacherID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return core.NewValidationError(nil, core.FieldError{Field: "teacher_id", Error: errNoSuchUser})
		}
		return errors.Wrap(err, "finding teacher")
	}
	if !usr.IsTeacher() {
		return core.NewValidationError(nil, core.FieldError{Field: "teacher_id", Error: errNotATeacher})
	}
	return nil
}

func (svc *service) CheckStudents(ctx context.Context, studentIDs []string) error {
	if len(studentIDs) == 0 {
		return nil
	}
	users, err := svc.usrSvc.Query(ctx, &user.QueryFilter{IDs: studentIDs}, nil)
	if err != nil {
		return errors.Wrap(err, "finding students")
	}
	found := make(map[string]user.User, len(users))
	for _, u := range users {
		found[u.ID] = u
	}
	for _, id := range studentIDs {
		usr, ok := found[id]
		if !ok {
			return core.NewValidationError(nil, core.FieldError{Field: "student_ids", Error: errNoSuchUser + ": " + id})
		}
		if !usr.IsStudent() {
			return core.NewValidationError(nil, core.FieldError{Field: "student_ids", Error: errNotAStudent + ": " + id})
		}
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nc NewClassroom) (Classroom, error) {
	now := time.Now().UTC()
	c := Classroom{
		Name:       nc.Name,
		GradeLevel: nc.GradeLevel,
		TeacherID:  nc.TeacherID,
		StudentIDs: []string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if c, err = svc.repo.CreateClassroom(ctx, c, exec); err != nil {
			return err
		}
		if len(nc.StudentIDs) > 0 {
			if err = svc.repo.AddStudents(ctx, c.ID, nc.StudentIDs, exec); err != nil {
				return err
			}
			c.StudentIDs = nc.StudentIDs
		}
		return nil
	})
	if err != nil {
		return Classroom{}, errors.Wrap(err, "creating classroom")
	}
	return c, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Classroom, error) {
	ordering = core.FilterOrderings(ordering, "name", "grade_level", "created_at", "updated_at")
	return svc.repo.QueryClassrooms(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Classroom, error) {
	return svc.repo.GetClassroom(ctx, id)
}

func (svc *service) Update(ctx context.Context, c Classroom, uc UpdateClassroom) (Classroom, error) {
	c.Name = uc.Name
	c.GradeLevel = uc.GradeLevel
	c.TeacherID = ""
	if uc.TeacherID != nil {
		c.TeacherID = *uc.TeacherID
	}
	c.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateClassroom(ctx, c)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteClassroom(ctx, id)
}

// Enroll adds students to the classroom; already enrolled students are ignored.
func (svc *service) Enroll(ctx context.Context, classroomID string, studentIDs ...string) (Classroom, error) {
	if err := svc.repo.AddStudents(ctx, classroomID, core.UniqueStrings(studentIDs)); err != nil {
		return Classroom{}, errors.Wrap(err, "enrolling students")
	}
	return svc.repo.GetClassroom(ctx, classroomID)
}

func (svc *service) Unenroll(ctx context.Context, classroomID string, studentIDs ...string) (Classroom, error) {
	if err := svc.repo.RemoveStudents(ctx, classroomID, core.UniqueStrings(studentIDs)); err != nil {
		return Classroom{}, errors.Wrap(err, "unenrolling students")
	}
	return svc.repo.GetClassroom(ctx, classroomID)
}

func (svc *service) TeacherHasStudent(ctx context.Context, teacherID, studentID string) (bool, error) {
	if teacherID == "" || studentID == "" {
		return false, nil
	}
	classrooms, err := svc.repo.QueryClassrooms(ctx, &QueryFilter{TeacherID: teacherID, StudentID: studentID}, nil)
	if err != nil {
		return false, errors.Wrap(err, "querying classrooms")
	}
	return len(classrooms) > 0, nil
}
