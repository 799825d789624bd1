package classroom

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mathhub/factolearn/core"
)

type Classroom struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	GradeLevel int       `json:"grade_level"`
	TeacherID  string    `json:"teacher_id"`
	StudentIDs []string  `json:"student_ids"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC
}

func (c Classroom) HasStudent(studentID string) bool {
	return core.ContainsString(c.StudentIDs, studentID)
}

// NewClassroom contains information needed to create a new Classroom.
type NewClassroom struct {
	Name       string   `json:"name" validate:"required,max=100"`
	GradeLevel int      `json:"grade_level" validate:"required,min=1,max=12"`
	TeacherID  string   `json:"teacher_id" validate:"omitempty,uuid"`
	StudentIDs []string `json:"student_ids" validate:"omitempty,dive,uuid"`
}

func (nc *NewClassroom) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nc.Name = core.CleanString(nc.Name)
	nc.StudentIDs = core.UniqueStrings(nc.StudentIDs)
	if err := validate.Struct(nc); err != nil {
		return err
	}
	if err := svc.CheckTeacher(ctx, nc.TeacherID); err != nil {
		return err
	}
	return svc.CheckStudents(ctx, nc.StudentIDs)
}

// UpdateClassroom defines what information may be provided to modify an existing Classroom.
type UpdateClassroom struct {
	Name       string  `json:"name" validate:"omitempty,max=100"`
	GradeLevel int     `json:"grade_level" validate:"omitempty,min=1,max=12"`
	TeacherID  *string `json:"teacher_id" validate:"omitempty,uuid"`
}

func (uc *UpdateClassroom) Validate(ctx context.Context, orig Classroom, validate *validator.Validate, svc Service) error {
	if name := core.CleanString(uc.Name); name != "" {
		uc.Name = name
	} else {
		uc.Name = orig.Name
	}
	if uc.GradeLevel == 0 {
		uc.GradeLevel = orig.GradeLevel
	}
	if uc.TeacherID == nil {
		uc.TeacherID = &orig.TeacherID
	}
	if *uc.TeacherID == "" {
		uc.TeacherID = nil // unassign
		return validate.Struct(uc)
	}
	if err := validate.Struct(uc); err != nil {
		return err
	}
	return svc.CheckTeacher(ctx, *uc.TeacherID)
}

// Enrolment lists the students to (un)enrol.
type Enrolment struct {
	StudentIDs []string `json:"student_ids" query:"id" validate:"required,min=1,dive,uuid"`
}

func (e *Enrolment) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	e.StudentIDs = core.UniqueStrings(e.StudentIDs)
	if err := validate.Struct(e); err != nil {
		return err
	}
	return svc.CheckStudents(ctx, e.StudentIDs)
}

type QueryFilter struct {
	Search     string `query:"search"`
	GradeLevel int    `query:"grade_level"`
	TeacherID  string `query:"teacher"`
	StudentID  string `query:"student"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.TeacherID = core.CleanString(qf.TeacherID)
	qf.StudentID = core.CleanString(qf.StudentID)
}
