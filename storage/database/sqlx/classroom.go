package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/mathhub/factolearn/core"
	"github.com/mathhub/factolearn/core/classroom"
)

const classroomColumns = `id, name, grade_level, teacher_id, created_at, updated_at`

type classroomRow struct {
	ID         string      `db:"id"`
	Name       string      `db:"name"`
	GradeLevel int         `db:"grade_level"`
	TeacherID  null.String `db:"teacher_id"`
	CreatedAt  time.Time   `db:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at"`
}

type enrolmentRow struct {
	ClassroomID string `db:"classroom_id"`
	StudentID   string `db:"student_id"`
}

func toClassroomRow(c classroom.Classroom) classroomRow {
	return classroomRow{
		ID:         c.ID,
		Name:       c.Name,
		GradeLevel: c.GradeLevel,
		TeacherID:  null.NewString(c.TeacherID, c.TeacherID != ""),
		CreatedAt:  c.CreatedAt.UTC(),
		UpdatedAt:  c.UpdatedAt.UTC(),
	}
}

func (row classroomRow) toClassroom(studentIDs []string) classroom.Classroom {
	if studentIDs == nil {
		studentIDs = []string{}
	}
	return classroom.Classroom{
		ID:         row.ID,
		Name:       row.Name,
		GradeLevel: row.GradeLevel,
		TeacherID:  row.TeacherID.String,
		StudentIDs: studentIDs,
		CreatedAt:  row.CreatedAt.UTC(),
		UpdatedAt:  row.UpdatedAt.UTC(),
	}
}

type classroomRepository struct {
	repo
}

var _ classroom.Repository = (*classroomRepository)(nil)

func NewClassroomRepository(db *sqlx.DB) classroom.Repository {
	return &classroomRepository{repo{db: db}}
}

func (r *classroomRepository) CreateClassroom(ctx context.Context, c classroom.Classroom, exec ...core.DBExecutor) (classroom.Classroom, error) {
	c.ID = newID()
	row := toClassroomRow(c)
	_, err := namedExec(ctx, r.getExec(exec), `INSERT INTO classroom (`+classroomColumns+`)
		VALUES (:id, :name, :grade_level, :teacher_id, :created_at, :updated_at)`, row)
	if err != nil {
		return classroom.Classroom{}, errors.Wrap(err, "inserting classroom")
	}
	return row.toClassroom(nil), nil
}

// studentIDs maps the given classrooms to their students, in enrolment order.
func (r *classroomRepository) studentIDs(ctx context.Context, exe sqlx.ExtContext, classroomIDs []string) (map[string][]string, error) {
	res := make(map[string][]string, len(classroomIDs))
	if len(classroomIDs) == 0 {
		return res, nil
	}
	var rows []enrolmentRow
	q := `SELECT classroom_id, student_id FROM classroom_student WHERE classroom_id IN (?) ORDER BY enrolled_at, student_id`
	if err := selectQ(ctx, exe, &rows, q, classroomIDs); err != nil {
		return nil, errors.Wrap(err, "querying enrolments")
	}
	for _, row := range rows {
		res[row.ClassroomID] = append(res[row.ClassroomID], row.StudentID)
	}
	return res, nil
}

func (r *classroomRepository) QueryClassrooms(
	ctx context.Context, filter *classroom.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor,
) ([]classroom.Classroom, error) {
	var w where
	if filter != nil {
		if filter.Search != "" {
			w.add(`name ILIKE ?`, "%"+filter.Search+"%")
		}
		if filter.GradeLevel > 0 {
			w.add(`grade_level = ?`, filter.GradeLevel)
		}
		if filter.TeacherID != "" {
			if !isUUID(filter.TeacherID) {
				return []classroom.Classroom{}, nil
			}
			w.add(`teacher_id = ?`, filter.TeacherID)
		}
		if filter.StudentID != "" {
			if !isUUID(filter.StudentID) {
				return []classroom.Classroom{}, nil
			}
			w.add(`id IN (SELECT classroom_id FROM classroom_student WHERE student_id = ?)`, filter.StudentID)
		}
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "name", Ascending: true}}
	}

	exe := r.getExec(exec)
	var rows []classroomRow
	if err := selectQ(ctx, exe, &rows, `SELECT `+classroomColumns+` FROM classroom`+w.String()+orderBy(ordering), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying classrooms")
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	students, err := r.studentIDs(ctx, exe, ids)
	if err != nil {
		return nil, err
	}

	classrooms := make([]classroom.Classroom, 0, len(rows))
	for _, row := range rows {
		classrooms = append(classrooms, row.toClassroom(students[row.ID]))
	}
	return classrooms, nil
}

func (r *classroomRepository) GetClassroom(ctx context.Context, id string, exec ...core.DBExecutor) (classroom.Classroom, error) {
	if !isUUID(id) {
		return classroom.Classroom{}, classroom.ErrNotFound
	}

	exe := r.getExec(exec)
	var row classroomRow
	if err := getQ(ctx, exe, &row, `SELECT `+classroomColumns+` FROM classroom WHERE id = ?`, id); err != nil {
		return classroom.Classroom{}, trapNoRowsErr(err, classroom.ErrNotFound, "finding classroom")
	}
	students, err := r.studentIDs(ctx, exe, []string{id})
	if err != nil {
		return classroom.Classroom{}, err
	}
	return row.toClassroom(students[id]), nil
}

func (r *classroomRepository) UpdateClassroom(ctx context.Context, c classroom.Classroom, exec ...core.DBExecutor) (classroom.Classroom, error) {
	row := toClassroomRow(c)
	res, err := namedExec(ctx, r.getExec(exec), `UPDATE classroom SET
		name = :name, grade_level = :grade_level, teacher_id = :teacher_id, updated_at = :updated_at
		WHERE id = :id`, row)
	if err != nil {
		return classroom.Classroom{}, errors.Wrap(err, "updating classroom")
	}
	if err = rowsAffected(res, classroom.ErrNotFound); err != nil {
		return classroom.Classroom{}, err
	}
	return row.toClassroom(c.StudentIDs), nil
}

func (r *classroomRepository) DeleteClassroom(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return classroom.ErrNotFound
	}
	res, err := execQ(ctx, r.getExec(exec), `DELETE FROM classroom WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "deleting classroom")
	}
	return rowsAffected(res, classroom.ErrNotFound)
}

func (r *classroomRepository) AddStudents(ctx context.Context, classroomID string, studentIDs []string, exec ...core.DBExecutor) error {
	exe := r.getExec(exec)
	now := time.Now().UTC()
	for _, id := range studentIDs {
		_, err := execQ(ctx, exe, `INSERT INTO classroom_student (classroom_id, student_id, enrolled_at)
			VALUES (?, ?, ?) ON CONFLICT DO NOTHING`, classroomID, id, now)
		if err != nil {
			return errors.Wrap(err, "enrolling student")
		}
	}
	return nil
}

func (r *classroomRepository) RemoveStudents(ctx context.Context, classroomID string, studentIDs []string, exec ...core.DBExecutor) error {
	if len(studentIDs) == 0 {
		return nil
	}
	_, err := execQ(ctx, r.getExec(exec), `DELETE FROM classroom_student WHERE classroom_id = ? AND student_id IN (?)`, classroomID, studentIDs)
	if err != nil {
		return errors.Wrap(err, "unenrolling students")
	}
	return nil
}
