package inmemdb

import (
	"context"
	"strings"

	"github.com/mathhub/factolearn/core"
	"github.com/mathhub/factolearn/core/classroom"
)

var classroomComparators = comparators[classroom.Classroom]{
	"name":        func(a, b classroom.Classroom) int { return cmpStrings(a.Name, b.Name) },
	"grade_level": func(a, b classroom.Classroom) int { return cmpInts(a.GradeLevel, b.GradeLevel) },
	"created_at":  func(a, b classroom.Classroom) int { return cmpTimes(a.CreatedAt, b.CreatedAt) },
	"updated_at":  func(a, b classroom.Classroom) int { return cmpTimes(a.UpdatedAt, b.UpdatedAt) },
	"id":          func(a, b classroom.Classroom) int { return strings.Compare(a.ID, b.ID) },
}

type classroomRepository struct {
	db *DB
}

var _ classroom.Repository = (*classroomRepository)(nil)

func NewClassroomRepository(db *DB) classroom.Repository {
	return &classroomRepository{db: db}
}

func copyClassroom(c classroom.Classroom) classroom.Classroom {
	c.StudentIDs = cloneStrings(c.StudentIDs)
	if c.StudentIDs == nil {
		c.StudentIDs = []string{}
	}
	return c
}

func (repo *classroomRepository) CreateClassroom(_ context.Context, c classroom.Classroom, _ ...core.DBExecutor) (classroom.Classroom, error) {
	c = copyClassroom(c)
	c.ID = newID()
	repo.db.classroom.set(c.ID, c)
	return copyClassroom(c), nil
}

func (repo *classroomRepository) QueryClassrooms(
	_ context.Context, filter *classroom.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor,
) ([]classroom.Classroom, error) {
	classrooms := repo.db.classroom.filter(func(c classroom.Classroom) bool {
		if filter == nil {
			return true
		}
		if filter.Search != "" && !containsFold(c.Name, filter.Search) {
			return false
		}
		if filter.GradeLevel > 0 && c.GradeLevel != filter.GradeLevel {
			return false
		}
		if filter.TeacherID != "" && c.TeacherID != filter.TeacherID {
			return false
		}
		if filter.StudentID != "" && !c.HasStudent(filter.StudentID) {
			return false
		}
		return true
	})

	sortRows(classrooms, orderingWith(ordering,
		core.DBOrdering{Field: "name", Ascending: true},
		core.DBOrdering{Field: "id", Ascending: true},
	), classroomComparators)
	for i := range classrooms {
		classrooms[i] = copyClassroom(classrooms[i])
	}
	return classrooms, nil
}

func (repo *classroomRepository) GetClassroom(_ context.Context, id string, _ ...core.DBExecutor) (classroom.Classroom, error) {
	c, ok := repo.db.classroom.get(id)
	if !ok {
		return classroom.Classroom{}, classroom.ErrNotFound
	}
	return copyClassroom(c), nil
}

func (repo *classroomRepository) UpdateClassroom(_ context.Context, c classroom.Classroom, _ ...core.DBExecutor) (classroom.Classroom, error) {
	t := repo.db.classroom
	t.Lock()
	defer t.Unlock()

	orig, ok := t.rows[c.ID]
	if !ok {
		return classroom.Classroom{}, classroom.ErrNotFound
	}
	// enrolments are managed by AddStudents & RemoveStudents
	c.StudentIDs = orig.StudentIDs
	t.rows[c.ID] = copyClassroom(c)
	return copyClassroom(c), nil
}

func (repo *classroomRepository) DeleteClassroom(_ context.Context, id string, _ ...core.DBExecutor) error {
	if repo.db.classroom.delete(id) == 0 {
		return classroom.ErrNotFound
	}
	return nil
}

func (repo *classroomRepository) AddStudents(_ context.Context, classroomID string, studentIDs []string, _ ...core.DBExecutor) error {
	t := repo.db.classroom
	t.Lock()
	defer t.Unlock()

	c, ok := t.rows[classroomID]
	if !ok {
		return classroom.ErrNotFound
	}
	c = copyClassroom(c)
	for _, id := range studentIDs {
		if !c.HasStudent(id) {
			c.StudentIDs = append(c.StudentIDs, id)
		}
	}
	t.rows[classroomID] = c
	return nil
}

func (repo *classroomRepository) RemoveStudents(_ context.Context, classroomID string, studentIDs []string, _ ...core.DBExecutor) error {
	t := repo.db.classroom
	t.Lock()
	defer t.Unlock()

	c, ok := t.rows[classroomID]
	if !ok {
		return classroom.ErrNotFound
	}
	kept := make([]string, 0, len(c.StudentIDs))
	for _, id := range c.StudentIDs {
		if !core.ContainsString(studentIDs, id) {
			kept = append(kept, id)
		}
	}
	c.StudentIDs = kept
	t.rows[classroomID] = c
	return nil
}
