package dashboard

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/mathhub/factolearn/core"
	"github.com/mathhub/factolearn/core/classroom"
	"github.com/mathhub/factolearn/core/i18n"
	"github.com/mathhub/factolearn/core/user"
)

type (
	ReportRow struct {
		Name             string
		LessonsCompleted int
		Mastery          string
		LastActive       string
		Struggling       bool
	}

	// Report is the weekly digest of a classroom, sent to its teacher.
	Report struct {
		Teacher        user.User
		ClassroomID    string
		ClassroomName  string
		GradeLevel     int
		Rows           []ReportRow
		AverageMastery string
	}
)

func (svc *service) WeeklyReports(ctx context.Context) ([]Report, error) {
	all, err := svc.classSvc.Query(ctx, &classroom.QueryFilter{}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying classrooms")
	}
	var classrooms []classroom.Classroom
	for _, c := range all {
		if c.TeacherID != "" {
			classrooms = append(classrooms, c)
		}
	}

	dashboards, err := svc.classrooms(ctx, classrooms)
	if err != nil {
		return nil, err
	}

	teachers := map[string]user.User{}
	reports := make([]Report, 0, len(dashboards))
	for _, d := range dashboards {
		teacher, ok := teachers[d.Classroom.TeacherID]
		if !ok {
			if teacher, err = svc.usrSvc.GetByID(ctx, d.Classroom.TeacherID); err != nil {
				if errors.Cause(err) == user.ErrNotFound {
					continue
				}
				return nil, errors.Wrap(err, "finding teacher")
			}
			teachers[teacher.ID] = teacher
		}
		reports = append(reports, buildReport(teacher, d))
	}
	return reports, nil
}

func buildReport(teacher user.User, d ClassroomDashboard) Report {
	r := Report{
		Teacher:        teacher,
		ClassroomID:    d.Classroom.ID,
		ClassroomName:  d.Classroom.Name,
		GradeLevel:     d.Classroom.GradeLevel,
		Rows:           make([]ReportRow, 0, len(d.Students)),
		AverageMastery: percent(d.AverageMastery),
	}
	for _, s := range d.Students {
		lastActive := "never"
		if !s.LastActivityAt.IsZero() {
			lastActive = humanize.Time(s.LastActivityAt)
		}
		r.Rows = append(r.Rows, ReportRow{
			Name:             s.Name,
			LessonsCompleted: s.LessonsCompleted,
			Mastery:          percent(s.AverageMastery),
			LastActive:       lastActive,
			Struggling:       s.Struggling,
		})
	}
	return r
}

func percent(ratio float64) string {
	return fmt.Sprintf("%s%%", humanize.FtoaWithDigits(ratio*100, 1))
}

func (svc *service) SendWeeklyReports(ctx context.Context) (int, error) {
	reports, err := svc.WeeklyReports(ctx)
	if err != nil {
		return 0, err
	}

	messages := make([]*core.EmailMessage, 0, len(reports))
	for _, r := range reports {
		if r.Teacher.Email == "" || !r.Teacher.Active() {
			continue
		}
		messages = append(messages, &core.EmailMessage{
			To:           []mail.Address{{Name: r.Teacher.Name, Address: r.Teacher.Email}},
			Subject:      i18n.T(r.Teacher.Lang(), "email.progress_report.subject", map[string]interface{}{"Classroom": r.ClassroomName}),
			TemplateName: "progress_report",
			TemplateData: map[string]interface{}{
				"TeacherName":    displayName(r.Teacher),
				"ClassroomName":  r.ClassroomName,
				"GradeLevel":     r.GradeLevel,
				"Rows":           r.Rows,
				"AverageMastery": r.AverageMastery,
			},
		})
	}
	if len(messages) > 0 {
		svc.mailSvc.SendMessages(messages...)
	}
	return len(messages), nil
}
