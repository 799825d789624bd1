package dashboard

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/mathhub/factolearn/core"
	"github.com/mathhub/factolearn/core/classroom"
	"github.com/mathhub/factolearn/core/lesson"
	"github.com/mathhub/factolearn/core/progress"
	"github.com/mathhub/factolearn/core/quiz"
	"github.com/mathhub/factolearn/core/user"
)

const (
	streakLookBack   = 366 * 24 * time.Hour
	dailyActivityLen = 7
	newUsersWindow   = 30 * 24 * time.Hour
	maxConcurrency   = 4
)

var nowFunc = time.Now // mockable

type (
	Service interface {
		// Teacher builds the dashboard of every classroom of the teacher.
		Teacher(ctx context.Context, teacherID string) (TeacherDashboard, error)
		Classroom(ctx context.Context, c classroom.Classroom) (ClassroomDashboard, error)
		Admin(ctx context.Context) (AdminDashboard, error)
		// WeeklyReports builds the progress report of every classroom that has a teacher.
		WeeklyReports(ctx context.Context) ([]Report, error)
		// SendWeeklyReports emails the weekly reports to their teachers & returns how many were sent.
		SendWeeklyReports(ctx context.Context) (int, error)
	}

	service struct {
		usrSvc    user.Service
		classSvc  classroom.Service
		lessonSvc lesson.Service
		quizSvc   quiz.Service
		progSvc   progress.Service
		mailSvc   core.EmailService
		conf      core.LearningConfig
	}
)

var _ Service = (*service)(nil)

func NewService(
	usrSvc user.Service, classSvc classroom.Service, lessonSvc lesson.Service, quizSvc quiz.Service,
	progSvc progress.Service, mailSvc core.EmailService, conf core.LearningConfig,
) Service {
	return &service{
		usrSvc:    usrSvc,
		classSvc:  classSvc,
		lessonSvc: lessonSvc,
		quizSvc:   quizSvc,
		progSvc:   progSvc,
		mailSvc:   mailSvc,
		conf:      conf,
	}
}

func (svc *service) Teacher(ctx context.Context, teacherID string) (TeacherDashboard, error) {
	classrooms, err := svc.classSvc.Query(ctx, &classroom.QueryFilter{TeacherID: teacherID}, nil)
	if err != nil {
		return TeacherDashboard{}, errors.Wrap(err, "querying classrooms")
	}

	dashboards, err := svc.classrooms(ctx, classrooms)
	if err != nil {
		return TeacherDashboard{}, err
	}
	return TeacherDashboard{TeacherID: teacherID, Classrooms: dashboards, GeneratedAt: nowFunc().UTC()}, nil
}

// classrooms builds the classroom dashboards concurrently, keeping the classrooms order.
func (svc *service) classrooms(ctx context.Context, classrooms []classroom.Classroom) ([]ClassroomDashboard, error) {
	dashboards := make([]ClassroomDashboard, len(classrooms))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)
	for i, c := range classrooms {
		i, c := i, c
		g.Go(func() error {
			d, err := svc.Classroom(gCtx, c)
			if err != nil {
				return errors.Wrapf(err, "classroom %s", c.ID)
			}
			dashboards[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dashboards, nil
}

func (svc *service) Classroom(ctx context.Context, c classroom.Classroom) (ClassroomDashboard, error) {
	d := ClassroomDashboard{Classroom: c, Students: []StudentRow{}, Lessons: []LessonRow{}}

	published := true
	lessons, err := svc.lessonSvc.Query(ctx, &lesson.QueryFilter{GradeLevel: c.GradeLevel, IsPublished: &published}, nil)
	if err != nil {
		return d, errors.Wrap(err, "querying lessons")
	}
	if len(c.StudentIDs) == 0 {
		for _, l := range lessons {
			d.Lessons = append(d.Lessons, LessonRow{LessonID: l.ID, Title: l.Title, Topic: l.Topic})
		}
		return d, nil
	}

	students, err := svc.usrSvc.Query(ctx, &user.QueryFilter{IDs: c.StudentIDs}, []core.DBOrdering{{Field: "name", Ascending: true}})
	if err != nil {
		return d, errors.Wrap(err, "querying students")
	}
	lps, err := svc.progSvc.Query(ctx, &progress.QueryFilter{StudentIDs: c.StudentIDs})
	if err != nil {
		return d, errors.Wrap(err, "querying progress")
	}
	now := nowFunc().UTC()
	acts, err := svc.progSvc.QueryActivities(ctx, &progress.ActivityFilter{StudentIDs: c.StudentIDs, From: now.Add(-streakLookBack)})
	if err != nil {
		return d, errors.Wrap(err, "querying activities")
	}

	lpsByStudent := make(map[string][]progress.LessonProgress, len(students))
	lpsByLesson := make(map[string][]progress.LessonProgress, len(lessons))
	for _, lp := range lps {
		lpsByStudent[lp.StudentID] = append(lpsByStudent[lp.StudentID], lp)
		lpsByLesson[lp.LessonID] = append(lpsByLesson[lp.LessonID], lp)
	}
	actTimes := make(map[string][]time.Time, len(students))
	for _, a := range acts {
		actTimes[a.StudentID] = append(actTimes[a.StudentID], a.CreatedAt)
	}

	var masterySum float64
	for _, usr := range students {
		sum := progress.Summarize(usr.ID, lpsByStudent[usr.ID])
		current, _ := progress.Streaks(actTimes[usr.ID], now)
		row := StudentRow{
			StudentID:        usr.ID,
			Name:             displayName(usr),
			Username:         usr.Username,
			LessonsStarted:   sum.LessonsStarted,
			LessonsCompleted: sum.LessonsCompleted,
			AverageMastery:   sum.AverageMastery,
			BestQuizAverage:  sum.BestQuizAverage,
			LastActivityAt:   sum.LastActivityAt,
			CurrentStreak:    current,
			Struggling:       svc.isStruggling(usr, sum, now),
		}
		if row.Struggling {
			d.StrugglingCount++
		}
		masterySum += row.AverageMastery
		d.Students = append(d.Students, row)
	}
	if len(d.Students) > 0 {
		d.AverageMastery = masterySum / float64(len(d.Students))
	}

	var completionSum float64
	for _, l := range lessons {
		d.Lessons = append(d.Lessons, lessonRow(l, lpsByLesson[l.ID], len(d.Students)))
		completionSum += d.Lessons[len(d.Lessons)-1].CompletionRate
	}
	if len(lessons) > 0 {
		d.CompletionRate = completionSum / float64(len(lessons))
	}
	return d, nil
}

func lessonRow(l lesson.Lesson, lps []progress.LessonProgress, studentCount int) LessonRow {
	row := LessonRow{LessonID: l.ID, Title: l.Title, Topic: l.Topic}
	if studentCount == 0 {
		return row
	}
	var mastery float64
	for _, lp := range lps {
		if lp.Status != progress.StatusNotStarted {
			row.Started++
		}
		if lp.IsCompleted() {
			row.Completed++
		}
		mastery += lp.Mastery
	}
	row.CompletionRate = float64(row.Completed) / float64(studentCount)
	row.AverageMastery = mastery / float64(studentCount)
	return row
}

// isStruggling flags students with a low mastery or who haven't been active for a while.
// Students who never did anything are measured from the creation of their account.
func (svc *service) isStruggling(usr user.User, sum progress.Summary, now time.Time) bool {
	if sum.LessonsStarted > 0 && sum.AverageMastery < svc.conf.StruggleMastery {
		return true
	}
	lastSeen := sum.LastActivityAt
	if lastSeen.IsZero() {
		lastSeen = usr.CreatedAt
	}
	return svc.conf.InactiveAfter > 0 && now.Sub(lastSeen) > svc.conf.InactiveAfter
}

func displayName(usr user.User) string {
	if usr.Name != "" {
		return usr.Name
	}
	if usr.Username != "" {
		return usr.Username
	}
	return usr.Email
}

func (svc *service) Admin(ctx context.Context) (AdminDashboard, error) {
	now := nowFunc().UTC()
	d := AdminDashboard{GeneratedAt: now}

	// every section writes to its own field of d
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		users, err := svc.usrSvc.Query(gCtx, &user.QueryFilter{}, nil)
		if err != nil {
			return errors.Wrap(err, "querying users")
		}
		d.Users = userStats(users, now)
		return nil
	})
	g.Go(func() error {
		lessons, err := svc.lessonSvc.Query(gCtx, &lesson.QueryFilter{}, nil)
		if err != nil {
			return errors.Wrap(err, "querying lessons")
		}
		d.Lessons.Total = len(lessons)
		for _, l := range lessons {
			if l.IsPublished {
				d.Lessons.Published++
			}
		}
		d.Lessons.Draft = d.Lessons.Total - d.Lessons.Published
		return nil
	})
	g.Go(func() error {
		quizzes, err := svc.quizSvc.Query(gCtx, &quiz.QueryFilter{}, nil)
		if err != nil {
			return errors.Wrap(err, "querying quizzes")
		}
		d.Quizzes = len(quizzes)
		return nil
	})
	g.Go(func() error {
		classrooms, err := svc.classSvc.Query(gCtx, &classroom.QueryFilter{}, nil)
		if err != nil {
			return errors.Wrap(err, "querying classrooms")
		}
		d.Classrooms = len(classrooms)
		return nil
	})
	g.Go(func() error {
		attempts, err := svc.quizSvc.QueryAttempts(gCtx, &quiz.AttemptFilter{})
		if err != nil {
			return errors.Wrap(err, "querying attempts")
		}
		d.Attempts = attemptStats(attempts)
		return nil
	})
	g.Go(func() error {
		from := startOfDay(now).AddDate(0, 0, -(dailyActivityLen - 1))
		acts, err := svc.progSvc.QueryActivities(gCtx, &progress.ActivityFilter{From: from})
		if err != nil {
			return errors.Wrap(err, "querying activities")
		}
		d.DailyActivity = dailyActivity(acts, from)
		return nil
	})

	if err := g.Wait(); err != nil {
		return AdminDashboard{}, err
	}
	return d, nil
}

func userStats(users []user.User, now time.Time) UserStats {
	stats := UserStats{Total: len(users), ByRole: map[string]int{"admin": 0, "teacher": 0, "student": 0}}
	for _, usr := range users {
		if usr.Active() {
			stats.Active++
		} else {
			stats.Inactive++
		}
		if now.Sub(usr.CreatedAt) <= newUsersWindow {
			stats.NewLast30Days++
		}
		seen := map[string]bool{}
		for _, role := range usr.Roles {
			group := strings.SplitN(role, ":", 2)[0]
			if !seen[group] {
				seen[group] = true
				stats.ByRole[group]++
			}
		}
	}
	return stats
}

func attemptStats(attempts []quiz.Attempt) AttemptStats {
	stats := AttemptStats{Total: len(attempts)}
	for _, a := range attempts {
		if !a.IsSubmitted() {
			continue
		}
		stats.Submitted++
		if a.Passed {
			stats.Passed++
		}
	}
	if stats.Submitted > 0 {
		stats.PassRate = float64(stats.Passed) / float64(stats.Submitted)
	}
	return stats
}

// dailyActivity counts acts per UTC day, from the day of `from` to the following dailyActivityLen-1 days.
func dailyActivity(acts []progress.Activity, from time.Time) []DayCount {
	counts := make([]DayCount, dailyActivityLen)
	for i := range counts {
		counts[i].Date = from.AddDate(0, 0, i).Format("2006-01-02")
	}
	for _, a := range acts {
		idx := int(startOfDay(a.CreatedAt.UTC()).Sub(from) / (24 * time.Hour))
		if idx >= 0 && idx < dailyActivityLen {
			counts[idx].Count++
		}
	}
	return counts
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
