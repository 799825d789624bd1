package dashboard

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mathhub/factolearn/core"
	"github.com/mathhub/factolearn/core/classroom"
	"github.com/mathhub/factolearn/core/lesson"
	"github.com/mathhub/factolearn/core/progress"
	"github.com/mathhub/factolearn/core/quiz"
	"github.com/mathhub/factolearn/core/user"
	emailsvc "github.com/mathhub/factolearn/services/email"
	logsvc "github.com/mathhub/factolearn/services/logger"
	inmemdb "github.com/mathhub/factolearn/storage/database/inmem"
	testutil "github.com/mathhub/factolearn/tests"
)

func TestMain(m *testing.M) {
	core.ParseEmailTemplates(logsvc.NewRollbarLogger(zap.NewNop(), testutil.NewConfig()))
	os.Exit(m.Run())
}

func Test_dailyActivity(t *testing.T) {
	from := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	acts := []progress.Activity{
		{CreatedAt: from.Add(-time.Minute)}, // the day before
		{CreatedAt: from},
		{CreatedAt: from.Add(23 * time.Hour)},
		{CreatedAt: from.Add(3*24*time.Hour + time.Hour)},
		{CreatedAt: from.Add(6*24*time.Hour + 23*time.Hour)},
		{CreatedAt: from.Add(7 * 24 * time.Hour)}, // too late
	}

	got := dailyActivity(acts, from)
	require.Len(t, got, dailyActivityLen)
	assert.Equal(t, "2024-03-01", got[0].Date)
	assert.Equal(t, "2024-03-07", got[6].Date)
	counts := make([]int, 0, len(got))
	for _, d := range got {
		counts = append(counts, d.Count)
	}
	assert.Equal(t, []int{2, 0, 0, 1, 0, 0, 1}, counts)
}

func Test_attemptStats(t *testing.T) {
	now := time.Now().UTC()
	tests := []struct {
		name     string
		attempts []quiz.Attempt
		want     AttemptStats
	}{
		{name: "None", want: AttemptStats{}},
		{
			name: "Open attempts don't count towards the pass rate",
			attempts: []quiz.Attempt{
				{StartedAt: now},
				{StartedAt: now, SubmittedAt: now, Passed: true},
				{StartedAt: now, SubmittedAt: now},
				{StartedAt: now, SubmittedAt: now, Passed: true},
				{StartedAt: now, SubmittedAt: now, Passed: true},
			},
			want: AttemptStats{Total: 5, Submitted: 4, Passed: 3, PassRate: 0.75},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, attemptStats(tt.attempts))
		})
	}
}

func Test_userStats(t *testing.T) {
	now := time.Now().UTC()
	active, inactive := true, false
	users := []user.User{
		{IsActive: &active, Roles: []string{user.RoleAdminOwner, user.RoleAdmin}, CreatedAt: now.AddDate(-1, 0, 0)},
		{IsActive: &active, Roles: []string{user.RoleTeacher}, CreatedAt: now.AddDate(0, 0, -10)},
		{IsActive: &inactive, Roles: []string{user.RoleStudent}, CreatedAt: now},
		{IsActive: &active, Roles: []string{user.RoleStudent}, CreatedAt: now.AddDate(0, -2, 0)},
		{IsActive: &active, Roles: []string{}, CreatedAt: now},
	}

	got := userStats(users, now)
	assert.Equal(t, 5, got.Total)
	assert.Equal(t, 4, got.Active)
	assert.Equal(t, 1, got.Inactive)
	assert.Equal(t, 3, got.NewLast30Days)
	assert.Equal(t, map[string]int{"admin": 1, "teacher": 1, "student": 2}, got.ByRole)
}

func Test_service_isStruggling(t *testing.T) {
	now := time.Now().UTC()
	svc := &service{conf: core.LearningConfig{StruggleMastery: 0.5, InactiveAfter: 7 * 24 * time.Hour}}
	newcomer := user.User{CreatedAt: now.Add(-time.Hour)}
	veteran := user.User{CreatedAt: now.AddDate(0, -1, 0)}

	tests := []struct {
		name string
		usr  user.User
		sum  progress.Summary
		want bool
	}{
		{name: "Newcomer who did nothing yet", usr: newcomer, want: false},
		{name: "Never active for a month", usr: veteran, want: true},
		{name: "Low mastery", usr: veteran, sum: progress.Summary{LessonsStarted: 1, AverageMastery: 0.3, LastActivityAt: now}, want: true},
		{name: "Doing fine", usr: veteran, sum: progress.Summary{LessonsStarted: 2, AverageMastery: 0.8, LastActivityAt: now}, want: false},
		{
			name: "Inactive for too long",
			usr:  veteran,
			sum:  progress.Summary{LessonsStarted: 2, AverageMastery: 0.8, LastActivityAt: now.AddDate(0, 0, -8)},
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.isStruggling(tt.usr, tt.sum, now))
		})
	}
}

func Test_service_weeklyReports(t *testing.T) {
	ctx := context.Background()
	conf := testutil.NewConfig()
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	classRepo := inmemdb.NewClassroomRepository(db)
	lessonRepo := inmemdb.NewLessonRepository(db)
	mailSvc := emailsvc.NewMock(conf)

	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	progSvc := progress.NewService(inmemdb.NewProgressRepository(db), db, conf.Learning)
	svc := NewService(
		usrSvc,
		classroom.NewService(classRepo, usrSvc, db),
		lesson.NewService(lessonRepo),
		quiz.NewService(inmemdb.NewQuizRepository(db), progSvc, db, conf.Learning),
		progSvc,
		mailSvc,
		conf.Learning,
	)

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	retired := testutil.CreateUser(t, usrRepo, "Retired", "retired", "retired@test.cd", "", []string{user.RoleTeacher}, false)
	ada := testutil.CreateUser(t, usrRepo, "Ada", "ada", "ada@test.cd", "", []string{user.RoleStudent}, true)
	bob := testutil.CreateUser(t, usrRepo, "", "bob", "bob@test.cd", "", []string{user.RoleStudent}, true)
	testutil.CreateClassroom(t, classRepo, "5A", 5, teacher.ID, ada.ID, bob.ID)
	testutil.CreateClassroom(t, classRepo, "5B", 5, retired.ID, bob.ID)
	testutil.CreateClassroom(t, classRepo, "Orphans", 5, "", ada.ID)
	l1 := testutil.CreateLesson(t, lessonRepo, "Factors", lesson.TopicFactors, 5, true, teacher.ID)
	testutil.CreateLesson(t, lessonRepo, "Primes", lesson.TopicPrimes, 5, true, teacher.ID)

	_, err := progSvc.RecordPractice(ctx, ada.ID, l1.ID, 9, 10)
	require.NoError(t, err)

	reports, err := svc.WeeklyReports(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2, "classrooms without a teacher are skipped")

	var r Report
	for _, rep := range reports {
		if rep.ClassroomName == "5A" {
			r = rep
		}
	}
	assert.Equal(t, teacher.ID, r.Teacher.ID)
	require.Len(t, r.Rows, 2)
	// students are sorted by name, bob has none
	assert.Equal(t, "bob", r.Rows[0].Name, "falls back to the username")
	assert.Equal(t, "never", r.Rows[0].LastActive)
	assert.Equal(t, "Ada", r.Rows[1].Name)
	assert.Equal(t, 1, r.Rows[1].LessonsCompleted)
	assert.Equal(t, "90%", r.Rows[1].Mastery)
	assert.NotEqual(t, "never", r.Rows[1].LastActive)
	assert.Equal(t, "45%", r.AverageMastery)

	sent, err := svc.SendWeeklyReports(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent, "inactive teachers get no mail")
	msgs := mailSvc.SentMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "teacher@test.cd", msgs[0].To[0].Address)
	assert.Equal(t, "progress_report", msgs[0].TemplateName)
	assert.Contains(t, msgs[0].TextContent, "Ada")
	assert.Contains(t, msgs[0].Subject, "5A")
}
