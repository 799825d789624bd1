package main

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mathhub/factolearn/core"
	"github.com/mathhub/factolearn/core/classroom"
	"github.com/mathhub/factolearn/core/dashboard"
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

type env struct {
	cli       *commandLine
	out       *bytes.Buffer
	usrRepo   user.Repository
	classRepo classroom.Repository
	quizRepo  quiz.Repository
	mailSvc   *emailsvc.Mock
}

func setup(t *testing.T) *env {
	t.Helper()

	conf := testutil.NewConfig()
	db := inmemdb.Open()
	e := &env{
		out:       new(bytes.Buffer),
		usrRepo:   inmemdb.NewUserRepository(db),
		classRepo: inmemdb.NewClassroomRepository(db),
		quizRepo:  inmemdb.NewQuizRepository(db),
		mailSvc:   emailsvc.NewMock(conf),
	}

	usrSvc := user.NewService(e.usrRepo, e.mailSvc, conf)
	classSvc := classroom.NewService(e.classRepo, usrSvc, db)
	progSvc := progress.NewService(inmemdb.NewProgressRepository(db), db, conf.Learning)
	lessonSvc := lesson.NewService(inmemdb.NewLessonRepository(db))
	quizSvc := quiz.NewService(e.quizRepo, progSvc, db, conf.Learning)

	e.cli = &commandLine{
		conf:      conf,
		usrRepo:   e.usrRepo,
		lessonSvc: lessonSvc,
		quizSvc:   quizSvc,
		dashSvc:   dashboard.NewService(usrSvc, classSvc, lessonSvc, quizSvc, progSvc, e.mailSvc, conf.Learning),
		out:       e.out,
	}
	return e
}

func mockPassword(t *testing.T, pwd string) {
	t.Helper()
	orig := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

func Test_commandLine_run(t *testing.T) {
	e := setup(t)

	require.NoError(t, e.cli.run([]string{}))
	for _, name := range []string{"migrate", "adduser", "resetpassword", "seed", "report", "stats"} {
		assert.Contains(t, e.out.String(), name)
	}

	err := e.cli.run([]string{"lol"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "lol"`)
}

func Test_commandLine_migrate(t *testing.T) {
	e := setup(t)

	assert.Equal(t, errNoDatabase, e.cli.run([]string{"migrate", "up"}))

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	e.cli.db = db

	var gotCommand string
	var gotArgs []string
	orig := migrateFunc
	migrateFunc = func(_ *sql.DB, command string, args ...string) error {
		gotCommand, gotArgs = command, args
		if command == "lol" {
			return errors.Errorf("%q: no such command", command)
		}
		return nil
	}
	t.Cleanup(func() { migrateFunc = orig })

	tests := []struct {
		name        string
		args        []string
		wantCommand string
		wantArgs    []string
		wantErr     bool
	}{
		{name: "No command", args: []string{"migrate"}, wantErr: true},
		{name: "Unknown command", args: []string{"migrate", "lol"}, wantCommand: "lol", wantArgs: []string{}, wantErr: true},
		{name: "Up", args: []string{"migrate", "up"}, wantCommand: "up", wantArgs: []string{}},
		{name: "Up to", args: []string{"migrate", "up-to", "3"}, wantCommand: "up-to", wantArgs: []string{"3"}},
		{name: "Status", args: []string{"migrate", "status"}, wantCommand: "status", wantArgs: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotCommand, gotArgs = "", nil
			err := e.cli.run(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantCommand, gotCommand)
			if tt.wantCommand != "" {
				assert.ElementsMatch(t, tt.wantArgs, gotArgs)
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	mockPassword(t, "")
	assert.Equal(t, errEmptyPassword, errors.Cause(e.cli.run([]string{"adduser", "-u", "ada"})))

	mockPassword(t, "s3cret-pwd")
	assert.Error(t, e.cli.run([]string{"adduser"}), "username or email required")
	assert.Error(t, e.cli.run([]string{"adduser", "-u", "ada", "--admin", "--student"}), "one role at most")

	require.NoError(t, e.cli.run([]string{"adduser", "-u", " Ada ", "-e", "ADA@test.cd", "-n", "Ada Lovelace", "--teacher"}))
	usr, err := e.usrRepo.GetUser(ctx, user.GetFilter{Username: "ada"})
	require.NoError(t, err)
	assert.Equal(t, "ada@test.cd", usr.Email)
	assert.Equal(t, "Ada Lovelace", usr.Name)
	assert.Equal(t, []string{user.RoleTeacher}, usr.Roles)
	assert.True(t, usr.Active())
	assert.NoError(t, usr.CheckPassword("s3cret-pwd"))

	// the same user is updated
	mockPassword(t, "n3w-pwd")
	require.NoError(t, e.cli.run([]string{"adduser", "-e", "ada@test.cd", "--admin"}))
	updated, err := e.usrRepo.GetUser(ctx, user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{user.RoleAdmin}, updated.Roles)
	assert.Equal(t, "Ada Lovelace", updated.Name)
	assert.NoError(t, updated.CheckPassword("n3w-pwd"))

	users, err := e.usrRepo.QueryUsers(ctx, nil, nil)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	// roles are kept when none is given
	require.NoError(t, e.cli.run([]string{"adduser", "-u", "ada"}))
	updated, err = e.usrRepo.GetUser(ctx, user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{user.RoleAdmin}, updated.Roles)
}

func Test_commandLine_resetPassword(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	usr := testutil.CreateUser(t, e.usrRepo, "User", "awe", "awe@test.cd", "mdr", nil, true)

	tests := []struct {
		name    string
		args    []string
		pwd     string
		wantErr error
	}{
		{name: "No username", args: []string{"resetpassword"}, pwd: "lol"},
		{name: "No password", args: []string{"resetpassword", "-u", usr.Username}, wantErr: errEmptyPassword},
		{name: "User not found", args: []string{"resetpassword", "-u", "lol"}, pwd: "lol", wantErr: user.ErrNotFound},
		{name: "Reset with username", args: []string{"resetpassword", "-u", usr.Username}, pwd: "lol"},
		{name: "Reset with email", args: []string{"resetpassword", "--username", usr.Email}, pwd: "lmao"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(t, tt.pwd)

			err := e.cli.run(tt.args)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			if len(tt.args) == 1 {
				assert.Error(t, err, "required flag")
				return
			}
			require.NoError(t, err)
			refreshed, err := e.usrRepo.GetUser(ctx, user.GetFilter{ID: usr.ID})
			require.NoError(t, err)
			assert.NoError(t, refreshed.CheckPassword(tt.pwd))
		})
	}
}

func Test_commandLine_seed(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	testutil.CreateUser(t, e.usrRepo, "Ada", "ada", "ada@test.cd", "", []string{user.RoleStudent}, true)
	teacher := testutil.CreateUser(t, e.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)

	assert.Error(t, e.cli.run([]string{"seed"}), "author required")
	assert.Error(t, e.cli.run([]string{"seed", "-u", "ada"}), "students cannot author lessons")
	assert.Error(t, e.cli.run([]string{"seed", "-u", "lol"}))

	require.NoError(t, e.cli.run([]string{"seed", "-u", "teacher@test.cd"}))
	assert.Contains(t, e.out.String(), "6 lesson(s) created, 0 already existed")

	lessons, err := e.cli.lessonSvc.Query(ctx, &lesson.QueryFilter{}, nil)
	require.NoError(t, err)
	require.Len(t, lessons, len(sampleLessons))
	for _, l := range lessons {
		assert.Equal(t, teacher.ID, l.AuthorID)
	}

	quizzes, err := e.quizRepo.QueryQuizzes(ctx, &quiz.QueryFilter{}, nil)
	require.NoError(t, err)
	require.Len(t, quizzes, 4)
	for _, q := range quizzes {
		assert.True(t, q.IsPublished)
		for _, qu := range q.Questions {
			assert.NotEmpty(t, qu.ID)
			assert.GreaterOrEqual(t, qu.Points, 1)
		}
	}

	// seeding twice is a no-op
	e.out.Reset()
	require.NoError(t, e.cli.run([]string{"seed", "-u", "teacher"}))
	assert.Contains(t, e.out.String(), "0 lesson(s) created, 6 already existed")
	quizzes, err = e.quizRepo.QueryQuizzes(ctx, &quiz.QueryFilter{}, nil)
	require.NoError(t, err)
	assert.Len(t, quizzes, 4)
}

func Test_commandLine_report(t *testing.T) {
	e := setup(t)

	teacher := testutil.CreateUser(t, e.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	ada := testutil.CreateUser(t, e.usrRepo, "Ada", "ada", "ada@test.cd", "", []string{user.RoleStudent}, true)
	testutil.CreateClassroom(t, e.classRepo, "5A", 5, teacher.ID, ada.ID)
	testutil.CreateClassroom(t, e.classRepo, "Orphans", 5, "")

	require.NoError(t, e.cli.run([]string{"report", "--dry-run"}))
	assert.Contains(t, e.out.String(), "5A (grade 5), Teacher")
	assert.Contains(t, e.out.String(), "Ada")
	assert.NotContains(t, e.out.String(), "Orphans")
	assert.Empty(t, e.mailSvc.SentMessages())

	e.out.Reset()
	require.NoError(t, e.cli.run([]string{"report"}))
	assert.Contains(t, e.out.String(), "1 report(s) sent")
	msgs := e.mailSvc.SentMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "progress_report", msgs[0].TemplateName)
	assert.Equal(t, "teacher@test.cd", msgs[0].To[0].Address)
}

func Test_commandLine_stats(t *testing.T) {
	e := setup(t)

	testutil.CreateUser(t, e.usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	testutil.CreateUser(t, e.usrRepo, "Ada", "ada", "ada@test.cd", "", []string{user.RoleStudent}, true)
	testutil.CreateUser(t, e.usrRepo, "Bob", "bob", "bob@test.cd", "", []string{user.RoleStudent}, false)

	require.NoError(t, e.cli.run([]string{"stats"}))
	out := e.out.String()
	assert.Contains(t, out, "Users:       3 (2 active, 3 new in the last 30 days)")
	assert.Contains(t, out, "  students:  2")
	assert.Contains(t, out, "Lessons:     0 (0 published)")
	assert.Contains(t, out, "Activity (last 7 days):")
}
