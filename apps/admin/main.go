package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/mathhub/factolearn/core"
	"github.com/mathhub/factolearn/core/classroom"
	"github.com/mathhub/factolearn/core/dashboard"
	"github.com/mathhub/factolearn/core/i18n"
	"github.com/mathhub/factolearn/core/lesson"
	"github.com/mathhub/factolearn/core/progress"
	"github.com/mathhub/factolearn/core/quiz"
	"github.com/mathhub/factolearn/core/user"
	emailsvc "github.com/mathhub/factolearn/services/email"
	logsvc "github.com/mathhub/factolearn/services/logger"
	"github.com/mathhub/factolearn/storage/database"
	inmemdb "github.com/mathhub/factolearn/storage/database/inmem"
	sqlxrepos "github.com/mathhub/factolearn/storage/database/sqlx"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	conf := core.NewConfig()

	zl, err := logsvc.NewZap(conf)
	if err != nil {
		return errors.Wrap(err, "setting up zap")
	}
	logger := logsvc.NewRollbarLogger(zl.Named("ADMIN"), conf)
	defer logger.Sync()

	var mailSvc *emailsvc.Service
	if conf.Debug || conf.SendgridApiKey == "" {
		mailSvc = emailsvc.NewConsoleService(conf, logger, os.Stdout)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	defer mailSvc.Wait()
	core.ParseEmailTemplates(logger)
	if err = i18n.Load(); err != nil {
		logger.Error("loading locales", err)
		return err
	}

	cli := &commandLine{conf: conf, out: os.Stdout}
	var (
		classRepo  classroom.Repository
		lessonRepo lesson.Repository
		quizRepo   quiz.Repository
		progRepo   progress.Repository
		tx         core.TxRunner
	)

	if conf.Database.Engine == "inmem" {
		db := inmemdb.Open()
		cli.usrRepo = inmemdb.NewUserRepository(db)
		classRepo = inmemdb.NewClassroomRepository(db)
		lessonRepo = inmemdb.NewLessonRepository(db)
		quizRepo = inmemdb.NewQuizRepository(db)
		progRepo = inmemdb.NewProgressRepository(db)
		tx = db
	} else {
		if err := database.CreateIfNotExist(conf); err != nil {
			return err
		}
		db, err := database.Open(conf)
		if err != nil {
			return err
		}
		defer closeDB(db.DB, logger)

		cli.db = db.DB
		cli.usrRepo = sqlxrepos.NewUserRepository(db)
		classRepo = sqlxrepos.NewClassroomRepository(db)
		lessonRepo = sqlxrepos.NewLessonRepository(db)
		quizRepo = sqlxrepos.NewQuizRepository(db)
		progRepo = sqlxrepos.NewProgressRepository(db)
		tx = database.NewTxRunner(db)
	}

	usrSvc := user.NewService(cli.usrRepo, mailSvc, conf)
	classSvc := classroom.NewService(classRepo, usrSvc, tx)
	progSvc := progress.NewService(progRepo, tx, conf.Learning)
	cli.lessonSvc = lesson.NewService(lessonRepo)
	cli.quizSvc = quiz.NewService(quizRepo, progSvc, tx, conf.Learning)
	cli.dashSvc = dashboard.NewService(usrSvc, classSvc, cli.lessonSvc, cli.quizSvc, progSvc, mailSvc, conf.Learning)

	return cli.run(args)
}

func closeDB(db *sql.DB, logger core.Logger) {
	if err := db.Close(); err != nil {
		logger.Error("closing database", err)
	}
}
