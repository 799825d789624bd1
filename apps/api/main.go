package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	echoapi "github.com/mathhub/factolearn/apps/api/echo"
	"github.com/mathhub/factolearn/core"
	"github.com/mathhub/factolearn/core/classroom"
	"github.com/mathhub/factolearn/core/dashboard"
	"github.com/mathhub/factolearn/core/i18n"
	"github.com/mathhub/factolearn/core/lesson"
	"github.com/mathhub/factolearn/core/practice"
	"github.com/mathhub/factolearn/core/progress"
	"github.com/mathhub/factolearn/core/quiz"
	"github.com/mathhub/factolearn/core/user"
	emailsvc "github.com/mathhub/factolearn/services/email"
	logsvc "github.com/mathhub/factolearn/services/logger"
	"github.com/mathhub/factolearn/storage/database"
	inmemdb "github.com/mathhub/factolearn/storage/database/inmem"
	sqlxrepos "github.com/mathhub/factolearn/storage/database/sqlx"
)

// repositories groups the storage dependencies of the services.
type repositories struct {
	user      user.Repository
	classroom classroom.Repository
	lesson    lesson.Repository
	quiz      quiz.Repository
	practice  practice.Repository
	progress  progress.Repository
	tx        core.TxRunner
	close     func() error
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	zl, err := logsvc.NewZap(conf)
	if err != nil {
		return errors.Wrap(err, "setting up zap")
	}
	logger := logsvc.NewRollbarLogger(zl.Named("API"), conf)
	defer logger.Sync()

	// set up DB
	repos, err := setUpRepositories(conf)
	if err != nil {
		logger.Error(fmt.Sprintf("setting up database: %v", err), err)
		return err
	}
	defer func() {
		if err := repos.close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	// set up services
	var mailSvc *emailsvc.Service
	if conf.Debug || conf.SendgridApiKey == "" {
		mailSvc = emailsvc.NewConsoleService(conf, logger, os.Stdout)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	defer mailSvc.Wait()

	usrSvc := user.NewService(repos.user, mailSvc, conf)
	classSvc := classroom.NewService(repos.classroom, usrSvc, repos.tx)
	lessonSvc := lesson.NewService(repos.lesson)
	progSvc := progress.NewService(repos.progress, repos.tx, conf.Learning)
	practiceSvc := practice.NewService(repos.practice, progSvc, repos.tx)
	quizSvc := quiz.NewService(repos.quiz, progSvc, repos.tx, conf.Learning)
	dashboardSvc := dashboard.NewService(usrSvc, classSvc, lessonSvc, quizSvc, progSvc, mailSvc, conf.Learning)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := setUpValidators()
	core.ParseEmailTemplates(logger)
	if err = i18n.Load(); err != nil {
		logger.Error("loading locales", err)
		return err
	}
	user.LoadCommonPasswords(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("storage").Set(conf.Database.Engine)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:         conf,
		Logger:       logger,
		Validate:     validate,
		Translator:   translator,
		UserSvc:      usrSvc,
		ClassroomSvc: classSvc,
		LessonSvc:    lessonSvc,
		PracticeSvc:  practiceSvc,
		QuizSvc:      quizSvc,
		ProgressSvc:  progSvc,
		DashboardSvc: dashboardSvc,
	})

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)
		return err

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
				return err
			}
		}
	}
	return nil
}

// setUpRepositories opens PostgreSQL (creating & migrating the DB if need be),
// or an in-memory store when the database engine is "inmem".
func setUpRepositories(conf *core.Config) (*repositories, error) {
	if conf.Database.Engine == "inmem" {
		db := inmemdb.Open()
		return &repositories{
			user:      inmemdb.NewUserRepository(db),
			classroom: inmemdb.NewClassroomRepository(db),
			lesson:    inmemdb.NewLessonRepository(db),
			quiz:      inmemdb.NewQuizRepository(db),
			practice:  inmemdb.NewPracticeRepository(db),
			progress:  inmemdb.NewProgressRepository(db),
			tx:        db,
			close:     func() error { return nil },
		}, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(db.DB, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &repositories{
		user:      sqlxrepos.NewUserRepository(db),
		classroom: sqlxrepos.NewClassroomRepository(db),
		lesson:    sqlxrepos.NewLessonRepository(db),
		quiz:      sqlxrepos.NewQuizRepository(db),
		practice:  sqlxrepos.NewPracticeRepository(db),
		progress:  sqlxrepos.NewProgressRepository(db),
		tx:        database.NewTxRunner(db),
		close:     db.Close,
	}, nil
}

func setUpValidators() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	lesson.InitValidators(validate, translator)
	quiz.InitValidators(validate, translator)
	return validate, translator
}
