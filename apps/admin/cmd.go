package main

import (
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mathhub/factolearn/core"
	"github.com/mathhub/factolearn/core/dashboard"
	"github.com/mathhub/factolearn/core/lesson"
	"github.com/mathhub/factolearn/core/quiz"
	"github.com/mathhub/factolearn/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errNoDatabase    = errors.New("migrations need the postgres database engine")
	errEmptyPassword = errors.New("password cannot be empty")
)

type commandLine struct {
	conf      *core.Config
	db        *sql.DB // nil with the in-memory engine
	usrRepo   user.Repository
	lessonSvc lesson.Service
	quizSvc   quiz.Service
	dashSvc   dashboard.Service
	out       io.Writer
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         fmt.Sprintf("%s administration commands", cli.conf.AppName),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(cli.out)
	root.AddCommand(
		cli.migrateCmd(),
		cli.addUserCmd(),
		cli.resetPasswordCmd(),
		cli.seedCmd(),
		cli.reportCmd(),
		cli.statsCmd(),
	)
	return root
}

// run executes the command line, args exclude the program name.
func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	root.SetArgs(args)
	return root.Execute()
}

func promptPassword(cmd *cobra.Command) (string, error) {
	cmd.Print("Enter password:")
	pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
	cmd.Println()
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	if len(pwd) == 0 {
		return "", errEmptyPassword
	}
	return string(pwd), nil
}
