package main

import (
	"github.com/spf13/cobra"

	"github.com/mathhub/factolearn/storage/database"
)

var migrateFunc = database.Migrate // mockable

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run a goose command against the database",
		Long: `Runs a goose command with the embedded migrations.

Commands:
  up, up-by-one, up-to VERSION, down, down-to VERSION,
  redo, reset, status, version, fix`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cli.db == nil {
				return errNoDatabase
			}
			return migrateFunc(cli.db, args[0], args[1:]...)
		},
	}
}
