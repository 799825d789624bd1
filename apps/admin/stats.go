package main

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func (cli *commandLine) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the platform statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := cli.dashSvc.Admin(cmd.Context())
			if err != nil {
				return err
			}

			cmd.Printf("Users:       %s (%s active, %s new in the last 30 days)\n",
				humanize.Comma(int64(d.Users.Total)), humanize.Comma(int64(d.Users.Active)), humanize.Comma(int64(d.Users.NewLast30Days)))
			cmd.Printf("  admins:    %s\n", humanize.Comma(int64(d.Users.ByRole["admin"])))
			cmd.Printf("  teachers:  %s\n", humanize.Comma(int64(d.Users.ByRole["teacher"])))
			cmd.Printf("  students:  %s\n", humanize.Comma(int64(d.Users.ByRole["student"])))
			cmd.Printf("Lessons:     %s (%s published)\n", humanize.Comma(int64(d.Lessons.Total)), humanize.Comma(int64(d.Lessons.Published)))
			cmd.Printf("Quizzes:     %s\n", humanize.Comma(int64(d.Quizzes)))
			cmd.Printf("Classrooms:  %s\n", humanize.Comma(int64(d.Classrooms)))
			cmd.Printf("Attempts:    %s submitted, %s%% passed\n",
				humanize.Comma(int64(d.Attempts.Submitted)), humanize.FtoaWithDigits(d.Attempts.PassRate*100, 1))
			cmd.Println("Activity (last 7 days):")
			for _, day := range d.DailyActivity {
				cmd.Printf("  %s  %s\n", day.Date, humanize.Comma(int64(day.Count)))
			}
			return nil
		},
	}
}
