package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (cli *commandLine) reportCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Email the weekly progress report of their classrooms to the teachers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !dryRun {
				sent, err := cli.dashSvc.SendWeeklyReports(cmd.Context())
				if err != nil {
					return err
				}
				cmd.Printf("%d report(s) sent\n", sent)
				return nil
			}

			reports, err := cli.dashSvc.WeeklyReports(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, r := range reports {
				cmd.Printf("%s (grade %d), %s: average mastery %s\n", r.ClassroomName, r.GradeLevel, r.Teacher.Name, r.AverageMastery)
				for _, row := range r.Rows {
					flag := ""
					if row.Struggling {
						flag = "struggling"
					}
					_, _ = fmt.Fprintf(w, "  %s\t%d completed\t%s\t%s\t%s\n",
						row.Name, row.LessonsCompleted, row.Mastery, row.LastActive, flag)
				}
				if err := w.Flush(); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the reports instead of sending them")
	return cmd
}
