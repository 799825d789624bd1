package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mathhub/factolearn/core"
	"github.com/mathhub/factolearn/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	var (
		uname, email, name            string
		isAdmin, isTeacher, isStudent bool
	)
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user, or update the one with the same username or email",
		Long:  "Creates an active user. The password is prompted next.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if uname == "" && email == "" {
				return errors.New("a username or an email is required")
			}
			var roles []string
			switch {
			case isAdmin:
				roles = []string{user.RoleAdmin}
			case isTeacher:
				roles = []string{user.RoleTeacher}
			case isStudent:
				roles = []string{user.RoleStudent}
			}
			pwd, err := promptPassword(cmd)
			if err != nil {
				return err
			}
			usr, err := cli.addUser(cmd.Context(), name, uname, email, pwd, roles)
			if err != nil {
				return err
			}
			cmd.Printf("user %q saved (id: %s)\n", usr.Username, usr.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&uname, "username", "u", "", "the user's username")
	cmd.Flags().StringVarP(&email, "email", "e", "", "the user's email")
	cmd.Flags().StringVarP(&name, "name", "n", "", "the user's full name (defaults to the username)")
	cmd.Flags().BoolVar(&isAdmin, "admin", false, "grant the admin role")
	cmd.Flags().BoolVar(&isTeacher, "teacher", false, "grant the teacher role")
	cmd.Flags().BoolVar(&isStudent, "student", false, "grant the student role")
	cmd.MarkFlagsMutuallyExclusive("admin", "teacher", "student")
	return cmd
}

// addUser updates or creates a user.User; roles are only replaced when some are given.
func (cli *commandLine) addUser(ctx context.Context, name, uname, email, pwd string, roles []string) (user.User, error) {
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	name = core.CleanString(name)

	lookup := uname
	if lookup == "" {
		lookup = email
	}
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: lookup})
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return user.User{}, err
		}
		now := time.Now().UTC()
		usr = user.User{
			Username:  uname,
			Email:     email,
			Roles:     []string{},
			Locale:    cli.conf.DefaultLocale,
			CreatedAt: now,
		}
	}
	if email != "" {
		usr.Email = email
	}
	if name != "" {
		usr.Name = name
	} else if usr.Name == "" {
		usr.Name = usr.Username
	}
	if roles != nil {
		usr.Roles = roles
	}
	usr.UpdatedAt = time.Now().UTC()
	usr.SetActive(true)
	if err := usr.SetPassword(pwd); err != nil {
		return user.User{}, errors.Wrap(err, "setting password")
	}
	return cli.usrRepo.UpdateOrCreateUser(ctx, usr)
}
