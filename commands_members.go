package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"library-lending/library"
)

func (a *app) memberCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage library members",
	}
	cmd.AddCommand(
		a.memberAddCommand(),
		a.memberUpdateCommand(),
		a.memberResetPasswordCommand(),
		a.memberDeleteCommand(),
		a.memberListCommand(),
		a.memberShowCommand(),
		a.memberFindCommand(),
	)
	return cmd
}

func (a *app) memberAddCommand() *cobra.Command {
	var in library.MemberInput
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a member; the password is prompted for",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := a.readNewPassword(fmt.Sprintf("Enter password for %s: ", strings.TrimSpace(in.Username)))
			if err != nil {
				return err
			}
			in.Password = password

			res := a.mgr.Members().Create(cmd.Context(), in)
			return a.result(res, "Added member '%s' with ID %d", strings.TrimSpace(in.Username), res.ID)
		},
	}
	cmd.Flags().StringVar(&in.Username, "username", "", "login name, at least 4 characters")
	cmd.Flags().StringVar(&in.Email, "email", "", "optional email address")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func (a *app) memberUpdateCommand() *cobra.Command {
	var (
		in             library.MemberInput
		changePassword bool
	)
	cmd := &cobra.Command{
		Use:   "update MEMBER_ID",
		Short: "Change username, email or password of a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "member")
			if err != nil {
				return err
			}
			member, res := a.mgr.Members().GetByID(cmd.Context(), id)
			if !res.OK() {
				return res.Err()
			}

			merged := library.MemberInput{Username: member.Username}
			if member.Email != nil {
				merged.Email = *member.Email
			}
			if cmd.Flags().Changed("username") {
				merged.Username = in.Username
			}
			if cmd.Flags().Changed("email") {
				merged.Email = in.Email
			}
			if changePassword {
				if merged.Password, err = a.readNewPassword(fmt.Sprintf("Enter new password for %s: ", member.Username)); err != nil {
					return err
				}
			}

			res = a.mgr.Members().Update(cmd.Context(), id, merged)
			return a.result(res, "Updated member %d", id)
		},
	}
	cmd.Flags().StringVar(&in.Username, "username", "", "new login name")
	cmd.Flags().StringVar(&in.Email, "email", "", "new email address, empty to remove it")
	cmd.Flags().BoolVar(&changePassword, "password", false, "prompt for a new password")
	return cmd
}

func (a *app) memberResetPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password MEMBER_ID",
		Short: "Set a new password for a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "member")
			if err != nil {
				return err
			}
			member, res := a.mgr.Members().GetByID(cmd.Context(), id)
			if !res.OK() {
				return res.Err()
			}

			password, err := a.readNewPassword(fmt.Sprintf("Enter new password for %s (ID: %d): ", member.Username, id))
			if err != nil {
				return err
			}
			res = a.mgr.Members().ResetPassword(cmd.Context(), id, password)
			return a.result(res, "Password successfully reset for %s (ID: %d)", member.Username, id)
		},
	}
}

func (a *app) memberDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete MEMBER_ID",
		Short: "Remove a member without open loans",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "member")
			if err != nil {
				return err
			}
			res := a.mgr.Members().SoftDelete(cmd.Context(), id)
			return a.result(res, "Deleted member %d", id)
		},
	}
}

func (a *app) memberListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the active members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			members, err := a.mgr.Members().List(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(members, func() {
				if len(members) == 0 {
					a.printf("No members registered.\n")
					return
				}
				a.printf("%-5s %-25s %s\n", "ID", "Username", "Email")
				a.printf("%s\n", strings.Repeat("-", 60))
				for _, m := range members {
					a.printf("%-5d %-25s %s\n", m.ID, truncateString(m.Username, 25), emailOrDash(m.Email))
				}
			})
		},
	}
}

func (a *app) memberShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show MEMBER_ID",
		Short: "Show one member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "member")
			if err != nil {
				return err
			}
			member, res := a.mgr.Members().GetByID(cmd.Context(), id)
			if !res.OK() {
				return res.Err()
			}
			return a.render(member, func() {
				a.printf("ID:       %d\n", member.ID)
				a.printf("Username: %s\n", member.Username)
				a.printf("Email:    %s\n", emailOrDash(member.Email))
			})
		},
	}
}

func (a *app) memberFindCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "find USERNAME",
		Short: "Print the ID of a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, res := a.mgr.Members().FindIDByUsername(cmd.Context(), args[0])
			return a.result(res, "%d", id)
		},
	}
}

func (a *app) loginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login USERNAME",
		Short: "Check the password of a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.authenticate(cmd, args[0])
			if err != nil {
				return err
			}
			return a.render(map[string]int64{"member_id": id}, func() {
				a.printf("Authenticated %s (ID: %d)\n", args[0], id)
			})
		},
	}
}

func emailOrDash(email *string) string {
	if email == nil || *email == "" {
		return "-"
	}
	return *email
}
