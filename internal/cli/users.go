package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jrsteele09/servicedesk/admin"
)

// NewUsersCommand groups the admin user management commands. They run with the
// stored session, which must belong to an admin.
func NewUsersCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user profiles (admin only)",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List users, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rootOpts.start(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			list, err := c.Users.List(cmd.Context())
			if err != nil {
				return err
			}
			return rootOpts.printUsers(cmd.OutOrStdout(), list)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rootOpts.start(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			u, err := c.Users.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return rootOpts.printUser(cmd.OutOrStdout(), u)
		},
	})

	createInput := &admin.UserInput{}
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rootOpts.start(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			u, err := c.Users.Create(cmd.Context(), *createInput)
			if err != nil {
				return err
			}
			return rootOpts.printUser(cmd.OutOrStdout(), u)
		},
	}
	userInputFlags(create, createInput)
	cmd.AddCommand(create)

	updateInput := &admin.UserInput{}
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace name, email and role of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rootOpts.start(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			u, err := c.Users.Update(cmd.Context(), args[0], *updateInput)
			if err != nil {
				return err
			}
			return rootOpts.printUser(cmd.OutOrStdout(), u)
		},
	}
	userInputFlags(update, updateInput)
	cmd.AddCommand(update)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rootOpts.start(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Users.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	})

	return cmd
}

func userInputFlags(cmd *cobra.Command, in *admin.UserInput) {
	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	cmd.Flags().StringVar(&in.Role, "role", "", "admin, employee or client")
}
