package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jrsteele09/servicedesk/session"
)

type signInOptions struct {
	*RootOptions
	Email    string
	Password string
}

func NewSignInCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &signInOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.start(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			profile, err := c.Actions.SignIn(cmd.Context(), opts.Email, opts.Password)
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return opts.printUser(cmd.OutOrStdout(), profile)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", profile.Name, profile.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "account email")
	cmd.Flags().StringVar(&opts.Password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func NewSignUpCommand(rootOpts *RootOptions) *cobra.Command {
	req := session.SignUpRequest{}

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Long: `Create an account and sign in.

Only client and employee accounts can be created here; admins are managed
with the users command.

Example:
  servicedesk signup --name Ann --email ann@example.com --password secret1 --confirm secret1 --role client`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rootOpts.start(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Actions.SignUp(cmd.Context(), req); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account created for %s\n", req.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Password, "password", "", "password")
	cmd.Flags().StringVar(&req.ConfirmPassword, "confirm", "", "password again")
	cmd.Flags().StringVar(&req.Role, "role", "client", "client or employee")

	return cmd
}

func NewSignOutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "End the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rootOpts.start(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Actions.SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func NewWhoAmICommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the profile of the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rootOpts.start(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			state := c.Cache.Get()
			if state.Profile == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			return rootOpts.printUser(cmd.OutOrStdout(), state.Profile)
		},
	}
}
