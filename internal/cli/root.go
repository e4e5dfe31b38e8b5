// Package cli is the servicedesk command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jrsteele09/servicedesk/client"
	"github.com/jrsteele09/servicedesk/internal/config"
	"github.com/jrsteele09/servicedesk/internal/logging"
	"github.com/jrsteele09/servicedesk/users"
)

// ClientFactory builds the application client for a command
type ClientFactory func(ctx context.Context, cfg config.Config, opts ...client.Option) (*client.Client, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string // "json" | "text"
	Path       string // location the client starts at

	cfg       config.Config
	logger    zerolog.Logger
	newClient ClientFactory
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command. A nil factory opens the backends named
// by the configuration.
func NewRootCommand(factory ClientFactory) *cobra.Command {
	if factory == nil {
		factory = client.New
	}
	opts := &RootOptions{newClient: factory}

	cmd := &cobra.Command{
		Use:   "servicedesk",
		Short: "Service desk session client",
		Long:  "Sign in to the service desk, follow the session and manage users.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			opts.logger = logging.New(cfg)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "YAML config file (default $SERVICEDESK_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Path, "path", "/", "location to start navigation at")

	cmd.AddCommand(NewSignInCommand(opts))
	cmd.AddCommand(NewSignUpCommand(opts))
	cmd.AddCommand(NewSignOutCommand(opts))
	cmd.AddCommand(NewWhoAmICommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewUsersCommand(opts))

	return cmd
}

// start opens a client and waits for the stored session to be restored
func (o *RootOptions) start(ctx context.Context, extra ...client.Option) (*client.Client, error) {
	clientOpts := append([]client.Option{
		client.WithLogger(o.logger),
		client.WithInitialPath(o.Path),
	}, extra...)

	c, err := o.newClient(ctx, o.cfg, clientOpts...)
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (o *RootOptions) printUser(w io.Writer, u *users.User) error {
	if o.Format == "json" {
		return json.NewEncoder(w).Encode(u)
	}
	_, err := fmt.Fprintf(w, "%s\t%s <%s>\t%s\n", u.ID, u.Name, u.Email, u.Role)
	return err
}

func (o *RootOptions) printUsers(w io.Writer, list []*users.User) error {
	if o.Format == "json" {
		return json.NewEncoder(w).Encode(list)
	}
	for _, u := range list {
		if err := o.printUser(w, u); err != nil {
			return err
		}
	}
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
