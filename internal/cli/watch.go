package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"

	"github.com/jrsteele09/servicedesk/client"
	"github.com/jrsteele09/servicedesk/session"
)

type watchOptions struct {
	*RootOptions
	NoBanner bool
}

// NewWatchCommand follows the session until interrupted, printing every session
// change and every redirect the route guard issues.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &watchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow session changes and guard redirects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := &lockedWriter{w: cmd.OutOrStdout()}
			if !opts.NoBanner {
				displayAppname(out, opts.cfg.GetAppName())
			}

			c, err := opts.newClient(ctx, opts.cfg,
				client.WithLogger(opts.logger),
				client.WithInitialPath(opts.Path),
				client.WithRedirectHook(func(from []string, to string) {
					fmt.Fprintf(out, "redirect /%s -> %s\n", strings.Join(from, "/"), to)
				}),
			)
			if err != nil {
				return err
			}
			unsubscribe := c.Cache.Subscribe(func(s session.State) {
				if s.Profile == nil {
					fmt.Fprintf(out, "session: none (loading=%t)\n", s.IsLoading)
					return
				}
				fmt.Fprintf(out, "session: %s (%s)\n", s.Profile.Email, s.Profile.Role)
			})
			defer unsubscribe()

			return c.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&opts.NoBanner, "no-banner", false, "skip the startup banner")

	return cmd
}

func displayAppname(w io.Writer, appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	fmt.Fprintln(w, myFigure.String())
}

// lockedWriter serializes output from the guard and cache observers
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
