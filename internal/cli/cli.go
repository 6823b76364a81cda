// Package cli implements the permafrost command tree: freeze, serve, and
// deploy. The embedding binary hands it the application handler; the
// standalone binary runs the same tree without one and loses the commands
// that need it.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/permafrost/internal/app"
	"github.com/JakeFAU/permafrost/internal/notify"
	"github.com/JakeFAU/permafrost/pkg/freezer"
)

// Process exit codes.
const (
	ExitOK = 0
	// ExitFailure is a freeze or deploy that started and failed.
	ExitFailure = 1
	// ExitUsage is a bad invocation, rejected before any work.
	ExitUsage = 2
)

// Params carries everything Execute needs from the calling binary.
type Params struct {
	// Handler is the application being frozen. Nil in the standalone
	// binary, which can only serve and deploy existing trees.
	Handler http.Handler
	// Generators contribute seed URLs that link-following cannot reach.
	Generators *freezer.Registry
	// BaseURL is the embedder's default public URL, overridden by
	// configuration and the --base-url flag.
	BaseURL string
	// Args is the command line without the program name.
	Args   []string
	Stdout io.Writer
	Stderr io.Writer
}

// usageError marks a bad invocation; Execute maps it to ExitUsage.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// runError marks a run that started and failed; Execute maps it to
// ExitFailure.
type runError struct {
	err error
}

func (e *runError) Error() string { return e.err.Error() }
func (e *runError) Unwrap() error { return e.err }

// buildComponents is a variable so tests can inject prebuilt services.
var buildComponents = app.Build

// commandState is shared by the root command and its subcommands. The
// components are built once in the root's PersistentPreRunE; close is
// called both from the root's PersistentPostRunE and from Execute,
// whichever runs, and releases them exactly once.
type commandState struct {
	params     Params
	cfgFile    string
	components *app.Components
}

func (st *commandState) resolve() (*app.Components, error) {
	if st.components == nil {
		return nil, errors.New("application services not initialized")
	}
	return st.components, nil
}

func (st *commandState) close() {
	c := st.components
	if c == nil {
		return
	}
	st.components = nil
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.Close(ctx)
}

// NewCommand returns the root command for embedding into a larger CLI
// tree. Services are built before each run and released after it; for
// a standalone program Execute is the better entry point because it
// also maps errors to exit codes.
func NewCommand(params Params) *cobra.Command {
	return newRootCmd(&commandState{params: params})
}

// Execute runs the command line and returns the process exit code.
// Errors are printed to stderr as "Error: ..." the way the original
// tooling around static freezes expects to scrape them.
func Execute(ctx context.Context, params Params) int {
	if params.Stdout == nil {
		params.Stdout = os.Stdout
	}
	if params.Stderr == nil {
		params.Stderr = os.Stderr
	}

	st := &commandState{params: params}
	root := newRootCmd(st)
	root.SetArgs(params.Args)
	root.SetOut(params.Stdout)
	root.SetErr(params.Stderr)

	err := root.ExecuteContext(ctx)

	// Cobra skips the post-run hooks when a command fails, so close here
	// too; buffered progress still lands in the sinks for failed runs.
	st.close()

	if err == nil {
		return ExitOK
	}
	fmt.Fprintln(params.Stderr, "Error:", err)
	var rerr *runError
	if errors.As(err, &rerr) {
		return ExitFailure
	}
	return ExitUsage
}

// checkBaseURL rejects base URLs the freezer could not derive a host
// from, before any services run.
func checkBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return usagef("%q is not an absolute URL, --base-url needs a scheme and host", raw)
	}
	return nil
}

// notifyOutcome announces a finished operation when a notifier is
// configured. Notification failures are logged and swallowed; they
// never change the command's outcome.
func notifyOutcome(ctx context.Context, c *app.Components, event notify.Event) {
	if c.Notifier == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	id, err := c.Notifier.Notify(ctx, event)
	if err != nil {
		c.Logger.Warn("notification failed",
			zap.String("action", event.Action), zap.Error(err))
		return
	}
	c.Logger.Debug("notification sent",
		zap.String("action", event.Action), zap.String("message_id", id))
}
