package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/permafrost/internal/app"
	"github.com/JakeFAU/permafrost/internal/server"
)

func newServeCmd(st *commandState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Freeze the site and serve it locally",
		Long: `Builds the static tree and serves it over HTTP for verification.
The base URL falls back to http://localhost:<port> so a site can be
previewed before its public URL exists. Without an embedded application
the existing tree is served as-is.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, st)
		},
	}

	addPortFlag(cmd)
	addCNAMEFlags(cmd)
	addPathFlag(cmd)
	addBaseURLFlag(cmd)
	cmd.Flags().Bool("shutdown-endpoint", false, "attach POST /__shutdown__/ for automated stops")
	cmd.Flags().Bool("metrics", false, "expose Prometheus metrics on /metrics")

	return cmd
}

func runServe(cmd *cobra.Command, st *commandState) error {
	c, err := st.resolve()
	if err != nil {
		return err
	}

	if st.params.Handler != nil {
		if c.Config.Freeze.BaseURL == "" {
			c.Config.Freeze.BaseURL = fmt.Sprintf("http://localhost:%d", c.Config.Server.Port)
		}
		if err := checkBaseURL(c.Config.Freeze.BaseURL); err != nil {
			return err
		}
		bridge, err := c.NewRunBridge(c.Config.Freeze.BaseURL)
		if err != nil {
			return &runError{err: err}
		}
		if err := freezeSite(cmd, c, st, bridge); err != nil {
			return err
		}
	} else if err := checkFrozenTree(c.Config.Freeze.Destination); err != nil {
		return &runError{err: err}
	}

	return serveTree(cmd.Context(), c)
}

// checkFrozenTree rejects serving a destination nothing was frozen
// into. The file store creates the directory on startup, so existence
// alone proves nothing; an empty directory is as unfrozen as a missing
// one.
func checkFrozenTree(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("no frozen tree at %s: %w", dir, err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("no frozen tree at %s, run freeze first", dir)
	}
	return nil
}

// serveTree blocks until the server is interrupted, canceled, or shut
// down through the control endpoint.
func serveTree(ctx context.Context, c *app.Components) error {
	if p := c.Config.Storage.Provider; p != "" && p != "local" {
		return usagef("serving needs the local file store, storage.provider is %q", p)
	}

	srv, err := server.New(server.Config{
		Port:             c.Config.Server.Port,
		Root:             c.Config.Freeze.Destination,
		ShutdownEndpoint: c.Config.Server.ShutdownEndpoint,
		Metrics:          c.Config.Server.Metrics,
	}, c.Logger.Named("server"))
	if err != nil {
		return &runError{err: err}
	}
	if err := srv.Serve(ctx); err != nil {
		return &runError{err: err}
	}
	return nil
}
