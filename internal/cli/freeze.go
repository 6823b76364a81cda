package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/permafrost/internal/app"
	"github.com/JakeFAU/permafrost/internal/linkcheck"
	"github.com/JakeFAU/permafrost/internal/notify"
	"github.com/JakeFAU/permafrost/internal/telemetry"
	"github.com/JakeFAU/permafrost/pkg/freezer"
)

func newFreezeCmd(st *commandState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "freeze",
		Short: "Build the static tree",
		Long: `Renders every page reachable from the seed URLs into the destination
directory. A broken internal link, an error response, or two URLs
colliding on one output path aborts the build; a partial tree is never
reported as success.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFreeze(cmd, st)
		},
	}

	addPathFlag(cmd)
	addBaseURLFlag(cmd)
	cmd.Flags().Bool("serve", false, "serve the frozen tree after building it")
	addPortFlag(cmd)
	cmd.Flags().Bool("shutdown-endpoint", false, "with --serve, accept POST /__shutdown__/ to stop")
	addCNAMEFlags(cmd)

	return cmd
}

func runFreeze(cmd *cobra.Command, st *commandState) error {
	c, err := st.resolve()
	if err != nil {
		return err
	}
	if st.params.Handler == nil {
		return usagef("freeze needs the embedded application; run this from the site binary")
	}
	if c.Config.Freeze.BaseURL == "" {
		return usagef("no base URL provided, use --base-url")
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

	if serve, _ := cmd.Flags().GetBool("serve"); serve {
		return serveTree(cmd.Context(), c)
	}
	return nil
}

// freezeSite runs one freeze of the embedded application, reporting
// progress through the bridge and the outcome through the notifier.
func freezeSite(cmd *cobra.Command, c *app.Components, st *commandState, bridge *app.RunBridge) error {
	ctx := cmd.Context()

	renderer, cleanup, err := c.Renderer(st.params.Handler)
	if err != nil {
		return &runError{err: err}
	}
	defer cleanup()

	fz, err := freezer.New(freezer.Config{
		Destination: c.Config.Freeze.Destination,
		BaseURL:     c.Config.Freeze.BaseURL,
		CNAME:       c.Config.Freeze.CNAME,
		Seeds:       c.Config.Freeze.Seeds,
		Generators:  st.params.Generators,
		OnEvent:     bridge.OnFreezeEvent,
	}, renderer, c.Files, c.Logger.Named("freezer"))
	if err != nil {
		var cfgErr *freezer.ConfigurationError
		if errors.As(err, &cfgErr) {
			return &usageError{err: err}
		}
		return &runError{err: err}
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Generating HTML...")
	result, err := fz.Freeze(ctx)
	if err != nil {
		return &runError{err: err}
	}

	if c.Config.LinkCheck.Enabled {
		auditExternalLinks(ctx, c, result.External)
	}
	notifyOutcome(ctx, c, notify.Event{
		Action:  notify.ActionFreeze,
		Site:    telemetry.SanitizeSite(c.Config.Freeze.BaseURL),
		BaseURL: c.Config.Freeze.BaseURL,
		Pages:   result.Pages,
		Files:   len(result.Files),
		Bytes:   result.Bytes,
	})
	return nil
}

// auditExternalLinks probes the external links collected during the
// freeze. Broken ones are logged, never fatal; the frozen tree does not
// depend on other people's servers.
func auditExternalLinks(ctx context.Context, c *app.Components, links []freezer.Link) {
	if len(links) == 0 {
		return
	}
	lc := c.Config.LinkCheck
	checker := linkcheck.New(linkcheck.Config{
		Timeout:     lc.Timeout(),
		PerHostRPS:  lc.PerHostRPS,
		Burst:       lc.Burst,
		MaxParallel: lc.MaxParallel,
		UserAgent:   lc.UserAgent,
	}, c.Logger.Named("linkcheck"))

	results := checker.Check(ctx, links)
	broken := 0
	for _, r := range results {
		if !r.OK {
			broken++
		}
	}
	if broken > 0 {
		c.Logger.Warn("external link audit found problems",
			zap.Int("checked", len(results)), zap.Int("broken", broken))
		return
	}
	c.Logger.Info("external links verified", zap.Int("checked", len(results)))
}
