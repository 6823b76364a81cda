package cli

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/permafrost/internal/app"
	"github.com/JakeFAU/permafrost/internal/notify"
	"github.com/JakeFAU/permafrost/internal/publisher"
	"github.com/JakeFAU/permafrost/internal/telemetry"
)

func newDeployCmd(st *commandState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Publish the frozen tree to the hosting branch",
		Long: `Commits the frozen tree to the hosting branch and optionally pushes
it. --push or --no-push must be given explicitly; there is no implicit
default. The site is frozen first unless --no-freeze deploys the tree
as it is on disk.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDeploy(cmd, st)
		},
	}

	addPathFlag(cmd)
	addBaseURLFlag(cmd)
	cmd.Flags().String("remote", "origin", "git remote to push to")
	cmd.Flags().Bool("push", false, "push the hosting branch after committing")
	cmd.Flags().Bool("no-push", false, "commit locally without pushing")
	cmd.MarkFlagsMutuallyExclusive("push", "no-push")
	cmd.Flags().Bool("freeze", false, "freeze the site before deploying (the default with an embedded application)")
	cmd.Flags().Bool("no-freeze", false, "deploy the tree already on disk")
	cmd.MarkFlagsMutuallyExclusive("freeze", "no-freeze")
	cmd.Flags().Bool("show-git-push-stderr", false, "surface git push diagnostics, which may contain credentials")
	addCNAMEFlags(cmd)

	return cmd
}

func runDeploy(cmd *cobra.Command, st *commandState) error {
	c, err := st.resolve()
	if err != nil {
		return err
	}

	push, err := requireBoolPair(cmd, "push")
	if err != nil {
		return err
	}

	var bridge *app.RunBridge
	if resolveBoolPair(cmd, "freeze", st.params.Handler != nil) {
		if st.params.Handler == nil {
			return usagef("freezing before deploy needs the embedded application, use --no-freeze")
		}
		if c.Config.Freeze.BaseURL == "" {
			return usagef("no base URL provided, use --base-url (required with --freeze)")
		}
		if err := checkBaseURL(c.Config.Freeze.BaseURL); err != nil {
			return err
		}
		bridge, err = c.NewRunBridge(c.Config.Freeze.BaseURL)
		if err != nil {
			return &runError{err: err}
		}
		if err := freezeSite(cmd, c, st, bridge); err != nil {
			return err
		}
	} else {
		bridge, err = c.NewRunBridge(c.Config.Freeze.BaseURL)
		if err != nil {
			return &runError{err: err}
		}
	}

	ctx := cmd.Context()
	site := telemetry.SanitizeSite(c.Config.Freeze.BaseURL)
	req := publisher.Request{
		Path:           c.Config.Freeze.Destination,
		Remote:         c.Config.Deploy.Remote,
		Branch:         c.Config.Deploy.Branch,
		Push:           push,
		ShowPushStderr: c.Config.Deploy.ShowPushStderr,
	}

	bridge.DeployStarted()
	started := time.Now()
	receipt, err := c.Publisher.Deploy(ctx, req)
	bridge.DeployFinished(time.Since(started), err)
	if err != nil {
		notifyOutcome(ctx, c, notify.Event{
			Action: notify.ActionDeploy,
			Site:   site,
			Error:  err.Error(),
		})
		return &runError{err: err}
	}

	c.Logger.Info("deploy complete",
		zap.String("commit", receipt.Commit),
		zap.String("branch", receipt.Branch),
		zap.Bool("pushed", receipt.Pushed),
		zap.String("uri", receipt.URI))
	notifyOutcome(ctx, c, notify.Event{
		Action: notify.ActionDeploy,
		Site:   site,
		Commit: receipt.Commit,
		Branch: receipt.Branch,
		Pushed: receipt.Pushed,
	})
	return nil
}
