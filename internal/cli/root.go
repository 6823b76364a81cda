package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/permafrost/internal/config"
)

func newRootCmd(st *commandState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permafrost",
		Short: "Freeze a web application into a static site",
		Long: `permafrost renders every reachable page of a running web application
into a tree of static files, serves that tree locally for verification,
and deploys it to a hosting branch.`,

		SilenceUsage:  true,
		SilenceErrors: true,

		// Configuration and services are resolved here, after flags are
		// parsed and before any subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return st.initialize(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			st.close()
		},
	}

	cmd.PersistentFlags().StringVar(&st.cfgFile, "config", "",
		"config file (default permafrost.yaml in . or $HOME/.config/permafrost)")

	cmd.AddCommand(newFreezeCmd(st))
	cmd.AddCommand(newServeCmd(st))
	cmd.AddCommand(newDeployCmd(st))

	return cmd
}

func (st *commandState) initialize(cmd *cobra.Command) error {
	cfg, err := config.Load(st.cfgFile)
	if err != nil {
		return &usageError{err: err}
	}

	if st.params.BaseURL != "" {
		cfg.Freeze.BaseURL = st.params.BaseURL
	}
	applyFlagOverrides(cmd, &cfg)

	components, err := buildComponents(cmd.Context(), cfg)
	if err != nil {
		return &runError{err: fmt.Errorf("initializing services: %w", err)}
	}
	st.components = components
	return nil
}

// applyFlagOverrides copies explicitly set flags over the loaded
// configuration. Flags win over the config file and environment; flag
// defaults only document the built-in values.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("port") {
		cfg.Server.Port, _ = f.GetInt("port")
	}
	if f.Changed("path") {
		cfg.Freeze.Destination, _ = f.GetString("path")
	}
	if f.Changed("base-url") {
		cfg.Freeze.BaseURL, _ = f.GetString("base-url")
	}
	if f.Changed("remote") {
		cfg.Deploy.Remote, _ = f.GetString("remote")
	}
	if f.Changed("show-git-push-stderr") {
		cfg.Deploy.ShowPushStderr, _ = f.GetBool("show-git-push-stderr")
	}
	if f.Changed("shutdown-endpoint") {
		cfg.Server.ShutdownEndpoint, _ = f.GetBool("shutdown-endpoint")
	}
	if f.Changed("metrics") {
		cfg.Server.Metrics, _ = f.GetBool("metrics")
	}
	cfg.Freeze.CNAME = resolveBoolPair(cmd, "cname", cfg.Freeze.CNAME)
}

func addPortFlag(cmd *cobra.Command) {
	cmd.Flags().Int("port", 8003, "port to listen on")
}

func addPathFlag(cmd *cobra.Command) {
	cmd.Flags().String("path", "_build", "directory holding the frozen tree")
}

func addBaseURLFlag(cmd *cobra.Command) {
	cmd.Flags().String("base-url", "", "public URL of the site, used for external links")
}

func addCNAMEFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("cname", false, "write a CNAME file into the tree (the default)")
	cmd.Flags().Bool("no-cname", false, "do not write a CNAME file")
	cmd.MarkFlagsMutuallyExclusive("cname", "no-cname")
}

// resolveBoolPair reads a --name/--no-name pair, returning fallback
// when neither side was given. Unregistered pairs also fall back, so
// the root override pass can call this for every command.
func resolveBoolPair(cmd *cobra.Command, name string, fallback bool) bool {
	f := cmd.Flags()
	if f.Changed("no-" + name) {
		return false
	}
	if f.Changed(name) {
		return true
	}
	return fallback
}

// requireBoolPair is resolveBoolPair with no fallback; omitting both
// sides is a usage error.
func requireBoolPair(cmd *cobra.Command, name string) (bool, error) {
	f := cmd.Flags()
	if f.Changed("no-" + name) {
		return false, nil
	}
	if f.Changed(name) {
		return true, nil
	}
	return false, usagef("--%s or --no-%s is required", name, name)
}
