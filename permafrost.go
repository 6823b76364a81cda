// Package permafrost freezes a dynamic web application into a tree of
// static files, serves that tree locally for verification, and deploys
// it to a hosting branch.
//
// A site binary embeds permafrost around its own handler:
//
//	func main() {
//		permafrost.Run(newSite(), permafrost.WithBaseURL("https://example.org"))
//	}
//
// Run exposes the freeze, serve, and deploy subcommands bound to that
// handler and exits with the command's status code. Pages are rendered
// by invoking the handler in process; no network listener is involved
// until the frozen tree is served.
//
// Pages that no link points to are registered up front:
//
//	permafrost.WithPages("/404.html", "/feeds/all.atom.xml")
//
// or produced dynamically with WithGenerator when the URL set depends
// on data only the application can enumerate.
package permafrost

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/permafrost/internal/cli"
	"github.com/JakeFAU/permafrost/pkg/freezer"
)

// Generator produces seed URLs that link-following alone cannot
// discover. Re-exported from pkg/freezer so embedding binaries only
// need this package.
type Generator = freezer.Generator

type options struct {
	baseURL    string
	generators *freezer.Registry
	args       []string
	stdout     io.Writer
	stderr     io.Writer
}

// Option configures Run, Main, and Command.
type Option func(*options)

// WithBaseURL sets the site's public URL, used for recognizing internal
// links and for the CNAME file. The configuration file and the
// --base-url flag override it.
func WithBaseURL(raw string) Option {
	return func(o *options) { o.baseURL = raw }
}

// WithGenerator registers a seed URL generator, called once per freeze.
func WithGenerator(g Generator) Option {
	return func(o *options) {
		if o.generators == nil {
			o.generators = freezer.NewRegistry()
		}
		o.generators.Register(g)
	}
}

// WithPages registers fixed seed URLs that link-following cannot reach.
func WithPages(urls ...string) Option {
	return WithGenerator(freezer.StaticPages(urls...))
}

// WithArgs overrides the command line, which defaults to os.Args[1:].
func WithArgs(args []string) Option {
	return func(o *options) { o.args = args }
}

// WithOutput redirects the command's stdout and stderr.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(o *options) {
		o.stdout = stdout
		o.stderr = stderr
	}
}

// Run executes the command line for handler and exits the process with
// the resulting code.
func Run(handler http.Handler, opts ...Option) {
	os.Exit(Main(context.Background(), handler, opts...))
}

// Main is Run without the process exit, for embedders that own their
// process lifecycle. It returns 0 on success, 1 when a freeze or
// deploy fails, and 2 for a usage error.
func Main(ctx context.Context, handler http.Handler, opts ...Option) int {
	return cli.Execute(ctx, params(handler, opts))
}

// Command returns the root command for mounting inside a larger cobra
// tree. The command builds its services before each run and releases
// them afterwards; exit-code mapping is the caller's concern.
func Command(handler http.Handler, opts ...Option) *cobra.Command {
	return cli.NewCommand(params(handler, opts))
}

func params(handler http.Handler, opts []Option) cli.Params {
	o := options{args: os.Args[1:]}
	for _, opt := range opts {
		opt(&o)
	}
	return cli.Params{
		Handler:    handler,
		Generators: o.generators,
		BaseURL:    o.baseURL,
		Args:       o.args,
		Stdout:     o.stdout,
		Stderr:     o.stderr,
	}
}
