// Package main hosts the standalone permafrost executable.
//
// Architecture overview:
//   - Freeze pipeline: pkg/freezer crawls the embedded application in process, one URL at a time, rendering each
//     page through an http.Handler and writing it to a FileStore under the writer's URL-to-path convention
//     (extensionless URLs become <path>/index.html, suffixed ones are written verbatim). Broken internal links,
//     error responses, and path collisions abort the freeze; no partial tree is reported as success.
//   - Serving: internal/server replays the frozen tree over chi with the writer's mapping applied in reverse, so
//     every frozen URL resolves back to its file. The loop is owned directly: Serve(ctx) blocks until the context
//     is canceled, a signal arrives, or the opt-in POST /__shutdown__/ endpoint fires.
//   - Deploy: internal/publisher commits the tree to the hosting branch (git work-tree add against a temporary
//     index, default branch gh-pages, .nojekyll included) and optionally pushes, or uploads the tree to a GCS
//     bucket when deploy.provider selects it. Push stderr stays hidden unless --show-git-push-stderr is given.
//   - Persistence & fanout: freeze runs are optionally recorded in Postgres (database.dsn), deploy outcomes are
//     optionally announced on Pub/Sub (notify.provider), and progress events flow through a buffered hub to zap,
//     Prometheus, and the run store. Everything optional degrades to off when unconfigured.
//   - Configuration & plumbing: Viper reads permafrost.yaml and PERMAFROST_* env vars; flags override both. Zap
//     provides structured logging; internal/app resolves the provider switches into the components the commands
//     share.
//
// Operational notes:
//   - This binary has no embedded application, so freeze is rejected with a usage error; serve works against an
//     existing tree and deploy defaults to --no-freeze. Site binaries embed the library instead:
//
//     func main() {
//     permafrost.Run(newSite(), permafrost.WithBaseURL("https://example.org"))
//     }
//
//   - Concurrency model: the crawl loop is deliberately single-threaded for a consistent visited set and
//     collision-free writes. The only long-lived blocking operation is the local server, stopped via context,
//     signal, or the shutdown endpoint.
//   - Exit codes: 0 success, 1 a freeze or deploy that started and failed, 2 usage error. Failures print
//     "Error: ..." on stderr.
//
// Quick checklist:
//   - Serve an existing tree: permafrost serve --path _build --port 8003
//   - Deploy without refreezing: permafrost deploy --path _build --no-push (or --push)
//   - Configure via permafrost.yaml in . or $HOME/.config/permafrost, or PERMAFROST_* env vars such as
//     PERMAFROST_DEPLOY_BRANCH, PERMAFROST_STORAGE_PROVIDER, PERMAFROST_DATABASE_DSN.
package main
