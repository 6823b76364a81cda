// Package freezer implements the freeze pipeline: the crawler that walks
// every URL reachable inside an in-process application, the writer that
// maps rendered pages onto a static file tree, and the orchestrator that
// ties them together under a strict no-broken-links policy.
package freezer
