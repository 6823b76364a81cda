// Package publisher defines the contract for deploying a frozen tree
// to a hosting target.
//
// Implementations take a directory produced by the freezer and make it
// live somewhere: a git branch for GitHub Pages, a GCS bucket for
// static hosting, or an in-memory recorder for tests.
package publisher

import (
	"context"
	"fmt"
)

// Publisher deploys a frozen tree.
type Publisher interface {
	Deploy(ctx context.Context, req Request) (*Receipt, error)
}

// Request describes one deployment.
type Request struct {
	// Path is the directory holding the frozen tree.
	Path string
	// Remote is the git remote to push to. Ignored by non-git backends.
	Remote string
	// Branch is the hosting branch the tree is committed to.
	Branch string
	// Push publishes the commit to the remote. Without it the commit is
	// only created locally.
	Push bool
	// ShowPushStderr surfaces the push tool's diagnostics, which may
	// contain credentials, in the returned error.
	ShowPushStderr bool
}

// Receipt reports what a successful deployment produced.
type Receipt struct {
	// Commit is the commit hash for git backends.
	Commit string
	// Branch the commit was placed on.
	Branch string
	// Pushed reports whether the result reached the remote target.
	Pushed bool
	// URI locates the deployed tree for object-store backends.
	URI string
}

// ErrorKind classifies deployment failures.
type ErrorKind string

const (
	// ErrNoTree means the path does not contain a frozen tree.
	ErrNoTree ErrorKind = "no_tree"
	// ErrCommit means recording the tree locally failed.
	ErrCommit ErrorKind = "commit"
	// ErrPush means the remote rejected the publish.
	ErrPush ErrorKind = "push"
)

// DeployError reports a failed deployment.
type DeployError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *DeployError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("deploy %s failed (%s): %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("deploy %s failed (%s)", e.Path, e.Kind)
}

func (e *DeployError) Unwrap() error {
	return e.Err
}
