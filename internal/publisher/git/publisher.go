// Package git deploys a frozen tree by committing it to a hosting
// branch and optionally pushing it to a remote.
//
// The tree is recorded with git plumbing against a private index file,
// so the caller's working tree, index, and checked-out branch are never
// touched. Each deployment produces a commit whose root is the frozen
// tree itself, the layout GitHub Pages expects, chained onto the
// branch's previous commit when one exists.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/permafrost/internal/publisher"
)

const (
	commitMessage = "Deploying frozen site"
	indexFileName = "permafrost-index"
	nojekyllFile  = ".nojekyll"
)

// Runner executes git commands. The default implementation shells out
// to the git binary; tests substitute a fake.
type Runner interface {
	// Run executes git with the given arguments. dir is the working
	// directory ("" for the process default) and env holds extra
	// variables appended to the inherited environment.
	Run(ctx context.Context, dir string, env []string, args ...string) (stdout, stderr string, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir string, env []string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.String(), stderr.String(), fmt.Errorf("git %s: %w", args[0], err)
	}
	return stdout.String(), stderr.String(), nil
}

// Publisher deploys frozen trees through the local git repository.
type Publisher struct {
	runner Runner
	logger *zap.Logger
}

// New returns a Publisher that shells out to git.
func New(logger *zap.Logger) *Publisher {
	return NewWithRunner(execRunner{}, logger)
}

// NewWithRunner returns a Publisher using the given Runner. Tests use
// it to script git's behavior.
func NewWithRunner(r Runner, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{runner: r, logger: logger}
}

// Deploy commits the tree at req.Path to refs/heads/<branch> and pushes
// it when req.Push is set. The commit author comes from the local git
// configuration.
func (p *Publisher) Deploy(ctx context.Context, req publisher.Request) (*publisher.Receipt, error) {
	if req.Branch == "" {
		return nil, errors.New("deploy branch is required")
	}
	if req.Push && req.Remote == "" {
		return nil, errors.New("deploy remote is required when pushing")
	}

	info, err := os.Stat(req.Path)
	if err != nil || !info.IsDir() {
		return nil, &publisher.DeployError{Kind: publisher.ErrNoTree, Path: req.Path, Err: err}
	}
	workTree, err := filepath.Abs(req.Path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", req.Path, err)
	}

	// GitHub Pages runs Jekyll over the tree unless this file exists.
	if err := os.WriteFile(filepath.Join(workTree, nojekyllFile), []byte{}, 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", nojekyllFile, err)
	}

	gitDir, _, err := p.runner.Run(ctx, "", nil, "rev-parse", "--git-dir")
	if err != nil {
		return nil, p.commitError(req.Path, "", err)
	}
	absGitDir, err := filepath.Abs(strings.TrimSpace(gitDir))
	if err != nil {
		return nil, fmt.Errorf("resolving git dir: %w", err)
	}
	indexFile := filepath.Join(absGitDir, indexFileName)
	defer os.Remove(indexFile)
	env := []string{"GIT_INDEX_FILE=" + indexFile}

	if _, stderr, err := p.runner.Run(ctx, "", env, "read-tree", "--empty"); err != nil {
		return nil, p.commitError(req.Path, stderr, err)
	}
	envWork := append([]string{"GIT_WORK_TREE=" + workTree}, env...)
	if _, stderr, err := p.runner.Run(ctx, workTree, envWork, "add", "-A", "-f"); err != nil {
		return nil, p.commitError(req.Path, stderr, err)
	}
	tree, stderr, err := p.runner.Run(ctx, "", env, "write-tree")
	if err != nil {
		return nil, p.commitError(req.Path, stderr, err)
	}
	ref := "refs/heads/" + req.Branch
	commitArgs := []string{"commit-tree", strings.TrimSpace(tree), "-m", commitMessage}
	// Parent the commit on the branch's current tip so the push stays a
	// fast-forward; a missing ref means this is the first deployment.
	if tip, _, tipErr := p.runner.Run(ctx, "", nil, "rev-parse", "--verify", "--quiet", ref); tipErr == nil {
		if tip = strings.TrimSpace(tip); tip != "" {
			commitArgs = append(commitArgs, "-p", tip)
		}
	}
	commit, stderr, err := p.runner.Run(ctx, "", env, commitArgs...)
	if err != nil {
		return nil, p.commitError(req.Path, stderr, err)
	}
	commit = strings.TrimSpace(commit)
	if _, stderr, err := p.runner.Run(ctx, "", nil, "update-ref", ref, commit); err != nil {
		return nil, p.commitError(req.Path, stderr, err)
	}

	receipt := &publisher.Receipt{Commit: commit, Branch: req.Branch}
	if req.Push {
		if _, stderr, err := p.runner.Run(ctx, "", nil, "push", req.Remote, req.Branch); err != nil {
			if req.ShowPushStderr {
				err = fmt.Errorf("%s: %w", strings.TrimSpace(stderr), err)
			} else {
				p.logger.Warn("git push failed, stderr hidden; pass --show-git-push-stderr to surface it")
			}
			return nil, &publisher.DeployError{Kind: publisher.ErrPush, Path: req.Path, Err: err}
		}
		receipt.Pushed = true
	}

	p.logger.Info("deployed frozen tree",
		zap.String("commit", commit),
		zap.String("branch", req.Branch),
		zap.Bool("pushed", receipt.Pushed),
	)
	return receipt, nil
}

func (p *Publisher) commitError(path, stderr string, err error) error {
	if msg := strings.TrimSpace(stderr); msg != "" {
		err = fmt.Errorf("%s: %w", msg, err)
	}
	return &publisher.DeployError{Kind: publisher.ErrCommit, Path: path, Err: err}
}
