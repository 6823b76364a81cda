package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/permafrost/internal/publisher"
)

type call struct {
	dir  string
	env  []string
	args []string
}

// fakeRunner scripts git's behavior per subcommand. branchTip is what
// rev-parse --verify reports for the deploy branch; empty means the
// branch does not exist yet.
type fakeRunner struct {
	calls     []call
	stdout    map[string]string
	failOn    string
	stderr    string
	branchTip string
}

func (r *fakeRunner) Run(_ context.Context, dir string, env []string, args ...string) (string, string, error) {
	r.calls = append(r.calls, call{dir: dir, env: env, args: args})
	sub := args[0]
	if sub == r.failOn {
		return "", r.stderr, errors.New("exit status 1")
	}
	if sub == "rev-parse" && args[1] == "--verify" {
		if r.branchTip == "" {
			return "", "", errors.New("exit status 1")
		}
		return r.branchTip + "\n", "", nil
	}
	return r.stdout[sub], "", nil
}

func (r *fakeRunner) subcommands() []string {
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.args[0]
	}
	return out
}

func (r *fakeRunner) find(sub string) (call, bool) {
	for _, c := range r.calls {
		if c.args[0] == sub {
			return c, true
		}
	}
	return call{}, false
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{stdout: map[string]string{
		"rev-parse":   ".git\n",
		"write-tree":  "aaaa1111\n",
		"commit-tree": "bbbb2222\n",
	}}
}

func frozenTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>ok</h1>"), 0o644))
	return dir
}

func request(path string) publisher.Request {
	return publisher.Request{Path: path, Remote: "origin", Branch: "gh-pages"}
}

func TestDeployMissingTree(t *testing.T) {
	runner := newFakeRunner()
	pub := NewWithRunner(runner, zap.NewNop())

	_, err := pub.Deploy(context.Background(), request(filepath.Join(t.TempDir(), "absent")))

	var deployErr *publisher.DeployError
	require.ErrorAs(t, err, &deployErr)
	assert.Equal(t, publisher.ErrNoTree, deployErr.Kind)
	assert.Empty(t, runner.calls, "no git command should run without a tree")
}

func TestDeployRequiresBranch(t *testing.T) {
	pub := NewWithRunner(newFakeRunner(), zap.NewNop())

	req := request(frozenTree(t))
	req.Branch = ""
	_, err := pub.Deploy(context.Background(), req)
	require.Error(t, err)
}

func TestDeployCommitsWithoutPush(t *testing.T) {
	runner := newFakeRunner()
	pub := NewWithRunner(runner, zap.NewNop())
	tree := frozenTree(t)

	receipt, err := pub.Deploy(context.Background(), request(tree))
	require.NoError(t, err)

	assert.Equal(t, "bbbb2222", receipt.Commit)
	assert.Equal(t, "gh-pages", receipt.Branch)
	assert.False(t, receipt.Pushed)

	assert.Equal(t,
		[]string{"rev-parse", "read-tree", "add", "write-tree", "rev-parse", "commit-tree", "update-ref"},
		runner.subcommands(),
	)

	// The branch did not exist, so the first deploy commit has no parent.
	commitTree, ok := runner.find("commit-tree")
	require.True(t, ok)
	assert.Equal(t, []string{"commit-tree", "aaaa1111", "-m", "Deploying frozen site"}, commitTree.args)

	// The tree is staged through a private index so the caller's own
	// index is untouched.
	readTree, ok := runner.find("read-tree")
	require.True(t, ok)
	require.Len(t, readTree.env, 1)
	assert.Contains(t, readTree.env[0], "GIT_INDEX_FILE=")

	add, ok := runner.find("add")
	require.True(t, ok)
	assert.Equal(t, tree, add.dir)
	assert.Contains(t, strings.Join(add.env, " "), "GIT_WORK_TREE=")

	updateRef, ok := runner.find("update-ref")
	require.True(t, ok)
	assert.Equal(t, []string{"update-ref", "refs/heads/gh-pages", "bbbb2222"}, updateRef.args)

	assert.FileExists(t, filepath.Join(tree, ".nojekyll"))
}

func TestDeployParentsOnExistingBranchTip(t *testing.T) {
	runner := newFakeRunner()
	runner.branchTip = "cccc3333"
	pub := NewWithRunner(runner, zap.NewNop())

	receipt, err := pub.Deploy(context.Background(), request(frozenTree(t)))
	require.NoError(t, err)
	assert.Equal(t, "bbbb2222", receipt.Commit)

	commitTree, ok := runner.find("commit-tree")
	require.True(t, ok)
	assert.Equal(t,
		[]string{"commit-tree", "aaaa1111", "-m", "Deploying frozen site", "-p", "cccc3333"},
		commitTree.args,
	)
}

func TestDeployPushes(t *testing.T) {
	runner := newFakeRunner()
	pub := NewWithRunner(runner, zap.NewNop())

	req := request(frozenTree(t))
	req.Push = true
	receipt, err := pub.Deploy(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, receipt.Pushed)
	push, ok := runner.find("push")
	require.True(t, ok)
	assert.Equal(t, []string{"push", "origin", "gh-pages"}, push.args)
}

func TestDeployPushRejectedHidesStderr(t *testing.T) {
	runner := newFakeRunner()
	runner.failOn = "push"
	runner.stderr = "fatal: Authentication failed for secret-remote"
	pub := NewWithRunner(runner, zap.NewNop())

	req := request(frozenTree(t))
	req.Push = true
	_, err := pub.Deploy(context.Background(), req)

	var deployErr *publisher.DeployError
	require.ErrorAs(t, err, &deployErr)
	assert.Equal(t, publisher.ErrPush, deployErr.Kind)
	assert.NotContains(t, err.Error(), "Authentication failed")
}

func TestDeployPushRejectedShowsStderrWhenAsked(t *testing.T) {
	runner := newFakeRunner()
	runner.failOn = "push"
	runner.stderr = "fatal: Authentication failed for secret-remote"
	pub := NewWithRunner(runner, zap.NewNop())

	req := request(frozenTree(t))
	req.Push = true
	req.ShowPushStderr = true
	_, err := pub.Deploy(context.Background(), req)

	var deployErr *publisher.DeployError
	require.ErrorAs(t, err, &deployErr)
	assert.Equal(t, publisher.ErrPush, deployErr.Kind)
	assert.Contains(t, err.Error(), "Authentication failed")
}

func TestDeployCommitFailure(t *testing.T) {
	runner := newFakeRunner()
	runner.failOn = "write-tree"
	runner.stderr = "fatal: index corrupted"
	pub := NewWithRunner(runner, zap.NewNop())

	_, err := pub.Deploy(context.Background(), request(frozenTree(t)))

	var deployErr *publisher.DeployError
	require.ErrorAs(t, err, &deployErr)
	assert.Equal(t, publisher.ErrCommit, deployErr.Kind)
	assert.Contains(t, err.Error(), "index corrupted")
}
