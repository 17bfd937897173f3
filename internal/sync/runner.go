package sync

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/klauern/featsync/internal/cache"
	"github.com/klauern/featsync/internal/errs"
	"github.com/klauern/featsync/internal/logging"
)

// MergeOutput is the result of one external merge attempt. A merge producing
// conflict markers is an expected, frequent outcome, so it is represented as
// a value rather than an error.
type MergeOutput struct {
	// Text is the merged content, possibly containing conflict markers.
	Text string
	// Conflicted is true when the tool reported unresolved conflicts but
	// its stdout is still usable merged text.
	Conflicted bool
}

// Clean reports whether the merged text is free of all conflict markers.
// The marker scan is defensive: some tools exit zero while still emitting
// markers for degenerate inputs.
func (o MergeOutput) Clean() bool {
	if o.Conflicted {
		return false
	}
	for _, token := range markerTokens {
		if strings.Contains(o.Text, token) {
			return false
		}
	}
	return true
}

// MergeRunner attempts to merge the local (ours) and staged remote (theirs)
// versions of a document under one strategy's whitespace tolerance.
type MergeRunner interface {
	Merge(ctx context.Context, ours, theirs string, strategy Strategy) (MergeOutput, error)
}

// GitMergeRunner shells out to `git merge-file --stdout`.
//
// merge-file has no whitespace options of its own, so the strategy's
// tolerance is applied by normalizing both operands into temp copies first.
// No common ancestor is tracked either; an empty file stands in as the
// synthetic base, which makes every divergence between the normalized sides
// collide. The merge is therefore clean exactly when the two versions are
// equivalent under the strategy, and conflicted otherwise.
//
// A non-zero exit whose stdout is still usable merged text is the
// conflicted-success case; only an exit with no usable output becomes a
// process error.
type GitMergeRunner struct {
	// Git is the executable to invoke. Defaults to "git".
	Git string

	cache *cache.Cache[MergeOutput]
}

// NewGitMergeRunner creates a runner memoizing results in the given process
// cache. A nil cache disables memoization.
func NewGitMergeRunner(c *cache.Cache[MergeOutput]) *GitMergeRunner {
	return &GitMergeRunner{Git: "git", cache: c}
}

// Merge runs the merge tool over normalized copies of ours and theirs,
// memoized by operand paths and strategy.
func (g *GitMergeRunner) Merge(ctx context.Context, ours, theirs string, strategy Strategy) (MergeOutput, error) {
	key := cache.ProcessKey(ours, theirs, "merge:"+strategy.String())
	if g.cache != nil {
		if out, ok := g.cache.Get(key); ok {
			return out, nil
		}
	}

	oursText, err := os.ReadFile(ours) // #nosec G304 -- paths come from the staging manager
	if err != nil {
		return MergeOutput{}, &errs.FSError{Op: "read", Path: ours, Err: err}
	}
	theirsText, err := os.ReadFile(theirs) // #nosec G304 -- paths come from the staging manager
	if err != nil {
		return MergeOutput{}, &errs.FSError{Op: "read", Path: theirs, Err: err}
	}

	dir, err := os.MkdirTemp("", "featsync-merge-*")
	if err != nil {
		return MergeOutput{}, &errs.FSError{Op: "write", Path: dir, Err: err}
	}
	defer os.RemoveAll(dir) // #nosec G104 -- best-effort temp cleanup

	operands := map[string]string{
		"local":  strategy.Normalize(string(oursText)),
		"base":   "",
		"remote": strategy.Normalize(string(theirsText)),
	}
	for name, content := range operands {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			return MergeOutput{}, &errs.FSError{Op: "write", Path: path, Err: err}
		}
	}

	args := []string{
		"merge-file", "--stdout",
		"-L", "local", "-L", "base", "-L", "remote",
		filepath.Join(dir, "local"), filepath.Join(dir, "base"), filepath.Join(dir, "remote"),
	}
	logging.Debug("running merge tool",
		logging.Operation("merge"),
		logging.Strategy(strategy.String()),
		logging.Path(ours),
	)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, g.Git, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	out := MergeOutput{Text: stdout.String()}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) && stdout.Len() > 0 && exitErr.ExitCode() < 127 {
			// merge-file exits with the conflict count; stdout is the
			// merged text with markers.
			out.Conflicted = true
		} else {
			code := -1
			if exitErr != nil {
				code = exitErr.ExitCode()
			}
			return MergeOutput{}, &errs.ProcessError{
				Command:  g.Git + " merge-file",
				ExitCode: code,
				Stderr:   stderr.String(),
				Err:      runErr,
			}
		}
	}

	if g.cache != nil {
		g.cache.Set(key, out)
	}
	return out, nil
}
