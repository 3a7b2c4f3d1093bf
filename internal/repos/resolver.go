// Package repos materializes configured repositories into local directories.
// Git repositories are cloned into the run workspace through the git CLI so
// that credential helpers and proxy settings of the invoking environment
// apply; filesystem repositories are used in place.
package repos

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/nenorbot/protodeps/internal/config"
	"github.com/nenorbot/protodeps/internal/logging"
	"github.com/nenorbot/protodeps/internal/metrics"
)

var ErrMissingRevision = errors.New("no revision configured")

// GitRunner executes a git command. The default implementation shells out;
// tests substitute a recorder.
type GitRunner interface {
	Run(ctx context.Context, dir string, args ...string) error
}

// Resolver resolves repositories at most once per run. All dependencies
// referencing the same repository name share the single resolution. The
// Resolver is not thread-safe; resolution happens before any parallel phase.
type Resolver struct {
	workspace string
	runner    GitRunner
	log       *logging.Logger
	resolved  map[string]string
}

func New(workspace string, logger *logging.Logger) *Resolver {
	return &Resolver{
		workspace: workspace,
		runner:    &execGitRunner{log: logger},
		log:       logger,
		resolved:  map[string]string{},
	}
}

func (r *Resolver) WithRunner(runner GitRunner) *Resolver {
	r.runner = runner
	return r
}

// Resolve returns the local root directory of the repository, cloning it
// into the workspace if necessary.
func (r *Resolver) Resolve(ctx context.Context, repo *config.Repo) (string, error) {
	if path, ok := r.resolved[repo.Name]; ok {
		return path, nil
	}

	var path string
	var err error
	switch repo.Kind() {
	case config.KindGit:
		path, err = r.resolveGit(ctx, repo)
	case config.KindFilesystem:
		// The configured directory is used as-is. It must never end up
		// inside the workspace, or cleanup would delete user files.
		path, err = filepath.Abs(repo.Filesystem.Path)
	}
	if err != nil {
		return "", fmt.Errorf("repository %q: %w", repo.Name, err)
	}

	metrics.RepoResolved(repo.Name, repo.Kind())
	r.resolved[repo.Name] = path
	return path, nil
}

func (r *Resolver) resolveGit(ctx context.Context, repo *config.Repo) (string, error) {
	rev, exact, ok := repo.Git.Revision()
	if !ok {
		return "", ErrMissingRevision
	}

	dir := filepath.Join(r.workspace, repo.Name)

	if exact {
		// Arbitrary commits aren't fetchable by name, so take the full
		// history and check the commit out afterwards.
		r.log.Infof("cloning %s at commit %s", repo.Git.Repo, rev)
		if err := r.runner.Run(ctx, "", "clone", repo.Git.Repo, dir); err != nil {
			return "", err
		}
		if err := r.runner.Run(ctx, dir, "checkout", rev); err != nil {
			return "", err
		}
		return dir, nil
	}

	r.log.Infof("cloning %s at %s", repo.Git.Repo, rev)
	err := r.runner.Run(ctx, "", "clone", repo.Git.Repo, "--branch", rev, "--single-branch", "--depth", "1", dir)
	return dir, err
}

type execGitRunner struct {
	log *logging.Logger
}

func (r *execGitRunner) Run(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = os.Environ()

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(out.String()))
	}

	if out.Len() > 0 {
		r.log.Debugf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(out.String()))
	}
	return nil
}
