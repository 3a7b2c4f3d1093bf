package repos

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nenorbot/protodeps/internal/config"
	"github.com/nenorbot/protodeps/internal/logging"
)

type call struct {
	Dir  string
	Args []string
}

type recordingRunner struct {
	calls []call
}

func (r *recordingRunner) Run(_ context.Context, dir string, args ...string) error {
	r.calls = append(r.calls, call{Dir: dir, Args: args})
	return nil
}

func strptr(s string) *string { return &s }

func TestResolveGitCommit(t *testing.T) {
	workspace := t.TempDir()
	runner := &recordingRunner{}
	resolver := New(workspace, logging.NewNopLogger()).WithRunner(runner)

	commit := "0123456789abcdef0123456789abcdef01234567"
	repo := &config.Repo{
		Name: "core-protos",
		Git:  &config.Git{Repo: "git@github.com:acme/core-protos.git", Commit: &commit},
	}

	path, err := resolver.Resolve(context.Background(), repo)
	if err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(workspace, "core-protos")
	if path != dir {
		t.Errorf("expected %s, got %s", dir, path)
	}

	// An exact commit requires a full clone followed by a checkout.
	exp := []call{
		{Dir: "", Args: []string{"clone", "git@github.com:acme/core-protos.git", dir}},
		{Dir: dir, Args: []string{"checkout", commit}},
	}
	if diff := cmp.Diff(exp, runner.calls); diff != "" {
		t.Errorf("unexpected git invocations (-want +got):\n%s", diff)
	}
}

func TestResolveGitBranch(t *testing.T) {
	workspace := t.TempDir()
	runner := &recordingRunner{}
	resolver := New(workspace, logging.NewNopLogger()).WithRunner(runner)

	repo := &config.Repo{
		Name: "core-protos",
		Git:  &config.Git{Repo: "git@github.com:acme/core-protos.git", Reference: strptr("master")},
	}

	if _, err := resolver.Resolve(context.Background(), repo); err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(workspace, "core-protos")
	exp := []call{
		{Dir: "", Args: []string{"clone", "git@github.com:acme/core-protos.git", "--branch", "master", "--single-branch", "--depth", "1", dir}},
	}
	if diff := cmp.Diff(exp, runner.calls); diff != "" {
		t.Errorf("unexpected git invocations (-want +got):\n%s", diff)
	}
}

func TestResolveGitMissingRevision(t *testing.T) {
	resolver := New(t.TempDir(), logging.NewNopLogger()).WithRunner(&recordingRunner{})

	repo := &config.Repo{
		Name: "core-protos",
		Git:  &config.Git{Repo: "git@github.com:acme/core-protos.git"},
	}

	if _, err := resolver.Resolve(context.Background(), repo); !errors.Is(err, ErrMissingRevision) {
		t.Fatalf("expected ErrMissingRevision, got %v", err)
	}
}

func TestResolveFilesystem(t *testing.T) {
	workspace := t.TempDir()
	protos := t.TempDir()
	runner := &recordingRunner{}
	resolver := New(workspace, logging.NewNopLogger()).WithRunner(runner)

	repo := &config.Repo{
		Name:       "local-protos",
		Filesystem: &config.Filesystem{Path: protos},
	}

	path, err := resolver.Resolve(context.Background(), repo)
	if err != nil {
		t.Fatal(err)
	}

	abs, err := filepath.Abs(protos)
	if err != nil {
		t.Fatal(err)
	}
	if path != abs {
		t.Errorf("expected %s, got %s", abs, path)
	}

	// Filesystem repositories stay in place: no git calls, and the resolved
	// path must never live inside the workspace that cleanup deletes.
	if len(runner.calls) != 0 {
		t.Errorf("expected no git invocations, got %v", runner.calls)
	}
	if strings.HasPrefix(path, workspace+string(filepath.Separator)) {
		t.Errorf("filesystem repository %s resolved inside workspace %s", path, workspace)
	}
}

func TestResolveCachesPerName(t *testing.T) {
	runner := &recordingRunner{}
	resolver := New(t.TempDir(), logging.NewNopLogger()).WithRunner(runner)

	repo := &config.Repo{
		Name: "core-protos",
		Git:  &config.Git{Repo: "git@github.com:acme/core-protos.git", Reference: strptr("v1.2")},
	}

	first, err := resolver.Resolve(context.Background(), repo)
	if err != nil {
		t.Fatal(err)
	}
	second, err := resolver.Resolve(context.Background(), repo)
	if err != nil {
		t.Fatal(err)
	}

	if first != second {
		t.Errorf("expected the cached resolution, got %s and %s", first, second)
	}
	if exp, act := 1, len(runner.calls); exp != act {
		t.Errorf("expected %d git invocation(s), got %d", exp, act)
	}
}
