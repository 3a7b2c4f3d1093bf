package discover

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nenorbot/protodeps/internal/config"
)

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("syntax = \"proto3\";\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func importPaths(files []File) []string {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.ImportPath()
	}
	sort.Strings(paths)
	return paths
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"acme/core/user.proto",
		"acme/core/events/created.proto",
		"acme/core/README.md",
		"acme/other/ignored.proto",
	)

	files, err := Discover(root, "acme/core", nil)
	if err != nil {
		t.Fatal(err)
	}

	exp := []string{"acme/core/events/created.proto", "acme/core/user.proto"}
	if diff := cmp.Diff(exp, importPaths(files)); diff != "" {
		t.Errorf("unexpected files (-want +got):\n%s", diff)
	}

	for _, f := range files {
		if !filepath.IsAbs(f.Path) {
			t.Errorf("expected absolute path, got %s", f.Path)
		}
	}
}

func TestDiscoverExcluded(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"acme/core/user.proto",
		"acme/core/internal/secret.proto",
	)

	excluded, err := config.StringSet{"acme/core/internal/**"}.Compile()
	if err != nil {
		t.Fatal(err)
	}

	files, err := Discover(root, "acme/core", excluded)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"acme/core/user.proto"}, importPaths(files)); diff != "" {
		t.Errorf("unexpected files (-want +got):\n%s", diff)
	}
}

func TestDiscoverMissingPath(t *testing.T) {
	if _, err := Discover(t.TempDir(), "no/such/dir", nil); !errors.Is(err, ErrPathNotFound) {
		t.Fatalf("expected ErrPathNotFound, got %v", err)
	}
}
