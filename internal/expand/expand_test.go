package expand

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nenorbot/protodeps/internal/logging"
)

// fakeProber serves the import graph from a map of file to reported
// dependencies. Keys and values are paths relative to the root it was built
// with.
type fakeProber struct {
	root   string
	deps   map[string][]string
	probes int
}

func (p *fakeProber) Deps(_ context.Context, _ []string, file string) ([]string, error) {
	p.probes++

	rel, err := filepath.Rel(p.root, file)
	if err != nil {
		return nil, err
	}

	reported := make([]string, 0, len(p.deps[rel])+1)
	reported = append(reported, filepath.Join(p.root, rel)) // protoc lists the probed file itself
	for _, dep := range p.deps[rel] {
		// Concatenate instead of Join so uncleaned spellings like
		// "pkg/../pkg/b.proto" survive to the expander.
		reported = append(reported, p.root+string(filepath.Separator)+dep)
	}
	return reported, nil
}

// tempRoot resolves the test directory's symlinks up front so that relative
// paths computed against it line up with the expander's canonical paths.
func tempRoot(t *testing.T) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return root
}

func writeProtos(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func relClosure(t *testing.T, root string, closure []string) []string {
	t.Helper()
	out := make([]string, len(closure))
	for i, path := range closure {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			t.Fatal(err)
		}
		out[i] = rel
	}
	sort.Strings(out)
	return out
}

func TestClosure(t *testing.T) {
	root := tempRoot(t)
	writeProtos(t, root, "a.proto", "b.proto", "c.proto", "d.proto")

	prober := &fakeProber{root: root, deps: map[string][]string{
		"a.proto": {"b.proto"},
		"b.proto": {"c.proto"},
		"c.proto": nil,
		"d.proto": nil,
	}}

	closure, err := New(prober, logging.NewNopLogger()).Closure(context.Background(), NewIncludePathSet(), []string{filepath.Join(root, "a.proto")})
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"a.proto", "b.proto", "c.proto"}, relClosure(t, root, closure)); diff != "" {
		t.Errorf("unexpected closure (-want +got):\n%s", diff)
	}
}

func TestClosureCycle(t *testing.T) {
	root := tempRoot(t)
	writeProtos(t, root, "a.proto", "b.proto", "c.proto")

	prober := &fakeProber{root: root, deps: map[string][]string{
		"a.proto": {"b.proto"},
		"b.proto": {"c.proto"},
		"c.proto": {"a.proto"}, // cycle back to the seed
	}}

	closure, err := New(prober, logging.NewNopLogger()).Closure(context.Background(), NewIncludePathSet(), []string{filepath.Join(root, "a.proto")})
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"a.proto", "b.proto", "c.proto"}, relClosure(t, root, closure)); diff != "" {
		t.Errorf("unexpected closure (-want +got):\n%s", diff)
	}
	// Each member is probed exactly once; the cycle must not re-enqueue.
	if exp, act := 3, prober.probes; exp != act {
		t.Errorf("expected %d probes, got %d", exp, act)
	}
}

func TestClosureCanonicalIdentity(t *testing.T) {
	root := tempRoot(t)
	writeProtos(t, root, "pkg/a.proto", "pkg/b.proto")

	// b is reported through a different relative prefix than the seed form;
	// both spellings resolve to the same file on disk.
	prober := &fakeProber{root: root, deps: map[string][]string{
		filepath.Join("pkg", "a.proto"): {"pkg/../pkg/b.proto", "pkg/b.proto"},
		filepath.Join("pkg", "b.proto"): nil,
	}}

	closure, err := New(prober, logging.NewNopLogger()).Closure(context.Background(), NewIncludePathSet(), []string{filepath.Join(root, "pkg", "a.proto")})
	if err != nil {
		t.Fatal(err)
	}

	exp := []string{filepath.Join("pkg", "a.proto"), filepath.Join("pkg", "b.proto")}
	if diff := cmp.Diff(exp, relClosure(t, root, closure)); diff != "" {
		t.Errorf("expected one entry per file identity (-want +got):\n%s", diff)
	}
}
