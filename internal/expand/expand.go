// Package expand computes the transitive closure of proto files reachable
// through import statements. It does not parse proto syntax itself: the
// compiler already resolves imports against include paths, so the expander
// invokes it in dependency-listing mode and treats its output as the edge
// relation of the import graph.
package expand

import (
	"context"
	"path/filepath"

	"github.com/nenorbot/protodeps/internal/logging"
	"github.com/nenorbot/protodeps/internal/metrics"
)

// Prober reports the direct and transitive dependencies the compiler sees
// for a single file against a set of include paths.
type Prober interface {
	Deps(ctx context.Context, includes []string, file string) ([]string, error)
}

type Expander struct {
	prober Prober
	log    *logging.Logger
}

func New(prober Prober, logger *logging.Logger) *Expander {
	return &Expander{prober: prober, log: logger}
}

// Closure expands the seed files to the fixed point of the compiler-reported
// import relation: no file in the result has an import that resolves (against
// the include paths) to a file outside the result. Membership is keyed by
// canonical filesystem identity, so a file reached via different relative
// prefixes or symlinks appears exactly once. Cycles terminate because a file
// is probed at most once.
//
// A file reported by the compiler but absent from disk is not rejected here;
// probing it on the next iteration fails with the compiler's own diagnostics.
func (e *Expander) Closure(ctx context.Context, includes *IncludePathSet, seeds []string) ([]string, error) {
	seen := make(map[string]struct{}, len(seeds))
	var closure []string

	for _, seed := range seeds {
		c := canonical(seed)
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			closure = append(closure, c)
		}
	}

	// closure doubles as the worklist: files are appended as discovered and
	// i only moves forward.
	for i := 0; i < len(closure); i++ {
		file := closure[i]

		deps, err := e.prober.Deps(ctx, includes.Paths(), file)
		if err != nil {
			return nil, err
		}
		metrics.ExpandProbe()

		for _, dep := range deps {
			c := canonical(dep)
			if _, ok := seen[c]; !ok {
				e.log.Debugf("discovered dependency %s of %s", c, file)
				seen[c] = struct{}{}
				closure = append(closure, c)
			}
		}
	}

	return closure, nil
}

// canonical resolves a path to its filesystem identity. Symlink resolution
// requires the file to exist; for paths that don't (yet), the cleaned
// absolute path is the best available key.
func canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
