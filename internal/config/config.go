package config

import (
	"cmp"
	"fmt"
	"iter"
	"maps"
	"regexp"
	"slices"
	"sort"

	"github.com/gobwas/glob"
	"github.com/goccy/go-yaml"

	"github.com/nenorbot/protodeps/internal/util"
)

// Internal configuration data structures for protodeps.

const (
	defaultLanguage  = "java"
	defaultProtoPath = "."
)

// Root is the top-level configuration structure used by protodeps.
type Root struct {
	Output      Output           `json:"output"`
	Protoc      Protoc           `json:"protoc"`
	GrpcPlugin  *GrpcPlugin      `json:"grpc_plugin,omitempty"`
	SourcePaths StringSet        `json:"source_paths,omitempty"`
	Repos       map[string]*Repo `json:"repos,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for the Root
// struct. This lets us define repositories as a mapping where keys are the
// repository names, injecting the name into each entry so internal callers
// don't have to carry the map key around.
func (r *Root) UnmarshalYAML(bs []byte) error {
	type rawRoot Root // avoid recursive calls to UnmarshalYAML by type aliasing
	var raw rawRoot

	if err := yaml.Unmarshal(bs, &raw); err != nil {
		return fmt.Errorf("failed to decode Root: %w", err)
	}

	*r = Root(raw)
	return r.unmarshal(r)
}

func (*Root) unmarshal(raw *Root) error {
	raw.Output.Language = cmp.Or(raw.Output.Language, defaultLanguage)

	for name := range raw.Repos {
		raw.Repos[name] = cmp.Or(raw.Repos[name], &Repo{})
		raw.Repos[name].Name = name
		if len(raw.Repos[name].ProtoPaths) == 0 {
			raw.Repos[name].ProtoPaths = StringSet{defaultProtoPath}
		}
	}

	return nil
}

// Parse decodes, schema-validates and sanity-checks a YAML configuration.
func Parse(bs []byte) (*Root, error) {
	if err := Validate(bs); err != nil {
		return nil, err
	}

	var root Root
	if err := yaml.Unmarshal(bs, &root); err != nil {
		return nil, err
	}

	if root.Protoc.Version == "" {
		return nil, fmt.Errorf("protoc version is not configured")
	}

	for _, name := range slices.Sorted(maps.Keys(root.Repos)) {
		if err := root.Repos[name].check(); err != nil {
			return nil, err
		}
	}

	return &root, nil
}

// SortedRepos returns the configured repositories ordered by name. All
// iteration over the repository map goes through here so that include path
// assembly and compilation order are deterministic for a given configuration.
func (r *Root) SortedRepos() iter.Seq2[int, *Repo] {
	return iterator(r.Repos, func(repo *Repo) string { return repo.Name })
}

func iterator[V any](m map[string]V, name func(V) string) func(func(int, V) bool) {
	names := make([]string, 0, len(m))
	for _, v := range m {
		names = append(names, name(v))
	}

	sort.Strings(names)

	return func(yield func(int, V) bool) {
		for i, name := range names {
			if !yield(i, m[name]) {
				return
			}
		}
	}
}

// Output designates where generated sources are written and for which
// language bindings are produced.
type Output struct {
	Path     string `json:"path"`
	Language string `json:"language,omitempty"` // defaults to "java"

	_ struct{} `additionalProperties:"false"`
}

// Protoc pins the compiler version provisioned for the run.
type Protoc struct {
	Version string `json:"version"`

	_ struct{} `additionalProperties:"false"`
}

// GrpcPlugin, when present, enables gRPC code generation with the pinned
// plugin version.
type GrpcPlugin struct {
	Version string `json:"version"`

	_ struct{} `additionalProperties:"false"`
}

// Repo defines one source of proto files. Exactly one of Git and Filesystem
// must be set; the pair is a tagged union over the repository kind.
type Repo struct {
	Name          string       `json:"name,omitempty"`
	Git           *Git         `json:"git,omitempty"`
	Filesystem    *Filesystem  `json:"filesystem,omitempty"`
	ProtoPaths    StringSet    `json:"proto_paths,omitempty"` // include roots relative to the repository root
	Dependencies  []Dependency `json:"dependencies,omitempty"`
	ExcludedFiles StringSet    `json:"excluded_files,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

const (
	KindGit        = "git"
	KindFilesystem = "filesystem"
)

func (r *Repo) check() error {
	if (r.Git == nil) == (r.Filesystem == nil) {
		return fmt.Errorf("repository %q must declare exactly one of git or filesystem", r.Name)
	}
	return nil
}

func (r *Repo) Kind() string {
	if r.Git != nil {
		return KindGit
	}
	return KindFilesystem
}

func (r *Repo) Equal(other *Repo) bool {
	return util.FastEqual(r, other, func(r, other *Repo) bool {
		return r.Name == other.Name &&
			r.Git.Equal(other.Git) &&
			r.Filesystem.Equal(other.Filesystem) &&
			r.ProtoPaths.Equal(other.ProtoPaths) &&
			slices.EqualFunc(r.Dependencies, other.Dependencies, Dependency.Equal) &&
			r.ExcludedFiles.Equal(other.ExcludedFiles)
	})
}

// Git identifies a version-controlled repository at a revision. A revision is
// either an exact commit hash or a branch/tag reference; the resolver decides
// the clone strategy from which one is set.
type Git struct {
	Repo      string  `json:"repo"`
	Reference *string `json:"reference,omitempty"`
	Commit    *string `json:"commit,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

var commitHash = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)

// Revision returns the configured revision and whether it names an exact
// commit. Full-length hexadecimal references count as commits even when
// configured under "reference".
func (g *Git) Revision() (string, bool, bool) {
	switch {
	case g.Commit != nil:
		return *g.Commit, true, true
	case g.Reference != nil:
		return *g.Reference, commitHash.MatchString(*g.Reference), true
	}
	return "", false, false
}

func (g *Git) Equal(other *Git) bool {
	return util.FastEqual(g, other, func(g, other *Git) bool {
		return g.Repo == other.Repo &&
			util.PtrEqual(g.Reference, other.Reference) &&
			util.PtrEqual(g.Commit, other.Commit)
	})
}

// Filesystem identifies a repository already present on the local disk. The
// path is used in place, never copied into or removed with the run workspace.
type Filesystem struct {
	Path string `json:"path"`

	_ struct{} `additionalProperties:"false"`
}

func (f *Filesystem) Equal(other *Filesystem) bool {
	return util.FastEqual(f, other, func(f, other *Filesystem) bool {
		return f.Path == other.Path
	})
}

// Dependency names a proto subtree under its repository to compile. Output,
// when set, overrides the top-level output path for this subtree only.
type Dependency struct {
	Path   string  `json:"path"`
	Output *string `json:"output,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

func (d Dependency) Equal(other Dependency) bool {
	return d.Path == other.Path && util.PtrEqual(d.Output, other.Output)
}

type StringSet []string

func (s StringSet) Equal(other StringSet) bool {
	return slices.Equal(s, other)
}

// Compile turns the set into glob matchers. An invalid pattern is a
// configuration error surfaced at first use.
func (s StringSet) Compile() ([]glob.Glob, error) {
	globs := make([]glob.Glob, len(s))
	for i, pattern := range s {
		var err error
		if globs[i], err = glob.Compile(pattern, '/'); err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}
	}
	return globs, nil
}
