// Package service sequences a full generation run: toolchain provisioning,
// repository resolution, dependency closure expansion and compilation.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"

	"github.com/nenorbot/protodeps/internal/compile"
	"github.com/nenorbot/protodeps/internal/config"
	"github.com/nenorbot/protodeps/internal/discover"
	"github.com/nenorbot/protodeps/internal/expand"
	"github.com/nenorbot/protodeps/internal/logging"
	"github.com/nenorbot/protodeps/internal/metrics"
	"github.com/nenorbot/protodeps/internal/progress"
	"github.com/nenorbot/protodeps/internal/repos"
	"github.com/nenorbot/protodeps/internal/toolchain"
)

var ErrOutputPathNotConfigured = errors.New("output path is not configured")

// GenerateWorker is responsible for producing language bindings from the
// configured repositories. It resolves every repository into the run
// workspace, assembles the full include path set, expands each dependency's
// seed files to their import closure and compiles every closure member.
type GenerateWorker struct {
	cfg             *config.Root
	log             *logging.Logger
	provisioner     *toolchain.Provisioner
	gitRunner       repos.GitRunner
	prober          expand.Prober
	retainWorkspace bool
	parallelism     int
	progressOut     io.Writer
}

func NewGenerateWorker(cfg *config.Root, logger *logging.Logger) *GenerateWorker {
	return &GenerateWorker{cfg: cfg, log: logger, parallelism: 1}
}

func (w *GenerateWorker) WithProvisioner(p *toolchain.Provisioner) *GenerateWorker {
	w.provisioner = p
	return w
}

func (w *GenerateWorker) WithGitRunner(r repos.GitRunner) *GenerateWorker {
	w.gitRunner = r
	return w
}

func (w *GenerateWorker) WithProber(p expand.Prober) *GenerateWorker {
	w.prober = p
	return w
}

// WithRetainWorkspace keeps the temporary workspace around after the run and
// logs its location instead of deleting it.
func (w *GenerateWorker) WithRetainWorkspace(retain bool) *GenerateWorker {
	w.retainWorkspace = retain
	return w
}

// WithParallelism bounds concurrent compiler invocations. Values below two
// keep the run fully sequential.
func (w *GenerateWorker) WithParallelism(n int) *GenerateWorker {
	w.parallelism = n
	return w
}

func (w *GenerateWorker) WithProgressOutput(out io.Writer) *GenerateWorker {
	w.progressOut = out
	return w
}

type resolvedRepo struct {
	repo     *config.Repo
	root     string
	excluded []glob.Glob
}

// Run executes one generation pass. The first error aborts the run;
// workspace cleanup happens on every exit path unless retention was
// requested.
func (w *GenerateWorker) Run(ctx context.Context) error {
	if w.cfg.Output.Path == "" {
		return ErrOutputPathNotConfigured
	}
	w.checkSourcePaths()

	protocPath, pluginPath, err := w.provision(ctx)
	if err != nil {
		return err
	}

	workspace, err := os.MkdirTemp("", "protodeps-")
	if err != nil {
		return err
	}
	defer func() {
		if w.retainWorkspace {
			w.log.Infof("retaining workspace %s", workspace)
			return
		}
		if err := os.RemoveAll(workspace); err != nil {
			w.log.Warnf("failed to remove workspace %s: %v", workspace, err)
		}
	}()

	resolver := repos.New(workspace, w.log)
	if w.gitRunner != nil {
		resolver = resolver.WithRunner(w.gitRunner)
	}

	// Resolve every repository and build the complete include path set
	// before any expansion: a file's imports may span repositories, so all
	// roots must be visible regardless of which repository is being
	// expanded. Repositories are visited in sorted name order, and the set
	// preserves that insertion order verbatim.
	includes := expand.NewIncludePathSet()
	var resolved []resolvedRepo
	for _, repo := range w.cfg.SortedRepos() {
		root, err := resolver.Resolve(ctx, repo)
		if err != nil {
			return err
		}
		for _, protoPath := range repo.ProtoPaths {
			includes.Add(filepath.Join(root, protoPath))
		}

		excluded, err := repo.ExcludedFiles.Compile()
		if err != nil {
			return fmt.Errorf("repository %q: %w", repo.Name, err)
		}
		resolved = append(resolved, resolvedRepo{repo: repo, root: root, excluded: excluded})
	}

	prober := w.prober
	if prober == nil {
		prober = expand.NewProtocProber(protocPath)
	}
	expander := expand.New(prober, w.log)

	for _, rr := range resolved {
		for _, dep := range rr.repo.Dependencies {
			if err := w.generate(ctx, rr, dep, includes, expander, protocPath, pluginPath); err != nil {
				return err
			}
		}
	}

	return nil
}

func (w *GenerateWorker) generate(ctx context.Context, rr resolvedRepo, dep config.Dependency, includes *expand.IncludePathSet, expander *expand.Expander, protocPath, pluginPath string) error {
	seeds, err := w.discoverSeeds(rr, dep)
	if err != nil {
		return err
	}
	w.log.Infof("repository %q: %d proto file(s) under %s", rr.repo.Name, len(seeds), dep.Path)

	closure, err := expander.Closure(ctx, includes, seeds)
	if err != nil {
		return err
	}

	outputDir := w.cfg.Output.Path
	if dep.Output != nil {
		outputDir = *dep.Output
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	driver := compile.New(protocPath, includes, outputDir, w.cfg.Output.Language, w.log)
	if pluginPath != "" {
		driver = driver.WithPlugin(pluginPath)
	}

	bar := progress.New(w.progressOut, len(closure), fmt.Sprintf("compiling %s/%s", rr.repo.Name, dep.Path))
	defer bar.Finish()

	compileOne := func(ctx context.Context, file string) error {
		startTime := time.Now()
		defer bar.Add(1)

		if _, _, err := driver.Compile(ctx, file); err != nil {
			metrics.CompileFailed(rr.repo.Name)
			return err
		}
		metrics.CompileSucceeded(rr.repo.Name, startTime)
		return nil
	}

	if w.parallelism > 1 {
		// The include set and closure are frozen by now, so per-file
		// compilation shares no mutable state.
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(w.parallelism)
		for _, file := range closure {
			g.Go(func() error { return compileOne(ctx, file) })
		}
		return g.Wait()
	}

	for _, file := range closure {
		if err := compileOne(ctx, file); err != nil {
			return err
		}
	}
	return nil
}

// discoverSeeds looks the dependency path up under each of the repository's
// proto paths. It is an error for the path to exist under none of them.
func (w *GenerateWorker) discoverSeeds(rr resolvedRepo, dep config.Dependency) ([]string, error) {
	var seeds []string
	found := false
	for _, protoPath := range rr.repo.ProtoPaths {
		files, err := discover.Discover(filepath.Join(rr.root, protoPath), dep.Path, rr.excluded)
		if errors.Is(err, discover.ErrPathNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		found = true
		for _, f := range files {
			seeds = append(seeds, f.Path)
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s under any proto path of repository %q", discover.ErrPathNotFound, dep.Path, rr.repo.Name)
	}
	return seeds, nil
}

func (w *GenerateWorker) provision(ctx context.Context) (string, string, error) {
	provisioner := w.provisioner
	if provisioner == nil {
		cacheDir, err := toolchain.DefaultCacheDir()
		if err != nil {
			return "", "", err
		}
		provisioner = toolchain.New(cacheDir, w.log)
	}

	protocPath, err := provisioner.EnsureProtoc(ctx, w.cfg.Protoc.Version)
	if err != nil {
		return "", "", err
	}

	var pluginPath string
	if w.cfg.GrpcPlugin != nil {
		if pluginPath, err = provisioner.EnsurePlugin(ctx, w.cfg.GrpcPlugin.Version); err != nil {
			return "", "", err
		}
	}

	return protocPath, pluginPath, nil
}

// checkSourcePaths warns when the output path is not among the project's
// declared generated-source roots. Generated code would compile fine either
// way; the warning catches configuration drift.
func (w *GenerateWorker) checkSourcePaths() {
	if len(w.cfg.SourcePaths) == 0 {
		return
	}
	output := filepath.Clean(w.cfg.Output.Path)
	for _, p := range w.cfg.SourcePaths {
		if filepath.Clean(p) == output {
			return
		}
	}
	w.log.Warnf("output path %s is not listed in source_paths %v", w.cfg.Output.Path, []string(w.cfg.SourcePaths))
}
