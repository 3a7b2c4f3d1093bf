// Package toolchain provisions the protoc compiler and the gRPC code
// generation plugin, caching them per version and platform under a per-user
// cache directory. Entries are only ever created, never evicted.
package toolchain

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/nenorbot/protodeps/internal/logging"
	"github.com/nenorbot/protodeps/internal/metrics"
)

const (
	protocTool = "protoc"
	pluginTool = "protoc-gen-grpc-java"

	defaultReleaseHost = "https://github.com/protocolbuffers/protobuf/releases/download"
	defaultPluginHost  = "https://repo1.maven.org/maven2/io/grpc/protoc-gen-grpc-java"
)

var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Release naming tables for the protoc archive and the grpc-java plugin
// artifact. A GOOS/GOARCH value missing here means the platform has no
// published binary.
var (
	protocOS = map[string]string{
		"linux":   "linux",
		"darwin":  "osx",
		"windows": "win",
	}

	pluginOS = map[string]string{
		"linux":   "linux",
		"darwin":  "osx",
		"windows": "windows",
	}

	releaseArch = map[string]string{
		"amd64": "x86_64",
		"arm64": "aarch_64",
		"386":   "x86_32",
	}
)

type Provisioner struct {
	cacheDir    string
	releaseHost string
	pluginHost  string
	client      *http.Client
	goos        string
	goarch      string
	log         *logging.Logger
}

type Option func(*Provisioner)

// WithHTTPClient overrides the HTTP client used for downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provisioner) { p.client = client }
}

// WithHosts overrides the release hosts. Used by tests and by setups that
// mirror the artifacts internally.
func WithHosts(releaseHost, pluginHost string) Option {
	return func(p *Provisioner) {
		p.releaseHost = strings.TrimSuffix(releaseHost, "/")
		p.pluginHost = strings.TrimSuffix(pluginHost, "/")
	}
}

// WithPlatform overrides the OS/architecture pair read from the runtime.
func WithPlatform(goos, goarch string) Option {
	return func(p *Provisioner) {
		p.goos = goos
		p.goarch = goarch
	}
}

func New(cacheDir string, logger *logging.Logger, opts ...Option) *Provisioner {
	p := &Provisioner{
		cacheDir:    cacheDir,
		releaseHost: defaultReleaseHost,
		pluginHost:  defaultPluginHost,
		client:      http.DefaultClient,
		goos:        runtime.GOOS,
		goarch:      runtime.GOARCH,
		log:         logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DefaultCacheDir returns the per-user toolchain cache root.
func DefaultCacheDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "protodeps"), nil
}

// EnsureProtoc resolves a protoc version to a local executable, downloading
// and unpacking the release archive on first use. An already installed
// binary is returned as-is with no further verification.
func (p *Provisioner) EnsureProtoc(ctx context.Context, version string) (string, error) {
	osName, ok := protocOS[p.goos]
	if !ok {
		return "", fmt.Errorf("%w: no protoc release for OS %q", ErrUnsupportedPlatform, p.goos)
	}
	arch, ok := releaseArch[p.goarch]
	if !ok {
		return "", fmt.Errorf("%w: no protoc release for architecture %q", ErrUnsupportedPlatform, p.goarch)
	}

	releaseID := fmt.Sprintf("%s-%s-%s-%s", protocTool, version, osName, arch)
	installDir := filepath.Join(p.cacheDir, protocTool, releaseID)
	binary := filepath.Join(installDir, "bin", p.exeName(protocTool))

	if _, err := os.Stat(binary); err == nil {
		metrics.ToolchainCacheHit(protocTool)
		p.log.Debugf("protoc %s already installed at %s", version, binary)
		return binary, nil
	}

	startTime := time.Now()
	url := fmt.Sprintf("%s/v%s/%s.zip", p.releaseHost, version, releaseID)
	p.log.Infof("downloading %s", url)

	if err := p.install(ctx, url, installDir, binary); err != nil {
		// Remove whatever was partially written so a retry finds the
		// cache in the same state as a fresh install.
		_ = os.RemoveAll(installDir)
		return "", fmt.Errorf("provisioning protoc %s: %w", version, err)
	}

	metrics.ToolchainDownloaded(protocTool, startTime)
	return binary, nil
}

// EnsurePlugin resolves a protoc-gen-grpc-java version to a local executable,
// downloading the single-binary artifact on first use.
func (p *Provisioner) EnsurePlugin(ctx context.Context, version string) (string, error) {
	osName, ok := pluginOS[p.goos]
	if !ok {
		return "", fmt.Errorf("%w: no %s release for OS %q", ErrUnsupportedPlatform, pluginTool, p.goos)
	}
	arch, ok := releaseArch[p.goarch]
	if !ok {
		return "", fmt.Errorf("%w: no %s release for architecture %q", ErrUnsupportedPlatform, pluginTool, p.goarch)
	}

	installDir := filepath.Join(p.cacheDir, pluginTool, version)
	binary := filepath.Join(installDir, p.exeName(pluginTool))

	if _, err := os.Stat(binary); err == nil {
		metrics.ToolchainCacheHit(pluginTool)
		p.log.Debugf("%s %s already installed at %s", pluginTool, version, binary)
		return binary, nil
	}

	startTime := time.Now()
	url := fmt.Sprintf("%s/%s/%s-%s-%s-%s.exe", p.pluginHost, version, pluginTool, version, osName, arch)
	p.log.Infof("downloading %s", url)

	if err := func() error {
		if err := os.MkdirAll(installDir, 0755); err != nil {
			return err
		}
		tmp, err := p.download(ctx, url)
		if err != nil {
			return err
		}
		defer os.Remove(tmp)
		if err := copyFile(tmp, binary); err != nil {
			return err
		}
		return os.Chmod(binary, 0700)
	}(); err != nil {
		_ = os.RemoveAll(installDir)
		return "", fmt.Errorf("provisioning %s %s: %w", pluginTool, version, err)
	}

	metrics.ToolchainDownloaded(pluginTool, startTime)
	return binary, nil
}

// install downloads a zip archive, unpacks it into installDir and marks the
// compiler binary executable by its owner.
func (p *Provisioner) install(ctx context.Context, url, installDir, binary string) error {
	tmp, err := p.download(ctx, url)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	if err := unzip(tmp, installDir); err != nil {
		return fmt.Errorf("unpacking archive: %w", err)
	}

	if _, err := os.Stat(binary); err != nil {
		return fmt.Errorf("archive did not contain expected binary: %w", err)
	}

	return os.Chmod(binary, 0700)
}

// download fetches url into a temporary file and returns its path. The
// caller is responsible for removing the file.
func (p *Provisioner) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("unsuccessful status code %d for %s", resp.StatusCode, url)
	}

	f, err := os.CreateTemp("", "protodeps-download-*")
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(f.Name())
		return "", err
	}

	return f.Name(), nil
}

func (p *Provisioner) exeName(name string) string {
	if p.goos == "windows" {
		return name + ".exe"
	}
	return name
}

func unzip(archive, target string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		dest := filepath.Join(target, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(dest, filepath.Clean(target)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes target directory", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return err
		}

		if err := extractFile(f, dest); err != nil {
			return err
		}
	}

	return nil
}

func extractFile(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	w, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer w.Close()

	_, err = io.Copy(w, rc)
	return err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
