// Package compile drives the protoc compiler over single files, assembling
// include path, output and plugin arguments per invocation.
package compile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/nenorbot/protodeps/internal/expand"
	"github.com/nenorbot/protodeps/internal/logging"
)

// Error is returned when the compiler exits non-zero.
type Error struct {
	File     string
	ExitCode int
	Stderr   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("compiling %s: protoc exited with code %d: %s", e.File, e.ExitCode, strings.TrimSpace(e.Stderr))
}

// Driver compiles proto files one at a time. A Driver is scoped to one
// output target; the orchestrator builds one per dependency so output
// overrides stay local.
type Driver struct {
	protocPath string
	includes   *expand.IncludePathSet
	outputDir  string
	lang       string
	pluginPath string
	pluginOut  string
	log        *logging.Logger
}

func New(protocPath string, includes *expand.IncludePathSet, outputDir, lang string, logger *logging.Logger) *Driver {
	return &Driver{
		protocPath: protocPath,
		includes:   includes,
		outputDir:  outputDir,
		lang:       lang,
		log:        logger,
	}
}

// WithPlugin enables gRPC code generation through the provisioned plugin
// binary. Plugin output lands in the same directory as the primary output.
func (d *Driver) WithPlugin(pluginPath string) *Driver {
	d.pluginPath = pluginPath
	d.pluginOut = d.outputDir
	return d
}

// Args returns the full argument vector for compiling file. Include flags
// come first, in insertion order, then the output flags, then the file.
func (d *Driver) Args(file string) []string {
	args := d.includes.Flags()
	args = append(args, fmt.Sprintf("--%s_out=%s", d.lang, d.outputDir))
	if d.pluginPath != "" {
		args = append(args,
			"--grpc_out="+d.pluginOut,
			"--plugin=protoc-gen-grpc="+d.pluginPath,
		)
	}
	return append(args, file)
}

// Compile invokes the compiler for a single file, capturing standard output
// and standard error separately. A non-zero exit yields *Error. Non-empty
// stderr on success is surfaced as a warning: protoc reports deprecation
// notices and similar diagnostics there.
func (d *Driver) Compile(ctx context.Context, file string) (string, string, error) {
	cmd := exec.CommandContext(ctx, d.protocPath, d.Args(file)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	d.log.Debugf("compiling %s", file)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.String(), stderr.String(), &Error{
				File:     file,
				ExitCode: exitErr.ExitCode(),
				Stderr:   stderr.String(),
			}
		}
		return stdout.String(), stderr.String(), fmt.Errorf("compiling %s: %w", file, err)
	}

	if stderr.Len() > 0 {
		d.log.Warnf("protoc: %s", strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), stderr.String(), nil
}
