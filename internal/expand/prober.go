package expand

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
)

// protocProber asks protoc for a file's dependencies. Generated-code output
// is discarded; only the textual dependency listing is kept.
type protocProber struct {
	protocPath string
}

func NewProtocProber(protocPath string) Prober {
	return &protocProber{protocPath: protocPath}
}

var protoToken = regexp.MustCompile(`[^\s:]+\.proto`)

func (p *protocProber) Deps(ctx context.Context, includes []string, file string) ([]string, error) {
	sink := "/dev/stdout"
	var tmp string
	if runtime.GOOS == "windows" {
		// No capturable stdout device; route the listing through a
		// temporary file instead.
		f, err := os.CreateTemp("", "protodeps-deps-*")
		if err != nil {
			return nil, err
		}
		tmp = f.Name()
		f.Close()
		defer os.Remove(tmp)
		sink = tmp
	}

	args := make([]string, 0, len(includes)+3)
	for _, inc := range includes {
		args = append(args, "--proto_path="+inc)
	}
	args = append(args, "--dependency_out="+sink, "-o"+os.DevNull, file)

	cmd := exec.CommandContext(ctx, p.protocPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("probing dependencies of %s: %w: %s", file, err, strings.TrimSpace(stderr.String()))
	}

	listing := stdout.String()
	if tmp != "" {
		bs, err := os.ReadFile(tmp)
		if err != nil {
			return nil, err
		}
		listing = string(bs)
	}

	return protoToken.FindAllString(listing, -1), nil
}
