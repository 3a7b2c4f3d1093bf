package expand

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestIncludePathSetOrder(t *testing.T) {
	s := NewIncludePathSet()
	s.Add("/repos/zeta/proto")
	s.Add("/repos/alpha")
	s.Add("/repos/zeta/proto") // duplicate
	s.Add("/repos/mid/src/main/proto")

	// First match wins in compiler import resolution: insertion order must
	// survive verbatim, never sorted.
	exp := []string{"/repos/zeta/proto", "/repos/alpha", "/repos/mid/src/main/proto"}
	if diff := cmp.Diff(exp, s.Paths()); diff != "" {
		t.Errorf("unexpected paths (-want +got):\n%s", diff)
	}

	expFlags := []string{
		"--proto_path=/repos/zeta/proto",
		"--proto_path=/repos/alpha",
		"--proto_path=/repos/mid/src/main/proto",
	}
	if diff := cmp.Diff(expFlags, s.Flags()); diff != "" {
		t.Errorf("unexpected flags (-want +got):\n%s", diff)
	}
}

func TestProtoTokenParsing(t *testing.T) {
	// Make-style dependency listing as emitted by --dependency_out.
	listing := "out/user.java: \\\n /repos/a/pkg/foo.proto \\\n /repos/b/pkg/bar.proto\n"

	exp := []string{"/repos/a/pkg/foo.proto", "/repos/b/pkg/bar.proto"}
	if diff := cmp.Diff(exp, protoToken.FindAllString(listing, -1)); diff != "" {
		t.Errorf("unexpected tokens (-want +got):\n%s", diff)
	}
}
