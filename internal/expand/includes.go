package expand

import "path/filepath"

// IncludePathSet is the ordered set of directories passed to the compiler as
// import roots. Compiler import resolution is first-match-wins, so insertion
// order is significant and the set is never re-sorted.
type IncludePathSet struct {
	paths []string
	seen  map[string]struct{}
}

func NewIncludePathSet() *IncludePathSet {
	return &IncludePathSet{seen: map[string]struct{}{}}
}

func (s *IncludePathSet) Add(path string) {
	cleaned := filepath.Clean(path)
	if _, ok := s.seen[cleaned]; ok {
		return
	}
	s.seen[cleaned] = struct{}{}
	s.paths = append(s.paths, cleaned)
}

func (s *IncludePathSet) Len() int {
	return len(s.paths)
}

func (s *IncludePathSet) Paths() []string {
	return s.paths
}

// Flags renders the set as compiler arguments, one --proto_path flag per
// entry, in insertion order.
func (s *IncludePathSet) Flags() []string {
	flags := make([]string, len(s.paths))
	for i, p := range s.paths {
		flags[i] = "--proto_path=" + p
	}
	return flags
}
