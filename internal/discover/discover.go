// Package discover lists the proto files under a repository subtree.
package discover

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gobwas/glob"
)

var ErrPathNotFound = errors.New("dependency path not found")

const protoSuffix = ".proto"

// File is a discovered proto file. ImportRoot is the include root the file
// was found under; the compiler resolves the file's own import statements
// relative to roots like it.
type File struct {
	Path       string // absolute
	ImportRoot string // absolute
}

// ImportPath returns the file's logical path relative to its include root,
// in slash form. This is the path other proto files use to import it.
func (f File) ImportPath() string {
	rel, err := filepath.Rel(f.ImportRoot, f.Path)
	if err != nil {
		return filepath.ToSlash(f.Path)
	}
	return filepath.ToSlash(rel)
}

// Discover walks root/sub and returns every regular file with the proto
// suffix, minus those matching an excluded pattern. Callers must not rely on
// the returned order beyond it being the filesystem traversal order. A
// missing directory is an error.
func Discover(root, sub string, excluded []glob.Glob) ([]File, error) {
	importRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	target := filepath.Join(importRoot, sub)
	if _, err := os.Stat(target); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, target)
		}
		return nil, err
	}

	var files []File
	err = filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != protoSuffix {
			return nil
		}

		rel, err := filepath.Rel(importRoot, path)
		if err != nil {
			return err
		}
		for _, g := range excluded {
			if g.Match(filepath.ToSlash(rel)) {
				return nil
			}
		}

		files = append(files, File{Path: path, ImportRoot: importRoot})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}
