// Package filex holds filesystem and path helpers shared by the storage
// backends and the bundle handler.
package filex

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrPathEscapes is returned for paths that climb above their root.
var ErrPathEscapes = errors.New("path escapes its root")

// EnsureDir creates dir (relative paths are taken from the working
// directory) and returns its absolute form.
func EnsureDir(dir string) (string, error) {
	if !filepath.IsAbs(dir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		dir = filepath.Join(cwd, dir)
	}

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

// CleanRelative normalises a slash-separated path below some root. The
// result has no leading slash and is "" for the root itself.
func CleanRelative(p string) (string, error) {
	if strings.ContainsRune(p, 0) {
		return "", fmt.Errorf("%w: NUL byte", ErrPathEscapes)
	}
	p = strings.ReplaceAll(p, "\\", "/")
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", ErrPathEscapes
		}
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+p), "/")
	return cleaned, nil
}

// SplitParent returns the parent folder and name of a cleaned relative
// path. Files in the root have parent "".
func SplitParent(rel string) (parent, name string) {
	parent, name = path.Split(rel)
	return strings.TrimSuffix(parent, "/"), name
}
