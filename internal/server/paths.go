package server

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var errOutsideRoot = errors.New("path escapes root")

// pathResolver maps untrusted relative paths onto the filesystem below root.
type pathResolver struct {
	root string // canonical: absolute, symlink-free
}

func newPathResolver(root string) (*pathResolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}

	return &pathResolver{root: canonical}, nil
}

// resolve returns the canonical form of root/requested. The result is either
// the root itself or a path below it; anything else is an error.
func (r *pathResolver) resolve(requested string) (string, error) {
	candidate := filepath.Join(r.root, preClean(requested))

	canonical, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		return "", err
	}

	canonical, err = filepath.Abs(canonical)
	if err != nil {
		return "", err
	}

	if !r.contains(canonical) {
		return "", fmt.Errorf("%w: %s", errOutsideRoot, requested)
	}

	return canonical, nil
}

func (r *pathResolver) contains(target string) bool {
	if target == r.root {
		return true
	}

	prefix := r.root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}

	return strings.HasPrefix(target, prefix)
}

// relative returns target relative to root in slash form, "" for the root.
func (r *pathResolver) relative(target string) string {
	rel, err := filepath.Rel(r.root, target)
	if err != nil || rel == "." {
		return ""
	}

	return filepath.ToSlash(rel)
}

// preClean normalizes the Windows traversal variant and cleans the path as if
// it were rooted, so no ".." segment survives above the root. Symlinks are not
// considered here; resolve does the real containment check.
func preClean(requested string) string {
	requested = strings.ReplaceAll(requested, `..\`, "../")
	cleaned := filepath.Clean(string(filepath.Separator) + filepath.FromSlash(requested))

	return strings.TrimPrefix(cleaned, string(filepath.Separator))
}
