package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrTraversal   = errors.New("reference contains a parent directory segment")
	ErrOutsideRoot = errors.New("path resolves outside the root directory")
	ErrEmptyRef    = errors.New("reference is empty")
)

// Jail confines relative references to a single directory. Symlinks are
// evaluated before the containment check, so a link inside the root that
// points elsewhere is rejected.
type Jail struct {
	root string
}

func NewJail(root string) (*Jail, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("jail root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("abs jail root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Root may not exist yet; callers create it before writing.
		resolved = abs
	}
	return &Jail{root: resolved}, nil
}

func (j *Jail) Root() string {
	return j.root
}

// Resolve maps ref to an absolute path strictly below the root. Absolute
// refs are accepted only when they already point inside the root.
func (j *Jail) Resolve(ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", ErrEmptyRef
	}
	if HasTraversal(ref) {
		return "", ErrTraversal
	}

	target := ref
	if !filepath.IsAbs(target) {
		target = filepath.Join(j.root, target)
	}
	resolved, err := resolveWithParentSymlink(filepath.Clean(target))
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(j.root, resolved)
	if err != nil {
		return "", fmt.Errorf("relative path check: %w", err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", ErrOutsideRoot
	}
	return resolved, nil
}

// Rel returns the root-relative form of an absolute path produced by Resolve.
func (j *Jail) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(j.root, abs)
	if err != nil {
		return "", fmt.Errorf("relative path: %w", err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", ErrOutsideRoot
	}
	return filepath.ToSlash(rel), nil
}

// HasTraversal reports whether any slash- or backslash-separated segment
// of ref is "..".
func HasTraversal(ref string) bool {
	for _, seg := range strings.FieldsFunc(ref, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return true
		}
	}
	return false
}

func resolveWithParentSymlink(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("resolve symlink: %w", err)
	}

	parent := filepath.Dir(path)
	base := filepath.Base(path)
	parentResolved, perr := filepath.EvalSymlinks(parent)
	if perr != nil {
		if errors.Is(perr, os.ErrNotExist) {
			parentResolved = parent
		} else {
			return "", fmt.Errorf("resolve parent symlink: %w", perr)
		}
	}
	return filepath.Join(parentResolved, base), nil
}
