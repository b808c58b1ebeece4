// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package paths confines every tool filesystem operation to a set of
// allowed directories and an ignore list. A Guard is built once from a
// Policy and never mutated afterwards; both tools share the same
// instance.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrPathViolation marks a path that resolves outside the allowed
	// directories or fails raw input validation.
	ErrPathViolation = errors.New("path is outside the allowed directories")
	// ErrIgnoredPath marks a path excluded by the ignore file.
	ErrIgnoredPath = errors.New("path matches an ignore pattern")
)

// Policy describes the confinement rules for a session. Root is the
// repository directory every relative path is resolved against;
// AllowedDirs extends access outside the root; IgnoreFile points to a
// gitignore-style pattern file (missing file means nothing is ignored).
type Policy struct {
	Root        string
	AllowedDirs []string
	IgnoreFile  string
}

// Guard validates paths against an immutable Policy.
type Guard struct {
	root    string
	allowed []string
	ignore  *ignoreMatcher
}

// NewGuard resolves the policy once and returns a ready guard. The root
// must exist; allowed directories may not exist yet.
func NewGuard(policy Policy) (*Guard, error) {
	if policy.Root == "" {
		return nil, fmt.Errorf("policy root cannot be empty")
	}
	rootAbs, err := filepath.Abs(policy.Root)
	if err != nil {
		return nil, fmt.Errorf("invalid root directory: %v", err)
	}
	rootResolved, err := filepath.EvalSymlinks(rootAbs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root directory: %v", err)
	}
	info, err := os.Stat(rootResolved)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root directory: %v", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", rootResolved)
	}

	allowed := []string{rootResolved}
	for _, entry := range policy.AllowedDirs {
		resolved, err := resolveAllowedDir(entry, rootResolved)
		if err != nil {
			return nil, err
		}
		allowed = append(allowed, resolved)
	}

	ignore, err := loadIgnoreMatcher(policy.IgnoreFile)
	if err != nil {
		return nil, err
	}

	return &Guard{root: rootResolved, allowed: allowed, ignore: ignore}, nil
}

// Root returns the resolved repository root.
func (g *Guard) Root() string {
	return g.root
}

// Validate checks a raw tool-supplied path and returns its resolved
// absolute form. Relative paths resolve against the root; a leading
// slash is treated as repo-relative unless the absolute path already
// falls inside an allowed directory. Paths containing ".." segments are
// rejected outright.
func (g *Guard) Validate(path string) (string, error) {
	if err := ValidatePathString(path, MaxPathLength); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPathViolation, err)
	}
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: parent directory traversal in %q", ErrPathViolation, path)
		}
	}

	var candidate string
	if filepath.IsAbs(path) {
		clean := filepath.Clean(path)
		if g.contains(clean) {
			candidate = clean
		} else {
			candidate = filepath.Join(g.root, strings.TrimLeft(filepath.ToSlash(clean), "/"))
		}
	} else {
		candidate = filepath.Join(g.root, path)
	}

	resolved, err := resolveCreatePath(candidate)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPathViolation, err)
	}
	if !g.contains(resolved) {
		return "", fmt.Errorf("%w: %s", ErrPathViolation, path)
	}

	if rel, ok := g.relToAllowed(resolved); ok {
		isDir := false
		if info, err := os.Stat(resolved); err == nil && info.IsDir() {
			isDir = true
		}
		if g.ignore.match(rel, isDir) {
			return "", fmt.Errorf("%w: %s", ErrIgnoredPath, rel)
		}
	}

	return resolved, nil
}

// AllowedRoots returns the resolved allowed directories, root first.
func (g *Guard) AllowedRoots() []string {
	out := make([]string, len(g.allowed))
	copy(out, g.allowed)
	return out
}

// Ignored reports whether a resolved path is excluded by the ignore
// file, without the containment checks. Used by walkers to skip
// entries cheaply.
func (g *Guard) Ignored(resolved string, isDir bool) bool {
	rel, ok := g.relToAllowed(resolved)
	if !ok {
		return false
	}
	return g.ignore.match(rel, isDir)
}

func (g *Guard) contains(path string) bool {
	for _, base := range g.allowed {
		if HasPathPrefix(path, base) {
			return true
		}
	}
	return false
}

// relToAllowed returns the path relative to the first allowed base that
// contains it. The root is checked first so repo files always match
// repo-relative ignore patterns.
func (g *Guard) relToAllowed(path string) (string, bool) {
	for _, base := range g.allowed {
		if HasPathPrefix(path, base) {
			rel, err := filepath.Rel(base, path)
			if err != nil {
				return "", false
			}
			if rel == "." {
				return "", false
			}
			return rel, true
		}
	}
	return "", false
}
