package utils

import (
	"fmt"
	"path/filepath"
	"strings"
)

// JoinWithin joins a slash-separated relative path, as produced by io/fs
// walkers, onto base and checks that the result stays inside base.
//
// Example usage:
//
//	full, err := JoinWithin(start, match)
//	if err != nil {
//		return fmt.Errorf("invalid match: %w", err)
//	}
func JoinWithin(base, rel string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("base path cannot be empty")
	}
	if rel == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if filepath.IsAbs(filepath.FromSlash(rel)) {
		return "", fmt.Errorf("absolute path not allowed: %s", rel)
	}

	cleanBase := filepath.Clean(base)
	full := filepath.Join(cleanBase, filepath.FromSlash(rel))
	if !IsWithin(cleanBase, full) {
		return "", fmt.Errorf("path %s escapes base directory %s", rel, base)
	}
	return full, nil
}

// IsWithin reports whether path is base or lies below it. Both are compared
// lexically after cleaning.
func IsWithin(base, path string) bool {
	cleanBase := filepath.Clean(base)
	cleanPath := filepath.Clean(path)
	if cleanPath == cleanBase {
		return true
	}
	prefix := cleanBase
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(cleanPath, prefix)
}
