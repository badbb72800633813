package utils

import (
	"path/filepath"
	"strings"
)

// SanitizePath ensures a path received from a server is safe for use in local operations.
// It removes any directory traversal segments (..) and ensures the path is clean.
func SanitizePath(path string) string {
	// 1. Clean the path to resolve any internal .. or .
	p := filepath.Clean(path)

	// 2. Remove Windows volume names. filepath.VolumeName only recognizes
	// them on Windows, and server-supplied paths may carry one anywhere.
	if vol := filepath.VolumeName(p); vol != "" {
		p = strings.TrimPrefix(p, vol)
	} else if len(p) >= 2 && p[1] == ':' && isDriveLetter(p[0]) {
		p = p[2:]
	}

	// 3. Convert to forward slashes for consistent handling during sanitization
	p = filepath.ToSlash(p)

	// 4. If the path starts with .. or /, it's trying to escape.
	// We want to treat the path as a relative path from our own root.
	for strings.HasPrefix(p, "../") || p == ".." {
		p = strings.TrimPrefix(p, "../")
		if p == ".." {
			p = "."
		}
	}

	// Also remove leading slash to force relativity
	p = strings.TrimPrefix(p, "/")

	if p == "" || p == "." {
		return "."
	}

	return filepath.FromSlash(p)
}

func isDriveLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// Stem returns the filename without its extension. Compound state extensions
// (".state.auto") are stripped whole.
func Stem(name string) string {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".state.auto") {
		return name[:len(name)-len(".state.auto")]
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// HasSuffixFold reports whether name ends in suffix, case-insensitively.
func HasSuffixFold(name, suffix string) bool {
	return strings.HasSuffix(strings.ToLower(name), strings.ToLower(suffix))
}
