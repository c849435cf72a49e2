// Package fileutil locates configuration files across the standard
// search locations.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileExists reports whether path is an existing regular file. A
// directory with the same name does not count.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// DirExists reports whether path is an existing directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// SearchPaths returns the first entry of paths that exists as a regular
// file. Directories are skipped, so a stray directory named like the
// config file cannot shadow a real one further down the list.
func SearchPaths(paths []string) (string, error) {
	for _, path := range paths {
		if FileExists(path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("file not found in any of the search paths: %v", paths)
}

// SearchPathsOptional is SearchPaths for files that are allowed to be
// absent: it returns "" instead of an error when nothing matches.
func SearchPathsOptional(paths []string) string {
	found, err := SearchPaths(paths)
	if err != nil {
		return ""
	}
	return found
}

// DefaultConfigPaths lists the locations probed for a config file, in
// priority order: the working directory, its config/ subdirectory, then
// the system-wide /etc/pushgate.
func DefaultConfigPaths(filename string) []string {
	return []string{
		filepath.Join(".", filename),
		filepath.Join(".", "config", filename),
		filepath.Join("/etc/pushgate", filename),
	}
}

// FindConfigOptional resolves filename against DefaultConfigPaths,
// returning "" when no config file is present anywhere. Running without
// a config file is supported (everything has a default or an env
// override), so absence is not an error here.
func FindConfigOptional(filename string) string {
	return SearchPathsOptional(DefaultConfigPaths(filename))
}
