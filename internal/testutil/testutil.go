// Package testutil holds helpers shared by unit and integration tests:
// project layout lookups and synthetic camera frames with real barcodes.
package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// GetProjectRoot returns the project root directory by finding go.mod.
func GetProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("failed to get caller information")
	}
	for dir := filepath.Dir(filename); ; {
		if FileExists(filepath.Join(dir, "go.mod")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("could not find go.mod file starting from %s", filepath.Dir(filename))
}

// GetProjectRootValidated returns the project root after checking that it
// has the cmd and internal directories.
func GetProjectRootValidated() (string, error) {
	root, err := GetProjectRoot()
	if err != nil {
		return "", err
	}
	for _, dir := range []string{"internal", "cmd"} {
		if !DirExists(filepath.Join(root, dir)) {
			return "", fmt.Errorf("invalid project root %s: %s directory not found", root, dir)
		}
	}
	return root, nil
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o750)
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// DirExists checks if a directory exists.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
