package files

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/mitchellh/go-homedir"
)

func Exists(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return true, nil
	} else if os.IsNotExist(err) {
		return false, nil
	} else {
		return false, fmt.Errorf("Failed to determine if %s exists: %w", path, err)
	}
}

func IsDir(path string) (bool, error) {
	file, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return file.Mode().IsDir(), nil
}

// WriteIfDifferent atomically replaces file with content, unless it already has that content.
// It reports whether the file was written.
func WriteIfDifferent(file string, content []byte, perm os.FileMode) (bool, error) {
	existing, err := os.ReadFile(file)
	if err == nil && bytes.Equal(existing, content) {
		return false, nil
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return false, err
	}
	if err := renameio.WriteFile(file, content, perm); err != nil {
		return false, fmt.Errorf("Failed to write %s: %w", file, err)
	}
	return true, nil
}

// ExpandUser expands a leading ~ to the user's home directory
func ExpandUser(path string) (string, error) {
	return homedir.Expand(path)
}

// IsWithin reports whether the relative path rel stays inside its root once cleaned.
func IsWithin(rel string) bool {
	if rel == "" || filepath.IsAbs(rel) {
		return false
	}
	clean := filepath.ToSlash(filepath.Clean(rel))
	return clean != ".." && !strings.HasPrefix(clean, "../")
}
