package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/cat21/botbox/pkg/global"
	"github.com/cat21/botbox/pkg/util/files"
)

var baseImageLine = regexp.MustCompile(`(?m)^base_image:[^\n]*$`)

// SetBaseImage rewrites the top-level base_image of projectDir/botbox.yaml in place, adding
// it when absent. The rest of the file, comments included, is left untouched.
func SetBaseImage(projectDir string, ref string) (bool, error) {
	filename := filepath.Join(projectDir, global.ConfigFilename)
	contents, err := os.ReadFile(filename)
	if err != nil {
		return false, err
	}

	line := "base_image: " + ref
	var updated []byte
	if baseImageLine.Match(contents) {
		updated = baseImageLine.ReplaceAllLiteral(contents, []byte(line))
	} else {
		updated = append([]byte(line+"\n"), contents...)
	}

	// Refuse to write a file that no longer loads.
	if _, err := ParseBytes(updated, filename); err != nil {
		return false, fmt.Errorf("Failed to update base_image in %s: %w", filename, err)
	}
	return files.WriteIfDifferent(filename, updated, 0o644)
}
