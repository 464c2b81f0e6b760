package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"github.com/cat21/botbox/pkg/global"
	"github.com/cat21/botbox/pkg/util/files"
)

// FindConfigFile searches for a config file (typically botbox.yaml) in the given directory
// and parent directories. Returns the directory containing the config file.
func FindConfigFile(dir string, configFilename string) (string, error) {
	if configFilename == "" {
		configFilename = global.ConfigFilename
	}
	return findProjectRootDir(dir, configFilename)
}

// Parse reads and parses a botbox.yaml file into a configFile.
// This only does YAML parsing - no validation or defaults.
// Returns ParseError if the file cannot be read or parsed.
func Parse(filename string) (*configFile, error) {
	exists, err := files.Exists(filename)
	if err != nil {
		return nil, &ParseError{Filename: filename, Err: err}
	}

	if !exists {
		return nil, &ParseError{
			Filename: filename,
			Err:      fmt.Errorf("%s does not exist in %s", filepath.Base(filename), filepath.Dir(filename)),
		}
	}

	contents, err := os.ReadFile(filename)
	if err != nil {
		return nil, &ParseError{Filename: filename, Err: err}
	}

	return ParseBytes(contents, filename)
}

// ParseBytes parses YAML content into a configFile.
// The filename is used for error messages only.
func ParseBytes(contents []byte, filename string) (*configFile, error) {
	cfg := &configFile{}

	if len(contents) == 0 {
		return cfg, nil
	}

	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, &ParseError{
			Filename: filename,
			Err:      fmt.Errorf("invalid YAML: %w", err),
		}
	}

	return cfg, nil
}

// ParseReader parses from an io.Reader (useful for testing).
func ParseReader(r io.Reader, filename string) (*configFile, error) {
	contents, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{Filename: filename, Err: err}
	}
	return ParseBytes(contents, filename)
}

// FromYAML parses, validates and completes YAML content without touching the filesystem.
// Referenced files are not checked; use Load for that.
func FromYAML(contents []byte) (*Config, error) {
	cfg, result, err := fromBytes(contents, global.ConfigFilename)
	if err != nil {
		return nil, err
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromBytes(contents []byte, filename string, opts ...ValidateOption) (*Config, *ValidationResult, error) {
	if err := ValidateBytes(contents); err != nil {
		return nil, nil, err
	}
	cfgFile, err := ParseBytes(contents, filename)
	if err != nil {
		return nil, nil, err
	}
	result := ValidateConfigFile(cfgFile, opts...)
	if result.HasErrors() {
		return nil, result, nil
	}
	return complete(cfgFile, filename), result, nil
}
