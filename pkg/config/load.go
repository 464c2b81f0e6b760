package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cat21/botbox/pkg/errors"
	"github.com/cat21/botbox/pkg/global"
	"github.com/cat21/botbox/pkg/util/console"
	"github.com/cat21/botbox/pkg/util/files"
)

const maxSearchDepth = 100

// GetProjectDir returns the directory given by --project-dir, or finds the project root
// by walking up from the current working directory.
func GetProjectDir(projectDirFlag string) (string, error) {
	if projectDirFlag != "" {
		return filepath.Abs(projectDirFlag)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return findProjectRootDir(cwd, global.ConfigFilename)
}

// GetConfig loads, validates and completes the project's botbox.yaml.
// Warnings are printed to the console; errors are returned.
func GetConfig(projectDirFlag string) (*Config, string, error) {
	rootDir, err := GetProjectDir(projectDirFlag)
	if err != nil {
		return nil, "", err
	}
	cfg, result, err := Load(rootDir)
	if result != nil {
		for _, w := range result.Warnings {
			console.Warnf("%s", w)
		}
	}
	if err != nil {
		return nil, "", err
	}
	return cfg, rootDir, nil
}

// Load reads botbox.yaml from projectDir, validates it against the files in projectDir and
// completes it. The ValidationResult is returned even when validation fails so callers can
// report every problem at once.
func Load(projectDir string, opts ...ValidateOption) (*Config, *ValidationResult, error) {
	configPath := filepath.Join(projectDir, global.ConfigFilename)
	exists, err := files.Exists(configPath)
	if err != nil {
		return nil, nil, err
	}
	if !exists {
		return nil, nil, errors.ConfigNotFound(fmt.Sprintf("%s does not exist in %s. Are you in the right directory?", global.ConfigFilename, projectDir))
	}
	contents, err := os.ReadFile(configPath)
	if err != nil {
		return nil, nil, err
	}

	opts = append([]ValidateOption{WithProjectDir(projectDir)}, opts...)
	cfg, result, err := fromBytes(contents, configPath, opts...)
	if err != nil {
		return nil, result, err
	}
	if err := result.Err(); err != nil {
		return nil, result, fmt.Errorf("There is a problem in %s:\n%w", configPath, err)
	}
	return cfg, result, nil
}

// Given a directory, find the config file in that directory
func findConfigPathInDirectory(dir string, configFilename string) (configPath string, err error) {
	filePath := filepath.Join(dir, configFilename)
	exists, err := files.Exists(filePath)
	if err != nil {
		return "", fmt.Errorf("Failed to scan directory %s for %s: %s", dir, filePath, err)
	} else if exists {
		return filePath, nil
	}

	return "", errors.ConfigNotFound(fmt.Sprintf("%s not found in %s", configFilename, dir))
}

// Walk up the directory tree to find the root of the project.
// The project root is defined as the directory housing a `botbox.yaml` file.
func findProjectRootDir(startDir string, configFilename string) (string, error) {
	dir := startDir
	for i := 0; i < maxSearchDepth; i++ {
		switch _, err := findConfigPathInDirectory(dir, configFilename); {
		case err != nil && !errors.IsConfigNotFound(err):
			return "", err
		case err == nil:
			return dir, nil
		case dir == "." || dir == "/" || filepath.Dir(dir) == dir:
			return "", errors.ConfigNotFound(fmt.Sprintf("%s not found in %s (or in any parent directories)", configFilename, startDir))
		}

		dir = filepath.Dir(dir)
	}

	return "", errors.ConfigNotFound(fmt.Sprintf("No %s found in parent directories.", configFilename))
}
