package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
)

const imageNamePrefix = "botbox-"

var nonImageNameChars = regexp.MustCompile(`[^a-z0-9\-]+`)

// DockerImageName returns the default Docker repository name for a project directory
func DockerImageName(projectDir string) string {
	projectName := strings.ToLower(filepath.Base(projectDir))

	// Convert whitespace to dashes
	projectName = strings.ReplaceAll(projectName, " ", "-")

	// Remove anything non-alphanumeric
	projectName = nonImageNameChars.ReplaceAllString(projectName, "")
	projectName = strings.TrimPrefix(projectName, imageNamePrefix)

	// Limit to 30 characters
	length := 30 - len(imageNamePrefix)
	if len(projectName) > length {
		projectName = projectName[:length]
	}

	return imageNamePrefix + projectName
}

// ImageName returns the reference a target is built as. An explicit tag wins; otherwise the
// target name is used as the tag on the configured (or derived) repository.
func ImageName(cfg *Config, projectDir string, targetName string, tag string) (string, error) {
	if tag != "" {
		if _, err := name.ParseReference(tag); err != nil {
			return "", fmt.Errorf("invalid image tag %q: %w", tag, err)
		}
		return tag, nil
	}
	repo := cfg.Image
	if repo == "" {
		repo = DockerImageName(projectDir)
	}
	ref := repo + ":" + targetName
	if _, err := name.NewTag(ref); err != nil {
		return "", fmt.Errorf("target %q does not make a valid image tag: %w", targetName, err)
	}
	return ref, nil
}
