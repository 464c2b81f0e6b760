package config

import (
	"fmt"
	"sort"
	"strings"
)

type PackageManager string

const (
	Poetry PackageManager = "poetry"
	Pip    PackageManager = "pip"
)

const (
	DefaultPythonVersion = "3.12"
	DefaultWorkdir       = "/app"

	shorthandTargetName = "main"
)

// packageManagerDefaults holds the manifest, lock and pinned tool version per package manager.
var packageManagerDefaults = map[PackageManager]struct {
	Manifest string
	Lock     string
	Version  string
}{
	Poetry: {Manifest: "pyproject.toml", Lock: "poetry.lock", Version: "1.8.3"},
	Pip:    {Manifest: "requirements.in", Lock: "requirements.txt", Version: "24.2"},
}

// Config is a validated botbox.yaml with every default filled in.
type Config struct {
	Image                 string             `json:"image,omitempty"`
	BaseImage             string             `json:"base_image"`
	PythonVersion         string             `json:"python_version"`
	PackageManager        PackageManager     `json:"package_manager"`
	PackageManagerVersion string             `json:"package_manager_version"`
	Manifest              string             `json:"manifest"`
	Lock                  string             `json:"lock"`
	Workdir               string             `json:"workdir"`
	Environment           []string           `json:"environment,omitempty"`
	Targets               map[string]*Target `json:"targets"`

	filename string
}

// Target is one bot: a single entry script plus the files it imports.
type Target struct {
	Name        string   `json:"name"`
	Entrypoint  string   `json:"entrypoint"`
	Files       []string `json:"files,omitempty"`
	LogDir      string   `json:"log_dir,omitempty"`
	Environment []string `json:"environment,omitempty"`
	Volumes     []string `json:"volumes,omitempty"`
}

// Filename is the path botbox.yaml was loaded from, if any.
func (c *Config) Filename() string {
	return c.filename
}

// TargetNames returns the target names in a stable order.
func (c *Config) TargetNames() []string {
	names := make([]string, 0, len(c.Targets))
	for name := range c.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Config) Target(name string) (*Target, error) {
	t, ok := c.Targets[name]
	if !ok {
		return nil, fmt.Errorf("target %q is not defined in %s. Available targets: %s", name, c.displayFilename(), strings.Join(c.TargetNames(), ", "))
	}
	return t, nil
}

// DefaultTarget returns the only target, or an error if there is a choice to make.
func (c *Config) DefaultTarget() (*Target, error) {
	names := c.TargetNames()
	if len(names) == 1 {
		return c.Targets[names[0]], nil
	}
	return nil, fmt.Errorf("%s defines %d targets, pick one of: %s", c.displayFilename(), len(names), strings.Join(names, ", "))
}

// DependencyFiles are the manifest and lock, in the order they are copied.
func (c *Config) DependencyFiles() []string {
	return []string{c.Manifest, c.Lock}
}

// SourceFiles are the target's files in copy order: supporting files first, entrypoint last.
func (t *Target) SourceFiles() []string {
	files := make([]string, 0, len(t.Files)+1)
	files = append(files, t.Files...)
	return append(files, t.Entrypoint)
}

func (c *Config) displayFilename() string {
	if c.filename == "" {
		return "botbox.yaml"
	}
	return c.filename
}

// complete converts a validated configFile into a Config, filling in defaults.
func complete(cfg *configFile, filename string) *Config {
	pythonVersion := stringValue(cfg.PythonVersion)
	if pythonVersion == "" {
		pythonVersion = DefaultPythonVersion
	}

	pm := PackageManager(stringValue(cfg.PackageManager))
	if pm == "" {
		pm = Poetry
	}
	defaults := packageManagerDefaults[pm]

	c := &Config{
		Image:                 stringValue(cfg.Image),
		BaseImage:             stringValue(cfg.BaseImage),
		PythonVersion:         pythonVersion,
		PackageManager:        pm,
		PackageManagerVersion: stringValue(cfg.PackageManagerVersion),
		Manifest:              stringValue(cfg.Manifest),
		Lock:                  stringValue(cfg.Lock),
		Workdir:               stringValue(cfg.Workdir),
		Environment:           uniqueSorted(cfg.Environment),
		Targets:               map[string]*Target{},
		filename:              filename,
	}
	if c.BaseImage == "" {
		c.BaseImage = "python:" + pythonVersion + "-slim"
	}
	if c.PackageManagerVersion == "" {
		c.PackageManagerVersion = defaults.Version
	}
	if c.Manifest == "" {
		c.Manifest = defaults.Manifest
	}
	if c.Lock == "" {
		c.Lock = defaults.Lock
	}
	if c.Workdir == "" {
		c.Workdir = DefaultWorkdir
	}

	for name, t := range cfg.resolvedTargets() {
		if t == nil {
			continue
		}
		c.Targets[name] = &Target{
			Name:        name,
			Entrypoint:  stringValue(t.Entrypoint),
			Files:       t.Files,
			LogDir:      stringValue(t.LogDir),
			Environment: uniqueSorted(append(append([]string{}, cfg.Environment...), t.Environment...)),
			Volumes:     t.Volumes,
		}
	}
	return c
}

func uniqueSorted(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := map[string]bool{}
	out := []string{}
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	sort.Strings(out)
	return out
}
