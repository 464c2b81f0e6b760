package config

// configFile represents the raw botbox.yaml as written by users.
// All fields are pointers/omitempty to distinguish "not set" from "set to zero value".
// Validation produces errors, completion produces a Config.
type configFile struct {
	Image                 *string                `json:"image,omitempty" yaml:"image,omitempty"`
	BaseImage             *string                `json:"base_image,omitempty" yaml:"base_image,omitempty"`
	PythonVersion         *string                `json:"python_version,omitempty" yaml:"python_version,omitempty"`
	PackageManager        *string                `json:"package_manager,omitempty" yaml:"package_manager,omitempty"`
	PackageManagerVersion *string                `json:"package_manager_version,omitempty" yaml:"package_manager_version,omitempty"`
	Manifest              *string                `json:"manifest,omitempty" yaml:"manifest,omitempty"`
	Lock                  *string                `json:"lock,omitempty" yaml:"lock,omitempty"`
	Workdir               *string                `json:"workdir,omitempty" yaml:"workdir,omitempty"`
	Environment           []string               `json:"environment,omitempty" yaml:"environment,omitempty"`
	Targets               map[string]*targetFile `json:"targets,omitempty" yaml:"targets,omitempty"`

	// Deprecated single-target shorthand, converted to a target named "main"
	Entrypoint *string  `json:"entrypoint,omitempty" yaml:"entrypoint,omitempty"`
	Files      []string `json:"files,omitempty" yaml:"files,omitempty"`
	LogDir     *string  `json:"log_dir,omitempty" yaml:"log_dir,omitempty"`
}

// targetFile represents one entry under targets in botbox.yaml.
type targetFile struct {
	Entrypoint  *string  `json:"entrypoint,omitempty" yaml:"entrypoint,omitempty"`
	Files       []string `json:"files,omitempty" yaml:"files,omitempty"`
	LogDir      *string  `json:"log_dir,omitempty" yaml:"log_dir,omitempty"`
	Environment []string `json:"environment,omitempty" yaml:"environment,omitempty"`
	Volumes     []string `json:"volumes,omitempty" yaml:"volumes,omitempty"`
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// usesShorthand reports whether the deprecated top-level target fields are set.
func (c *configFile) usesShorthand() bool {
	return c.Entrypoint != nil || len(c.Files) > 0 || c.LogDir != nil
}

// resolvedTargets returns targets with the deprecated shorthand folded in as "main".
// The shorthand is ignored when a "main" target is declared explicitly.
func (c *configFile) resolvedTargets() map[string]*targetFile {
	targets := make(map[string]*targetFile, len(c.Targets)+1)
	for name, t := range c.Targets {
		targets[name] = t
	}
	if c.usesShorthand() {
		if _, ok := targets[shorthandTargetName]; !ok {
			targets[shorthandTargetName] = &targetFile{
				Entrypoint: c.Entrypoint,
				Files:      c.Files,
				LogDir:     c.LogDir,
			}
		}
	}
	return targets
}
