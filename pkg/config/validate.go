package config

import (
	// blank import for embeds
	_ "embed"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/hashicorp/go-version"
	"github.com/xeipuuv/gojsonschema"
	"sigs.k8s.io/yaml"

	"github.com/cat21/botbox/pkg/util/files"
)

//go:embed data/config_schema_v1.0.json
var schemaV1 []byte

var (
	targetNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]*$`)
	envNameRe    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

	minPythonVersion = version.Must(version.NewVersion("3.8"))
	// `poetry check --lock` appeared in poetry 1.6.
	minPoetryVersion = version.Must(version.NewVersion("1.6"))
)

// ValidateOption configures validation behavior.
type ValidateOption func(*validateOptions)

type validateOptions struct {
	projectDir         string
	strictDeprecations bool
}

// WithProjectDir checks that the files botbox.yaml references exist in dir.
func WithProjectDir(dir string) ValidateOption {
	return func(o *validateOptions) {
		o.projectDir = dir
	}
}

// WithStrictDeprecations treats warnings as errors.
func WithStrictDeprecations() ValidateOption {
	return func(o *validateOptions) {
		o.strictDeprecations = true
	}
}

// ValidateBytes validates raw YAML against the JSON schema. Unlike ValidateConfigFile it
// catches keys that the Go structs would silently drop.
func ValidateBytes(contents []byte) error {
	if len(contents) == 0 {
		return nil
	}
	j, err := yaml.YAMLToJSON(contents)
	if err != nil {
		return &ParseError{Filename: "botbox.yaml", Err: err}
	}
	if string(j) == "null" {
		return nil
	}
	return validateSchema(gojsonschema.NewBytesLoader(j))
}

// ValidateConfigFile checks a configFile for errors.
// Returns all validation errors and warnings.
// Does not mutate the input.
func ValidateConfigFile(cfg *configFile, opts ...ValidateOption) *ValidationResult {
	options := &validateOptions{}
	for _, opt := range opts {
		opt(options)
	}

	result := NewValidationResult()

	if err := validateSchema(gojsonschema.NewGoLoader(cfg)); err != nil {
		result.AddError(err)
	}

	validateImage(cfg, result)
	validatePython(cfg, result)
	validatePackageManager(cfg, options, result)
	validateWorkdir(cfg, result)
	validateEnvironment("environment", cfg.Environment, result)
	validateTargets(cfg, options, result)

	checkDeprecatedFields(cfg, result)

	if options.strictDeprecations && result.HasWarnings() {
		for _, w := range result.Warnings {
			result.AddError(w)
		}
		result.Warnings = []error{}
	}

	return result
}

func validateSchema(dataLoader gojsonschema.JSONLoader) error {
	schemaLoader := gojsonschema.NewBytesLoader(schemaV1)

	validationResult, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return &SchemaError{Field: "(root)", Message: err.Error()}
	}

	if !validationResult.Valid() {
		return getMostSpecificSchemaError(validationResult.Errors())
	}

	return nil
}

func validateImage(cfg *configFile, result *ValidationResult) {
	if image := stringValue(cfg.Image); image != "" {
		if _, err := name.NewRepository(image); err != nil {
			result.AddError(&ValidationError{
				Field:   "image",
				Value:   image,
				Message: "must be an image repository without a tag, e.g. registry.example.com/me/bots",
			})
		}
	}

	baseImage := stringValue(cfg.BaseImage)
	if baseImage == "" {
		result.AddWarning(&ReproducibilityWarning{
			Field:   "base_image",
			Value:   "python:" + pythonVersionOrDefault(cfg) + "-slim",
			Message: "defaults to a tag that moves over time; run `botbox pin` to fix it to a digest",
		})
		return
	}
	ref, err := name.ParseReference(baseImage)
	if err != nil {
		result.AddError(&ValidationError{
			Field:   "base_image",
			Value:   baseImage,
			Message: err.Error(),
		})
		return
	}
	if tag, ok := ref.(name.Tag); ok && tag.TagStr() == name.DefaultTag {
		result.AddWarning(&DeprecationWarning{
			Field:   "base_image",
			Message: fmt.Sprintf("unpinned base image %q follows the latest tag; name a version and run `botbox pin`", baseImage),
		})
		return
	}
	if _, pinned := ref.(name.Digest); !pinned && !strings.Contains(baseImage, "@sha256:") {
		result.AddWarning(&ReproducibilityWarning{
			Field:   "base_image",
			Value:   baseImage,
			Message: "is not pinned to a digest; run `botbox pin` to fix it",
		})
	}
}

func pythonVersionOrDefault(cfg *configFile) string {
	if v := stringValue(cfg.PythonVersion); v != "" {
		return v
	}
	return DefaultPythonVersion
}

func validatePython(cfg *configFile, result *ValidationResult) {
	pythonVersion := stringValue(cfg.PythonVersion)
	if pythonVersion == "" {
		return
	}
	v, err := version.NewVersion(pythonVersion)
	if err != nil || len(v.Segments()) < 2 || strings.Count(pythonVersion, ".") < 1 {
		result.AddError(&ValidationError{
			Field:   "python_version",
			Value:   pythonVersion,
			Message: "must be a major.minor version, e.g. \"3.12\"",
		})
		return
	}
	if v.LessThan(minPythonVersion) {
		result.AddError(&ValidationError{
			Field:   "python_version",
			Value:   pythonVersion,
			Message: fmt.Sprintf("botbox supports Python %s and later", minPythonVersion),
		})
	}
}

func validatePackageManager(cfg *configFile, opts *validateOptions, result *ValidationResult) {
	pm := PackageManager(stringValue(cfg.PackageManager))
	if pm == "" {
		pm = Poetry
	}
	defaults, ok := packageManagerDefaults[pm]
	if !ok {
		result.AddError(&ValidationError{
			Field:   "package_manager",
			Value:   string(pm),
			Message: "must be one of poetry, pip",
		})
		return
	}

	if v := stringValue(cfg.PackageManagerVersion); v != "" {
		parsed, err := version.NewVersion(v)
		switch {
		case err != nil:
			result.AddError(&ValidationError{
				Field:   "package_manager_version",
				Value:   v,
				Message: "must be an exact version so the install tool itself is pinned",
			})
		case pm == Poetry && parsed.LessThan(minPoetryVersion):
			result.AddError(&ValidationError{
				Field:   "package_manager_version",
				Value:   v,
				Message: fmt.Sprintf("botbox needs poetry %s or later to check the lock", minPoetryVersion),
			})
		}
	}

	manifest := stringValue(cfg.Manifest)
	if manifest == "" {
		manifest = defaults.Manifest
	}
	lock := stringValue(cfg.Lock)
	if lock == "" {
		lock = defaults.Lock
	}
	validateSourcePath("manifest", manifest, opts, result)
	validateSourcePath("lock", lock, opts, result)
	if path.Clean(manifest) == path.Clean(lock) {
		result.AddError(&ValidationError{
			Field:   "lock",
			Value:   lock,
			Message: "must be a different file from the manifest",
		})
	}
}

func validateWorkdir(cfg *configFile, result *ValidationResult) {
	if cfg.Workdir == nil {
		return
	}
	validateContainerPath("workdir", *cfg.Workdir, result)
}

func validateEnvironment(field string, names []string, result *ValidationResult) {
	for _, n := range names {
		if strings.Contains(n, "=") {
			result.AddError(&ValidationError{
				Field:   field,
				Value:   n,
				Message: "lists variable names only; values are read at run time and never baked into the image",
			})
			continue
		}
		if !envNameRe.MatchString(n) {
			result.AddError(&ValidationError{
				Field:   field,
				Value:   n,
				Message: "is not a valid environment variable name",
			})
		}
	}
}

func validateTargets(cfg *configFile, opts *validateOptions, result *ValidationResult) {
	targets := cfg.resolvedTargets()
	if len(targets) == 0 {
		result.AddError(&ValidationError{
			Field: "targets",
			Message: `at least one target is required, for example:

targets:
  main:
    entrypoint: main.py`,
		})
		return
	}

	names := make([]string, 0, len(targets))
	for n := range targets {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, targetName := range names {
		t := targets[targetName]
		field := "targets." + targetName

		if !targetNameRe.MatchString(targetName) {
			result.AddError(&ValidationError{
				Field:   "targets",
				Value:   targetName,
				Message: "target names must be lowercase letters, digits, '.', '_' or '-'",
			})
		}
		if t == nil {
			result.AddError(&ValidationError{
				Field:   field,
				Message: "must define an entrypoint",
			})
			continue
		}

		entrypoint := stringValue(t.Entrypoint)
		switch {
		case entrypoint == "":
			result.AddError(&ValidationError{
				Field:   field + ".entrypoint",
				Message: "is required",
			})
		case !strings.HasSuffix(entrypoint, ".py"):
			result.AddError(&ValidationError{
				Field:   field + ".entrypoint",
				Value:   entrypoint,
				Message: "must be a Python script ending in .py",
			})
		default:
			validateSourcePath(field+".entrypoint", entrypoint, opts, result)
		}

		seen := map[string]bool{}
		for i, f := range t.Files {
			fileField := fmt.Sprintf("%s.files[%d]", field, i)
			clean := path.Clean(f)
			switch {
			case entrypoint != "" && clean == path.Clean(entrypoint):
				result.AddError(&ValidationError{Field: fileField, Value: f, Message: "is already the entrypoint"})
			case seen[clean]:
				result.AddError(&ValidationError{Field: fileField, Value: f, Message: "is listed more than once"})
			default:
				validateSourcePath(fileField, f, opts, result)
			}
			seen[clean] = true
		}

		if t.LogDir != nil {
			validateContainerPath(field+".log_dir", *t.LogDir, result)
		}
		for i, v := range t.Volumes {
			validateContainerPath(fmt.Sprintf("%s.volumes[%d]", field, i), v, result)
		}
		validateEnvironment(field+".environment", t.Environment, result)
	}
}

// validateSourcePath checks a path that is copied from the project into the image.
func validateSourcePath(field string, p string, opts *validateOptions, result *ValidationResult) {
	if !files.IsWithin(p) {
		result.AddError(&ValidationError{
			Field:   field,
			Value:   p,
			Message: "must be a relative path inside the project directory",
		})
		return
	}
	if opts.projectDir == "" {
		return
	}
	info, err := os.Stat(filepath.Join(opts.projectDir, filepath.FromSlash(p)))
	switch {
	case os.IsNotExist(err):
		result.AddError(&ValidationError{
			Field:   field,
			Value:   p,
			Message: fmt.Sprintf("does not exist in %s", opts.projectDir),
		})
	case err != nil:
		result.AddError(&ValidationError{Field: field, Value: p, Message: err.Error()})
	case !info.Mode().IsRegular():
		result.AddError(&ValidationError{Field: field, Value: p, Message: "must be a regular file"})
	}
}

// validateContainerPath checks an absolute path inside the image.
func validateContainerPath(field string, p string, result *ValidationResult) {
	if !path.IsAbs(p) || path.Clean(p) == "/" {
		result.AddError(&ValidationError{
			Field:   field,
			Value:   p,
			Message: "must be an absolute path inside the container, other than /",
		})
	}
}

func checkDeprecatedFields(cfg *configFile, result *ValidationResult) {
	if !cfg.usesShorthand() {
		return
	}
	if _, ok := cfg.Targets[shorthandTargetName]; ok {
		result.AddError(&ValidationError{
			Field:   "entrypoint",
			Message: "top-level entrypoint, files and log_dir conflict with targets.main; move them into targets.main",
		})
		return
	}
	result.AddWarning(&DeprecationWarning{
		Field:       "entrypoint",
		Replacement: "targets.main.entrypoint",
		Message:     "declare each bot under targets",
	})
}

// getMostSpecificSchemaError extracts the most specific error from schema validation.
func getMostSpecificSchemaError(errors []gojsonschema.ResultError) *SchemaError {
	if len(errors) == 0 {
		return &SchemaError{Field: "(unknown)", Message: "unknown schema error"}
	}

	mostSpecific := 0
	for i, err := range errors {
		if schemaErrorSpecificity(err) > schemaErrorSpecificity(errors[mostSpecific]) {
			mostSpecific = i
		} else if schemaErrorSpecificity(err) == schemaErrorSpecificity(errors[mostSpecific]) {
			// Invalid type errors win in a tie-breaker
			if err.Type() == "invalid_type" && errors[mostSpecific].Type() != "invalid_type" {
				mostSpecific = i
			}
		}
	}

	err := errors[mostSpecific]
	field := err.Field()
	if field == "(root)" {
		field = "botbox.yaml"
	}

	return &SchemaError{
		Field:   field,
		Message: getSchemaErrorDescription(err),
	}
}

func getSchemaErrorDescription(err gojsonschema.ResultError) string {
	switch err.Type() {
	case "invalid_type":
		if expectedType, ok := err.Details()["expected"].(string); ok {
			return fmt.Sprintf("must be a %s", humanReadableSchemaType(expectedType))
		}
	case "additional_property_not_allowed":
		if property, ok := err.Details()["property"].(string); ok {
			return fmt.Sprintf("unknown option %q", property)
		}
	}
	return err.Description()
}

// humanReadableSchemaType converts JSON schema type names to human-readable names.
func humanReadableSchemaType(definition string) string {
	if len(definition) > 0 && definition[0] == '[' {
		allTypes := strings.Split(definition[1:len(definition)-1], ",")
		for i, t := range allTypes {
			allTypes[i] = humanReadableSchemaType(strings.TrimSpace(t))
		}
		return fmt.Sprintf("%s or %s",
			strings.Join(allTypes[0:len(allTypes)-1], ", "),
			allTypes[len(allTypes)-1])
	}
	switch definition {
	case "object":
		return "mapping"
	case "array":
		return "list"
	default:
		return definition
	}
}

// schemaErrorSpecificity returns how specific a schema error is based on field depth.
func schemaErrorSpecificity(err gojsonschema.ResultError) int {
	return len(strings.Split(err.Field(), "."))
}
