package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const pinnedBase = "python:3.12-slim@sha256:0f1a4b7e9d1bb2c6a8d5e3c1f0e9a7b6c5d4e3f2a1b0c9d8e7f6a5b4c3d2e1f0"

func strPtr(s string) *string {
	return &s
}

func validConfigFile() *configFile {
	return &configFile{
		BaseImage:     strPtr(pinnedBase),
		PythonVersion: strPtr("3.12"),
		Environment:   []string{"DATABASE_URL"},
		Targets: map[string]*targetFile{
			"twitter": {
				Entrypoint:  strPtr("twitter_bot.py"),
				Files:       []string{"cat21_client.py", "prompts.py"},
				LogDir:      strPtr("/app/logs"),
				Environment: []string{"TWITTER_API_KEY"},
				Volumes:     []string{"/data/twitter"},
			},
			"discord": {
				Entrypoint: strPtr("discord_bot.py"),
				Files:      []string{"cat21_client.py"},
			},
		},
	}
}

func requireFieldError(t *testing.T, result *ValidationResult, field string) {
	t.Helper()
	for _, err := range result.Errors {
		if verr, ok := err.(*ValidationError); ok && verr.Field == field {
			return
		}
		if serr, ok := err.(*SchemaError); ok && serr.Field == field {
			return
		}
	}
	require.Failf(t, "missing error", "expected an error for %s, got: %v", field, result.Errors)
}

func TestValidateConfigFileSuccess(t *testing.T) {
	result := ValidateConfigFile(validConfigFile())
	require.False(t, result.HasErrors(), "expected no errors, got: %v", result.Errors)
	require.False(t, result.HasWarnings(), "expected no warnings, got: %v", result.Warnings)
}

func TestValidateConfigFileRequiresTargets(t *testing.T) {
	result := ValidateConfigFile(&configFile{BaseImage: strPtr(pinnedBase)})
	requireFieldError(t, result, "targets")
}

func TestValidateConfigFileUnpinnedBaseImage(t *testing.T) {
	cfg := validConfigFile()
	cfg.BaseImage = strPtr("python:3.12-slim")

	result := ValidateConfigFile(cfg)
	require.False(t, result.HasErrors())
	require.Len(t, result.Warnings, 1)
	var warning *ReproducibilityWarning
	require.ErrorAs(t, result.Warnings[0], &warning)
	require.Equal(t, "base_image", warning.Field)
	require.Contains(t, warning.Error(), "botbox pin")
}

func TestValidateConfigFileLatestBaseImageIsDeprecated(t *testing.T) {
	for _, baseImage := range []string{"python", "python:latest", "ghcr.io/cat21/python-base:latest"} {
		t.Run(baseImage, func(t *testing.T) {
			cfg := validConfigFile()
			cfg.BaseImage = strPtr(baseImage)

			result := ValidateConfigFile(cfg)
			require.False(t, result.HasErrors())
			require.Len(t, result.Warnings, 1)
			var warning *DeprecationWarning
			require.ErrorAs(t, result.Warnings[0], &warning)
			require.Equal(t, "base_image", warning.Field)
			require.Contains(t, warning.Error(), "unpinned base image")
		})
	}
}

func TestValidateConfigFilePoetryVersion(t *testing.T) {
	cfg := validConfigFile()
	cfg.PackageManagerVersion = strPtr("1.5.1")
	requireFieldError(t, ValidateConfigFile(cfg), "package_manager_version")

	cfg.PackageManagerVersion = strPtr("1.6.0")
	result := ValidateConfigFile(cfg)
	require.False(t, result.HasErrors(), "expected no errors, got: %v", result.Errors)

	cfg.PackageManager = strPtr("pip")
	cfg.PackageManagerVersion = strPtr("1.5.1")
	result = ValidateConfigFile(cfg)
	require.False(t, result.HasErrors(), "pip versions are not held to poetry's minimum: %v", result.Errors)
}

func TestValidateConfigFileDefaultBaseImageWarns(t *testing.T) {
	cfg := validConfigFile()
	cfg.BaseImage = nil

	result := ValidateConfigFile(cfg)
	require.False(t, result.HasErrors())
	require.Len(t, result.Warnings, 1)
	require.Contains(t, result.Warnings[0].Error(), "python:3.12-slim")
}

func TestValidateConfigFileStrictTurnsWarningsIntoErrors(t *testing.T) {
	cfg := validConfigFile()
	cfg.BaseImage = strPtr("python:3.12-slim")

	result := ValidateConfigFile(cfg, WithStrictDeprecations())
	require.True(t, result.HasErrors())
	require.False(t, result.HasWarnings())
}

func TestValidateConfigFileInvalidBaseImage(t *testing.T) {
	cfg := validConfigFile()
	cfg.BaseImage = strPtr("Not A Valid Image")

	result := ValidateConfigFile(cfg)
	requireFieldError(t, result, "base_image")
}

func TestValidateConfigFileInvalidImage(t *testing.T) {
	cfg := validConfigFile()
	cfg.Image = strPtr("registry.example.com/cat21/bots:latest")

	result := ValidateConfigFile(cfg)
	requireFieldError(t, result, "image")
}

func TestValidateConfigFilePythonVersion(t *testing.T) {
	testCases := []struct {
		name    string
		version string
		valid   bool
	}{
		{name: "Current", version: "3.12", valid: true},
		{name: "Minimum", version: "3.8", valid: true},
		{name: "FullyQualified", version: "3.12.1", valid: true},
		{name: "MissingMinor", version: "3"},
		{name: "BadFormat", version: "3-12"},
		{name: "TooOld", version: "3.7"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfigFile()
			cfg.PythonVersion = strPtr(tc.version)
			result := ValidateConfigFile(cfg)
			if tc.valid {
				require.False(t, result.HasErrors(), "expected no errors, got: %v", result.Errors)
			} else {
				requireFieldError(t, result, "python_version")
			}
		})
	}
}

func TestValidateConfigFileUnknownPackageManager(t *testing.T) {
	cfg := validConfigFile()
	cfg.PackageManager = strPtr("conda")

	result := ValidateConfigFile(cfg)
	require.True(t, result.HasErrors())
}

func TestValidateConfigFileEntrypoint(t *testing.T) {
	testCases := []struct {
		name       string
		entrypoint *string
	}{
		{name: "Missing", entrypoint: nil},
		{name: "NotPython", entrypoint: strPtr("bot.sh")},
		{name: "OutsideProject", entrypoint: strPtr("../bot.py")},
		{name: "Absolute", entrypoint: strPtr("/srv/bot.py")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfigFile()
			cfg.Targets["discord"].Entrypoint = tc.entrypoint
			result := ValidateConfigFile(cfg)
			requireFieldError(t, result, "targets.discord.entrypoint")
		})
	}
}

func TestValidateConfigFileDuplicateFiles(t *testing.T) {
	cfg := validConfigFile()
	cfg.Targets["discord"].Files = []string{"cat21_client.py", "./cat21_client.py"}

	result := ValidateConfigFile(cfg)
	requireFieldError(t, result, "targets.discord.files[1]")
}

func TestValidateConfigFileEntrypointListedAsFile(t *testing.T) {
	cfg := validConfigFile()
	cfg.Targets["discord"].Files = []string{"discord_bot.py"}

	result := ValidateConfigFile(cfg)
	requireFieldError(t, result, "targets.discord.files[0]")
}

func TestValidateConfigFileContainerPaths(t *testing.T) {
	cfg := validConfigFile()
	cfg.Targets["twitter"].LogDir = strPtr("logs")
	cfg.Targets["twitter"].Volumes = []string{"/"}
	cfg.Workdir = strPtr("app")

	result := ValidateConfigFile(cfg)
	requireFieldError(t, result, "targets.twitter.log_dir")
	requireFieldError(t, result, "targets.twitter.volumes[0]")
	requireFieldError(t, result, "workdir")
}

func TestValidateConfigFileTargetName(t *testing.T) {
	cfg := validConfigFile()
	cfg.Targets["Twitter Bot"] = &targetFile{Entrypoint: strPtr("twitter_bot.py")}

	result := ValidateConfigFile(cfg)
	requireFieldError(t, result, "targets")
}

func TestValidateConfigFileShorthandIsDeprecated(t *testing.T) {
	cfg := &configFile{
		BaseImage:  strPtr(pinnedBase),
		Entrypoint: strPtr("bot.py"),
		Files:      []string{"helpers.py"},
	}

	result := ValidateConfigFile(cfg)
	require.False(t, result.HasErrors(), "expected no errors, got: %v", result.Errors)
	require.Len(t, result.Warnings, 1)
	var warning *DeprecationWarning
	require.ErrorAs(t, result.Warnings[0], &warning)
	require.Equal(t, "targets.main.entrypoint", warning.Replacement)
}

func TestValidateConfigFileShorthandConflictsWithMain(t *testing.T) {
	cfg := validConfigFile()
	cfg.Entrypoint = strPtr("bot.py")
	cfg.Targets["main"] = &targetFile{Entrypoint: strPtr("main.py")}

	result := ValidateConfigFile(cfg)
	requireFieldError(t, result, "entrypoint")
}

func TestValidateConfigFileChecksFilesInProjectDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"pyproject.toml", "poetry.lock", "twitter_bot.py", "discord_bot.py", "cat21_client.py"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("# "+name+"\n"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "prompts.py"), 0o755))

	result := ValidateConfigFile(validConfigFile(), WithProjectDir(dir))
	requireFieldError(t, result, "targets.twitter.files[1]")
	require.Len(t, result.Errors, 1)

	require.NoError(t, os.Remove(filepath.Join(dir, "poetry.lock")))
	result = ValidateConfigFile(validConfigFile(), WithProjectDir(dir))
	requireFieldError(t, result, "lock")
}

func TestValidateBytesUnknownKey(t *testing.T) {
	err := ValidateBytes([]byte(`
targets:
  main:
    entrypoint: bot.py
    command: python bot.py
`))
	require.Error(t, err)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Contains(t, schemaErr.Message, "command")
}

func TestValidateBytesWrongType(t *testing.T) {
	err := ValidateBytes([]byte(`
targets:
  main:
    entrypoint: bot.py
    files: helpers.py
`))
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Equal(t, "targets.main.files", schemaErr.Field)
}

func TestValidateBytesEnvironmentValues(t *testing.T) {
	err := ValidateBytes([]byte(`
environment:
  - DISCORD_BOT_TOKEN=secret
targets:
  main:
    entrypoint: bot.py
`))
	require.Error(t, err)
}

func TestValidateBytesEmpty(t *testing.T) {
	require.NoError(t, ValidateBytes(nil))
}
