// Package settings reads per-user preferences that apply across projects: the user's
// ~/.botbox.yaml, BOTBOX_* environment variables and command-line flags.
package settings

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cat21/botbox/pkg/util/console"
)

const (
	configName = ".botbox"
	envPrefix  = "botbox"
)

var progressModes = []string{"auto", "plain", "quiet"}

type Settings struct {
	Progress         string `mapstructure:"progress"`
	DockerHost       string `mapstructure:"docker_host"`
	Parallel         int    `mapstructure:"parallel"`
	RegistryInsecure bool   `mapstructure:"registry_insecure"`
	DefaultRegistry  string `mapstructure:"default_registry"`
	LogLevel         string `mapstructure:"log_level"`
}

// flagKeys maps command-line flags onto settings keys. Flags only override a setting
// when they are given explicitly.
var flagKeys = map[string]string{
	"progress":    "progress",
	"parallel":    "parallel",
	"docker-host": "docker_host",
	"insecure":    "registry_insecure",
}

// Load reads settings from configFile, or ~/.botbox.yaml when configFile is empty, then
// applies BOTBOX_* variables and any of flags that were set. A missing default file is fine.
func Load(fs afero.Fs, configFile string, flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()
	v.SetFs(fs)

	v.SetDefault("progress", "auto")
	v.SetDefault("parallel", 1)
	v.SetDefault("registry_insecure", false)
	v.SetDefault("log_level", "info")
	// Keys need a default for AutomaticEnv to reach them through Unmarshal.
	v.SetDefault("docker_host", "")
	v.SetDefault("default_registry", "")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return nil, fmt.Errorf("Failed to find home directory: %w", err)
		}
		v.AddConfigPath(home)
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for flagName, key := range flagKeys {
			if f := flags.Lookup(flagName); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("Failed to read settings: %w", err)
		}
	}

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("Failed to read settings: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("Invalid settings in %s: %w", describeSource(v), err)
	}
	return s, nil
}

func (s *Settings) validate() error {
	if !contains(progressModes, s.Progress) {
		return fmt.Errorf("progress must be one of %s, got %q", strings.Join(progressModes, ", "), s.Progress)
	}
	if s.Parallel < 1 {
		return fmt.Errorf("parallel must be at least 1, got %d", s.Parallel)
	}
	if _, err := console.ParseLevel(s.LogLevel); err != nil {
		return fmt.Errorf("log_level %q: %w", s.LogLevel, err)
	}
	return nil
}

// Level is the console level these settings ask for. Quiet progress hides
// informational messages unless a lower level was asked for explicitly.
func (s *Settings) Level() console.Level {
	level, err := console.ParseLevel(s.LogLevel)
	if err != nil {
		return console.InfoLevel
	}
	if s.Progress == "quiet" && level == console.InfoLevel {
		return console.WarnLevel
	}
	return level
}

func describeSource(v *viper.Viper) string {
	if used := v.ConfigFileUsed(); used != "" {
		return used
	}
	return "flags or environment"
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
