package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const DotEnvFilename = ".env"

// DotEnv holds values from a project's .env file. Lookups ignore case.
type DotEnv struct {
	v *viper.Viper
}

// ReadDotEnv parses <projectDir>/.env. A missing file gives an empty DotEnv.
func ReadDotEnv(fs afero.Fs, projectDir string) (*DotEnv, error) {
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigType("env")

	filename := filepath.Join(projectDir, DotEnvFilename)
	contents, err := afero.ReadFile(fs, filename)
	if err != nil {
		if os.IsNotExist(err) {
			return &DotEnv{v: v}, nil
		}
		return nil, err
	}
	if err := v.ReadConfig(strings.NewReader(string(contents))); err != nil {
		return nil, fmt.Errorf("Failed to parse %s: %w", filename, err)
	}
	return &DotEnv{v: v}, nil
}

func (d *DotEnv) Lookup(name string) (string, bool) {
	if d == nil || !d.v.IsSet(name) {
		return "", false
	}
	return d.v.GetString(name), true
}

// LookupFunc finds the value of an environment variable.
type LookupFunc func(name string) (string, bool)

// ResolveEnvironment returns NAME=value pairs for names, taking each value from the first
// lookup that has it. Every missing name is reported in a single error.
func ResolveEnvironment(names []string, lookups ...LookupFunc) ([]string, error) {
	var env, missing []string
	for _, name := range names {
		value, ok := "", false
		for _, lookup := range lookups {
			if value, ok = lookup(name); ok {
				break
			}
		}
		if !ok {
			missing = append(missing, name)
			continue
		}
		env = append(env, name+"="+value)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("Missing environment variables: %s. Set them in your shell or in %s", strings.Join(missing, ", "), DotEnvFilename)
	}
	return env, nil
}
