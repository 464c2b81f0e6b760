package settings

import (
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cat21/botbox/pkg/util/console"
)

func init() {
	homedir.DisableCache = true
}

func TestLoadDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	t.Setenv("HOME", "/home/bot")

	s, err := Load(fs, "", nil)
	require.NoError(t, err)
	assert.Equal(t, &Settings{Progress: "auto", Parallel: 1, LogLevel: "info"}, s)
}

func TestLoadHomeFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	t.Setenv("HOME", "/home/bot")
	require.NoError(t, afero.WriteFile(fs, "/home/bot/.botbox.yaml", []byte("progress: plain\nparallel: 4\ndocker_host: unix:///run/user/1000/docker.sock\n"), 0o644))

	s, err := Load(fs, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain", s.Progress)
	assert.Equal(t, 4, s.Parallel)
	assert.Equal(t, "unix:///run/user/1000/docker.sock", s.DockerHost)
}

func TestLoadPrecedence(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/botbox.yaml", []byte("progress: plain\nparallel: 4\n"), 0o644))
	t.Setenv("BOTBOX_PARALLEL", "2")
	t.Setenv("BOTBOX_REGISTRY_INSECURE", "true")

	flags := pflag.NewFlagSet("build", pflag.ContinueOnError)
	flags.String("progress", "auto", "")
	flags.Int("parallel", 1, "")
	require.NoError(t, flags.Parse([]string{"--progress", "quiet"}))

	s, err := Load(fs, "/etc/botbox.yaml", flags)
	require.NoError(t, err)
	assert.Equal(t, "quiet", s.Progress, "explicit flag wins")
	assert.Equal(t, 2, s.Parallel, "env beats file, unset flag does not override")
	assert.True(t, s.RegistryInsecure)
}

func TestLoadErrors(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := Load(fs, "/missing.yaml", nil)
	require.ErrorContains(t, err, "Failed to read settings")

	require.NoError(t, afero.WriteFile(fs, "/bad.yaml", []byte("progress: fancy\n"), 0o644))
	_, err = Load(fs, "/bad.yaml", nil)
	require.ErrorContains(t, err, `progress must be one of auto, plain, quiet, got "fancy"`)
}

func TestLevel(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/quiet.yaml", []byte("progress: quiet\n"), 0o644))
	s, err := Load(fs, "/quiet.yaml", nil)
	require.NoError(t, err)
	assert.Equal(t, console.WarnLevel, s.Level())

	t.Setenv("BOTBOX_LOG_LEVEL", "debug")
	s, err = Load(fs, "/quiet.yaml", nil)
	require.NoError(t, err)
	assert.Equal(t, console.DebugLevel, s.Level())

	t.Setenv("BOTBOX_LOG_LEVEL", "chatty")
	_, err = Load(fs, "/quiet.yaml", nil)
	require.ErrorContains(t, err, `log_level "chatty": invalid level`)
}

func TestDotEnv(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/bots/.env", []byte("TWITTER_API_KEY=abc123\n# comment\nDATABASE_URL=\"postgres://bots@db/bots\"\n"), 0o644))

	dotenv, err := ReadDotEnv(fs, "/bots")
	require.NoError(t, err)

	value, ok := dotenv.Lookup("TWITTER_API_KEY")
	assert.True(t, ok)
	assert.Equal(t, "abc123", value)
	value, ok = dotenv.Lookup("DATABASE_URL")
	assert.True(t, ok)
	assert.Equal(t, "postgres://bots@db/bots", value)
	_, ok = dotenv.Lookup("DISCORD_TOKEN")
	assert.False(t, ok)

	empty, err := ReadDotEnv(fs, "/elsewhere")
	require.NoError(t, err)
	_, ok = empty.Lookup("TWITTER_API_KEY")
	assert.False(t, ok)
}

func TestResolveEnvironment(t *testing.T) {
	host := func(name string) (string, bool) {
		if name == "DATABASE_URL" {
			return "postgres://host", true
		}
		return "", false
	}
	file := func(name string) (string, bool) {
		switch name {
		case "DATABASE_URL":
			return "postgres://file", true
		case "TWITTER_API_KEY":
			return "abc", true
		}
		return "", false
	}

	env, err := ResolveEnvironment([]string{"DATABASE_URL", "TWITTER_API_KEY"}, host, file)
	require.NoError(t, err)
	assert.Equal(t, []string{"DATABASE_URL=postgres://host", "TWITTER_API_KEY=abc"}, env)

	_, err = ResolveEnvironment([]string{"DISCORD_TOKEN", "DATABASE_URL", "OPENAI_KEY"}, host, file)
	require.EqualError(t, err, "Missing environment variables: DISCORD_TOKEN, OPENAI_KEY. Set them in your shell or in .env")
}
