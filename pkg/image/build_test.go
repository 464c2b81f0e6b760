package image

import (
	"archive/tar"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cat21/botbox/pkg/config"
	"github.com/cat21/botbox/pkg/docker/command"
	"github.com/cat21/botbox/pkg/docker/dockertest"
	botboxerrors "github.com/cat21/botbox/pkg/errors"
	"github.com/cat21/botbox/pkg/global"
)

const botsYAML = `
package_manager: pip
image: cat21/bots
targets:
  twitter:
    entrypoint: twitter_bot.py
    files:
      - cat21_client.py
    log_dir: /app/logs
  discord:
    entrypoint: discord_bot.py
`

func writeProject(t *testing.T, lock string) (string, *config.Config) {
	t.Helper()
	t.Setenv("GITHUB_SHA", "")
	t.Setenv("GITHUB_REF_NAME", "")
	dir := t.TempDir()
	for name, contents := range map[string]string{
		"requirements.in":  "tweepy>=4.14\ndiscord.py~=2.3\n",
		"requirements.txt": lock,
		"twitter_bot.py":   "print('tweet')\n",
		"discord_bot.py":   "print('chat')\n",
		"cat21_client.py":  "API = 'https://api.cat21.example'\n",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
	}
	cfg, err := config.FromYAML([]byte(botsYAML))
	require.NoError(t, err)
	return dir, cfg
}

const goodLock = "discord-py==2.3.2\ntweepy==4.14.0\n"

// capture records what was sent to the daemon by a mocked ImageBuild.
type capture struct {
	options command.ImageBuildOptions
	files   map[string]string
}

func expectBuild(t *testing.T, m *dockertest.MockCommand, imageName string, c *capture) {
	m.On("ImageBuild", mock.Anything, mock.MatchedBy(func(o command.ImageBuildOptions) bool {
		return o.ImageName == imageName
	})).Run(func(args mock.Arguments) {
		if c == nil {
			return
		}
		c.options = args.Get(1).(command.ImageBuildOptions)
		_, err := c.options.Context.Seek(0, io.SeekStart)
		require.NoError(t, err)
		c.files = untar(t, c.options.Context)
	}).Return("sha256:built", nil).Once()
}

func untar(t *testing.T, r io.Reader) map[string]string {
	t.Helper()
	files := map[string]string{}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return files
		}
		require.NoError(t, err)
		var buf bytes.Buffer
		_, err = io.Copy(&buf, tr)
		require.NoError(t, err)
		files[hdr.Name] = buf.String()
	}
}

func TestBuild(t *testing.T) {
	dir, cfg := writeProject(t, goodLock)
	m := dockertest.NewMockCommand()

	var c capture
	expectBuild(t, m, "cat21/bots:twitter", &c)
	m.On("Inspect", mock.Anything, "cat21/bots:twitter").
		Return(dockertest.InspectResponse("sha256:built", []string{"python", "twitter_bot.py"}, map[string]string{
			command.TargetLabelKey: "twitter",
		}), nil)

	result, err := Build(t.Context(), m, "twitter", BuildOptions{ProjectDir: dir, Config: cfg, ProgressOutput: "quiet"})
	require.NoError(t, err)
	m.AssertExpectations(t)

	assert.Equal(t, "cat21/bots:twitter", result.ImageName)
	assert.Equal(t, "sha256:built", result.ImageID)
	assert.Regexp(t, `^sha256:[0-9a-f]{64}$`, result.LockDigest)

	assert.Equal(t, global.Version, c.options.Labels[command.VersionLabelKey])
	assert.Equal(t, "Dockerfile", c.options.Dockerfile)
	assert.ElementsMatch(t, []string{"Dockerfile", "requirements.in", "requirements.txt", "cat21_client.py", "twitter_bot.py"}, keys(c.files))
	assert.Contains(t, c.files["Dockerfile"], `CMD ["python", "twitter_bot.py"]`)
	assert.Contains(t, c.files["Dockerfile"], result.LockDigest)
	assert.Equal(t, goodLock, c.files["requirements.txt"])
}

func TestBuildFailsOnStaleLock(t *testing.T) {
	dir, cfg := writeProject(t, "discord-py==2.3.2\ntweepy==4.13.0\n")
	m := dockertest.NewMockCommand()

	_, err := Build(t.Context(), m, "twitter", BuildOptions{ProjectDir: dir, Config: cfg})
	require.Error(t, err)
	assert.True(t, botboxerrors.IsLockMismatch(err))
	assert.Contains(t, err.Error(), "tweepy")
	m.AssertNotCalled(t, "ImageBuild", mock.Anything, mock.Anything)
}

func TestBuildFailsOnMissingSource(t *testing.T) {
	dir, cfg := writeProject(t, goodLock)
	require.NoError(t, os.Remove(filepath.Join(dir, "cat21_client.py")))
	m := dockertest.NewMockCommand()

	_, err := Build(t.Context(), m, "twitter", BuildOptions{ProjectDir: dir, Config: cfg})
	require.Error(t, err)
	assert.True(t, botboxerrors.IsMissingFile(err))
	assert.Contains(t, err.Error(), "cat21_client.py")
	m.AssertNotCalled(t, "ImageBuild", mock.Anything, mock.Anything)
}

func TestBuildRejectsWrongEntrypoint(t *testing.T) {
	dir, cfg := writeProject(t, goodLock)
	m := dockertest.NewMockCommand()
	expectBuild(t, m, "cat21/bots:discord", nil)
	m.On("Inspect", mock.Anything, "cat21/bots:discord").
		Return(dockertest.InspectResponse("sha256:built", []string{"python", "discord_bot.py", "--debug"}, nil), nil)

	_, err := Build(t.Context(), m, "discord", BuildOptions{ProjectDir: dir, Config: cfg})
	require.ErrorContains(t, err, "expected [python discord_bot.py]")
}

func TestBuildPropagatesDaemonErrors(t *testing.T) {
	dir, cfg := writeProject(t, goodLock)
	m := dockertest.NewMockCommand()
	m.On("ImageBuild", mock.Anything, mock.Anything).Return("", errors.New("pip install failed")).Once()

	_, err := Build(t.Context(), m, "discord", BuildOptions{ProjectDir: dir, Config: cfg})
	require.ErrorContains(t, err, "pip install failed")
	m.AssertNotCalled(t, "Inspect", mock.Anything, mock.Anything)
}

func TestBuildUnknownTarget(t *testing.T) {
	dir, cfg := writeProject(t, goodLock)
	_, err := Build(t.Context(), dockertest.NewMockCommand(), "telegram", BuildOptions{ProjectDir: dir, Config: cfg})
	require.ErrorContains(t, err, `target "telegram" is not defined`)
}

func TestBuildAll(t *testing.T) {
	dir, cfg := writeProject(t, goodLock)
	m := dockertest.NewMockCommand()
	for _, name := range []string{"discord", "twitter"} {
		target, err := cfg.Target(name)
		require.NoError(t, err)
		expectBuild(t, m, "cat21/bots:"+name, nil)
		m.On("Inspect", mock.Anything, "cat21/bots:"+name).
			Return(dockertest.InspectResponse("sha256:"+name, ExpectedCommand(target), nil), nil)
	}

	results, err := BuildAll(t.Context(), m, cfg.TargetNames(), BuildAllOptions{
		BuildOptions: BuildOptions{ProjectDir: dir, Config: cfg, ProgressOutput: "auto"},
		Parallel:     2,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "discord", results[0].Target)
	assert.Equal(t, "twitter", results[1].Target)
	assert.Equal(t, results[0].LockDigest, results[1].LockDigest)
	m.AssertExpectations(t)
}

func TestBuildAllRejectsTagForManyTargets(t *testing.T) {
	dir, cfg := writeProject(t, goodLock)
	_, err := BuildAll(t.Context(), dockertest.NewMockCommand(), cfg.TargetNames(), BuildAllOptions{
		BuildOptions: BuildOptions{ProjectDir: dir, Config: cfg, Tag: "cat21/bots:latest"},
	})
	require.ErrorContains(t, err, "--tag")
}

func TestBuildAllStopsOnFailure(t *testing.T) {
	dir, cfg := writeProject(t, goodLock)
	m := dockertest.NewMockCommand()
	m.On("ImageBuild", mock.Anything, mock.Anything).Return("", errors.New("no space left on device"))

	_, err := BuildAll(t.Context(), m, cfg.TargetNames(), BuildAllOptions{
		BuildOptions: BuildOptions{ProjectDir: dir, Config: cfg},
	})
	require.ErrorContains(t, err, "discord: ")
	require.ErrorContains(t, err, "no space left on device")
	m.AssertNumberOfCalls(t, "ImageBuild", 1)
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
