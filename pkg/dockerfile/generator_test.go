package dockerfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cat21/botbox/pkg/config"
)

const testBaseImage = "python:3.12-slim@sha256:0f1a4b7e9d1bb2c6a8d5e3c1f0e9a7b6c5d4e3f2a1b0c9d8e7f6a5b4c3d2e1f0"

func newGenerator(t *testing.T, botboxYAML string, targetName string) *Generator {
	t.Helper()
	cfg, err := config.FromYAML([]byte(botboxYAML))
	require.NoError(t, err)
	target, err := cfg.Target(targetName)
	require.NoError(t, err)
	return NewGenerator(cfg, target)
}

const botsYAML = `
base_image: ` + testBaseImage + `
environment:
  - DATABASE_URL
targets:
  twitter:
    entrypoint: twitter_bot.py
    files:
      - cat21_client.py
    log_dir: /app/logs
    environment:
      - TWITTER_API_KEY
    volumes:
      - /data/twitter
  discord:
    entrypoint: discord_bot.py
    files:
      - cat21_client.py
  main:
    entrypoint: main.py
    files:
      - agent.py
`

func TestGeneratePoetryTarget(t *testing.T) {
	gen := newGenerator(t, botsYAML, "twitter")
	gen.LockDigest = "sha256:4b1d"

	labels, err := gen.Labels()
	require.NoError(t, err)
	configDigest := labels["run.botbox.config_digest"]
	require.Regexp(t, `^sha256:[0-9a-f]{64}$`, configDigest)

	actual, err := gen.Generate()
	require.NoError(t, err)

	expected := `FROM ` + testBaseImage + `
ENV PYTHONUNBUFFERED=1 PYTHONDONTWRITEBYTECODE=1 PIP_NO_CACHE_DIR=1 PIP_DISABLE_PIP_VERSION_CHECK=1
WORKDIR /app
RUN python -m venv /opt/poetry && /opt/poetry/bin/pip install "poetry==1.8.3" && python -m venv /opt/venv
ENV VIRTUAL_ENV=/opt/venv PATH=/opt/venv/bin:$PATH POETRY_VIRTUALENVS_CREATE=false
COPY pyproject.toml poetry.lock ./
RUN /opt/poetry/bin/poetry check --lock && /opt/poetry/bin/poetry install --no-root --no-interaction --only main
COPY cat21_client.py ./cat21_client.py
COPY twitter_bot.py ./twitter_bot.py
RUN mkdir -p /app/logs
LABEL run.botbox.config_digest="` + configDigest + `" \
      run.botbox.entrypoint="twitter_bot.py" \
      run.botbox.environment="DATABASE_URL,TWITTER_API_KEY" \
      run.botbox.lock_digest="sha256:4b1d" \
      run.botbox.package_manager="poetry==1.8.3" \
      run.botbox.target="twitter" \
      run.botbox.volumes="/data/twitter"
ENTRYPOINT []
CMD ["python", "twitter_bot.py"]
`
	require.Equal(t, expected, actual)
}

func TestGeneratePipTarget(t *testing.T) {
	gen := newGenerator(t, `
base_image: python:3.11-slim
package_manager: pip
manifest: deps/requirements.in
lock: deps/requirements.lock
workdir: /srv/bot
targets:
  main:
    entrypoint: main.py
    files:
      - agent.py
      - prompts/system prompt.txt
`, "main")

	actual, err := gen.Generate()
	require.NoError(t, err)

	require.Contains(t, actual, "FROM python:3.11-slim\n")
	require.Contains(t, actual, "WORKDIR /srv/bot\n")
	require.Contains(t, actual, `RUN pip install "pip==24.2"`+"\n")
	require.Contains(t, actual, "COPY deps/requirements.in ./requirements.in\nCOPY deps/requirements.lock ./requirements.txt\n")
	require.Contains(t, actual, "RUN pip install --no-deps -r requirements.txt\n")
	require.Contains(t, actual, "COPY agent.py ./agent.py\n"+`COPY ["prompts/system prompt.txt", "./prompts/system prompt.txt"]`+"\nCOPY main.py ./main.py\n")
	require.NotContains(t, actual, "mkdir")
	require.NotContains(t, actual, "lock_digest")
	require.Contains(t, actual, "\nENTRYPOINT []\nCMD [\"python\", \"main.py\"]\n")
}

func TestPoetryStaysOutOfBotEnvironment(t *testing.T) {
	actual, err := newGenerator(t, botsYAML, "discord").Generate()
	require.NoError(t, err)

	lines := strings.Split(actual, "\n")
	venvAt, installAt := -1, -1
	for i, line := range lines {
		if strings.HasPrefix(line, "RUN ") && strings.Contains(line, `"poetry==`) {
			// Only poetry's own interpreter may install it.
			require.Contains(t, line, `/opt/poetry/bin/pip install "poetry==1.8.3"`)
			require.NotRegexp(t, `(^RUN |&& )pip install "poetry`, line)
		}
		if strings.HasPrefix(line, "ENV VIRTUAL_ENV=/opt/venv ") {
			venvAt = i
		}
		if strings.Contains(line, "poetry install") {
			installAt = i
			require.True(t, strings.HasPrefix(line, "RUN /opt/poetry/bin/poetry "), line)
		}
	}
	require.NotEqual(t, -1, venvAt, "bot environment is not activated")
	require.Greater(t, installAt, venvAt, "dependencies must install into the activated bot environment")
	require.NotContains(t, actual, "virtualenvs.create false")
}

func TestGenerateResetsBaseEntrypoint(t *testing.T) {
	gen := newGenerator(t, `
base_image: nginx:1.27
targets:
  main:
    entrypoint: main.py
`, "main")
	actual, err := gen.Generate()
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(actual, "ENTRYPOINT []\nCMD [\"python\", \"main.py\"]\n"), actual)
	require.NotContains(t, actual, "# syntax")
}

func TestGenerateIsDeterministic(t *testing.T) {
	first, err := newGenerator(t, botsYAML, "discord").Generate()
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := newGenerator(t, botsYAML, "discord").Generate()
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestConfigDigestChangesWithTarget(t *testing.T) {
	discord, err := newGenerator(t, botsYAML, "discord").Labels()
	require.NoError(t, err)
	main, err := newGenerator(t, botsYAML, "main").Labels()
	require.NoError(t, err)
	require.NotEqual(t, discord["run.botbox.config_digest"], main["run.botbox.config_digest"])
}

func TestEntrypointCommand(t *testing.T) {
	gen := newGenerator(t, botsYAML, "main")
	require.Equal(t, []string{"python", "main.py"}, gen.EntrypointCommand())
}

func TestWriteDockerfile(t *testing.T) {
	dir := t.TempDir()
	gen := newGenerator(t, botsYAML, "discord")

	filename, err := gen.WriteDockerfile(dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "Dockerfile.discord"), filename)

	contents, err := os.ReadFile(filename)
	require.NoError(t, err)
	expected, err := gen.Generate()
	require.NoError(t, err)
	require.Equal(t, expected, string(contents))
}
