package dockercontext

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cat21/botbox/pkg/config"
	"github.com/cat21/botbox/pkg/errors"
)

const botsYAML = `
targets:
  twitter:
    entrypoint: twitter_bot.py
    files:
      - cat21_client.py
      - prompts/reply.txt
`

func setupProject(t *testing.T) (string, *config.Config, *config.Target) {
	t.Helper()
	dir := t.TempDir()
	for name, contents := range map[string]string{
		"pyproject.toml":    "[tool.poetry]\n",
		"poetry.lock":       "[metadata]\n",
		"twitter_bot.py":    "print('tweet')\n",
		"cat21_client.py":   "API = 'https://api.cat21.example'\n",
		"prompts/reply.txt": "Be nice.\n",
		"unrelated.py":      "print('not in the image')\n",
	} {
		filename := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(filename), 0o755))
		require.NoError(t, os.WriteFile(filename, []byte(contents), 0o644))
	}
	cfg, err := config.FromYAML([]byte(botsYAML))
	require.NoError(t, err)
	target, err := cfg.Target("twitter")
	require.NoError(t, err)
	return dir, cfg, target
}

func readTar(t *testing.T, r io.Reader) map[string]string {
	t.Helper()
	entries := map[string]string{}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.Equal(t, int64(0), hdr.ModTime.Unix())
		require.Equal(t, 0, hdr.Uid)
		contents, err := io.ReadAll(tr)
		require.NoError(t, err)
		entries[hdr.Name] = string(contents)
	}
	return entries
}

func TestAssemble(t *testing.T) {
	dir, cfg, target := setupProject(t)

	bc, err := Assemble(dir, cfg, target, "FROM python:3.12-slim\n")
	require.NoError(t, err)
	require.Equal(t, []string{"Dockerfile", "pyproject.toml", "poetry.lock", "cat21_client.py", "prompts/reply.txt", "twitter_bot.py"}, bc.Files)

	entries := readTar(t, bc.Reader())
	require.Len(t, entries, 6)
	require.Equal(t, "FROM python:3.12-slim\n", entries["Dockerfile"])
	require.Equal(t, "Be nice.\n", entries["prompts/reply.txt"])
	require.NotContains(t, entries, "unrelated.py")
}

func TestAssembleIsDeterministic(t *testing.T) {
	dir, cfg, target := setupProject(t)

	first, err := Assemble(dir, cfg, target, "FROM python:3.12-slim\n")
	require.NoError(t, err)

	// Touching files must not change the context
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "twitter_bot.py"), later, later))

	second, err := Assemble(dir, cfg, target, "FROM python:3.12-slim\n")
	require.NoError(t, err)
	require.Equal(t, first.Digest(), second.Digest())

	var a, b bytes.Buffer
	_, err = io.Copy(&a, first.Reader())
	require.NoError(t, err)
	_, err = io.Copy(&b, second.Reader())
	require.NoError(t, err)
	require.Equal(t, a.Bytes(), b.Bytes())
}

func TestAssembleMissingFile(t *testing.T) {
	dir, cfg, target := setupProject(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "cat21_client.py")))

	_, err := Assemble(dir, cfg, target, "FROM python:3.12-slim\n")
	require.Error(t, err)
	require.True(t, errors.IsMissingFile(err))
	require.Contains(t, err.Error(), "cat21_client.py")
}

func TestAssembleMissingLock(t *testing.T) {
	dir, cfg, target := setupProject(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "poetry.lock")))

	_, err := Assemble(dir, cfg, target, "FROM python:3.12-slim\n")
	require.True(t, errors.IsMissingFile(err))
}

func TestAssembleDockerIgnoredFile(t *testing.T) {
	dir, cfg, target := setupProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".dockerignore"), []byte("prompts/\n"), 0o644))

	_, err := Assemble(dir, cfg, target, "FROM python:3.12-slim\n")
	require.Error(t, err)
	require.Contains(t, err.Error(), "prompts/reply.txt is referenced by target twitter but listed in .dockerignore")
}

func TestAssembleLeavesDockerIgnoreOutOfContext(t *testing.T) {
	dir, cfg, target := setupProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".dockerignore"), []byte("*.log\n"), 0o644))

	bc, err := Assemble(dir, cfg, target, "FROM python:3.12-slim\n")
	require.NoError(t, err)
	require.NotContains(t, bc.Files, ".dockerignore")
}
