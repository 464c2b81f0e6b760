package dockerfile

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cat21/botbox/pkg/config"
	"github.com/cat21/botbox/pkg/docker/command"
	"github.com/cat21/botbox/pkg/util/files"
)

const (
	// poetryHome holds poetry and its own dependencies, apart from the bot's environment.
	poetryHome = "/opt/poetry"
	// botEnv is the environment the locked dependencies are installed into. It is first
	// on PATH, so "python" in CMD and pip freeze resolve to it.
	botEnv = "/opt/venv"
)

// Filenames the manifest and lock get inside the image, where the install tool expects them.
var installedDependencyFiles = map[config.PackageManager][2]string{
	config.Poetry: {"pyproject.toml", "poetry.lock"},
	config.Pip:    {"requirements.in", "requirements.txt"},
}

// Generator renders the Dockerfile for one target. The output depends only on the config,
// the target and the lock digest, so the same inputs always give byte-identical output.
type Generator struct {
	Config *config.Config
	Target *config.Target

	// LockDigest identifies the locked dependency set. Recorded as a label when set.
	LockDigest string
}

func NewGenerator(cfg *config.Config, target *config.Target) *Generator {
	return &Generator{
		Config: cfg,
		Target: target,
	}
}

func (g *Generator) Generate() (string, error) {
	installTool, err := g.installTool()
	if err != nil {
		return "", err
	}
	copyDependencies, installDependencies, err := g.installDependencies()
	if err != nil {
		return "", err
	}
	copySources, err := g.copySources()
	if err != nil {
		return "", err
	}
	labels, err := g.labels()
	if err != nil {
		return "", err
	}
	cmd, err := g.cmd()
	if err != nil {
		return "", err
	}

	return strings.Join(filterEmpty([]string{
		"FROM " + g.Config.BaseImage,
		g.preamble(),
		"WORKDIR " + g.Config.Workdir,
		installTool,
		copyDependencies,
		installDependencies,
		copySources,
		g.logDir(),
		labels,
		// The base image's ENTRYPOINT would otherwise receive the command as arguments.
		"ENTRYPOINT []",
		cmd,
	}), "\n") + "\n", nil
}

// EntrypointCommand is the exact CMD of the image: the interpreter and one script, no arguments.
func (g *Generator) EntrypointCommand() []string {
	return []string{"python", g.Target.Entrypoint}
}

// Labels returns the image labels recorded in the Dockerfile.
func (g *Generator) Labels() (map[string]string, error) {
	configDigest, err := g.configDigest()
	if err != nil {
		return nil, err
	}
	labels := map[string]string{
		command.TargetLabelKey:         g.Target.Name,
		command.EntrypointLabelKey:     g.Target.Entrypoint,
		command.PackageManagerLabelKey: string(g.Config.PackageManager) + "==" + g.Config.PackageManagerVersion,
		command.ConfigDigestLabelKey:   configDigest,
	}
	if g.LockDigest != "" {
		labels[command.LockDigestLabelKey] = g.LockDigest
	}
	if len(g.Target.Environment) > 0 {
		labels[command.EnvironmentLabelKey] = strings.Join(g.Target.Environment, ",")
	}
	if len(g.Target.Volumes) > 0 {
		labels[command.VolumesLabelKey] = strings.Join(g.Target.Volumes, ",")
	}
	return labels, nil
}

// DockerfileName is the file WriteDockerfile writes, e.g. Dockerfile.twitter
func (g *Generator) DockerfileName() string {
	return "Dockerfile." + g.Target.Name
}

// WriteDockerfile atomically writes the Dockerfile into dir and returns its path.
func (g *Generator) WriteDockerfile(dir string) (string, error) {
	contents, err := g.Generate()
	if err != nil {
		return "", err
	}
	filename := filepath.Join(dir, g.DockerfileName())
	if _, err := files.WriteIfDifferent(filename, []byte(contents), 0o644); err != nil {
		return "", err
	}
	return filename, nil
}

func (g *Generator) preamble() string {
	return "ENV PYTHONUNBUFFERED=1 PYTHONDONTWRITEBYTECODE=1 PIP_NO_CACHE_DIR=1 PIP_DISABLE_PIP_VERSION_CHECK=1"
}

func (g *Generator) installTool() (string, error) {
	switch g.Config.PackageManager {
	case config.Poetry:
		return strings.Join([]string{
			fmt.Sprintf(`RUN python -m venv %[1]s && %[1]s/bin/pip install "poetry==%[2]s" && python -m venv %[3]s`, poetryHome, g.Config.PackageManagerVersion, botEnv),
			fmt.Sprintf(`ENV VIRTUAL_ENV=%[1]s PATH=%[1]s/bin:$PATH POETRY_VIRTUALENVS_CREATE=false`, botEnv),
		}, "\n"), nil
	case config.Pip:
		return fmt.Sprintf(`RUN pip install "pip==%s"`, g.Config.PackageManagerVersion), nil
	}
	return "", fmt.Errorf("Unsupported package manager %q", g.Config.PackageManager)
}

// installDependencies copies the manifest and lock under the names the tool expects and
// installs exactly the locked set. The install fails if the lock disagrees with the manifest.
func (g *Generator) installDependencies() (copyLines string, runLine string, err error) {
	names, ok := installedDependencyFiles[g.Config.PackageManager]
	if !ok {
		return "", "", fmt.Errorf("Unsupported package manager %q", g.Config.PackageManager)
	}

	if g.Config.Manifest == names[0] && g.Config.Lock == names[1] {
		copyLines = fmt.Sprintf("COPY %s %s ./", names[0], names[1])
	} else {
		lines := []string{}
		for i, src := range g.Config.DependencyFiles() {
			line, err := copyLine(src, "./"+names[i])
			if err != nil {
				return "", "", err
			}
			lines = append(lines, line)
		}
		copyLines = strings.Join(lines, "\n")
	}

	switch g.Config.PackageManager {
	case config.Poetry:
		poetry := poetryHome + "/bin/poetry"
		runLine = fmt.Sprintf("RUN %[1]s check --lock && %[1]s install --no-root --no-interaction --only main", poetry)
	case config.Pip:
		runLine = "RUN pip install --no-deps -r requirements.txt"
	}
	return copyLines, runLine, nil
}

// copySources copies supporting files first and the entrypoint last, so editing the entry
// script only invalidates the final layers.
func (g *Generator) copySources() (string, error) {
	lines := []string{}
	for _, f := range g.Target.SourceFiles() {
		line, err := copyLine(f, "./"+path.Clean(f))
		if err != nil {
			return "", err
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}

func (g *Generator) logDir() string {
	if g.Target.LogDir == "" {
		return ""
	}
	return "RUN mkdir -p " + shellQuote(g.Target.LogDir)
}

func (g *Generator) labels() (string, error) {
	labels, err := g.Labels()
	if err != nil {
		return "", err
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k + "=" + strconv.Quote(labels[k])
	}
	return "LABEL " + strings.Join(lines, " \\\n      "), nil
}

func (g *Generator) cmd() (string, error) {
	cmd, err := jsonArray(g.EntrypointCommand())
	if err != nil {
		return "", err
	}
	return "CMD " + cmd, nil
}

// configDigest identifies the build inputs of this target that are not files.
func (g *Generator) configDigest() (string, error) {
	data, err := json.Marshal(struct {
		BaseImage             string                `json:"base_image"`
		PackageManager        config.PackageManager `json:"package_manager"`
		PackageManagerVersion string                `json:"package_manager_version"`
		Manifest              string                `json:"manifest"`
		Lock                  string                `json:"lock"`
		Workdir               string                `json:"workdir"`
		Target                *config.Target        `json:"target"`
	}{
		BaseImage:             g.Config.BaseImage,
		PackageManager:        g.Config.PackageManager,
		PackageManagerVersion: g.Config.PackageManagerVersion,
		Manifest:              g.Config.Manifest,
		Lock:                  g.Config.Lock,
		Workdir:               g.Config.Workdir,
		Target:                g.Target,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// copyLine uses the JSON form when a path would otherwise be split on whitespace.
func copyLine(src string, dst string) (string, error) {
	if !strings.ContainsAny(src+dst, " \t\"'") {
		return fmt.Sprintf("COPY %s %s", src, dst), nil
	}
	args, err := jsonArray([]string{src, dst})
	if err != nil {
		return "", err
	}
	return "COPY " + args, nil
}

func jsonArray(args []string) (string, error) {
	quoted := make([]string, len(args))
	for i, arg := range args {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(arg); err != nil {
			return "", err
		}
		quoted[i] = strings.TrimSpace(buf.String())
	}
	return "[" + strings.Join(quoted, ", ") + "]", nil
}

func shellQuote(s string) string {
	if !strings.ContainsAny(s, " \t\"'$`\\") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func filterEmpty(list []string) []string {
	filtered := []string{}
	for _, s := range list {
		if s != "" {
			filtered = append(filtered, s)
		}
	}
	return filtered
}
