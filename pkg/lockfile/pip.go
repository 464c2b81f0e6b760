package lockfile

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/cat21/botbox/pkg/util/console"
)

var (
	requirementRe = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)\s*(\[[^\]]*\])?\s*(.*)$`)
	pinnedRe      = regexp.MustCompile(`^===?\s*([^\s,*]+)$`)
)

// parseRequirement parses a PEP 508 requirement such as
// `httpx[http2] >=0.27,<1 ; python_version >= "3.11"`. Markers are dropped.
func parseRequirement(line string) (Dependency, error) {
	line = strings.TrimSpace(line)
	if i := strings.Index(line, ";"); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	m := requirementRe.FindStringSubmatch(line)
	if m == nil {
		return Dependency{}, fmt.Errorf("invalid requirement %q", line)
	}
	dep := Dependency{Name: m[1]}
	spec := strings.TrimSpace(m[3])
	if strings.HasPrefix(spec, "@") {
		dep.Direct = true
		return dep, nil
	}
	spec = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(spec, "("), ")"))
	dep.Constraint = spec
	return dep, nil
}

// requirementLines yields logical lines of a requirements file: continuations joined,
// comments and blank lines dropped.
func requirementLines(contents []byte) []string {
	lines := []string{}
	var current strings.Builder
	scanner := bufio.NewScanner(bytes.NewReader(contents))
	for scanner.Scan() {
		text := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(text), "#") {
			text = ""
		} else if i := strings.Index(text, " #"); i >= 0 {
			text = text[:i]
		}
		if strings.HasSuffix(text, `\`) {
			current.WriteString(strings.TrimSuffix(text, `\`))
			current.WriteByte(' ')
			continue
		}
		current.WriteString(text)
		if line := strings.TrimSpace(current.String()); line != "" {
			lines = append(lines, line)
		}
		current.Reset()
	}
	if line := strings.TrimSpace(current.String()); line != "" {
		lines = append(lines, line)
	}
	return lines
}

// stripOptions removes per-requirement options such as --hash=sha256:...
func stripOptions(line string) string {
	if i := strings.Index(line, " --"); i >= 0 {
		return strings.TrimSpace(line[:i])
	}
	return line
}

func parseRequirementsIn(contents []byte) (*Manifest, error) {
	manifest := &Manifest{}
	for _, line := range requirementLines(contents) {
		if strings.HasPrefix(line, "-") {
			console.Debugf("Ignoring option in requirements manifest: %s", line)
			continue
		}
		dep, err := parseRequirement(stripOptions(line))
		if err != nil {
			return nil, err
		}
		manifest.Dependencies = append(manifest.Dependencies, dep)
	}
	return manifest, nil
}

// parseRequirementsTxt reads a compiled requirements file. Every requirement must pin an
// exact version; anything else is recorded as unpinned.
func parseRequirementsTxt(contents []byte) *Lock {
	lock := &Lock{}
	for _, line := range requirementLines(contents) {
		if strings.HasPrefix(line, "-e") || strings.HasPrefix(line, "--editable") {
			lock.Unpinned = append(lock.Unpinned, line)
			continue
		}
		if strings.HasPrefix(line, "-") {
			continue
		}
		dep, err := parseRequirement(stripOptions(line))
		if err != nil {
			lock.Unpinned = append(lock.Unpinned, line)
			continue
		}
		m := pinnedRe.FindStringSubmatch(dep.Constraint)
		if dep.Direct || m == nil {
			lock.Unpinned = append(lock.Unpinned, line)
			continue
		}
		lock.Packages = append(lock.Packages, Package{Name: dep.Name, Version: m[1]})
	}
	return lock
}
