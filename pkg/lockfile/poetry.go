package lockfile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

var (
	// legacyPoetryKeys are hashed even when absent, as null.
	legacyPoetryKeys   = []string{"dependencies", "source", "extras", "dev-dependencies"}
	relevantPoetryKeys = append(append([]string{}, legacyPoetryKeys...), "group")

	relevantProjectKeys = []string{"requires-python", "dependencies", "optional-dependencies"}
)

type poetryLock struct {
	Package []struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
	} `toml:"package"`
	Metadata struct {
		LockVersion string `toml:"lock-version"`
		ContentHash string `toml:"content-hash"`
	} `toml:"metadata"`
}

func parsePoetryLock(contents []byte) (*Lock, error) {
	var raw poetryLock
	if err := toml.Unmarshal(contents, &raw); err != nil {
		return nil, err
	}
	lock := &Lock{ContentHash: raw.Metadata.ContentHash}
	for _, p := range raw.Package {
		if p.Name == "" || p.Version == "" {
			return nil, fmt.Errorf("package entry without name or version")
		}
		lock.Packages = append(lock.Packages, Package{Name: p.Name, Version: p.Version})
	}
	return lock, nil
}

// parsePyproject reads the main dependency group of a pyproject.toml, from both
// [tool.poetry.dependencies] and PEP 621 [project] dependencies.
func parsePyproject(contents []byte) (*Manifest, error) {
	doc := map[string]any{}
	if err := toml.Unmarshal(contents, &doc); err != nil {
		return nil, err
	}
	project := table(doc, "project")
	poetry := table(table(doc, "tool"), "poetry")

	manifest := &Manifest{}

	names := sortedKeys(table(poetry, "dependencies"))
	for _, name := range names {
		if NormalizeName(name) == "python" {
			continue
		}
		dep, err := poetryDependency(name, table(poetry, "dependencies")[name])
		if err != nil {
			return nil, err
		}
		manifest.Dependencies = append(manifest.Dependencies, dep)
	}

	if deps, ok := project["dependencies"].([]any); ok {
		for _, d := range deps {
			line, ok := d.(string)
			if !ok {
				return nil, fmt.Errorf("project.dependencies must be a list of strings")
			}
			dep, err := parseRequirement(line)
			if err != nil {
				return nil, err
			}
			manifest.Dependencies = append(manifest.Dependencies, dep)
		}
	}

	manifest.ContentHash = contentHash(project, poetry)
	return manifest, nil
}

func poetryDependency(name string, value any) (Dependency, error) {
	dep := Dependency{Name: name}
	switch v := value.(type) {
	case string:
		dep.Constraint = v
	case map[string]any:
		dep.Constraint, dep.Direct = poetryDependencyTable(v)
	case []any:
		// Multiple constraints for different environments; any of them may be the one locked
		constraints := []string{}
		for _, item := range v {
			t, ok := item.(map[string]any)
			if !ok {
				return dep, fmt.Errorf("dependency %s: expected a table", name)
			}
			constraint, direct := poetryDependencyTable(t)
			if direct {
				dep.Direct = true
			}
			if constraint != "" {
				constraints = append(constraints, constraint)
			}
		}
		dep.Constraint = strings.Join(constraints, " || ")
	default:
		return dep, fmt.Errorf("dependency %s: unsupported value %v", name, value)
	}
	return dep, nil
}

func poetryDependencyTable(t map[string]any) (constraint string, direct bool) {
	for _, key := range []string{"git", "path", "url", "file"} {
		if _, ok := t[key]; ok {
			return "", true
		}
	}
	constraint, _ = t["version"].(string)
	return constraint, false
}

// contentHash recomputes the manifest hash poetry records in poetry.lock.
func contentHash(project map[string]any, poetry map[string]any) string {
	relevantProject := map[string]any{}
	for _, key := range relevantProjectKeys {
		if data, ok := project[key]; ok && data != nil {
			relevantProject[key] = data
		}
	}

	relevantPoetry := map[string]any{}
	for _, key := range relevantPoetryKeys {
		data, ok := poetry[key]
		if !ok && (!contains(legacyPoetryKeys, key) || len(relevantProject) > 0) {
			continue
		}
		relevantPoetry[key] = data
	}

	var relevant any = relevantPoetry
	if len(relevantProject) > 0 {
		relevant = map[string]any{
			"project": relevantProject,
			"tool":    map[string]any{"poetry": relevantPoetry},
		}
	}

	var b strings.Builder
	writePythonJSON(&b, relevant)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func table(doc map[string]any, key string) map[string]any {
	if doc == nil {
		return nil
	}
	t, _ := doc[key].(map[string]any)
	return t
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
