// Package lockfile checks that a dependency lock satisfies its manifest before any image is
// built, so that a stale lock fails fast instead of halfway through a docker build.
package lockfile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cat21/botbox/pkg/config"
	"github.com/cat21/botbox/pkg/errors"
)

// Pair names the manifest and lock of one project.
type Pair struct {
	Manager      config.PackageManager
	ManifestPath string
	LockPath     string
}

// PairFor returns the manifest/lock pair a config installs from.
func PairFor(cfg *config.Config) Pair {
	return Pair{
		Manager:      cfg.PackageManager,
		ManifestPath: cfg.Manifest,
		LockPath:     cfg.Lock,
	}
}

// Dependency is a requirement declared in the manifest.
type Dependency struct {
	Name       string
	Constraint string
	// Direct is set for git, path and URL dependencies, which have no version to check.
	Direct bool
}

// Package is one pinned entry of the lock.
type Package struct {
	Name    string
	Version string
}

type Manifest struct {
	Dependencies []Dependency
	// ContentHash is the hash poetry would record for this manifest. Empty for pip.
	ContentHash string
}

type Lock struct {
	Packages []Package
	// ContentHash is the manifest hash recorded in the lock. Empty for pip.
	ContentHash string
	// Unpinned lists requirement lines that do not pin an exact version.
	Unpinned []string

	raw []byte
}

type Project struct {
	Pair     Pair
	Manifest *Manifest
	Lock     *Lock
}

// Load reads and parses the manifest and lock in projectDir.
func Load(projectDir string, pair Pair) (*Project, error) {
	manifestBytes, err := readProjectFile(projectDir, pair.ManifestPath)
	if err != nil {
		return nil, err
	}
	lockBytes, err := readProjectFile(projectDir, pair.LockPath)
	if err != nil {
		return nil, err
	}

	project := &Project{Pair: pair}
	switch pair.Manager {
	case config.Poetry:
		project.Manifest, err = parsePyproject(manifestBytes)
		if err != nil {
			return nil, fmt.Errorf("Failed to parse %s: %w", pair.ManifestPath, err)
		}
		project.Lock, err = parsePoetryLock(lockBytes)
		if err != nil {
			return nil, fmt.Errorf("Failed to parse %s: %w", pair.LockPath, err)
		}
	case config.Pip:
		project.Manifest, err = parseRequirementsIn(manifestBytes)
		if err != nil {
			return nil, fmt.Errorf("Failed to parse %s: %w", pair.ManifestPath, err)
		}
		project.Lock = parseRequirementsTxt(lockBytes)
	default:
		return nil, fmt.Errorf("Unsupported package manager %q", pair.Manager)
	}
	project.Lock.raw = lockBytes
	return project, nil
}

func readProjectFile(projectDir string, rel string) ([]byte, error) {
	contents, err := os.ReadFile(filepath.Join(projectDir, filepath.FromSlash(rel)))
	if os.IsNotExist(err) {
		return nil, errors.MissingFile(rel, err)
	}
	return contents, err
}

// Digest identifies the locked dependency set: the sha256 of the lock file bytes.
func Digest(project *Project) string {
	sum := sha256.Sum256(project.Lock.raw)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Packages returns the locked set as sorted name==version lines.
func Packages(project *Project) []string {
	seen := map[string]bool{}
	lines := []string{}
	for _, p := range project.Lock.Packages {
		line := NormalizeName(p.Name) + "==" + p.Version
		if !seen[line] {
			seen[line] = true
			lines = append(lines, line)
		}
	}
	sort.Strings(lines)
	return lines
}

// versions indexes locked versions by normalized name. A name can be locked more than
// once with different environment markers.
func (l *Lock) versions() map[string][]string {
	index := map[string][]string{}
	for _, p := range l.Packages {
		name := NormalizeName(p.Name)
		index[name] = append(index[name], p.Version)
	}
	return index
}
