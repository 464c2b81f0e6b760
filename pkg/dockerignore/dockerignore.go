package dockerignore

import (
	"bufio"
	"os"
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/cat21/botbox/pkg/util/files"
)

const DockerIgnoreFilename = ".dockerignore"

// Matcher answers whether docker would leave a path out of the build context.
// A nil Matcher ignores nothing.
type Matcher struct {
	ignore *ignore.GitIgnore
}

// CreateMatcher reads dir/.dockerignore. It returns a nil Matcher when there is no such file.
func CreateMatcher(dir string) (*Matcher, error) {
	dockerIgnorePath := filepath.Join(dir, DockerIgnoreFilename)
	dockerIgnoreExists, err := files.Exists(dockerIgnorePath)
	if err != nil {
		return nil, err
	}
	if !dockerIgnoreExists {
		return nil, nil
	}

	patterns, err := readDockerIgnore(dockerIgnorePath)
	if err != nil {
		return nil, err
	}
	return &Matcher{ignore: ignore.CompileIgnoreLines(patterns...)}, nil
}

// Ignores reports whether the slash-separated path rel, relative to the context root, is excluded.
func (m *Matcher) Ignores(rel string) bool {
	if m == nil {
		return false
	}
	return m.ignore.MatchesPath(rel)
}

func readDockerIgnore(dockerIgnorePath string) ([]string, error) {
	var patterns []string
	file, err := os.Open(dockerIgnorePath)
	if err != nil {
		return patterns, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		patterns = append(patterns, line)
	}
	return patterns, scanner.Err()
}
