// Package dockercontext assembles the build context sent to the docker daemon and manages
// the project's .botbox directory.
package dockercontext

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/cat21/botbox/pkg/config"
	"github.com/cat21/botbox/pkg/dockerignore"
	"github.com/cat21/botbox/pkg/errors"
	"github.com/cat21/botbox/pkg/util/console"
)

// DockerfileName is the name of the generated Dockerfile inside the context.
const DockerfileName = "Dockerfile"

// Fixed header fields so that identical inputs produce identical context bytes.
var epoch = time.Unix(0, 0).UTC()

// Context is an in-memory tar archive holding exactly the files a target's build needs.
type Context struct {
	// Files lists the archive entries in order.
	Files []string

	data []byte
}

func (c *Context) Reader() io.ReadSeeker {
	return bytes.NewReader(c.data)
}

func (c *Context) Len() int {
	return len(c.data)
}

// Digest is the sha256 of the archive bytes.
func (c *Context) Digest() string {
	sum := sha256.Sum256(c.data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Assemble builds the context for target: the generated Dockerfile, the manifest and lock,
// then the target's files and entrypoint. A referenced file that is absent fails the build.
// The context is an explicit file list and never carries .dockerignore, so docker itself
// drops nothing. A referenced file the project lists there is still refused.
func Assemble(projectDir string, cfg *config.Config, target *config.Target, dockerfile string) (*Context, error) {
	matcher, err := dockerignore.CreateMatcher(projectDir)
	if err != nil {
		return nil, fmt.Errorf("Failed to read %s: %w", dockerignore.DockerIgnoreFilename, err)
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	bc := &Context{}

	if err := writeEntry(tw, DockerfileName, []byte(dockerfile)); err != nil {
		return nil, err
	}
	bc.Files = append(bc.Files, DockerfileName)

	seen := map[string]bool{DockerfileName: true}
	sources := append(cfg.DependencyFiles(), target.SourceFiles()...)
	for _, rel := range sources {
		name := path.Clean(rel)
		if seen[name] {
			continue
		}
		seen[name] = true

		if matcher.Ignores(name) {
			return nil, fmt.Errorf("%s is referenced by target %s but listed in %s, and botbox does not copy excluded files into images. Remove it from one of the two", name, target.Name, dockerignore.DockerIgnoreFilename)
		}
		contents, err := readSource(projectDir, name)
		if err != nil {
			return nil, err
		}
		if err := writeEntry(tw, name, contents); err != nil {
			return nil, err
		}
		bc.Files = append(bc.Files, name)
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("Failed to write build context: %w", err)
	}
	bc.data = buf.Bytes()
	console.Debugf("Build context for %s: %d files, %d bytes, %s", target.Name, len(bc.Files), bc.Len(), bc.Digest())
	return bc, nil
}

func readSource(projectDir string, rel string) ([]byte, error) {
	filename := filepath.Join(projectDir, filepath.FromSlash(rel))
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return nil, errors.MissingFile(rel, err)
	} else if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is referenced by the build but is not a regular file", rel)
	}
	return os.ReadFile(filename)
}

func writeEntry(tw *tar.Writer, name string, contents []byte) error {
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(contents)),
		ModTime:  epoch,
		Format:   tar.FormatPAX,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("Failed to add %s to build context: %w", name, err)
	}
	if _, err := tw.Write(contents); err != nil {
		return fmt.Errorf("Failed to add %s to build context: %w", name, err)
	}
	return nil
}
