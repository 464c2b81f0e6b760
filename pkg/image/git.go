package image

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/cat21/botbox/pkg/util/console"
)

const gitTimeout = 3 * time.Second

var errNotGitWorkTree = errors.New("not a git work tree")

// sourceLabel describes one OCI label derived from the checkout. CI systems check out
// detached heads, so an env var set by the runner wins over asking git.
type sourceLabel struct {
	key     string
	env     string
	gitArgs []string
}

var sourceLabels = []sourceLabel{
	{key: "org.opencontainers.image.revision", env: "GITHUB_SHA", gitArgs: []string{"rev-parse", "HEAD"}},
	{key: "org.opencontainers.image.version", env: "GITHUB_REF_NAME", gitArgs: []string{"describe", "--tags", "--dirty"}},
}

// gitLabels records the source revision. They are build labels rather than Dockerfile
// LABELs so the generated Dockerfile stays independent of the checkout.
func gitLabels(ctx context.Context, dir string) map[string]string {
	labels := map[string]string{}
	inWorkTree := isGitWorkTree(ctx, dir)
	for _, l := range sourceLabels {
		value, err := sourceValue(ctx, dir, l, inWorkTree)
		if err != nil || value == "" {
			console.Debugf("Unable to determine %s: %v", l.key, err)
			continue
		}
		labels[l.key] = value
	}
	return labels
}

func sourceValue(ctx context.Context, dir string, l sourceLabel, inWorkTree bool) (string, error) {
	if v := os.Getenv(l.env); v != "" {
		return v, nil
	}
	if !inWorkTree {
		return "", errNotGitWorkTree
	}
	return git(ctx, dir, l.gitArgs...)
}

func isGitWorkTree(ctx context.Context, dir string) bool {
	out, err := git(ctx, dir, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

func git(ctx context.Context, dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
