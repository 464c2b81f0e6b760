package dockertest

import (
	"os"
	"strings"
	"testing"

	"github.com/docker/docker/client"
)

// RequireDaemon skips the test unless a Docker daemon is reachable.
func RequireDaemon(t testing.TB) *client.Client {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping docker tests in short mode")
	}
	if os.Getenv("SKIP_INTEGRATION_TESTS") == "1" {
		t.Skip("Skipping integration tests")
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		t.Fatalf("Failed to create Docker client: %v", err)
	}
	if _, err := cli.Ping(t.Context()); err != nil {
		t.Skip("Docker daemon is not running")
	}
	t.Cleanup(func() { _ = cli.Close() })
	return cli
}

// ImageName derives a valid, test-unique local image name.
func ImageName(t testing.TB) string {
	t.Helper()

	repoName := strings.ToLower(t.Name())
	repoName = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, repoName)
	return "botbox-test-" + strings.Trim(repoName, "._-") + ":latest"
}
