package cli

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cat21/botbox/pkg/docker/command"
	"github.com/cat21/botbox/pkg/docker/dockertest"
)

func botLabels(target string, entrypoint string, lockDigest string) map[string]string {
	return map[string]string{
		command.TargetLabelKey:     target,
		command.EntrypointLabelKey: entrypoint,
		command.LockDigestLabelKey: lockDigest,
	}
}

func TestInspectCommand(t *testing.T) {
	m := dockertest.NewMockCommand()
	m.On("Inspect", mock.Anything, "cat21/bots:main").
		Return(dockertest.InspectResponse("sha256:abc", []string{"python", "main.py"}, botLabels("main", "main.py", "sha256:lock")), nil)

	out, err := execute(t, m, "inspect", "cat21/bots:main")
	require.NoError(t, err)
	require.Contains(t, out, "Target:  main\n")
	require.Contains(t, out, "  run.botbox.lock_digest=sha256:lock\n")

	out, err = execute(t, m, "inspect", "--json", "cat21/bots:main")
	require.NoError(t, err)
	var parsed InspectOutput
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	require.True(t, parsed.Verified)
	require.Equal(t, []string{"python", "main.py"}, parsed.Command)
}

func TestInspectCommandFailsVerification(t *testing.T) {
	m := dockertest.NewMockCommand()
	m.On("Inspect", mock.Anything, "cat21/bots:main").
		Return(dockertest.InspectResponse("sha256:abc", []string{"python", "main.py", "--debug"}, botLabels("main", "main.py", "sha256:lock")), nil)

	_, err := execute(t, m, "inspect", "cat21/bots:main")
	require.ErrorContains(t, err, "image command is [python main.py --debug]")
}

func TestInspectCommandNotFound(t *testing.T) {
	m := dockertest.NewMockCommand()
	m.On("Inspect", mock.Anything, "nope:latest").Return(nil, &command.NotFoundError{Ref: "nope:latest", Object: "image"})

	_, err := execute(t, m, "inspect", "nope:latest")
	require.True(t, errors.Is(err, &command.NotFoundError{}))
}
