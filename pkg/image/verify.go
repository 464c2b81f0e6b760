package image

import (
	"fmt"
	"slices"
	"strings"

	"github.com/docker/docker/api/types/image"

	"github.com/cat21/botbox/pkg/config"
	"github.com/cat21/botbox/pkg/docker/command"
)

// ExpectedCommand is the only command a target image may run: the interpreter and the
// entry script, with no arguments.
func ExpectedCommand(target *config.Target) []string {
	return []string{"python", target.Entrypoint}
}

// VerifyEntrypoint checks that an image starts exactly the target's entry script.
func VerifyEntrypoint(inspect *image.InspectResponse, target *config.Target) error {
	if inspect == nil || inspect.Config == nil {
		return fmt.Errorf("image has no config to verify")
	}
	if len(inspect.Config.Entrypoint) > 0 {
		return fmt.Errorf("image sets ENTRYPOINT %s; %s must be the only process", formatCommand(inspect.Config.Entrypoint), target.Entrypoint)
	}
	want := ExpectedCommand(target)
	if !slices.Equal(inspect.Config.Cmd, want) {
		return fmt.Errorf("image command is %s, expected %s", formatCommand(inspect.Config.Cmd), formatCommand(want))
	}
	if label, ok := inspect.Config.Labels[command.TargetLabelKey]; ok && label != target.Name {
		return fmt.Errorf("image was built for target %q, not %q", label, target.Name)
	}
	return nil
}

// TargetFromLabels reconstructs the target an image was built for, for images inspected
// without a botbox.yaml at hand.
func TargetFromLabels(inspect *image.InspectResponse) (*config.Target, error) {
	if inspect == nil || inspect.Config == nil {
		return nil, fmt.Errorf("image has no config")
	}
	labels := inspect.Config.Labels
	name, entrypoint := labels[command.TargetLabelKey], labels[command.EntrypointLabelKey]
	if name == "" || entrypoint == "" {
		return nil, fmt.Errorf("image was not built by botbox: missing %s or %s label", command.TargetLabelKey, command.EntrypointLabelKey)
	}
	return &config.Target{Name: name, Entrypoint: entrypoint}, nil
}

func formatCommand(cmd []string) string {
	if len(cmd) == 0 {
		return "(none)"
	}
	return "[" + strings.Join(cmd, " ") + "]"
}
