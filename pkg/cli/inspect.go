package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/cat21/botbox/pkg/image"
	"github.com/cat21/botbox/pkg/util/console"
)

var inspectJSON bool

// InspectOutput is the structured output for botbox inspect --json.
type InspectOutput struct {
	Reference string            `json:"reference"`
	ID        string            `json:"id"`
	Target    string            `json:"target"`
	Command   []string          `json:"command"`
	Labels    map[string]string `json:"labels"`
	Verified  bool              `json:"verified"`
	Problem   string            `json:"problem,omitempty"`
}

func newInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <image>",
		Short: "Show the labels of a built image and check its entrypoint",
		Args:  cobra.ExactArgs(1),
		RunE:  inspectCommand,
	}
	addDockerHostFlag(cmd)
	cmd.Flags().BoolVar(&inspectJSON, "json", false, "Output as JSON")
	return cmd
}

func inspectCommand(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	dockerCommand, err := newDockerCommand(cmd.Context(), s)
	if err != nil {
		return err
	}

	ref := args[0]
	inspect, err := dockerCommand.Inspect(cmd.Context(), ref)
	if err != nil {
		return err
	}

	target, err := image.TargetFromLabels(inspect)
	if err != nil {
		return err
	}
	out := InspectOutput{
		Reference: ref,
		ID:        inspect.ID,
		Target:    target.Name,
		Command:   inspect.Config.Cmd,
		Labels:    inspect.Config.Labels,
		Verified:  true,
	}
	verifyErr := image.VerifyEntrypoint(inspect, target)
	if verifyErr != nil {
		out.Verified = false
		out.Problem = verifyErr.Error()
	}

	if inspectJSON {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		console.Output(string(data))
		return verifyErr
	}

	console.Output(fmt.Sprintf("Image:   %s (%s)", out.Reference, out.ID))
	console.Output(fmt.Sprintf("Target:  %s", out.Target))
	console.Output(fmt.Sprintf("Command: %v", out.Command))
	keys := make([]string, 0, len(out.Labels))
	for k := range out.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	console.Output("Labels:")
	for _, k := range keys {
		console.Output(fmt.Sprintf("  %s=%s", k, out.Labels[k]))
	}
	return verifyErr
}
