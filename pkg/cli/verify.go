package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cat21/botbox/pkg/docker/command"
	"github.com/cat21/botbox/pkg/image"
	"github.com/cat21/botbox/pkg/util/console"
)

func newVerifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <image-a> <image-b>",
		Short: "Check that two images install the same dependency set",
		Long: `Check that two images install the same dependency set.

The images must record the same lock digest, and pip freeze inside each image
must list identical packages.`,
		Args: cobra.ExactArgs(2),
		RunE: verifyCommand,
	}
	addDockerHostFlag(cmd)
	return cmd
}

func verifyCommand(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	dockerCommand, err := newDockerCommand(cmd.Context(), s)
	if err != nil {
		return err
	}

	var digests [2]string
	var frozen [2][]string
	for i, ref := range args {
		inspect, err := dockerCommand.Inspect(cmd.Context(), ref)
		if err != nil {
			return err
		}
		if inspect.Config != nil {
			digests[i] = inspect.Config.Labels[command.LockDigestLabelKey]
		}
		if digests[i] == "" {
			return fmt.Errorf("%s has no %s label. Was it built by botbox?", ref, command.LockDigestLabelKey)
		}
		console.Infof("Listing packages in %s...", ref)
		if frozen[i], err = image.Freeze(cmd.Context(), dockerCommand, ref); err != nil {
			return err
		}
	}

	if digests[0] != digests[1] {
		return fmt.Errorf("%s and %s were built from different locks (%s, %s)", args[0], args[1], digests[0], digests[1])
	}
	if diff := image.CompareFreeze(frozen[0], frozen[1]); !diff.Empty() {
		return fmt.Errorf("%s and %s have the same lock but different installed packages:\n%s", args[0], args[1], diff)
	}

	console.Output(fmt.Sprintf("%s and %s install the same %d packages (%s)", args[0], args[1], len(frozen[0]), digests[0]))
	return nil
}
