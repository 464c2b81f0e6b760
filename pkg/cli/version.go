package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cat21/botbox/pkg/global"
	"github.com/cat21/botbox/pkg/util/console"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the botbox version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			version := fmt.Sprintf("botbox version %s", global.Version)
			if global.Commit != "" {
				version += fmt.Sprintf(" (%s)", global.Commit)
			}
			console.Output(fmt.Sprintf("%s built %s", version, global.BuildTime))
		},
	}
}
