package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cat21/botbox/pkg/config"
	"github.com/cat21/botbox/pkg/global"
	"github.com/cat21/botbox/pkg/image"
	"github.com/cat21/botbox/pkg/util/console"
)

var validateStrict bool

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check botbox.yaml and that the lock matches the manifest",
		Args:  cobra.NoArgs,
		RunE:  validateCommand,
	}
	cmd.Flags().BoolVar(&validateStrict, "strict", false, "Treat warnings, such as an unpinned base image, as errors")
	return cmd
}

func validateCommand(cmd *cobra.Command, args []string) error {
	projectDir, err := config.GetProjectDir(projectDirFlag)
	if err != nil {
		return err
	}

	var opts []config.ValidateOption
	if validateStrict {
		opts = append(opts, config.WithStrictDeprecations())
	}
	cfg, result, err := config.Load(projectDir, opts...)
	if result != nil {
		for _, w := range result.Warnings {
			console.Warnf("%s", w)
		}
	}
	if err != nil {
		return err
	}

	if _, err := image.CheckLock(projectDir, cfg); err != nil {
		return err
	}

	console.Output(fmt.Sprintf("%s is valid: %d target(s), %s matches %s", global.ConfigFilename, len(cfg.Targets), cfg.Lock, cfg.Manifest))
	return nil
}
