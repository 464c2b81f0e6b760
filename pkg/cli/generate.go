package cli

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cat21/botbox/pkg/config"
	"github.com/cat21/botbox/pkg/dockerfile"
	"github.com/cat21/botbox/pkg/image"
	"github.com/cat21/botbox/pkg/util/console"
)

var generateOutputDir string

func newGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [target]",
		Short: "Print the Dockerfile botbox builds a target from",
		Args:  cobra.MaximumNArgs(1),
		RunE:  generateCommand,
	}
	cmd.Flags().StringVarP(&generateOutputDir, "output", "o", "", "Write Dockerfile.<target> into this directory instead of printing it")
	return cmd
}

func generateCommand(cmd *cobra.Command, args []string) error {
	cfg, projectDir, err := config.GetConfig(projectDirFlag)
	if err != nil {
		return err
	}
	target, err := resolveTarget(cfg, args)
	if err != nil {
		return err
	}

	// The digest is part of the Dockerfile, so a stale lock fails here just like in build.
	lockDigest, err := image.CheckLock(projectDir, cfg)
	if err != nil {
		return err
	}

	generator := dockerfile.NewGenerator(cfg, target)
	generator.LockDigest = lockDigest

	if generateOutputDir == "" {
		contents, err := generator.Generate()
		if err != nil {
			return err
		}
		console.Output(strings.TrimSuffix(contents, "\n"))
		return nil
	}

	dir, err := filepath.Abs(generateOutputDir)
	if err != nil {
		return err
	}
	filename, err := generator.WriteDockerfile(dir)
	if err != nil {
		return err
	}
	console.Infof("Wrote %s", filename)
	return nil
}
