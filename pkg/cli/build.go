package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/cat21/botbox/pkg/config"
	"github.com/cat21/botbox/pkg/image"
	"github.com/cat21/botbox/pkg/util/console"
)

var buildTag string
var buildAll bool
var buildNoCache bool
var buildPull bool

func newBuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [target...]",
		Short: "Build target images from botbox.yaml",
		Long: `Build target images from botbox.yaml.

The lock is checked against the manifest first. A stale lock fails the build
before anything is sent to Docker.`,
		RunE: buildCommand,
	}
	addBuildProgressOutputFlag(cmd)
	addDockerHostFlag(cmd)
	cmd.Flags().StringVarP(&buildTag, "tag", "t", "", "A name for the built image in the form 'repository:tag'. Only with a single target")
	cmd.Flags().BoolVar(&buildAll, "all", false, "Build every target")
	cmd.Flags().BoolVar(&buildNoCache, "no-cache", false, "Do not use cache when building the image")
	cmd.Flags().BoolVar(&buildPull, "pull", false, "Always pull a newer version of the base image")
	cmd.Flags().Int("parallel", 1, "Number of targets to build at once")
	return cmd
}

func buildCommand(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	cfg, projectDir, err := config.GetConfig(projectDirFlag)
	if err != nil {
		return err
	}

	targets, err := buildTargets(cfg, args)
	if err != nil {
		return err
	}

	dockerCommand, err := newDockerCommand(cmd.Context(), s)
	if err != nil {
		return err
	}

	results, err := image.BuildAll(cmd.Context(), dockerCommand, targets, image.BuildAllOptions{
		BuildOptions: image.BuildOptions{
			ProjectDir:     projectDir,
			Config:         cfg,
			Tag:            buildTag,
			NoCache:        buildNoCache,
			PullParent:     buildPull,
			ProgressOutput: s.Progress,
		},
		Parallel:     s.Parallel,
		ShowProgress: s.Progress != "plain" && console.IsTTY(os.Stderr),
	})
	if err != nil {
		return err
	}

	for _, result := range results {
		console.Infof("Image built as %s", result.ImageName)
		console.Output(result.ImageName)
	}
	return nil
}

func buildTargets(cfg *config.Config, args []string) ([]string, error) {
	if buildAll {
		return cfg.TargetNames(), nil
	}
	if len(args) == 0 {
		target, err := cfg.DefaultTarget()
		if err != nil {
			return nil, err
		}
		return []string{target.Name}, nil
	}
	for _, name := range args {
		if _, err := cfg.Target(name); err != nil {
			return nil, err
		}
	}
	return args, nil
}

func addBuildProgressOutputFlag(cmd *cobra.Command) {
	cmd.Flags().String("progress", "auto", "Set type of build progress output, 'auto' (default), 'plain' or 'quiet'")
}
