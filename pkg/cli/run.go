package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cat21/botbox/pkg/config"
	"github.com/cat21/botbox/pkg/docker/command"
	"github.com/cat21/botbox/pkg/dockercontext"
	"github.com/cat21/botbox/pkg/settings"
	"github.com/cat21/botbox/pkg/util/console"
)

var runTag string

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [target]",
		Short: "Run a built target in the foreground",
		Long: `Run a built target in the foreground.

Environment variables the target declares are taken from the shell, then from
.env in the project directory. Volumes are kept under .botbox/state/<target>.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCommand,
	}
	addDockerHostFlag(cmd)
	cmd.Flags().StringVarP(&runTag, "tag", "t", "", "Image to run, if it was built with --tag")
	return cmd
}

func runCommand(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	cfg, projectDir, err := config.GetConfig(projectDirFlag)
	if err != nil {
		return err
	}
	target, err := resolveTarget(cfg, args)
	if err != nil {
		return err
	}
	imageName, err := config.ImageName(cfg, projectDir, target.Name, runTag)
	if err != nil {
		return err
	}

	dotenv, err := settings.ReadDotEnv(settingsFs, projectDir)
	if err != nil {
		return err
	}
	env, err := settings.ResolveEnvironment(target.Environment, os.LookupEnv, dotenv.Lookup)
	if err != nil {
		return err
	}

	volumes := make([]command.Volume, 0, len(target.Volumes))
	for _, containerPath := range target.Volumes {
		hostPath, err := dockercontext.VolumeHostPath(projectDir, target.Name, containerPath)
		if err != nil {
			return err
		}
		volumes = append(volumes, command.Volume{Source: hostPath, Destination: containerPath})
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dockerCommand, err := newDockerCommand(ctx, s)
	if err != nil {
		return err
	}
	exists, err := dockerCommand.ImageExists(ctx, imageName)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w. Run `botbox build %s` first", &command.NotFoundError{Ref: imageName, Object: "image"}, target.Name)
	}

	console.Infof("Running %s...", imageName)
	return dockerCommand.Run(ctx, command.RunOptions{
		Image:   imageName,
		Env:     env,
		Volumes: volumes,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	})
}
