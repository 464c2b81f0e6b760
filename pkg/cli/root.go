package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/cat21/botbox/pkg/config"
	"github.com/cat21/botbox/pkg/docker"
	"github.com/cat21/botbox/pkg/docker/command"
	"github.com/cat21/botbox/pkg/global"
	"github.com/cat21/botbox/pkg/settings"
	"github.com/cat21/botbox/pkg/util/console"
)

var projectDirFlag string
var settingsFileFlag string

// settingsFs is swapped for an in-memory filesystem in tests.
var settingsFs = afero.NewOsFs()

func NewRootCommand() (*cobra.Command, error) {
	rootCmd := cobra.Command{
		Use:   "botbox",
		Short: "Build reproducible container images for Python bots",
		Long: `Build reproducible container images for Python bots.

Each target in botbox.yaml becomes one image: a pinned base image, dependencies
installed exactly as locked, the target's scripts and a single entrypoint.`,
		Version: fmt.Sprintf("%s (built %s)", global.Version, global.BuildTime),
		// This stops errors being printed because we print them in cmd/botbox/main.go
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if global.Verbose {
				console.SetLevel(console.DebugLevel)
			}
			cmd.SilenceUsage = true
		},
		SilenceErrors: true,
	}
	setPersistentFlags(&rootCmd)

	rootCmd.AddCommand(
		newBuildCommand(),
		newGenerateCommand(),
		newValidateCommand(),
		newLockCommand(),
		newInspectCommand(),
		newVerifyCommand(),
		newPinCommand(),
		newRunCommand(),
		newVersionCommand(),
	)

	return &rootCmd, nil
}

func setPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVarP(&global.Verbose, "verbose", "v", false, "Verbose output")
	cmd.PersistentFlags().StringVarP(&projectDirFlag, "project-dir", "D", "", "Project directory, defaults to the nearest parent containing botbox.yaml")
	cmd.PersistentFlags().StringVar(&settingsFileFlag, "config", "", "User settings file (default $HOME/.botbox.yaml)")
}

func loadSettings(cmd *cobra.Command) (*settings.Settings, error) {
	s, err := settings.Load(settingsFs, settingsFileFlag, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if f := cmd.Flags().Lookup("progress"); f != nil && !f.Changed && s.Progress == "auto" && os.Getenv("TERM") == "dumb" {
		s.Progress = "plain"
	}
	if !global.Verbose {
		console.SetLevel(s.Level())
	}
	return s, nil
}

func addDockerHostFlag(cmd *cobra.Command) {
	cmd.Flags().String("docker-host", "", "Docker daemon to use, overrides DOCKER_HOST")
}

// newDockerCommand is swapped for a mock in tests.
var newDockerCommand = func(ctx context.Context, s *settings.Settings) (command.Command, error) {
	var opts []docker.Option
	if s.DockerHost != "" {
		opts = append(opts, docker.WithHost(s.DockerHost))
	}
	return docker.NewClient(ctx, opts...)
}

// resolveTarget picks the named target, or the only one when no name is given.
func resolveTarget(cfg *config.Config, args []string) (*config.Target, error) {
	if len(args) == 0 {
		return cfg.DefaultTarget()
	}
	return cfg.Target(args[0])
}
