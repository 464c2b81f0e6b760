package cli

import (
	"github.com/spf13/cobra"

	"github.com/cat21/botbox/pkg/config"
	"github.com/cat21/botbox/pkg/global"
	"github.com/cat21/botbox/pkg/registry"
	"github.com/cat21/botbox/pkg/util/console"
)

func newPinCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pin",
		Short: "Pin base_image in botbox.yaml to its current digest",
		Args:  cobra.NoArgs,
		RunE:  pinCommand,
	}
	cmd.Flags().Bool("insecure", false, "Allow plain HTTP registries")
	return cmd
}

func pinCommand(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	cfg, projectDir, err := config.GetConfig(projectDirFlag)
	if err != nil {
		return err
	}

	opts := []registry.Option{registry.WithInsecure(s.RegistryInsecure)}
	if s.DefaultRegistry != "" {
		opts = append(opts, registry.WithDefaultRegistry(s.DefaultRegistry))
	}

	console.Infof("Resolving %s...", cfg.BaseImage)
	pinned, err := registry.Pin(cmd.Context(), cfg.BaseImage, opts...)
	if err != nil {
		return err
	}

	changed, err := config.SetBaseImage(projectDir, pinned)
	if err != nil {
		return err
	}
	if changed {
		console.Infof("Pinned base_image in %s", global.ConfigFilename)
	} else {
		console.Infof("base_image is already pinned")
	}
	console.Output(pinned)
	return nil
}
