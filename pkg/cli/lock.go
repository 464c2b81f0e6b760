package cli

import (
	"github.com/spf13/cobra"

	"github.com/cat21/botbox/pkg/config"
	"github.com/cat21/botbox/pkg/image"
	"github.com/cat21/botbox/pkg/lockfile"
	"github.com/cat21/botbox/pkg/util/console"
)

func newLockCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Inspect the dependency lock",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "check",
			Short: "Check that the lock satisfies every dependency in the manifest",
			Args:  cobra.NoArgs,
			RunE:  lockCheckCommand,
		},
		&cobra.Command{
			Use:   "digest",
			Short: "Print the digest identifying the locked dependency set",
			Args:  cobra.NoArgs,
			RunE:  lockDigestCommand,
		},
		&cobra.Command{
			Use:   "packages",
			Short: "List the locked packages as name==version",
			Args:  cobra.NoArgs,
			RunE:  lockPackagesCommand,
		},
	)
	return cmd
}

func lockCheckCommand(cmd *cobra.Command, args []string) error {
	cfg, projectDir, err := config.GetConfig(projectDirFlag)
	if err != nil {
		return err
	}
	if _, err := image.CheckLock(projectDir, cfg); err != nil {
		return err
	}
	console.Infof("%s is up to date with %s", cfg.Lock, cfg.Manifest)
	return nil
}

func lockDigestCommand(cmd *cobra.Command, args []string) error {
	project, err := loadLockedProject()
	if err != nil {
		return err
	}
	console.Output(lockfile.Digest(project))
	return nil
}

func lockPackagesCommand(cmd *cobra.Command, args []string) error {
	project, err := loadLockedProject()
	if err != nil {
		return err
	}
	for _, line := range lockfile.Packages(project) {
		console.Output(line)
	}
	return nil
}

func loadLockedProject() (*lockfile.Project, error) {
	cfg, projectDir, err := config.GetConfig(projectDirFlag)
	if err != nil {
		return nil, err
	}
	return lockfile.Load(projectDir, lockfile.PairFor(cfg))
}
