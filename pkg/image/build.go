// Package image builds, verifies and compares target images.
package image

import (
	"context"
	"fmt"
	"io"
	"maps"

	"github.com/cat21/botbox/pkg/config"
	"github.com/cat21/botbox/pkg/docker/command"
	"github.com/cat21/botbox/pkg/dockercontext"
	"github.com/cat21/botbox/pkg/dockerfile"
	"github.com/cat21/botbox/pkg/global"
	"github.com/cat21/botbox/pkg/lockfile"
	"github.com/cat21/botbox/pkg/util/console"
)

type BuildOptions struct {
	ProjectDir string
	Config     *config.Config
	// Tag overrides the image name. Only valid when building a single target.
	Tag            string
	NoCache        bool
	PullParent     bool
	ProgressOutput string
	// Output receives the daemon's build log. Defaults to stderr.
	Output io.Writer
	// Annotations are extra labels added to every image.
	Annotations map[string]string
}

type BuildResult struct {
	Target     string
	ImageName  string
	ImageID    string
	LockDigest string
}

// Build builds one target. The lock is checked before anything is sent to the daemon, and
// the resulting image's command is verified against the target's entrypoint.
func Build(ctx context.Context, dockerCommand command.Command, targetName string, opts BuildOptions) (*BuildResult, error) {
	ctx, cancel := context.WithTimeout(ctx, global.DockerTimeout)
	defer cancel()

	cfg := opts.Config
	target, err := cfg.Target(targetName)
	if err != nil {
		return nil, err
	}
	imageName, err := config.ImageName(cfg, opts.ProjectDir, target.Name, opts.Tag)
	if err != nil {
		return nil, err
	}

	lockDigest, err := CheckLock(opts.ProjectDir, cfg)
	if err != nil {
		return nil, err
	}

	generator := dockerfile.NewGenerator(cfg, target)
	generator.LockDigest = lockDigest
	contents, err := generator.Generate()
	if err != nil {
		return nil, fmt.Errorf("Failed to generate Dockerfile: %w", err)
	}

	bc, err := dockercontext.Assemble(opts.ProjectDir, cfg, target, contents)
	if err != nil {
		return nil, err
	}

	labels := map[string]string{
		command.VersionLabelKey: global.Version,
	}
	maps.Copy(labels, gitLabels(ctx, opts.ProjectDir))
	maps.Copy(labels, opts.Annotations)

	console.Infof("Building %s as %s...", target.Name, imageName)
	imageID, err := dockerCommand.ImageBuild(ctx, command.ImageBuildOptions{
		Context:        bc.Reader(),
		Dockerfile:     dockercontext.DockerfileName,
		ImageName:      imageName,
		NoCache:        opts.NoCache,
		PullParent:     opts.PullParent,
		Labels:         labels,
		ProgressOutput: opts.ProgressOutput,
		Output:         opts.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("Failed to build Docker image: %w", err)
	}

	inspect, err := dockerCommand.Inspect(ctx, imageName)
	if err != nil {
		return nil, fmt.Errorf("Failed to inspect built image %s: %w", imageName, err)
	}
	if err := VerifyEntrypoint(inspect, target); err != nil {
		return nil, err
	}

	return &BuildResult{
		Target:     target.Name,
		ImageName:  imageName,
		ImageID:    imageID,
		LockDigest: lockDigest,
	}, nil
}

// CheckLock loads the project's manifest and lock, fails on any mismatch and returns the
// lock digest. Warnings are printed.
func CheckLock(projectDir string, cfg *config.Config) (string, error) {
	project, err := lockfile.Load(projectDir, lockfile.PairFor(cfg))
	if err != nil {
		return "", err
	}
	result := lockfile.Check(project)
	for _, w := range result.Warnings {
		console.Warn(w)
	}
	if err := result.Err(); err != nil {
		return "", err
	}
	return lockfile.Digest(project), nil
}
