package command

import (
	"context"
	"io"

	"github.com/docker/docker/api/types/image"
)

type Command interface {
	// Pull pulls an image from a remote registry and returns the inspect response for the local image.
	// If the image already exists, it will return the inspect response for the local image without pulling.
	// When force is true, it will always attempt to pull the image.
	Pull(ctx context.Context, ref string, force bool) (*image.InspectResponse, error)
	Inspect(ctx context.Context, ref string) (*image.InspectResponse, error)
	ImageExists(ctx context.Context, ref string) (bool, error)

	// ImageBuild builds and tags an image from an in-memory context and returns its ID.
	ImageBuild(ctx context.Context, options ImageBuildOptions) (string, error)
	// Run runs a container in the foreground until it exits or ctx is cancelled.
	Run(ctx context.Context, options RunOptions) error
}

type ImageBuildOptions struct {
	// Context is the tar build context. It is rewound if the build has to be retried.
	Context    io.ReadSeeker
	Dockerfile string
	ImageName  string
	NoCache    bool
	// PullParent always pulls a newer version of the base image.
	PullParent bool
	Labels     map[string]string
	// ProgressOutput is one of auto, plain or quiet.
	ProgressOutput string
	// Output receives the build log. Defaults to stderr.
	Output io.Writer
}

type RunOptions struct {
	Image   string
	Args    []string
	Env     []string
	Volumes []Volume
	Workdir string
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
}

type Volume struct {
	Source      string
	Destination string
}
