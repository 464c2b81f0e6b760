package dockertest

import (
	"context"
	"io"

	"github.com/docker/docker/api/types/image"
	dockerspec "github.com/moby/docker-image-spec/specs-go/v1"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/mock"

	"github.com/cat21/botbox/pkg/docker/command"
)

// MockCommand is a testify mock of command.Command.
type MockCommand struct {
	mock.Mock
}

var _ command.Command = (*MockCommand)(nil)

func NewMockCommand() *MockCommand {
	return &MockCommand{}
}

func (c *MockCommand) Pull(ctx context.Context, ref string, force bool) (*image.InspectResponse, error) {
	args := c.Called(ctx, ref, force)
	resp, _ := args.Get(0).(*image.InspectResponse)
	return resp, args.Error(1)
}

func (c *MockCommand) Inspect(ctx context.Context, ref string) (*image.InspectResponse, error) {
	args := c.Called(ctx, ref)
	resp, _ := args.Get(0).(*image.InspectResponse)
	return resp, args.Error(1)
}

func (c *MockCommand) ImageExists(ctx context.Context, ref string) (bool, error) {
	args := c.Called(ctx, ref)
	return args.Bool(0), args.Error(1)
}

// ImageBuild drains the build context so tests can assert on what was sent.
func (c *MockCommand) ImageBuild(ctx context.Context, options command.ImageBuildOptions) (string, error) {
	if options.Context != nil {
		_, _ = io.Copy(io.Discard, options.Context)
	}
	args := c.Called(ctx, options)
	return args.String(0), args.Error(1)
}

func (c *MockCommand) Run(ctx context.Context, options command.RunOptions) error {
	args := c.Called(ctx, options)
	return args.Error(0)
}

// InspectResponse builds the subset of an image inspect result botbox reads.
func InspectResponse(id string, cmd []string, labels map[string]string) *image.InspectResponse {
	return &image.InspectResponse{
		ID: id,
		Config: &dockerspec.DockerOCIImageConfig{
			ImageConfig: ocispec.ImageConfig{
				Cmd:    cmd,
				Labels: labels,
			},
		},
	}
}
