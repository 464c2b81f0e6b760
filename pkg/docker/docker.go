package docker

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/docker/docker/api/types/image"
	dc "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/moby/term"

	"github.com/cat21/botbox/pkg/docker/command"
	"github.com/cat21/botbox/pkg/util/console"
)

const (
	defaultRetryAttempts = 3
	defaultRetryBackoff  = 2 * time.Second
)

// NewClient connects to the Docker daemon configured by the environment (DOCKER_HOST etc)
// and checks that it is reachable.
func NewClient(ctx context.Context, opts ...Option) (command.Command, error) {
	options := clientOptions{
		retryAttempts: defaultRetryAttempts,
		retryBackoff:  defaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(&options)
	}

	clientOpts := []dc.Opt{dc.FromEnv, dc.WithAPIVersionNegotiation()}
	if options.host != "" {
		clientOpts = append(clientOpts, dc.WithHost(options.host))
	}

	client, err := dc.NewClientWithOpts(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("error creating docker client: %w", err)
	}

	if _, err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("error pinging docker daemon: %w", err)
	}

	return &apiClient{client: client, options: options}, nil
}

type apiClient struct {
	client  dc.APIClient
	options clientOptions
}

func (c *apiClient) Pull(ctx context.Context, imageRef string, force bool) (*image.InspectResponse, error) {
	console.Debugf("=== APIClient.Pull %s force:%t", imageRef, force)

	if !force {
		inspect, err := c.Inspect(ctx, imageRef)
		if err == nil {
			return inspect, nil
		} else if !command.IsNotFoundError(err) {
			// Pull will probably fail too, but its error is more useful to the caller.
			console.Warnf("failed to inspect image before pulling %q: %s", imageRef, err)
		}
	}

	err := RetryWithBackoff(ctx, c.options.retryAttempts, c.options.retryBackoff, func(attempt int) (bool, error) {
		if attempt > 0 {
			console.Debugf("retrying pull of %s (attempt %d)", imageRef, attempt+1)
		}
		output, err := c.client.ImagePull(ctx, imageRef, image.PullOptions{})
		if err != nil {
			if dc.IsErrNotFound(err) || isImageNotFoundError(err) {
				return false, &command.NotFoundError{Ref: imageRef, Object: "image"}
			}
			if isAuthorizationFailedError(err) {
				return false, fmt.Errorf("failed to pull image %q: %w", imageRef, command.ErrAuthorizationFailed)
			}
			return isTransientError(err), fmt.Errorf("failed to pull image %q: %w", imageRef, err)
		}
		defer output.Close()

		if err := displayJSONMessages(output, console.ErrWriter(), "auto", nil); err != nil {
			return isTransientError(err), fmt.Errorf("failed to pull image %q: %w", imageRef, err)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	inspect, err := c.Inspect(ctx, imageRef)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect image after pulling %q: %w", imageRef, err)
	}
	return inspect, nil
}

func (c *apiClient) Inspect(ctx context.Context, ref string) (*image.InspectResponse, error) {
	console.Debugf("=== APIClient.Inspect %s", ref)

	inspect, err := c.client.ImageInspect(ctx, ref)
	if err != nil {
		if dc.IsErrNotFound(err) {
			return nil, &command.NotFoundError{Ref: ref, Object: "image"}
		}
		return nil, fmt.Errorf("error inspecting image: %w", err)
	}
	return &inspect, nil
}

func (c *apiClient) ImageExists(ctx context.Context, ref string) (bool, error) {
	console.Debugf("=== APIClient.ImageExists %s", ref)

	_, err := c.Inspect(ctx, ref)
	if err != nil {
		if command.IsNotFoundError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// displayJSONMessages renders a daemon progress stream. In quiet mode the stream is
// still drained so errors embedded in it are reported.
func displayJSONMessages(in io.Reader, out io.Writer, mode string, aux func(jsonmessage.JSONMessage)) error {
	if mode == "quiet" {
		out = io.Discard
	}
	fd, isTerminal := term.GetFdInfo(out)
	if mode == "plain" {
		isTerminal = false
	}
	return jsonmessage.DisplayJSONMessagesStream(in, out, fd, isTerminal, aux)
}

func outputOrStderr(w io.Writer) io.Writer {
	if w == nil {
		return os.Stderr
	}
	return w
}
