package docker

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/container"
	dc "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/cat21/botbox/pkg/docker/command"
	"github.com/cat21/botbox/pkg/util/console"
)

// stopTimeout is how long a bot gets to shut down after SIGTERM when the run is interrupted.
const stopTimeout = 10

func containerConfig(options command.RunOptions) (*container.Config, *container.HostConfig) {
	cfg := &container.Config{
		Image:        options.Image,
		Env:          options.Env,
		WorkingDir:   options.Workdir,
		AttachStdout: true,
		AttachStderr: true,
	}
	if len(options.Args) > 0 {
		cfg.Cmd = options.Args
	}
	if options.Stdin != nil {
		cfg.AttachStdin = true
		cfg.OpenStdin = true
		cfg.StdinOnce = true
	}

	hostCfg := &container.HostConfig{AutoRemove: true}
	for _, v := range options.Volumes {
		hostCfg.Binds = append(hostCfg.Binds, v.Source+":"+v.Destination)
	}
	return cfg, hostCfg
}

func (c *apiClient) Run(ctx context.Context, options command.RunOptions) error {
	console.Debugf("=== APIClient.Run %s %v", options.Image, options.Args)

	cfg, hostCfg := containerConfig(options)
	created, err := c.client.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if err != nil {
		if dc.IsErrNotFound(err) {
			return &command.NotFoundError{Ref: options.Image, Object: "image"}
		}
		return fmt.Errorf("failed to create container for %s: %w", options.Image, err)
	}
	for _, warning := range created.Warnings {
		console.Warn(warning)
	}

	attach, err := c.client.ContainerAttach(ctx, created.ID, container.AttachOptions{
		Stream: true,
		Stdin:  options.Stdin != nil,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return fmt.Errorf("failed to attach to container %s: %w", created.ID, err)
	}
	defer attach.Close()

	// Registered before start so an AutoRemove container cannot exit unobserved.
	statusCh, errCh := c.client.ContainerWait(ctx, created.ID, container.WaitConditionNextExit)

	outputDone := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(writerOrDiscard(options.Stdout), writerOrDiscard(options.Stderr), attach.Reader)
		outputDone <- err
	}()
	if options.Stdin != nil {
		go func() {
			_, _ = io.Copy(attach.Conn, options.Stdin)
			_ = attach.CloseWrite()
		}()
	}

	if err := c.client.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container %s: %w", created.ID, err)
	}

	select {
	case status := <-statusCh:
		if err := <-outputDone; err != nil {
			console.Debugf("error copying container output: %s", err)
		}
		if status.Error != nil {
			return fmt.Errorf("error waiting for container %s: %s", created.ID, status.Error.Message)
		}
		if status.StatusCode != 0 {
			return &command.ExitError{Image: options.Image, Code: status.StatusCode}
		}
		return nil
	case err := <-errCh:
		if ctx.Err() != nil {
			return c.stop(ctx, created.ID, options.Image)
		}
		return fmt.Errorf("error waiting for container %s: %w", created.ID, err)
	case <-ctx.Done():
		return c.stop(ctx, created.ID, options.Image)
	}
}

func (c *apiClient) stop(ctx context.Context, containerID, image string) error {
	console.Infof("Stopping %s", image)
	timeout := stopTimeout
	if err := c.client.ContainerStop(context.WithoutCancel(ctx), containerID, container.StopOptions{Timeout: &timeout}); err != nil && !dc.IsErrNotFound(err) {
		console.Warnf("failed to stop container %s: %s", containerID, err)
	}
	return ctx.Err()
}

func writerOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
