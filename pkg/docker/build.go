package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/pkg/jsonmessage"

	"github.com/cat21/botbox/pkg/docker/command"
	"github.com/cat21/botbox/pkg/util/console"
)

type buildResult struct {
	ID string `json:"ID"`
}

func (c *apiClient) ImageBuild(ctx context.Context, options command.ImageBuildOptions) (string, error) {
	console.Debugf("=== APIClient.ImageBuild %s", options.ImageName)

	if options.Context == nil {
		return "", fmt.Errorf("no build context for %s", options.ImageName)
	}

	out := outputOrStderr(options.Output)
	var imageID string

	err := RetryWithBackoff(ctx, c.options.retryAttempts, c.options.retryBackoff, func(attempt int) (bool, error) {
		if attempt > 0 {
			console.Infof("Retrying build of %s (attempt %d)", options.ImageName, attempt+1)
		}
		if _, err := options.Context.Seek(0, io.SeekStart); err != nil {
			return false, fmt.Errorf("failed to rewind build context: %w", err)
		}

		resp, err := c.client.ImageBuild(ctx, options.Context, build.ImageBuildOptions{
			Tags:        []string{options.ImageName},
			Dockerfile:  options.Dockerfile,
			Labels:      options.Labels,
			NoCache:     options.NoCache,
			PullParent:  options.PullParent,
			Remove:      true,
			ForceRemove: true,
			Version:     build.BuilderV1,
		})
		if err != nil {
			return isTransientError(err), fmt.Errorf("failed to build %s: %w", options.ImageName, err)
		}
		defer resp.Body.Close()

		aux := func(msg jsonmessage.JSONMessage) {
			if msg.Aux == nil {
				return
			}
			var result buildResult
			if err := json.Unmarshal(*msg.Aux, &result); err != nil {
				console.Debugf("ignoring build aux message: %s", err)
				return
			}
			if result.ID != "" {
				imageID = result.ID
			}
		}
		if err := displayJSONMessages(resp.Body, out, options.ProgressOutput, aux); err != nil {
			return isTransientError(err), fmt.Errorf("failed to build %s: %w", options.ImageName, err)
		}
		return false, nil
	})
	if err != nil {
		return "", err
	}

	if imageID == "" {
		// Older daemons only report the ID in the stream text.
		inspect, err := c.Inspect(ctx, options.ImageName)
		if err != nil {
			return "", fmt.Errorf("failed to inspect built image %s: %w", options.ImageName, err)
		}
		imageID = inspect.ID
	}
	return imageID, nil
}
