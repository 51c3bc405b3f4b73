package engine

import (
	"context"
	"fmt"
	"io"

	"codepulse/pkg/utils/logger"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"go.uber.org/zap"
)

// dockerAPI is the part of the Docker SDK client the preparer uses.
type dockerAPI interface {
	ImageInspectWithRaw(ctx context.Context, imageID string) (types.ImageInspect, []byte, error)
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	Close() error
}

// DockerClient talks to the daemon through the SDK to preflight toolchain
// images and remove containers orphaned by a kill.
type DockerClient struct {
	api dockerAPI
}

// NewDockerClient connects using the DOCKER_* environment.
func NewDockerClient() (*DockerClient, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &DockerClient{api: cli}, nil
}

// EnsureImages pulls every image that is not present locally.
func (d *DockerClient) EnsureImages(ctx context.Context, images []string) error {
	for _, ref := range images {
		if _, _, err := d.api.ImageInspectWithRaw(ctx, ref); err == nil {
			continue
		} else if !client.IsErrNotFound(err) {
			return fmt.Errorf("inspect image %s: %w", ref, err)
		}

		logger.Info(ctx, "pulling toolchain image", zap.String("image", ref))
		reader, err := d.api.ImagePull(ctx, ref, image.PullOptions{})
		if err != nil {
			return fmt.Errorf("pull image %s: %w", ref, err)
		}
		// the pull only completes once the progress stream is drained
		_, copyErr := io.Copy(io.Discard, reader)
		_ = reader.Close()
		if copyErr != nil {
			return fmt.Errorf("pull image %s: %w", ref, copyErr)
		}
	}
	return nil
}

// RemoveContainer implements Reaper.
func (d *DockerClient) RemoveContainer(ctx context.Context, name string) error {
	err := d.api.ContainerRemove(ctx, name, container.RemoveOptions{Force: true})
	if err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("remove container %s: %w", name, err)
	}
	return nil
}

func (d *DockerClient) Close() error {
	return d.api.Close()
}
