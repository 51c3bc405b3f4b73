package engine

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/errdefs"
)

type fakeDockerAPI struct {
	present  map[string]bool
	pulled   []string
	removed  []string
	inspectE error
}

func (f *fakeDockerAPI) ImageInspectWithRaw(_ context.Context, ref string) (types.ImageInspect, []byte, error) {
	if f.inspectE != nil {
		return types.ImageInspect{}, nil, f.inspectE
	}
	if f.present[ref] {
		return types.ImageInspect{ID: ref}, nil, nil
	}
	return types.ImageInspect{}, nil, errdefs.NotFound(errors.New("no such image"))
}

func (f *fakeDockerAPI) ImagePull(_ context.Context, ref string, _ image.PullOptions) (io.ReadCloser, error) {
	f.pulled = append(f.pulled, ref)
	return io.NopCloser(strings.NewReader(`{"status":"done"}`)), nil
}

func (f *fakeDockerAPI) ContainerRemove(_ context.Context, name string, opts container.RemoveOptions) error {
	if !opts.Force {
		return errors.New("expected force removal")
	}
	f.removed = append(f.removed, name)
	return nil
}

func (f *fakeDockerAPI) Close() error { return nil }

func TestEnsureImagesPullsMissing(t *testing.T) {
	api := &fakeDockerAPI{present: map[string]bool{"python:3.9-alpine": true}}
	d := &DockerClient{api: api}

	if err := d.EnsureImages(context.Background(), []string{"python:3.9-alpine", "gcc:latest"}); err != nil {
		t.Fatalf("ensure images failed: %v", err)
	}
	if len(api.pulled) != 1 || api.pulled[0] != "gcc:latest" {
		t.Fatalf("expected only gcc to be pulled, got %v", api.pulled)
	}
}

func TestEnsureImagesInspectFailure(t *testing.T) {
	api := &fakeDockerAPI{inspectE: errors.New("daemon down")}
	d := &DockerClient{api: api}
	if err := d.EnsureImages(context.Background(), []string{"node:20-alpine"}); err == nil {
		t.Fatalf("expected inspect error to be returned")
	}
	if len(api.pulled) != 0 {
		t.Fatalf("expected no pulls, got %v", api.pulled)
	}
}

func TestRemoveContainer(t *testing.T) {
	api := &fakeDockerAPI{}
	d := &DockerClient{api: api}
	if err := d.RemoveContainer(context.Background(), "codepulse-1"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if len(api.removed) != 1 || api.removed[0] != "codepulse-1" {
		t.Fatalf("unexpected removals %v", api.removed)
	}
}
