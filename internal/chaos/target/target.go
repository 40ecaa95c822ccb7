// Package target provides Chaos Conductor injection targets: a Docker
// container backend for subsystems deployed as separate containers, and a
// lightweight function-adapter backend for in-process subsystems.
package target

import (
	"context"
	"fmt"

	"github.com/docker/docker/client"
)

// DockerTarget injects a hazard into a running container by pausing it, used
// to simulate a subsystem becoming unavailable for the hazard's duration.
type DockerTarget struct {
	Client      *client.Client
	ContainerID string
}

// NewDockerTarget wraps an existing Docker client for containerID.
func NewDockerTarget(cli *client.Client, containerID string) *DockerTarget {
	return &DockerTarget{Client: cli, ContainerID: containerID}
}

// Inject implements chaos.Target. The only supported hazard is "pause".
func (d *DockerTarget) Inject(ctx context.Context, hazard string, _ map[string]any) error {
	switch hazard {
	case "pause":
		if err := d.Client.ContainerPause(ctx, d.ContainerID); err != nil {
			return fmt.Errorf("target: pause container %s: %w", d.ContainerID, err)
		}
		return nil
	default:
		return fmt.Errorf("target: docker target does not support hazard %q", hazard)
	}
}

// Restore implements chaos.Target.
func (d *DockerTarget) Restore(ctx context.Context) error {
	if err := d.Client.ContainerUnpause(ctx, d.ContainerID); err != nil {
		return fmt.Errorf("target: unpause container %s: %w", d.ContainerID, err)
	}
	return nil
}

// FuncTarget adapts plain functions to the chaos.Target contract. It backs
// the canonical experiments that hazard an in-process subsystem (a cache
// tier, the outbox, the LLM transducer client, the HRC) with no separate
// container boundary to pause.
type FuncTarget struct {
	InjectFunc  func(ctx context.Context, hazard string, params map[string]any) error
	RestoreFunc func(ctx context.Context) error
}

// Inject implements chaos.Target.
func (f *FuncTarget) Inject(ctx context.Context, hazard string, params map[string]any) error {
	if f.InjectFunc == nil {
		return nil
	}
	return f.InjectFunc(ctx, hazard, params)
}

// Restore implements chaos.Target.
func (f *FuncTarget) Restore(ctx context.Context) error {
	if f.RestoreFunc == nil {
		return nil
	}
	return f.RestoreFunc(ctx)
}
