// Package containerengine defines the narrow interface Cove's node agent
// uses to drive container lifecycles. The real engine (containerd, or
// anything else speaking the OCI runtime) is an explicit external
// collaborator (spec.md §1 Non-goals); this package only fixes the
// request/response shapes — borrowed from OCI's specs-go so a real
// implementation has a natural translation target, the same role
// specs.Mount played in the teacher's containerd runtime — plus a
// Simulation implementation that logs intended actions for environments
// with no container runtime available.
package containerengine

import (
	"context"
	"time"

	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// State mirrors the Pod lifecycle states a single container can be in
// from the engine's point of view.
type State string

const (
	StatePending  State = "PENDING"
	StateRunning  State = "RUNNING"
	StateComplete State = "COMPLETE"
	StateFailed   State = "FAILED"
)

// ContainerRequest is everything the node agent knows about a container
// it wants created, translated from types.ContainerSpec plus the
// resolved volume mounts and resource limits.
type ContainerRequest struct {
	ID        string
	Image     string
	Command   []string
	Args      []string
	Env       map[string]string
	Mounts    []specs.Mount
	Resources *specs.LinuxResources
	Process   *specs.Process
}

// Engine is the container-engine interface the node agent depends on.
// Every call carries a per-call timeout via ctx (spec.md §5: 5-60s).
type Engine interface {
	PullImage(ctx context.Context, image string) error
	CreateContainer(ctx context.Context, req ContainerRequest) (string, error)
	StartContainer(ctx context.Context, id string) error
	StopContainer(ctx context.Context, id string, timeout time.Duration) error
	DeleteContainer(ctx context.Context, id string) error
	Status(ctx context.Context, id string) (State, error)
	IP(ctx context.Context, id string) (string, error)
}
