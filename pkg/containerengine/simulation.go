package containerengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nodeforge/cove/pkg/log"
)

// Simulation is an Engine that never touches a real container runtime: it
// logs the action it would have taken and tracks container state
// in-memory. It is the default engine for development and for any node
// that was not configured with a real one, mirroring the NAT proxy's
// and volume driver's own "simulation" backends (spec.md §9).
type Simulation struct {
	mu         sync.Mutex
	containers map[string]State
	ips        map[string]string
	nextIP     int
}

// NewSimulation creates an empty simulated engine.
func NewSimulation() *Simulation {
	return &Simulation{
		containers: make(map[string]State),
		ips:        make(map[string]string),
		nextIP:     2,
	}
}

func (s *Simulation) PullImage(ctx context.Context, image string) error {
	log.WithComponent("containerengine-sim").Debug().Str("image", image).Msg("simulated image pull")
	return nil
}

func (s *Simulation) CreateContainer(ctx context.Context, req ContainerRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.containers[req.ID]; exists {
		return "", fmt.Errorf("container %s already exists", req.ID)
	}
	s.containers[req.ID] = StatePending
	s.ips[req.ID] = fmt.Sprintf("10.244.0.%d", s.nextIP)
	s.nextIP++

	log.WithComponent("containerengine-sim").Info().
		Str("id", req.ID).
		Str("image", req.Image).
		Int("mounts", len(req.Mounts)).
		Msg("simulated container create")
	return req.ID, nil
}

func (s *Simulation) StartContainer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.containers[id]; !exists {
		return fmt.Errorf("container %s not found", id)
	}
	s.containers[id] = StateRunning
	log.WithComponent("containerengine-sim").Info().Str("id", id).Msg("simulated container start")
	return nil
}

func (s *Simulation) StopContainer(ctx context.Context, id string, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.containers[id]; !exists {
		return nil
	}
	s.containers[id] = StateComplete
	log.WithComponent("containerengine-sim").Info().Str("id", id).Dur("timeout", timeout).Msg("simulated container stop")
	return nil
}

func (s *Simulation) DeleteContainer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.containers, id)
	delete(s.ips, id)
	log.WithComponent("containerengine-sim").Info().Str("id", id).Msg("simulated container delete")
	return nil
}

func (s *Simulation) Status(ctx context.Context, id string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, exists := s.containers[id]
	if !exists {
		return StateFailed, fmt.Errorf("container %s not found", id)
	}
	return state, nil
}

func (s *Simulation) IP(ctx context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ip, exists := s.ips[id]
	if !exists {
		return "", fmt.Errorf("container %s not found", id)
	}
	return ip, nil
}
