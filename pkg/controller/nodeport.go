package controller

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nodeforge/cove/pkg/apierr"
	"github.com/nodeforge/cove/pkg/bus"
	"github.com/nodeforge/cove/pkg/log"
	"github.com/nodeforge/cove/pkg/metrics"
)

// NodePortMin and NodePortMax bound the allocatable range, per spec.md
// §4.5.5.
const (
	NodePortMin = 30000
	NodePortMax = 32767
)

// nodePortEvent is the payload broadcast on bus.NodePortTopic(namespace)
// so every NodePortManager instance converges on the same allocation set
// (spec.md §4.5.5: "cluster-scoped and partition-aware").
type nodePortEvent struct {
	Port    int    `json:"port"`
	Service string `json:"service"` // "namespace/name"
}

// NodePortManager is a cluster-scoped NodePort allocator backed by an
// in-memory set of allocated ports, kept in sync across instances by
// broadcasting ALLOCATE/DEALLOCATE on a per-namespace topic and replaying
// what every instance (including itself) publishes — the same
// publish-then-consume-your-own-broadcast shape the teacher's
// events.Broker uses for local fan-out, generalized to a durable bus
// topic so a second controller-manager replica converges too.
type NodePortManager struct {
	bus    bus.Bus
	logger zerolog.Logger

	mu    sync.Mutex
	ports map[int]string // port -> "namespace/name"

	watchedMu sync.Mutex
	watched   map[string]bool
	stopCh    chan struct{}
	stopOnce  sync.Once
}

func NewNodePortManager(b bus.Bus) *NodePortManager {
	return &NodePortManager{
		bus:     b,
		logger:  log.WithComponent("nodeport-manager"),
		ports:   make(map[int]string),
		watched: make(map[string]bool),
		stopCh:  make(chan struct{}),
	}
}

// Allocate assigns a NodePort to service (namespace/name key). If
// requested is nonzero it must either be free or already held by the
// same service (idempotent re-request on update); otherwise the lowest
// free port in range is chosen.
func (m *NodePortManager) Allocate(namespace, service string, requested int) (int, error) {
	m.watchNamespace(namespace)

	m.mu.Lock()
	defer m.mu.Unlock()

	if requested != 0 {
		if holder, ok := m.ports[requested]; ok && holder != service {
			metrics.NodePortConflicts.Inc()
			return 0, apierr.Conflict("nodeport %d already allocated to %s", requested, holder)
		}
		m.ports[requested] = service
		m.broadcast(namespace, bus.KeyAllocate, requested, service)
		metrics.NodePortsAllocated.Set(float64(len(m.ports)))
		return requested, nil
	}

	for port := NodePortMin; port <= NodePortMax; port++ {
		if holder, ok := m.ports[port]; ok && holder != service {
			continue
		}
		m.ports[port] = service
		m.broadcast(namespace, bus.KeyAllocate, port, service)
		metrics.NodePortsAllocated.Set(float64(len(m.ports)))
		return port, nil
	}
	return 0, apierr.Exhausted("no free nodeport in range [%d,%d]", NodePortMin, NodePortMax)
}

// Deallocate releases every port held by service.
func (m *NodePortManager) Deallocate(namespace, service string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for port, holder := range m.ports {
		if holder == service {
			delete(m.ports, port)
			m.broadcast(namespace, bus.KeyDeallocate, port, service)
		}
	}
	metrics.NodePortsAllocated.Set(float64(len(m.ports)))
}

func (m *NodePortManager) broadcast(namespace, key string, port int, service string) {
	payload, err := json.Marshal(nodePortEvent{Port: port, Service: service})
	if err != nil {
		return
	}
	if _, err := m.bus.Publish(bus.NodePortTopic(namespace), key, payload); err != nil {
		m.logger.Error().Err(err).Msg("nodeport broadcast failed")
	}
}

// watchNamespace lazily starts a consumer loop for namespace's topic so
// this instance applies every allocation decision made anywhere,
// including its own (idempotent: re-applying an already-held mapping is a
// no-op).
func (m *NodePortManager) watchNamespace(namespace string) {
	m.watchedMu.Lock()
	defer m.watchedMu.Unlock()
	if m.watched[namespace] {
		return
	}
	m.watched[namespace] = true
	go m.consume(namespace)
}

func (m *NodePortManager) consume(namespace string) {
	consumer := m.bus.Consumer(bus.NodePortTopic(namespace), "nodeport-manager")
	ctx := context.Background()
	for {
		select {
		case <-m.stopCh:
			return
		default:
		}
		msg, ok, err := consumer.Poll(ctx)
		if err != nil {
			m.logger.Error().Err(err).Msg("nodeport consumer poll failed")
			continue
		}
		if !ok {
			continue
		}
		m.apply(msg.Key, msg.Payload)
		_ = consumer.Commit(msg)
	}
}

func (m *NodePortManager) apply(key string, payload []byte) {
	var ev nodePortEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	switch key {
	case bus.KeyAllocate:
		m.ports[ev.Port] = ev.Service
	case bus.KeyDeallocate:
		if m.ports[ev.Port] == ev.Service {
			delete(m.ports, ev.Port)
		}
	}
	metrics.NodePortsAllocated.Set(float64(len(m.ports)))
}

// Stop halts every namespace consumer goroutine this manager started.
func (m *NodePortManager) Stop() { m.stopOnce.Do(func() { close(m.stopCh) }) }
