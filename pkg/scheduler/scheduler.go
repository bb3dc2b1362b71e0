package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nodeforge/cove/pkg/apierr"
	"github.com/nodeforge/cove/pkg/bus"
	"github.com/nodeforge/cove/pkg/client"
	"github.com/nodeforge/cove/pkg/log"
	"github.com/nodeforge/cove/pkg/types"
)

const consumerGroup = "scheduler"

// Scheduler consumes the scheduler bus topic and binds each Pod it sees to
// one of the Nodes eligible to run it.
type Scheduler struct {
	client *client.Client
	bus    bus.Bus
	logger zerolog.Logger

	stopCh chan struct{}
	once   sync.Once
}

func NewScheduler(c *client.Client, b bus.Bus) *Scheduler {
	return &Scheduler{
		client: c,
		bus:    b,
		logger: log.WithComponent("scheduler"),
		stopCh: make(chan struct{}),
	}
}

// Start begins the scheduler's consume loop.
func (s *Scheduler) Start() {
	go s.run()
}

// Stop halts the scheduler loop. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stopCh) })
}

func (s *Scheduler) run() {
	consumer := s.bus.Consumer(bus.TopicScheduler, consumerGroup)
	ctx := context.Background()

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		msg, ok, err := consumer.Poll(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("scheduler poll failed")
			continue
		}
		if !ok {
			continue
		}

		if err := s.handleMessage(ctx, msg); err != nil {
			s.logger.Error().Err(err).Msg("scheduling cycle failed")
			continue
		}
		if err := consumer.Commit(msg); err != nil {
			s.logger.Error().Err(err).Msg("failed to commit scheduler offset")
		}
	}
}

// handleMessage schedules a single Pod. It returns nil (and therefore lets
// the caller commit the offset) both on a successful bind and on a bind
// that failed because the Pod no longer exists — everything else is
// retried on redelivery, per spec.md §4.2.
func (s *Scheduler) handleMessage(ctx context.Context, msg *bus.Message) error {
	var pod types.Pod
	if err := json.Unmarshal(msg.Payload, &pod); err != nil {
		return fmt.Errorf("decode scheduled pod: %w", err)
	}

	nodes, err := s.client.ListNodes(ctx)
	if err != nil {
		return fmt.Errorf("list nodes: %w", err)
	}

	candidates := filterCandidates(nodes, pod.Spec.NodeSelector)
	if len(candidates) == 0 {
		// No eligible node yet; the Pod stays CREATING and is redelivered
		// on the next poll since we don't commit on this path.
		return fmt.Errorf("no candidate node for pod %s/%s", pod.Namespace, pod.Name)
	}

	node := candidates[rand.IntN(len(candidates))]

	if err := s.client.BindPod(ctx, pod.Namespace, pod.Name, node.Name); err != nil {
		if apierr.IsNotFound(err) {
			s.logger.Debug().
				Str("namespace", pod.Namespace).
				Str("pod", pod.Name).
				Msg("pod deleted before bind, dropping")
			return nil
		}
		return fmt.Errorf("bind pod %s/%s to %s: %w", pod.Namespace, pod.Name, node.Name, err)
	}

	s.logger.Info().
		Str("namespace", pod.Namespace).
		Str("pod", pod.Name).
		Str("node", node.Name).
		Msg("bound pod to node")
	return nil
}

// filterCandidates returns the ONLINE nodes whose labels are a superset of
// selector.
func filterCandidates(nodes []*types.Node, selector map[string]string) []*types.Node {
	var candidates []*types.Node
	for _, node := range nodes {
		if node.Status.Phase != types.NodeOnline {
			continue
		}
		if !labelsSuperset(node.Labels, selector) {
			continue
		}
		candidates = append(candidates, node)
	}
	return candidates
}

func labelsSuperset(labels, selector map[string]string) bool {
	for k, v := range selector {
		if labels[k] != v {
			return false
		}
	}
	return true
}
