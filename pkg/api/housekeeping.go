package api

import (
	"context"
	"fmt"
	"time"

	"github.com/nodeforge/cove/pkg/faas"
	"github.com/nodeforge/cove/pkg/store"
	"github.com/nodeforge/cove/pkg/types"
)

// nodeLivenessLoop flips any ONLINE Node whose last heartbeat is older than
// cfg.NodeTimeout to OFFLINE, every cfg.LivenessInterval (spec.md §4.1).
func (s *Server) nodeLivenessLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.LivenessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepDeadNodes()
		}
	}
}

func (s *Server) sweepDeadNodes() {
	nodes, err := store.ListNodes(s.kv)
	if err != nil {
		s.logger.Error().Err(err).Msg("list nodes for liveness sweep")
		return
	}

	now := time.Now()
	for _, node := range nodes {
		if node.Status.Phase != types.NodeOnline {
			continue
		}
		if now.Sub(node.Status.LastHeartbeat) <= s.cfg.NodeTimeout {
			continue
		}
		node.Status.Phase = types.NodeOffline
		if err := store.PutNode(s.kv, node); err != nil {
			s.logger.Error().Err(err).Str("node", node.Name).Msg("mark node offline")
			continue
		}
		s.logger.Warn().Str("node", node.Name).Msg("node missed heartbeat deadline, marked offline")
	}
}

// functionAutoscaleLoop runs under the function write-lock, comparing each
// Function's per-tick request count against the configured thresholds and
// scaling its backing Pods by one in the indicated direction, then resets
// the counter (spec.md §4.1 "Function autoscaling").
func (s *Server) functionAutoscaleLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.AutoscaleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.autoscaleFunctions()
		}
	}
}

func (s *Server) autoscaleFunctions() {
	s.fnMu.Lock()
	defer s.fnMu.Unlock()

	fns, err := store.ListAllFunctions(s.kv)
	if err != nil {
		s.logger.Error().Err(err).Msg("list functions for autoscale sweep")
		return
	}

	for _, fn := range fns {
		podCount := len(fn.Status.PodNames)
		if podCount == 0 {
			continue
		}

		switch {
		case faas.ShouldScaleUp(fn.Status.RequestsSinceTick, podCount, s.cfg.AutoscaleHighThresh):
			s.scaleFunctionUp(fn)
		case podCount > 1 && faas.ShouldScaleDown(fn.Status.RequestsSinceTick, podCount, s.cfg.AutoscaleLowThresh):
			s.scaleFunctionDown(fn)
		}

		fn.Status.RequestsSinceTick = 0
		if err := store.PutFunction(s.kv, fn); err != nil {
			s.logger.Error().Err(err).Str("function", fn.Name).Msg("reset function request counter")
		}
	}
}

func (s *Server) scaleFunctionUp(fn *types.Function) {
	podName := fmt.Sprintf("%s-%d", fn.Name, len(fn.Status.PodNames)+1)
	pod := &types.Pod{
		ObjectMeta: types.ObjectMeta{Namespace: fn.Namespace, Name: podName, Labels: map[string]string{"cove.io/function": fn.Name}},
		Spec: types.PodSpec{Containers: []types.ContainerSpec{{
			Name:  fn.Name,
			Image: fn.Status.Image,
		}}},
	}
	if err := s.createPod(pod); err != nil {
		s.logger.Error().Err(err).Str("function", fn.Name).Msg("autoscale up")
		return
	}
	fn.Status.PodNames = append(fn.Status.PodNames, podName)
	s.logger.Info().Str("function", fn.Name).Int("pods", len(fn.Status.PodNames)).Msg("scaled function up")
}

func (s *Server) scaleFunctionDown(fn *types.Function) {
	last := fn.Status.PodNames[len(fn.Status.PodNames)-1]
	pod, err := store.GetPod(s.kv, fn.Namespace, last)
	if err != nil {
		fn.Status.PodNames = fn.Status.PodNames[:len(fn.Status.PodNames)-1]
		return
	}
	if err := s.deletePod(pod); err != nil {
		s.logger.Error().Err(err).Str("function", fn.Name).Msg("autoscale down")
		return
	}
	fn.Status.PodNames = fn.Status.PodNames[:len(fn.Status.PodNames)-1]
	s.logger.Info().Str("function", fn.Name).Int("pods", len(fn.Status.PodNames)).Msg("scaled function down")
}
