package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nodeforge/cove/pkg/client"
	"github.com/nodeforge/cove/pkg/log"
	"github.com/nodeforge/cove/pkg/types"
)

// DefaultHPAInterval is how often the HPAController compares load
// against thresholds.
const DefaultHPAInterval = 5 * time.Second

// hpaCooldown is the minimum time between two scaling actions on the
// same HPA, per spec.md §4.5 ("respects a cooldown between actions").
const hpaCooldown = 30 * time.Second

// HPAController reads each HorizontalPodAutoscaler's target ReplicaSet's
// owned Pods, averages their pseudo-metric Load, and nudges the desired
// replica count up or down by one, bounded by [min,max] and rate-limited
// by a cooldown.
type HPAController struct {
	client *client.Client
	logger zerolog.Logger
	stopper
}

func NewHPAController(c *client.Client) *HPAController {
	return &HPAController{
		client:  c,
		logger:  log.WithComponent("hpa-controller"),
		stopper: newStopper(),
	}
}

func (hc *HPAController) Start(ctx context.Context) {
	once(hc.logger, "hpa", func() error { return hc.reconcile(ctx) })
	go runLoop(ctx, hc.stopCh, "hpa", DefaultHPAInterval, hc.logger, hc.reconcile)
}

func (hc *HPAController) Stop() { hc.stop() }

func (hc *HPAController) reconcile(ctx context.Context) error {
	hpas, err := hc.client.ListAllHPAs(ctx)
	if err != nil {
		return fmt.Errorf("list hpas: %w", err)
	}
	for _, h := range hpas {
		if err := hc.reconcileOne(ctx, h); err != nil {
			hc.logger.Error().Err(err).
				Str("namespace", h.Namespace).Str("hpa", h.Name).
				Msg("hpa reconcile failed")
		}
	}
	return nil
}

func (hc *HPAController) reconcileOne(ctx context.Context, h *types.HorizontalPodAutoscaler) error {
	if h.Spec.Target.Kind != "ReplicaSet" {
		return fmt.Errorf("unsupported hpa target kind %q", h.Spec.Target.Kind)
	}
	if time.Since(h.Status.LastActionAt) < hpaCooldown {
		return nil
	}

	rs, err := hc.client.GetReplicaSet(ctx, h.Namespace, h.Spec.Target.Name)
	if err != nil {
		return fmt.Errorf("get target replicaset: %w", err)
	}

	load, ok, err := hc.averageLoad(ctx, rs)
	if err != nil {
		return fmt.Errorf("average load: %w", err)
	}
	if !ok {
		return nil // no running pods yet, nothing to measure
	}

	desired := rs.Spec.Replicas
	switch {
	case load > h.Spec.HighLoad && desired < h.Spec.MaxReplicas:
		desired++
	case load < h.Spec.LowLoad && desired > h.Spec.MinReplicas:
		desired--
	default:
		return nil
	}

	rs.Spec.Replicas = desired
	rs.Status.HPAControlled = true
	if _, err := hc.client.UpdateReplicaSet(ctx, rs); err != nil {
		return fmt.Errorf("update replicaset replicas: %w", err)
	}

	h.Status.CurrentReplicas = desired
	h.Status.LastActionAt = time.Now()
	_, err = hc.client.UpdateHPA(ctx, h)
	return err
}

// averageLoad reads the Load pseudo-metric (spec.md §4.5) off every
// running Pod owned by rs and returns their mean. ok is false when there
// are no running owned Pods to measure yet.
func (hc *HPAController) averageLoad(ctx context.Context, rs *types.ReplicaSet) (float64, bool, error) {
	pods, err := hc.client.ListPods(ctx, rs.Namespace)
	if err != nil {
		return 0, false, err
	}

	var sum float64
	var n int
	for _, p := range pods {
		if p.Status.Phase != types.PodRunning {
			continue
		}
		if !labelsSuperset(p.Labels, rs.Spec.Selector) {
			continue
		}
		sum += p.Status.Load
		n++
	}
	if n == 0 {
		return 0, false, nil
	}
	return sum / float64(n), true, nil
}
