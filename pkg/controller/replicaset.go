package controller

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/nodeforge/cove/pkg/apierr"
	"github.com/nodeforge/cove/pkg/client"
	"github.com/nodeforge/cove/pkg/log"
	"github.com/nodeforge/cove/pkg/types"
)

// DefaultReplicaSetInterval is how often the ReplicaSetController
// compares observed to desired replica counts.
const DefaultReplicaSetInterval = 5 * time.Second

// ReplicaSetController keeps each ReplicaSet's owned Pods at its desired
// replica count: creates Pods from the template when short and deletes
// the excess (lowest-index first) when over. The cascade of a ReplicaSet
// delete to its owned Pods and any HPA still targeting it is done by the
// API server's delete handler, not by this controller.
type ReplicaSetController struct {
	client *client.Client
	logger zerolog.Logger
	stopper
}

func NewReplicaSetController(c *client.Client) *ReplicaSetController {
	return &ReplicaSetController{
		client:  c,
		logger:  log.WithComponent("replicaset-controller"),
		stopper: newStopper(),
	}
}

func (rc *ReplicaSetController) Start(ctx context.Context) {
	once(rc.logger, "replicaset", func() error { return rc.reconcile(ctx) })
	go runLoop(ctx, rc.stopCh, "replicaset", DefaultReplicaSetInterval, rc.logger, rc.reconcile)
}

func (rc *ReplicaSetController) Stop() { rc.stop() }

func (rc *ReplicaSetController) reconcile(ctx context.Context) error {
	rss, err := rc.client.ListAllReplicaSets(ctx)
	if err != nil {
		return fmt.Errorf("list replicasets: %w", err)
	}
	for _, rs := range rss {
		if err := rc.reconcileOne(ctx, rs); err != nil {
			rc.logger.Error().Err(err).
				Str("namespace", rs.Namespace).Str("replicaset", rs.Name).
				Msg("replicaset reconcile failed")
		}
	}
	return nil
}

func (rc *ReplicaSetController) reconcileOne(ctx context.Context, rs *types.ReplicaSet) error {
	pods, err := rc.ownedPods(ctx, rs)
	if err != nil {
		return err
	}

	observed := len(pods)
	desired := rs.Spec.Replicas

	switch {
	case observed < desired:
		for i := 0; i < desired-observed; i++ {
			if err := rc.createPod(ctx, rs); err != nil {
				return fmt.Errorf("create pod: %w", err)
			}
		}
	case observed > desired:
		sort.Slice(pods, func(i, j int) bool { return pods[i].Name < pods[j].Name })
		for i := 0; i < observed-desired; i++ {
			if err := rc.client.DeletePod(ctx, pods[i].Namespace, pods[i].Name); err != nil && !apierr.IsNotFound(err) {
				return fmt.Errorf("delete pod %s: %w", pods[i].Name, err)
			}
		}
	}

	pods, err = rc.ownedPods(ctx, rs)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(pods))
	for _, p := range pods {
		names = append(names, p.Name)
	}
	rs.Status.ObservedReplicas = len(pods)
	rs.Status.OwnedPods = names
	_, err = rc.client.UpdateReplicaSet(ctx, rs)
	return err
}

// ownedPods returns the Pods in the ReplicaSet's namespace whose labels
// are a superset of its selector and that are not terminated, the same
// ownership test the teacher uses for its worker-pool membership checks
// generalized from node workers to label selectors.
func (rc *ReplicaSetController) ownedPods(ctx context.Context, rs *types.ReplicaSet) ([]*types.Pod, error) {
	pods, err := rc.client.ListPods(ctx, rs.Namespace)
	if err != nil {
		return nil, fmt.Errorf("list pods: %w", err)
	}
	var owned []*types.Pod
	for _, p := range pods {
		if p.Status.Phase == types.PodTerminated {
			continue
		}
		if labelsSuperset(p.Labels, rs.Spec.Selector) {
			owned = append(owned, p)
		}
	}
	return owned, nil
}

func (rc *ReplicaSetController) createPod(ctx context.Context, rs *types.ReplicaSet) error {
	name := fmt.Sprintf("%s-%s", rs.Name, randSuffix())
	labels := make(map[string]string, len(rs.Spec.Selector))
	for k, v := range rs.Spec.Selector {
		labels[k] = v
	}
	pod := &types.Pod{
		ObjectMeta: types.ObjectMeta{
			Namespace: rs.Namespace,
			Name:      name,
			Labels:    labels,
		},
		Spec: rs.Spec.Template,
	}
	_, err := rc.client.CreatePod(ctx, pod)
	return err
}

func labelsSuperset(labels, selector map[string]string) bool {
	for k, v := range selector {
		if labels[k] != v {
			return false
		}
	}
	return true
}
