package controller

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeforge/cove/pkg/types"
)

func setupHighLoadReplicaSet(t *testing.T, c interface {
	CreateReplicaSet(ctx context.Context, rs *types.ReplicaSet) (*types.ReplicaSet, error)
	CreatePod(ctx context.Context, pod *types.Pod) (*types.Pod, error)
	UpdatePodStatus(ctx context.Context, ns, name string, status types.PodStatus) (*types.PodStatus, error)
}, ctx context.Context) {
	_, err := c.CreateReplicaSet(ctx, &types.ReplicaSet{
		ObjectMeta: types.ObjectMeta{Namespace: "default", Name: "web"},
		Spec: types.ReplicaSetSpec{
			Replicas: 1,
			Selector: map[string]string{"app": "web"},
			Template: types.PodSpec{Containers: []types.ContainerSpec{{Name: "web", Image: "nginx"}}},
		},
	})
	require.NoError(t, err)

	_, err = c.CreatePod(ctx, &types.Pod{
		ObjectMeta: types.ObjectMeta{Namespace: "default", Name: "web-1", Labels: map[string]string{"app": "web"}},
	})
	require.NoError(t, err)

	_, err = c.UpdatePodStatus(ctx, "default", "web-1", types.PodStatus{Phase: types.PodRunning, Load: 0.95})
	require.NoError(t, err)
}

func TestHPAControllerScalesUpUnderHighLoad(t *testing.T) {
	c, _ := newHarness(t)
	ctx := context.Background()
	setupHighLoadReplicaSet(t, c, ctx)

	_, err := c.CreateHPA(ctx, &types.HorizontalPodAutoscaler{
		ObjectMeta: types.ObjectMeta{Namespace: "default", Name: "web-hpa"},
		Spec: types.HPASpec{
			Target:      types.HPATarget{Kind: "ReplicaSet", Name: "web"},
			MinReplicas: 1,
			MaxReplicas: 5,
			HighLoad:    0.8,
			LowLoad:     0.2,
		},
	})
	require.NoError(t, err)

	hc := NewHPAController(c)
	require.NoError(t, hc.reconcile(ctx))

	rs, err := c.GetReplicaSet(ctx, "default", "web")
	require.NoError(t, err)
	assert.Equal(t, 2, rs.Spec.Replicas)
	assert.True(t, rs.Status.HPAControlled)
}

func TestHPAControllerRespectsMaxReplicas(t *testing.T) {
	c, _ := newHarness(t)
	ctx := context.Background()
	setupHighLoadReplicaSet(t, c, ctx)

	_, err := c.CreateHPA(ctx, &types.HorizontalPodAutoscaler{
		ObjectMeta: types.ObjectMeta{Namespace: "default", Name: "web-hpa"},
		Spec: types.HPASpec{
			Target:      types.HPATarget{Kind: "ReplicaSet", Name: "web"},
			MinReplicas: 1,
			MaxReplicas: 1,
			HighLoad:    0.8,
			LowLoad:     0.2,
		},
	})
	require.NoError(t, err)

	hc := NewHPAController(c)
	require.NoError(t, hc.reconcile(ctx))

	rs, err := c.GetReplicaSet(ctx, "default", "web")
	require.NoError(t, err)
	assert.Equal(t, 1, rs.Spec.Replicas)
}
