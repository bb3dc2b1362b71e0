package controller

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeforge/cove/pkg/types"
)

func TestReplicaSetControllerCreatesMissingPods(t *testing.T) {
	c, _ := newHarness(t)
	ctx := context.Background()

	_, err := c.CreateReplicaSet(ctx, &types.ReplicaSet{
		ObjectMeta: types.ObjectMeta{Namespace: "default", Name: "web"},
		Spec: types.ReplicaSetSpec{
			Replicas: 3,
			Selector: map[string]string{"app": "web"},
			Template: types.PodSpec{Containers: []types.ContainerSpec{{Name: "web", Image: "nginx"}}},
		},
	})
	require.NoError(t, err)

	rc := NewReplicaSetController(c)
	require.NoError(t, rc.reconcile(ctx))

	pods, err := c.ListPods(ctx, "default")
	require.NoError(t, err)
	assert.Len(t, pods, 3)

	rs, err := c.GetReplicaSet(ctx, "default", "web")
	require.NoError(t, err)
	assert.Equal(t, 3, rs.Status.ObservedReplicas)
}

func TestReplicaSetControllerDeletesExcessPods(t *testing.T) {
	c, _ := newHarness(t)
	ctx := context.Background()

	_, err := c.CreateReplicaSet(ctx, &types.ReplicaSet{
		ObjectMeta: types.ObjectMeta{Namespace: "default", Name: "web"},
		Spec: types.ReplicaSetSpec{
			Replicas: 1,
			Selector: map[string]string{"app": "web"},
			Template: types.PodSpec{Containers: []types.ContainerSpec{{Name: "web", Image: "nginx"}}},
		},
	})
	require.NoError(t, err)

	for _, name := range []string{"web-a", "web-b", "web-c"} {
		_, err := c.CreatePod(ctx, &types.Pod{
			ObjectMeta: types.ObjectMeta{Namespace: "default", Name: name, Labels: map[string]string{"app": "web"}},
		})
		require.NoError(t, err)
	}

	rc := NewReplicaSetController(c)
	require.NoError(t, rc.reconcile(ctx))
	require.NoError(t, rc.reconcile(ctx)) // idempotent second pass

	pods, err := c.ListPods(ctx, "default")
	require.NoError(t, err)
	require.Len(t, pods, 1)
}
