package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeforge/cove/pkg/store"
	"github.com/nodeforge/cove/pkg/types"
)

func TestSweepDeadNodesMarksStaleNodeOffline(t *testing.T) {
	s := newTestServer(t)
	s.cfg.NodeTimeout = 1 * time.Second

	require.NoError(t, store.CreateNode(s.kv, &types.Node{
		Name:   "worker-1",
		Status: types.NodeStatus{Phase: types.NodeOnline, LastHeartbeat: time.Now().Add(-5 * time.Second)},
	}))
	require.NoError(t, store.CreateNode(s.kv, &types.Node{
		Name:   "worker-2",
		Status: types.NodeStatus{Phase: types.NodeOnline, LastHeartbeat: time.Now()},
	}))

	s.sweepDeadNodes()

	stale, err := store.GetNode(s.kv, "worker-1")
	require.NoError(t, err)
	assert.Equal(t, types.NodeOffline, stale.Status.Phase)

	fresh, err := store.GetNode(s.kv, "worker-2")
	require.NoError(t, err)
	assert.Equal(t, types.NodeOnline, fresh.Status.Phase)
}

func TestAutoscaleFunctionsScalesUpUnderHighLoad(t *testing.T) {
	s := newTestServer(t)
	s.cfg.AutoscaleHighThresh = 10
	s.cfg.AutoscaleLowThresh = 1

	require.NoError(t, store.CreatePod(s.kv, &types.Pod{
		ObjectMeta: types.ObjectMeta{Namespace: "default", Name: "fn-1"},
	}))
	require.NoError(t, store.CreateFunction(s.kv, &types.Function{
		ObjectMeta: types.ObjectMeta{Namespace: "default", Name: "fn"},
		Status:     types.FunctionStatus{Image: "registry.local/fn:1", PodNames: []string{"fn-1"}, RequestsSinceTick: 50},
	}))

	s.autoscaleFunctions()

	fn, err := store.GetFunction(s.kv, "default", "fn")
	require.NoError(t, err)
	assert.Len(t, fn.Status.PodNames, 2)
	assert.Equal(t, int64(0), fn.Status.RequestsSinceTick)
}

func TestAutoscaleFunctionsKeepsFloorOfOnePod(t *testing.T) {
	s := newTestServer(t)
	s.cfg.AutoscaleHighThresh = 10
	s.cfg.AutoscaleLowThresh = 1

	require.NoError(t, store.CreatePod(s.kv, &types.Pod{
		ObjectMeta: types.ObjectMeta{Namespace: "default", Name: "fn-1"},
	}))
	require.NoError(t, store.CreateFunction(s.kv, &types.Function{
		ObjectMeta: types.ObjectMeta{Namespace: "default", Name: "fn"},
		Status:     types.FunctionStatus{Image: "registry.local/fn:1", PodNames: []string{"fn-1"}, RequestsSinceTick: 0},
	}))

	s.autoscaleFunctions()

	fn, err := store.GetFunction(s.kv, "default", "fn")
	require.NoError(t, err)
	assert.Len(t, fn.Status.PodNames, 1)
}
