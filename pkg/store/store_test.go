package store

import (
	"testing"

	"github.com/nodeforge/cove/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeCRUD(t *testing.T) {
	kv := NewMemStore()

	n := &types.Node{Name: "node-1", Address: "10.0.0.1:7070"}
	require.NoError(t, CreateNode(kv, n))

	err := CreateNode(kv, n)
	assert.Error(t, err, "creating the same node twice should conflict")

	got, err := GetNode(kv, "node-1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:7070", got.Address)

	_, err = GetNode(kv, "missing")
	assert.Error(t, err)

	n.Status.Phase = types.NodeOnline
	require.NoError(t, PutNode(kv, n))

	nodes, err := ListNodes(kv)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, types.NodeOnline, nodes[0].Status.Phase)

	require.NoError(t, DeleteNode(kv, "node-1"))
	nodes, err = ListNodes(kv)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestPodNamespaceIsolation(t *testing.T) {
	kv := NewMemStore()

	p1 := &types.Pod{ObjectMeta: types.ObjectMeta{Name: "web-1", Namespace: "default"}}
	p2 := &types.Pod{ObjectMeta: types.ObjectMeta{Name: "web-1", Namespace: "staging"}}
	require.NoError(t, CreatePod(kv, p1))
	require.NoError(t, CreatePod(kv, p2))

	defaultPods, err := ListPods(kv, "default")
	require.NoError(t, err)
	assert.Len(t, defaultPods, 1)

	all, err := ListAllPods(kv)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestListPodsOnNode(t *testing.T) {
	kv := NewMemStore()

	bound := &types.Pod{ObjectMeta: types.ObjectMeta{Name: "a", Namespace: "default"}}
	bound.Status.NodeName = "node-1"
	unbound := &types.Pod{ObjectMeta: types.ObjectMeta{Name: "b", Namespace: "default"}}

	require.NoError(t, CreatePod(kv, bound))
	require.NoError(t, CreatePod(kv, unbound))

	onNode, err := ListPodsOnNode(kv, "node-1")
	require.NoError(t, err)
	require.Len(t, onNode, 1)
	assert.Equal(t, "a", onNode[0].Name)
}

func TestPersistentVolumeIsClusterScoped(t *testing.T) {
	kv := NewMemStore()

	pv := &types.PersistentVolume{Name: "pv-1", Spec: types.PersistentVolumeSpec{
		CapacityBytes: 1 << 30,
		StorageClass:  types.StorageClassHostPath,
	}}
	require.NoError(t, CreatePV(kv, pv))

	got, err := GetPV(kv, "pv-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1<<30), got.Spec.CapacityBytes)

	pvs, err := ListPVs(kv)
	require.NoError(t, err)
	assert.Len(t, pvs, 1)
}
