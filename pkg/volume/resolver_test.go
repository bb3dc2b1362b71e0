package volume

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nodeforge/cove/pkg/apierr"
	"github.com/nodeforge/cove/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookup struct {
	pvcs map[string]*types.PersistentVolumeClaim
	pvs  map[string]*types.PersistentVolume
}

func (l *fakeLookup) GetPersistentVolumeClaim(ctx context.Context, namespace, name string) (*types.PersistentVolumeClaim, error) {
	pvc, ok := l.pvcs[namespace+"/"+name]
	if !ok {
		return nil, apierr.NotFound("pvc %s/%s not found", namespace, name)
	}
	return pvc, nil
}

func (l *fakeLookup) GetPersistentVolume(ctx context.Context, name string) (*types.PersistentVolume, error) {
	pv, ok := l.pvs[name]
	if !ok {
		return nil, apierr.NotFound("pv %s not found", name)
	}
	return pv, nil
}

func TestResolverResolvesHostPathVolume(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "data")
	pv := &types.PersistentVolume{Name: "pv1", Spec: types.PersistentVolumeSpec{
		StorageClass: types.StorageClassHostPath,
		HostPath:     &types.HostPathSource{Path: path},
	}}
	require.NoError(t, NewHostPathDriver().Create(pv))

	lookup := &fakeLookup{
		pvcs: map[string]*types.PersistentVolumeClaim{
			"default/data": {
				ObjectMeta: types.ObjectMeta{Name: "data", Namespace: "default"},
				Spec:       types.PersistentVolumeClaimSpec{VolumeName: "pv1"},
				Status:     types.PersistentVolumeClaimStatus{Phase: types.PVCBound},
			},
		},
		pvs: map[string]*types.PersistentVolume{"pv1": pv},
	}

	r := NewResolver(lookup, t.TempDir(), &fakeMountBackend{})
	pod := &types.Pod{
		ObjectMeta: types.ObjectMeta{Name: "web", Namespace: "default"},
		Spec: types.PodSpec{
			Volumes: []types.PodVolume{{Name: "datavol", PVC: "data"}},
		},
	}

	paths, err := r.Resolve(context.Background(), pod)
	require.NoError(t, err)
	assert.Equal(t, path, paths["datavol"])
}

func TestResolverRejectsUnboundPVC(t *testing.T) {
	lookup := &fakeLookup{
		pvcs: map[string]*types.PersistentVolumeClaim{
			"default/data": {
				ObjectMeta: types.ObjectMeta{Name: "data", Namespace: "default"},
				Status:     types.PersistentVolumeClaimStatus{Phase: types.PVCPending},
			},
		},
		pvs: map[string]*types.PersistentVolume{},
	}

	r := NewResolver(lookup, t.TempDir(), &fakeMountBackend{})
	pod := &types.Pod{
		ObjectMeta: types.ObjectMeta{Name: "web", Namespace: "default"},
		Spec:       types.PodSpec{Volumes: []types.PodVolume{{Name: "datavol", PVC: "data"}}},
	}

	_, err := r.Resolve(context.Background(), pod)
	assert.Error(t, err)
}

func TestResolverUnmountsOnlyAfterLastReleaser(t *testing.T) {
	backend := &fakeMountBackend{}
	pv := &types.PersistentVolume{Name: "shared", Spec: types.PersistentVolumeSpec{
		StorageClass: types.StorageClassNFS,
		NFS:          &types.NFSSource{Server: "nfs.example.com", Path: "/export/shared"},
	}}
	lookup := &fakeLookup{
		pvcs: map[string]*types.PersistentVolumeClaim{
			"default/a": {
				ObjectMeta: types.ObjectMeta{Name: "a", Namespace: "default"},
				Spec:       types.PersistentVolumeClaimSpec{VolumeName: "shared"},
				Status:     types.PersistentVolumeClaimStatus{Phase: types.PVCBound},
			},
		},
		pvs: map[string]*types.PersistentVolume{"shared": pv},
	}

	r := NewResolver(lookup, t.TempDir(), backend)
	podA := &types.Pod{
		ObjectMeta: types.ObjectMeta{Name: "a", Namespace: "default"},
		Spec:       types.PodSpec{Volumes: []types.PodVolume{{Name: "v", PVC: "a"}}},
	}
	podB := &types.Pod{
		ObjectMeta: types.ObjectMeta{Name: "b", Namespace: "default"},
		Spec:       types.PodSpec{Volumes: []types.PodVolume{{Name: "v", PVC: "a"}}},
	}

	ctx := context.Background()
	_, err := r.Resolve(ctx, podA)
	require.NoError(t, err)
	_, err = r.Resolve(ctx, podB)
	require.NoError(t, err)

	require.NoError(t, r.Release(ctx, podA))
	assert.Equal(t, 0, backend.unmounts, "still referenced by podB")

	require.NoError(t, r.Release(ctx, podB))
	assert.Equal(t, 1, backend.unmounts, "last releaser should unmount")
}
