package controller

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeforge/cove/pkg/types"
	"github.com/nodeforge/cove/pkg/volume"
)

func TestPVControllerProvisionsAndBindsHostPath(t *testing.T) {
	c, _ := newHarness(t)
	ctx := context.Background()
	root := t.TempDir()

	pc := NewPVController(c, volume.NewHostPathDriver(), volume.NewNFSDriver("", volume.SimulationMountBackend{}), root, "", "")

	_, err := c.CreatePersistentVolumeClaim(ctx, &types.PersistentVolumeClaim{
		ObjectMeta: types.ObjectMeta{Namespace: "default", Name: "data"},
		Spec: types.PersistentVolumeClaimSpec{
			RequestBytes: 1024,
			StorageClass: types.StorageClassHostPath,
			VolumeName:   "pv-data",
		},
	})
	require.NoError(t, err)

	require.NoError(t, pc.reconcileClaims(ctx))

	pvc, err := c.GetPersistentVolumeClaim(ctx, "default", "data")
	require.NoError(t, err)
	assert.Equal(t, types.PVCBound, pvc.Status.Phase)

	pv, err := c.GetPersistentVolume(ctx, "pv-data")
	require.NoError(t, err)
	assert.Equal(t, types.PVBound, pv.Status.Phase)
	assert.DirExists(t, filepath.Join(root, "default", "data"))
}

func TestPVControllerUnbindsOrphan(t *testing.T) {
	c, _ := newHarness(t)
	ctx := context.Background()
	root := t.TempDir()

	pc := NewPVController(c, volume.NewHostPathDriver(), volume.NewNFSDriver("", volume.SimulationMountBackend{}), root, "", "")

	_, err := c.CreatePersistentVolume(ctx, &types.PersistentVolume{
		Name: "pv-orphan",
		Spec: types.PersistentVolumeSpec{
			StorageClass:  types.StorageClassHostPath,
			CapacityBytes: 1024,
			HostPath:      &types.HostPathSource{Path: root},
		},
		Status: types.PersistentVolumeStatus{
			Phase:    types.PVBound,
			ClaimRef: &types.ObjectRef{Kind: "PersistentVolumeClaim", Namespace: "default", Name: "gone"},
		},
	})
	require.NoError(t, err)

	require.NoError(t, pc.unbindOrphans(ctx))

	pv, err := c.GetPersistentVolume(ctx, "pv-orphan")
	require.NoError(t, err)
	assert.Equal(t, types.PVAvailable, pv.Status.Phase)
	assert.Nil(t, pv.Status.ClaimRef)
}
