package volume

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/nodeforge/cove/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMountBackend struct {
	mu       sync.Mutex
	mounts   int
	unmounts int
}

func (b *fakeMountBackend) Mount(server, path, target string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mounts++
	return nil
}

func (b *fakeMountBackend) Unmount(target string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unmounts++
	return nil
}

func TestNFSDriverMountIsMemoized(t *testing.T) {
	backend := &fakeMountBackend{}
	d := NewNFSDriver(t.TempDir(), backend)
	pv := &types.PersistentVolume{Name: "pv1", Spec: types.PersistentVolumeSpec{
		StorageClass: types.StorageClassNFS,
		NFS:          &types.NFSSource{Server: "nfs.example.com", Path: "/export/pv1"},
	}}

	p1, err := d.Mount(pv)
	require.NoError(t, err)
	p2, err := d.Mount(pv)
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.Equal(t, 1, backend.mounts, "second Mount call should be a no-op")
}

func TestNFSDriverUnmount(t *testing.T) {
	backend := &fakeMountBackend{}
	d := NewNFSDriver(t.TempDir(), backend)
	pv := &types.PersistentVolume{Name: "pv1", Spec: types.PersistentVolumeSpec{
		StorageClass: types.StorageClassNFS,
		NFS:          &types.NFSSource{Server: "nfs.example.com", Path: "/export/pv1"},
	}}

	_, err := d.Mount(pv)
	require.NoError(t, err)
	require.NoError(t, d.Unmount(pv))
	assert.Equal(t, 1, backend.unmounts)

	// Unmounting again is a no-op.
	require.NoError(t, d.Unmount(pv))
	assert.Equal(t, 1, backend.unmounts)
}

func TestNFSDriverPathConvention(t *testing.T) {
	d := NewNFSDriver("/mounts", &fakeMountBackend{})
	pv := &types.PersistentVolume{Name: "pv1"}
	assert.Equal(t, filepath.Join("/mounts", "pv1"), d.GetPath(pv))
}
