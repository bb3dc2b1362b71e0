package volume

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nodeforge/cove/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostPathDriverLifecycle(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "pv1")
	pv := &types.PersistentVolume{Name: "pv1", Spec: types.PersistentVolumeSpec{
		StorageClass: types.StorageClassHostPath,
		HostPath:     &types.HostPathSource{Path: path},
	}}

	d := NewHostPathDriver()
	require.NoError(t, d.Create(pv))
	assert.DirExists(t, path)

	mounted, err := d.Mount(pv)
	require.NoError(t, err)
	assert.Equal(t, path, mounted)
	assert.Equal(t, path, d.GetPath(pv))

	require.NoError(t, d.Unmount(pv))
	assert.DirExists(t, path) // unmount is a no-op, directory stays

	require.NoError(t, d.Delete(pv))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestHostPathDriverMountMissingFails(t *testing.T) {
	pv := &types.PersistentVolume{Name: "pv1", Spec: types.PersistentVolumeSpec{
		StorageClass: types.StorageClassHostPath,
		HostPath:     &types.HostPathSource{Path: filepath.Join(t.TempDir(), "never-created")},
	}}
	_, err := NewHostPathDriver().Mount(pv)
	assert.Error(t, err)
}
