package volume

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/nodeforge/cove/pkg/types"
)

// DefaultMountsRoot is the node-local directory nfs mounts are rooted
// under, per spec.md §4.6's "/<mounts_root>/<pv_name>" convention.
const DefaultMountsRoot = "/var/lib/cove/mounts"

// NFSDriver mounts nfs-backed PersistentVolumes at a stable node-local
// path and memoizes the mount so a PV referenced by several Pods on the
// same node is only mounted once.
type NFSDriver struct {
	mountsRoot string
	backend    MountBackend

	mu      sync.Mutex
	mounted map[string]bool // pv name -> currently mounted on this node
}

func NewNFSDriver(mountsRoot string, backend MountBackend) *NFSDriver {
	if mountsRoot == "" {
		mountsRoot = DefaultMountsRoot
	}
	return &NFSDriver{
		mountsRoot: mountsRoot,
		backend:    backend,
		mounted:    make(map[string]bool),
	}
}

// Create provisions the export's contents are the nfs server's
// responsibility; on the node side there's nothing to create ahead of
// the first mount.
func (d *NFSDriver) Create(pv *types.PersistentVolume) error {
	if pv.Spec.NFS == nil {
		return fmt.Errorf("persistent volume %q has no nfs source", pv.Name)
	}
	return nil
}

func (d *NFSDriver) Delete(pv *types.PersistentVolume) error {
	return d.Unmount(pv)
}

func (d *NFSDriver) Mount(pv *types.PersistentVolume) (string, error) {
	if pv.Spec.NFS == nil {
		return "", fmt.Errorf("persistent volume %q has no nfs source", pv.Name)
	}

	target := d.GetPath(pv)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mounted[pv.Name] {
		return target, nil
	}
	if err := d.backend.Mount(pv.Spec.NFS.Server, pv.Spec.NFS.Path, target); err != nil {
		return "", fmt.Errorf("mount nfs volume %q: %w", pv.Name, err)
	}
	d.mounted[pv.Name] = true
	return target, nil
}

func (d *NFSDriver) Unmount(pv *types.PersistentVolume) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.mounted[pv.Name] {
		return nil
	}
	if err := d.backend.Unmount(d.GetPath(pv)); err != nil {
		return fmt.Errorf("unmount nfs volume %q: %w", pv.Name, err)
	}
	delete(d.mounted, pv.Name)
	return nil
}

func (d *NFSDriver) GetPath(pv *types.PersistentVolume) string {
	return filepath.Join(d.mountsRoot, pv.Name)
}
