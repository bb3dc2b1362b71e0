package volume

import (
	"fmt"
	"os"

	"github.com/nodeforge/cove/pkg/types"
)

// HostPathDriver materializes a hostPath PersistentVolume as a plain
// directory on the local filesystem. The path itself is decided by
// whoever created the PV (a pre-declared static PV, or the PV
// controller's namespaced provisioning convention); the driver only
// has to make sure it exists.
type HostPathDriver struct{}

func NewHostPathDriver() *HostPathDriver { return &HostPathDriver{} }

func (d *HostPathDriver) Create(pv *types.PersistentVolume) error {
	if pv.Spec.HostPath == nil {
		return fmt.Errorf("persistent volume %q has no hostPath source", pv.Name)
	}
	if err := os.MkdirAll(pv.Spec.HostPath.Path, 0755); err != nil {
		return fmt.Errorf("create hostPath volume %q: %w", pv.Name, err)
	}
	return nil
}

func (d *HostPathDriver) Delete(pv *types.PersistentVolume) error {
	if pv.Spec.HostPath == nil {
		return nil
	}
	if err := os.RemoveAll(pv.Spec.HostPath.Path); err != nil {
		return fmt.Errorf("delete hostPath volume %q: %w", pv.Name, err)
	}
	return nil
}

// Mount for a hostPath volume is just the path itself; there is no
// separate mount step, so Create must already have run.
func (d *HostPathDriver) Mount(pv *types.PersistentVolume) (string, error) {
	path := d.GetPath(pv)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("hostPath volume %q does not exist at %s", pv.Name, path)
	}
	return path, nil
}

func (d *HostPathDriver) Unmount(pv *types.PersistentVolume) error {
	return nil
}

func (d *HostPathDriver) GetPath(pv *types.PersistentVolume) string {
	if pv.Spec.HostPath == nil {
		return ""
	}
	return pv.Spec.HostPath.Path
}
