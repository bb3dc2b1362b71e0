package volume

import (
	"fmt"

	"github.com/nodeforge/cove/pkg/types"
)

// VolumeDriver is the interface the resolver drives to materialize a
// PersistentVolume's backing storage on this node. The shape (Create,
// Delete, Mount, Unmount, GetPath) is kept from the teacher's driver
// interface; only the subject changed, from a standalone Volume to a
// PersistentVolume bound through a PVC.
type VolumeDriver interface {
	// Create provisions the backing storage for a PV that doesn't have
	// it yet (a local mkdir for hostPath; for nfs it only checks that the
	// PV has an nfs source, since the export lives on the nfs server).
	Create(pv *types.PersistentVolume) error

	// Delete removes the backing storage. Only called for PVs this
	// node provisioned; released-but-foreign PVs are left alone.
	Delete(pv *types.PersistentVolume) error

	// Mount returns the node-local host path a container's volume
	// mount should bind to, performing any mount operation needed to
	// make that path valid first.
	Mount(pv *types.PersistentVolume) (string, error)

	// Unmount releases whatever Mount acquired. A no-op for drivers
	// whose Mount doesn't allocate node-local mount state.
	Unmount(pv *types.PersistentVolume) error

	// GetPath returns the host path for a PV without mounting it.
	GetPath(pv *types.PersistentVolume) string
}

// driverFor returns the driver responsible for a PV's storage class.
func driverFor(pv *types.PersistentVolume, hostPath *HostPathDriver, nfs *NFSDriver) (VolumeDriver, error) {
	switch pv.Spec.StorageClass {
	case types.StorageClassHostPath:
		return hostPath, nil
	case types.StorageClassNFS:
		return nfs, nil
	default:
		return nil, fmt.Errorf("unknown storage class: %q", pv.Spec.StorageClass)
	}
}
