package volume

import (
	"context"
	"fmt"
	"sync"

	"github.com/nodeforge/cove/pkg/apierr"
	"github.com/nodeforge/cove/pkg/types"
)

// PVLookup is the narrow slice of the API client the resolver needs:
// PVC and PV reads. Kept as an interface so pkg/volume never imports
// the store package directly — the node agent only ever talks to the
// cluster through the API server.
type PVLookup interface {
	GetPersistentVolumeClaim(ctx context.Context, namespace, name string) (*types.PersistentVolumeClaim, error)
	GetPersistentVolume(ctx context.Context, name string) (*types.PersistentVolume, error)
}

// Resolver turns a Pod's volume list into node-local host paths,
// mounting nfs-backed PVs on first use and reference-counting so a PV
// shared by several Pods on this node is unmounted only once the last
// one goes away (spec.md §4.6).
type Resolver struct {
	lookup   PVLookup
	hostPath *HostPathDriver
	nfs      *NFSDriver

	mu   sync.Mutex
	refs map[string]int // pv name -> number of Pods on this node referencing it
}

func NewResolver(lookup PVLookup, mountsRoot string, nfsBackend MountBackend) *Resolver {
	return &Resolver{
		lookup:   lookup,
		hostPath: NewHostPathDriver(),
		nfs:      NewNFSDriver(mountsRoot, nfsBackend),
		refs:     make(map[string]int),
	}
}

// Resolve returns, for every entry in pod.Spec.Volumes, the node-local
// host path that entry's PVC resolves to. It fails closed: any
// unbound, missing, or mismatched PVC/PV aborts the whole resolution,
// since a partially-mounted Pod can't start.
func (r *Resolver) Resolve(ctx context.Context, pod *types.Pod) (map[string]string, error) {
	paths := make(map[string]string, len(pod.Spec.Volumes))

	for _, vol := range pod.Spec.Volumes {
		pvc, err := r.lookup.GetPersistentVolumeClaim(ctx, pod.Namespace, vol.PVC)
		if err != nil {
			return nil, fmt.Errorf("volume %q: resolve pvc %q: %w", vol.Name, vol.PVC, err)
		}
		if pvc.Status.Phase != types.PVCBound {
			return nil, fmt.Errorf("volume %q: pvc %q is not bound (phase=%s)", vol.Name, vol.PVC, pvc.Status.Phase)
		}

		pv, err := r.lookup.GetPersistentVolume(ctx, pvc.Spec.VolumeName)
		if err != nil {
			return nil, fmt.Errorf("volume %q: resolve pv %q: %w", vol.Name, pvc.Spec.VolumeName, err)
		}

		driver, err := driverFor(pv, r.hostPath, r.nfs)
		if err != nil {
			return nil, fmt.Errorf("volume %q: %w", vol.Name, err)
		}

		path, err := driver.Mount(pv)
		if err != nil {
			return nil, fmt.Errorf("volume %q: %w", vol.Name, err)
		}

		r.acquire(pv.Name)
		paths[vol.Name] = path
	}

	return paths, nil
}

// Release drops this Pod's reference to every PV it used and unmounts
// any PV that is no longer referenced by anything on this node.
func (r *Resolver) Release(ctx context.Context, pod *types.Pod) error {
	var firstErr error
	for _, vol := range pod.Spec.Volumes {
		pvc, err := r.lookup.GetPersistentVolumeClaim(ctx, pod.Namespace, vol.PVC)
		if err != nil {
			if apierr.IsNotFound(err) {
				continue
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		pv, err := r.lookup.GetPersistentVolume(ctx, pvc.Spec.VolumeName)
		if err != nil {
			if apierr.IsNotFound(err) {
				continue
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		if r.release(pv.Name) {
			driver, err := driverFor(pv, r.hostPath, r.nfs)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if err := driver.Unmount(pv); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Resolver) acquire(pvName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs[pvName]++
}

// release decrements the refcount and reports whether it reached zero.
func (r *Resolver) release(pvName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refs[pvName] == 0 {
		return false
	}
	r.refs[pvName]--
	if r.refs[pvName] == 0 {
		delete(r.refs, pvName)
		return true
	}
	return false
}
