package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nodeforge/cove/pkg/apierr"
	"github.com/nodeforge/cove/pkg/client"
	"github.com/nodeforge/cove/pkg/log"
	"github.com/nodeforge/cove/pkg/types"
	"github.com/nodeforge/cove/pkg/volume"
)

// DefaultPVInterval is how often the PVController runs its three passes.
const DefaultPVInterval = 5 * time.Second

// PVController binds PersistentVolumeClaims to PersistentVolumes,
// dynamically provisions a PV when a PVC names one that doesn't exist
// yet, materializes declared "static" PVs, and unbinds orphaned PVs
// whose claim has since been deleted (spec.md §4.5).
type PVController struct {
	client   *client.Client
	hostPath *volume.HostPathDriver
	nfs      *volume.NFSDriver
	logger   zerolog.Logger
	stopper

	// hostPathRoot and nfsExportRoot anchor the conventions used to
	// generate a PV spec when dynamically provisioning.
	hostPathRoot  string
	nfsServer     string
	nfsExportRoot string
}

func NewPVController(c *client.Client, hostPath *volume.HostPathDriver, nfs *volume.NFSDriver, hostPathRoot, nfsServer, nfsExportRoot string) *PVController {
	if hostPathRoot == "" {
		hostPathRoot = "/var/lib/cove/volumes"
	}
	return &PVController{
		client:        c,
		hostPath:      hostPath,
		nfs:           nfs,
		logger:        log.WithComponent("pv-controller"),
		stopper:       newStopper(),
		hostPathRoot:  hostPathRoot,
		nfsServer:     nfsServer,
		nfsExportRoot: nfsExportRoot,
	}
}

func (pc *PVController) Start(ctx context.Context) {
	once(pc.logger, "pv", func() error { return pc.reconcile(ctx) })
	go runLoop(ctx, pc.stopCh, "pv", DefaultPVInterval, pc.logger, pc.reconcile)
}

func (pc *PVController) Stop() { pc.stop() }

func (pc *PVController) reconcile(ctx context.Context) error {
	if err := pc.reconcileClaims(ctx); err != nil {
		pc.logger.Error().Err(err).Msg("claim binding pass failed")
	}
	if err := pc.materializeStaticVolumes(ctx); err != nil {
		pc.logger.Error().Err(err).Msg("static volume pass failed")
	}
	if err := pc.unbindOrphans(ctx); err != nil {
		pc.logger.Error().Err(err).Msg("orphan unbind pass failed")
	}
	return nil
}

// reconcileClaims is the first pass: bind or provision for every Pending
// PVC.
func (pc *PVController) reconcileClaims(ctx context.Context) error {
	pvcs, err := pc.client.ListAllPersistentVolumeClaims(ctx)
	if err != nil {
		return fmt.Errorf("list pvcs: %w", err)
	}
	for _, pvc := range pvcs {
		if pvc.Status.Phase != types.PVCPending {
			continue
		}
		if err := pc.reconcileClaim(ctx, pvc); err != nil {
			pc.logger.Error().Err(err).
				Str("namespace", pvc.Namespace).Str("pvc", pvc.Name).
				Msg("claim reconcile failed")
		}
	}
	return nil
}

func (pc *PVController) reconcileClaim(ctx context.Context, pvc *types.PersistentVolumeClaim) error {
	if pvc.Spec.VolumeName == "" {
		return fmt.Errorf("pvc %s/%s has no volumeName", pvc.Namespace, pvc.Name)
	}

	pv, err := pc.client.GetPersistentVolume(ctx, pvc.Spec.VolumeName)
	switch {
	case err == nil:
		return pc.bindExisting(ctx, pv, pvc)
	case apierr.IsNotFound(err):
		return pc.provision(ctx, pvc)
	default:
		return fmt.Errorf("get pv %s: %w", pvc.Spec.VolumeName, err)
	}
}

// bindExisting handles the case where the named PV already exists:
// verify class/capacity compatibility, then bind if Available.
func (pc *PVController) bindExisting(ctx context.Context, pv *types.PersistentVolume, pvc *types.PersistentVolumeClaim) error {
	if pv.Spec.StorageClass != pvc.Spec.StorageClass || pv.Spec.CapacityBytes != pvc.Spec.RequestBytes {
		pvc.Status.Phase = types.PVCFailed
		_, err := pc.client.UpdatePersistentVolumeClaim(ctx, pvc)
		return err
	}
	if pv.Status.Phase != types.PVAvailable {
		if pv.Status.Phase == types.PVBound && pv.Status.ClaimRef != nil &&
			pv.Status.ClaimRef.Namespace == pvc.Namespace && pv.Status.ClaimRef.Name == pvc.Name {
			return nil // already bound to this claim, idempotent re-reconcile
		}
		pvc.Status.Phase = types.PVCFailed
		_, err := pc.client.UpdatePersistentVolumeClaim(ctx, pvc)
		return err
	}
	return pc.bind(ctx, pv, pvc)
}

// provision dynamically creates a PV from the PVC's requested class and
// size, rooted at this controller's naming conventions, then binds it.
func (pc *PVController) provision(ctx context.Context, pvc *types.PersistentVolumeClaim) error {
	pv := &types.PersistentVolume{
		Name: pvc.Spec.VolumeName,
		Spec: types.PersistentVolumeSpec{
			CapacityBytes: pvc.Spec.RequestBytes,
			StorageClass:  pvc.Spec.StorageClass,
		},
	}

	switch pvc.Spec.StorageClass {
	case types.StorageClassHostPath:
		pv.Spec.HostPath = &types.HostPathSource{Path: fmt.Sprintf("%s/%s/%s", pc.hostPathRoot, pvc.Namespace, pvc.Name)}
		if err := pc.hostPath.Create(pv); err != nil {
			return fmt.Errorf("create hostPath backing storage: %w", err)
		}
	case types.StorageClassNFS:
		pv.Spec.NFS = &types.NFSSource{Server: pc.nfsServer, Path: fmt.Sprintf("%s/%s/%s", pc.nfsExportRoot, pvc.Namespace, pvc.Name)}
		if err := pc.nfs.Create(pv); err != nil {
			return fmt.Errorf("create nfs backing storage: %w", err)
		}
	default:
		return fmt.Errorf("unsupported storage class %q", pvc.Spec.StorageClass)
	}

	pv.Status.Phase = types.PVAvailable
	created, err := pc.client.CreatePersistentVolume(ctx, pv)
	if err != nil {
		return fmt.Errorf("create pv: %w", err)
	}
	return pc.bind(ctx, created, pvc)
}

func (pc *PVController) bind(ctx context.Context, pv *types.PersistentVolume, pvc *types.PersistentVolumeClaim) error {
	pv.Status.Phase = types.PVBound
	pv.Status.ClaimRef = &types.ObjectRef{Kind: "PersistentVolumeClaim", Namespace: pvc.Namespace, Name: pvc.Name}
	if _, err := pc.client.UpdatePersistentVolume(ctx, pv); err != nil {
		return fmt.Errorf("bind pv: %w", err)
	}

	pvc.Status.Phase = types.PVCBound
	if _, err := pc.client.UpdatePersistentVolumeClaim(ctx, pvc); err != nil {
		return fmt.Errorf("bind pvc: %w", err)
	}
	return nil
}

// materializeStaticVolumes is the second pass: any PV declared directly
// as status=static gets its backing path created, then flips Available.
func (pc *PVController) materializeStaticVolumes(ctx context.Context) error {
	pvs, err := pc.client.ListPersistentVolumes(ctx)
	if err != nil {
		return fmt.Errorf("list pvs: %w", err)
	}
	for _, pv := range pvs {
		if pv.Status.Phase != types.PVStatic {
			continue
		}
		if err := pc.materializeOne(ctx, pv); err != nil {
			pc.logger.Error().Err(err).Str("pv", pv.Name).Msg("static pv materialize failed")
		}
	}
	return nil
}

func (pc *PVController) materializeOne(ctx context.Context, pv *types.PersistentVolume) error {
	switch pv.Spec.StorageClass {
	case types.StorageClassHostPath:
		if err := pc.hostPath.Create(pv); err != nil {
			return err
		}
	case types.StorageClassNFS:
		if err := pc.nfs.Create(pv); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported storage class %q", pv.Spec.StorageClass)
	}
	pv.Status.Phase = types.PVAvailable
	_, err := pc.client.UpdatePersistentVolume(ctx, pv)
	return err
}

// unbindOrphans is the third pass: a Bound PV whose claim no longer
// exists releases back to Available.
func (pc *PVController) unbindOrphans(ctx context.Context) error {
	pvs, err := pc.client.ListPersistentVolumes(ctx)
	if err != nil {
		return fmt.Errorf("list pvs: %w", err)
	}
	for _, pv := range pvs {
		if pv.Status.Phase != types.PVBound || pv.Status.ClaimRef == nil {
			continue
		}
		ref := pv.Status.ClaimRef
		_, err := pc.client.GetPersistentVolumeClaim(ctx, ref.Namespace, ref.Name)
		if err == nil {
			continue
		}
		if !apierr.IsNotFound(err) {
			pc.logger.Error().Err(err).Str("pv", pv.Name).Msg("check claim existence failed")
			continue
		}

		pv.Status.Phase = types.PVAvailable
		pv.Status.ClaimRef = nil
		if _, err := pc.client.UpdatePersistentVolume(ctx, pv); err != nil {
			pc.logger.Error().Err(err).Str("pv", pv.Name).Msg("unbind orphan pv failed")
		}
	}
	return nil
}
