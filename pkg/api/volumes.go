package api

import (
	"net/http"
	"time"

	"github.com/nodeforge/cove/pkg/apierr"
	"github.com/nodeforge/cove/pkg/store"
	"github.com/nodeforge/cove/pkg/types"
)

// registerVolumeRoutes wires both PersistentVolume (cluster-scoped) and
// PersistentVolumeClaim (namespaced) under the same handler file, mirroring
// how Node and Pod sit side by side in spec.md §4.1.
func (s *Server) registerVolumeRoutes() {
	s.mux.HandleFunc("GET /volumes", s.handleListPVs)
	s.mux.HandleFunc("GET /volumes/{name}", s.handleGetPV)
	s.mux.HandleFunc("POST /volumes/{name}", s.handleCreatePV)
	s.mux.HandleFunc("PUT /volumes/{name}", s.handleUpdatePV)
	s.mux.HandleFunc("DELETE /volumes/{name}", s.handleDeletePV)

	s.mux.HandleFunc("GET /volumeclaims", s.handleListAllPVCs)
	s.mux.HandleFunc("GET /namespaces/{ns}/volumeclaims", s.handleListPVCs)
	s.mux.HandleFunc("GET /namespaces/{ns}/volumeclaims/{name}", s.handleGetPVC)
	s.mux.HandleFunc("POST /namespaces/{ns}/volumeclaims/{name}", s.handleCreatePVC)
	s.mux.HandleFunc("PUT /namespaces/{ns}/volumeclaims/{name}", s.handleUpdatePVC)
	s.mux.HandleFunc("DELETE /namespaces/{ns}/volumeclaims/{name}", s.handleDeletePVC)
}

func (s *Server) handleListPVs(w http.ResponseWriter, r *http.Request) {
	pvs, err := store.ListPVs(s.kv)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pvs)
}

func (s *Server) handleGetPV(w http.ResponseWriter, r *http.Request) {
	pv, err := store.GetPV(s.kv, pathValue(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pv)
}

func (s *Server) handleCreatePV(w http.ResponseWriter, r *http.Request) {
	name := pathValue(r, "name")

	var pv types.PersistentVolume
	if err := decodeJSON(r, &pv); err != nil {
		writeError(w, err)
		return
	}
	pv.Name = name
	pv.CreatedAt = time.Now()
	if pv.Status.Phase == "" {
		pv.Status.Phase = types.PVAvailable
	}

	if err := store.CreatePV(s.kv, &pv); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &pv)
}

// handleUpdatePV is the write-through the PVController uses to persist
// provisioning, materialization and bind/unbind transitions it computes
// (spec.md §4.5); every field is trusted as-is since the controller
// already read-modify-wrote the full record.
func (s *Server) handleUpdatePV(w http.ResponseWriter, r *http.Request) {
	name := pathValue(r, "name")

	var incoming types.PersistentVolume
	if err := decodeJSON(r, &incoming); err != nil {
		writeError(w, err)
		return
	}

	existing, err := store.GetPV(s.kv, name)
	if err != nil {
		writeError(w, err)
		return
	}
	existing.Spec = incoming.Spec
	existing.Status = incoming.Status

	if err := store.PutPV(s.kv, existing); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) handleDeletePV(w http.ResponseWriter, r *http.Request) {
	name := pathValue(r, "name")

	pv, err := store.GetPV(s.kv, name)
	if err != nil {
		writeError(w, err)
		return
	}
	if pv.Status.ClaimRef != nil {
		writeError(w, apierr.Conflict("volume %s is still bound to claim %s/%s", name, pv.Status.ClaimRef.Namespace, pv.Status.ClaimRef.Name))
		return
	}
	if err := store.DeletePV(s.kv, name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListAllPVCs(w http.ResponseWriter, r *http.Request) {
	pvcs, err := store.ListAllPVCs(s.kv)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pvcs)
}

func (s *Server) handleListPVCs(w http.ResponseWriter, r *http.Request) {
	pvcs, err := store.ListPVCs(s.kv, pathValue(r, "ns"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pvcs)
}

func (s *Server) handleGetPVC(w http.ResponseWriter, r *http.Request) {
	pvc, err := store.GetPVC(s.kv, pathValue(r, "ns"), pathValue(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pvc)
}

// handleCreatePVC requires an explicit volumeName (spec.md: "no selector
// matching") and leaves binding to the PVController's reconcile loop, which
// transitions Phase from Pending to Bound once the PV accepts the claimRef.
func (s *Server) handleCreatePVC(w http.ResponseWriter, r *http.Request) {
	ns, name := pathValue(r, "ns"), pathValue(r, "name")

	var pvc types.PersistentVolumeClaim
	if err := decodeJSON(r, &pvc); err != nil {
		writeError(w, err)
		return
	}
	pvc.Namespace, pvc.Name = ns, name
	pvc.CreatedAt = time.Now()

	if pvc.Spec.VolumeName == "" {
		writeError(w, apierr.Validation("persistentVolumeClaim %s/%s must set spec.volumeName", ns, name))
		return
	}
	pvc.Status = types.PersistentVolumeClaimStatus{Phase: types.PVCPending}

	if err := store.CreatePVC(s.kv, &pvc); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &pvc)
}

// handleUpdatePVC is the write-through the PVController uses to flip a
// claim's phase as it binds, fails, or is released.
func (s *Server) handleUpdatePVC(w http.ResponseWriter, r *http.Request) {
	ns, name := pathValue(r, "ns"), pathValue(r, "name")

	var incoming types.PersistentVolumeClaim
	if err := decodeJSON(r, &incoming); err != nil {
		writeError(w, err)
		return
	}

	existing, err := store.GetPVC(s.kv, ns, name)
	if err != nil {
		writeError(w, err)
		return
	}
	existing.Status = incoming.Status

	if err := store.PutPVC(s.kv, existing); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) handleDeletePVC(w http.ResponseWriter, r *http.Request) {
	ns, name := pathValue(r, "ns"), pathValue(r, "name")
	if err := store.DeletePVC(s.kv, ns, name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
