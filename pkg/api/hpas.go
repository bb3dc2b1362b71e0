package api

import (
	"net/http"
	"time"

	"github.com/nodeforge/cove/pkg/apierr"
	"github.com/nodeforge/cove/pkg/store"
	"github.com/nodeforge/cove/pkg/types"
)

func (s *Server) registerHPARoutes() {
	s.mux.HandleFunc("GET /hpas", s.handleListAllHPAs)
	s.mux.HandleFunc("GET /namespaces/{ns}/hpas", s.handleListHPAs)
	s.mux.HandleFunc("GET /namespaces/{ns}/hpas/{name}", s.handleGetHPA)
	s.mux.HandleFunc("POST /namespaces/{ns}/hpas/{name}", s.handleCreateHPA)
	s.mux.HandleFunc("PUT /namespaces/{ns}/hpas/{name}", s.handleUpdateHPA)
	s.mux.HandleFunc("DELETE /namespaces/{ns}/hpas/{name}", s.handleDeleteHPA)
}

func (s *Server) handleListAllHPAs(w http.ResponseWriter, r *http.Request) {
	hpas, err := store.ListAllHPAs(s.kv)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hpas)
}

func (s *Server) handleListHPAs(w http.ResponseWriter, r *http.Request) {
	hpas, err := store.ListHPAs(s.kv, pathValue(r, "ns"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hpas)
}

func (s *Server) handleGetHPA(w http.ResponseWriter, r *http.Request) {
	h, err := store.GetHPA(s.kv, pathValue(r, "ns"), pathValue(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

// handleCreateHPA validates the target ReplicaSet exists and flips its
// hpaControlled flag (spec.md §4.1).
func (s *Server) handleCreateHPA(w http.ResponseWriter, r *http.Request) {
	ns, name := pathValue(r, "ns"), pathValue(r, "name")

	var h types.HorizontalPodAutoscaler
	if err := decodeJSON(r, &h); err != nil {
		writeError(w, err)
		return
	}
	h.Namespace, h.Name = ns, name
	h.CreatedAt = time.Now()

	if h.Spec.Target.Kind != "ReplicaSet" {
		writeError(w, apierr.Validation("hpa target kind must be ReplicaSet"))
		return
	}
	target, err := store.GetReplicaSet(s.kv, ns, h.Spec.Target.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	target.Status.HPAControlled = true
	if err := store.PutReplicaSet(s.kv, target); err != nil {
		writeError(w, err)
		return
	}

	if err := store.CreateHPA(s.kv, &h); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &h)
}

func (s *Server) handleUpdateHPA(w http.ResponseWriter, r *http.Request) {
	ns, name := pathValue(r, "ns"), pathValue(r, "name")

	var incoming types.HorizontalPodAutoscaler
	if err := decodeJSON(r, &incoming); err != nil {
		writeError(w, err)
		return
	}
	incoming.Namespace, incoming.Name = ns, name

	existing, err := store.GetHPA(s.kv, ns, name)
	if err != nil {
		writeError(w, err)
		return
	}
	existing.Spec = incoming.Spec

	if err := store.PutHPA(s.kv, existing); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) handleDeleteHPA(w http.ResponseWriter, r *http.Request) {
	ns, name := pathValue(r, "ns"), pathValue(r, "name")
	if err := store.DeleteHPA(s.kv, ns, name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
