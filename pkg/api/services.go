package api

import (
	"net/http"
	"time"

	"github.com/nodeforge/cove/pkg/apierr"
	"github.com/nodeforge/cove/pkg/store"
	"github.com/nodeforge/cove/pkg/types"
)

func (s *Server) registerServiceRoutes() {
	s.mux.HandleFunc("GET /services", s.handleListAllServices)
	s.mux.HandleFunc("GET /namespaces/{ns}/services", s.handleListServices)
	s.mux.HandleFunc("GET /namespaces/{ns}/services/{name}", s.handleGetService)
	s.mux.HandleFunc("POST /namespaces/{ns}/services/{name}", s.handleCreateService)
	s.mux.HandleFunc("PUT /namespaces/{ns}/services/{name}", s.handleUpdateService)
	s.mux.HandleFunc("DELETE /namespaces/{ns}/services/{name}", s.handleDeleteService)
}

func (s *Server) handleListAllServices(w http.ResponseWriter, r *http.Request) {
	svcs, err := store.ListAllServices(s.kv)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, svcs)
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	svcs, err := store.ListServices(s.kv, pathValue(r, "ns"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, svcs)
}

func (s *Server) handleGetService(w http.ResponseWriter, r *http.Request) {
	svc, err := store.GetService(s.kv, pathValue(r, "ns"), pathValue(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (s *Server) handleCreateService(w http.ResponseWriter, r *http.Request) {
	ns, name := pathValue(r, "ns"), pathValue(r, "name")

	var svc types.Service
	if err := decodeJSON(r, &svc); err != nil {
		writeError(w, err)
		return
	}
	svc.Namespace, svc.Name = ns, name
	svc.CreatedAt = time.Now()
	svc.Status = types.ServiceStatus{}

	if err := store.CreateService(s.kv, &svc); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &svc)
}

// handleUpdateService is the atomic IP-assignment handoff from
// ServiceController: only clusterIP is assignable post-creation, and only
// while it is still unset (spec.md §4.1).
func (s *Server) handleUpdateService(w http.ResponseWriter, r *http.Request) {
	ns, name := pathValue(r, "ns"), pathValue(r, "name")

	var incoming types.Service
	if err := decodeJSON(r, &incoming); err != nil {
		writeError(w, err)
		return
	}

	existing, err := store.GetService(s.kv, ns, name)
	if err != nil {
		writeError(w, err)
		return
	}

	if incoming.Status.ClusterIP != "" {
		if existing.Status.ClusterIP != "" {
			writeError(w, apierr.Conflict("service %s/%s already has a clusterIP", ns, name))
			return
		}
		existing.Status.ClusterIP = incoming.Status.ClusterIP
	}
	if incoming.Spec.Port.NodePort != 0 {
		existing.Spec.Port.NodePort = incoming.Spec.Port.NodePort
	}

	if err := store.PutService(s.kv, existing); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) handleDeleteService(w http.ResponseWriter, r *http.Request) {
	ns, name := pathValue(r, "ns"), pathValue(r, "name")
	if err := store.DeleteService(s.kv, ns, name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
