package api

import (
	"net/http"
	"time"

	"github.com/nodeforge/cove/pkg/store"
	"github.com/nodeforge/cove/pkg/types"
)

func (s *Server) registerReplicaSetRoutes() {
	s.mux.HandleFunc("GET /replicasets", s.handleListAllReplicaSets)
	s.mux.HandleFunc("GET /namespaces/{ns}/replicasets", s.handleListReplicaSets)
	s.mux.HandleFunc("GET /namespaces/{ns}/replicasets/{name}", s.handleGetReplicaSet)
	s.mux.HandleFunc("POST /namespaces/{ns}/replicasets/{name}", s.handleCreateReplicaSet)
	s.mux.HandleFunc("PUT /namespaces/{ns}/replicasets/{name}", s.handleUpdateReplicaSet)
	s.mux.HandleFunc("DELETE /namespaces/{ns}/replicasets/{name}", s.handleDeleteReplicaSet)
}

func (s *Server) handleListAllReplicaSets(w http.ResponseWriter, r *http.Request) {
	rs, err := store.ListAllReplicaSets(s.kv)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

func (s *Server) handleListReplicaSets(w http.ResponseWriter, r *http.Request) {
	rs, err := store.ListReplicaSets(s.kv, pathValue(r, "ns"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

func (s *Server) handleGetReplicaSet(w http.ResponseWriter, r *http.Request) {
	rs, err := store.GetReplicaSet(s.kv, pathValue(r, "ns"), pathValue(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

// handleCreateReplicaSet sweeps existing Pods in the namespace and records
// those matching the selector as already-owned, so the initial observed
// count reflects reality instead of starting at zero (spec.md §4.1).
func (s *Server) handleCreateReplicaSet(w http.ResponseWriter, r *http.Request) {
	ns, name := pathValue(r, "ns"), pathValue(r, "name")

	var rs types.ReplicaSet
	if err := decodeJSON(r, &rs); err != nil {
		writeError(w, err)
		return
	}
	rs.Namespace, rs.Name = ns, name
	rs.CreatedAt = time.Now()

	pods, err := store.ListPods(s.kv, ns)
	if err != nil {
		writeError(w, err)
		return
	}
	var owned []string
	for _, p := range pods {
		if labelsSuperset(p.Labels, rs.Spec.Selector) {
			owned = append(owned, p.Name)
		}
	}
	rs.Status = types.ReplicaSetStatus{ObservedReplicas: len(owned), OwnedPods: owned}

	if err := store.CreateReplicaSet(s.kv, &rs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &rs)
}

func (s *Server) handleUpdateReplicaSet(w http.ResponseWriter, r *http.Request) {
	ns, name := pathValue(r, "ns"), pathValue(r, "name")

	var incoming types.ReplicaSet
	if err := decodeJSON(r, &incoming); err != nil {
		writeError(w, err)
		return
	}

	existing, err := store.GetReplicaSet(s.kv, ns, name)
	if err != nil {
		writeError(w, err)
		return
	}
	existing.Spec.Replicas = incoming.Spec.Replicas
	existing.Labels = incoming.Labels

	if err := store.PutReplicaSet(s.kv, existing); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteReplicaSet cascades: deletes every owned Pod and any HPA
// targeting this ReplicaSet, then removes the record (spec.md §4.5).
func (s *Server) handleDeleteReplicaSet(w http.ResponseWriter, r *http.Request) {
	ns, name := pathValue(r, "ns"), pathValue(r, "name")

	rs, err := store.GetReplicaSet(s.kv, ns, name)
	if err != nil {
		writeError(w, err)
		return
	}

	for _, podName := range rs.Status.OwnedPods {
		if pod, err := store.GetPod(s.kv, ns, podName); err == nil {
			if pod.Status.NodeName != "" {
				s.publishPodDelete(pod)
			}
			_ = store.DeletePod(s.kv, ns, podName)
		}
	}

	hpas, err := store.ListAllHPAs(s.kv)
	if err == nil {
		for _, h := range hpas {
			if h.Spec.Target.Kind == "ReplicaSet" && h.Spec.Target.Name == name && h.Namespace == ns {
				_ = store.DeleteHPA(s.kv, h.Namespace, h.Name)
			}
		}
	}

	if err := store.DeleteReplicaSet(s.kv, ns, name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
