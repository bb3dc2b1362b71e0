package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/nodeforge/cove/pkg/apierr"
	"github.com/nodeforge/cove/pkg/bus"
	"github.com/nodeforge/cove/pkg/store"
	"github.com/nodeforge/cove/pkg/types"
)

func (s *Server) registerPodRoutes() {
	s.mux.HandleFunc("GET /pods", s.handleListAllPods)
	s.mux.HandleFunc("GET /namespaces/{ns}/pods", s.handleListPods)
	s.mux.HandleFunc("GET /namespaces/{ns}/pods/{name}", s.handleGetPod)
	s.mux.HandleFunc("POST /namespaces/{ns}/pods/{name}", s.handleCreatePod)
	s.mux.HandleFunc("PUT /namespaces/{ns}/pods/{name}", s.handleUpdatePod)
	s.mux.HandleFunc("DELETE /namespaces/{ns}/pods/{name}", s.handleDeletePod)
	s.mux.HandleFunc("GET /namespaces/{ns}/pods/{name}/status", s.handleGetPodStatus)
	s.mux.HandleFunc("PUT /namespaces/{ns}/pods/{name}/status", s.handleUpdatePodStatus)
	s.mux.HandleFunc("GET /namespaces/{ns}/pods/{name}/ip", s.handleGetPodIP)
	s.mux.HandleFunc("PUT /namespaces/{ns}/pods/{name}/ip", s.handleUpdatePodIP)
}

func (s *Server) handleListAllPods(w http.ResponseWriter, r *http.Request) {
	pods, err := store.ListAllPods(s.kv)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pods)
}

func (s *Server) handleListPods(w http.ResponseWriter, r *http.Request) {
	pods, err := store.ListPods(s.kv, pathValue(r, "ns"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pods)
}

func (s *Server) handleGetPod(w http.ResponseWriter, r *http.Request) {
	pod, err := store.GetPod(s.kv, pathValue(r, "ns"), pathValue(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pod)
}

// handleCreatePod rejects duplicates, sets the initial CREATING status, and
// emits a scheduling request onto the scheduler topic (spec.md §4.1).
func (s *Server) handleCreatePod(w http.ResponseWriter, r *http.Request) {
	ns, name := pathValue(r, "ns"), pathValue(r, "name")

	var pod types.Pod
	if err := decodeJSON(r, &pod); err != nil {
		writeError(w, err)
		return
	}
	pod.Namespace, pod.Name = ns, name

	if err := s.createPod(&pod); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &pod)
}

// createPod is the shared create+schedule path used by handleCreatePod and
// by the Function bootstrap/autoscale loop, which need to spin up backing
// Pods without going through an HTTP round trip.
func (s *Server) createPod(pod *types.Pod) error {
	pod.CreatedAt = time.Now()
	pod.Status = types.PodStatus{Phase: types.PodCreating}

	if err := store.CreatePod(s.kv, pod); err != nil {
		return err
	}

	payload, err := json.Marshal(pod)
	if err != nil {
		return err
	}
	if _, err := s.bus.Publish(bus.TopicScheduler, bus.KeyCreate, payload); err != nil {
		return apierr.Unavailable(err, "publish scheduling request")
	}
	return nil
}

// handleUpdatePod applies only mutable fields (labels); the Spec stays
// immutable in the store. If the Pod is already bound to a Node, the
// update is forwarded there too.
func (s *Server) handleUpdatePod(w http.ResponseWriter, r *http.Request) {
	ns, name := pathValue(r, "ns"), pathValue(r, "name")

	var incoming types.Pod
	if err := decodeJSON(r, &incoming); err != nil {
		writeError(w, err)
		return
	}

	existing, err := store.GetPod(s.kv, ns, name)
	if err != nil {
		writeError(w, err)
		return
	}
	existing.Labels = incoming.Labels

	if err := store.PutPod(s.kv, existing); err != nil {
		writeError(w, err)
		return
	}

	if existing.Status.NodeName != "" {
		payload, err := json.Marshal(existing)
		if err != nil {
			writeError(w, err)
			return
		}
		if _, err := s.bus.Publish(bus.PodTopic(existing.Status.NodeName), bus.KeyUpdate, payload); err != nil {
			writeError(w, apierr.Unavailable(err, "publish pod update"))
			return
		}
	}

	writeJSON(w, http.StatusOK, existing)
}

// handleDeletePod is idempotent: deleting an unknown Pod surfaces
// not-found rather than an internal error (spec.md §4.1).
func (s *Server) handleDeletePod(w http.ResponseWriter, r *http.Request) {
	ns, name := pathValue(r, "ns"), pathValue(r, "name")

	existing, err := store.GetPod(s.kv, ns, name)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.deletePod(existing); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// deletePod is the shared delete path used by handleDeletePod and by the
// Function deletion/autoscale-down paths.
func (s *Server) deletePod(pod *types.Pod) error {
	if pod.Status.NodeName != "" {
		s.publishPodDelete(pod)
	}
	return store.DeletePod(s.kv, pod.Namespace, pod.Name)
}

func (s *Server) handleGetPodStatus(w http.ResponseWriter, r *http.Request) {
	pod, err := store.GetPod(s.kv, pathValue(r, "ns"), pathValue(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &pod.Status)
}

// handleUpdatePodStatus writes through a status transition reported by the
// node agent.
func (s *Server) handleUpdatePodStatus(w http.ResponseWriter, r *http.Request) {
	ns, name := pathValue(r, "ns"), pathValue(r, "name")

	var status types.PodStatus
	if err := decodeJSON(r, &status); err != nil {
		writeError(w, err)
		return
	}

	pod, err := store.GetPod(s.kv, ns, name)
	if err != nil {
		writeError(w, err)
		return
	}
	pod.Status = status

	if err := store.PutPod(s.kv, pod); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &pod.Status)
}

type podIP struct {
	SubnetIP string `json:"subnetIP"`
}

func (s *Server) handleGetPodIP(w http.ResponseWriter, r *http.Request) {
	pod, err := store.GetPod(s.kv, pathValue(r, "ns"), pathValue(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &podIP{SubnetIP: pod.Status.SubnetIP})
}

// handleUpdatePodIP writes through the overlay IP the node agent assigned.
func (s *Server) handleUpdatePodIP(w http.ResponseWriter, r *http.Request) {
	ns, name := pathValue(r, "ns"), pathValue(r, "name")

	var body podIP
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	pod, err := store.GetPod(s.kv, ns, name)
	if err != nil {
		writeError(w, err)
		return
	}
	pod.Status.SubnetIP = body.SubnetIP

	if err := store.PutPod(s.kv, pod); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &body)
}
