package api

import (
	"encoding/json"
	"net/http"

	"github.com/nodeforge/cove/pkg/apierr"
	"github.com/nodeforge/cove/pkg/bus"
	"github.com/nodeforge/cove/pkg/store"
	"github.com/nodeforge/cove/pkg/types"
)

type schedulerBind struct {
	Topic string `json:"topic"`
}

func (s *Server) registerSchedulerRoutes() {
	s.mux.HandleFunc("POST /scheduler", s.handleScheduleRequest)
	s.mux.HandleFunc("PUT /scheduler/namespaces/{ns}/pods/{name}/nodes/{node}", s.handleBindPod)
}

// handleScheduleRequest re-publishes the given Pod onto the scheduler
// topic and tells the caller where to find it; mainly useful for
// re-requesting scheduling of a Pod stuck in CREATING.
func (s *Server) handleScheduleRequest(w http.ResponseWriter, r *http.Request) {
	var pod types.Pod
	if err := decodeJSON(r, &pod); err != nil {
		writeError(w, err)
		return
	}

	if pod.Name != "" {
		payload, err := json.Marshal(&pod)
		if err != nil {
			writeError(w, err)
			return
		}
		if _, err := s.bus.Publish(bus.TopicScheduler, bus.KeyCreate, payload); err != nil {
			writeError(w, apierr.Unavailable(err, "publish scheduling request"))
			return
		}
	}

	writeJSON(w, http.StatusOK, &schedulerBind{Topic: bus.TopicScheduler})
}

// handleBindPod writes nodeName on the Pod record and enqueues an ADD
// command on that Node's Pod topic with the full Pod spec, per spec.md
// §4.1/§4.2.
func (s *Server) handleBindPod(w http.ResponseWriter, r *http.Request) {
	ns, name, node := pathValue(r, "ns"), pathValue(r, "name"), pathValue(r, "node")

	pod, err := store.GetPod(s.kv, ns, name)
	if err != nil {
		writeError(w, err)
		return
	}
	pod.Status.NodeName = node

	if err := store.PutPod(s.kv, pod); err != nil {
		writeError(w, err)
		return
	}

	payload, err := json.Marshal(pod)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.bus.Publish(bus.PodTopic(node), bus.KeyAdd, payload); err != nil {
		writeError(w, apierr.Unavailable(err, "publish pod add"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
