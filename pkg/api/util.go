package api

import (
	"encoding/json"

	"github.com/nodeforge/cove/pkg/bus"
	"github.com/nodeforge/cove/pkg/types"
)

// labelsSuperset reports whether labels contains every key/value in
// selector. Used by the ReplicaSet create handler to match existing Pods
// against the new ReplicaSet's selector, per spec.md §4.5.
func labelsSuperset(labels, selector map[string]string) bool {
	for k, v := range selector {
		if labels[k] != v {
			return false
		}
	}
	return true
}

// publishPodDelete best-effort publishes a DELETE command to the Pod's
// owning Node topic; used by cascading deletes where the Pod record is
// about to be removed directly rather than through handleDeletePod.
func (s *Server) publishPodDelete(pod *types.Pod) {
	payload, err := json.Marshal(pod)
	if err != nil {
		return
	}
	_, _ = s.bus.Publish(bus.PodTopic(pod.Status.NodeName), bus.KeyDelete, payload)
}
