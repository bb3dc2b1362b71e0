package api

import (
	"net/http"
	"time"

	"github.com/nodeforge/cove/pkg/bus"
	"github.com/nodeforge/cove/pkg/store"
	"github.com/nodeforge/cove/pkg/types"
)

func (s *Server) registerNodeRoutes() {
	s.mux.HandleFunc("GET /nodes", s.handleListNodes)
	s.mux.HandleFunc("POST /nodes/{name}", s.handleRegisterNode)
	s.mux.HandleFunc("PUT /nodes/{name}", s.handleHeartbeat)
	s.mux.HandleFunc("GET /nodes/{name}/pods", s.handleListNodePods)
}

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := store.ListNodes(s.kv)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

// handleRegisterNode creates the Node record and its per-node topics, per
// spec.md §4.1's Create contract.
func (s *Server) handleRegisterNode(w http.ResponseWriter, r *http.Request) {
	name := pathValue(r, "name")

	var node types.Node
	if err := decodeJSON(r, &node); err != nil {
		writeError(w, err)
		return
	}
	node.Name = name
	node.CreatedAt = time.Now()
	node.Status = types.NodeStatus{
		Phase:         types.NodeOnline,
		LastHeartbeat: time.Now(),
		PodTopic:      bus.PodTopic(name),
		ServiceTopic:  bus.ServiceProxyTopic(name),
	}

	if err := store.CreateNode(s.kv, &node); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &node)
}

// handleHeartbeat applies a heartbeat: only status fields are mutable.
func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	name := pathValue(r, "name")

	existing, err := store.GetNode(s.kv, name)
	if err != nil {
		writeError(w, err)
		return
	}

	existing.Status.Phase = types.NodeOnline
	existing.Status.LastHeartbeat = time.Now()

	if err := store.PutNode(s.kv, existing); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) handleListNodePods(w http.ResponseWriter, r *http.Request) {
	name := pathValue(r, "name")
	pods, err := store.ListPodsOnNode(s.kv, name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pods)
}
