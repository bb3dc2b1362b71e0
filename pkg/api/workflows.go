package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/nodeforge/cove/pkg/apierr"
	"github.com/nodeforge/cove/pkg/store"
	"github.com/nodeforge/cove/pkg/types"
)

func (s *Server) registerWorkflowRoutes() {
	s.mux.HandleFunc("GET /workflows", s.handleListAllWorkflows)
	s.mux.HandleFunc("GET /namespaces/{ns}/workflows", s.handleListWorkflows)
	s.mux.HandleFunc("GET /namespaces/{ns}/workflows/{name}", s.handleGetWorkflow)
	s.mux.HandleFunc("POST /namespaces/{ns}/workflows/{name}", s.handleCreateWorkflow)
	s.mux.HandleFunc("PUT /namespaces/{ns}/workflows/{name}", s.handleUpdateWorkflow)
	s.mux.HandleFunc("DELETE /namespaces/{ns}/workflows/{name}", s.handleDeleteWorkflow)
	s.mux.HandleFunc("PATCH /namespaces/{ns}/workflows/{name}", s.handleInvokeWorkflow)
}

func (s *Server) handleListAllWorkflows(w http.ResponseWriter, r *http.Request) {
	wfs, err := store.ListAllWorkflows(s.kv)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wfs)
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	wfs, err := store.ListWorkflows(s.kv, pathValue(r, "ns"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wfs)
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := store.GetWorkflow(s.kv, pathValue(r, "ns"), pathValue(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

// handleCreateWorkflow rejects cyclic step graphs up front so invocation
// never has to detect a cycle mid-walk (spec.md: "acyclic").
func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	ns, name := pathValue(r, "ns"), pathValue(r, "name")

	var wf types.Workflow
	if err := decodeJSON(r, &wf); err != nil {
		writeError(w, err)
		return
	}
	wf.Namespace, wf.Name = ns, name
	wf.CreatedAt = time.Now()

	if _, err := topoSortSteps(wf.Spec.Steps); err != nil {
		writeError(w, apierr.Validation("workflow %s/%s: %v", ns, name, err))
		return
	}

	if err := store.CreateWorkflow(s.kv, &wf); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &wf)
}

func (s *Server) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	ns, name := pathValue(r, "ns"), pathValue(r, "name")

	var incoming types.Workflow
	if err := decodeJSON(r, &incoming); err != nil {
		writeError(w, err)
		return
	}

	if _, err := topoSortSteps(incoming.Spec.Steps); err != nil {
		writeError(w, apierr.Validation("workflow %s/%s: %v", ns, name, err))
		return
	}

	existing, err := store.GetWorkflow(s.kv, ns, name)
	if err != nil {
		writeError(w, err)
		return
	}
	existing.Spec = incoming.Spec
	existing.Labels = incoming.Labels

	if err := store.PutWorkflow(s.kv, existing); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	ns, name := pathValue(r, "ns"), pathValue(r, "name")
	if err := store.DeleteWorkflow(s.kv, ns, name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleInvokeWorkflow synchronously walks the step graph in dependency
// order, invoking each step's function and failing the whole request if any
// step fails (spec.md: "synchronous executor traverses graph").
func (s *Server) handleInvokeWorkflow(w http.ResponseWriter, r *http.Request) {
	ns, name := pathValue(r, "ns"), pathValue(r, "name")

	wf, err := store.GetWorkflow(s.kv, ns, name)
	if err != nil {
		writeError(w, err)
		return
	}

	order, err := topoSortSteps(wf.Spec.Steps)
	if err != nil {
		writeError(w, apierr.Validation("workflow %s/%s: %v", ns, name, err))
		return
	}

	results := make(map[string][]byte, len(order))
	for _, step := range order {
		pod, err := s.acquireFunctionPod(r.Context(), ns, step.Function)
		if err != nil {
			writeError(w, apierr.Unavailable(err, "invoke step %s (function %s)", step.Name, step.Function))
			return
		}
		resp, err := s.forwardToPod(r.Context(), pod, nil)
		if err != nil {
			writeError(w, apierr.Unavailable(err, "invoke step %s (function %s)", step.Name, step.Function))
			return
		}
		results[step.Name] = resp
	}

	writeJSON(w, http.StatusOK, results)
}

// topoSortSteps returns the workflow's steps in an order where every step
// follows everything it depends on, or an error if the graph has a cycle or
// an unknown dependency.
func topoSortSteps(steps []types.WorkflowStep) ([]types.WorkflowStep, error) {
	byName := make(map[string]types.WorkflowStep, len(steps))
	for _, st := range steps {
		byName[st.Name] = st
	}

	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[string]int, len(steps))
	var order []types.WorkflowStep

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visited:
			return nil
		case visiting:
			return fmt.Errorf("cycle detected at step %q", name)
		}
		st, ok := byName[name]
		if !ok {
			return fmt.Errorf("unknown step %q in dependsOn", name)
		}
		state[name] = visiting
		for _, dep := range st.DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[name] = visited
		order = append(order, st)
		return nil
	}

	for _, st := range steps {
		if err := visit(st.Name); err != nil {
			return nil, err
		}
	}
	return order, nil
}
