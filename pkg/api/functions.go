package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nodeforge/cove/pkg/apierr"
	"github.com/nodeforge/cove/pkg/faas"
	"github.com/nodeforge/cove/pkg/metrics"
	"github.com/nodeforge/cove/pkg/store"
	"github.com/nodeforge/cove/pkg/types"
)

const (
	functionColdStartPollInterval = 50 * time.Millisecond
	functionColdStartTimeout      = 30 * time.Second
	functionColdStartGrace        = 200 * time.Millisecond
)

func (s *Server) registerFunctionRoutes() {
	s.mux.HandleFunc("GET /functions", s.handleListAllFunctions)
	s.mux.HandleFunc("GET /namespaces/{ns}/functions", s.handleListFunctions)
	s.mux.HandleFunc("GET /namespaces/{ns}/functions/{name}", s.handleGetFunction)
	s.mux.HandleFunc("POST /namespaces/{ns}/functions/{name}", s.handleCreateFunction)
	s.mux.HandleFunc("DELETE /namespaces/{ns}/functions/{name}", s.handleDeleteFunction)
	s.mux.HandleFunc("PATCH /namespaces/{ns}/functions/{name}", s.handleInvokeFunction)
}

func (s *Server) handleListAllFunctions(w http.ResponseWriter, r *http.Request) {
	fns, err := store.ListAllFunctions(s.kv)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fns)
}

func (s *Server) handleListFunctions(w http.ResponseWriter, r *http.Request) {
	fns, err := store.ListFunctions(s.kv, pathValue(r, "ns"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fns)
}

func (s *Server) handleGetFunction(w http.ResponseWriter, r *http.Request) {
	fn, err := store.GetFunction(s.kv, pathValue(r, "ns"), pathValue(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fn)
}

// handleCreateFunction unpacks a multipart code archive, builds it into a
// runnable image, and persists the image reference before the Function is
// invokable (spec.md §4.1's "Function create").
func (s *Server) handleCreateFunction(w http.ResponseWriter, r *http.Request) {
	ns, name := pathValue(r, "ns"), pathValue(r, "name")

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, apierr.Validation("invalid multipart upload: %v", err))
		return
	}
	archive, _, err := r.FormFile("archive")
	if err != nil {
		writeError(w, apierr.Validation("missing archive form field: %v", err))
		return
	}
	defer archive.Close()

	trigger := r.FormValue("trigger")
	if trigger == "" {
		trigger = "http"
	}

	image, err := s.cfg.Builder.Build(r.Context(), ns, name, archive)
	if err != nil {
		writeError(w, apierr.Unavailable(err, "build function image"))
		return
	}

	fn := types.Function{
		ObjectMeta: types.ObjectMeta{Namespace: ns, Name: name, CreatedAt: time.Now()},
		Spec:       types.FunctionSpec{Trigger: trigger},
		Status:     types.FunctionStatus{Image: image},
	}
	if err := store.CreateFunction(s.kv, &fn); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &fn)
}

// handleDeleteFunction acquires the exclusive function lock, tears down
// every backing Pod, then removes the record.
func (s *Server) handleDeleteFunction(w http.ResponseWriter, r *http.Request) {
	ns, name := pathValue(r, "ns"), pathValue(r, "name")

	s.fnMu.Lock()
	defer s.fnMu.Unlock()

	fn, err := store.GetFunction(s.kv, ns, name)
	if err != nil {
		writeError(w, err)
		return
	}

	for _, podName := range fn.Status.PodNames {
		if pod, err := store.GetPod(s.kv, ns, podName); err == nil {
			_ = s.deletePod(pod)
		}
	}

	if err := store.DeleteFunction(s.kv, ns, name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleInvokeFunction holds a shared lock on the function record, picks a
// backing Pod uniformly at random, and forwards the request body to it. If
// no Pod is running yet, it upgrades to the exclusive lock, double-checks,
// bootstraps the first Pod, and waits for it to come up before proceeding
// (spec.md §4.1 "Function invoke", §5's explicit release-and-reacquire
// upgrade with a double-check).
func (s *Server) handleInvokeFunction(w http.ResponseWriter, r *http.Request) {
	ns, name := pathValue(r, "ns"), pathValue(r, "name")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apierr.Validation("read request body: %v", err))
		return
	}

	pod, err := s.acquireFunctionPod(r.Context(), ns, name)
	if err != nil {
		writeError(w, err)
		return
	}

	s.fnMu.RLock()
	fn, err := store.GetFunction(s.kv, ns, name)
	if err == nil {
		fn.Status.RequestsSinceTick++
		_ = store.PutFunction(s.kv, fn)
	}
	s.fnMu.RUnlock()

	metrics.FunctionInvocationsTotal.WithLabelValues(name).Inc()

	resp, err := s.forwardToPod(r.Context(), pod, body)
	if err != nil {
		writeError(w, apierr.Unavailable(err, "invoke function %s/%s", ns, name))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp)
}

// acquireFunctionPod returns an existing backing Pod if one is running, or
// bootstraps the first one under the exclusive lock.
func (s *Server) acquireFunctionPod(ctx context.Context, ns, name string) (*types.Pod, error) {
	s.fnMu.RLock()
	fn, err := store.GetFunction(s.kv, ns, name)
	if err != nil {
		s.fnMu.RUnlock()
		return nil, err
	}
	pods, err := s.runnableFunctionPods(ns, fn)
	if err != nil {
		s.fnMu.RUnlock()
		return nil, err
	}
	if pod := faas.PickPod(pods); pod != nil {
		s.fnMu.RUnlock()
		return pod, nil
	}
	s.fnMu.RUnlock()

	s.fnMu.Lock()
	fn, err = store.GetFunction(s.kv, ns, name)
	if err != nil {
		s.fnMu.Unlock()
		return nil, err
	}
	pods, err = s.runnableFunctionPods(ns, fn)
	if err != nil {
		s.fnMu.Unlock()
		return nil, err
	}
	if pod := faas.PickPod(pods); pod != nil {
		s.fnMu.Unlock()
		return pod, nil
	}

	podName := fmt.Sprintf("%s-%d", fn.Name, len(fn.Status.PodNames)+1)
	pod := &types.Pod{
		ObjectMeta: types.ObjectMeta{Namespace: ns, Name: podName, Labels: map[string]string{"cove.io/function": fn.Name}},
		Spec: types.PodSpec{Containers: []types.ContainerSpec{{
			Name:  fn.Name,
			Image: fn.Status.Image,
		}}},
	}
	if err := s.createPod(pod); err != nil {
		s.fnMu.Unlock()
		return nil, err
	}
	fn.Status.PodNames = append(fn.Status.PodNames, podName)
	if err := store.PutFunction(s.kv, fn); err != nil {
		s.fnMu.Unlock()
		return nil, err
	}
	metrics.FunctionColdStarts.Inc()
	s.fnMu.Unlock()

	return s.waitForPodRunning(ctx, ns, podName)
}

func (s *Server) runnableFunctionPods(ns string, fn *types.Function) ([]*types.Pod, error) {
	var pods []*types.Pod
	for _, podName := range fn.Status.PodNames {
		pod, err := store.GetPod(s.kv, ns, podName)
		if err != nil {
			continue
		}
		pods = append(pods, pod)
	}
	return pods, nil
}

func (s *Server) waitForPodRunning(ctx context.Context, ns, name string) (*types.Pod, error) {
	deadline := time.Now().Add(functionColdStartTimeout)
	for time.Now().Before(deadline) {
		pod, err := store.GetPod(s.kv, ns, name)
		if err != nil {
			return nil, err
		}
		if pod.Status.Phase == types.PodRunning && pod.Status.SubnetIP != "" {
			time.Sleep(functionColdStartGrace)
			return pod, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(functionColdStartPollInterval):
		}
	}
	return nil, apierr.Unavailable(fmt.Errorf("pod %s/%s did not reach RUNNING in time", ns, name), "cold start")
}

func (s *Server) forwardToPod(ctx context.Context, pod *types.Pod, body []byte) ([]byte, error) {
	url := fmt.Sprintf("http://%s:8080/invoke", pod.Status.SubnetIP)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}
