package scheduler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeforge/cove/pkg/bus"
	"github.com/nodeforge/cove/pkg/client"
	"github.com/nodeforge/cove/pkg/types"
)

func newTestScheduler(t *testing.T, nodes []*types.Node, onBind func(ns, name, node string)) (*Scheduler, bus.Bus) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /nodes", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(nodes)
	})
	mux.HandleFunc("PUT /scheduler/namespaces/default/pods/web/nodes/worker-2", func(w http.ResponseWriter, r *http.Request) {
		onBind("default", "web", "worker-2")
	})
	mux.HandleFunc("PUT /scheduler/namespaces/default/pods/web/nodes/worker-1", func(w http.ResponseWriter, r *http.Request) {
		onBind("default", "web", "worker-1")
	})
	mux.HandleFunc("PUT /scheduler/namespaces/default/pods/ghost/nodes/worker-1", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "pod not found", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	b := bus.NewMemBus()
	return NewScheduler(client.New(srv.URL), b), b
}

func publishPod(t *testing.T, b bus.Bus, pod *types.Pod) {
	t.Helper()
	payload, err := json.Marshal(pod)
	require.NoError(t, err)
	_, err = b.Publish(bus.TopicScheduler, bus.KeyCreate, payload)
	require.NoError(t, err)
}

func TestSchedulerBindsToOnlineNodeMatchingSelector(t *testing.T) {
	var bound string
	nodes := []*types.Node{
		{Name: "worker-1", Status: types.NodeStatus{Phase: types.NodeOffline}},
		{Name: "worker-2", Status: types.NodeStatus{Phase: types.NodeOnline}, Labels: map[string]string{"zone": "a"}},
	}
	s, b := newTestScheduler(t, nodes, func(ns, name, node string) { bound = node })

	pod := &types.Pod{
		ObjectMeta: types.ObjectMeta{Name: "web", Namespace: "default"},
		Spec:       types.PodSpec{NodeSelector: map[string]string{"zone": "a"}},
	}
	publishPod(t, b, pod)

	msg, ok, err := b.Consumer(bus.TopicScheduler, "probe").Poll(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.handleMessage(context.Background(), msg))
	assert.Equal(t, "worker-2", bound)
}

func TestSchedulerReturnsErrorWhenNoCandidates(t *testing.T) {
	nodes := []*types.Node{
		{Name: "worker-1", Status: types.NodeStatus{Phase: types.NodeOffline}},
	}
	s, b := newTestScheduler(t, nodes, func(ns, name, node string) {})

	pod := &types.Pod{ObjectMeta: types.ObjectMeta{Name: "web", Namespace: "default"}}
	publishPod(t, b, pod)

	msg, ok, err := b.Consumer(bus.TopicScheduler, "probe2").Poll(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	err = s.handleMessage(context.Background(), msg)
	assert.Error(t, err)
}

func TestSchedulerSwallowsNotFoundOnBind(t *testing.T) {
	nodes := []*types.Node{
		{Name: "worker-1", Status: types.NodeStatus{Phase: types.NodeOnline}},
	}
	s, b := newTestScheduler(t, nodes, func(ns, name, node string) {})

	pod := &types.Pod{ObjectMeta: types.ObjectMeta{Name: "ghost", Namespace: "default"}}
	publishPod(t, b, pod)

	msg, ok, err := b.Consumer(bus.TopicScheduler, "probe3").Poll(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	assert.NoError(t, s.handleMessage(context.Background(), msg))
}

func TestLabelsSuperset(t *testing.T) {
	assert.True(t, labelsSuperset(map[string]string{"zone": "a", "gpu": "true"}, map[string]string{"zone": "a"}))
	assert.False(t, labelsSuperset(map[string]string{"zone": "b"}, map[string]string{"zone": "a"}))
	assert.True(t, labelsSuperset(map[string]string{}, nil))
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	s := NewScheduler(client.New("http://unused"), bus.NewMemBus())
	s.Stop()
	s.Stop()

	select {
	case <-s.stopCh:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("stopCh should be closed")
	}
}
