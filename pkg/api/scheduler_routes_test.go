package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeforge/cove/pkg/bus"
	"github.com/nodeforge/cove/pkg/store"
	"github.com/nodeforge/cove/pkg/types"
)

func TestBindPodPublishesAddToNodeTopic(t *testing.T) {
	s := newTestServer(t)

	pod := &types.Pod{
		ObjectMeta: types.ObjectMeta{Namespace: "default", Name: "web-1"},
		Status:     types.PodStatus{Phase: types.PodCreating},
	}
	require.NoError(t, store.CreatePod(s.kv, pod))

	req := httptest.NewRequest(http.MethodPut, "/scheduler/namespaces/default/pods/web-1/nodes/worker-1", nil)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)

	bound, err := store.GetPod(s.kv, "default", "web-1")
	require.NoError(t, err)
	assert.Equal(t, "worker-1", bound.Status.NodeName)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	consumer := s.bus.Consumer(bus.PodTopic("worker-1"), "test")
	msg, ok, err := consumer.Poll(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, bus.KeyAdd, msg.Key)
}

func TestBindUnknownPodIsNotFound(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPut, "/scheduler/namespaces/default/pods/ghost/nodes/worker-1", nil)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
