package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeforge/cove/pkg/store"
	"github.com/nodeforge/cove/pkg/types"
)

func TestCreateReplicaSetSweepsExistingPods(t *testing.T) {
	s := newTestServer(t)

	require.NoError(t, store.CreatePod(s.kv, &types.Pod{
		ObjectMeta: types.ObjectMeta{Namespace: "default", Name: "web-1", Labels: map[string]string{"app": "web"}},
	}))
	require.NoError(t, store.CreatePod(s.kv, &types.Pod{
		ObjectMeta: types.ObjectMeta{Namespace: "default", Name: "other-1", Labels: map[string]string{"app": "other"}},
	}))

	body := strings.NewReader(`{"spec":{"replicas":2,"selector":{"app":"web"}}}`)
	req := httptest.NewRequest(http.MethodPost, "/namespaces/default/replicasets/web", body)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var rs types.ReplicaSet
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rs))
	assert.Equal(t, 1, rs.Status.ObservedReplicas)
	assert.Equal(t, []string{"web-1"}, rs.Status.OwnedPods)
}

func TestDeleteReplicaSetCascadesToPodsAndHPAs(t *testing.T) {
	s := newTestServer(t)

	require.NoError(t, store.CreatePod(s.kv, &types.Pod{
		ObjectMeta: types.ObjectMeta{Namespace: "default", Name: "web-1"},
		Status:     types.PodStatus{NodeName: "worker-1"},
	}))
	require.NoError(t, store.CreateReplicaSet(s.kv, &types.ReplicaSet{
		ObjectMeta: types.ObjectMeta{Namespace: "default", Name: "web"},
		Status:     types.ReplicaSetStatus{OwnedPods: []string{"web-1"}},
	}))
	require.NoError(t, store.CreateHPA(s.kv, &types.HorizontalPodAutoscaler{
		ObjectMeta: types.ObjectMeta{Namespace: "default", Name: "web-hpa"},
		Spec:       types.HPASpec{Target: types.HPATarget{Kind: "ReplicaSet", Name: "web"}},
	}))

	req := httptest.NewRequest(http.MethodDelete, "/namespaces/default/replicasets/web", nil)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)

	_, err := store.GetPod(s.kv, "default", "web-1")
	assert.Error(t, err)
	_, err = store.GetHPA(s.kv, "default", "web-hpa")
	assert.Error(t, err)
	_, err = store.GetReplicaSet(s.kv, "default", "web")
	assert.Error(t, err)
}
