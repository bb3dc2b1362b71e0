package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeforge/cove/pkg/store"
	"github.com/nodeforge/cove/pkg/types"
)

func TestCreateHPARejectsNonReplicaSetTarget(t *testing.T) {
	s := newTestServer(t)

	body := strings.NewReader(`{"spec":{"target":{"kind":"Pod","name":"web"}}}`)
	req := httptest.NewRequest(http.MethodPost, "/namespaces/default/hpas/web-hpa", body)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateHPAFlagsTargetReplicaSet(t *testing.T) {
	s := newTestServer(t)

	require.NoError(t, store.CreateReplicaSet(s.kv, &types.ReplicaSet{
		ObjectMeta: types.ObjectMeta{Namespace: "default", Name: "web"},
	}))

	body := strings.NewReader(`{"spec":{"target":{"kind":"ReplicaSet","name":"web"},"minReplicas":1,"maxReplicas":5,"highLoad":10,"lowLoad":1}}`)
	req := httptest.NewRequest(http.MethodPost, "/namespaces/default/hpas/web-hpa", body)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	rs, err := store.GetReplicaSet(s.kv, "default", "web")
	require.NoError(t, err)
	assert.True(t, rs.Status.HPAControlled)
}

func TestCreateHPAMissingTargetIsNotFound(t *testing.T) {
	s := newTestServer(t)

	body := strings.NewReader(`{"spec":{"target":{"kind":"ReplicaSet","name":"missing"}}}`)
	req := httptest.NewRequest(http.MethodPost, "/namespaces/default/hpas/web-hpa", body)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
