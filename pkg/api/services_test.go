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

func TestUpdateServiceAssignsClusterIPOnce(t *testing.T) {
	s := newTestServer(t)

	require.NoError(t, store.CreateService(s.kv, &types.Service{
		ObjectMeta: types.ObjectMeta{Namespace: "default", Name: "web"},
	}))

	body := strings.NewReader(`{"status":{"clusterIP":"10.0.0.5"}}`)
	req := httptest.NewRequest(http.MethodPut, "/namespaces/default/services/web", body)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	svc, err := store.GetService(s.kv, "default", "web")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", svc.Status.ClusterIP)
}

func TestUpdateServiceConflictsWhenClusterIPAlreadySet(t *testing.T) {
	s := newTestServer(t)

	require.NoError(t, store.CreateService(s.kv, &types.Service{
		ObjectMeta: types.ObjectMeta{Namespace: "default", Name: "web"},
		Status:     types.ServiceStatus{ClusterIP: "10.0.0.5"},
	}))

	body := strings.NewReader(`{"status":{"clusterIP":"10.0.0.9"}}`)
	req := httptest.NewRequest(http.MethodPut, "/namespaces/default/services/web", body)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}
