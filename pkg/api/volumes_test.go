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

func TestCreatePVDefaultsToAvailable(t *testing.T) {
	s := newTestServer(t)

	body := strings.NewReader(`{"spec":{"capacityBytes":1073741824,"storageClass":"standard","hostPath":{"path":"/data"}}}`)
	req := httptest.NewRequest(http.MethodPost, "/volumes/pv-1", body)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	pv, err := store.GetPV(s.kv, "pv-1")
	require.NoError(t, err)
	assert.Equal(t, types.PVAvailable, pv.Status.Phase)
}

func TestCreatePVCRequiresVolumeName(t *testing.T) {
	s := newTestServer(t)

	body := strings.NewReader(`{"spec":{"requestBytes":1073741824,"storageClass":"standard"}}`)
	req := httptest.NewRequest(http.MethodPost, "/namespaces/default/volumeclaims/data", body)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteBoundPVIsConflict(t *testing.T) {
	s := newTestServer(t)

	require.NoError(t, store.CreatePV(s.kv, &types.PersistentVolume{
		Name: "pv-1",
		Status: types.PersistentVolumeStatus{
			Phase:    types.PVBound,
			ClaimRef: &types.ObjectRef{Kind: "PersistentVolumeClaim", Namespace: "default", Name: "data"},
		},
	}))

	req := httptest.NewRequest(http.MethodDelete, "/volumes/pv-1", nil)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)
}
