package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateAndGetDNSRecord(t *testing.T) {
	s := newTestServer(t)

	body := strings.NewReader(`{"spec":{"host":"web.cove.local","servicePath":"default/web"}}`)
	req := httptest.NewRequest(http.MethodPost, "/namespaces/default/dnsrecords/web", body)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/namespaces/default/dnsrecords/web", nil)
	w = httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "web.cove.local")
}

func TestDeleteUnknownDNSRecordIsNotFound(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/namespaces/default/dnsrecords/ghost", nil)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
