package controller

import (
	"net/http/httptest"
	"testing"

	"github.com/nodeforge/cove/pkg/api"
	"github.com/nodeforge/cove/pkg/bus"
	"github.com/nodeforge/cove/pkg/client"
	"github.com/nodeforge/cove/pkg/store"
)

// newHarness wires a real api.Server backed by an in-memory store and
// bus behind an httptest server, and returns a client.Client pointed at
// it plus the bus so controller tests exercise the same HTTP path the
// controller-manager process uses in production.
func newHarness(t *testing.T) (*client.Client, bus.Bus) {
	t.Helper()
	kv := store.NewMemStore()
	b := bus.NewMemBus()
	srv := api.NewServer(kv, b, api.Config{})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return client.New(ts.URL), b
}
