package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nodeforge/cove/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientCreateAndGetPod(t *testing.T) {
	stored := &types.Pod{}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /namespaces/default/pods/web", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(stored))
		stored.Status.Phase = types.PodCreating
		json.NewEncoder(w).Encode(stored)
	})
	mux.HandleFunc("GET /namespaces/default/pods/web", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(stored)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	created, err := c.CreatePod(ctx, &types.Pod{
		ObjectMeta: types.ObjectMeta{Name: "web", Namespace: "default"},
	})
	require.NoError(t, err)
	assert.Equal(t, types.PodCreating, created.Status.Phase)

	got, err := c.GetPod(ctx, "default", "web")
	require.NoError(t, err)
	assert.Equal(t, "web", got.Name)
}

func TestClientNotFoundMapsToApierr(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /namespaces/default/pods/ghost", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "pod not found", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.GetPod(context.Background(), "default", "ghost")
	require.Error(t, err)
}

func TestClientSchedule(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /scheduler", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(SchedulerBind{Topic: "scheduler"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL)
	bind, err := c.Schedule(context.Background(), &types.Pod{ObjectMeta: types.ObjectMeta{Name: "web", Namespace: "default"}})
	require.NoError(t, err)
	assert.Equal(t, "scheduler", bind.Topic)
}

func TestClientBindPod(t *testing.T) {
	var hit bool
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /scheduler/namespaces/default/pods/web/nodes/n1", func(w http.ResponseWriter, r *http.Request) {
		hit = true
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL)
	require.NoError(t, c.BindPod(context.Background(), "default", "web", "n1"))
	assert.True(t, hit)
}

func TestClientInvokeFunction(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /namespaces/default/functions/hello", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL)
	result, err := c.InvokeFunction(context.Background(), "default", "hello", []byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, "pong", string(result.Body))
}
