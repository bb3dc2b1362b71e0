package dns

import (
	"context"
	"testing"
	"time"

	"github.com/nodeforge/cove/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerStartStop(t *testing.T) {
	kv := store.NewMemStore()
	s := NewServer(kv, &Config{ListenAddr: "127.0.0.1:0"})

	// ListenAndServe on "127.0.0.1:0" lets the OS pick a free port; we
	// only care that Start/Stop don't error and toggle running state.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := s.Start(ctx)
	require.NoError(t, err)
	assert.True(t, s.IsRunning())

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
}

func TestServerDoubleStartFails(t *testing.T) {
	kv := store.NewMemStore()
	s := NewServer(kv, &Config{ListenAddr: "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	err := s.Start(ctx)
	assert.Error(t, err)
}

func TestNewServerDefaults(t *testing.T) {
	kv := store.NewMemStore()
	s := NewServer(kv, nil)
	assert.Equal(t, DefaultListenAddr, s.listenAddr)
	assert.Equal(t, []string{DefaultUpstream}, s.upstream)
	assert.Equal(t, DefaultDomain, s.resolver.domain)
}
