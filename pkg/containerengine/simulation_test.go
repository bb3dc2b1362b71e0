package containerengine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulationLifecycle(t *testing.T) {
	s := NewSimulation()
	ctx := context.Background()

	id, err := s.CreateContainer(ctx, ContainerRequest{ID: "c1", Image: "busybox"})
	require.NoError(t, err)
	assert.Equal(t, "c1", id)

	state, err := s.Status(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, StatePending, state)

	require.NoError(t, s.StartContainer(ctx, "c1"))
	state, err = s.Status(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, StateRunning, state)

	ip, err := s.IP(ctx, "c1")
	require.NoError(t, err)
	assert.NotEmpty(t, ip)

	require.NoError(t, s.StopContainer(ctx, "c1", 5*time.Second))
	state, err = s.Status(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, StateComplete, state)

	require.NoError(t, s.DeleteContainer(ctx, "c1"))
	_, err = s.Status(ctx, "c1")
	assert.Error(t, err)
}

func TestSimulationDuplicateCreate(t *testing.T) {
	s := NewSimulation()
	ctx := context.Background()

	_, err := s.CreateContainer(ctx, ContainerRequest{ID: "c1", Image: "busybox"})
	require.NoError(t, err)

	_, err = s.CreateContainer(ctx, ContainerRequest{ID: "c1", Image: "busybox"})
	assert.Error(t, err)
}
