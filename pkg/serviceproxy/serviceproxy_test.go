package serviceproxy

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeforge/cove/pkg/bus"
	"github.com/nodeforge/cove/pkg/network/proxy"
	"github.com/nodeforge/cove/pkg/types"
)

func newTestConsumer(t *testing.T) (*Consumer, bus.Bus, *proxy.ServiceProxy) {
	t.Helper()
	b := bus.NewMemBus()
	p, err := proxy.New("worker-1", proxy.SimulationBackend{})
	require.NoError(t, err)
	return New("worker-1", b, p), b, p
}

func publish(t *testing.T, b bus.Bus, node string, m message) {
	t.Helper()
	payload, err := json.Marshal(m)
	require.NoError(t, err)
	_, err = b.Publish(bus.ServiceProxyTopic(node), m.Action, payload)
	require.NoError(t, err)
}

func TestConsumerCreatesServiceFromMessage(t *testing.T) {
	c, b, _ := newTestConsumer(t)
	publish(t, b, "worker-1", message{
		Action:      bus.KeyCreate,
		ServiceName: "api",
		Namespace:   "default",
		ClusterIP:   "10.96.0.5",
		Port:        80,
		Protocol:    "TCP",
		Endpoints:   []types.Endpoint{{IP: "10.244.0.2", Port: 8080}},
	})

	consumer := b.Consumer(bus.ServiceProxyTopic("worker-1"), consumerGroup)
	msg, ok, err := consumer.Poll(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, c.apply(msg))
}

func TestConsumerDeleteIsIdempotent(t *testing.T) {
	c, b, _ := newTestConsumer(t)
	publish(t, b, "worker-1", message{
		Action:      bus.KeyDelete,
		ServiceName: "ghost",
		Namespace:   "default",
		ClusterIP:   "10.96.0.9",
		Port:        80,
		Protocol:    "TCP",
	})

	consumer := b.Consumer(bus.ServiceProxyTopic("worker-1"), consumerGroup)
	msg, ok, err := consumer.Poll(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	assert.NoError(t, c.apply(msg))
}

func TestConsumerStopIsIdempotent(t *testing.T) {
	c, _, _ := newTestConsumer(t)
	c.Stop()
	c.Stop()

	select {
	case <-c.stopCh:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("stopCh should be closed")
	}
}
