package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishConsumeCommit(t *testing.T) {
	b := NewMemBus()
	defer b.Close()

	_, err := b.Publish(TopicScheduler, KeyAdd, []byte("pod-1"))
	require.NoError(t, err)

	c := b.Consumer(TopicScheduler, "schedulers")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msg, ok, err := c.Poll(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "pod-1", string(msg.Payload))

	require.NoError(t, c.Commit(msg))
}

func TestUncommittedMessageIsRedelivered(t *testing.T) {
	b := NewMemBus()
	defer b.Close()

	_, err := b.Publish(TopicScheduler, KeyAdd, []byte("pod-1"))
	require.NoError(t, err)

	c := b.Consumer(TopicScheduler, "schedulers")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	first, ok, err := c.Poll(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// Simulate a failed bind: never commit. The next poll must redeliver
	// the same message (at-least-once), not advance past it.
	second, ok, err := c.Poll(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.Offset, second.Offset)
}

func TestPollReturnsFalseOnEmptyTopicAfterTimeout(t *testing.T) {
	b := NewMemBus()
	defer b.Close()

	c := b.Consumer(PodTopic("node-1"), "nodeagent")
	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	_, ok, err := c.Poll(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConsumerGroupsAreIndependent(t *testing.T) {
	b := NewMemBus()
	defer b.Close()

	_, err := b.Publish(TopicScheduler, KeyAdd, []byte("pod-1"))
	require.NoError(t, err)

	groupA := b.Consumer(TopicScheduler, "a")
	groupB := b.Consumer(TopicScheduler, "b")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msgA, ok, err := groupA.Poll(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, groupA.Commit(msgA))

	// group b never committed, so it still sees the message even though
	// group a already consumed it.
	msgB, ok, err := groupB.Poll(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, msgA.Offset, msgB.Offset)
}

func TestTopicHelpers(t *testing.T) {
	assert.Equal(t, "pod.node-1", PodTopic("node-1"))
	assert.Equal(t, "serviceproxy.node-1", ServiceProxyTopic("node-1"))
	assert.Equal(t, "nodeport.default", NodePortTopic("default"))
}
