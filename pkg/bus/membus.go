package bus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// topicLog is an append-only message log for one topic plus the set of
// consumer-group offset cursors reading it, mirroring the teacher's
// events.Broker (subscriber set guarded by a mutex) but shaped as a
// durable log with committed offsets instead of fan-out channels, since
// spec.md's scheduler topic needs "offsets commit only after bind
// success" rather than fire-and-forget broadcast.
type topicLog struct {
	mu       sync.Mutex
	messages []*Message
	groups   map[string]*groupCursor
	wake     chan struct{}
}

type groupCursor struct {
	mu     sync.Mutex
	offset int64
}

func newTopicLog() *topicLog {
	return &topicLog{
		groups: make(map[string]*groupCursor),
		wake:   make(chan struct{}),
	}
}

func (t *topicLog) broadcastWake() {
	close(t.wake)
	t.wake = make(chan struct{})
}

// MemBus is an in-memory, single-process Bus. It is the reference
// implementation used when no external broker is configured, and the
// backend every package's tests run against.
type MemBus struct {
	mu     sync.Mutex
	topics map[string]*topicLog
	closed bool
}

// NewMemBus creates an empty in-memory bus.
func NewMemBus() *MemBus {
	return &MemBus{topics: make(map[string]*topicLog)}
}

func (b *MemBus) topic(name string) *topicLog {
	b.mu.Lock()
	defer b.mu.Unlock()
	tl, ok := b.topics[name]
	if !ok {
		tl = newTopicLog()
		b.topics[name] = tl
	}
	return tl
}

func (b *MemBus) Publish(topic, key string, payload []byte) (*Message, error) {
	tl := b.topic(topic)
	tl.mu.Lock()
	defer tl.mu.Unlock()

	msg := &Message{
		ID:      uuid.NewString(),
		Topic:   topic,
		Key:     key,
		Payload: payload,
		Offset:  int64(len(tl.messages)),
	}
	tl.messages = append(tl.messages, msg)
	tl.broadcastWake()
	return msg, nil
}

func (b *MemBus) Consumer(topic, group string) Consumer {
	tl := b.topic(topic)
	tl.mu.Lock()
	cursor, ok := tl.groups[group]
	if !ok {
		cursor = &groupCursor{}
		tl.groups[group] = cursor
	}
	tl.mu.Unlock()
	return &memConsumer{bus: b, topic: topic, tl: tl, cursor: cursor}
}

func (b *MemBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

type memConsumer struct {
	bus    *MemBus
	topic  string
	tl     *topicLog
	cursor *groupCursor
}

func (c *memConsumer) Poll(ctx context.Context) (*Message, bool, error) {
	c.cursor.mu.Lock()
	defer c.cursor.mu.Unlock()

	c.tl.mu.Lock()
	if int(c.cursor.offset) < len(c.tl.messages) {
		msg := c.tl.messages[c.cursor.offset]
		c.tl.mu.Unlock()
		return msg, true, nil
	}
	wake := c.tl.wake
	c.tl.mu.Unlock()

	timer := time.NewTimer(longPollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case <-wake:
		c.tl.mu.Lock()
		defer c.tl.mu.Unlock()
		if int(c.cursor.offset) < len(c.tl.messages) {
			return c.tl.messages[c.cursor.offset], true, nil
		}
		return nil, false, nil
	case <-timer.C:
		return nil, false, nil
	}
}

func (c *memConsumer) Commit(msg *Message) error {
	c.cursor.mu.Lock()
	defer c.cursor.mu.Unlock()
	if msg.Offset == c.cursor.offset {
		c.cursor.offset++
	}
	return nil
}
