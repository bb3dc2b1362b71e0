// Package bus implements the asynchronous message bus Cove's components
// use to hand work to each other: scheduler dispatch, per-node Pod
// commands, per-node service-proxy updates, and cluster-wide NodePort
// coordination (spec.md §2, §6). The bus itself is an external
// collaborator; this package defines the Bus/Consumer interfaces plus an
// in-memory embedded implementation (MemBus) so the module runs
// standalone, the same "narrow interface, real embedded reference impl"
// shape the KV store uses.
package bus

import (
	"context"
	"time"
)

// Well-known topic names, per spec.md §6.
const (
	TopicScheduler = "scheduler"
)

// PodTopic returns the per-node Pod command topic name.
func PodTopic(node string) string { return "pod." + node }

// ServiceProxyTopic returns the per-node service-proxy topic name.
func ServiceProxyTopic(node string) string { return "serviceproxy." + node }

// NodePortTopic returns the per-namespace NodePort coordination topic name.
func NodePortTopic(namespace string) string { return "nodeport." + namespace }

// Message keys used across the well-known topics (spec.md §6).
const (
	KeyAdd        = "ADD"
	KeyUpdate     = "UPDATE"
	KeyDelete     = "DELETE"
	KeyHeartbeat  = "HEARTBEAT"
	KeyCreate     = "CREATE"
	KeyAllocate   = "ALLOCATE"
	KeyDeallocate = "DEALLOCATE"
)

// Message is one entry on a topic's log. Offset is assigned by the bus on
// publish and is stable for the lifetime of the message; consumers commit
// by offset so re-delivery (at-least-once) is well defined.
type Message struct {
	ID      string
	Topic   string
	Key     string
	Payload []byte
	Offset  int64
}

// Bus is the narrow interface every producer/consumer in Cove depends on.
type Bus interface {
	// Publish appends a message to topic and returns once it is durably
	// enqueued. It never blocks on a consumer being present.
	Publish(topic, key string, payload []byte) (*Message, error)
	// Consumer returns a handle that reads topic as part of group. All
	// consumers sharing a group compete for the same offset cursor, so a
	// group of one — the shape every Cove topic actually uses — sees each
	// message exactly once per successful Commit.
	Consumer(topic, group string) Consumer
	Close() error
}

// Consumer polls a single (topic, group) offset cursor.
type Consumer interface {
	// Poll blocks until a message is available, ctx is cancelled, or the
	// bounded long-poll interval (spec.md §5: "long polls with a bounded
	// interval ≤1s") elapses with nothing new, in which case it returns
	// (nil, false, nil) so the caller can check its own shutdown flag
	// between polls.
	Poll(ctx context.Context) (msg *Message, ok bool, err error)
	// Commit advances the group's offset past msg. Re-polling before
	// Commit redelivers the same message, giving at-least-once semantics.
	Commit(msg *Message) error
}

// longPollInterval is the bounded wait spec.md §5 mandates between
// checks of the caller's shutdown flag.
const longPollInterval = 1 * time.Second
