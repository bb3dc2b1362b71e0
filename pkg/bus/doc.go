/*
Package bus is Cove's asynchronous message bus abstraction: topic
logs with consumer-group offset cursors, giving at-least-once delivery
(spec.md §2, §5) with explicit commit-after-success semantics rather
than fire-and-forget broadcast.

MemBus is the in-memory reference implementation every daemon falls
back to when no external broker is configured, and the backend every
package's tests run against. A real deployment would point Cove at an
external broker implementing the same Bus interface; nothing above
this package knows the difference.
*/
package bus
