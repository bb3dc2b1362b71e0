/*
Package store is Cove's persistence layer. It defines the KV interface
(Get/Put/Delete/List over hierarchical string keys) and ships two
implementations: BoltStore, a durable single-file bbolt-backed store
used in production, and MemStore, an in-memory store used by tests.

Every control-plane object is serialized as JSON under a key of the
shape "/{kind}s/{namespace}/{name}" (cluster-scoped kinds such as Node
and PersistentVolume drop the namespace segment). The per-kind
Create/Put/Get/Delete/List functions in entities.go are the only way
the rest of Cove touches the store; nothing outside this package knows
the key layout.

Only the API server process opens a KV handle for writing. Every other
daemon reaches the store indirectly, through the API server's HTTP
interface.
*/
package store
