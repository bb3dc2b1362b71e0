// Package store implements the KV client the API server uses to persist
// every control-plane object. The KV store itself is an external
// collaborator (spec.md §1 Non-goals / §2): this package defines the
// narrow KV interface the rest of Cove depends on, and ships BoltStore —
// a real, durable, single-process implementation — as the reference
// backend so the module runs standalone without a separate KV cluster.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/nodeforge/cove/pkg/apierr"
)

// KV is the narrow interface every other package depends on. Keys are
// hierarchical strings of the shape "/{kind}s/{namespace}/{name}"
// (cluster-scoped kinds omit the namespace segment), exactly the layout
// spec.md §6 specifies for the persisted state.
type KV interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
	Delete(key string) error
	// List returns every value whose key has the given prefix, sorted by
	// key for deterministic iteration order.
	List(prefix string) ([][]byte, error)
	Close() error
}

// --- hierarchical key helpers --------------------------------------------

func nodeKey(name string) string { return fmt.Sprintf("/nodes/%s", name) }
func nodesPrefix() string        { return "/nodes/" }

func podKey(ns, name string) string  { return fmt.Sprintf("/pods/%s/%s", ns, name) }
func podsNSPrefix(ns string) string  { return fmt.Sprintf("/pods/%s/", ns) }
func podsAllPrefix() string          { return "/pods/" }

func rsKey(ns, name string) string { return fmt.Sprintf("/replicasets/%s/%s", ns, name) }
func rsNSPrefix(ns string) string  { return fmt.Sprintf("/replicasets/%s/", ns) }
func rsAllPrefix() string          { return "/replicasets/" }

func hpaKey(ns, name string) string { return fmt.Sprintf("/hpas/%s/%s", ns, name) }
func hpaNSPrefix(ns string) string  { return fmt.Sprintf("/hpas/%s/", ns) }
func hpaAllPrefix() string          { return "/hpas/" }

func svcKey(ns, name string) string { return fmt.Sprintf("/services/%s/%s", ns, name) }
func svcNSPrefix(ns string) string  { return fmt.Sprintf("/services/%s/", ns) }
func svcAllPrefix() string          { return "/services/" }

func dnsKey(ns, name string) string { return fmt.Sprintf("/dnsrecords/%s/%s", ns, name) }
func dnsNSPrefix(ns string) string  { return fmt.Sprintf("/dnsrecords/%s/", ns) }
func dnsAllPrefix() string          { return "/dnsrecords/" }

func pvKey(name string) string { return fmt.Sprintf("/persistentvolumes/%s", name) }
func pvAllPrefix() string      { return "/persistentvolumes/" }

func pvcKey(ns, name string) string { return fmt.Sprintf("/persistentvolumeclaims/%s/%s", ns, name) }
func pvcNSPrefix(ns string) string  { return fmt.Sprintf("/persistentvolumeclaims/%s/", ns) }
func pvcAllPrefix() string          { return "/persistentvolumeclaims/" }

func fnKey(ns, name string) string { return fmt.Sprintf("/functions/%s/%s", ns, name) }
func fnNSPrefix(ns string) string  { return fmt.Sprintf("/functions/%s/", ns) }
func fnAllPrefix() string          { return "/functions/" }

func wfKey(ns, name string) string { return fmt.Sprintf("/workflows/%s/%s", ns, name) }
func wfNSPrefix(ns string) string  { return fmt.Sprintf("/workflows/%s/", ns) }
func wfAllPrefix() string          { return "/workflows/" }

// --- generic helpers (internal only; public API stays per-kind so it
// matches the list/get/create/update/delete operation set spec.md §4.1
// names for every entity) -------------------------------------------------

func get[T any](kv KV, key string) (*T, error) {
	data, ok, err := kv.Get(key)
	if err != nil {
		return nil, apierr.Unavailable(err, "get %s", key)
	}
	if !ok {
		return nil, apierr.NotFound("%s not found", key)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &v, nil
}

func create[T any](kv KV, key string, v *T) error {
	if _, ok, err := kv.Get(key); err != nil {
		return apierr.Unavailable(err, "check %s", key)
	} else if ok {
		return apierr.Conflict("%s already exists", key)
	}
	return put(kv, key, v)
}

func put[T any](kv KV, key string, v *T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := kv.Put(key, data); err != nil {
		return apierr.Unavailable(err, "put %s", key)
	}
	return nil
}

func del(kv KV, key string) error {
	if err := kv.Delete(key); err != nil {
		return apierr.Unavailable(err, "delete %s", key)
	}
	return nil
}

func list[T any](kv KV, prefix string) ([]*T, error) {
	raw, err := kv.List(prefix)
	if err != nil {
		return nil, apierr.Unavailable(err, "list %s", prefix)
	}
	out := make([]*T, 0, len(raw))
	for _, data := range raw {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode entry under %s: %w", prefix, err)
		}
		out = append(out, &v)
	}
	return out, nil
}

// sortedKeys returns keys sorted lexicographically, used by in-memory
// backends so iteration order matches BoltStore's natural byte order.
func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func hasPrefix(key, prefix string) bool {
	return bytes.HasPrefix([]byte(key), []byte(prefix))
}
