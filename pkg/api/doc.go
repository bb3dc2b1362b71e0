// Package api implements Cove's HTTP+JSON API server: the single writer
// to persistent state and the producer of every control message the rest
// of the cluster reacts to (spec.md §4.1).
//
// Routing uses the standard library's Go 1.22+ net/http.ServeMux pattern
// matching ("METHOD /path/{param}"); no third-party router is wired in
// here; nothing in the retrieval pack exercises gorilla/mux, chi, or echo
// directly from its own source (only as transitive dependencies of other
// things), so there is no concrete idiom to imitate and stdlib routing is
// the honest choice — see DESIGN.md.
//
// # Shape
//
// Every namespaced entity (Pod, ReplicaSet, HorizontalPodAutoscaler,
// Service, DNSRecord, PersistentVolumeClaim, Workflow) gets list /
// list-in-namespace / get / create / update / delete handlers over
// pkg/store, following the same per-kind method set pkg/store and
// pkg/client already use so all three packages read as a matched family.
// Function has the same set minus update, plus invoke. The cluster-scoped
// PersistentVolume has list / get / create / update / delete; Node has
// list, register, heartbeat and a per-node Pod listing, with no get or
// delete route. Pod additionally exposes the status and subnet-IP
// subresources, and the scheduler bind endpoint (spec.md §6).
//
// Two housekeeping loops run for the lifetime of the server, under an
// errgroup.Group: node liveness sweeping and function autoscaling
// (spec.md §4.1).
package api
