// Package nodeagent is the per-node daemon spec.md §4.3 calls the
// "kubelet": it registers with the API server, sends periodic heartbeats,
// consumes its Pod topic (ADD|UPDATE|DELETE|HEARTBEAT), resolves volumes,
// allocates overlay IPs, and drives the container engine to bring the
// node's Pods to their desired state. It is grounded on the teacher's
// pkg/worker.Worker: same ticker-driven heartbeat/executor-loop skeleton,
// re-pointed from gRPC polling at a containerd runtime onto pkg/bus
// message consumption and the pkg/containerengine.Engine interface.
package nodeagent
