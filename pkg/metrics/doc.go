/*
Package metrics provides Prometheus metrics collection and exposition for
Cove.

cmd/apiserver, cmd/scheduler and cmd/controller-manager mount Handler()
at /metrics; cmd/nodeagent and cmd/serviceproxy serve no metrics
endpoint. Gauges that reflect the full
object set (nodes, pods, services, volumes) are kept current by a
Collector that polls the KV store every 15s from inside the API server
process, the one component that reads the whole store routinely;
per-request and per-reconcile-pass histograms/counters are updated inline
by the component that does the work.
*/
package metrics
