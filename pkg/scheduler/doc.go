// Package scheduler assigns Pods to Nodes. It consumes the scheduler bus
// topic, filters candidate Nodes to those that are ONLINE and whose labels
// are a superset of the Pod's nodeSelector, picks uniformly at random among
// them, and binds the Pod to the chosen Node through the API server.
//
// It is grounded on the teacher's ticker-driven Scheduler: the same
// Start/Stop/run skeleton, re-pointed from a manager-backed poll-every-5s
// loop onto a pkg/bus.Consumer long-poll over the scheduler topic and a
// pkg/client.Client call instead of direct manager method calls.
package scheduler
