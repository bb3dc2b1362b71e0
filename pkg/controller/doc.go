/*
Package controller implements the cluster's reconciliation loops:
ReplicaSetController, HPAController, ServiceController (with its NodePort
manager) and PVController, plus a DNSController that keeps the cluster
resolver's view of DNS records current. Each is a ticker-driven
reconcile loop in the shape of the teacher's single Reconciler — a
fixed-interval tick, one pass per tick, log-and-continue on a sub-pass
error — generalized to one tick-driven loop per controller kind and to
a client.Client (HTTP) instead of direct storage access, since
controllers run as their own process (cmd/controller-manager) separate
from the API server.
*/
package controller
