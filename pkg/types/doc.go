/*
Package types defines the declarative object model shared by every other
package in Cove.

Every kind the API server owns — Node, Pod, ReplicaSet,
HorizontalPodAutoscaler, Service, DNSRecord, PersistentVolume,
PersistentVolumeClaim, Function, Workflow — is a plain Go struct split into
a Spec (the declared state; the control plane rewrites only a few of its
fields, such as a ReplicaSet's replica count under an HPA and a NodePort
Service's node port) and a mutable Status (written by whichever component
observes the real state: the node agent for Pod.Status, the
ServiceController for Service.Status.ClusterIP, and so on).

Cross-entity references are never held as Go pointers between loaded
objects. They are stored by name — a PV's claim as an ObjectRef (a
(kind, namespace, name) triple), a PVC's volume as Spec.VolumeName, an
HPA's ReplicaSet as Spec.Target — and resolved through the API on demand.
This keeps every object independently serializable and avoids lifetime
cycles across restarts.
*/
package types
