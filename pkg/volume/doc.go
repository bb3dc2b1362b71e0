/*
Package volume resolves a Pod's PersistentVolumeClaim-backed volumes
into node-local host paths, per spec.md §4.6. A hostPath PV resolves to
its declared path directly; an nfs PV is mounted at a stable
"/<mounts-root>/<pv-name>" location on first use and reference-counted
so Pods sharing a PV only trigger one mount/unmount per node.
*/
package volume
