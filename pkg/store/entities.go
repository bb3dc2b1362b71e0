package store

import "github.com/nodeforge/cove/pkg/types"

// --- Node (cluster-scoped) ------------------------------------------------

func CreateNode(kv KV, n *types.Node) error       { return create(kv, nodeKey(n.Name), n) }
func PutNode(kv KV, n *types.Node) error          { return put(kv, nodeKey(n.Name), n) }
func GetNode(kv KV, name string) (*types.Node, error) { return get[types.Node](kv, nodeKey(name)) }
func DeleteNode(kv KV, name string) error         { return del(kv, nodeKey(name)) }
func ListNodes(kv KV) ([]*types.Node, error)      { return list[types.Node](kv, nodesPrefix()) }

// --- Pod -------------------------------------------------------------------

func CreatePod(kv KV, p *types.Pod) error { return create(kv, podKey(p.Namespace, p.Name), p) }
func PutPod(kv KV, p *types.Pod) error    { return put(kv, podKey(p.Namespace, p.Name), p) }
func GetPod(kv KV, ns, name string) (*types.Pod, error) {
	return get[types.Pod](kv, podKey(ns, name))
}
func DeletePod(kv KV, ns, name string) error { return del(kv, podKey(ns, name)) }
func ListPods(kv KV, ns string) ([]*types.Pod, error) {
	return list[types.Pod](kv, podsNSPrefix(ns))
}
func ListAllPods(kv KV) ([]*types.Pod, error) { return list[types.Pod](kv, podsAllPrefix()) }

// ListPodsOnNode returns every pod currently bound to the given node,
// regardless of namespace. Used by the API server's node pods handler
// (GET /nodes/{name}/pods).
func ListPodsOnNode(kv KV, node string) ([]*types.Pod, error) {
	all, err := ListAllPods(kv)
	if err != nil {
		return nil, err
	}
	out := make([]*types.Pod, 0, len(all))
	for _, p := range all {
		if p.Status.NodeName == node {
			out = append(out, p)
		}
	}
	return out, nil
}

// --- ReplicaSet --------------------------------------------------------

func CreateReplicaSet(kv KV, rs *types.ReplicaSet) error {
	return create(kv, rsKey(rs.Namespace, rs.Name), rs)
}
func PutReplicaSet(kv KV, rs *types.ReplicaSet) error {
	return put(kv, rsKey(rs.Namespace, rs.Name), rs)
}
func GetReplicaSet(kv KV, ns, name string) (*types.ReplicaSet, error) {
	return get[types.ReplicaSet](kv, rsKey(ns, name))
}
func DeleteReplicaSet(kv KV, ns, name string) error { return del(kv, rsKey(ns, name)) }
func ListReplicaSets(kv KV, ns string) ([]*types.ReplicaSet, error) {
	return list[types.ReplicaSet](kv, rsNSPrefix(ns))
}
func ListAllReplicaSets(kv KV) ([]*types.ReplicaSet, error) {
	return list[types.ReplicaSet](kv, rsAllPrefix())
}

// --- HorizontalPodAutoscaler ----------------------------------------------

func CreateHPA(kv KV, h *types.HorizontalPodAutoscaler) error {
	return create(kv, hpaKey(h.Namespace, h.Name), h)
}
func PutHPA(kv KV, h *types.HorizontalPodAutoscaler) error {
	return put(kv, hpaKey(h.Namespace, h.Name), h)
}
func GetHPA(kv KV, ns, name string) (*types.HorizontalPodAutoscaler, error) {
	return get[types.HorizontalPodAutoscaler](kv, hpaKey(ns, name))
}
func DeleteHPA(kv KV, ns, name string) error { return del(kv, hpaKey(ns, name)) }
func ListHPAs(kv KV, ns string) ([]*types.HorizontalPodAutoscaler, error) {
	return list[types.HorizontalPodAutoscaler](kv, hpaNSPrefix(ns))
}
func ListAllHPAs(kv KV) ([]*types.HorizontalPodAutoscaler, error) {
	return list[types.HorizontalPodAutoscaler](kv, hpaAllPrefix())
}

// --- Service -----------------------------------------------------------

func CreateService(kv KV, s *types.Service) error { return create(kv, svcKey(s.Namespace, s.Name), s) }
func PutService(kv KV, s *types.Service) error    { return put(kv, svcKey(s.Namespace, s.Name), s) }
func GetService(kv KV, ns, name string) (*types.Service, error) {
	return get[types.Service](kv, svcKey(ns, name))
}
func DeleteService(kv KV, ns, name string) error { return del(kv, svcKey(ns, name)) }
func ListServices(kv KV, ns string) ([]*types.Service, error) {
	return list[types.Service](kv, svcNSPrefix(ns))
}
func ListAllServices(kv KV) ([]*types.Service, error) {
	return list[types.Service](kv, svcAllPrefix())
}

// --- DNSRecord -----------------------------------------------------------

func CreateDNSRecord(kv KV, d *types.DNSRecord) error {
	return create(kv, dnsKey(d.Namespace, d.Name), d)
}
func PutDNSRecord(kv KV, d *types.DNSRecord) error { return put(kv, dnsKey(d.Namespace, d.Name), d) }
func GetDNSRecord(kv KV, ns, name string) (*types.DNSRecord, error) {
	return get[types.DNSRecord](kv, dnsKey(ns, name))
}
func DeleteDNSRecord(kv KV, ns, name string) error { return del(kv, dnsKey(ns, name)) }
func ListDNSRecords(kv KV, ns string) ([]*types.DNSRecord, error) {
	return list[types.DNSRecord](kv, dnsNSPrefix(ns))
}
func ListAllDNSRecords(kv KV) ([]*types.DNSRecord, error) {
	return list[types.DNSRecord](kv, dnsAllPrefix())
}

// --- PersistentVolume (cluster-scoped) ------------------------------------

func CreatePV(kv KV, v *types.PersistentVolume) error { return create(kv, pvKey(v.Name), v) }
func PutPV(kv KV, v *types.PersistentVolume) error    { return put(kv, pvKey(v.Name), v) }
func GetPV(kv KV, name string) (*types.PersistentVolume, error) {
	return get[types.PersistentVolume](kv, pvKey(name))
}
func DeletePV(kv KV, name string) error { return del(kv, pvKey(name)) }
func ListPVs(kv KV) ([]*types.PersistentVolume, error) {
	return list[types.PersistentVolume](kv, pvAllPrefix())
}

// --- PersistentVolumeClaim -------------------------------------------------

func CreatePVC(kv KV, c *types.PersistentVolumeClaim) error {
	return create(kv, pvcKey(c.Namespace, c.Name), c)
}
func PutPVC(kv KV, c *types.PersistentVolumeClaim) error {
	return put(kv, pvcKey(c.Namespace, c.Name), c)
}
func GetPVC(kv KV, ns, name string) (*types.PersistentVolumeClaim, error) {
	return get[types.PersistentVolumeClaim](kv, pvcKey(ns, name))
}
func DeletePVC(kv KV, ns, name string) error { return del(kv, pvcKey(ns, name)) }
func ListPVCs(kv KV, ns string) ([]*types.PersistentVolumeClaim, error) {
	return list[types.PersistentVolumeClaim](kv, pvcNSPrefix(ns))
}
func ListAllPVCs(kv KV) ([]*types.PersistentVolumeClaim, error) {
	return list[types.PersistentVolumeClaim](kv, pvcAllPrefix())
}

// --- Function ------------------------------------------------------------

func CreateFunction(kv KV, f *types.Function) error {
	return create(kv, fnKey(f.Namespace, f.Name), f)
}
func PutFunction(kv KV, f *types.Function) error { return put(kv, fnKey(f.Namespace, f.Name), f) }
func GetFunction(kv KV, ns, name string) (*types.Function, error) {
	return get[types.Function](kv, fnKey(ns, name))
}
func DeleteFunction(kv KV, ns, name string) error { return del(kv, fnKey(ns, name)) }
func ListFunctions(kv KV, ns string) ([]*types.Function, error) {
	return list[types.Function](kv, fnNSPrefix(ns))
}
func ListAllFunctions(kv KV) ([]*types.Function, error) {
	return list[types.Function](kv, fnAllPrefix())
}

// --- Workflow ------------------------------------------------------------

func CreateWorkflow(kv KV, w *types.Workflow) error {
	return create(kv, wfKey(w.Namespace, w.Name), w)
}
func PutWorkflow(kv KV, w *types.Workflow) error { return put(kv, wfKey(w.Namespace, w.Name), w) }
func GetWorkflow(kv KV, ns, name string) (*types.Workflow, error) {
	return get[types.Workflow](kv, wfKey(ns, name))
}
func DeleteWorkflow(kv KV, ns, name string) error { return del(kv, wfKey(ns, name)) }
func ListWorkflows(kv KV, ns string) ([]*types.Workflow, error) {
	return list[types.Workflow](kv, wfNSPrefix(ns))
}
func ListAllWorkflows(kv KV) ([]*types.Workflow, error) {
	return list[types.Workflow](kv, wfAllPrefix())
}
