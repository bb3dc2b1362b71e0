package controller

import (
	"encoding/json"
	"fmt"
	"net"
	"sort"
	"time"

	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/nodeforge/cove/pkg/bus"
	"github.com/nodeforge/cove/pkg/client"
	"github.com/nodeforge/cove/pkg/log"
	"github.com/nodeforge/cove/pkg/types"
)

// DefaultServiceInterval is how often the ServiceController recomputes
// clusterIPs, NodePorts and endpoint sets.
const DefaultServiceInterval = 5 * time.Second

// clusterIPBase is the start of the reserved virtual range clusterIPs are
// allocated from, per spec.md §4.5 ("not in node/overlay space").
var clusterIPBase = net.IPv4(10, 96, 0, 1).To4()

// ProxyMessage is the per-node fan-out payload the ServiceController
// publishes to bus.ServiceProxyTopic(node) (spec.md §4.5 step 4), mirroring
// the shape of the per-node Pod command messages pkg/api publishes on
// each node's bus.PodTopic.
type ProxyMessage struct {
	Action      string            `json:"action"`
	ServiceName string            `json:"serviceName"`
	Namespace   string            `json:"namespace"`
	ClusterIP   string            `json:"clusterIp"`
	Port        int               `json:"port"`
	Protocol    string            `json:"protocol"`
	Endpoints   []types.Endpoint  `json:"endpoints"`
	NodePort    int               `json:"nodePort,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// ServiceController assigns clusterIPs, delegates NodePort allocation to
// the NodePort manager, computes each Service's endpoint set from live
// Pods, and fans the result out to every Node's proxy topic.
type ServiceController struct {
	client   *client.Client
	bus      bus.Bus
	nodePort *NodePortManager
	logger   zerolog.Logger
	stopper

	allocatedIPs map[string]bool // dotted string -> in use, rebuilt each pass
}

func NewServiceController(c *client.Client, b bus.Bus, np *NodePortManager) *ServiceController {
	return &ServiceController{
		client:   c,
		bus:      b,
		nodePort: np,
		logger:   log.WithComponent("service-controller"),
		stopper:  newStopper(),
	}
}

func (sc *ServiceController) Start(ctx context.Context) {
	once(sc.logger, "service", func() error { return sc.reconcile(ctx) })
	go runLoop(ctx, sc.stopCh, "service", DefaultServiceInterval, sc.logger, sc.reconcile)
}

func (sc *ServiceController) Stop() { sc.stop() }

func (sc *ServiceController) reconcile(ctx context.Context) error {
	services, err := sc.client.ListAllServices(ctx)
	if err != nil {
		return fmt.Errorf("list services: %w", err)
	}
	nodes, err := sc.client.ListNodes(ctx)
	if err != nil {
		return fmt.Errorf("list nodes: %w", err)
	}

	sc.rebuildIPPool(services)

	var merr *multierror.Error
	for _, svc := range services {
		if err := sc.reconcileOne(ctx, svc, nodes); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("service %s/%s: %w", svc.Namespace, svc.Name, err))
		}
	}
	return merr.ErrorOrNil()
}

func (sc *ServiceController) rebuildIPPool(services []*types.Service) {
	sc.allocatedIPs = make(map[string]bool, len(services))
	for _, svc := range services {
		if svc.Status.ClusterIP != "" {
			sc.allocatedIPs[svc.Status.ClusterIP] = true
		}
	}
}

func (sc *ServiceController) reconcileOne(ctx context.Context, svc *types.Service, nodes []*types.Node) error {
	changed := false

	if svc.Status.ClusterIP == "" {
		ip, err := sc.allocateClusterIP()
		if err != nil {
			return fmt.Errorf("allocate clusterIP: %w", err)
		}
		svc.Status.ClusterIP = ip
		changed = true
	}

	if svc.Spec.Type == types.ServiceNodePort {
		port, err := sc.nodePort.Allocate(svc.Namespace, svcKey(svc), svc.Spec.Port.NodePort)
		if err != nil {
			return fmt.Errorf("allocate nodeport: %w", err)
		}
		if port != svc.Spec.Port.NodePort {
			svc.Spec.Port.NodePort = port
			changed = true
		}
	}

	if changed {
		updated, err := sc.client.UpdateService(ctx, svc)
		if err != nil {
			return fmt.Errorf("persist service: %w", err)
		}
		svc = updated
	}

	endpoints, err := sc.computeEndpoints(ctx, svc)
	if err != nil {
		return fmt.Errorf("compute endpoints: %w", err)
	}

	return sc.fanOut(svc, endpoints, nodes, bus.KeyUpdate)
}

// computeEndpoints implements spec.md §4.5 step 3: Pods in the same
// namespace whose labels are a superset of the selector, RUNNING, with a
// subnet IP assigned.
func (sc *ServiceController) computeEndpoints(ctx context.Context, svc *types.Service) ([]types.Endpoint, error) {
	pods, err := sc.client.ListPods(ctx, svc.Namespace)
	if err != nil {
		return nil, err
	}
	var endpoints []types.Endpoint
	for _, p := range pods {
		if p.Status.Phase != types.PodRunning || p.Status.SubnetIP == "" {
			continue
		}
		if !labelsSuperset(p.Labels, svc.Spec.Selector) {
			continue
		}
		endpoints = append(endpoints, types.Endpoint{IP: p.Status.SubnetIP, Port: svc.Spec.Port.TargetPort})
	}
	sort.Slice(endpoints, func(i, j int) bool { return endpoints[i].IP < endpoints[j].IP })
	return endpoints, nil
}

// fanOut publishes one proxy message per Node (spec.md §4.5 step 4).
func (sc *ServiceController) fanOut(svc *types.Service, endpoints []types.Endpoint, nodes []*types.Node, action string) error {
	msg := ProxyMessage{
		Action:      action,
		ServiceName: svc.Name,
		Namespace:   svc.Namespace,
		ClusterIP:   svc.Status.ClusterIP,
		Port:        svc.Spec.Port.Port,
		Protocol:    svc.Spec.Port.Protocol,
		Endpoints:   endpoints,
		NodePort:    svc.Spec.Port.NodePort,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	var merr *multierror.Error
	for _, n := range nodes {
		if _, err := sc.bus.Publish(bus.ServiceProxyTopic(n.Name), action, payload); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("publish to node %s: %w", n.Name, err))
		}
	}
	return merr.ErrorOrNil()
}

// Delete publishes a DELETE proxy message to every node and releases the
// Service's NodePort, per spec.md §4.5 step 5. Nothing in this repository
// calls it: the API server's Service delete handler only removes the
// stored record, and reconcile visits only Services that still exist, so
// a deleted Service gets no DELETE fan-out and its NodePort stays
// allocated. Its clusterIP returns to the pool on the next pass, since
// the in-use set is rebuilt from the stored Services.
func (sc *ServiceController) Delete(ctx context.Context, svc *types.Service) error {
	nodes, err := sc.client.ListNodes(ctx)
	if err != nil {
		return fmt.Errorf("list nodes: %w", err)
	}
	if err := sc.fanOut(svc, nil, nodes, bus.KeyDelete); err != nil {
		sc.logger.Error().Err(err).Msg("delete fan-out had partial failures")
	}
	if svc.Spec.Type == types.ServiceNodePort {
		sc.nodePort.Deallocate(svc.Namespace, svcKey(svc))
	}
	return nil
}

func (sc *ServiceController) allocateClusterIP() (string, error) {
	ip := make(net.IP, len(clusterIPBase))
	copy(ip, clusterIPBase)
	for i := 0; i < 1<<16; i++ {
		candidate := ip.String()
		if !sc.allocatedIPs[candidate] {
			sc.allocatedIPs[candidate] = true
			return candidate, nil
		}
		incrementIP(ip)
	}
	return "", fmt.Errorf("clusterIP range exhausted")
}

func incrementIP(ip net.IP) {
	for i := len(ip) - 1; i >= 0; i-- {
		ip[i]++
		if ip[i] != 0 {
			return
		}
	}
}

func svcKey(svc *types.Service) string { return svc.Namespace + "/" + svc.Name }
