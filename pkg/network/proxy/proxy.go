// Package proxy implements Cove's per-node service proxy: it programs
// the kernel's NAT tables so a Service's ClusterIP (and, for NodePort
// services, every node's NodePort) forwards to one of the Service's
// live endpoints, distributing load probabilistically across them.
//
// The chain layout follows the standard kube-proxy iptables design:
// a dispatch chain (KUBE-SERVICES) that every packet destined to a
// cluster service address passes through, a mark chain
// (KUBE-MARK-MASQ) that flags traffic needing source NAT, a
// postrouting chain (KUBE-POSTROUTING) that performs that NAT, one
// chain per service (KUBE-SVC-<name>) holding the weighted jumps to
// its endpoints, and one chain per endpoint (KUBE-SEP-<hash>) holding
// the actual DNAT rule.
package proxy

import (
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"strings"
	"sync"

	"github.com/nodeforge/cove/pkg/log"
	"github.com/nodeforge/cove/pkg/types"
)

const (
	natChain         = "KUBE-SERVICES"
	markChain        = "KUBE-MARK-MASQ"
	postroutingChain = "KUBE-POSTROUTING"
	svcChainPrefix   = "KUBE-SVC-"
	sepChainPrefix   = "KUBE-SEP-"
)

type endpointChain struct {
	chain    string
	endpoint string // "ip:port"
}

type serviceState struct {
	chain     string
	endpoints []endpointChain
}

// ServiceProxy owns the NAT rules for every Service with an endpoint on
// this node's iptables instance. One ServiceProxy runs per node, driven
// by the node's serviceproxy.<node> bus topic (spec.md §4.4).
type ServiceProxy struct {
	nodeName string
	backend  NATBackend

	mu       sync.Mutex
	services map[string]*serviceState // service key "ns/name" -> state
}

// New creates a ServiceProxy and installs the base chains.
func New(nodeName string, backend NATBackend) (*ServiceProxy, error) {
	p := &ServiceProxy{
		nodeName: nodeName,
		backend:  backend,
		services: make(map[string]*serviceState),
	}
	if err := p.setupBaseChains(); err != nil {
		return nil, fmt.Errorf("setup base nat chains: %w", err)
	}
	return p, nil
}

func (p *ServiceProxy) setupBaseChains() error {
	p.backend.RunIdempotent("-t", "nat", "-N", markChain)
	p.backend.RunIdempotent("-t", "nat", "-N", postroutingChain)
	p.backend.RunIdempotent("-t", "nat", "-N", natChain)

	if err := p.backend.Run("-t", "nat", "-F", markChain); err != nil {
		return err
	}
	if err := p.backend.Run("-t", "nat", "-A", markChain, "-j", "MARK", "--set-xmark", "0x4000/0x4000"); err != nil {
		return err
	}

	if err := p.backend.Run("-t", "nat", "-F", postroutingChain); err != nil {
		return err
	}
	if err := p.backend.Run("-t", "nat", "-A", postroutingChain,
		"-m", "mark", "--mark", "0x4000/0x4000", "-j", "MASQUERADE"); err != nil {
		return err
	}

	p.backend.RunIdempotent("-t", "nat", "-I", "PREROUTING", "1", "-j", natChain)
	p.backend.RunIdempotent("-t", "nat", "-I", "OUTPUT", "1", "-j", natChain)
	p.backend.RunIdempotent("-t", "nat", "-I", "POSTROUTING", "1", "-j", postroutingChain)
	return nil
}

func serviceChainName(key string) string {
	sanitized := strings.ToUpper(strings.NewReplacer("/", "_", "-", "_").Replace(key))
	return svcChainPrefix + sanitized
}

// endpointChainName derives a stable chain name from the endpoint
// address so repeated CreateService calls for the same endpoint reuse
// the same chain name (the teacher's Python source generates this
// randomly per call; deriving it instead keeps chain identity stable
// across an UpdateService rebuild, which the endpoint-delta algorithm
// below relies on).
func endpointChainName(endpoint string) string {
	sum := sha256.Sum256([]byte(endpoint))
	enc := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum[:])
	return sepChainPrefix + enc[:10]
}

// Probability returns the `--probability` weight for the i-th endpoint
// (0-indexed) out of total, under the standard iptables statistic
// module random-mode scheme: each rule before the last fires with
// probability 1/(remaining), so that after all n rules are evaluated in
// order every endpoint has an equal 1/n chance of being chosen.
func Probability(i, total int) float64 {
	return 1.0 / float64(total-i)
}

// CreateService installs Service and endpoint chains from scratch,
// replacing anything already present for this service key.
func (p *ServiceProxy) CreateService(key, clusterIP string, port types.ServicePort, endpoints []types.Endpoint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.createServiceLocked(key, clusterIP, port, endpoints)
}

func (p *ServiceProxy) createServiceLocked(key, clusterIP string, port types.ServicePort, endpoints []types.Endpoint) error {
	p.deleteServiceLocked(key, clusterIP, port)

	if len(endpoints) == 0 {
		log.WithComponent("serviceproxy").Warn().Str("service", key).Msg("no endpoints, skipping rule install")
		return nil
	}

	chain := serviceChainName(key)
	p.backend.RunIdempotent("-t", "nat", "-N", chain)

	state := &serviceState{chain: chain}
	protocol := strings.ToLower(proto(port.Protocol))

	for _, ep := range endpoints {
		addr := fmt.Sprintf("%s:%d", ep.IP, ep.Port)
		sep := endpointChainName(addr)
		if err := p.installEndpointChain(sep, ep.IP, addr, protocol); err != nil {
			return err
		}
		state.endpoints = append(state.endpoints, endpointChain{chain: sep, endpoint: addr})
	}

	p.setupLoadBalancing(chain, state.endpoints)
	p.installDispatch(key, clusterIP, port, chain)

	p.services[key] = state
	return nil
}

func (p *ServiceProxy) installEndpointChain(sep, endpointIP, endpointAddr, protocol string) error {
	p.backend.RunIdempotent("-t", "nat", "-N", sep)
	if err := p.backend.Run("-t", "nat", "-A", sep, "-p", protocol, "-j", "DNAT", "--to-destination", endpointAddr); err != nil {
		return err
	}
	return p.backend.Run("-t", "nat", "-A", sep, "-s", endpointIP+"/32", "-j", markChain)
}

// setupLoadBalancing walks the endpoints in reverse, inserting each jump
// rule at the head of the chain, so the chain ends up in endpoint order
// with the last endpoint as the unconditional default, matching the
// teacher-adjacent Python reference's `_setup_load_balancing`.
func (p *ServiceProxy) setupLoadBalancing(chain string, endpoints []endpointChain) {
	n := len(endpoints)
	for i := n - 1; i >= 0; i-- {
		ep := endpoints[i]
		if i == n-1 {
			p.backend.Run("-t", "nat", "-I", chain, "1", "-j", ep.chain)
			continue
		}
		prob := Probability(i, n)
		p.backend.Run("-t", "nat", "-I", chain, "1",
			"-m", "statistic", "--mode", "random", "--probability", fmt.Sprintf("%.6f", prob),
			"-j", ep.chain)
	}
}

func (p *ServiceProxy) installDispatch(key, clusterIP string, port types.ServicePort, chain string) {
	protocol := strings.ToLower(proto(port.Protocol))
	comment := key + ": cluster IP"

	p.backend.Run("-t", "nat", "-I", natChain, "1",
		"-d", clusterIP+"/32", "-p", protocol, "-m", protocol, "--dport", fmt.Sprintf("%d", port.Port),
		"-j", markChain, "-m", "comment", "--comment", comment)
	p.backend.Run("-t", "nat", "-I", natChain, "2",
		"-d", clusterIP+"/32", "-p", protocol, "-m", protocol, "--dport", fmt.Sprintf("%d", port.Port),
		"-j", chain, "-m", "comment", "--comment", comment)

	if port.NodePort != 0 {
		npComment := key + ": nodePort"
		p.backend.Run("-t", "nat", "-I", natChain, "1",
			"-p", protocol, "-m", protocol, "--dport", fmt.Sprintf("%d", port.NodePort),
			"-j", markChain, "-m", "comment", "--comment", npComment)
		p.backend.Run("-t", "nat", "-I", natChain, "2",
			"-p", protocol, "-m", protocol, "--dport", fmt.Sprintf("%d", port.NodePort),
			"-j", chain, "-m", "comment", "--comment", npComment)
	}
}

// UpdateService applies an endpoint-set change. If more than half of
// the current endpoints changed it rebuilds the Service's chains from
// scratch; otherwise it patches the endpoint chains in place and
// rebuilds only the load-balancing dispatch rules.
func (p *ServiceProxy) UpdateService(key, clusterIP string, port types.ServicePort, endpoints []types.Endpoint) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, exists := p.services[key]
	if !exists {
		return p.createServiceLocked(key, clusterIP, port, endpoints)
	}

	current := make(map[string]endpointChain, len(state.endpoints))
	for _, ep := range state.endpoints {
		current[ep.endpoint] = ep
	}
	desired := make(map[string]bool, len(endpoints))
	protocol := strings.ToLower(proto(port.Protocol))
	for _, ep := range endpoints {
		desired[fmt.Sprintf("%s:%d", ep.IP, ep.Port)] = true
	}

	var toAdd []types.Endpoint
	for _, ep := range endpoints {
		if _, ok := current[fmt.Sprintf("%s:%d", ep.IP, ep.Port)]; !ok {
			toAdd = append(toAdd, ep)
		}
	}
	var toRemove []endpointChain
	for addr, ep := range current {
		if !desired[addr] {
			toRemove = append(toRemove, ep)
		}
	}

	if len(current) > 0 && (len(toAdd)+len(toRemove)) > len(current)/2 {
		return p.createServiceLocked(key, clusterIP, port, endpoints)
	}

	for _, ep := range toRemove {
		p.backend.RunIdempotent("-t", "nat", "-F", ep.chain)
		p.backend.RunIdempotent("-t", "nat", "-X", ep.chain)
	}

	remaining := make([]endpointChain, 0, len(state.endpoints))
	removedSet := make(map[string]bool, len(toRemove))
	for _, ep := range toRemove {
		removedSet[ep.endpoint] = true
	}
	for _, ep := range state.endpoints {
		if !removedSet[ep.endpoint] {
			remaining = append(remaining, ep)
		}
	}

	for _, ep := range toAdd {
		addr := fmt.Sprintf("%s:%d", ep.IP, ep.Port)
		sep := endpointChainName(addr)
		if err := p.installEndpointChain(sep, ep.IP, addr, protocol); err != nil {
			return err
		}
		remaining = append(remaining, endpointChain{chain: sep, endpoint: addr})
	}

	state.endpoints = remaining
	if len(toAdd) > 0 || len(toRemove) > 0 {
		p.backend.RunIdempotent("-t", "nat", "-F", state.chain)
		p.setupLoadBalancing(state.chain, state.endpoints)
	}
	return nil
}

// DeleteService removes every rule and chain this proxy installed for
// the service. Deletion is idempotent: deleting an already-absent
// service is a no-op.
func (p *ServiceProxy) DeleteService(key, clusterIP string, port types.ServicePort) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleteServiceLocked(key, clusterIP, port)
	return nil
}

func (p *ServiceProxy) deleteServiceLocked(key, clusterIP string, port types.ServicePort) {
	protocol := strings.ToLower(proto(port.Protocol))
	comment := key + ": cluster IP"

	for p.backend.RunIdempotent("-t", "nat", "-D", natChain,
		"-d", clusterIP+"/32", "-p", protocol, "-m", protocol, "--dport", fmt.Sprintf("%d", port.Port),
		"-j", markChain, "-m", "comment", "--comment", comment) {
	}
	chain := serviceChainName(key)
	for p.backend.RunIdempotent("-t", "nat", "-D", natChain,
		"-d", clusterIP+"/32", "-p", protocol, "-m", protocol, "--dport", fmt.Sprintf("%d", port.Port),
		"-j", chain, "-m", "comment", "--comment", comment) {
	}

	if port.NodePort != 0 {
		npComment := key + ": nodePort"
		for p.backend.RunIdempotent("-t", "nat", "-D", natChain,
			"-p", protocol, "-m", protocol, "--dport", fmt.Sprintf("%d", port.NodePort),
			"-j", markChain, "-m", "comment", "--comment", npComment) {
		}
		for p.backend.RunIdempotent("-t", "nat", "-D", natChain,
			"-p", protocol, "-m", protocol, "--dport", fmt.Sprintf("%d", port.NodePort),
			"-j", chain, "-m", "comment", "--comment", npComment) {
		}
	}

	state, exists := p.services[key]
	if !exists {
		return
	}
	for _, ep := range state.endpoints {
		p.backend.RunIdempotent("-t", "nat", "-F", ep.chain)
		p.backend.RunIdempotent("-t", "nat", "-X", ep.chain)
	}
	p.backend.RunIdempotent("-t", "nat", "-F", state.chain)
	p.backend.RunIdempotent("-t", "nat", "-X", state.chain)
	delete(p.services, key)
}

func proto(p string) string {
	if p == "" {
		return "tcp"
	}
	return p
}
