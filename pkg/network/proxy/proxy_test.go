package proxy

import (
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/nodeforge/cove/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend models iptables well enough for the proxy's own
// idempotent-delete loops to terminate: -A/-I increments a rule's
// reference count, -D decrements it and reports whether anything was
// actually removed (exactly what a real `iptables -D` reports via exit
// code).
type fakeBackend struct {
	mu    sync.Mutex
	calls []string
	rules map[string]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{rules: make(map[string]int)}
}

func (b *fakeBackend) Run(args ...string) error {
	b.record(args)
	return nil
}

func (b *fakeBackend) RunIdempotent(args ...string) bool {
	b.record(args)
	if len(args) < 3 {
		return true
	}
	switch args[2] {
	case "-A", "-I":
		b.mu.Lock()
		b.rules[canonicalRule(args)]++
		b.mu.Unlock()
		return true
	case "-D":
		b.mu.Lock()
		defer b.mu.Unlock()
		key := canonicalRule(args)
		if b.rules[key] > 0 {
			b.rules[key]--
			return true
		}
		return false
	default:
		return true
	}
}

func (b *fakeBackend) record(args []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, strings.Join(args, " "))
}

func canonicalRule(args []string) string {
	i := 2
	if i >= len(args) {
		return strings.Join(args, " ")
	}
	action := args[i]
	i++
	if i >= len(args) {
		return action
	}
	chain := args[i]
	i++
	if action == "-I" && i < len(args) {
		if _, err := strconv.Atoi(args[i]); err == nil {
			i++
		}
	}
	return chain + "|" + strings.Join(args[i:], " ")
}

func newTestProxy(t *testing.T) (*ServiceProxy, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend()
	p, err := New("node-1", backend)
	require.NoError(t, err)
	return p, backend
}

func TestProbabilityWeights(t *testing.T) {
	// Three endpoints: first gets 1/3, second 1/2, last is unconditional.
	assert.InDelta(t, 1.0/3.0, Probability(0, 3), 1e-9)
	assert.InDelta(t, 1.0/2.0, Probability(1, 3), 1e-9)
	// The last endpoint's jump is unconditional (no statistic match), so
	// Probability is only ever computed for i < total-1 by the caller.
}

func TestServiceChainNameIsSanitized(t *testing.T) {
	assert.Equal(t, "KUBE-SVC-DEFAULT_WEB_1", serviceChainName("default/web-1"))
}

func TestCreateServiceInstallsDispatchAndLoadBalancing(t *testing.T) {
	p, backend := newTestProxy(t)

	port := types.ServicePort{Port: 80, TargetPort: 8080, Protocol: "tcp"}
	endpoints := []types.Endpoint{{IP: "10.244.0.2", Port: 8080}, {IP: "10.244.0.3", Port: 8080}}

	require.NoError(t, p.CreateService("default/web", "10.96.0.10", port, endpoints))

	state, ok := p.services["default/web"]
	require.True(t, ok)
	assert.Len(t, state.endpoints, 2)

	joined := strings.Join(backend.calls, "\n")
	assert.Contains(t, joined, "statistic")
	assert.Contains(t, joined, "--probability 0.500000")
}

func TestCreateServiceWithNoEndpointsSkipsInstall(t *testing.T) {
	p, _ := newTestProxy(t)
	port := types.ServicePort{Port: 80, Protocol: "tcp"}

	require.NoError(t, p.CreateService("default/web", "10.96.0.10", port, nil))
	_, ok := p.services["default/web"]
	assert.False(t, ok)
}

func TestUpdateServiceRebuildsOnLargeChange(t *testing.T) {
	p, _ := newTestProxy(t)
	port := types.ServicePort{Port: 80, Protocol: "tcp"}

	initial := []types.Endpoint{{IP: "10.244.0.2", Port: 8080}, {IP: "10.244.0.3", Port: 8080}}
	require.NoError(t, p.CreateService("default/web", "10.96.0.10", port, initial))

	// Swap both endpoints: change (2 add + 2 remove) > len(current)/2 (1) -> rebuild.
	replaced := []types.Endpoint{{IP: "10.244.0.4", Port: 8080}, {IP: "10.244.0.5", Port: 8080}}
	require.NoError(t, p.UpdateService("default/web", "10.96.0.10", port, replaced))

	state := p.services["default/web"]
	require.Len(t, state.endpoints, 2)
	addrs := []string{state.endpoints[0].endpoint, state.endpoints[1].endpoint}
	assert.Contains(t, addrs, "10.244.0.4:8080")
	assert.Contains(t, addrs, "10.244.0.5:8080")
}

func TestUpdateServiceIncrementalPatch(t *testing.T) {
	p, _ := newTestProxy(t)
	port := types.ServicePort{Port: 80, Protocol: "tcp"}

	initial := []types.Endpoint{
		{IP: "10.244.0.2", Port: 8080},
		{IP: "10.244.0.3", Port: 8080},
		{IP: "10.244.0.4", Port: 8080},
		{IP: "10.244.0.5", Port: 8080},
	}
	require.NoError(t, p.CreateService("default/web", "10.96.0.10", port, initial))

	// Add one, remove one: (1+1) is not > 4/2=2, so this patches in place.
	updated := []types.Endpoint{
		{IP: "10.244.0.2", Port: 8080},
		{IP: "10.244.0.3", Port: 8080},
		{IP: "10.244.0.4", Port: 8080},
		{IP: "10.244.0.6", Port: 8080},
	}
	require.NoError(t, p.UpdateService("default/web", "10.96.0.10", port, updated))

	state := p.services["default/web"]
	require.Len(t, state.endpoints, 4)
	var addrs []string
	for _, ep := range state.endpoints {
		addrs = append(addrs, ep.endpoint)
	}
	assert.Contains(t, addrs, "10.244.0.6:8080")
	assert.NotContains(t, addrs, "10.244.0.5:8080")
}

func TestDeleteServiceIsIdempotent(t *testing.T) {
	p, _ := newTestProxy(t)
	port := types.ServicePort{Port: 80, Protocol: "tcp"}
	endpoints := []types.Endpoint{{IP: "10.244.0.2", Port: 8080}}

	require.NoError(t, p.CreateService("default/web", "10.96.0.10", port, endpoints))
	require.NoError(t, p.DeleteService("default/web", "10.96.0.10", port))

	// Deleting again must not error or hang.
	require.NoError(t, p.DeleteService("default/web", "10.96.0.10", port))
	_, ok := p.services["default/web"]
	assert.False(t, ok)
}

func TestNodePortRuleInstalledWhenSet(t *testing.T) {
	p, backend := newTestProxy(t)
	port := types.ServicePort{Port: 80, Protocol: "tcp", NodePort: 30080}
	endpoints := []types.Endpoint{{IP: "10.244.0.2", Port: 8080}}

	require.NoError(t, p.CreateService("default/web", "10.96.0.10", port, endpoints))

	joined := strings.Join(backend.calls, "\n")
	assert.Contains(t, joined, "30080")
	assert.Contains(t, joined, "nodePort")
}
