package dns

import (
	"testing"

	"github.com/miekg/dns"
	"github.com/nodeforge/cove/pkg/store"
	"github.com/nodeforge/cove/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolverStripDomain(t *testing.T) {
	r := NewResolver(nil, "cove")

	tests := []struct{ input, want string }{
		{"api.cove", "api"},
		{"api", "api"},
		{"", ""},
		{"web.api.cove", "web.api"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.stripDomain(tt.input))
	}
}

func TestResolverMakeFQDN(t *testing.T) {
	r := NewResolver(nil, "cove")

	tests := []struct{ input, want string }{
		{"api", "api."},
		{"api.", "api."},
		{"api.cove", "api.cove."},
		{"api.cove.", "api.cove."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.makeFQDN(tt.input))
	}
}

func TestResolverResolvesServiceClusterIP(t *testing.T) {
	kv := store.NewMemStore()
	require.NoError(t, store.CreateService(kv, &types.Service{
		ObjectMeta: types.ObjectMeta{Name: "api", Namespace: "default"},
		Status:     types.ServiceStatus{ClusterIP: "10.96.0.5"},
	}))
	require.NoError(t, store.CreateDNSRecord(kv, &types.DNSRecord{
		ObjectMeta: types.ObjectMeta{Name: "api-record", Namespace: "default"},
		Spec:       types.DNSRecordSpec{Host: "api.internal", ServicePath: "default/api"},
	}))

	r := NewResolver(kv, "cove")
	rrs, err := r.Resolve("api.internal.")
	require.NoError(t, err)
	require.Len(t, rrs, 1)

	a, ok := rrs[0].(*dns.A)
	require.True(t, ok)
	assert.Equal(t, "10.96.0.5", a.A.String())
	assert.Equal(t, "api.internal.", a.Hdr.Name)
}

func TestResolverUnknownHostFails(t *testing.T) {
	kv := store.NewMemStore()
	r := NewResolver(kv, "cove")
	_, err := r.Resolve("nobody.cove.")
	assert.Error(t, err)
}

func TestResolverServiceWithoutClusterIPFails(t *testing.T) {
	kv := store.NewMemStore()
	require.NoError(t, store.CreateService(kv, &types.Service{
		ObjectMeta: types.ObjectMeta{Name: "api", Namespace: "default"},
	}))
	require.NoError(t, store.CreateDNSRecord(kv, &types.DNSRecord{
		ObjectMeta: types.ObjectMeta{Name: "api-record", Namespace: "default"},
		Spec:       types.DNSRecordSpec{Host: "api.internal", ServicePath: "default/api"},
	}))

	r := NewResolver(kv, "cove")
	_, err := r.Resolve("api.internal.")
	assert.Error(t, err)
}
