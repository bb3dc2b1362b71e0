package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPAMAllocateIsStable(t *testing.T) {
	ipam, err := NewIPAM("10.244.3.0/24")
	require.NoError(t, err)

	ip1, err := ipam.Allocate("default/web-1")
	require.NoError(t, err)

	ip2, err := ipam.Allocate("default/web-1")
	require.NoError(t, err)
	assert.Equal(t, ip1, ip2)
}

func TestIPAMAllocateDistinctAddresses(t *testing.T) {
	ipam, err := NewIPAM("10.244.3.0/24")
	require.NoError(t, err)

	ipA, err := ipam.Allocate("default/a")
	require.NoError(t, err)
	ipB, err := ipam.Allocate("default/b")
	require.NoError(t, err)
	assert.NotEqual(t, ipA, ipB)
}

func TestIPAMReleaseAllowsReuse(t *testing.T) {
	ipam, err := NewIPAM("10.244.3.0/24")
	require.NoError(t, err)

	ip, err := ipam.Allocate("default/a")
	require.NoError(t, err)
	ipam.Release("default/a")

	assert.False(t, ipam.used[ip])
}

func TestIPAMRejectsOversizedCIDR(t *testing.T) {
	_, err := NewIPAM("10.244.0.0/8")
	assert.Error(t, err)
}
