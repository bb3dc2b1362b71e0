/*
Package network provides Cove's per-node overlay networking pieces: a
disjoint-per-node IP allocator for Pod addresses (IPAM, see ipam.go) and,
in the proxy subpackage, the iptables-driven Service NAT layer described
in spec.md §4.4.

Each node agent owns one IPAM instance over its own /24 slice of the
cluster overlay CIDR, so Pod IP allocation never needs cross-node
coordination. Service load-balancing — ClusterIP dispatch, endpoint
selection, NodePort exposure — lives entirely in pkg/network/proxy,
which drives the node's iptables rules directly rather than through
this package.

See also:

  - pkg/network/proxy for the Service NAT chain manager
  - pkg/nodeagent for how a Pod's overlay IP is allocated and released
  - pkg/controller for how Service endpoint sets are computed and
    published to each node's service-proxy bus topic
*/
package network
