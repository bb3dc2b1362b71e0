/*
Package proxy implements the per-node service proxy described in
spec.md §4.4: a kube-proxy-style iptables dispatch/mark/postrouting
chain set, one service chain per Service with at least one live
endpoint, and one endpoint chain per endpoint carrying the DNAT rule,
wired together with probabilistic `-m statistic --mode random` jumps so
load is spread evenly without any connection-tracking state.
*/
package proxy
