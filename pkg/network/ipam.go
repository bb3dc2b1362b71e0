package network

import (
	"fmt"
	"net"
	"sync"
)

// IPAM is a per-node overlay IP allocator (spec.md §4.3, §5: "assigns
// overlay IPs... per-node, not shared"). Each node agent owns its own
// IPAM instance over a disjoint /24 slice of the cluster overlay CIDR,
// so no cross-node coordination is required — allocation is a purely
// local, in-memory concern.
type IPAM struct {
	mu        sync.Mutex
	base      net.IP
	allocated map[string]string // pod key -> IP
	used      map[string]bool
	next      int
}

// NewIPAM creates an allocator over the given base (e.g. "10.244.3.0/24"
// for node index 3). Addresses .0, .1 (gateway) and .255 (broadcast) are
// reserved.
func NewIPAM(cidr string) (*IPAM, error) {
	ip, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("parse overlay cidr %s: %w", cidr, err)
	}
	ones, bits := ipNet.Mask.Size()
	if bits-ones > 16 {
		return nil, fmt.Errorf("overlay cidr %s too large for a per-node allocator", cidr)
	}
	return &IPAM{
		base:      ip.Mask(ipNet.Mask),
		allocated: make(map[string]string),
		used:      make(map[string]bool),
		next:      2, // skip .0 (network) and .1 (gateway)
	}, nil
}

// Allocate returns a stable IP for podKey ("namespace/name"), assigning a
// new one on first call and returning the same address on subsequent
// calls (idempotent re-allocation, matching the Pod update path which
// never changes a Pod's assigned IP).
func (a *IPAM) Allocate(podKey string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if ip, ok := a.allocated[podKey]; ok {
		return ip, nil
	}

	// Hosts .2 through .254; wrap around so released addresses are reused.
	for tries := 0; tries < 253; tries++ {
		if a.next >= 255 {
			a.next = 2
		}
		ip := a.ipAt(a.next)
		a.next++
		if a.used[ip] {
			continue
		}
		a.used[ip] = true
		a.allocated[podKey] = ip
		return ip, nil
	}
	return "", fmt.Errorf("overlay address space exhausted for this node")
}

// Release frees podKey's IP so it can be reused.
func (a *IPAM) Release(podKey string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ip, ok := a.allocated[podKey]
	if !ok {
		return
	}
	delete(a.allocated, podKey)
	delete(a.used, ip)
}

func (a *IPAM) ipAt(host int) string {
	ip := append(net.IP(nil), a.base.To4()...)
	ip[3] = byte(host)
	return ip.String()
}
