package dns

import (
	"fmt"
	"net"
	"strings"

	"github.com/miekg/dns"
	"github.com/nodeforge/cove/pkg/log"
	"github.com/nodeforge/cove/pkg/store"
	"github.com/nodeforge/cove/pkg/types"
)

// Resolver answers cluster-internal names by walking DNSRecords to the
// Service they route to and returning that Service's ClusterIP
// (spec.md §4.5 DNSController, §4.6 DNS resolver route).
type Resolver struct {
	kv     store.KV
	domain string // search domain, e.g. "cove"
}

func NewResolver(kv store.KV, domain string) *Resolver {
	return &Resolver{kv: kv, domain: domain}
}

// Resolve resolves a DNS query name to resource records. Names may be
// bare ("api.internal") or domain-qualified ("api.internal.cove").
func (r *Resolver) Resolve(queryName string) ([]dns.RR, error) {
	name := r.stripDomain(strings.TrimSuffix(queryName, "."))

	log.WithComponent("dns.resolver").Debug().Str("query", name).Msg("resolving dns query")

	record, err := r.findRecord(name)
	if err != nil {
		return nil, err
	}

	svc, err := r.resolveService(record.Spec.ServicePath)
	if err != nil {
		return nil, fmt.Errorf("dns record %q: %w", record.Name, err)
	}

	if svc.Status.ClusterIP == "" {
		return nil, fmt.Errorf("service %q has no clusterIP yet", record.Spec.ServicePath)
	}
	ip := net.ParseIP(svc.Status.ClusterIP)
	if ip == nil {
		return nil, fmt.Errorf("service %q has invalid clusterIP %q", record.Spec.ServicePath, svc.Status.ClusterIP)
	}

	return []dns.RR{&dns.A{
		Hdr: dns.RR_Header{
			Name:   r.makeFQDN(queryName),
			Rrtype: dns.TypeA,
			Class:  dns.ClassINET,
			Ttl:    10,
		},
		A: ip.To4(),
	}}, nil
}

func (r *Resolver) findRecord(host string) (*types.DNSRecord, error) {
	records, err := store.ListAllDNSRecords(r.kv)
	if err != nil {
		return nil, fmt.Errorf("list dns records: %w", err)
	}
	for _, rec := range records {
		if rec.Spec.Host == host {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("no dns record for host: %s", host)
}

// resolveService parses a "namespace/name" service path and fetches it.
func (r *Resolver) resolveService(servicePath string) (*types.Service, error) {
	ns, name, ok := strings.Cut(servicePath, "/")
	if !ok {
		return nil, fmt.Errorf("malformed servicePath %q, want namespace/name", servicePath)
	}
	return store.GetService(r.kv, ns, name)
}

// stripDomain removes the cluster search domain suffix from a name.
func (r *Resolver) stripDomain(name string) string {
	return strings.TrimSuffix(name, "."+r.domain)
}

// makeFQDN ensures a name ends with a dot (fully qualified).
func (r *Resolver) makeFQDN(name string) string {
	if !strings.HasSuffix(name, ".") {
		return name + "."
	}
	return name
}
