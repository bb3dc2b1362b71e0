package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nodeforge/cove/pkg/apierr"
	"github.com/nodeforge/cove/pkg/client"
	"github.com/nodeforge/cove/pkg/log"
)

// DefaultDNSInterval is how often the DNSController re-publishes the
// current DNS record set.
const DefaultDNSInterval = 10 * time.Second

// ResolvedRecord is one DNS name fully resolved to the Service clusterIP
// it currently points at.
type ResolvedRecord struct {
	Host      string
	Namespace string
	Service   string
	ClusterIP string
}

// Publisher is the local cluster resolver's update sink (spec.md §4.5:
// "publishes to a local resolver (external)"). pkg/dns's own Resolver
// reads store.KV directly when co-located in the same process as the
// API server, so the in-memory reference Publisher below only needs to
// log drift for visibility; a split deployment would point this at a
// real resolver's admin API instead.
type Publisher interface {
	Publish(records []ResolvedRecord) error
}

// LogPublisher logs the resolved record set at debug level. It is the
// reference Publisher used when no external resolver admin API is
// configured.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher { return &LogPublisher{logger: logger} }

func (p *LogPublisher) Publish(records []ResolvedRecord) error {
	for _, r := range records {
		p.logger.Debug().
			Str("host", r.Host).Str("service", r.Namespace+"/"+r.Service).Str("clusterIP", r.ClusterIP).
			Msg("dns record resolved")
	}
	return nil
}

// DNSController reads DNSRecords and their target Services and
// publishes the resolved (host -> clusterIP) set to the cluster
// resolver.
type DNSController struct {
	client    *client.Client
	publisher Publisher
	logger    zerolog.Logger
	stopper
}

func NewDNSController(c *client.Client, publisher Publisher) *DNSController {
	return &DNSController{
		client:    c,
		publisher: publisher,
		logger:    log.WithComponent("dns-controller"),
		stopper:   newStopper(),
	}
}

func (dc *DNSController) Start(ctx context.Context) {
	once(dc.logger, "dns", func() error { return dc.reconcile(ctx) })
	go runLoop(ctx, dc.stopCh, "dns", DefaultDNSInterval, dc.logger, dc.reconcile)
}

func (dc *DNSController) Stop() { dc.stop() }

func (dc *DNSController) reconcile(ctx context.Context) error {
	records, err := dc.client.ListAllDNSRecords(ctx)
	if err != nil {
		return fmt.Errorf("list dns records: %w", err)
	}

	resolved := make([]ResolvedRecord, 0, len(records))
	for _, rec := range records {
		ns, name, err := splitServicePath(rec.Spec.ServicePath)
		if err != nil {
			dc.logger.Warn().Err(err).Str("host", rec.Spec.Host).Msg("dns record has malformed servicePath")
			continue
		}

		svc, err := dc.client.GetService(ctx, ns, name)
		if apierr.IsNotFound(err) {
			dc.logger.Warn().Str("host", rec.Spec.Host).Str("service", rec.Spec.ServicePath).
				Msg("dns record targets a service that no longer exists")
			continue
		}
		if err != nil {
			return fmt.Errorf("get service %s: %w", rec.Spec.ServicePath, err)
		}
		if svc.Status.ClusterIP == "" {
			continue // ServiceController hasn't assigned one yet
		}

		resolved = append(resolved, ResolvedRecord{
			Host:      rec.Spec.Host,
			Namespace: ns,
			Service:   name,
			ClusterIP: svc.Status.ClusterIP,
		})
	}

	return dc.publisher.Publish(resolved)
}

func splitServicePath(path string) (namespace, name string, err error) {
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			return path[:i], path[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("servicePath %q is not in namespace/name form", path)
}
