package metrics

import (
	"time"

	"github.com/nodeforge/cove/pkg/store"
	"github.com/nodeforge/cove/pkg/types"
)

// Collector periodically samples cluster-wide gauges from the KV store.
// It runs inside the API server process, the only component that reads
// the full object set routinely.
type Collector struct {
	kv     store.KV
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over kv.
func NewCollector(kv store.KV) *Collector {
	return &Collector{kv: kv, stopCh: make(chan struct{})}
}

// Start begins collecting metrics every 15s until Stop is called.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectNodes()
	c.collectPods()
	c.collectServices()
	c.collectVolumes()
}

func (c *Collector) collectNodes() {
	nodes, err := store.ListNodes(c.kv)
	if err != nil {
		return
	}
	counts := map[types.NodeStatusPhase]int{}
	for _, n := range nodes {
		counts[n.Status.Phase]++
	}
	for phase, count := range counts {
		NodesTotal.WithLabelValues(string(phase)).Set(float64(count))
	}
}

func (c *Collector) collectPods() {
	pods, err := store.ListAllPods(c.kv)
	if err != nil {
		return
	}
	counts := map[types.PodPhase]int{}
	for _, p := range pods {
		counts[p.Status.Phase]++
	}
	for phase, count := range counts {
		PodsTotal.WithLabelValues(string(phase)).Set(float64(count))
	}
}

func (c *Collector) collectServices() {
	services, err := store.ListAllServices(c.kv)
	if err != nil {
		return
	}
	ServicesTotal.Set(float64(len(services)))
}

func (c *Collector) collectVolumes() {
	volumes, err := store.ListPVs(c.kv)
	if err != nil {
		return
	}
	VolumesTotal.Set(float64(len(volumes)))
}
