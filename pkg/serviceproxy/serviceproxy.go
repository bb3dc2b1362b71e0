// Package serviceproxy consumes a node's service-proxy bus topic and
// drives pkg/network/proxy.ServiceProxy's NAT rules to match, the same
// consume-loop shape pkg/scheduler uses for the scheduler topic.
package serviceproxy

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nodeforge/cove/pkg/bus"
	"github.com/nodeforge/cove/pkg/log"
	"github.com/nodeforge/cove/pkg/network/proxy"
	"github.com/nodeforge/cove/pkg/types"
)

const consumerGroup = "serviceproxy"

// message mirrors the controller package's ProxyMessage wire shape
// without importing pkg/controller (the node agent side of the cluster
// has no business depending on the controller-manager's packages).
type message struct {
	Action      string           `json:"action"`
	ServiceName string           `json:"serviceName"`
	Namespace   string           `json:"namespace"`
	ClusterIP   string           `json:"clusterIp"`
	Port        int              `json:"port"`
	Protocol    string           `json:"protocol"`
	Endpoints   []types.Endpoint `json:"endpoints"`
	NodePort    int              `json:"nodePort,omitempty"`
}

// Consumer drains this node's service-proxy topic and applies each
// message to the local ServiceProxy.
type Consumer struct {
	node   string
	bus    bus.Bus
	proxy  *proxy.ServiceProxy
	logger zerolog.Logger

	stopCh chan struct{}
	once   sync.Once
}

func New(node string, b bus.Bus, p *proxy.ServiceProxy) *Consumer {
	return &Consumer{
		node:   node,
		bus:    b,
		proxy:  p,
		logger: log.WithComponent("serviceproxy"),
		stopCh: make(chan struct{}),
	}
}

func (c *Consumer) Start() { go c.run() }

func (c *Consumer) Stop() { c.once.Do(func() { close(c.stopCh) }) }

func (c *Consumer) run() {
	consumer := c.bus.Consumer(bus.ServiceProxyTopic(c.node), consumerGroup)
	ctx := context.Background()

	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		msg, ok, err := consumer.Poll(ctx)
		if err != nil {
			c.logger.Error().Err(err).Msg("serviceproxy poll failed")
			continue
		}
		if !ok {
			continue
		}

		if err := c.apply(msg); err != nil {
			c.logger.Error().Err(err).Msg("apply proxy message failed")
			continue
		}
		if err := consumer.Commit(msg); err != nil {
			c.logger.Error().Err(err).Msg("commit serviceproxy offset failed")
		}
	}
}

func (c *Consumer) apply(raw *bus.Message) error {
	var m message
	if err := json.Unmarshal(raw.Payload, &m); err != nil {
		return err
	}

	key := m.Namespace + "/" + m.ServiceName
	port := types.ServicePort{Port: m.Port, Protocol: m.Protocol, NodePort: m.NodePort}

	switch m.Action {
	case bus.KeyDelete:
		return c.proxy.DeleteService(key, m.ClusterIP, port)
	case bus.KeyCreate:
		return c.proxy.CreateService(key, m.ClusterIP, port, m.Endpoints)
	default: // KeyUpdate, or any other refresh
		return c.proxy.UpdateService(key, m.ClusterIP, port, m.Endpoints)
	}
}
