package controller

import (
	"context"

	"github.com/nodeforge/cove/pkg/bus"
	"github.com/nodeforge/cove/pkg/client"
	"github.com/nodeforge/cove/pkg/log"
	"github.com/nodeforge/cove/pkg/volume"
)

// Manager starts and stops every controller as a unit, the same
// aggregate lifecycle the teacher's single Reconciler exposed, split one
// level since Cove has several independent reconcile loops instead of
// one.
type Manager struct {
	ReplicaSet *ReplicaSetController
	HPA        *HPAController
	Service    *ServiceController
	NodePort   *NodePortManager
	PV         *PVController
	DNS        *DNSController
}

// Config holds the dependencies every controller needs to construct
// itself.
type Config struct {
	Client *client.Client
	Bus    bus.Bus

	HostPathDriver *volume.HostPathDriver
	NFSDriver      *volume.NFSDriver
	HostPathRoot   string
	NFSServer      string
	NFSExportRoot  string
}

func NewManager(cfg Config) *Manager {
	nodePort := NewNodePortManager(cfg.Bus)
	return &Manager{
		ReplicaSet: NewReplicaSetController(cfg.Client),
		HPA:        NewHPAController(cfg.Client),
		Service:    NewServiceController(cfg.Client, cfg.Bus, nodePort),
		NodePort:   nodePort,
		PV:         NewPVController(cfg.Client, cfg.HostPathDriver, cfg.NFSDriver, cfg.HostPathRoot, cfg.NFSServer, cfg.NFSExportRoot),
		DNS:        NewDNSController(cfg.Client, NewLogPublisher(log.WithComponent("dns-publisher"))),
	}
}

// Start launches every controller's reconcile loop.
func (m *Manager) Start(ctx context.Context) {
	m.ReplicaSet.Start(ctx)
	m.HPA.Start(ctx)
	m.Service.Start(ctx)
	m.PV.Start(ctx)
	m.DNS.Start(ctx)
}

// Stop halts every controller's reconcile loop.
func (m *Manager) Stop() {
	m.ReplicaSet.Stop()
	m.HPA.Stop()
	m.Service.Stop()
	m.NodePort.Stop()
	m.PV.Stop()
	m.DNS.Stop()
}
