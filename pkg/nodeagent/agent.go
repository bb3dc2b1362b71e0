package nodeagent

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/nodeforge/cove/pkg/bus"
	"github.com/nodeforge/cove/pkg/client"
	"github.com/nodeforge/cove/pkg/containerengine"
	"github.com/nodeforge/cove/pkg/log"
	"github.com/nodeforge/cove/pkg/network"
	"github.com/nodeforge/cove/pkg/types"
	"github.com/nodeforge/cove/pkg/volume"
)

const (
	heartbeatInterval = 5 * time.Second
	reconcileInterval = 5 * time.Second
	stopTimeout       = 10 * time.Second
)

// localPod is the agent's in-memory record of a Pod it is running,
// including the container engine IDs it owns (pause container first).
type localPod struct {
	pod          *types.Pod
	containerIDs []string
}

// Config configures an Agent.
type Config struct {
	NodeName   string
	Address    string
	Labels     map[string]string
	Client     *client.Client
	Bus        bus.Bus
	Engine     containerengine.Engine
	OverlayIPAM *network.IPAM
	Volumes    *volume.Resolver
}

// Agent is the per-node daemon. It is safe to Start once; Stop is
// idempotent.
type Agent struct {
	nodeName string
	address  string
	labels   map[string]string

	client  *client.Client
	bus     bus.Bus
	engine  containerengine.Engine
	ipam    *network.IPAM
	volumes *volume.Resolver

	mu   sync.RWMutex
	pods map[string]*localPod // "namespace/name" -> localPod

	stopCh chan struct{}
	once   sync.Once
}

func New(cfg Config) *Agent {
	return &Agent{
		nodeName: cfg.NodeName,
		address:  cfg.Address,
		labels:   cfg.Labels,
		client:   cfg.Client,
		bus:      cfg.Bus,
		engine:   cfg.Engine,
		ipam:     cfg.OverlayIPAM,
		volumes:  cfg.Volumes,
		pods:     make(map[string]*localPod),
		stopCh:   make(chan struct{}),
	}
}

// Start registers the node, then spawns the heartbeat, Pod-topic consumer
// and reconcile loops (spec.md §4.3). It returns once registration
// succeeds; the loops run until Stop is called.
func (a *Agent) Start(ctx context.Context) error {
	logger := log.WithComponent("nodeagent")

	node := &types.Node{
		Name:    a.nodeName,
		Address: a.address,
		Labels:  a.labels,
	}
	registered, err := a.client.RegisterNode(ctx, node)
	if err != nil {
		return fmt.Errorf("register node %s: %w", a.nodeName, err)
	}
	logger.Info().Str("node", a.nodeName).Str("podTopic", registered.Status.PodTopic).Msg("node registered")

	consumer := a.bus.Consumer(bus.PodTopic(a.nodeName), "nodeagent")

	go a.heartbeatLoop()
	go a.podConsumeLoop(consumer)
	go a.reconcileLoop()

	return nil
}

// Stop signals every loop to exit. Safe to call multiple times.
func (a *Agent) Stop() {
	a.once.Do(func() { close(a.stopCh) })
}

func (a *Agent) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	logger := log.WithComponent("nodeagent")

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), heartbeatInterval)
			_, err := a.client.Heartbeat(ctx, a.nodeName, types.NodeStatus{Phase: types.NodeOnline})
			cancel()
			if err != nil {
				logger.Warn().Err(err).Msg("heartbeat failed")
			}
		case <-a.stopCh:
			return
		}
	}
}

func (a *Agent) podConsumeLoop(consumer bus.Consumer) {
	ctx := context.Background()
	logger := log.WithComponent("nodeagent")

	for {
		select {
		case <-a.stopCh:
			return
		default:
		}

		msg, ok, err := consumer.Poll(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("pod topic poll failed")
			continue
		}
		if !ok {
			continue
		}

		if err := a.handleMessage(ctx, msg); err != nil {
			logger.Error().Err(err).Str("key", msg.Key).Msg("pod command failed")
		}
		if err := consumer.Commit(msg); err != nil {
			logger.Error().Err(err).Msg("commit pod message failed")
		}
	}
}

func (a *Agent) handleMessage(ctx context.Context, msg *bus.Message) error {
	switch msg.Key {
	case bus.KeyAdd:
		var pod types.Pod
		if err := json.Unmarshal(msg.Payload, &pod); err != nil {
			return fmt.Errorf("decode pod: %w", err)
		}
		return a.handleAdd(ctx, &pod)
	case bus.KeyUpdate:
		var pod types.Pod
		if err := json.Unmarshal(msg.Payload, &pod); err != nil {
			return fmt.Errorf("decode pod: %w", err)
		}
		return a.handleUpdate(&pod)
	case bus.KeyDelete:
		var pod types.Pod
		if err := json.Unmarshal(msg.Payload, &pod); err != nil {
			return fmt.Errorf("decode pod: %w", err)
		}
		return a.handleDelete(ctx, &pod)
	case bus.KeyHeartbeat:
		// Liveness ping on the Pod topic itself; nothing to act on besides
		// acknowledging it, which podConsumeLoop does via Commit.
		return nil
	default:
		return fmt.Errorf("unknown pod command key: %s", msg.Key)
	}
}

func podKey(ns, name string) string { return ns + "/" + name }

// handleAdd resolves volumes, allocates an overlay IP, and creates the
// pod's containers (pause first, then each declared container), per
// spec.md §4.3.
func (a *Agent) handleAdd(ctx context.Context, pod *types.Pod) error {
	logger := log.WithPod(pod.Namespace, pod.Name)
	key := podKey(pod.Namespace, pod.Name)

	volumePaths, err := a.volumes.Resolve(ctx, pod)
	if err != nil {
		return a.failPod(ctx, pod, fmt.Sprintf("resolve volumes: %v", err))
	}

	ip, err := a.ipam.Allocate(key)
	if err != nil {
		return a.failPod(ctx, pod, fmt.Sprintf("allocate overlay ip: %v", err))
	}
	if err := a.client.UpdatePodIP(ctx, pod.Namespace, pod.Name, ip); err != nil {
		return fmt.Errorf("report pod ip: %w", err)
	}

	containerIDs := make([]string, 0, len(pod.Spec.Containers)+1)

	pauseID := key + "/pause"
	if err := a.createAndStart(ctx, containerengine.ContainerRequest{ID: pauseID, Image: "pause"}); err != nil {
		return a.failPod(ctx, pod, fmt.Sprintf("start pause container: %v", err))
	}
	containerIDs = append(containerIDs, pauseID)

	for _, c := range pod.Spec.Containers {
		req, err := buildContainerRequest(key, c, volumePaths)
		if err != nil {
			return a.failPod(ctx, pod, fmt.Sprintf("container %s: %v", c.Name, err))
		}
		if err := a.createAndStart(ctx, req); err != nil {
			return a.failPod(ctx, pod, fmt.Sprintf("start container %s: %v", c.Name, err))
		}
		containerIDs = append(containerIDs, req.ID)
	}

	a.mu.Lock()
	a.pods[key] = &localPod{pod: pod, containerIDs: containerIDs}
	a.mu.Unlock()

	pod.Status.Phase = types.PodRunning
	pod.Status.NodeName = a.nodeName
	pod.Status.SubnetIP = ip
	if _, err := a.client.UpdatePodStatus(ctx, pod.Namespace, pod.Name, pod.Status); err != nil {
		return fmt.Errorf("report pod running: %w", err)
	}
	logger.Info().Str("ip", ip).Int("containers", len(containerIDs)).Msg("pod running")
	return nil
}

func (a *Agent) createAndStart(ctx context.Context, req containerengine.ContainerRequest) error {
	if err := a.engine.PullImage(ctx, req.Image); err != nil {
		return fmt.Errorf("pull image %s: %w", req.Image, err)
	}
	id, err := a.engine.CreateContainer(ctx, req)
	if err != nil {
		return fmt.Errorf("create container: %w", err)
	}
	if err := a.engine.StartContainer(ctx, id); err != nil {
		return fmt.Errorf("start container: %w", err)
	}
	return nil
}

// failPod marks the pod FAILED and reports it; the error returned is nil
// on a successful report so podConsumeLoop still commits the offset
// (spec.md §7: Runtime Failure never retries automatically).
func (a *Agent) failPod(ctx context.Context, pod *types.Pod, message string) error {
	pod.Status.Phase = types.PodFailed
	pod.Status.Message = message
	log.WithPod(pod.Namespace, pod.Name).Error().Str("reason", message).Msg("pod failed")
	if _, err := a.client.UpdatePodStatus(ctx, pod.Namespace, pod.Name, pod.Status); err != nil {
		return fmt.Errorf("report pod failed (reason %s): %w", message, err)
	}
	return nil
}

// handleUpdate applies only the mutable fields of a Pod update (labels);
// container spec changes are rejected at the API server (spec.md §4.3).
func (a *Agent) handleUpdate(pod *types.Pod) error {
	key := podKey(pod.Namespace, pod.Name)
	a.mu.Lock()
	defer a.mu.Unlock()
	if existing, ok := a.pods[key]; ok {
		existing.pod.Labels = pod.Labels
	}
	return nil
}

// handleDelete stops and removes every container the pod owns (pause
// last), releases its overlay IP, and unmounts any volumes no longer
// referenced by anything else on this node.
func (a *Agent) handleDelete(ctx context.Context, pod *types.Pod) error {
	key := podKey(pod.Namespace, pod.Name)

	a.mu.Lock()
	existing, ok := a.pods[key]
	delete(a.pods, key)
	a.mu.Unlock()

	if !ok {
		return nil
	}

	for i := len(existing.containerIDs) - 1; i >= 0; i-- {
		id := existing.containerIDs[i]
		if err := a.engine.StopContainer(ctx, id, stopTimeout); err != nil {
			log.WithPod(pod.Namespace, pod.Name).Warn().Err(err).Str("container", id).Msg("stop container failed")
		}
		if err := a.engine.DeleteContainer(ctx, id); err != nil {
			log.WithPod(pod.Namespace, pod.Name).Warn().Err(err).Str("container", id).Msg("delete container failed")
		}
	}

	a.ipam.Release(key)
	if err := a.volumes.Release(ctx, existing.pod); err != nil {
		log.WithPod(pod.Namespace, pod.Name).Warn().Err(err).Msg("release volumes failed")
	}
	return nil
}

// reconcileLoop cross-checks the container engine's live set against the
// local Pod table; Pods whose containers have vanished transition to
// FAILED (spec.md §4.3 "periodic reconcile").
func (a *Agent) reconcileLoop() {
	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.reconcileOnce()
		case <-a.stopCh:
			return
		}
	}
}

func (a *Agent) reconcileOnce() {
	ctx := context.Background()

	a.mu.RLock()
	snapshot := make([]*localPod, 0, len(a.pods))
	for _, lp := range a.pods {
		snapshot = append(snapshot, lp)
	}
	a.mu.RUnlock()

	for _, lp := range snapshot {
		if lp.pod.Status.Phase != types.PodRunning {
			continue
		}
		failed := false
		for _, id := range lp.containerIDs {
			state, err := a.engine.Status(ctx, id)
			if err != nil || state == containerengine.StateFailed {
				_ = a.failPod(ctx, lp.pod, fmt.Sprintf("container %s not running", id))
				failed = true
				break
			}
		}
		if !failed {
			a.reportLoad(ctx, lp)
		}
	}
}

// reportLoad samples a synthetic pseudo-metric for the Pod and reports it
// alongside the rest of its status. There is no real resource accounting
// behind the Simulation engine, so this stands in for whatever signal a
// production container runtime would expose (spec.md §4.5, §9's "design
// assumes a scalar load from the node agent").
func (a *Agent) reportLoad(ctx context.Context, lp *localPod) {
	lp.pod.Status.Load = rand.Float64()
	if _, err := a.client.UpdatePodStatus(ctx, lp.pod.Namespace, lp.pod.Name, lp.pod.Status); err != nil {
		log.WithPod(lp.pod.Namespace, lp.pod.Name).Warn().Err(err).Msg("report pod load failed")
	}
}

// buildContainerRequest translates a container spec plus its resolved
// volume host paths into the shape pkg/containerengine drives.
func buildContainerRequest(podKeyStr string, c types.ContainerSpec, volumePaths map[string]string) (containerengine.ContainerRequest, error) {
	req := containerengine.ContainerRequest{
		ID:      podKeyStr + "/" + c.Name,
		Image:   c.Image,
		Command: c.Command,
		Args:    c.Args,
		Env:     c.Env,
	}

	for _, m := range c.VolumeMounts {
		hostPath, ok := volumePaths[m.Name]
		if !ok {
			return req, fmt.Errorf("unknown volume reference %q", m.Name)
		}
		opts := []string{"rbind"}
		if m.ReadOnly {
			opts = append(opts, "ro")
		}
		req.Mounts = append(req.Mounts, specs.Mount{
			Destination: m.MountPath,
			Type:        "bind",
			Source:      hostPath,
			Options:     opts,
		})
	}

	if c.Resources.CPUShares != 0 || c.Resources.CPUQuota != 0 || c.Resources.MemoryLimit != 0 {
		resources := &specs.LinuxResources{}
		if c.Resources.CPUShares != 0 || c.Resources.CPUQuota != 0 {
			cpu := &specs.LinuxCPU{}
			if c.Resources.CPUShares != 0 {
				shares := uint64(c.Resources.CPUShares)
				cpu.Shares = &shares
			}
			if c.Resources.CPUQuota != 0 {
				quota := c.Resources.CPUQuota
				cpu.Quota = &quota
			}
			resources.CPU = cpu
		}
		if c.Resources.MemoryLimit != 0 {
			limit := c.Resources.MemoryLimit
			resources.Memory = &specs.LinuxMemory{Limit: &limit}
		}
		req.Resources = resources
	}

	process := &specs.Process{Args: append(append([]string{}, c.Command...), c.Args...)}
	for k, v := range c.Env {
		process.Env = append(process.Env, k+"="+v)
	}
	if sc := c.SecurityContext; sc != nil {
		if sc.RunAsUser != nil {
			process.User.UID = uint32(*sc.RunAsUser)
		}
		if sc.RunAsGroup != nil {
			process.User.GID = uint32(*sc.RunAsGroup)
		}
		for _, g := range sc.SupplementalGroups {
			process.User.AdditionalGids = append(process.User.AdditionalGids, uint32(g))
		}
		if len(sc.Capabilities) > 0 {
			process.Capabilities = &specs.LinuxCapabilities{
				Bounding:    sc.Capabilities,
				Effective:   sc.Capabilities,
				Inheritable: sc.Capabilities,
				Permitted:   sc.Capabilities,
			}
		}
		process.NoNewPrivileges = !sc.Privileged
	}
	req.Process = process

	return req, nil
}
