// Package types defines the declarative object model for the cluster:
// every kind the API server stores is a Go struct with an explicit
// metadata/spec/status split, never an opaque map.
package types

import "time"

// ObjectMeta is embedded by every namespaced kind.
type ObjectMeta struct {
	Name      string            `json:"name"`
	Namespace string            `json:"namespace,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// ObjectRef addresses an entity by (kind, namespace, name); cluster-scoped
// kinds leave Namespace empty. PersistentVolumeStatus.ClaimRef uses it
// instead of a direct pointer, so the PV<->PVC reference never creates a
// Go object cycle and always resolves lazily through the API.
type ObjectRef struct {
	Kind      string `json:"kind"`
	Namespace string `json:"namespace,omitempty"`
	Name      string `json:"name"`
}

// ---------------------------------------------------------------------
// Node
// ---------------------------------------------------------------------

type NodeStatusPhase string

const (
	NodeOnline  NodeStatusPhase = "ONLINE"
	NodeOffline NodeStatusPhase = "OFFLINE"
)

type Node struct {
	Name    string            `json:"name"`
	Address string            `json:"address"`
	Labels  map[string]string `json:"labels,omitempty"`

	Status NodeStatus `json:"status"`

	CreatedAt time.Time `json:"createdAt"`
}

type NodeStatus struct {
	Phase         NodeStatusPhase `json:"phase"`
	LastHeartbeat time.Time       `json:"lastHeartbeat"`
	PodTopic      string          `json:"podTopic"`
	ServiceTopic  string          `json:"serviceTopic"`
}

// ---------------------------------------------------------------------
// Pod
// ---------------------------------------------------------------------

type PodPhase string

const (
	PodCreating   PodPhase = "CREATING"
	PodRunning    PodPhase = "RUNNING"
	PodFailed     PodPhase = "FAILED"
	PodTerminated PodPhase = "TERMINATED"
)

type SecurityContext struct {
	RunAsUser          *int64   `json:"runAsUser,omitempty"`
	RunAsGroup         *int64   `json:"runAsGroup,omitempty"`
	SupplementalGroups []int64  `json:"supplementalGroups,omitempty"`
	Capabilities       []string `json:"capabilities,omitempty"`
	ReadOnlyRootFS     bool     `json:"readOnlyRootFs,omitempty"`
	Privileged         bool     `json:"privileged,omitempty"`
}

type ContainerPort struct {
	Name          string `json:"name,omitempty"`
	ContainerPort int    `json:"containerPort"`
	Protocol      string `json:"protocol,omitempty"` // tcp|udp, default tcp
}

type VolumeMount struct {
	Name      string `json:"name"` // references Pod.Spec.Volumes[i].Name
	MountPath string `json:"mountPath"`
	ReadOnly  bool   `json:"readOnly,omitempty"`
}

type ResourceRequirements struct {
	CPUShares   int64 `json:"cpuShares,omitempty"`  // relative scheduling weight
	CPUQuota    int64 `json:"cpuQuota,omitempty"`    // microseconds per period, 0 = unlimited
	MemoryLimit int64 `json:"memoryLimit,omitempty"` // bytes, 0 = unlimited
}

type ContainerSpec struct {
	Name            string               `json:"name"`
	Image           string               `json:"image"`
	Command         []string             `json:"command,omitempty"`
	Args            []string             `json:"args,omitempty"`
	Env             map[string]string    `json:"env,omitempty"`
	Ports           []ContainerPort      `json:"ports,omitempty"`
	Resources       ResourceRequirements `json:"resources,omitempty"`
	VolumeMounts    []VolumeMount        `json:"volumeMounts,omitempty"`
	SecurityContext *SecurityContext     `json:"securityContext,omitempty"`
}

// PodVolume is a Pod-level volume declaration; only the PVC source is
// supported (spec.md §4.6).
type PodVolume struct {
	Name string `json:"name"`
	PVC  string `json:"pvc"` // PersistentVolumeClaim name, same namespace
}

type PodSpec struct {
	Containers   []ContainerSpec   `json:"containers"`
	Volumes      []PodVolume       `json:"volumes,omitempty"`
	NodeSelector map[string]string `json:"nodeSelector,omitempty"`
}

type PodStatus struct {
	Phase    PodPhase `json:"phase"`
	NodeName string   `json:"nodeName,omitempty"`
	SubnetIP string   `json:"subnetIP,omitempty"`
	Message  string   `json:"message,omitempty"`

	// Load is the node agent's periodic pseudo-metric for this Pod, a
	// scalar in [0,1) HPAController reads to size the owning ReplicaSet
	// (spec.md §4.5: "a pseudo-metric in this system").
	Load float64 `json:"load,omitempty"`
}

type Pod struct {
	ObjectMeta
	Spec   PodSpec   `json:"spec"`
	Status PodStatus `json:"status"`
}

// ---------------------------------------------------------------------
// ReplicaSet
// ---------------------------------------------------------------------

type ReplicaSetSpec struct {
	Replicas int               `json:"replicas"`
	Selector map[string]string `json:"selector"`
	Template PodSpec           `json:"template"`
}

type ReplicaSetStatus struct {
	ObservedReplicas int      `json:"observedReplicas"`
	OwnedPods        []string `json:"ownedPods,omitempty"`
	HPAControlled    bool     `json:"hpaControlled,omitempty"`
}

type ReplicaSet struct {
	ObjectMeta
	Spec   ReplicaSetSpec   `json:"spec"`
	Status ReplicaSetStatus `json:"status"`
}

// ---------------------------------------------------------------------
// HorizontalPodAutoscaler
// ---------------------------------------------------------------------

type HPATarget struct {
	Kind string `json:"kind"` // "ReplicaSet"
	Name string `json:"name"`
}

type HPASpec struct {
	Target      HPATarget `json:"target"`
	MinReplicas int       `json:"minReplicas"`
	MaxReplicas int       `json:"maxReplicas"`
	HighLoad    float64   `json:"highLoad"` // scale up above this
	LowLoad     float64   `json:"lowLoad"`  // scale down below this
}

type HPAStatus struct {
	CurrentReplicas int       `json:"currentReplicas"`
	LastActionAt    time.Time `json:"lastActionAt,omitempty"`
}

type HorizontalPodAutoscaler struct {
	ObjectMeta
	Spec   HPASpec   `json:"spec"`
	Status HPAStatus `json:"status"`
}

// ---------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------

type ServiceType string

const (
	ServiceClusterIP ServiceType = "ClusterIP"
	ServiceNodePort  ServiceType = "NodePort"
)

type ServicePort struct {
	Port       int    `json:"port"`
	TargetPort int    `json:"targetPort"`
	Protocol   string `json:"protocol,omitempty"` // tcp|udp, default tcp
	NodePort   int    `json:"nodePort,omitempty"` // only meaningful when Type=NodePort
}

type ServiceSpec struct {
	Type     ServiceType       `json:"type"`
	Selector map[string]string `json:"selector"`
	Port     ServicePort       `json:"port"`
}

type ServiceStatus struct {
	ClusterIP string `json:"clusterIP,omitempty"`
}

type Service struct {
	ObjectMeta
	Spec   ServiceSpec   `json:"spec"`
	Status ServiceStatus `json:"status"`
}

// Endpoint is a concrete (ip, port) backing a Service.
type Endpoint struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// ---------------------------------------------------------------------
// DNS
// ---------------------------------------------------------------------

type DNSRecordSpec struct {
	Host        string `json:"host"`        // e.g. "api.internal"
	ServicePath string `json:"servicePath"` // "namespace/service"
}

type DNSRecord struct {
	ObjectMeta
	Spec DNSRecordSpec `json:"spec"`
}

// ---------------------------------------------------------------------
// PersistentVolume / PersistentVolumeClaim
// ---------------------------------------------------------------------

type StorageClass string

const (
	StorageClassHostPath StorageClass = "hostPath"
	StorageClassNFS      StorageClass = "nfs"
)

type PVStatusPhase string

const (
	PVStatic    PVStatusPhase = "static"
	PVAvailable PVStatusPhase = "Available"
	PVBound     PVStatusPhase = "Bound"
	PVReleased  PVStatusPhase = "Released"
)

type HostPathSource struct {
	Path string `json:"path"`
}

type NFSSource struct {
	Server string `json:"server"`
	Path   string `json:"path"`
}

type PersistentVolumeSpec struct {
	CapacityBytes int64           `json:"capacityBytes"`
	StorageClass  StorageClass    `json:"storageClass"`
	HostPath      *HostPathSource `json:"hostPath,omitempty"`
	NFS           *NFSSource      `json:"nfs,omitempty"`
}

type PersistentVolumeStatus struct {
	Phase    PVStatusPhase `json:"phase"`
	ClaimRef *ObjectRef    `json:"claimRef,omitempty"`
}

// PersistentVolume is cluster-scoped: no Namespace.
type PersistentVolume struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`

	Spec   PersistentVolumeSpec   `json:"spec"`
	Status PersistentVolumeStatus `json:"status"`
}

type PVCPhase string

const (
	PVCPending PVCPhase = "Pending"
	PVCBound   PVCPhase = "Bound"
	PVCLost    PVCPhase = "Lost"
	PVCFailed  PVCPhase = "Failed"
)

type PersistentVolumeClaimSpec struct {
	RequestBytes int64        `json:"requestBytes"`
	StorageClass StorageClass `json:"storageClass"`
	VolumeName   string       `json:"volumeName"` // required, no selector matching
}

type PersistentVolumeClaimStatus struct {
	Phase PVCPhase `json:"phase"`
}

type PersistentVolumeClaim struct {
	ObjectMeta
	Spec   PersistentVolumeClaimSpec   `json:"spec"`
	Status PersistentVolumeClaimStatus `json:"status"`
}

// ---------------------------------------------------------------------
// Function / Workflow
// ---------------------------------------------------------------------

type FunctionSpec struct {
	Trigger string `json:"trigger"` // "http"
}

type FunctionStatus struct {
	Image             string   `json:"image,omitempty"`
	PodNames          []string `json:"podNames,omitempty"`
	RequestsSinceTick int64    `json:"requestsSinceTick,omitempty"`
}

type Function struct {
	ObjectMeta
	Spec   FunctionSpec   `json:"spec"`
	Status FunctionStatus `json:"status"`
}

// WorkflowStep invokes one function, optionally depending on prior steps.
type WorkflowStep struct {
	Name      string   `json:"name"`
	Function  string   `json:"function"`
	DependsOn []string `json:"dependsOn,omitempty"`
}

type WorkflowSpec struct {
	Steps []WorkflowStep `json:"steps"`
}

type Workflow struct {
	ObjectMeta
	Spec WorkflowSpec `json:"spec"`
}
