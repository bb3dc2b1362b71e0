package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/nodeforge/cove/pkg/apierr"
	"github.com/nodeforge/cove/pkg/types"
)

// defaultTimeout bounds every request this client issues, mirroring the
// teacher gRPC client's fixed 10-second per-call context.
const defaultTimeout = 10 * time.Second

// Client is the HTTP client every cluster component uses to reach the API
// server. It is safe for concurrent use; http.Client already is.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a Client pointed at the API server's base URL, e.g.
// "http://10.0.0.1:6443".
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// SchedulerBind is the response to POST /scheduler: the bus coordinates the
// caller should use to watch for the eventual bind (spec.md §6).
type SchedulerBind struct {
	Topic string `json:"topic"`
}

// --- generic request helpers (internal; mirrors pkg/store's generic
// get/list/create/put helpers from the other side of the wire) -----------

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apierr.Unavailable(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return errorFromStatus(resp.StatusCode, string(bytes.TrimSpace(data)))
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func errorFromStatus(status int, message string) error {
	switch status {
	case http.StatusNotFound:
		return apierr.NotFound("%s", message)
	case http.StatusConflict:
		return apierr.Conflict("%s", message)
	case http.StatusBadRequest:
		return apierr.Validation("%s", message)
	case http.StatusServiceUnavailable:
		return apierr.Unavailable(fmt.Errorf("%s", message), "api server unavailable")
	default:
		return fmt.Errorf("api server returned %d: %s", status, message)
	}
}

func get[T any](ctx context.Context, c *Client, path string) (*T, error) {
	var v T
	if err := c.do(ctx, http.MethodGet, path, nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func list[T any](ctx context.Context, c *Client, path string) ([]*T, error) {
	var v []*T
	if err := c.do(ctx, http.MethodGet, path, nil, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func create[T any](ctx context.Context, c *Client, path string, body *T) (*T, error) {
	var v T
	if err := c.do(ctx, http.MethodPost, path, body, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func update[T any](ctx context.Context, c *Client, path string, body *T) (*T, error) {
	var v T
	if err := c.do(ctx, http.MethodPut, path, body, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func del(ctx context.Context, c *Client, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func nsPath(kind, ns string) string { return fmt.Sprintf("/namespaces/%s/%s", ns, kind) }
func nsItemPath(kind, ns, name string) string {
	return fmt.Sprintf("/namespaces/%s/%s/%s", ns, kind, name)
}

// --- Nodes ----------------------------------------------------------------

func (c *Client) ListNodes(ctx context.Context) ([]*types.Node, error) {
	return list[types.Node](ctx, c, "/nodes")
}

// RegisterNode registers this node on startup (spec.md §4.1, §4.3); the API
// server creates the node's Pod and service-proxy topics and returns the
// stored record with those names populated in Status.
func (c *Client) RegisterNode(ctx context.Context, node *types.Node) (*types.Node, error) {
	return create(ctx, c, fmt.Sprintf("/nodes/%s", node.Name), node)
}

// Heartbeat reports liveness for this node (PUT /nodes/{name}).
func (c *Client) Heartbeat(ctx context.Context, name string, status types.NodeStatus) (*types.Node, error) {
	body := &types.Node{Name: name, Status: status}
	return update(ctx, c, fmt.Sprintf("/nodes/%s", name), body)
}

func (c *Client) ListNodePods(ctx context.Context, name string) ([]*types.Pod, error) {
	return list[types.Pod](ctx, c, fmt.Sprintf("/nodes/%s/pods", name))
}

// --- Pods -------------------------------------------------------------------

func (c *Client) ListAllPods(ctx context.Context) ([]*types.Pod, error) {
	return list[types.Pod](ctx, c, "/pods")
}

func (c *Client) ListPods(ctx context.Context, ns string) ([]*types.Pod, error) {
	return list[types.Pod](ctx, c, nsPath("pods", ns))
}

func (c *Client) GetPod(ctx context.Context, ns, name string) (*types.Pod, error) {
	return get[types.Pod](ctx, c, nsItemPath("pods", ns, name))
}

func (c *Client) CreatePod(ctx context.Context, pod *types.Pod) (*types.Pod, error) {
	return create(ctx, c, nsItemPath("pods", pod.Namespace, pod.Name), pod)
}

func (c *Client) UpdatePod(ctx context.Context, pod *types.Pod) (*types.Pod, error) {
	return update(ctx, c, nsItemPath("pods", pod.Namespace, pod.Name), pod)
}

func (c *Client) DeletePod(ctx context.Context, ns, name string) error {
	return del(ctx, c, nsItemPath("pods", ns, name))
}

func (c *Client) GetPodStatus(ctx context.Context, ns, name string) (*types.PodStatus, error) {
	return get[types.PodStatus](ctx, c, nsItemPath("pods", ns, name)+"/status")
}

func (c *Client) UpdatePodStatus(ctx context.Context, ns, name string, status types.PodStatus) (*types.PodStatus, error) {
	return update(ctx, c, nsItemPath("pods", ns, name)+"/status", &status)
}

type podIP struct {
	SubnetIP string `json:"subnetIP"`
}

func (c *Client) GetPodIP(ctx context.Context, ns, name string) (string, error) {
	v, err := get[podIP](ctx, c, nsItemPath("pods", ns, name)+"/ip")
	if err != nil {
		return "", err
	}
	return v.SubnetIP, nil
}

func (c *Client) UpdatePodIP(ctx context.Context, ns, name, ip string) error {
	_, err := update(ctx, c, nsItemPath("pods", ns, name)+"/ip", &podIP{SubnetIP: ip})
	return err
}

// --- Scheduler --------------------------------------------------------------

// Schedule enqueues a Pod for scheduling and returns the bus coordinates to
// watch (POST /scheduler, spec.md §6).
func (c *Client) Schedule(ctx context.Context, pod *types.Pod) (*SchedulerBind, error) {
	var bind SchedulerBind
	if err := c.do(ctx, http.MethodPost, "/scheduler", pod, &bind); err != nil {
		return nil, err
	}
	return &bind, nil
}

// BindPod is called by the scheduler once it has chosen a node for a Pod
// (PUT /scheduler/namespaces/{ns}/pods/{name}/nodes/{node}).
func (c *Client) BindPod(ctx context.Context, ns, name, node string) error {
	path := fmt.Sprintf("/scheduler/namespaces/%s/pods/%s/nodes/%s", ns, name, node)
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

// --- ReplicaSets --------------------------------------------------------------

func (c *Client) ListReplicaSets(ctx context.Context, ns string) ([]*types.ReplicaSet, error) {
	return list[types.ReplicaSet](ctx, c, nsPath("replicasets", ns))
}

func (c *Client) ListAllReplicaSets(ctx context.Context) ([]*types.ReplicaSet, error) {
	return list[types.ReplicaSet](ctx, c, "/replicasets")
}

func (c *Client) GetReplicaSet(ctx context.Context, ns, name string) (*types.ReplicaSet, error) {
	return get[types.ReplicaSet](ctx, c, nsItemPath("replicasets", ns, name))
}

func (c *Client) CreateReplicaSet(ctx context.Context, rs *types.ReplicaSet) (*types.ReplicaSet, error) {
	return create(ctx, c, nsItemPath("replicasets", rs.Namespace, rs.Name), rs)
}

func (c *Client) UpdateReplicaSet(ctx context.Context, rs *types.ReplicaSet) (*types.ReplicaSet, error) {
	return update(ctx, c, nsItemPath("replicasets", rs.Namespace, rs.Name), rs)
}

func (c *Client) DeleteReplicaSet(ctx context.Context, ns, name string) error {
	return del(ctx, c, nsItemPath("replicasets", ns, name))
}

// --- HorizontalPodAutoscalers ----------------------------------------------

func (c *Client) ListAllHPAs(ctx context.Context) ([]*types.HorizontalPodAutoscaler, error) {
	return list[types.HorizontalPodAutoscaler](ctx, c, "/hpas")
}

func (c *Client) GetHPA(ctx context.Context, ns, name string) (*types.HorizontalPodAutoscaler, error) {
	return get[types.HorizontalPodAutoscaler](ctx, c, nsItemPath("hpas", ns, name))
}

func (c *Client) CreateHPA(ctx context.Context, h *types.HorizontalPodAutoscaler) (*types.HorizontalPodAutoscaler, error) {
	return create(ctx, c, nsItemPath("hpas", h.Namespace, h.Name), h)
}

func (c *Client) UpdateHPA(ctx context.Context, h *types.HorizontalPodAutoscaler) (*types.HorizontalPodAutoscaler, error) {
	return update(ctx, c, nsItemPath("hpas", h.Namespace, h.Name), h)
}

func (c *Client) DeleteHPA(ctx context.Context, ns, name string) error {
	return del(ctx, c, nsItemPath("hpas", ns, name))
}

// --- Services ----------------------------------------------------------------

func (c *Client) ListServices(ctx context.Context, ns string) ([]*types.Service, error) {
	return list[types.Service](ctx, c, nsPath("services", ns))
}

func (c *Client) ListAllServices(ctx context.Context) ([]*types.Service, error) {
	return list[types.Service](ctx, c, "/services")
}

func (c *Client) GetService(ctx context.Context, ns, name string) (*types.Service, error) {
	return get[types.Service](ctx, c, nsItemPath("services", ns, name))
}

func (c *Client) CreateService(ctx context.Context, s *types.Service) (*types.Service, error) {
	return create(ctx, c, nsItemPath("services", s.Namespace, s.Name), s)
}

// UpdateService is also used by ServiceController to assign clusterIP/
// nodePort; the API server rejects reassignment of an already-set field
// (spec.md §4.1 "Service update").
func (c *Client) UpdateService(ctx context.Context, s *types.Service) (*types.Service, error) {
	return update(ctx, c, nsItemPath("services", s.Namespace, s.Name), s)
}

func (c *Client) DeleteService(ctx context.Context, ns, name string) error {
	return del(ctx, c, nsItemPath("services", ns, name))
}

// --- DNS records --------------------------------------------------------------

func (c *Client) ListAllDNSRecords(ctx context.Context) ([]*types.DNSRecord, error) {
	return list[types.DNSRecord](ctx, c, "/dnsrecords")
}

func (c *Client) GetDNSRecord(ctx context.Context, ns, name string) (*types.DNSRecord, error) {
	return get[types.DNSRecord](ctx, c, nsItemPath("dnsrecords", ns, name))
}

func (c *Client) CreateDNSRecord(ctx context.Context, d *types.DNSRecord) (*types.DNSRecord, error) {
	return create(ctx, c, nsItemPath("dnsrecords", d.Namespace, d.Name), d)
}

func (c *Client) UpdateDNSRecord(ctx context.Context, d *types.DNSRecord) (*types.DNSRecord, error) {
	return update(ctx, c, nsItemPath("dnsrecords", d.Namespace, d.Name), d)
}

func (c *Client) DeleteDNSRecord(ctx context.Context, ns, name string) error {
	return del(ctx, c, nsItemPath("dnsrecords", ns, name))
}

// --- PersistentVolumes (cluster-scoped) --------------------------------------

func (c *Client) ListPersistentVolumes(ctx context.Context) ([]*types.PersistentVolume, error) {
	return list[types.PersistentVolume](ctx, c, "/volumes")
}

// GetPersistentVolume satisfies pkg/volume.PVLookup.
func (c *Client) GetPersistentVolume(ctx context.Context, name string) (*types.PersistentVolume, error) {
	return get[types.PersistentVolume](ctx, c, "/volumes/"+name)
}

func (c *Client) CreatePersistentVolume(ctx context.Context, pv *types.PersistentVolume) (*types.PersistentVolume, error) {
	return create(ctx, c, "/volumes/"+pv.Name, pv)
}

func (c *Client) UpdatePersistentVolume(ctx context.Context, pv *types.PersistentVolume) (*types.PersistentVolume, error) {
	return update(ctx, c, "/volumes/"+pv.Name, pv)
}

func (c *Client) DeletePersistentVolume(ctx context.Context, name string) error {
	return del(ctx, c, "/volumes/"+name)
}

// --- PersistentVolumeClaims ---------------------------------------------------

func (c *Client) ListAllPersistentVolumeClaims(ctx context.Context) ([]*types.PersistentVolumeClaim, error) {
	return list[types.PersistentVolumeClaim](ctx, c, "/volumeclaims")
}

// GetPersistentVolumeClaim satisfies pkg/volume.PVLookup.
func (c *Client) GetPersistentVolumeClaim(ctx context.Context, ns, name string) (*types.PersistentVolumeClaim, error) {
	return get[types.PersistentVolumeClaim](ctx, c, nsItemPath("volumeclaims", ns, name))
}

func (c *Client) CreatePersistentVolumeClaim(ctx context.Context, pvc *types.PersistentVolumeClaim) (*types.PersistentVolumeClaim, error) {
	return create(ctx, c, nsItemPath("volumeclaims", pvc.Namespace, pvc.Name), pvc)
}

func (c *Client) UpdatePersistentVolumeClaim(ctx context.Context, pvc *types.PersistentVolumeClaim) (*types.PersistentVolumeClaim, error) {
	return update(ctx, c, nsItemPath("volumeclaims", pvc.Namespace, pvc.Name), pvc)
}

func (c *Client) DeletePersistentVolumeClaim(ctx context.Context, ns, name string) error {
	return del(ctx, c, nsItemPath("volumeclaims", ns, name))
}

// --- Functions -----------------------------------------------------------------

func (c *Client) ListFunctions(ctx context.Context, ns string) ([]*types.Function, error) {
	return list[types.Function](ctx, c, nsPath("functions", ns))
}

func (c *Client) GetFunction(ctx context.Context, ns, name string) (*types.Function, error) {
	return get[types.Function](ctx, c, nsItemPath("functions", ns, name))
}

// CreateFunction uploads a code archive as a multipart form, per spec.md
// §6's "Functions (multipart upload on POST)".
func (c *Client) CreateFunction(ctx context.Context, fn *types.Function, archive io.Reader, archiveName string) (*types.Function, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	metaPart, err := w.CreateFormField("metadata")
	if err != nil {
		return nil, fmt.Errorf("build multipart request: %w", err)
	}
	if err := json.NewEncoder(metaPart).Encode(fn); err != nil {
		return nil, fmt.Errorf("encode function metadata: %w", err)
	}

	filePart, err := w.CreateFormFile("archive", archiveName)
	if err != nil {
		return nil, fmt.Errorf("build multipart request: %w", err)
	}
	if _, err := io.Copy(filePart, archive); err != nil {
		return nil, fmt.Errorf("copy archive: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+nsItemPath("functions", fn.Namespace, fn.Name), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apierr.Unavailable(err, "POST %s", req.URL.Path)
	}
	defer resp.Body.Close()

	var out types.Function
	if err := decodeResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteFunction(ctx context.Context, ns, name string) error {
	return del(ctx, c, nsItemPath("functions", ns, name))
}

// InvokeFunctionResult carries the body an invoked function's Pod returned.
type InvokeFunctionResult struct {
	Body []byte
}

// InvokeFunction calls PATCH /.../functions/{name} with the request body
// to forward (spec.md §6 "Function invoke").
func (c *Client) InvokeFunction(ctx context.Context, ns, name string, body []byte) (*InvokeFunctionResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch,
		c.baseURL+nsItemPath("functions", ns, name), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apierr.Unavailable(err, "PATCH %s", req.URL.Path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, errorFromStatus(resp.StatusCode, string(bytes.TrimSpace(data)))
	}
	return &InvokeFunctionResult{Body: data}, nil
}

// --- Workflows -----------------------------------------------------------------

func (c *Client) ListWorkflows(ctx context.Context, ns string) ([]*types.Workflow, error) {
	return list[types.Workflow](ctx, c, nsPath("workflows", ns))
}

func (c *Client) GetWorkflow(ctx context.Context, ns, name string) (*types.Workflow, error) {
	return get[types.Workflow](ctx, c, nsItemPath("workflows", ns, name))
}

func (c *Client) CreateWorkflow(ctx context.Context, wf *types.Workflow) (*types.Workflow, error) {
	return create(ctx, c, nsItemPath("workflows", wf.Namespace, wf.Name), wf)
}

func (c *Client) UpdateWorkflow(ctx context.Context, wf *types.Workflow) (*types.Workflow, error) {
	return update(ctx, c, nsItemPath("workflows", wf.Namespace, wf.Name), wf)
}

func (c *Client) DeleteWorkflow(ctx context.Context, ns, name string) error {
	return del(ctx, c, nsItemPath("workflows", ns, name))
}

// InvokeWorkflow calls PATCH /.../workflows/{name}; the API server runs
// the DAG synchronously and returns once every step has completed.
func (c *Client) InvokeWorkflow(ctx context.Context, ns, name string) error {
	return c.do(ctx, http.MethodPatch, nsItemPath("workflows", ns, name), nil, nil)
}
