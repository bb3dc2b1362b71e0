// Package apply decodes a YAML stream of Cove object manifests and
// creates each one through the API client, the same "one document per
// object, dispatch on kind" shape kubectl apply uses, kept intentionally
// thin: no diffing, no server-side apply, no strategic merge — create
// only, exactly enough for an operator CLI and for test fixtures to
// declare cluster state.
package apply

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/nodeforge/cove/pkg/client"
	"github.com/nodeforge/cove/pkg/types"
)

// Result reports what a single manifest document created.
type Result struct {
	Kind      string
	Namespace string
	Name      string
}

// Stream reads every YAML document from r, creates the object it
// describes through c, and returns one Result per document in order.
// It stops at the first error, so a partially-applied stream is always
// a prefix of the input.
//
// Each document is decoded twice: once into a generic map so its "kind"
// field can select the concrete type, and once — via a JSON
// round-trip — into that type, so manifest authors can use the same
// camelCase field names the JSON API already documents instead of
// yaml.v3's default all-lowercase Go-field mapping.
func Stream(ctx context.Context, c *client.Client, r io.Reader) ([]Result, error) {
	dec := yaml.NewDecoder(r)
	var results []Result

	for i := 0; ; i++ {
		var doc map[string]interface{}
		if err := dec.Decode(&doc); err != nil {
			if err == io.EOF {
				break
			}
			return results, fmt.Errorf("document %d: decode yaml: %w", i, err)
		}
		if doc == nil {
			continue // empty document between "---" separators
		}

		kind, _ := doc["kind"].(string)
		if kind == "" {
			return results, fmt.Errorf("document %d: missing kind", i)
		}

		raw, err := json.Marshal(doc)
		if err != nil {
			return results, fmt.Errorf("document %d: re-marshal as json: %w", i, err)
		}

		res, err := applyOne(ctx, c, kind, raw)
		if err != nil {
			return results, fmt.Errorf("document %d (kind %s): %w", i, kind, err)
		}
		results = append(results, res)
	}

	return results, nil
}

func applyOne(ctx context.Context, c *client.Client, kind string, raw []byte) (Result, error) {
	switch kind {
	case "Pod":
		var obj types.Pod
		if err := json.Unmarshal(raw, &obj); err != nil {
			return Result{}, err
		}
		if _, err := c.CreatePod(ctx, &obj); err != nil {
			return Result{}, err
		}
		return Result{Kind: kind, Namespace: obj.Namespace, Name: obj.Name}, nil

	case "ReplicaSet":
		var obj types.ReplicaSet
		if err := json.Unmarshal(raw, &obj); err != nil {
			return Result{}, err
		}
		if _, err := c.CreateReplicaSet(ctx, &obj); err != nil {
			return Result{}, err
		}
		return Result{Kind: kind, Namespace: obj.Namespace, Name: obj.Name}, nil

	case "HorizontalPodAutoscaler":
		var obj types.HorizontalPodAutoscaler
		if err := json.Unmarshal(raw, &obj); err != nil {
			return Result{}, err
		}
		if _, err := c.CreateHPA(ctx, &obj); err != nil {
			return Result{}, err
		}
		return Result{Kind: kind, Namespace: obj.Namespace, Name: obj.Name}, nil

	case "Service":
		var obj types.Service
		if err := json.Unmarshal(raw, &obj); err != nil {
			return Result{}, err
		}
		if _, err := c.CreateService(ctx, &obj); err != nil {
			return Result{}, err
		}
		return Result{Kind: kind, Namespace: obj.Namespace, Name: obj.Name}, nil

	case "DNSRecord":
		var obj types.DNSRecord
		if err := json.Unmarshal(raw, &obj); err != nil {
			return Result{}, err
		}
		if _, err := c.CreateDNSRecord(ctx, &obj); err != nil {
			return Result{}, err
		}
		return Result{Kind: kind, Namespace: obj.Namespace, Name: obj.Name}, nil

	case "PersistentVolume":
		var obj types.PersistentVolume
		if err := json.Unmarshal(raw, &obj); err != nil {
			return Result{}, err
		}
		if _, err := c.CreatePersistentVolume(ctx, &obj); err != nil {
			return Result{}, err
		}
		return Result{Kind: kind, Name: obj.Name}, nil

	case "PersistentVolumeClaim":
		var obj types.PersistentVolumeClaim
		if err := json.Unmarshal(raw, &obj); err != nil {
			return Result{}, err
		}
		if _, err := c.CreatePersistentVolumeClaim(ctx, &obj); err != nil {
			return Result{}, err
		}
		return Result{Kind: kind, Namespace: obj.Namespace, Name: obj.Name}, nil

	case "Workflow":
		var obj types.Workflow
		if err := json.Unmarshal(raw, &obj); err != nil {
			return Result{}, err
		}
		if _, err := c.CreateWorkflow(ctx, &obj); err != nil {
			return Result{}, err
		}
		return Result{Kind: kind, Namespace: obj.Namespace, Name: obj.Name}, nil

	default:
		return Result{}, fmt.Errorf("unknown kind %q", kind)
	}
}
