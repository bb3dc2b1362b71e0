package faas

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/nodeforge/cove/pkg/log"
)

// Builder turns an uploaded code archive into a runnable image reference.
// A real implementation would unpack the archive, build a container image
// from it, and push it to a registry; Cove ships only the simulation
// below, the same posture pkg/containerengine takes toward a real
// runtime.
type Builder interface {
	Build(ctx context.Context, namespace, name string, archive io.Reader) (image string, err error)
}

// NoopBuilder logs the build it would have performed and derives a
// deterministic, content-addressed image tag from the archive bytes, so
// repeated uploads of identical code produce the same reference.
type NoopBuilder struct {
	Registry string // e.g. "registry.local/functions"
}

func NewNoopBuilder(registry string) *NoopBuilder {
	return &NoopBuilder{Registry: registry}
}

func (b *NoopBuilder) Build(ctx context.Context, namespace, name string, archive io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, archive); err != nil {
		return "", fmt.Errorf("hash function archive: %w", err)
	}
	tag := hex.EncodeToString(h.Sum(nil))[:12]
	image := fmt.Sprintf("%s/%s-%s:%s", b.Registry, namespace, name, tag)

	log.WithComponent("faas-builder").Info().
		Str("namespace", namespace).
		Str("name", name).
		Str("image", image).
		Msg("simulated function image build")
	return image, nil
}
