package controller

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeforge/cove/pkg/types"
)

type recordingPublisher struct {
	published []ResolvedRecord
}

func (p *recordingPublisher) Publish(records []ResolvedRecord) error {
	p.published = records
	return nil
}

func TestDNSControllerResolvesRecordToClusterIP(t *testing.T) {
	c, _ := newHarness(t)
	ctx := context.Background()

	svc, err := c.CreateService(ctx, &types.Service{
		ObjectMeta: types.ObjectMeta{Namespace: "default", Name: "api"},
		Spec:       types.ServiceSpec{Type: types.ServiceClusterIP, Port: types.ServicePort{Port: 80, TargetPort: 8080}},
	})
	require.NoError(t, err)
	svc.Status.ClusterIP = "10.96.0.5"
	_, err = c.UpdateService(ctx, svc)
	require.NoError(t, err)

	_, err = c.CreateDNSRecord(ctx, &types.DNSRecord{
		ObjectMeta: types.ObjectMeta{Namespace: "default", Name: "api-record"},
		Spec:       types.DNSRecordSpec{Host: "api.internal", ServicePath: "default/api"},
	})
	require.NoError(t, err)

	pub := &recordingPublisher{}
	dc := NewDNSController(c, pub)
	require.NoError(t, dc.reconcile(ctx))

	require.Len(t, pub.published, 1)
	assert.Equal(t, "api.internal", pub.published[0].Host)
	assert.Equal(t, "10.96.0.5", pub.published[0].ClusterIP)
}

func TestDNSControllerSkipsRecordWithMissingService(t *testing.T) {
	c, _ := newHarness(t)
	ctx := context.Background()

	_, err := c.CreateDNSRecord(ctx, &types.DNSRecord{
		ObjectMeta: types.ObjectMeta{Namespace: "default", Name: "dangling"},
		Spec:       types.DNSRecordSpec{Host: "ghost.internal", ServicePath: "default/ghost"},
	})
	require.NoError(t, err)

	pub := &recordingPublisher{}
	dc := NewDNSController(c, pub)
	require.NoError(t, dc.reconcile(ctx))

	assert.Empty(t, pub.published)
}
