package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nodeforge/cove/pkg/types"
)

func TestFilterCandidates(t *testing.T) {
	tests := []struct {
		name     string
		nodes    []*types.Node
		selector map[string]string
		expected []string
	}{
		{
			name: "all online, no selector",
			nodes: []*types.Node{
				{Name: "worker-1", Status: types.NodeStatus{Phase: types.NodeOnline}},
				{Name: "worker-2", Status: types.NodeStatus{Phase: types.NodeOnline}},
			},
			expected: []string{"worker-1", "worker-2"},
		},
		{
			name: "mixed online and offline",
			nodes: []*types.Node{
				{Name: "worker-1", Status: types.NodeStatus{Phase: types.NodeOnline}},
				{Name: "worker-2", Status: types.NodeStatus{Phase: types.NodeOffline}},
			},
			expected: []string{"worker-1"},
		},
		{
			name: "selector excludes non-matching labels",
			nodes: []*types.Node{
				{Name: "worker-1", Status: types.NodeStatus{Phase: types.NodeOnline}, Labels: map[string]string{"gpu": "true"}},
				{Name: "worker-2", Status: types.NodeStatus{Phase: types.NodeOnline}, Labels: map[string]string{"gpu": "false"}},
			},
			selector: map[string]string{"gpu": "true"},
			expected: []string{"worker-1"},
		},
		{
			name:     "no nodes",
			nodes:    nil,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := filterCandidates(tt.nodes, tt.selector)
			names := make([]string, len(got))
			for i, n := range got {
				names[i] = n.Name
			}
			assert.Equal(t, tt.expected, names)
		})
	}
}
