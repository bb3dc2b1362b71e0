package faas

import (
	"math/rand/v2"

	"github.com/nodeforge/cove/pkg/types"
)

// Default autoscaling thresholds, per spec.md §4.1: scale up when the
// per-Pod request rate since the last tick exceeds High, scale down when
// it falls below Low.
const (
	DefaultHighThreshold = 10.0
	DefaultLowThreshold  = 1.0
)

// RunnablePods filters pods down to those a function invocation or the
// autoscaler can actually address: RUNNING with an assigned overlay IP.
func RunnablePods(pods []*types.Pod) []*types.Pod {
	var out []*types.Pod
	for _, p := range pods {
		if p.Status.Phase == types.PodRunning && p.Status.SubnetIP != "" {
			out = append(out, p)
		}
	}
	return out
}

// PickPod selects one pod uniformly at random among the runnable set. It
// returns nil if none are available.
func PickPod(pods []*types.Pod) *types.Pod {
	runnable := RunnablePods(pods)
	if len(runnable) == 0 {
		return nil
	}
	return runnable[rand.IntN(len(runnable))]
}

// ShouldScaleUp reports whether the per-pod request rate since the last
// tick justifies adding one more backing Pod.
func ShouldScaleUp(requestsSinceTick int64, podCount int, high float64) bool {
	if podCount == 0 {
		return requestsSinceTick > 0
	}
	return float64(requestsSinceTick)/float64(podCount) > high
}

// ShouldScaleDown reports whether the per-pod request rate since the last
// tick justifies removing one backing Pod. A function must keep at least
// one Pod; the caller is responsible for that floor.
func ShouldScaleDown(requestsSinceTick int64, podCount int, low float64) bool {
	if podCount == 0 {
		return false
	}
	return float64(requestsSinceTick)/float64(podCount) < low
}
