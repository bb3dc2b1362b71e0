package controller

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nodeforge/cove/pkg/metrics"
)

// runLoop ticks every interval and calls pass until ctx is cancelled or
// Stop is requested via stopCh, timing each pass under the reconciler
// metrics labeled by name. This is the teacher's Reconciler.run generalized
// to a name+pass pair so every controller shares one ticker skeleton
// instead of re-implementing it.
func runLoop(ctx context.Context, stopCh <-chan struct{}, name string, interval time.Duration, logger zerolog.Logger, pass func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info().Str("controller", name).Msg("controller started")

	for {
		select {
		case <-ticker.C:
			timer := metrics.NewTimer()
			if err := pass(ctx); err != nil {
				logger.Error().Err(err).Str("controller", name).Msg("reconcile pass failed")
			}
			timer.ObserveDuration(metrics.ReconciliationDuration.WithLabelValues(name))
			metrics.ReconciliationCyclesTotal.WithLabelValues(name).Inc()
		case <-stopCh:
			logger.Info().Str("controller", name).Msg("controller stopped")
			return
		case <-ctx.Done():
			return
		}
	}
}

// once runs fn immediately instead of waiting for the first tick, so a
// freshly started controller-manager doesn't leave the cluster in a
// stale state for a whole interval.
func once(logger zerolog.Logger, name string, fn func() error) {
	if err := fn(); err != nil {
		logger.Error().Err(err).Str("controller", name).Msg("initial reconcile pass failed")
	}
}

// stopper is the Start/Stop shape every controller in this package
// exposes, mirroring the teacher Reconciler's public surface.
type stopper struct {
	stopCh chan struct{}
	once   sync.Once
}

func newStopper() stopper { return stopper{stopCh: make(chan struct{})} }

func (s *stopper) stop() { s.once.Do(func() { close(s.stopCh) }) }
