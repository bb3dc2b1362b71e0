package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nodeforge/cove/pkg/bus"
	"github.com/nodeforge/cove/pkg/faas"
	"github.com/nodeforge/cove/pkg/log"
	"github.com/nodeforge/cove/pkg/metrics"
	"github.com/nodeforge/cove/pkg/store"
)

// Config controls the housekeeping intervals and function autoscaling
// thresholds the server applies, per spec.md §4.1.
type Config struct {
	NodeTimeout         time.Duration
	LivenessInterval    time.Duration
	AutoscaleInterval   time.Duration
	AutoscaleHighThresh float64
	AutoscaleLowThresh  float64
	Builder             faas.Builder
}

func defaultConfig() Config {
	return Config{
		NodeTimeout:         10 * time.Second,
		LivenessInterval:    5 * time.Second,
		AutoscaleInterval:   10 * time.Second,
		AutoscaleHighThresh: faas.DefaultHighThreshold,
		AutoscaleLowThresh:  faas.DefaultLowThreshold,
	}
}

// Server is Cove's API server: the single writer to pkg/store and the
// only producer onto pkg/bus.
type Server struct {
	kv     store.KV
	bus    bus.Bus
	cfg    Config
	logger zerolog.Logger

	mux        *http.ServeMux
	httpServer *http.Server

	// fnMu is "the function write-lock" spec.md §4.1 refers to: function
	// invoke takes it for read (many concurrent invocations of different,
	// or the same, function may proceed together), the cold-start upgrade
	// and the autoscaler take it for write.
	fnMu sync.RWMutex

	stopCh chan struct{}
	once   sync.Once
}

func NewServer(kv store.KV, b bus.Bus, cfg Config) *Server {
	if cfg.NodeTimeout == 0 {
		cfg = defaultConfig()
	}
	if cfg.Builder == nil {
		cfg.Builder = faas.NewNoopBuilder("registry.local/functions")
	}

	s := &Server{
		kv:     kv,
		bus:    b,
		cfg:    cfg,
		logger: log.WithComponent("api"),
		stopCh: make(chan struct{}),
	}
	s.mux = http.NewServeMux()
	s.routes()
	return s
}

// Handler returns the server's routed, logging-wrapped HTTP handler
// without starting a listener, for in-process embedding (tests, or a
// combined all-in-one daemon sharing one *http.Server with other
// components).
func (s *Server) Handler() http.Handler {
	return s.loggingMiddleware(s.mux)
}

// Start runs the HTTP listener and the housekeeping loops until ctx is
// cancelled or Stop is called; it returns the first error from either.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.loggingMiddleware(s.mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info().Str("addr", addr).Msg("api server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		s.nodeLivenessLoop(gctx)
		return nil
	})
	g.Go(func() error {
		s.functionAutoscaleLoop(gctx)
		return nil
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-s.stopCh:
		}
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Stop signals the housekeeping loops and HTTP listener to shut down.
// Safe to call more than once.
func (s *Server) Stop() {
	s.once.Do(func() { close(s.stopCh) })
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		metrics.APIRequestsTotal.WithLabelValues(r.Method, http.StatusText(rec.status)).Inc()
		metrics.APIRequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("latency", time.Since(start)).
			Msg("handled request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/ready", s.handleReady)
	s.mux.Handle("/metrics", metrics.Handler())

	s.registerNodeRoutes()
	s.registerPodRoutes()
	s.registerSchedulerRoutes()
	s.registerReplicaSetRoutes()
	s.registerHPARoutes()
	s.registerServiceRoutes()
	s.registerDNSRoutes()
	s.registerVolumeRoutes()
	s.registerFunctionRoutes()
	s.registerWorkflowRoutes()
}
