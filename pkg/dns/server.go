package dns

import (
	"context"
	"fmt"
	"sync"

	"github.com/miekg/dns"
	"github.com/nodeforge/cove/pkg/log"
	"github.com/nodeforge/cove/pkg/store"
)

const (
	// DefaultListenAddr is the address the cluster resolver listens on.
	DefaultListenAddr = "127.0.0.11:53"

	// DefaultDomain is the default cluster-internal search domain.
	DefaultDomain = "cove"

	// DefaultUpstream is the fallback DNS server for non-cluster queries.
	DefaultUpstream = "8.8.8.8:53"
)

// Server is the cluster-internal DNS server; it answers A records for
// Service ClusterIPs over UDP and forwards anything it doesn't recognize
// upstream.
type Server struct {
	resolver   *Resolver
	dnsServer  *dns.Server
	listenAddr string
	upstream   []string

	mu      sync.RWMutex
	running bool
}

// Config holds DNS server configuration.
type Config struct {
	ListenAddr string
	Domain     string
	Upstream   []string
}

func NewServer(kv store.KV, config *Config) *Server {
	if config == nil {
		config = &Config{}
	}
	if config.ListenAddr == "" {
		config.ListenAddr = DefaultListenAddr
	}
	if config.Domain == "" {
		config.Domain = DefaultDomain
	}
	if len(config.Upstream) == 0 {
		config.Upstream = []string{DefaultUpstream}
	}

	return &Server{
		listenAddr: config.ListenAddr,
		upstream:   config.Upstream,
		resolver:   NewResolver(kv, config.Domain),
	}
}

func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("dns server already running")
	}
	s.running = true
	s.mu.Unlock()

	log.WithComponent("dns").Info().Str("address", s.listenAddr).Msg("starting dns server")

	mux := dns.NewServeMux()
	mux.HandleFunc(".", s.handleDNSQuery)

	s.dnsServer = &dns.Server{
		Addr:    s.listenAddr,
		Net:     "udp",
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.dnsServer.ListenAndServe(); err != nil {
			log.WithComponent("dns").Error().Err(err).Msg("dns server error")
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	case <-ctx.Done():
		return s.Stop()
	default:
		log.WithComponent("dns").Info().Str("address", s.listenAddr).Msg("dns server started")
		return nil
	}
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	log.WithComponent("dns").Info().Msg("stopping dns server")

	if s.dnsServer != nil {
		if err := s.dnsServer.Shutdown(); err != nil {
			log.WithComponent("dns").Error().Err(err).Msg("error stopping dns server")
			return err
		}
	}

	s.running = false
	return nil
}

func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Server) handleDNSQuery(w dns.ResponseWriter, r *dns.Msg) {
	msg := &dns.Msg{}
	msg.SetReply(r)
	msg.Authoritative = true

	for _, q := range r.Question {
		if q.Qtype != dns.TypeA {
			s.forwardQuery(w, r)
			return
		}

		answers, err := s.resolver.Resolve(q.Name)
		if err != nil {
			log.WithComponent("dns").Debug().Err(err).Str("query", q.Name).Msg("not a cluster name, forwarding upstream")
			s.forwardQuery(w, r)
			return
		}

		msg.Answer = append(msg.Answer, answers...)
	}

	if err := w.WriteMsg(msg); err != nil {
		log.WithComponent("dns").Error().Err(err).Msg("failed to write dns response")
	}
}

func (s *Server) forwardQuery(w dns.ResponseWriter, r *dns.Msg) {
	client := &dns.Client{Net: "udp"}

	for _, upstream := range s.upstream {
		resp, _, err := client.Exchange(r, upstream)
		if err != nil {
			log.WithComponent("dns").Debug().Err(err).Str("upstream", upstream).Msg("upstream forward failed")
			continue
		}
		if err := w.WriteMsg(resp); err != nil {
			log.WithComponent("dns").Error().Err(err).Msg("failed to write forwarded dns response")
		}
		return
	}

	msg := &dns.Msg{}
	msg.SetReply(r)
	msg.Rcode = dns.RcodeServerFailure
	if err := w.WriteMsg(msg); err != nil {
		log.WithComponent("dns").Error().Err(err).Msg("failed to write dns error response")
	}
}
