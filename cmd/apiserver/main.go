// Command apiserver runs Cove's reference all-in-one daemon: the API
// server, scheduler, and controller-manager sharing one embedded KV
// store and message bus in a single process. The bus and store package
// docs describe the narrow interfaces a split, networked deployment
// would swap in; this binary exercises the embedded reference
// implementations of both, the same "single binary, zero external
// dependencies" shape the teacher's own entrypoint favored.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nodeforge/cove/pkg/api"
	"github.com/nodeforge/cove/pkg/bus"
	"github.com/nodeforge/cove/pkg/client"
	"github.com/nodeforge/cove/pkg/controller"
	"github.com/nodeforge/cove/pkg/dns"
	"github.com/nodeforge/cove/pkg/log"
	"github.com/nodeforge/cove/pkg/metrics"
	"github.com/nodeforge/cove/pkg/scheduler"
	"github.com/nodeforge/cove/pkg/store"
	"github.com/nodeforge/cove/pkg/volume"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "apiserver",
	Short: "Cove API server, scheduler, and controller-manager in one process",
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.Flags().String("api-addr", "127.0.0.1:8080", "Address for the HTTP API")
	rootCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the Prometheus metrics endpoint")
	rootCmd.Flags().String("data-dir", "./cove-data", "Directory for the embedded bolt store")
	rootCmd.Flags().String("host-path-root", "./cove-data/volumes", "Root directory for hostPath volume provisioning")
	rootCmd.Flags().String("nfs-server", "", "NFS server address used for nfs-backed PersistentVolumes")
	rootCmd.Flags().String("nfs-export-root", "/exports", "NFS export root path")
	rootCmd.Flags().String("dns-listen-addr", dns.DefaultListenAddr, "Address the cluster DNS resolver listens on")
	rootCmd.Flags().String("dns-domain", dns.DefaultDomain, "Cluster-internal DNS search domain")
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

func run(cmd *cobra.Command, args []string) error {
	apiAddr, _ := cmd.Flags().GetString("api-addr")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	hostPathRoot, _ := cmd.Flags().GetString("host-path-root")
	nfsServer, _ := cmd.Flags().GetString("nfs-server")
	nfsExportRoot, _ := cmd.Flags().GetString("nfs-export-root")
	dnsListenAddr, _ := cmd.Flags().GetString("dns-listen-addr")
	dnsDomain, _ := cmd.Flags().GetString("dns-domain")

	logger := log.WithComponent("apiserver")

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	kv, err := store.NewBoltStore(dataDir + "/cove.db")
	if err != nil {
		return fmt.Errorf("open bolt store: %w", err)
	}
	defer kv.Close()

	collector := metrics.NewCollector(kv)
	collector.Start()
	defer collector.Stop()

	b := bus.NewMemBus()
	defer b.Close()

	srv := api.NewServer(kv, b, api.Config{})

	dnsServer := dns.NewServer(kv, &dns.Config{ListenAddr: dnsListenAddr, Domain: dnsDomain})
	dnsCtx, dnsCancel := context.WithCancel(context.Background())
	go func() {
		if err := dnsServer.Start(dnsCtx); err != nil {
			logger.Error().Err(err).Msg("dns server exited")
		}
	}()
	defer dnsCancel()
	logger.Info().Str("addr", dnsListenAddr).Msg("cluster dns resolver listening")

	go func() {
		http.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(metricsAddr, nil); err != nil {
			logger.Error().Err(err).Msg("metrics server exited")
		}
	}()
	logger.Info().Str("addr", metricsAddr).Msg("metrics endpoint listening")

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(context.Background(), apiAddr); err != nil {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()
	time.Sleep(200 * time.Millisecond)
	logger.Info().Str("addr", apiAddr).Msg("api server listening")

	c := client.New("http://" + apiAddr)
	sched := scheduler.NewScheduler(c, b)
	sched.Start()
	logger.Info().Msg("scheduler started")

	mgr := controller.NewManager(controller.Config{
		Client:         c,
		Bus:            b,
		HostPathDriver: volume.NewHostPathDriver(),
		NFSDriver:      volume.NewNFSDriver("", volume.SimulationMountBackend{}),
		HostPathRoot:   hostPathRoot,
		NFSServer:      nfsServer,
		NFSExportRoot:  nfsExportRoot,
	})
	ctx, cancel := context.WithCancel(context.Background())
	mgr.Start(ctx)
	logger.Info().Msg("controller-manager started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("component exited")
	}

	cancel()
	mgr.Stop()
	sched.Stop()
	dnsCancel()
	if err := dnsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("dns server stop")
	}
	srv.Stop()

	return nil
}
