// Command controller-manager runs the ReplicaSet, HPA, Service,
// NodePort, PersistentVolume and DNS reconcile loops against a running
// apiserver. It talks to the cluster only through pkg/client and
// pkg/bus; as a standalone binary it requires both to be backed by a
// networked implementation (the embedded MemBus apiserver wires in is
// process-local, so this binary cannot share it across a process
// boundary) — see DESIGN.md for the deployment note.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nodeforge/cove/pkg/bus"
	"github.com/nodeforge/cove/pkg/client"
	"github.com/nodeforge/cove/pkg/controller"
	"github.com/nodeforge/cove/pkg/log"
	"github.com/nodeforge/cove/pkg/metrics"
	"github.com/nodeforge/cove/pkg/volume"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "controller-manager",
	Short: "Run Cove's reconcile loops against a running apiserver",
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.Flags().String("api-addr", "http://127.0.0.1:8080", "Address of the apiserver")
	rootCmd.Flags().String("metrics-addr", "127.0.0.1:9091", "Address for the Prometheus metrics endpoint")
	rootCmd.Flags().String("host-path-root", "./cove-data/volumes", "Root directory for hostPath volume provisioning")
	rootCmd.Flags().String("nfs-server", "", "NFS server address used for nfs-backed PersistentVolumes")
	rootCmd.Flags().String("nfs-export-root", "/exports", "NFS export root path")
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

func run(cmd *cobra.Command, args []string) error {
	apiAddr, _ := cmd.Flags().GetString("api-addr")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	hostPathRoot, _ := cmd.Flags().GetString("host-path-root")
	nfsServer, _ := cmd.Flags().GetString("nfs-server")
	nfsExportRoot, _ := cmd.Flags().GetString("nfs-export-root")

	logger := log.WithComponent("controller-manager")

	go func() {
		http.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(metricsAddr, nil); err != nil {
			logger.Error().Err(err).Msg("metrics server exited")
		}
	}()
	logger.Info().Str("addr", metricsAddr).Msg("metrics endpoint listening")

	c := client.New(apiAddr)
	b := bus.NewMemBus()

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
	<-sigCh
	logger.Info().Msg("shutting down")

	cancel()
	mgr.Stop()
	return nil
}
