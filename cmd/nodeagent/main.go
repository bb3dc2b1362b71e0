// Command nodeagent runs Cove's per-node daemon: it registers the node,
// heartbeats, consumes its Pod topic, runs the reconcile loop that
// starts/stops containers to match desired state, and resolves Pod
// volumes against the node's local hostPath/NFS drivers (spec.md §4.3,
// §4.6).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nodeforge/cove/pkg/bus"
	"github.com/nodeforge/cove/pkg/client"
	"github.com/nodeforge/cove/pkg/containerengine"
	"github.com/nodeforge/cove/pkg/log"
	"github.com/nodeforge/cove/pkg/network"
	"github.com/nodeforge/cove/pkg/nodeagent"
	"github.com/nodeforge/cove/pkg/volume"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "nodeagent",
	Short: "Run Cove's per-node agent",
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.Flags().String("node-name", "", "Unique node name (required)")
	rootCmd.Flags().String("address", "", "Address other nodes/clients use to reach this node (required)")
	rootCmd.Flags().String("api-addr", "http://127.0.0.1:8080", "Address of the apiserver")
	rootCmd.Flags().StringToString("label", map[string]string{}, "Node labels, key=value (repeatable)")
	rootCmd.Flags().String("overlay-cidr", "10.244.0.0/16", "CIDR this node allocates overlay Pod IPs from")
	rootCmd.Flags().String("volume-mounts-root", "./cove-data/mounts", "Root directory for NFS mount points")
	rootCmd.MarkFlagRequired("node-name")
	rootCmd.MarkFlagRequired("address")
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

func run(cmd *cobra.Command, args []string) error {
	nodeName, _ := cmd.Flags().GetString("node-name")
	address, _ := cmd.Flags().GetString("address")
	apiAddr, _ := cmd.Flags().GetString("api-addr")
	labels, _ := cmd.Flags().GetStringToString("label")
	overlayCIDR, _ := cmd.Flags().GetString("overlay-cidr")
	mountsRoot, _ := cmd.Flags().GetString("volume-mounts-root")

	logger := log.WithComponent("nodeagent-main")

	c := client.New(apiAddr)
	b := bus.NewMemBus()

	ipam, err := network.NewIPAM(overlayCIDR)
	if err != nil {
		return fmt.Errorf("create overlay ipam: %w", err)
	}

	resolver := volume.NewResolver(c, mountsRoot, volume.SimulationMountBackend{})

	agent := nodeagent.New(nodeagent.Config{
		NodeName:    nodeName,
		Address:     address,
		Labels:      labels,
		Client:      c,
		Bus:         b,
		Engine:      containerengine.NewSimulation(),
		OverlayIPAM: ipam,
		Volumes:     resolver,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := agent.Start(ctx); err != nil {
		return fmt.Errorf("start node agent: %w", err)
	}
	logger.Info().Str("node", nodeName).Str("labels", formatLabels(labels)).Msg("node agent started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("shutting down")

	agent.Stop()
	return nil
}

func formatLabels(labels map[string]string) string {
	parts := make([]string, 0, len(labels))
	for k, v := range labels {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}
