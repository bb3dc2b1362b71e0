// Command serviceproxy runs Cove's per-node Service proxy: it installs
// the base NAT chains on this node and drives them from the node's
// service-proxy bus topic, the messages the controller-manager's
// ServiceController fans out on every Service reconcile pass
// (spec.md §4.4).
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nodeforge/cove/pkg/bus"
	"github.com/nodeforge/cove/pkg/log"
	"github.com/nodeforge/cove/pkg/network/proxy"
	"github.com/nodeforge/cove/pkg/serviceproxy"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "serviceproxy",
	Short: "Run Cove's per-node Service NAT proxy",
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.Flags().String("node-name", "", "Unique node name (required, must match the nodeagent on this host)")
	rootCmd.Flags().Bool("real-iptables", false, "Shell out to the real iptables binary instead of simulating")
	rootCmd.MarkFlagRequired("node-name")
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

func run(cmd *cobra.Command, args []string) error {
	nodeName, _ := cmd.Flags().GetString("node-name")
	realIPTables, _ := cmd.Flags().GetBool("real-iptables")

	logger := log.WithComponent("serviceproxy-main")

	var backend proxy.NATBackend = proxy.SimulationBackend{}
	if realIPTables {
		backend = proxy.IPTablesBackend{}
	}

	p, err := proxy.New(nodeName, backend)
	if err != nil {
		return fmt.Errorf("install base nat chains: %w", err)
	}

	b := bus.NewMemBus()
	consumer := serviceproxy.New(nodeName, b, p)
	consumer.Start()
	logger.Info().Str("node", nodeName).Bool("realIPTables", realIPTables).Msg("service proxy started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("shutting down")

	consumer.Stop()
	return nil
}
