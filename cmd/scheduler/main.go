// Command scheduler runs Cove's scheduler against a running apiserver,
// consuming pod-create events off the scheduler topic and binding each
// Pod to a candidate node picked uniformly at random (spec.md §4.2).
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nodeforge/cove/pkg/bus"
	"github.com/nodeforge/cove/pkg/client"
	"github.com/nodeforge/cove/pkg/log"
	"github.com/nodeforge/cove/pkg/metrics"
	"github.com/nodeforge/cove/pkg/scheduler"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run Cove's pod scheduler against a running apiserver",
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.Flags().String("api-addr", "http://127.0.0.1:8080", "Address of the apiserver")
	rootCmd.Flags().String("metrics-addr", "127.0.0.1:9092", "Address for the Prometheus metrics endpoint")
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

func run(cmd *cobra.Command, args []string) error {
	apiAddr, _ := cmd.Flags().GetString("api-addr")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	logger := log.WithComponent("scheduler")

	go func() {
		http.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(metricsAddr, nil); err != nil {
			logger.Error().Err(err).Msg("metrics server exited")
		}
	}()
	logger.Info().Str("addr", metricsAddr).Msg("metrics endpoint listening")

	c := client.New(apiAddr)
	b := bus.NewMemBus()

	sched := scheduler.NewScheduler(c, b)
	sched.Start()
	logger.Info().Msg("scheduler started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("shutting down")

	sched.Stop()
	return nil
}
