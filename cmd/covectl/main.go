// Command covectl is Cove's thin operator CLI: apply manifests, list
// nodes, and get pods. It is deliberately minimal — a real CLI front-end
// is out of scope, this exists only so the rest of the system has a way
// to exercise pkg/apply and the read endpoints from a terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nodeforge/cove/pkg/apply"
	"github.com/nodeforge/cove/pkg/client"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "covectl",
	Short: "Operator CLI for a Cove cluster",
}

func init() {
	rootCmd.PersistentFlags().String("server", "http://127.0.0.1:8080", "Address of the apiserver")
	rootCmd.AddCommand(applyCmd, getNodesCmd, getPodsCmd)
}

func clientFromFlags(cmd *cobra.Command) *client.Client {
	addr, _ := cmd.Flags().GetString("server")
	return client.New(addr)
}

var applyCmd = &cobra.Command{
	Use:   "apply -f FILE",
	Short: "Create every object described in a YAML manifest stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("filename")
		if path == "" {
			return fmt.Errorf("-f/--filename is required")
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()

		c := clientFromFlags(cmd)
		results, err := apply.Stream(context.Background(), c, f)
		for _, r := range results {
			fmt.Printf("%s/%s created\n", r.Kind, r.Name)
		}
		if err != nil {
			return err
		}
		return nil
	},
}

func init() {
	applyCmd.Flags().StringP("filename", "f", "", "Path to a YAML manifest file (required)")
}

var getNodesCmd = &cobra.Command{
	Use:   "get-nodes",
	Short: "List registered nodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := clientFromFlags(cmd)
		nodes, err := c.ListNodes(context.Background())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tADDRESS\tPHASE")
		for _, n := range nodes {
			fmt.Fprintf(w, "%s\t%s\t%s\n", n.Name, n.Address, n.Status.Phase)
		}
		return w.Flush()
	},
}

var getPodsCmd = &cobra.Command{
	Use:   "get-pods",
	Short: "List Pods in a namespace",
	RunE: func(cmd *cobra.Command, args []string) error {
		ns, _ := cmd.Flags().GetString("namespace")
		c := clientFromFlags(cmd)

		var pods, err = c.ListAllPods(context.Background())
		if ns != "" {
			pods, err = c.ListPods(context.Background(), ns)
		}
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAMESPACE\tNAME\tPHASE\tNODE")
		for _, p := range pods {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Namespace, p.Name, p.Status.Phase, p.Status.NodeName)
		}
		return w.Flush()
	},
}

func init() {
	getPodsCmd.Flags().StringP("namespace", "n", "", "Namespace to list (default: all namespaces)")
}
