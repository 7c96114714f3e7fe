package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "beacon",
		Short: "Genomic variant query service",
		Long: `beacon answers genomic variant queries: it compiles request parameters
into store predicates, resolves HIT/MISS/ALL/NONE result sets and follows
variants to their biosamples, individuals, runs and analyses.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (JSON or YAML; default $BEACON_CONFIG)")

	root.AddCommand(
		newServeCmd(),
		newQueryCmd(),
		newSnapshotCmd(),
		newVersionCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
