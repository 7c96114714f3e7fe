package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beaconsearch/beacon/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "beacon version %s\n", info.Version)
			fmt.Fprintf(out, "  commit:      %s\n", info.Commit)
			fmt.Fprintf(out, "  go:          %s\n", info.GoVersion)
			fmt.Fprintf(out, "  dump format: v%d\n", info.DumpFormatVersion)
		},
	}
}
