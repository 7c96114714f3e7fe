package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beaconsearch/beacon/internal/snapshot"
	"github.com/beaconsearch/beacon/internal/storage"
)

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export and inspect collection dumps in the object store",
	}
	cmd.AddCommand(newSnapshotExportCmd(), newSnapshotInspectCmd())
	return cmd
}

func newSnapshotExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [collection...]",
		Short: "Dump collections of the configured store to the snapshot prefix",
		Long: `Dump collections of the configured store to the snapshot prefix as
zstd-compressed JSON lines, followed by a manifest. With no arguments every
served collection is exported.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			collections := args
			if len(collections) == 0 {
				collections = storage.Collections
			}
			for _, c := range collections {
				if !storage.IsKnownCollection(c) {
					return fmt.Errorf("%w: %s", storage.ErrUnknownCollection, c)
				}
			}

			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			objects, err := openObjectStore(a.cfg)
			if err != nil {
				return err
			}
			reports, err := snapshot.NewExporter(objects, a.cfg.Snapshot.Prefix, a.logger).Export(cmd.Context(), a.store, collections)
			if err != nil {
				return err
			}
			for _, r := range reports {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %8d documents  %016x  %s\n", r.Collection, r.Documents, r.Checksum, r.Key)
			}
			return nil
		},
	}
}

func newSnapshotInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Print the manifest under the snapshot prefix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			objects, err := openObjectStore(a.cfg)
			if err != nil {
				return err
			}
			m, err := snapshot.ReadManifest(cmd.Context(), objects, a.cfg.Snapshot.Prefix)
			if err != nil {
				return err
			}
			if m == nil {
				return fmt.Errorf("no manifest under %q", a.cfg.Snapshot.Prefix)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(m)
		},
	}
}
