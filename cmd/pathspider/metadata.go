// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bassosimone/pathspider/internal/metadata"
)

func newMetadataCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metadata RESULT_FILE",
		Short: "Derive a time range from a result file and write a sidecar",
		Long: `metadata scans a newline-delimited result file, finds the earliest
start and latest finish timestamp across every record, and writes them
alongside the record count to RESULT_FILE.meta.json.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := metadata.WriteSidecar(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d records, %s to %s\n",
				metadata.SidecarPath(args[0]), m.Count, m.Start, m.End)
			return nil
		},
	}
}
