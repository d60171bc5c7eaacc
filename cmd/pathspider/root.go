// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Exit codes.
const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

// rootCmd is the base command for the pathspider binary.
var rootCmd = &cobra.Command{
	Use:   "pathspider",
	Short: "Active network path measurement",
	Long: `pathspider drives paired connection attempts against a target list,
observes the resulting packets on the wire, and emits one verdict per
target describing how a network feature behaved along the path.`,
	SilenceUsage: true,
}

// SetVersion sets the version injected at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the root command, exiting with a non-zero status on
// failure. Called from main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "pathspider version %s\n" .Version}}`)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCodeError)
	}
}

func init() {
	rootCmd.AddCommand(newMeasureCmd())
	rootCmd.AddCommand(newMetadataCmd())
	rootCmd.AddCommand(newUploadCmd())
}
