// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bassosimone/pathspider/internal/metadata"
	"github.com/bassosimone/pathspider/internal/upload"
)

var uploadFlags struct {
	baseURL string
	apiKey  string
}

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload RESULT_FILE",
		Short: "Push a result file and its metadata sidecar to a remote archive",
		Long: `upload PUTs RESULT_FILE and its RESULT_FILE.meta.json sidecar to
BASE_URL/<basename>, authenticating with an "Authorization: APIKEY <key>"
header. The sidecar is derived first if it does not already exist.`,
		Args: cobra.ExactArgs(1),
		RunE: runUpload,
	}
	flags := cmd.Flags()
	flags.StringVar(&uploadFlags.baseURL, "base-url", "", "archive base URL (required)")
	flags.StringVar(&uploadFlags.apiKey, "api-key", "", "archive API key (required)")
	return cmd
}

func runUpload(cmd *cobra.Command, args []string) error {
	if uploadFlags.baseURL == "" || uploadFlags.apiKey == "" {
		return fmt.Errorf("upload: --base-url and --api-key are required")
	}
	resultPath := args[0]
	metaPath := metadata.SidecarPath(resultPath)

	if _, err := os.Stat(metaPath); os.IsNotExist(err) {
		if _, err := metadata.WriteSidecar(resultPath); err != nil {
			return fmt.Errorf("upload: deriving metadata: %w", err)
		}
	}

	u := upload.New(upload.Config{BaseURL: uploadFlags.baseURL, APIKey: uploadFlags.apiKey})
	if err := u.Result(cmd.Context(), resultPath, metaPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s and %s to %s\n", resultPath, metaPath, uploadFlags.baseURL)
	return nil
}
