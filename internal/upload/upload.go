// SPDX-License-Identifier: GPL-3.0-or-later

// Package upload implements the "upload" CLI subcommand: PUT a result
// file and its metadata sidecar to a remote archive with an
// "Authorization: APIKEY <key>" header.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"
)

// DefaultTimeout bounds a single PUT request.
const DefaultTimeout = 30 * time.Second

// Config configures an [Uploader].
type Config struct {
	// BaseURL is the archive's base URL; files are PUT to
	// BaseURL/<basename>.
	BaseURL string

	// APIKey is sent as "Authorization: APIKEY <key>".
	APIKey string

	// Client performs the HTTP requests. Defaults to a client with
	// [DefaultTimeout].
	Client *http.Client
}

// Uploader PUTs files to a configured archive.
type Uploader struct {
	cfg Config
}

// New returns an [*Uploader] for cfg, applying defaults for zero fields.
func New(cfg Config) *Uploader {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Uploader{cfg: cfg}
}

// PutFile uploads the file at localPath to BaseURL/<basename(localPath)>.
func (u *Uploader) PutFile(ctx context.Context, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	defer f.Close()
	return u.put(ctx, path.Base(localPath), f)
}

// Result uploads both the result file and its metadata sidecar.
func (u *Uploader) Result(ctx context.Context, resultPath, metaPath string) error {
	if err := u.PutFile(ctx, resultPath); err != nil {
		return err
	}
	return u.PutFile(ctx, metaPath)
}

func (u *Uploader) put(ctx context.Context, name string, body io.Reader) error {
	target, err := url.JoinPath(u.cfg.BaseURL, name)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	buf, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("upload: reading %s: %w", name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	req.Header.Set("Authorization", "APIKEY "+u.cfg.APIKey)
	req.Header.Set("Content-Type", "application/x-ndjson")

	resp, err := u.cfg.Client.Do(req)
	if err != nil {
		return fmt.Errorf("upload: %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("upload: %s: server returned %s", name, resp.Status)
	}
	return nil
}
