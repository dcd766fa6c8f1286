// Copyright (c) 2025 Neomantra Corp

package providers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
)

// FetchArchive retrieves a remote NDJSON tick archive with retry/backoff,
// grounded on internal/tui/downloads.go's retryablehttp.Client usage
// (bounded RetryMax, a discard-by-default logger so library code never
// writes to stdout on its own). Returns the response body for the caller to
// wrap in NewJsonFileReader; the caller is responsible for closing it.
func FetchArchive(ctx context.Context, url string, logger *slog.Logger) (io.ReadCloser, error) {
	if logger == nil {
		logger = slog.Default()
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("providers: build request: %w", err)
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 5
	client.Logger = nil // retryablehttp accepts a nil Logger to suppress its own logging

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("providers: fetch %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("providers: fetch %s: unexpected status %s", url, resp.Status)
	}
	logger.Info("fetched archive", "url", url, "content_length", resp.ContentLength)
	return resp.Body, nil
}
