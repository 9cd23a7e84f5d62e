// Package fetch implements the asset fetcher (component C2): downloading a remote
// URL to a local file with content-type-aware timeouts, a retry ladder, and
// provider-specific auth headers (Pexels referer/API key).
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/bobarin/reelforge/internal/models"
)

const maxAttempts = 3

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".webm": true, ".mkv": true, ".m4v": true,
}

// Fetcher downloads remote assets to local files.
type Fetcher struct {
	PexelsAPIKey string
	tempDir      string
}

func New(tempDir, pexelsAPIKey string) *Fetcher {
	return &Fetcher{PexelsAPIKey: pexelsAPIKey, tempDir: tempDir}
}

// Fetch downloads url into a file under the fetcher's temp directory, named filenameHint
// (a uuid-suffixed name supplied by the caller), and returns the local path.
func (f *Fetcher) Fetch(ctx context.Context, url, filenameHint string) (string, error) {
	isVideo := looksLikeVideo(url)

	client := &http.Client{Timeout: selectReadTimeout(isVideo)}

	outPath := filepath.Join(f.tempDir, filenameHint)

	var lastErr error
	attempt := 0
	boff := backoff.NewExponentialBackOff()
	boff.InitialInterval = 2 * time.Second
	boff.Multiplier = 2
	boff.MaxElapsedTime = 0 // bounded by maxAttempts instead of wall clock

	op := func() error {
		attempt++
		connectCtx, cancel := context.WithTimeout(ctx, selectConnectTimeout(isVideo))
		defer cancel()

		req, err := http.NewRequestWithContext(connectCtx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("fetch: bad request: %w", err))
		}
		applyProviderHeaders(req, url, f.PexelsAPIKey)

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			return err // retryable: network/timeout error
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusNotFound {
			// Non-retryable per spec §4.2.
			return backoff.Permanent(&models.AssetUnavailableError{Status: resp.StatusCode, URL: url})
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("fetch: unexpected status %d for %s", resp.StatusCode, url)
			return lastErr
		}

		out, err := os.Create(outPath)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("fetch: failed to create output file: %w", err))
		}
		defer out.Close()

		buf := make([]byte, selectChunkSize(isVideo))
		n, err := io.CopyBuffer(out, resp.Body, buf)
		if err != nil {
			lastErr = fmt.Errorf("fetch: failed reading body: %w", err)
			return lastErr
		}
		if n == 0 {
			lastErr = fmt.Errorf("fetch: downloaded empty file from %s", url)
			return lastErr
		}

		return nil
	}

	retryPolicy := backoff.WithMaxRetries(boff, maxAttempts-1)
	if err := backoff.Retry(op, backoff.WithContext(retryPolicy, ctx)); err != nil {
		if lastErr != nil {
			return "", lastErr
		}
		return "", err
	}

	return outPath, nil
}

func looksLikeVideo(url string) bool {
	lower := strings.ToLower(url)
	ext := filepath.Ext(strings.SplitN(lower, "?", 2)[0])
	if videoExtensions[ext] {
		return true
	}
	for _, host := range []string{"pexels", "vimeo", "youtube", "video"} {
		if strings.Contains(lower, host) {
			return true
		}
	}
	return false
}

func selectConnectTimeout(isVideo bool) time.Duration {
	if isVideo {
		return 300 * time.Second
	}
	return 60 * time.Second
}

func selectReadTimeout(isVideo bool) time.Duration {
	if isVideo {
		return 600 * time.Second
	}
	return 120 * time.Second
}

func selectChunkSize(isVideo bool) int {
	if isVideo {
		return 64 * 1024
	}
	return 8 * 1024
}

func applyProviderHeaders(req *http.Request, url, pexelsAPIKey string) {
	if strings.Contains(strings.ToLower(url), "pexels.com") {
		req.Header.Set("Referer", "https://www.pexels.com/")
		if pexelsAPIKey != "" {
			req.Header.Set("Authorization", pexelsAPIKey)
		}
	}
}

// FileSize is a small helper used by round-trip tests (R1) to compare download/upload sizes.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
