// Package handler implements the concrete per-media-kind downloaders:
// plain streamed video, byte-range parallel video, HLS segment assembly and
// image download+normalize. Each type satisfies download.Handler by
// structural typing (Download(ctx, models.MediaItem) models.DownloadResult)
// without importing package download, keeping the dependency one-directional.
package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/vontrex/mediaingest/internal/cachefs"
	"github.com/vontrex/mediaingest/internal/models"
	"github.com/vontrex/mediaingest/internal/resource"
	"github.com/vontrex/mediaingest/pkg/logger"
)

const component = "download.handler"

// PlainVideo streams a video URL straight to disk with no range
// parallelism, used as the range handler's fallback on any chunk failure
// and for servers that don't support byte ranges at all. Grounded on
// normal_video.py's batch_download_videos/download path.
type PlainVideo struct {
	Client   *http.Client
	CacheDir string
	Resource *resource.Manager
}

// Download implements the Handler contract for a single MediaItem, trying
// each URL in the group in order until one succeeds (fallback mirrors).
func (h *PlainVideo) Download(ctx context.Context, item models.MediaItem) models.DownloadResult {
	var lastErr error
	for idx, rawURL := range item.URLs {
		result, err := h.downloadOne(ctx, item, rawURL, idx)
		if err == nil {
			return result
		}
		lastErr = err
		logger.Warnf(component, "plain video url %d/%d failed for media %s: %v", idx+1, len(item.URLs), item.MediaID, err)
	}
	return models.DownloadResult{Success: false, Err: lastErr.Error()}
}

func (h *PlainVideo) downloadOne(ctx context.Context, item models.MediaItem, rawURL string, idx int) (models.DownloadResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return models.DownloadResult{}, fmt.Errorf("handler: plain video: building request: %w", err)
	}
	applyHeaders(req, item, rawURL)

	resp, err := h.Client.Do(req)
	if err != nil {
		return models.DownloadResult{}, fmt.Errorf("handler: plain video: fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		return models.DownloadResult{}, &AccessDeniedError{URL: rawURL, Status: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.DownloadResult{}, fmt.Errorf("handler: plain video: unexpected status %d for %s", resp.StatusCode, rawURL)
	}

	ext := cachefs.VideoSuffix(resp.Header.Get("Content-Type"), rawURL)
	path := filepath.Join(h.CacheDir, cachefs.CacheFileName(item.MediaID, item.Index, ext))

	f, err := os.Create(path)
	if err != nil {
		return models.DownloadResult{}, fmt.Errorf("handler: plain video: creating %s: %w", path, err)
	}
	h.Resource.RegisterCache(path)

	written, err := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if err != nil {
		cachefs.CleanupFiles([]string{path})
		return models.DownloadResult{}, fmt.Errorf("handler: plain video: writing %s: %w", path, err)
	}
	if closeErr != nil {
		cachefs.CleanupFiles([]string{path})
		return models.DownloadResult{}, fmt.Errorf("handler: plain video: closing %s: %w", path, closeErr)
	}

	return models.DownloadResult{
		Success:   true,
		FilePath:  path,
		SizeMB:    float64(written) / (1024 * 1024),
		HasSizeMB: true,
		UsedURL:   rawURL,
		UsedIndex: idx,
	}, nil
}

// AccessDeniedError flags a 401/403 response so the download manager can
// distinguish it from a generic failure (§6 HasAccessDenied accounting).
type AccessDeniedError struct {
	URL    string
	Status int
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied (%d) for %s", e.Status, e.URL)
}

func applyHeaders(req *http.Request, item models.MediaItem, rawURL string) {
	for k, v := range item.Headers {
		req.Header.Set(k, v)
	}
	if item.Referer != "" {
		req.Header.Set("Referer", item.Referer)
	}
}
