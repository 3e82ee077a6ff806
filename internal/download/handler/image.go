package handler

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"net/http"
	"os"
	"path/filepath"

	"github.com/chai2010/webp"
	"github.com/h2non/filetype"
	"github.com/vontrex/mediaingest/internal/cachefs"
	"github.com/vontrex/mediaingest/internal/models"
	"github.com/vontrex/mediaingest/internal/resource"
	"github.com/vontrex/mediaingest/internal/transcode"
	"github.com/vontrex/mediaingest/pkg/logger"
)

// Image downloads an image to cache, sniffing its true format by magic
// number the way video_service.go does for user uploads, and normalizing
// WebP into PNG (native decode via chai2010/webp, matching the teacher's
// dependency) so downstream consumers that don't understand WebP still get
// a usable file. If native decode fails and an ffmpeg runner is available,
// it falls back to that instead of giving up on the file entirely.
type Image struct {
	Client    *http.Client
	CacheDir  string
	TempDir   string
	Resource  *resource.Manager
	Transcode *transcode.Runner
	Normalize bool
}

// targetDir picks where a downloaded file lands: the durable cache dir when
// the item is meant to persist (§4.2 step 4/5), otherwise scratch temp
// storage cleaned up once delivered (§4.2 step 5/6, §4.6).
func (h *Image) targetDir(persist bool) string {
	if persist {
		return h.CacheDir
	}
	if h.TempDir != "" {
		return h.TempDir
	}
	return os.TempDir()
}

func (h *Image) register(path string, persist bool) {
	if persist {
		h.Resource.RegisterCache(path)
	} else {
		h.Resource.RegisterTemp(path)
	}
}

func (h *Image) Download(ctx context.Context, item models.MediaItem) models.DownloadResult {
	var lastErr error
	for idx, rawURL := range item.URLs {
		result, err := h.downloadOne(ctx, item, rawURL, idx)
		if err == nil {
			return result
		}
		lastErr = err
		logger.Warnf(component, "image url %d/%d failed for media %s: %v", idx+1, len(item.URLs), item.MediaID, err)
	}
	return models.DownloadResult{Success: false, Err: lastErr.Error()}
}

func (h *Image) downloadOne(ctx context.Context, item models.MediaItem, rawURL string, idx int) (models.DownloadResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return models.DownloadResult{}, fmt.Errorf("handler: image: building request: %w", err)
	}
	applyHeaders(req, item, rawURL)

	resp, err := h.Client.Do(req)
	if err != nil {
		return models.DownloadResult{}, fmt.Errorf("handler: image: fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		return models.DownloadResult{}, &AccessDeniedError{URL: rawURL, Status: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.DownloadResult{}, fmt.Errorf("handler: image: unexpected status %d for %s", resp.StatusCode, rawURL)
	}

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return models.DownloadResult{}, fmt.Errorf("handler: image: reading %s: %w", rawURL, err)
	}
	data := buf.Bytes()

	kind, _ := filetype.Match(data)
	ext := cachefs.ImageSuffix(resp.Header.Get("Content-Type"), rawURL)
	if kind != filetype.Unknown && kind.Extension != "" {
		ext = "." + kind.Extension
	}

	if h.Normalize && ext == ".webp" {
		if pngData, err := h.webpToPNG(data); err == nil {
			data = pngData
			ext = ".png"
		} else {
			logger.Warnf(component, "native webp decode failed for %s: %v", rawURL, err)
		}
	}

	dir := h.targetDir(item.Persist)
	path := filepath.Join(dir, cachefs.CacheFileName(item.MediaID, item.Index, ext))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return models.DownloadResult{}, fmt.Errorf("handler: image: writing %s: %w", path, err)
	}
	h.register(path, item.Persist)

	if h.Normalize && h.Transcode != nil && (ext == ".webp" || needsFfmpegNormalize(ext)) {
		pngPath := filepath.Join(dir, cachefs.CacheFileName(item.MediaID, item.Index, ".png"))
		if err := h.Transcode.NormalizeImage(ctx, path, pngPath); err == nil {
			h.register(pngPath, item.Persist)
			cachefs.CleanupFiles([]string{path})
			path = pngPath
		} else {
			logger.Warnf(component, "ffmpeg image normalize failed for %s, keeping original: %v", rawURL, err)
		}
	}

	info, err := os.Stat(path)
	sizeMB := 0.0
	hasSizeMB := false
	if err == nil {
		sizeMB = float64(info.Size()) / (1024 * 1024)
		hasSizeMB = true
	}

	return models.DownloadResult{
		Success:   true,
		FilePath:  path,
		SizeMB:    sizeMB,
		HasSizeMB: hasSizeMB,
		UsedURL:   rawURL,
		UsedIndex: idx,
	}, nil
}

func (h *Image) webpToPNG(data []byte) ([]byte, error) {
	img, err := webp.DecodeRGBA(data)
	if err != nil {
		return nil, fmt.Errorf("decoding webp: %w", err)
	}
	out := new(bytes.Buffer)
	if err := png.Encode(out, img); err != nil {
		return nil, fmt.Errorf("re-encoding png: %w", err)
	}
	return out.Bytes(), nil
}

// needsFfmpegNormalize reports whether ext is a format the native decoders
// here don't handle (e.g. heic), so the ffmpeg fallback should be tried.
func needsFfmpegNormalize(ext string) bool {
	switch ext {
	case ".heic", ".bmp":
		return true
	default:
		return false
	}
}
