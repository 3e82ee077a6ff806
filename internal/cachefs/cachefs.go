// Package cachefs probes the cache directory and derives filenames/suffixes
// for downloaded media, grounded on the original's file_manager.py.
package cachefs

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var numericSegment = regexp.MustCompile(`^\d+$`)

// CheckDirAvailable verifies dir exists (creating it if necessary) and is
// writable, by round-tripping a probe file — the same check the original
// performs before trusting a configured cache_dir.
func CheckDirAvailable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cachefs: creating cache dir %s: %w", dir, err)
	}
	probe := filepath.Join(dir, ".test_write")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("cachefs: cache dir %s is not writable: %w", dir, err)
	}
	_ = os.Remove(probe)
	return nil
}

// DeriveMediaID extracts a stable id for a URL: the last numeric path
// segment if one exists, otherwise a short hex prefix of its SHA-1 hash.
// This keeps repeated requests for the same URL mapping to the same cache
// filename.
func DeriveMediaID(rawURL string) string {
	segments := strings.Split(stripQuery(rawURL), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if numericSegment.MatchString(segments[i]) {
			return segments[i]
		}
	}
	sum := sha1.Sum([]byte(rawURL))
	return hex.EncodeToString(sum[:])[:12]
}

func stripQuery(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}

// CacheFileName builds the on-disk filename for one media slot:
// "<mediaID>_<index><ext>".
func CacheFileName(mediaID string, index int, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%s_%d%s", mediaID, index, ext)
}

var videoExts = map[string]bool{
	".mp4": true, ".m4v": true, ".mov": true, ".webm": true,
	".mkv": true, ".avi": true, ".ts": true, ".flv": true,
}

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".bmp": true, ".heic": true,
}

// VideoSuffix picks a file extension for a video download, preferring the
// Content-Type header and falling back to the URL's own extension, then a
// generic ".mp4" default — mirrors get_video_suffix.
func VideoSuffix(contentType, rawURL string) string {
	if ext := extFromContentType(contentType); ext != "" && videoExts[ext] {
		return ext
	}
	if ext := extFromURL(rawURL); ext != "" && videoExts[ext] {
		return ext
	}
	return ".mp4"
}

// ImageSuffix mirrors get_image_suffix for images, defaulting to ".jpg".
func ImageSuffix(contentType, rawURL string) string {
	if ext := extFromContentType(contentType); ext != "" && imageExts[ext] {
		return ext
	}
	if ext := extFromURL(rawURL); ext != "" && imageExts[ext] {
		return ext
	}
	return ".jpg"
}

func extFromContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}
	exts, err := mime.ExtensionsByType(mediaType)
	if err != nil || len(exts) == 0 {
		switch mediaType {
		case "image/webp":
			return ".webp"
		case "video/mp2t":
			return ".ts"
		default:
			return ""
		}
	}
	return exts[0]
}

func extFromURL(rawURL string) string {
	clean := stripQuery(rawURL)
	ext := filepath.Ext(clean)
	return strings.ToLower(ext)
}

// CleanupFiles removes every path in paths, ignoring already-missing files.
func CleanupFiles(paths []string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		_ = os.Remove(p)
	}
}
