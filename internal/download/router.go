// Package download implements the Download Manager, the Media Router and
// the size-gating policy described in spec.md §4, grounded primarily on
// original_source/core/download_manager.py and
// original_source/core/downloader/router.py.
package download

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/vontrex/mediaingest/internal/models"
)

var videoExtPattern = regexp.MustCompile(`(?i)\.(mp4|m4v|mov|webm|mkv|avi|flv|ts)(\?|$)`)
var imageExtPattern = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp|bmp|heic)(\?|$)`)
var videoWordPattern = regexp.MustCompile(`(?i)(^|[^a-z0-9])video([^a-z0-9]|$)`)
var imageWordPattern = regexp.MustCompile(`(?i)(^|[^a-z0-9])(image|photo|picture)([^a-z0-9]|$)`)

// DetectMediaType classifies rawURL using the same rule order as
// router.py's detect_media_type: an .m3u8 anywhere in the URL always wins,
// then extension match, then a keyword match on tokens flanked by
// non-alphanumeric separators (so "get_image" counts), defaulting to
// video when nothing else matches (most shared links without an extension
// are video CDNs in the source corpus).
func DetectMediaType(rawURL string) models.MediaKind {
	lower := strings.ToLower(rawURL)
	if strings.Contains(lower, ".m3u8") {
		return models.KindM3U8
	}

	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}

	if imageExtPattern.MatchString(path) {
		return models.KindImage
	}
	if videoExtPattern.MatchString(path) {
		return models.KindVideo
	}

	if imageWordPattern.MatchString(lower) {
		return models.KindImage
	}
	if videoWordPattern.MatchString(lower) {
		return models.KindVideo
	}

	return models.KindVideo
}
