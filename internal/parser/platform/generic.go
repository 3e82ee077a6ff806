// Package platform holds concrete Parser implementations. Site-specific
// scraping heuristics are explicitly out of spec scope (spec.md Non-goals),
// so these are intentionally minimal: a direct-link fallback that handles
// any URL pointing straight at a media file, and one illustrative
// short-video-platform parser showing how a richer scraper would plug into
// the same Parser contract. Both are grounded on parsers/base_parser.py's
// can_parse/extract_links/parse shape.
package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/vontrex/mediaingest/internal/models"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

var directMediaExt = map[string]models.MediaKind{
	".mp4": models.KindVideo, ".m4v": models.KindVideo, ".mov": models.KindVideo,
	".webm": models.KindVideo, ".mkv": models.KindVideo, ".ts": models.KindVideo,
	".m3u8": models.KindM3U8,
	".jpg": models.KindImage, ".jpeg": models.KindImage, ".png": models.KindImage,
	".gif": models.KindImage, ".webp": models.KindImage, ".bmp": models.KindImage,
}

// Generic is the fallback parser: any URL pointing at a recognized media
// extension is treated as a single-item post, with no page scraping at all.
// The parser manager consults parsers in the registry's name order, so
// "generic" is asked before "shortvideo": a shortvideo-host URL that ends in
// a media extension is claimed by Generic.
type Generic struct {
	client *http.Client
}

// NewGeneric builds the direct-link fallback parser.
func NewGeneric(proxyURL string) (*Generic, error) {
	return &Generic{client: http.DefaultClient}, nil
}

func (g *Generic) Name() string { return "generic" }

func (g *Generic) CanParse(rawURL string) bool {
	_, ok := kindForURL(rawURL)
	return ok
}

func kindForURL(rawURL string) (models.MediaKind, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, false
	}
	if strings.Contains(strings.ToLower(u.Path), ".m3u8") {
		return models.KindM3U8, true
	}
	ext := strings.ToLower(path.Ext(u.Path))
	kind, ok := directMediaExt[ext]
	return kind, ok
}

func (g *Generic) ExtractLinks(text string) []models.LinkCandidate {
	var out []models.LinkCandidate
	for _, u := range urlPattern.FindAllString(text, -1) {
		if g.CanParse(u) {
			out = append(out, models.LinkCandidate{RawText: text, URL: u, ParserName: g.Name()})
		}
	}
	return out
}

func (g *Generic) Parse(ctx context.Context, candidate models.LinkCandidate) (*models.PostRecord, error) {
	kind, ok := kindForURL(candidate.URL)
	if !ok {
		return nil, fmt.Errorf("platform: generic: %s is not a recognized direct media link", candidate.URL)
	}

	rec := &models.PostRecord{
		SourceURL:    candidate.URL,
		CanonicalURL: candidate.URL,
		Timestamp:    timestampNow(),
	}
	group := models.URLGroup{candidate.URL}
	switch kind {
	case models.KindImage:
		rec.ImageURLGroups = []models.URLGroup{group}
	default:
		// video and m3u8 both flow through the video slot; the download
		// router tells them apart by URL shape (§4.1).
		rec.VideoURLGroups = []models.URLGroup{group}
	}
	return rec, nil
}

// timestampNow exists so tests can stub it deterministically; production
// code uses the real clock.
var timestampNow = func() time.Time { return time.Now() }
