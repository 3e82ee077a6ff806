package platform

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/vontrex/mediaingest/internal/models"
	"github.com/vontrex/mediaingest/pkg/httpclient"
)

// ogTagPattern matches a single Open Graph meta tag whose property attribute
// comes before its content attribute, e.g.
// <meta property="og:video" content="https://...">; tags with content first
// are not matched.
var ogTagPattern = regexp.MustCompile(`(?i)<meta[^>]+property=["']og:(video|image|title|description)["'][^>]+content=["']([^"']+)["'][^>]*>`)

// hostPattern recognizes the illustrative short-video host this parser
// owns. Real platform parsers would recognize several hostname variants and
// mobile/share-link redirectors; this one is deliberately minimal since
// site-specific scraping heuristics are out of scope (spec.md Non-goals).
var hostPattern = regexp.MustCompile(`(?i)(^|\.)shortclip\.example$`)

// ShortVideo illustrates a platform parser that resolves a share link by
// fetching the page and reading its Open Graph tags, the way a real
// platform scraper resolves a canonical media URL from an HTML response.
// Grounded on parsers/base_parser.py's parse() contract: fetch, extract,
// build a PostRecord, never raise for "no media found" (that's PostRecord.Error).
type ShortVideo struct {
	client   *http.Client
	proxyURL string
}

// NewShortVideo builds the parser, using proxyURL for all page fetches when
// the parser registry marked it RequiresProxy and the caller supplied one.
func NewShortVideo(proxyURL string) (*ShortVideo, error) {
	client, err := httpclient.New(httpclient.Options{ProxyURL: proxyURL})
	if err != nil {
		return nil, fmt.Errorf("platform: shortvideo: %w", err)
	}
	return &ShortVideo{client: client, proxyURL: proxyURL}, nil
}

func (s *ShortVideo) Name() string { return "shortvideo" }

func (s *ShortVideo) CanParse(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return hostPattern.MatchString(u.Hostname())
}

func (s *ShortVideo) ExtractLinks(text string) []models.LinkCandidate {
	var out []models.LinkCandidate
	for _, u := range urlPattern.FindAllString(text, -1) {
		if s.CanParse(u) {
			out = append(out, models.LinkCandidate{RawText: text, URL: u, ParserName: s.Name()})
		}
	}
	return out
}

func (s *ShortVideo) Parse(ctx context.Context, candidate models.LinkCandidate) (*models.PostRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("platform: shortvideo: building request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("platform: shortvideo: fetching %s: %w", candidate.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		return &models.PostRecord{SourceURL: candidate.URL, Error: "access denied"}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return &models.PostRecord{SourceURL: candidate.URL, Error: fmt.Sprintf("unexpected status %d", resp.StatusCode)}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("platform: shortvideo: reading body: %w", err)
	}

	tags := map[string]string{}
	for _, m := range ogTagPattern.FindAllStringSubmatch(string(body), -1) {
		tags[strings.ToLower(m[1])] = m[2]
	}

	rec := &models.PostRecord{
		SourceURL:    candidate.URL,
		CanonicalURL: candidate.URL,
		Title:        tags["title"],
		Desc:         tags["description"],
		PageURL:      candidate.URL,
	}

	if videoURL := tags["video"]; videoURL != "" {
		rec.VideoURLGroups = []models.URLGroup{{videoURL}}
	}
	if imageURL := tags["image"]; imageURL != "" && len(rec.VideoURLGroups) == 0 {
		rec.ImageURLGroups = []models.URLGroup{{imageURL}}
	}
	if !rec.HasMedia() {
		rec.Error = "no media found on page"
	}
	return rec, nil
}
