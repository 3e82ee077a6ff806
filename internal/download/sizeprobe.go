package download

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ProbeSizeMB reports a URL's size in megabytes using a HEAD request first,
// falling back to a single-byte Range GET when the server doesn't expose
// Content-Length on HEAD (common for CDN edges fronting video). Grounded on
// range_video.py's _get_file_size. ok is false when neither approach yields
// a usable size — callers must treat that as "unknown", not zero.
func ProbeSizeMB(ctx context.Context, client *http.Client, rawURL string, headers map[string]string, timeout time.Duration) (sizeMB float64, ok bool) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if sizeMB, ok = probeHead(ctx, client, rawURL, headers); ok {
		return sizeMB, true
	}
	return probeRangeGet(ctx, client, rawURL, headers)
}

func probeHead(ctx context.Context, client *http.Client, rawURL string, headers map[string]string) (float64, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return 0, false
	}
	applyHeaders(req, headers)

	resp, err := client.Do(req)
	if err != nil {
		return 0, false
	}
	defer resp.Body.Close()

	if resp.ContentLength <= 0 {
		return 0, false
	}
	return float64(resp.ContentLength) / (1024 * 1024), true
}

func probeRangeGet(ctx context.Context, client *http.Client, rawURL string, headers map[string]string) (float64, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, false
	}
	applyHeaders(req, headers)
	req.Header.Set("Range", "bytes=0-0")

	resp, err := client.Do(req)
	if err != nil {
		return 0, false
	}
	defer resp.Body.Close()

	cr := resp.Header.Get("Content-Range")
	if cr == "" {
		return 0, false
	}
	parts := strings.Split(cr, "/")
	if len(parts) != 2 {
		return 0, false
	}
	total, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil || total <= 0 {
		return 0, false
	}
	return float64(total) / (1024 * 1024), true
}

func applyHeaders(req *http.Request, headers map[string]string) {
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}
