// Package httpclient builds *http.Client values for the download handlers,
// with optional proxy support and per-call timeouts, the way the original's
// aiohttp sessions were constructed per request.
package httpclient

import (
	"net/http"
	"net/url"
	"time"
)

// Options configures one client.
type Options struct {
	// ProxyURL, when non-empty, routes all requests through it. Accepts
	// http://, https:// and socks5:// schemes (validated upstream by
	// config.Validate).
	ProxyURL string
	Timeout  time.Duration
}

// New builds an *http.Client for the given options. A zero Timeout means no
// client-level timeout (callers are expected to pass a context deadline
// instead for long-running range downloads).
func New(opts Options) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if opts.ProxyURL != "" {
		proxyURL, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, err
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
	}, nil
}
