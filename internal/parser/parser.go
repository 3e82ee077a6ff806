package parser

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/vontrex/mediaingest/internal/models"
	"golang.org/x/sync/semaphore"
)

// Parser is the contract every platform parser implements, grounded on
// parsers/base_parser.py's abstract BaseVideoParser: a parser first decides
// whether it owns a URL, then extracts candidate links from free text, then
// resolves one link into a PostRecord.
type Parser interface {
	// Name identifies the parser for logging, registry lookup and
	// enable_<name> config keys.
	Name() string

	// CanParse reports whether this parser recognizes rawURL as belonging
	// to its platform.
	CanParse(rawURL string) bool

	// ExtractLinks scans free text for URLs this parser owns.
	ExtractLinks(text string) []models.LinkCandidate

	// Parse resolves one link into a PostRecord. A non-nil error means the
	// post could not be resolved at all (network failure); a populated
	// PostRecord.Error means the parser got a response but found no usable
	// media.
	Parse(ctx context.Context, candidate models.LinkCandidate) (*models.PostRecord, error)
}

// GetSize probes a URL's content length with a HEAD request, falling back
// to a single-byte Range GET when the server doesn't answer HEAD requests
// properly — mirrors base_parser.py's get_video_size helper used by parsers
// that need to pre-filter oversized media before even returning it.
func GetSize(ctx context.Context, client *http.Client, rawURL string) (sizeMB float64, ok bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err == nil {
		if resp, err := client.Do(req); err == nil {
			defer resp.Body.Close()
			if resp.ContentLength > 0 {
				return float64(resp.ContentLength) / (1024 * 1024), true
			}
		}
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, false
	}
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

// EnabledChecker reports whether a named parser is enabled, matching
// config.Config.ParserEnabled without parser importing config directly.
type EnabledChecker func(name string) bool

// Manager owns the enabled subset of parsers and dispatches text to
// whichever one matches, bounding total concurrent in-flight Parse calls
// across all parsers with one shared semaphore (default 10); parsers do not
// each hold a separate limit. Grounded on
// core/parser_factory.py's create_parsers plus the trailing dispatch loop
// implied by the bot's message handler.
type Manager struct {
	registry *Registry
	parsers  []Parser
	sem      *semaphore.Weighted
}

// NewManager builds the enabled parser set from registry, instantiating one
// Parser per registered name for which enabled(name) is true. proxyURL is
// passed only to parsers that declared RequiresProxy at registration —
// generalizing the original's twitter-only special case to any parser.
func NewManager(registry *Registry, enabled EnabledChecker, proxyURL string, maxConcurrent int64) (*Manager, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	var built []Parser
	for _, info := range registry.GetAll() {
		if enabled != nil && !enabled(info.Name) {
			continue
		}
		p, err := registry.CreateParser(info.Name, proxyURL)
		if err != nil {
			return nil, fmt.Errorf("parser: manager: %w", err)
		}
		built = append(built, p)
	}
	if len(built) == 0 {
		return nil, fmt.Errorf("parser: manager: no parsers enabled")
	}
	return &Manager{registry: registry, parsers: built, sem: semaphore.NewWeighted(maxConcurrent)}, nil
}

// FindParser returns the first enabled parser that claims rawURL, or nil.
func (m *Manager) FindParser(rawURL string) Parser {
	for _, p := range m.parsers {
		if p.CanParse(rawURL) {
			return p
		}
	}
	return nil
}

// ExtractAll runs every enabled parser's extractor over text and
// concatenates the results in the registry's name order (the order
// Registry.GetAll returns), not the order parsers were registered in.
func (m *Manager) ExtractAll(text string) []models.LinkCandidate {
	var out []models.LinkCandidate
	for _, p := range m.parsers {
		out = append(out, p.ExtractLinks(text)...)
	}
	return out
}

// ParseOne resolves a single candidate through its owning parser, bounded
// by the manager's concurrency ceiling.
func (m *Manager) ParseOne(ctx context.Context, candidate models.LinkCandidate) (*models.PostRecord, error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("parser: manager: acquiring slot: %w", err)
	}
	defer m.sem.Release(1)

	p := m.FindParser(candidate.URL)
	if p == nil {
		return nil, fmt.Errorf("parser: manager: no parser claims %s", candidate.URL)
	}
	rec, err := p.Parse(ctx, candidate)
	if err != nil {
		return nil, err
	}
	if rec != nil && rec.ParserName == "" {
		rec.ParserName = p.Name()
	}
	return rec, nil
}

// ParseText extracts every candidate link from text and resolves each one,
// returning results in the same order the candidates were found. A failure
// resolving one candidate does not abort the others. Candidates are
// resolved concurrently, bounded by the manager-wide semaphore inside
// ParseOne, which caps in-flight Parse calls of all parsers together.
func (m *Manager) ParseText(ctx context.Context, text string) ([]*models.PostRecord, error) {
	candidates := m.ExtractAll(text)
	records := make([]*models.PostRecord, len(candidates))

	var wg sync.WaitGroup
	for i, c := range candidates {
		i, c := i, c
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := m.ParseOne(ctx, c)
			if err != nil {
				records[i] = &models.PostRecord{SourceURL: c.URL, ParserName: c.ParserName, Error: err.Error()}
				return
			}
			records[i] = rec
		}()
	}
	wg.Wait()
	return records, nil
}
