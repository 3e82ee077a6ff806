package parser

import (
	"context"
	"fmt"
	"testing"

	"github.com/vontrex/mediaingest/internal/models"
)

type stubParser struct {
	name   string
	prefix string
}

func (s *stubParser) Name() string { return s.name }
func (s *stubParser) CanParse(rawURL string) bool {
	return len(rawURL) >= len(s.prefix) && rawURL[:len(s.prefix)] == s.prefix
}
func (s *stubParser) ExtractLinks(text string) []models.LinkCandidate {
	if s.CanParse(text) {
		return []models.LinkCandidate{{URL: text, ParserName: s.name}}
	}
	return nil
}
func (s *stubParser) Parse(ctx context.Context, c models.LinkCandidate) (*models.PostRecord, error) {
	if c.URL == s.prefix+"fail" {
		return nil, fmt.Errorf("stub: forced failure")
	}
	return &models.PostRecord{SourceURL: c.URL, CanonicalURL: c.URL}, nil
}

func newTestRegistryWithStubs() *Registry {
	r := NewRegistry()
	r.Register(Info{Name: "stub-a", Factory: func(string) Parser { return &stubParser{name: "stub-a", prefix: "https://a.example/"} }})
	r.Register(Info{Name: "stub-b", Factory: func(string) Parser { return &stubParser{name: "stub-b", prefix: "https://b.example/"} }})
	return r
}

func TestManagerFindParserDispatchesByOwnership(t *testing.T) {
	r := newTestRegistryWithStubs()
	mgr, err := NewManager(r, nil, "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := mgr.FindParser("https://b.example/post/1")
	if p == nil || p.Name() != "stub-b" {
		t.Fatalf("expected stub-b to claim the url, got %v", p)
	}
}

func TestManagerNoParsersEnabledErrors(t *testing.T) {
	r := newTestRegistryWithStubs()
	_, err := NewManager(r, func(string) bool { return false }, "", 0)
	if err == nil {
		t.Fatalf("expected error when no parsers are enabled")
	}
}

func TestManagerParseTextContinuesPastFailures(t *testing.T) {
	r := newTestRegistryWithStubs()
	mgr, err := NewManager(r, nil, "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := "https://a.example/fail https://b.example/ok"
	records, err := mgr.ParseText(context.Background(), text)
	if err != nil {
		t.Fatalf("unexpected top-level error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Error == "" {
		t.Fatalf("expected first record to carry the failure")
	}
	if records[1].Error != "" {
		t.Fatalf("expected second record to succeed, got error %q", records[1].Error)
	}
}

func TestManagerEnabledCheckerFiltersParsers(t *testing.T) {
	r := newTestRegistryWithStubs()
	mgr, err := NewManager(r, func(name string) bool { return name == "stub-a" }, "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mgr.FindParser("https://b.example/post/1") != nil {
		t.Fatalf("expected disabled parser not to claim url")
	}
}
