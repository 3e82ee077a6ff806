package platform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vontrex/mediaingest/internal/models"
)

func TestShortVideoCanParseRecognizedHost(t *testing.T) {
	s, err := NewShortVideo("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.CanParse("https://shortclip.example/watch/1") {
		t.Fatalf("expected recognized host to be claimed")
	}
	if s.CanParse("https://other.example/watch/1") {
		t.Fatalf("expected unrelated host not to be claimed")
	}
}

func TestShortVideoParseExtractsOpenGraphTags(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head>
			<meta property="og:video" content="https://cdn.example/v1.mp4">
			<meta property="og:title" content="A clip">
		</head></html>`))
	}))
	defer srv.Close()

	s, err := NewShortVideo("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, err := s.Parse(context.Background(), models.LinkCandidate{URL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Title != "A clip" {
		t.Fatalf("expected title extracted, got %q", rec.Title)
	}
	if len(rec.VideoURLGroups) != 1 || rec.VideoURLGroups[0].Primary() != "https://cdn.example/v1.mp4" {
		t.Fatalf("expected video url extracted, got %+v", rec.VideoURLGroups)
	}
}

func TestShortVideoParseNoMediaSetsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>nothing here</title></head></html>`))
	}))
	defer srv.Close()

	s, _ := NewShortVideo("")
	rec, err := s.Parse(context.Background(), models.LinkCandidate{URL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Error == "" {
		t.Fatalf("expected error set on record with no media")
	}
}

func TestShortVideoParseAccessDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s, _ := NewShortVideo("")
	rec, err := s.Parse(context.Background(), models.LinkCandidate{URL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Error != "access denied" {
		t.Fatalf("expected access denied error, got %q", rec.Error)
	}
}

