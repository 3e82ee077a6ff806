package platform

import (
	"context"
	"testing"
	"time"

	"github.com/vontrex/mediaingest/internal/models"
)

func TestGenericCanParseRecognizedExtensions(t *testing.T) {
	g, _ := NewGeneric("")
	cases := map[string]bool{
		"https://cdn.example/video.mp4":     true,
		"https://cdn.example/pic.jpg":       true,
		"https://cdn.example/stream.m3u8":   true,
		"https://cdn.example/page.html":     false,
		"https://cdn.example/no-extension":  false,
	}
	for url, want := range cases {
		if got := g.CanParse(url); got != want {
			t.Errorf("CanParse(%q) = %v, want %v", url, got, want)
		}
	}
}

func TestGenericExtractLinksFiltersNonMedia(t *testing.T) {
	g, _ := NewGeneric("")
	text := "check this out https://cdn.example/clip.mp4 and also https://example.com/article"
	links := g.ExtractLinks(text)
	if len(links) != 1 || links[0].URL != "https://cdn.example/clip.mp4" {
		t.Fatalf("expected only the media url to be extracted, got %+v", links)
	}
}

func TestGenericParseRoutesImageVsVideo(t *testing.T) {
	orig := timestampNow
	timestampNow = func() time.Time { return time.Unix(0, 0) }
	defer func() { timestampNow = orig }()

	g, _ := NewGeneric("")

	videoRec, err := g.Parse(context.Background(), models.LinkCandidate{URL: "https://cdn.example/clip.mp4"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(videoRec.VideoURLGroups) != 1 || len(videoRec.ImageURLGroups) != 0 {
		t.Fatalf("expected video routed to video slot, got %+v", videoRec)
	}

	imgRec, err := g.Parse(context.Background(), models.LinkCandidate{URL: "https://cdn.example/pic.png"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(imgRec.ImageURLGroups) != 1 || len(imgRec.VideoURLGroups) != 0 {
		t.Fatalf("expected image routed to image slot, got %+v", imgRec)
	}
}

func TestGenericParseRejectsUnrecognizedURL(t *testing.T) {
	g, _ := NewGeneric("")
	if _, err := g.Parse(context.Background(), models.LinkCandidate{URL: "https://example.com/article"}); err == nil {
		t.Fatalf("expected error for non-media url")
	}
}
