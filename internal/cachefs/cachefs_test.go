package cachefs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckDirAvailable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	if err := CheckDirAvailable(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".test_write")); !os.IsNotExist(err) {
		t.Fatalf("probe file should be removed after check")
	}
}

func TestDeriveMediaIDPrefersNumericSegment(t *testing.T) {
	got := DeriveMediaID("https://cdn.example.com/videos/12345/play.mp4")
	if got != "12345" {
		t.Fatalf("got %q, want %q", got, "12345")
	}
}

func TestDeriveMediaIDFallsBackToHash(t *testing.T) {
	got := DeriveMediaID("https://cdn.example.com/videos/play.mp4")
	if len(got) != 12 {
		t.Fatalf("expected 12-char hash prefix, got %q", got)
	}
	again := DeriveMediaID("https://cdn.example.com/videos/play.mp4")
	if got != again {
		t.Fatalf("expected stable id across calls, got %q and %q", got, again)
	}
}

func TestCacheFileName(t *testing.T) {
	got := CacheFileName("12345", 2, "mp4")
	if got != "12345_2.mp4" {
		t.Fatalf("got %q", got)
	}
}

func TestVideoSuffixFromContentType(t *testing.T) {
	got := VideoSuffix("video/mp4", "https://example.com/x")
	if got != ".mp4" {
		t.Fatalf("got %q", got)
	}
}

func TestVideoSuffixFallsBackToDefault(t *testing.T) {
	got := VideoSuffix("", "https://example.com/unknown")
	if got != ".mp4" {
		t.Fatalf("got %q, want default .mp4", got)
	}
}

func TestImageSuffixFromURL(t *testing.T) {
	got := ImageSuffix("", "https://example.com/photo.png?x=1")
	if got != ".png" {
		t.Fatalf("got %q", got)
	}
}
