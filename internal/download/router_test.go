package download

import (
	"testing"

	"github.com/vontrex/mediaingest/internal/models"
)

func TestDetectMediaType(t *testing.T) {
	cases := []struct {
		url  string
		want models.MediaKind
	}{
		{"https://cdn.example.com/stream/index.m3u8", models.KindM3U8},
		{"https://cdn.example.com/stream/index.m3u8?token=abc", models.KindM3U8},
		{"https://cdn.example.com/photo.jpg", models.KindImage},
		{"https://cdn.example.com/photo.JPG?w=100", models.KindImage},
		{"https://cdn.example.com/clip.mp4", models.KindVideo},
		{"https://cdn.example.com/clip.webm", models.KindVideo},
		{"https://cdn.example.com/media/download_video?id=1", models.KindVideo},
		{"https://cdn.example.com/media/get_image?id=1", models.KindImage},
		{"https://cdn.example.com/media/opaque-id-without-extension", models.KindVideo},
	}
	for _, tc := range cases {
		t.Run(tc.url, func(t *testing.T) {
			got := DetectMediaType(tc.url)
			if got != tc.want {
				t.Fatalf("DetectMediaType(%q) = %v, want %v", tc.url, got, tc.want)
			}
		})
	}
}

func TestDetectMediaTypeIsIdempotentAndCaseInsensitive(t *testing.T) {
	url := "https://cdn.example.com/Clip.MP4?sig=xyz"
	first := DetectMediaType(url)
	second := DetectMediaType(url)
	if first != second {
		t.Fatalf("DetectMediaType not idempotent: %v vs %v", first, second)
	}
	if first != models.KindVideo {
		t.Fatalf("got %v, want video", first)
	}
}
