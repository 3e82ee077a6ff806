package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vontrex/mediaingest/internal/download/handler"
	"github.com/vontrex/mediaingest/internal/models"
	"github.com/vontrex/mediaingest/internal/resource"
)

func newTestManager(t *testing.T, policy Policy) (*Manager, *resource.Manager) {
	t.Helper()
	res := resource.New()
	dir := t.TempDir()
	client := http.DefaultClient
	plain := &handler.PlainVideo{Client: client, CacheDir: dir, Resource: res}
	mgr := &Manager{
		Policy:   policy,
		Client:   client,
		Video:    plain,
		RangeVid: plain,
		Image:    &handler.Image{Client: client, CacheDir: dir, Resource: res},
		HLS:      &handler.HLS{Client: client, CacheDir: dir, Resource: res},
		Resource: res,
	}
	return mgr, res
}

func sizedServer(t *testing.T, sizeBytes int) *httptest.Server {
	t.Helper()
	body := strings.Repeat("x", sizeBytes)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "")
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", itoa(sizeBytes))
			return
		}
		w.Write([]byte(body))
	}))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// S1: image gallery, pre-download off, cache available, no thresholds set.
func TestProcessDirectVideoWithTempImages(t *testing.T) {
	video := sizedServer(t, 5*1024*1024)
	defer video.Close()
	img1 := sizedServer(t, 1024)
	defer img1.Close()

	mgr, _ := newTestManager(t, Policy{CacheAvailable: true, MaxConcurrentDownloads: 3})

	post := models.PostRecord{
		SourceURL:      "https://example.com/post/1",
		VideoURLGroups: []models.URLGroup{{video.URL}},
		ImageURLGroups: []models.URLGroup{{img1.URL}},
	}

	result := mgr.Process(context.Background(), post)

	if !result.UseLocalFiles {
		t.Fatalf("expected use_local_files=true per S1 (image downloaded successfully)")
	}
	if len(result.FilePaths) != 2 {
		t.Fatalf("expected 2 file path slots, got %d", len(result.FilePaths))
	}
	if result.FilePaths[0] != "" {
		t.Fatalf("expected video slot empty (direct URL), got %q", result.FilePaths[0])
	}
	if result.FilePaths[1] == "" {
		t.Fatalf("expected image downloaded to temp path")
	}
}

// S2: large video, soft threshold triggers forced download.
func TestProcessForcedDownloadOnSoftThreshold(t *testing.T) {
	video := sizedServer(t, 55*1024*1024)
	defer video.Close()

	mgr, _ := newTestManager(t, Policy{
		CacheAvailable:         true,
		MaxConcurrentDownloads: 3,
		LargeMediaThresholdMB:  40,
		MaxMediaSizeMB:         100,
		SizeProbeTimeout:       5 * time.Second,
	})

	post := models.PostRecord{
		SourceURL:      "https://example.com/post/2",
		VideoURLGroups: []models.URLGroup{{video.URL}},
	}

	result := mgr.Process(context.Background(), post)

	if !result.IsLargeMedia {
		t.Fatalf("expected is_large_media=true")
	}
	if !result.UseLocalFiles {
		t.Fatalf("expected use_local_files=true")
	}
	if len(result.FilePaths) != 1 || result.FilePaths[0] == "" {
		t.Fatalf("expected video downloaded to cache path, got %v", result.FilePaths)
	}
}

// S3: hard ceiling rejection.
func TestProcessHardCeilingRejection(t *testing.T) {
	video := sizedServer(t, 50*1024*1024)
	defer video.Close()

	mgr, _ := newTestManager(t, Policy{
		CacheAvailable:         true,
		MaxConcurrentDownloads: 3,
		MaxMediaSizeMB:         20,
		SizeProbeTimeout:       5 * time.Second,
	})

	post := models.PostRecord{
		SourceURL:      "https://example.com/post/3",
		VideoURLGroups: []models.URLGroup{{video.URL}},
	}

	result := mgr.Process(context.Background(), post)

	if !result.ExceedsMaxSize {
		t.Fatalf("expected exceeds_max_size=true")
	}
	if result.HasValidMedia {
		t.Fatalf("expected has_valid_media=false")
	}
	if len(result.FilePaths) != 0 {
		t.Fatalf("expected no file paths, got %v", result.FilePaths)
	}
}

func TestProcessEmptyRecordMarksNoValidMedia(t *testing.T) {
	mgr, _ := newTestManager(t, Policy{CacheAvailable: true, MaxConcurrentDownloads: 3})
	result := mgr.Process(context.Background(), models.PostRecord{SourceURL: "https://example.com/empty"})
	if result.HasValidMedia {
		t.Fatalf("expected has_valid_media=false for post with no media")
	}
}
