package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vontrex/mediaingest/internal/models"
	"github.com/vontrex/mediaingest/internal/resource"
)

func TestImageDownloadSniffsByContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("not a real jpeg but bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	res := resource.New()
	h := &Image{Client: srv.Client(), CacheDir: dir, Resource: res}

	item := models.MediaItem{URLs: models.URLGroup{srv.URL}, MediaID: "img1", Index: 0, Persist: true}
	result := h.Download(context.Background(), item)

	if !result.Success {
		t.Fatalf("expected success, got %q", result.Err)
	}
	if !strings.HasSuffix(result.FilePath, ".jpg") {
		t.Fatalf("expected .jpg extension, got %q", result.FilePath)
	}
}

func TestImageGroupFallbackDoesNotFlagAccessDenied(t *testing.T) {
	denied := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer denied.Close()
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png bytes"))
	}))
	defer ok.Close()

	dir := t.TempDir()
	res := resource.New()
	h := &Image{Client: http.DefaultClient, CacheDir: dir, Resource: res}

	item := models.MediaItem{URLs: models.URLGroup{denied.URL, ok.URL}, MediaID: "img2", Index: 0, Persist: true}
	result := h.Download(context.Background(), item)

	if !result.Success {
		t.Fatalf("expected success via fallback, got %q", result.Err)
	}
	if result.UsedURL != ok.URL {
		t.Fatalf("expected second url used, got %q", result.UsedURL)
	}
}
