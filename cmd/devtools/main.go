// Command devtools is an ad-hoc CLI for probing a single media URL locally:
// it runs the same detection/size-probe/download path the engine runs for
// one item, without standing up the HTTP server. Kept from the teacher's
// cmd/devtools (previously a multi-service dev runner) and repurposed for
// single-URL diagnostics; the colorized status-line style is carried over.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vontrex/mediaingest/internal/cachefs"
	"github.com/vontrex/mediaingest/internal/download"
	"github.com/vontrex/mediaingest/internal/download/handler"
	"github.com/vontrex/mediaingest/internal/models"
	"github.com/vontrex/mediaingest/internal/resource"
	"github.com/vontrex/mediaingest/internal/transcode"
	"github.com/vontrex/mediaingest/pkg/httpclient"
)

const (
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
	Reset  = "\033[0m"
	Bold   = "\033[1m"
)

func main() {
	doDownload := flag.Bool("download", false, "actually download the media, not just probe it")
	cacheDir := flag.String("cache-dir", "./cache", "cache directory for -download")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: devtools [-download] [-cache-dir dir] <url>\n")
		os.Exit(2)
	}
	rawURL := flag.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fmt.Printf("%s%sprobing%s %s\n", Bold, Cyan, Reset, rawURL)

	kind := download.DetectMediaType(rawURL)
	fmt.Printf("  %sdetected kind:%s %s\n", Yellow, Reset, kind)

	client, err := httpclient.New(httpclient.Options{Timeout: *timeout})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%sbuilding http client: %v%s\n", Red, err, Reset)
		os.Exit(1)
	}

	if sizeMB, ok := download.ProbeSizeMB(ctx, client, rawURL, nil, *timeout); ok {
		fmt.Printf("  %ssize:%s %.2f MB\n", Yellow, Reset, sizeMB)
	} else {
		fmt.Printf("  %ssize:%s unknown (server did not answer HEAD or Range probe)\n", Yellow, Reset)
	}

	if !*doDownload {
		return
	}

	if err := cachefs.CheckDirAvailable(*cacheDir); err != nil {
		fmt.Fprintf(os.Stderr, "%scache dir unavailable: %v%s\n", Red, err, Reset)
		os.Exit(1)
	}

	res := resource.New()
	defer res.CleanupTemp()

	plain := &handler.PlainVideo{Client: client, CacheDir: *cacheDir, Resource: res}
	ffmpeg, haveFFmpeg := transcode.NewRunner(30 * time.Second)

	item := models.MediaItem{
		URLs:    models.URLGroup{rawURL},
		MediaID: cachefs.DeriveMediaID(rawURL),
		Index:   0,
		Kind:    kind,
		Persist: true,
	}

	var result models.DownloadResult
	switch kind {
	case models.KindImage:
		img := &handler.Image{Client: client, CacheDir: *cacheDir, Resource: res, Normalize: true}
		if haveFFmpeg {
			img.Transcode = ffmpeg
		}
		result = img.Download(ctx, item)
	case models.KindM3U8:
		hls := &handler.HLS{Client: client, CacheDir: *cacheDir, Resource: res, UseFFmpeg: haveFFmpeg}
		if haveFFmpeg {
			hls.Transcode = ffmpeg
		}
		result = hls.Download(ctx, item)
	default:
		rangeVid := &handler.RangeVideo{Client: client, CacheDir: *cacheDir, Resource: res, Plain: plain}
		result = rangeVid.Download(ctx, item)
	}

	if result.Success {
		fmt.Printf("  %sdownloaded:%s %s (%.2f MB)\n", Green, Reset, result.FilePath, result.SizeMB)
	} else {
		fmt.Printf("  %sfailed:%s %s\n", Red, Reset, result.Err)
	}
}
