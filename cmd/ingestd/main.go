// Command ingestd is the HTTP front door for the media ingestion engine:
// POST /v1/parse accepts free text, runs it through the trigger check,
// parser manager and download manager, and returns processed posts. Wiring
// style (godotenv -> config.Load -> mux.NewRouter -> http.Server) follows
// the teacher's cmd/api/main.go.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/vontrex/mediaingest/internal/audit"
	"github.com/vontrex/mediaingest/internal/cachefs"
	"github.com/vontrex/mediaingest/internal/config"
	"github.com/vontrex/mediaingest/internal/download"
	"github.com/vontrex/mediaingest/internal/download/handler"
	"github.com/vontrex/mediaingest/internal/models"
	"github.com/vontrex/mediaingest/internal/parser"
	"github.com/vontrex/mediaingest/internal/parser/platform"
	"github.com/vontrex/mediaingest/internal/progress"
	"github.com/vontrex/mediaingest/internal/resource"
	"github.com/vontrex/mediaingest/internal/transcode"
	"github.com/vontrex/mediaingest/pkg/httpclient"
	"github.com/vontrex/mediaingest/pkg/logger"
)

const component = "ingestd"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: could not load .env file. Using environment variables directly.")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	cacheAvailable := true
	if err := cachefs.CheckDirAvailable(cfg.Download.CacheDir); err != nil {
		logger.Warnf(component, "cache dir unavailable, operating in URL-only mode: %v", err)
		cacheAvailable = false
	}

	registry := buildRegistry()
	parserManager, err := parser.NewManager(registry, cfg.ParserEnabled, cfg.TwitterProxy.ProxyURL, 10)
	if err != nil {
		log.Fatalf("Failed to build parser manager: %v", err)
	}
	trigger := parser.NewTrigger(cfg.Trigger.IsAutoParse, cfg.Trigger.TriggerKeywords)

	auditTrail, err := audit.Connect(context.Background(), cfg.AuditDSN)
	if err != nil {
		log.Fatalf("Failed to connect audit trail: %v", err)
	}
	defer auditTrail.Close()

	hub := progress.NewHub()

	srv := &server{
		cfg:            cfg,
		cacheAvailable: cacheAvailable,
		parserManager:  parserManager,
		trigger:        trigger,
		audit:          auditTrail,
		hub:            hub,
	}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", srv.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/v1/parse", srv.handleParse).Methods(http.MethodPost)
	router.HandleFunc("/v1/progress/{id}", srv.handleProgress).Methods(http.MethodGet)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	})

	httpSrv := &http.Server{
		Handler:      corsHandler.Handler(router),
		Addr:         cfg.HTTPAddr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 310 * time.Second,
	}

	logger.Infof(component, "ingestd starting on %s", cfg.HTTPAddr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %s: %v", cfg.HTTPAddr, err)
	}
}

// buildRegistry registers every platform parser this binary ships with.
// Real deployments would register many more platform-specific parsers;
// site-specific scraping heuristics are out of spec scope, so only the
// direct-link fallback and one illustrative platform parser are wired.
func buildRegistry() *parser.Registry {
	registry := parser.NewRegistry()
	_ = registry.Register(parser.Info{
		Name:          "shortvideo",
		RequiresProxy: false,
		Factory: func(proxyURL string) parser.Parser {
			p, err := platform.NewShortVideo(proxyURL)
			if err != nil {
				logger.Errorf(component, "failed to construct shortvideo parser: %v", err)
			}
			return p
		},
	})
	_ = registry.Register(parser.Info{
		Name:          "generic",
		RequiresProxy: false,
		Factory: func(proxyURL string) parser.Parser {
			p, _ := platform.NewGeneric(proxyURL)
			return p
		},
	})
	return registry
}

type server struct {
	cfg            *config.Config
	cacheAvailable bool
	parserManager  *parser.Manager
	trigger        *parser.Trigger
	audit          *audit.Trail
	hub            *progress.Hub
}

type parseRequest struct {
	Text string `json:"text"`
}

type parseResponse struct {
	RequestID string                  `json:"request_id"`
	Posts     []models.ProcessedPost  `json:"posts"`
	Triggered bool                    `json:"triggered"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true, "cache_available": s.cacheAvailable})
}

func (s *server) handleParse(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	rlog := logger.Scoped(component, requestID)

	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if !s.trigger.ShouldTrigger(req.Text) {
		_ = json.NewEncoder(w).Encode(parseResponse{RequestID: requestID, Triggered: false})
		return
	}

	ctx := r.Context()
	records, err := s.parserManager.ParseText(ctx, req.Text)
	if err != nil {
		rlog.Errorf("parsing failed: %v", err)
		http.Error(w, "parsing failed", http.StatusInternalServerError)
		return
	}

	res := resource.New()
	defer res.CleanupAll()

	client, err := httpclient.New(httpclient.Options{Timeout: 5 * time.Minute})
	if err != nil {
		rlog.Errorf("building http client: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	var ffmpeg *transcode.Runner
	if s.cfg.UseFFmpeg {
		if r, ok := transcode.NewRunner(30 * time.Second); ok {
			ffmpeg = r
		} else {
			rlog.Warnf("ffmpeg not found, image normalization and hls remux disabled")
		}
	}

	plainVideo := &handler.PlainVideo{Client: client, CacheDir: s.cfg.Download.CacheDir, Resource: res}
	mgr := &download.Manager{
		Policy: download.Policy{
			MaxMediaSizeMB:         s.cfg.MediaSize.MaxMediaSizeMB,
			LargeMediaThresholdMB:  s.cfg.MediaSize.LargeMediaThresholdMB,
			CacheAvailable:         s.cacheAvailable,
			PreDownloadAllMedia:    s.cfg.Download.PreDownloadAllMedia,
			MaxConcurrentDownloads: int64(s.cfg.Download.MaxConcurrentDownloads),
			SizeProbeTimeout:       10 * time.Second,
		},
		Client: client,
		Video:  plainVideo,
		RangeVid: &handler.RangeVideo{
			Client: client, CacheDir: s.cfg.Download.CacheDir, Resource: res, Plain: plainVideo,
		},
		Image: &handler.Image{
			Client: client, CacheDir: s.cfg.Download.CacheDir, Resource: res,
			Transcode: ffmpeg, Normalize: true,
		},
		HLS: &handler.HLS{
			Client: client, CacheDir: s.cfg.Download.CacheDir, Resource: res,
			Transcode: ffmpeg, UseFFmpeg: ffmpeg != nil,
		},
		Resource: res,
	}

	processed := make([]models.ProcessedPost, 0, len(records))
	for i, rec := range records {
		s.hub.Publish(progress.Event{RequestID: requestID, Stage: "downloading", VideoDone: i, Total: len(records)})
		if rec.Error != "" {
			processed = append(processed, models.ProcessedPost{PostRecord: *rec})
			continue
		}
		result := mgr.Process(ctx, *rec)
		s.audit.Record(ctx, rec.ParserName, result)
		processed = append(processed, result)
	}
	s.hub.Publish(progress.Event{RequestID: requestID, Stage: "done", Total: len(records)})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(parseResponse{RequestID: requestID, Posts: processed, Triggered: true})
}

func (s *server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.hub.ServeWS(w, r, id)
}
