// Package config loads and validates the engine's configuration. The core
// engine packages (parser, download, resource) never import viper directly —
// they take the plain Config value this package produces, keeping the
// loader an external collaborator the way §6 of the specification treats it.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// MaxLargeMediaThresholdMB caps large_media_threshold_mb (§4.2).
const MaxLargeMediaThresholdMB = 100.0

const (
	DefaultLargeMediaThresholdMB  = 40.0
	DefaultMaxConcurrentDownloads = 3
	DefaultCacheDir               = "./cache"
)

// ValidationError reports a configuration-time failure (spec.md §7's
// "Configuration error" kind). It always raises before any request runs.
type ValidationError struct {
	Key     string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Key, e.Message)
}

// TriggerSettings gates whether incoming text is even handed to the parser
// manager.
type TriggerSettings struct {
	IsAutoParse     bool
	TriggerKeywords []string
}

// MediaSizeSettings governs the hard ceiling and soft threshold (§4.2).
type MediaSizeSettings struct {
	MaxMediaSizeMB         float64
	LargeMediaThresholdMB  float64
}

// DownloadSettings governs cache and concurrency policy.
type DownloadSettings struct {
	CacheDir                string
	PreDownloadAllMedia     bool
	MaxConcurrentDownloads  int
}

// ParserEnableSettings maps "enable_<name>" -> bool, default true when absent.
type ParserEnableSettings map[string]bool

// TwitterProxySettings is the split proxy form adopted per spec.md §9.
type TwitterProxySettings struct {
	UseImageProxy bool
	UseVideoProxy bool
	ProxyURL      string
}

// Config is the fully validated, immutable configuration object consumed by
// the rest of the engine.
type Config struct {
	Trigger       TriggerSettings
	MediaSize     MediaSizeSettings
	Download      DownloadSettings
	ParserEnable  ParserEnableSettings
	TwitterProxy  TwitterProxySettings
	IsAutoPack    bool

	// AuditDSN, when non-empty, enables the optional MySQL-backed request
	// audit trail (internal/audit). Empty disables it entirely.
	AuditDSN string

	// HTTPAddr is the bind address for cmd/ingestd's HTTP front door.
	HTTPAddr string

	// UseFFmpeg toggles whether the transcode subsystem may shell out to
	// ffmpeg for image normalization / HLS remux. When false (or ffmpeg is
	// absent at runtime) those steps degrade gracefully per §4.6/§4.5.
	UseFFmpeg bool
}

// Load reads configuration from environment variables (and an optional
// .env file) via viper, validates it, and clamps derived values. It mirrors
// the teacher's LoadConfig: defaults first, then overridden by env, then
// validated.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("IS_AUTO_PARSE", true)
	v.SetDefault("TRIGGER_KEYWORDS", "")
	v.SetDefault("MAX_MEDIA_SIZE_MB", 0.0)
	v.SetDefault("LARGE_MEDIA_THRESHOLD_MB", DefaultLargeMediaThresholdMB)
	v.SetDefault("CACHE_DIR", DefaultCacheDir)
	v.SetDefault("PRE_DOWNLOAD_ALL_MEDIA", false)
	v.SetDefault("MAX_CONCURRENT_DOWNLOADS", DefaultMaxConcurrentDownloads)
	v.SetDefault("IS_AUTO_PACK", true)
	v.SetDefault("TWITTER_USE_IMAGE_PROXY", false)
	v.SetDefault("TWITTER_USE_VIDEO_PROXY", false)
	v.SetDefault("TWITTER_PROXY_URL", "")
	v.SetDefault("AUDIT_DSN", "")
	v.SetDefault("HTTP_ADDR", ":8090")
	v.SetDefault("USE_FFMPEG", true)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: reading .env: %w", err)
		}
	}

	keywords := []string{}
	if raw := v.GetString("TRIGGER_KEYWORDS"); raw != "" {
		for _, k := range strings.Split(raw, ",") {
			k = strings.TrimSpace(k)
			if k != "" {
				keywords = append(keywords, k)
			}
		}
	}

	enable := ParserEnableSettings{}
	for _, key := range v.AllKeys() {
		if strings.HasPrefix(key, "enable_") {
			enable[key] = v.GetBool(key)
		}
	}

	cfg := &Config{
		Trigger: TriggerSettings{
			IsAutoParse:     v.GetBool("IS_AUTO_PARSE"),
			TriggerKeywords: keywords,
		},
		MediaSize: MediaSizeSettings{
			MaxMediaSizeMB:        v.GetFloat64("MAX_MEDIA_SIZE_MB"),
			LargeMediaThresholdMB: v.GetFloat64("LARGE_MEDIA_THRESHOLD_MB"),
		},
		Download: DownloadSettings{
			CacheDir:               v.GetString("CACHE_DIR"),
			PreDownloadAllMedia:    v.GetBool("PRE_DOWNLOAD_ALL_MEDIA"),
			MaxConcurrentDownloads: v.GetInt("MAX_CONCURRENT_DOWNLOADS"),
		},
		ParserEnable: enable,
		TwitterProxy: TwitterProxySettings{
			UseImageProxy: v.GetBool("TWITTER_USE_IMAGE_PROXY"),
			UseVideoProxy: v.GetBool("TWITTER_USE_VIDEO_PROXY"),
			ProxyURL:      v.GetString("TWITTER_PROXY_URL"),
		},
		IsAutoPack: v.GetBool("IS_AUTO_PACK"),
		AuditDSN:   v.GetString("AUDIT_DSN"),
		HTTPAddr:   v.GetString("HTTP_ADDR"),
		UseFFmpeg:  v.GetBool("USE_FFMPEG"),
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	Normalize(cfg)
	return cfg, nil
}

// Validate applies the strict validation rules from §6: type/range
// violations and the Twitter proxy coherence rule raise before any request
// is served.
func Validate(cfg *Config) error {
	if cfg.MediaSize.MaxMediaSizeMB < 0 {
		return &ValidationError{"media_size_settings.max_media_size_mb", "must be non-negative"}
	}
	if cfg.MediaSize.LargeMediaThresholdMB < 0 {
		return &ValidationError{"media_size_settings.large_media_threshold_mb", "must be non-negative"}
	}
	if cfg.Download.MaxConcurrentDownloads < 1 {
		return &ValidationError{"download_settings.max_concurrent_downloads", "must be a positive integer"}
	}

	proxy := cfg.TwitterProxy
	if (proxy.UseImageProxy || proxy.UseVideoProxy) && proxy.ProxyURL == "" {
		return &ValidationError{"twitter_proxy_settings.twitter_proxy_url", "required when a proxy flag is enabled"}
	}
	if proxy.ProxyURL != "" {
		valid := strings.HasPrefix(proxy.ProxyURL, "http://") ||
			strings.HasPrefix(proxy.ProxyURL, "https://") ||
			strings.HasPrefix(proxy.ProxyURL, "socks5://")
		if !valid {
			return &ValidationError{
				"twitter_proxy_settings.twitter_proxy_url",
				fmt.Sprintf("must start with http://, https:// or socks5://, got %q", proxy.ProxyURL),
			}
		}
	}
	return nil
}

// Normalize clamps large_media_threshold_mb into [0, MaxLargeMediaThresholdMB]
// (P6): values above the max silently saturate, values <= 0 disable the
// soft threshold.
func Normalize(cfg *Config) {
	t := cfg.MediaSize.LargeMediaThresholdMB
	if t > MaxLargeMediaThresholdMB {
		t = MaxLargeMediaThresholdMB
	}
	if t < 0 {
		t = 0
	}
	cfg.MediaSize.LargeMediaThresholdMB = t
}

// ParserEnabled reports whether the named parser is enabled, defaulting to
// true when the key is absent (matches the original's `.get(key, True)`).
func (c *Config) ParserEnabled(name string) bool {
	v, ok := c.ParserEnable["enable_"+name]
	if !ok {
		return true
	}
	return v
}
