// Package config handles application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultUserAgent impersonates mobile Safari; several hosts refuse
// requests without a browser User-Agent.
const DefaultUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port         int
	BaseURL      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Authentication
	APIPassword string

	// Proxy settings
	GlobalProxies   []string
	TransportRoutes []TransportRoute
	// UTLSDomains are URL substrings fetched with a browser TLS fingerprint.
	UTLSDomains []string

	// Upstream fetching
	FetchTimeout         time.Duration
	MaxConcurrentFetches int
	DefaultUserAgent     string

	// Playlist synthesis
	SubtitleGroupID        string
	SubtitleLanguage       string
	SubtitleName           string
	VirtualBandwidth       int
	VirtualSegmentDuration time.Duration

	// Logging
	LogLevel      string
	LogJSON       bool
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	// Rate limiting (0 disables)
	RateLimitRPS   float64
	RateLimitBurst int

	// Observability
	MetricsEnabled  bool
	OTELServiceName string
}

// TransportRoute defines URL-specific proxy routing.
type TransportRoute struct {
	URLPattern string
	Proxy      string
	DisableSSL bool
	Direct     bool // If true, bypass global proxy and connect directly
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is applied first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	port := getEnvInt("PORT", 7860)
	cfg := &Config{
		Port:                   port,
		BaseURL:                strings.TrimRight(getEnvString("BASE_URL", fmt.Sprintf("http://localhost:%d", port)), "/"),
		ReadTimeout:            getEnvDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:           getEnvDuration("WRITE_TIMEOUT", 0),
		IdleTimeout:            getEnvDuration("IDLE_TIMEOUT", 60*time.Second),
		APIPassword:            os.Getenv("API_PASSWORD"),
		GlobalProxies:          getEnvStringSlice("GLOBAL_PROXIES", nil),
		UTLSDomains:            getEnvStringSlice("UTLS_DOMAINS", []string{"vidmoly."}),
		FetchTimeout:           getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
		MaxConcurrentFetches:   getEnvInt("MAX_CONCURRENT_FETCHES", 64),
		DefaultUserAgent:       getEnvString("DEFAULT_USER_AGENT", DefaultUserAgent),
		SubtitleGroupID:        getEnvString("SUBTITLE_GROUP_ID", "subs"),
		SubtitleLanguage:       getEnvString("SUBTITLE_LANGUAGE", "en"),
		SubtitleName:           getEnvString("SUBTITLE_NAME", "External Subtitles"),
		VirtualBandwidth:       getEnvInt("VIRTUAL_BANDWIDTH", 5000000),
		VirtualSegmentDuration: getEnvDuration("VIRTUAL_SEGMENT_DURATION", 24*time.Hour),
		LogLevel:               getEnvString("LOG_LEVEL", "info"),
		LogJSON:                getEnvBool("LOG_JSON", false),
		LogFile:                os.Getenv("LOG_FILE"),
		LogMaxSizeMB:           getEnvInt("LOG_MAX_SIZE_MB", 50),
		LogMaxBackups:          getEnvInt("LOG_MAX_BACKUPS", 3),
		LogMaxAgeDays:          getEnvInt("LOG_MAX_AGE_DAYS", 7),
		RateLimitRPS:           getEnvFloat("RATE_LIMIT_RPS", 0),
		RateLimitBurst:         getEnvInt("RATE_LIMIT_BURST", 200),
		MetricsEnabled:         getEnvBool("METRICS_ENABLED", true),
		OTELServiceName:        getEnvString("OTEL_SERVICE_NAME", "hls-relay"),
	}

	cfg.TransportRoutes = parseTransportRoutes(os.Getenv("TRANSPORT_ROUTES"))

	// Legacy single proxy support
	if globalProxy := os.Getenv("GLOBAL_PROXY"); globalProxy != "" && len(cfg.GlobalProxies) == 0 {
		cfg.GlobalProxies = []string{globalProxy}
	}

	if cfg.MaxConcurrentFetches <= 0 {
		cfg.MaxConcurrentFetches = 1
	}

	return cfg, nil
}

// parseTransportRoutes parses the TRANSPORT_ROUTES env var.
// Format: {URL=pattern, PROXY=url, DISABLE_SSL=true}, {URL=pattern2}
func parseTransportRoutes(s string) []TransportRoute {
	if s == "" {
		return nil
	}

	var routes []TransportRoute
	s = strings.TrimSpace(s)

	parts := strings.Split(s, "}, {")
	for _, part := range parts {
		part = strings.Trim(part, "{} ")
		if part == "" {
			continue
		}

		route := TransportRoute{}
		for _, field := range strings.Split(part, ", ") {
			kv := strings.SplitN(field, "=", 2)
			if len(kv) != 2 {
				continue
			}
			key := strings.TrimSpace(kv[0])
			value := strings.TrimSpace(kv[1])

			switch strings.ToUpper(key) {
			case "URL":
				route.URLPattern = value
			case "PROXY":
				route.Proxy = value
			case "DISABLE_SSL":
				route.DisableSSL = strings.ToLower(value) == "true"
			case "DIRECT":
				route.Direct = strings.ToLower(value) == "true"
			}
		}
		if route.URLPattern != "" {
			routes = append(routes, route)
		}
	}

	return routes
}

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return strings.ToLower(val) == "true" || val == "1"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		// Try parsing as seconds first
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvStringSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		parts := strings.Split(val, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultVal
}
