package config

import (
	"testing"
	"time"
)

func TestParseTransportRoutes(t *testing.T) {
	routes := parseTransportRoutes("{URL=cdn.example.com, PROXY=socks5://p:1080, DISABLE_SSL=true}, {URL=direct.example.com, DIRECT=true}")
	if len(routes) != 2 {
		t.Fatalf("got %d routes, want 2", len(routes))
	}
	if routes[0].URLPattern != "cdn.example.com" || routes[0].Proxy != "socks5://p:1080" || !routes[0].DisableSSL {
		t.Errorf("unexpected first route: %+v", routes[0])
	}
	if routes[1].URLPattern != "direct.example.com" || !routes[1].Direct {
		t.Errorf("unexpected second route: %+v", routes[1])
	}
	if got := parseTransportRoutes(""); got != nil {
		t.Errorf("empty input should yield nil, got %+v", got)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("BASE_URL", "")
	t.Setenv("FETCH_TIMEOUT", "15")
	t.Setenv("MAX_CONCURRENT_FETCHES", "-3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BaseURL != "http://localhost:9000" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.FetchTimeout != 15*time.Second {
		t.Errorf("FetchTimeout = %v", cfg.FetchTimeout)
	}
	if cfg.MaxConcurrentFetches != 1 {
		t.Errorf("MaxConcurrentFetches = %d, want clamp to 1", cfg.MaxConcurrentFetches)
	}
	if cfg.SubtitleGroupID != "subs" {
		t.Errorf("SubtitleGroupID = %q", cfg.SubtitleGroupID)
	}
	if cfg.DefaultUserAgent != DefaultUserAgent {
		t.Errorf("DefaultUserAgent = %q", cfg.DefaultUserAgent)
	}
}

func TestLoad_TrimsBaseURL(t *testing.T) {
	t.Setenv("BASE_URL", "http://relay.local:8080/")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BaseURL != "http://relay.local:8080" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
}
