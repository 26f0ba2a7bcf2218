// Package intercept serves synthetic-scheme requests in-process: a
// playback engine registers a provider's scheme on its HTTP transport and
// every playlist, key and segment request is fetched, rewritten and sliced
// here instead of going through the relay's HTTP endpoints.
package intercept

import (
	"sort"
	"sync"

	"hls-relay/pkg/urlutil"
)

// Provider describes how one upstream family is intercepted.
type Provider struct {
	// Name labels logs, metrics and the session base slot.
	Name string
	// Scheme is the synthetic scheme tagging this provider's URLs.
	Scheme string
	// UpstreamScheme replaces Scheme when fetching.
	UpstreamScheme string
	// NeedsBaseCache enables path recovery against the session base.
	// Providers whose playlists use relative paths the player mangles need it.
	NeedsBaseCache bool
	// Headers are sent with every upstream fetch.
	Headers map[string]string
	// StripIFrames and DropAttributes are playlist filters applied while
	// rewriting.
	StripIFrames   bool
	DropAttributes []string
	// RecoverPath extracts the real file name from a virtual path.
	// Defaults to urlutil.LastMediaSegment.
	RecoverPath func(virtual string) (string, bool)
}

func (p *Provider) recoverPath(virtual string) (string, bool) {
	if p.RecoverPath != nil {
		return p.RecoverPath(virtual)
	}
	return urlutil.LastMediaSegment(virtual)
}

func (p *Provider) upstreamScheme() string {
	if p.UpstreamScheme == "" {
		return "https"
	}
	return p.UpstreamScheme
}

// Built-in provider names.
const (
	ProviderVidmoly = "vidmoly"
	ProviderDirect  = "direct"
)

// Vidmoly serves playlists whose relative references break once the
// player resolves them against a synthetic URL.
func Vidmoly() *Provider {
	return &Provider{
		Name:           ProviderVidmoly,
		Scheme:         "vidmoly-relay",
		UpstreamScheme: "https",
		NeedsBaseCache: true,
		Headers: map[string]string{
			"Referer": "https://vidmoly.to/",
			"Origin":  "https://vidmoly.to",
		},
		StripIFrames:   true,
		DropAttributes: []string{"VIDEO-RANGE"},
	}
}

// Direct relays any https origin without path recovery.
func Direct() *Provider {
	return &Provider{
		Name:           ProviderDirect,
		Scheme:         "hls-relay",
		UpstreamScheme: "https",
	}
}

// Providers is the strategy table, keyed by scheme and by name.
type Providers struct {
	mu       sync.RWMutex
	byScheme map[string]*Provider
	byName   map[string]*Provider
}

// NewProviders returns an empty table.
func NewProviders() *Providers {
	return &Providers{
		byScheme: make(map[string]*Provider),
		byName:   make(map[string]*Provider),
	}
}

// DefaultProviders returns a table holding the built-in providers.
func DefaultProviders() *Providers {
	p := NewProviders()
	p.Register(Vidmoly())
	p.Register(Direct())
	return p
}

// Register adds or replaces a provider.
func (p *Providers) Register(provider *Provider) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byScheme[provider.Scheme] = provider
	p.byName[provider.Name] = provider
}

// ByScheme returns the provider owning scheme.
func (p *Providers) ByScheme(scheme string) (*Provider, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	provider, ok := p.byScheme[scheme]
	return provider, ok
}

// ByName returns the provider called name.
func (p *Providers) ByName(name string) (*Provider, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	provider, ok := p.byName[name]
	return provider, ok
}

// All returns the registered providers sorted by name.
func (p *Providers) All() []*Provider {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Provider, 0, len(p.byName))
	for _, provider := range p.byName {
		out = append(out, provider)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
