package streams

import (
	"net/url"
	"strconv"
	"strings"

	"hls-relay/pkg/resolver"
	"hls-relay/pkg/types"
	"hls-relay/pkg/urlutil"
)

// Relay endpoints.
const (
	PathManifest         = "/manifest"
	PathProxy            = "/proxy"
	PathSubtitles        = "/subtitles"
	PathSubtitlePlaylist = "/subtitles/playlist"
)

// paramAPIPassword authenticates player requests, which cannot carry
// custom headers.
const paramAPIPassword = "api_password"

// EndpointLinks builds URLs that point back at this relay's HTTP API.
type EndpointLinks struct {
	BaseURL string
	// Password, when set, is attached to every link.
	Password string
}

// NewEndpointLinks returns links rooted at baseURL.
func NewEndpointLinks(baseURL string) *EndpointLinks {
	return &EndpointLinks{BaseURL: strings.TrimRight(baseURL, "/")}
}

// WithPassword returns l with the API password attached to every link.
func (l *EndpointLinks) WithPassword(password string) *EndpointLinks {
	l.Password = password
	return l
}

// Link sends playlists to /manifest and every other resource to /proxy.
// Subtitle parameters are never carried over.
func (l *EndpointLinks) Link(target string, headers map[string]string) string {
	if urlutil.IsManifest(target) {
		return l.Manifest(target, headers, nil)
	}
	return l.Proxy(target, headers)
}

// Manifest returns the /manifest URL for target. extra is merged into the
// query (used for kind=media and subtitle parameters).
func (l *EndpointLinks) Manifest(target string, headers map[string]string, extra url.Values) string {
	q := l.query(target, headers)
	for key, values := range extra {
		q[key] = values
	}
	return l.BaseURL + PathManifest + "?" + q.Encode()
}

// Proxy returns the /proxy URL for target.
func (l *EndpointLinks) Proxy(target string, headers map[string]string) string {
	return l.BaseURL + PathProxy + "?" + l.query(target, headers).Encode()
}

// Subtitles returns the /subtitles URL serving src as WebVTT.
func (l *EndpointLinks) Subtitles(src *types.SubtitleSource) string {
	return l.BaseURL + PathSubtitles + "?" + l.subtitleQuery(src).Encode()
}

// SubtitlePlaylist returns the rendition playlist URL wrapping Subtitles.
func (l *EndpointLinks) SubtitlePlaylist(src *types.SubtitleSource) string {
	return l.BaseURL + PathSubtitlePlaylist + "?" + l.subtitleQuery(src).Encode()
}

func (l *EndpointLinks) query(target string, headers map[string]string) url.Values {
	q := url.Values{
		resolver.ParamURL:     {target},
		resolver.ParamHeaders: {resolver.EncodeHeaders(headers)},
	}
	l.authorize(q)
	return q
}

func (l *EndpointLinks) authorize(q url.Values) {
	if l.Password != "" {
		q.Set(paramAPIPassword, l.Password)
	}
}

// subtitleQuery carries no stream headers: subtitle files live on other
// hosts than the stream.
func (l *EndpointLinks) subtitleQuery(src *types.SubtitleSource) url.Values {
	q := url.Values{resolver.ParamURL: {src.URL}}
	if src.OffsetSeconds != 0 {
		q.Set(resolver.ParamOffset, strconv.FormatFloat(src.OffsetSeconds, 'f', -1, 64))
	}
	l.authorize(q)
	return q
}
