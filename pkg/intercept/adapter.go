package intercept

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"

	"hls-relay/pkg/byterange"
	"hls-relay/pkg/hls"
	"hls-relay/pkg/httpclient"
	"hls-relay/pkg/interfaces"
	"hls-relay/pkg/logging"
	"hls-relay/pkg/metrics"
	"hls-relay/pkg/resolver"
	"hls-relay/pkg/types"
	"hls-relay/pkg/urlutil"
)

// Session phases, as labelled in metrics and logs.
const (
	phaseFirst  = "first"
	phaseCached = "cached"
	phaseMiss   = "miss"
	phaseDirect = "direct"
)

var utf8BOM = []byte("\ufeff")

// extensionTypes wins over whatever the origin claims: several hosts serve
// segments as text/html or application/octet-stream.
var extensionTypes = map[string]string{
	".m3u8": hls.ContentType,
	".m3u":  hls.ContentType,
	".ts":   "video/mp2t",
	".mp4":  "video/mp4",
	".m4s":  "video/iso.segment",
	".m4v":  "video/mp4",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".mp3":  "audio/mpeg",
	".vtt":  "text/vtt",
	".key":  "application/octet-stream",
}

// Adapter answers synthetic-scheme requests for a playback engine.
type Adapter struct {
	fetcher   interfaces.Fetcher
	providers *Providers
	log       *logging.Logger
	userAgent string
}

// New creates an adapter. userAgent is sent when a provider sets none.
func New(fetcher interfaces.Fetcher, providers *Providers, log *logging.Logger, userAgent string) *Adapter {
	return &Adapter{
		fetcher:   fetcher,
		providers: providers,
		log:       log.WithComponent("intercept"),
		userAgent: userAgent,
	}
}

// NewSession starts the state of one media load.
func (a *Adapter) NewSession() *PlaybackSession {
	s := NewSession()
	a.log.Debug("playback session started", "session", s.ID())
	return s
}

// Transport returns a RoundTripper bound to session, suitable for
// http.Transport.RegisterProtocol with every provider scheme.
func (a *Adapter) Transport(session *PlaybackSession) http.RoundTripper {
	return &roundTripper{adapter: a, session: session}
}

type roundTripper struct {
	adapter *Adapter
	session *PlaybackSession
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		req.Body.Close()
	}
	return rt.adapter.Serve(rt.session, req)
}

// Serve fetches what a synthetic request stands for. Upstream failures
// come back as error responses; only an unknown scheme, an unusable
// target or a canceled request return an error.
func (a *Adapter) Serve(session *PlaybackSession, req *http.Request) (*http.Response, error) {
	provider, ok := a.providers.ByScheme(req.URL.Scheme)
	if !ok {
		return nil, types.BadRequest("no intercept provider for scheme %q", req.URL.Scheme)
	}

	target, phase, err := a.target(session, provider, req.URL)
	if err != nil {
		return nil, err
	}
	metrics.InterceptedRequestsTotal.WithLabelValues(provider.Name, phase).Inc()

	rangeHeader := req.Header.Get("Range")
	playlistURL := urlutil.IsManifest(target)

	log := a.log.WithURL(target).With("session", session.ID(), "provider", provider.Name)
	log.Debug("intercepted request", "phase", phase, "range", rangeHeader)

	fetchReq := types.FetchRequest{
		Method:  req.Method,
		URL:     target,
		Headers: a.headers(provider),
		Kind:    "intercept",
	}
	if !playlistURL {
		fetchReq.Range = rangeHeader
	}

	fetched, err := a.fetcher.FetchBytes(req.Context(), fetchReq)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return errorResponse(req, err), nil
	}

	if playlistURL || isPlaylist(fetched) {
		return a.playlist(req, provider, fetched)
	}
	return a.binary(req, log, target, rangeHeader, fetched), nil
}

// target maps a synthetic URL onto the upstream URL to fetch.
func (a *Adapter) target(session *PlaybackSession, p *Provider, u *url.URL) (string, string, error) {
	q := parseSyntheticQuery(u.RawQuery)
	direct := swapScheme(u, p.upstreamScheme(), q.rest)

	if q.first() {
		target := direct
		if q.target != "" {
			target = resolver.DecodeTarget(q.target)
		}
		if !urlutil.IsHTTPURL(target) {
			return "", "", types.BadRequest("intercepted target %q is not an http(s) url", target)
		}
		if p.NeedsBaseCache {
			session.SetBase(p.Name, urlutil.GetBaseDirectory(target))
		}
		return target, phaseFirst, nil
	}

	if !p.NeedsBaseCache {
		return direct, phaseDirect, nil
	}

	name, recovered := p.recoverPath(q.virtual)
	if !recovered {
		name = ""
	}
	base, cached := session.Base(p.Name)
	if !cached {
		a.log.Warn("no cached base for session, using the request's own",
			"session", session.ID(),
			"provider", p.Name,
			"virtual", q.virtual,
		)
		if name == "" {
			return direct, phaseMiss, nil
		}
		return withQuery(urlutil.GetBaseDirectory(direct)+name, q.rest), phaseMiss, nil
	}
	if name == "" {
		a.log.Warn("no media file in virtual path", "provider", p.Name, "virtual", q.virtual)
		return direct, phaseMiss, nil
	}
	return withQuery(base+name, q.rest), phaseCached, nil
}

func (a *Adapter) headers(p *Provider) map[string]string {
	headers := make(map[string]string, len(p.Headers)+1)
	for key, value := range p.Headers {
		headers[key] = value
	}
	if _, ok := headers["User-Agent"]; !ok && a.userAgent != "" {
		headers["User-Agent"] = a.userAgent
	}
	return headers
}

func isPlaylist(fetched *types.FetchedBody) bool {
	if strings.Contains(strings.ToLower(fetched.Header.Get("Content-Type")), "mpegurl") {
		return true
	}
	return bytes.HasPrefix(bytes.TrimPrefix(fetched.Body, utf8BOM), []byte(hls.TagHeader))
}

func (a *Adapter) playlist(req *http.Request, p *Provider, fetched *types.FetchedBody) (*http.Response, error) {
	body := bytes.TrimPrefix(fetched.Body, utf8BOM)
	if !utf8.Valid(body) {
		return errorResponse(req, types.BadGateway("playlist %s is not valid UTF-8", fetched.URL)), nil
	}

	rewriter := hls.Rewriter{StripIFrames: p.StripIFrames, DropAttributes: p.DropAttributes}
	text := string(body)
	kind := hls.Classify(text)
	rewritten := rewriter.Rewrite(text, &types.RewriteContext{BaseURL: fetched.URL}, schemeLinks{scheme: p.Scheme})
	metrics.ManifestsRewrittenTotal.WithLabelValues(kind.String()).Inc()

	header := make(http.Header)
	header.Set("Content-Type", hls.ContentType)
	header.Set("Cache-Control", "no-cache")
	return newResponse(req, http.StatusOK, header, []byte(rewritten)), nil
}

func (a *Adapter) binary(req *http.Request, log *logging.Logger, target, rangeHeader string, fetched *types.FetchedBody) *http.Response {
	header := httpclient.RelayHeaders(fetched.Header)
	header.Set("Content-Type", contentType(target, fetched.Header, fetched.Body))

	status := fetched.StatusCode
	body := fetched.Body
	if rangeHeader != "" && status == http.StatusOK {
		size := int64(len(body))
		if r, ok := byterange.Parse(rangeHeader, size); ok {
			if !r.Covers(size) {
				body = body[r.Start : r.End+1]
				status = http.StatusPartialContent
				header.Set("Content-Range", r.ContentRange(size))
				metrics.RangeSlicesTotal.Inc()
			}
		} else {
			log.Warn("requested range outside the body, returning it whole", "range", rangeHeader, "size", size)
		}
	}
	return newResponse(req, status, header, body)
}

func contentType(target string, header http.Header, body []byte) string {
	if ct, ok := extensionTypes[urlutil.PathExt(target)]; ok {
		return ct
	}
	if ct := header.Get("Content-Type"); ct != "" {
		return ct
	}
	return mimetype.Detect(body).String()
}

func errorResponse(req *http.Request, err error) *http.Response {
	header := make(http.Header)
	header.Set("Content-Type", "text/plain; charset=utf-8")
	return newResponse(req, types.StatusCode(err), header, []byte(err.Error()))
}

func newResponse(req *http.Request, status int, header http.Header, body []byte) *http.Response {
	header.Set("Content-Length", strconv.Itoa(len(body)))
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
