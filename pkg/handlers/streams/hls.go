// Package streams provides stream handler implementations.
package streams

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"unicode/utf8"

	"hls-relay/pkg/hls"
	"hls-relay/pkg/interfaces"
	"hls-relay/pkg/logging"
	"hls-relay/pkg/metrics"
	"hls-relay/pkg/types"
	"hls-relay/pkg/urlutil"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// HLSHandler fetches HLS playlists and rewrites them through the relay.
type HLSHandler struct {
	fetcher  interfaces.Fetcher
	segments *SegmentProxy
	log      *logging.Logger
	opts     PlaylistOptions
	rewriter hls.Rewriter
}

// NewHLSHandler creates a new HLS stream handler.
func NewHLSHandler(fetcher interfaces.Fetcher, segments *SegmentProxy, log *logging.Logger, opts PlaylistOptions) *HLSHandler {
	return &HLSHandler{
		fetcher:  fetcher,
		segments: segments,
		log:      log.WithComponent("hls-handler"),
		opts:     opts.withDefaults(),
	}
}

// Type returns the stream type.
func (h *HLSHandler) Type() types.StreamType {
	return types.StreamTypeHLS
}

// CanHandle returns true if the URL appears to be an HLS playlist.
func (h *HLSHandler) CanHandle(urlStr string) bool {
	return urlutil.LooksLikeManifest(urlStr)
}

// HandleManifest fetches, classifies and rewrites an HLS playlist. A bare
// media playlist requested with subtitles is wrapped in a master instead,
// since only masters can declare renditions.
func (h *HLSHandler) HandleManifest(ctx context.Context, req *types.StreamRequest, baseURL string) (*types.StreamResponse, error) {
	h.log.Debug("handling HLS manifest", "url", req.URL, "subtitles", req.Subtitle != nil)

	fetched, err := h.fetcher.FetchBytes(ctx, types.FetchRequest{
		URL:     req.URL,
		Headers: req.Headers,
		Kind:    "manifest",
	})
	if err != nil {
		return nil, err
	}

	body := bytes.TrimPrefix(fetched.Body, utf8BOM)
	if !utf8.Valid(body) {
		h.log.Warn("manifest is not valid UTF-8", "url", req.URL, "bytes", len(body))
		return nil, types.BadGateway("manifest from %s is not UTF-8 text", req.URL)
	}
	text := string(body)

	links := h.opts.links(baseURL)
	track := h.opts.subtitleTrack(req.Subtitle, links)
	kind := hls.Classify(text)

	var out string
	if kind == types.PlaylistMedia && track != nil {
		out = hls.MasterForMedia(links.Manifest(req.URL, req.Headers, nil), h.opts.Bandwidth, track)
		metrics.VirtualPlaylistsTotal.WithLabelValues("media-wrapper").Inc()
		h.log.Debug("wrapped media playlist for subtitles", "url", req.URL)
	} else {
		rc := &types.RewriteContext{BaseURL: fetched.URL, Headers: req.Headers}
		if kind == types.PlaylistMaster {
			rc.Subtitle = track
		}
		out = h.rewriter.Rewrite(text, rc, links)
		metrics.ManifestsRewrittenTotal.WithLabelValues(kind.String()).Inc()
		h.log.Debug("rewrote playlist", "url", req.URL, "kind", kind, "base", fetched.URL)
	}

	return playlistResponse(out), nil
}

// HandleSegment relays a segment or key through the segment proxy.
func (h *HLSHandler) HandleSegment(ctx context.Context, req *types.StreamRequest) (*types.StreamResponse, error) {
	return h.segments.Relay(ctx, req)
}

func playlistResponse(text string) *types.StreamResponse {
	return &types.StreamResponse{
		ContentType: hls.ContentType,
		Body:        io.NopCloser(bytes.NewReader([]byte(text))),
		StatusCode:  http.StatusOK,
		Headers: http.Header{
			"Cache-Control": {"no-cache"},
		},
	}
}
