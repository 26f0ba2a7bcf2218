package streams

import (
	"context"
	"net/url"

	"hls-relay/pkg/hls"
	"hls-relay/pkg/logging"
	"hls-relay/pkg/metrics"
	"hls-relay/pkg/resolver"
	"hls-relay/pkg/types"
)

// ProgressiveHandler presents a single progressive file (mp4, mkv, ...) as
// HLS. It never fetches the file: the master and media playlists are
// synthesised from the request alone, and the file itself streams through
// /proxy.
type ProgressiveHandler struct {
	segments *SegmentProxy
	log      *logging.Logger
	opts     PlaylistOptions
}

// NewProgressiveHandler creates the fallback handler for non-HLS targets.
func NewProgressiveHandler(segments *SegmentProxy, log *logging.Logger, opts PlaylistOptions) *ProgressiveHandler {
	return &ProgressiveHandler{
		segments: segments,
		log:      log.WithComponent("progressive-handler"),
		opts:     opts.withDefaults(),
	}
}

// Type returns the stream type.
func (h *ProgressiveHandler) Type() types.StreamType {
	return types.StreamTypeProgressive
}

// CanHandle accepts any URL; this handler is the registry fallback.
func (h *ProgressiveHandler) CanHandle(string) bool {
	return true
}

// HandleManifest returns the virtual master playlist, or with kind=media
// the single-segment media playlist behind it.
func (h *ProgressiveHandler) HandleManifest(_ context.Context, req *types.StreamRequest, baseURL string) (*types.StreamResponse, error) {
	links := h.opts.links(baseURL)

	if req.VirtualMedia {
		metrics.VirtualPlaylistsTotal.WithLabelValues("progressive-media").Inc()
		h.log.Debug("serving virtual media playlist", "url", req.URL)
		return playlistResponse(hls.ProgressiveMedia(links.Proxy(req.URL, req.Headers), h.opts.SegmentDuration)), nil
	}

	variant := links.Manifest(req.URL, req.Headers, url.Values{resolver.ParamKind: {resolver.KindMedia}})
	track := h.opts.subtitleTrack(req.Subtitle, links)

	metrics.VirtualPlaylistsTotal.WithLabelValues("progressive-master").Inc()
	h.log.Debug("serving virtual master playlist", "url", req.URL, "subtitles", track != nil)
	return playlistResponse(hls.ProgressiveMaster(variant, h.opts.Bandwidth, track)), nil
}

// HandleSegment relays the file itself.
func (h *ProgressiveHandler) HandleSegment(ctx context.Context, req *types.StreamRequest) (*types.StreamResponse, error) {
	return h.segments.Relay(ctx, req)
}
