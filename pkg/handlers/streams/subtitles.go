package streams

import (
	"context"
	"io"
	"net/http"
	"strings"

	"hls-relay/pkg/hls"
	"hls-relay/pkg/interfaces"
	"hls-relay/pkg/logging"
	"hls-relay/pkg/subtitle"
	"hls-relay/pkg/types"
)

// SubtitleHandler serves external subtitle files as WebVTT and the
// rendition playlists that reference them.
type SubtitleHandler struct {
	fetcher interfaces.Fetcher
	log     *logging.Logger
	opts    PlaylistOptions
}

// NewSubtitleHandler creates a subtitle handler.
func NewSubtitleHandler(fetcher interfaces.Fetcher, log *logging.Logger, opts PlaylistOptions) *SubtitleHandler {
	return &SubtitleHandler{
		fetcher: fetcher,
		log:     log.WithComponent("subtitles"),
		opts:    opts.withDefaults(),
	}
}

// HandleSubtitles fetches req.URL, decodes its charset and converts it to
// WebVTT shifted by offset seconds.
func (h *SubtitleHandler) HandleSubtitles(ctx context.Context, req *types.StreamRequest, offset float64) (*types.StreamResponse, error) {
	fetched, err := h.fetcher.FetchBytes(ctx, types.FetchRequest{
		URL:     req.URL,
		Headers: req.Headers,
		Kind:    "subtitle",
	})
	if err != nil {
		return nil, err
	}

	text, exact := subtitle.Decode(fetched.Body, fetched.Header.Get("Content-Type"))
	if !exact {
		h.log.Warn("subtitle charset unknown, decoded as windows-1252", "url", req.URL)
	}

	vtt := subtitle.Convert(text, offset)
	h.log.Debug("converted subtitles", "url", req.URL, "offset", offset, "bytes", len(vtt))

	return &types.StreamResponse{
		ContentType: subtitle.ContentType,
		Body:        io.NopCloser(strings.NewReader(vtt)),
		StatusCode:  http.StatusOK,
		Headers: http.Header{
			"Cache-Control": {"no-cache"},
		},
	}, nil
}

// HandleSubtitlePlaylist returns the one-segment rendition playlist whose
// segment is the converted subtitle file.
func (h *SubtitleHandler) HandleSubtitlePlaylist(src *types.SubtitleSource, baseURL string) *types.StreamResponse {
	links := h.opts.links(baseURL)
	return playlistResponse(hls.SubtitlePlaylist(links.Subtitles(src), h.opts.SegmentDuration))
}
