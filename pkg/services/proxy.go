// Package services holds the facade the HTTP API talks to.
package services

import (
	"context"
	"fmt"

	"hls-relay/pkg/handlers/streams"
	"hls-relay/pkg/logging"
	"hls-relay/pkg/registry"
	"hls-relay/pkg/types"
)

// ProxyService routes resolved requests to stream and subtitle handlers.
type ProxyService struct {
	log            *logging.Logger
	streamHandlers *registry.StreamHandlerRegistry
	subtitles      *streams.SubtitleHandler
	baseURL        string
}

// NewProxyService creates a new proxy service.
func NewProxyService(
	log *logging.Logger,
	streamHandlers *registry.StreamHandlerRegistry,
	subtitles *streams.SubtitleHandler,
	baseURL string,
) *ProxyService {
	return &ProxyService{
		log:            log.WithComponent("proxy-service"),
		streamHandlers: streamHandlers,
		subtitles:      subtitles,
		baseURL:        baseURL,
	}
}

// HandleManifest returns the playlist for req: a rewritten HLS playlist
// or a virtual one for progressive files.
func (s *ProxyService) HandleManifest(ctx context.Context, req *types.StreamRequest) (*types.StreamResponse, error) {
	handler := s.streamHandlers.ForRequest(req)
	if handler == nil {
		return nil, fmt.Errorf("no handler for URL: %s", req.URL)
	}

	s.log.Debug("using stream handler", "type", handler.Type(), "url", req.URL)
	return handler.HandleManifest(ctx, req, s.baseURL)
}

// HandleSegment relays a segment, key or progressive file.
func (s *ProxyService) HandleSegment(ctx context.Context, req *types.StreamRequest) (*types.StreamResponse, error) {
	handler := s.streamHandlers.Get(req.URL)
	if handler == nil {
		handler = s.streamHandlers.GetByType(types.StreamTypeProgressive)
	}
	if handler == nil {
		return nil, fmt.Errorf("no handler for URL: %s", req.URL)
	}

	s.log.Debug("handling segment request", "type", handler.Type(), "url", req.URL, "range", req.Range)
	return handler.HandleSegment(ctx, req)
}

// HandleSubtitles converts the subtitle file at req.URL to WebVTT.
func (s *ProxyService) HandleSubtitles(ctx context.Context, req *types.StreamRequest, offset float64) (*types.StreamResponse, error) {
	return s.subtitles.HandleSubtitles(ctx, req, offset)
}

// HandleSubtitlePlaylist returns the rendition playlist for src.
func (s *ProxyService) HandleSubtitlePlaylist(src *types.SubtitleSource) *types.StreamResponse {
	return s.subtitles.HandleSubtitlePlaylist(src, s.baseURL)
}
