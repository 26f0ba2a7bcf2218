// Package api provides HTTP handlers for the relay API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hls-relay/pkg/appctx"
	"hls-relay/pkg/handlers/streams"
	"hls-relay/pkg/logging"
	"hls-relay/pkg/metrics"
	"hls-relay/pkg/resolver"
	"hls-relay/pkg/types"
)

// Handlers contains all API handlers.
type Handlers struct {
	ctx *appctx.Context
	log *logging.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(ctx *appctx.Context) *Handlers {
	return &Handlers{
		ctx: ctx,
		log: ctx.Log.WithComponent("api"),
	}
}

// RegisterRoutes registers all API routes.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Get("/health", h.handleHealth)
	r.Get("/api/info", h.handleAPIInfo)

	r.Get(streams.PathManifest, h.handleManifest)
	r.Get(streams.PathProxy, h.handleProxy)
	r.Head(streams.PathProxy, h.handleProxy)
	r.Get(streams.PathSubtitles, h.handleSubtitles)
	r.Get(streams.PathSubtitlePlaylist, h.handleSubtitlePlaylist)

	if h.ctx.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(h.ctx.Metrics))
	}
}

// handleIndex serves a short landing page.
func (h *Handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>hls-relay</title></head>
<body>
    <h1>hls-relay</h1>
    <p>Version: %s</p>
    <ul>
        <li><code>/manifest?url=...</code></li>
        <li><code>/proxy?url=...</code></li>
        <li><code>/subtitles?url=...</code></li>
    </ul>
</body>
</html>`, appctx.Version)
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAPIInfo returns version and a configuration summary as JSON.
func (h *Handlers) handleAPIInfo(w http.ResponseWriter, r *http.Request) {
	cfg := h.ctx.Config
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":                 "running",
		"version":                appctx.Version,
		"base_url":               h.ctx.BaseURL,
		"auth_required":          cfg.APIPassword != "",
		"proxies":                len(cfg.GlobalProxies),
		"transport_routes":       len(cfg.TransportRoutes),
		"fetch_timeout":          cfg.FetchTimeout.String(),
		"max_concurrent_fetches": cfg.MaxConcurrentFetches,
		"metrics_enabled":        h.ctx.Metrics != nil,
	})
}

// handleManifest serves a rewritten or virtual playlist.
func (h *Handlers) handleManifest(w http.ResponseWriter, r *http.Request) {
	req, ok := h.resolve(w, r)
	if !ok {
		return
	}

	resp, err := h.ctx.ProxyService.HandleManifest(r.Context(), req)
	if err != nil {
		h.fail(w, r, "manifest", req.URL, err)
		return
	}
	h.writeStreamResponse(w, r, resp)
}

// handleProxy relays a segment, key or progressive file.
func (h *Handlers) handleProxy(w http.ResponseWriter, r *http.Request) {
	req, ok := h.resolve(w, r)
	if !ok {
		return
	}
	req.Method = r.Method
	req.Range = r.Header.Get("Range")

	resp, err := h.ctx.ProxyService.HandleSegment(r.Context(), req)
	if err != nil {
		h.fail(w, r, "proxy", req.URL, err)
		return
	}
	h.writeStreamResponse(w, r, resp)
}

// handleSubtitles serves an external subtitle file as WebVTT.
func (h *Handlers) handleSubtitles(w http.ResponseWriter, r *http.Request) {
	req, ok := h.resolve(w, r)
	if !ok {
		return
	}
	offset := resolver.ParseOffset(r.URL.Query().Get(resolver.ParamOffset))

	resp, err := h.ctx.ProxyService.HandleSubtitles(r.Context(), req, offset)
	if err != nil {
		h.fail(w, r, "subtitles", req.URL, err)
		return
	}
	h.writeStreamResponse(w, r, resp)
}

// handleSubtitlePlaylist serves the rendition playlist wrapping /subtitles.
func (h *Handlers) handleSubtitlePlaylist(w http.ResponseWriter, r *http.Request) {
	req, ok := h.resolve(w, r)
	if !ok {
		return
	}
	src := &types.SubtitleSource{
		URL:           req.URL,
		OffsetSeconds: resolver.ParseOffset(r.URL.Query().Get(resolver.ParamOffset)),
	}
	h.writeStreamResponse(w, r, h.ctx.ProxyService.HandleSubtitlePlaylist(src))
}

// Helper methods

// resolve decodes the request parameters, writing a 400 on failure.
func (h *Handlers) resolve(w http.ResponseWriter, r *http.Request) (*types.StreamRequest, bool) {
	req, err := resolver.Resolve(r.URL.Query(), h.ctx.Config.DefaultUserAgent)
	if err != nil {
		h.writeError(w, types.StatusCode(err), err.Error())
		return nil, false
	}
	if req.HeadersMalformed {
		h.log.Warn("ignoring malformed headers parameter", "path", r.URL.Path, "url", req.URL)
	}
	return req, true
}

// fail writes err with its mapped status. Nothing is written once the
// player has gone away.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, route, target string, err error) {
	if r.Context().Err() != nil {
		h.log.Debug("request canceled by client", "route", route, "url", target)
		return
	}

	status := types.StatusCode(err)
	if status >= http.StatusInternalServerError && !errors.Is(err, types.ErrBadGateway) {
		h.log.Error("request failed", "route", route, "url", target, "error", err)
	} else {
		h.log.Warn("request failed", "route", route, "url", target, "status", status, "error", err)
	}
	h.writeError(w, status, err.Error())
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handlers) writeStreamResponse(w http.ResponseWriter, r *http.Request, resp *types.StreamResponse) {
	if resp.Body != nil {
		defer resp.Body.Close()
	}

	for key, values := range resp.Headers {
		w.Header()[key] = values
	}
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	if resp.Body == nil || r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.log.Debug("response copy interrupted", "path", r.URL.Path, "error", err)
	}
}
