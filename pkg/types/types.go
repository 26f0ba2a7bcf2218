// Package types defines core domain types used throughout the application.
package types

import (
	"io"
	"net/http"
)

// StreamType identifies the type of stream being handled.
type StreamType string

const (
	StreamTypeHLS         StreamType = "hls"
	StreamTypeProgressive StreamType = "progressive"
)

// PlaylistKind classifies a fetched HLS document.
type PlaylistKind int

const (
	// PlaylistMedia lists segments for a single rendition.
	PlaylistMedia PlaylistKind = iota
	// PlaylistMaster lists variant streams (carries EXT-X-STREAM-INF).
	PlaylistMaster
)

func (k PlaylistKind) String() string {
	if k == PlaylistMaster {
		return "master"
	}
	return "media"
}

// StreamRequest is decoded from an incoming request's query parameters.
// It is rebuilt for every request and never persisted.
type StreamRequest struct {
	URL     string
	Headers map[string]string

	// Subtitle is the optional external subtitle track to expose.
	Subtitle *SubtitleSource

	// VirtualMedia asks the progressive handler for the inner media
	// playlist instead of the wrapping master.
	VirtualMedia bool

	// Method and Range come from the player's request and are forwarded
	// to segment fetches.
	Method string
	Range  string

	// HeadersMalformed is set when the headers parameter was present but
	// not a JSON object of strings. The request still resolves.
	HeadersMalformed bool
}

// SubtitleSource describes an external subtitle file handed over by
// source discovery.
type SubtitleSource struct {
	URL           string
	OffsetSeconds float64
	Label         string
	Language      string
}

// SubtitleTrack is a subtitle rendition ready to be declared in a master
// playlist.
type SubtitleTrack struct {
	URI      string
	GroupID  string
	Name     string
	Language string
}

// RewriteContext is owned by a single rewrite operation.
type RewriteContext struct {
	// BaseURL is the address of the fetched manifest; references resolve
	// against its directory.
	BaseURL  string
	Headers  map[string]string
	Subtitle *SubtitleTrack
}

// StreamResponse represents the result of stream processing.
type StreamResponse struct {
	ContentType string
	Headers     http.Header
	Body        io.ReadCloser
	StatusCode  int
}

// Cue is a single timed subtitle entry.
type Cue struct {
	Start float64
	End   float64
	Text  string
}

// FetchRequest describes one upstream fetch.
type FetchRequest struct {
	// Method defaults to GET.
	Method  string
	URL     string
	Headers map[string]string
	// Range is forwarded verbatim when set.
	Range string
	// Kind labels the fetch for metrics ("manifest", "segment", ...).
	Kind string
}

// FetchedBody is a fully read upstream response.
type FetchedBody struct {
	// URL is the final address after redirects.
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}
