package registry

import (
	"context"
	"strings"
	"testing"

	"hls-relay/pkg/types"
)

type fakeHandler struct {
	kind   types.StreamType
	suffix string
}

func (f *fakeHandler) Type() types.StreamType { return f.kind }

func (f *fakeHandler) CanHandle(url string) bool {
	return f.suffix == "" || strings.HasSuffix(url, f.suffix)
}

func (f *fakeHandler) HandleManifest(context.Context, *types.StreamRequest, string) (*types.StreamResponse, error) {
	return nil, nil
}

func (f *fakeHandler) HandleSegment(context.Context, *types.StreamRequest) (*types.StreamResponse, error) {
	return nil, nil
}

func TestStreamHandlerRegistry(t *testing.T) {
	hlsHandler := &fakeHandler{kind: types.StreamTypeHLS, suffix: ".m3u8"}
	fallback := &fakeHandler{kind: types.StreamTypeProgressive}

	r := NewStreamHandlerRegistry()
	if r.Get("https://a.example/x.m3u8") != nil {
		t.Error("empty registry should return nil")
	}

	r.Register(hlsHandler)
	r.SetFallback(fallback)

	tests := []struct {
		url  string
		want *fakeHandler
	}{
		{"https://a.example/x.m3u8", hlsHandler},
		{"https://a.example/x.mp4", fallback},
		{"https://a.example/stream", fallback},
	}
	for _, tt := range tests {
		if got := r.Get(tt.url); got != tt.want {
			t.Errorf("Get(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}

	if r.GetByType(types.StreamTypeHLS) != hlsHandler {
		t.Error("GetByType(hls) mismatch")
	}
	if r.GetByType(types.StreamTypeProgressive) != fallback {
		t.Error("GetByType(progressive) should find the fallback")
	}
	if got := len(r.All()); got != 1 {
		t.Errorf("All() has %d handlers, want 1", got)
	}
}

func TestForRequest(t *testing.T) {
	hlsHandler := &fakeHandler{kind: types.StreamTypeHLS, suffix: ".m3u8"}
	fallback := &fakeHandler{kind: types.StreamTypeProgressive}

	r := NewStreamHandlerRegistry()
	r.Register(hlsHandler)
	r.SetFallback(fallback)

	tests := []struct {
		name string
		req  *types.StreamRequest
		want *fakeHandler
	}{
		{"playlist", &types.StreamRequest{URL: "https://a.example/x.m3u8"}, hlsHandler},
		{"file", &types.StreamRequest{URL: "https://a.example/x.mp4"}, fallback},
		{"virtual media", &types.StreamRequest{URL: "https://a.example/x.m3u8", VirtualMedia: true}, fallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.ForRequest(tt.req); got != tt.want {
				t.Errorf("ForRequest() = %v, want %v", got, tt.want)
			}
		})
	}
}
