package streams

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"hls-relay/pkg/config"
	"hls-relay/pkg/httpclient"
	"hls-relay/pkg/logging"
	"hls-relay/pkg/types"
)

const relayBase = "http://relay.test"

func newTestFetcher(t *testing.T) *httpclient.Client {
	t.Helper()
	return httpclient.New(&config.Config{FetchTimeout: 5 * time.Second, MaxConcurrentFetches: 4}, logging.Discard())
}

func newTestHLSHandler(t *testing.T) *HLSHandler {
	t.Helper()
	fetcher := newTestFetcher(t)
	return NewHLSHandler(fetcher, NewSegmentProxy(fetcher, logging.Discard()), logging.Discard(), PlaylistOptions{})
}

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(s)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func readBody(t *testing.T, resp *types.StreamResponse) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(data)
}

func TestHLSHandler_CanHandle(t *testing.T) {
	h := &HLSHandler{}

	tests := []struct {
		name     string
		url      string
		expected bool
	}{
		{"m3u8 extension", "https://example.com/stream.m3u8", true},
		{"m3u8 with query", "https://example.com/stream.m3u8?token=abc", true},
		{"m3u8 in query", "https://example.com/play?file=index.m3u8", true},
		{"upper case", "https://example.com/LIVE/INDEX.M3U8", true},
		{"mp4 file", "https://example.com/video.mp4", false},
		{"mkv file", "https://example.com/video.mkv?sig=1", false},
		{"no extension", "https://example.com/stream", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := h.CanHandle(tt.url)
			if result != tt.expected {
				t.Errorf("CanHandle(%q) = %v, want %v", tt.url, result, tt.expected)
			}
		})
	}
}

func TestEndpointLinks_Link(t *testing.T) {
	links := NewEndpointLinks(relayBase + "/")
	headers := map[string]string{"Referer": "https://origin.com/"}

	tests := []struct {
		name       string
		target     string
		expectPath string
	}{
		{"playlist goes to manifest", "https://example.com/a/index.m3u8?t=1", PathManifest},
		{"segment goes to proxy", "https://example.com/a/seg-1.ts", PathProxy},
		{"key goes to proxy", "https://example.com/a/key.bin", PathProxy},
		{"m3u8 in query is not a playlist path", "https://example.com/get?f=x.m3u8", PathProxy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := links.Link(tt.target, headers)
			u, err := url.Parse(got)
			if err != nil {
				t.Fatalf("Link() returned unparsable URL %q: %v", got, err)
			}
			if u.Path != tt.expectPath {
				t.Errorf("path = %q, want %q", u.Path, tt.expectPath)
			}
			if u.Query().Get("url") != tt.target {
				t.Errorf("url param = %q, want %q", u.Query().Get("url"), tt.target)
			}
			if u.Query().Get("headers") != `{"Referer":"https://origin.com/"}` {
				t.Errorf("headers param = %q", u.Query().Get("headers"))
			}
			if u.Query().Has("subs") {
				t.Error("links must never carry subs")
			}
		})
	}
}

func TestHLSHandler_RewritesMediaPlaylist(t *testing.T) {
	playlist := "\ufeff#EXTM3U\r\n" +
		"#EXT-X-TARGETDURATION:6\r\n" +
		"#EXT-X-KEY:METHOD=AES-128,URI=\"key.bin\"\r\n" +
		"#EXTINF:6.0,\r\n" +
		"seg-1.ts\r\n" +
		"#EXT-X-ENDLIST\r\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Referer") != "https://site.example/" {
			t.Errorf("Referer = %q", r.Header.Get("Referer"))
		}
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		w.Write(gzipped(t, playlist))
	}))
	defer srv.Close()

	h := newTestHLSHandler(t)
	headers := map[string]string{"Referer": "https://site.example/"}
	req := &types.StreamRequest{URL: srv.URL + "/vod/index.m3u8", Headers: headers}

	resp, err := h.HandleManifest(context.Background(), req, relayBase)
	if err != nil {
		t.Fatalf("HandleManifest() error = %v", err)
	}
	if resp.ContentType != "application/vnd.apple.mpegurl" {
		t.Errorf("ContentType = %q", resp.ContentType)
	}
	if resp.Headers.Get("Cache-Control") != "no-cache" {
		t.Errorf("Cache-Control = %q", resp.Headers.Get("Cache-Control"))
	}

	links := NewEndpointLinks(relayBase)
	want := "#EXTM3U\n" +
		"#EXT-X-TARGETDURATION:6\n" +
		"#EXT-X-KEY:METHOD=AES-128,URI=\"" + links.Proxy(srv.URL+"/vod/key.bin", headers) + "\"\n" +
		"#EXTINF:6.0,\n" +
		links.Proxy(srv.URL+"/vod/seg-1.ts", headers) + "\n" +
		"#EXT-X-ENDLIST\n"
	if got := readBody(t, resp); got != want {
		t.Errorf("body =\n%s\nwant\n%s", got, want)
	}
}

func TestHLSHandler_MasterWithSubtitles(t *testing.T) {
	master := "#EXTM3U\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360\n" +
		"low/index.m3u8\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=2400000,RESOLUTION=1280x720\n" +
		"/abs/high.m3u8\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, master)
	}))
	defer srv.Close()

	h := newTestHLSHandler(t)
	req := &types.StreamRequest{
		URL:      srv.URL + "/show/master.m3u8",
		Subtitle: &types.SubtitleSource{URL: "https://subs.example/en.srt", OffsetSeconds: -2, Label: "English"},
	}

	resp, err := h.HandleManifest(context.Background(), req, relayBase)
	if err != nil {
		t.Fatalf("HandleManifest() error = %v", err)
	}
	body := readBody(t, resp)
	links := NewEndpointLinks(relayBase)

	for _, want := range []string{
		`#EXT-X-MEDIA:TYPE=SUBTITLES,GROUP-ID="subs",NAME="English"`,
		`URI="` + links.SubtitlePlaylist(req.Subtitle) + `"`,
		`#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360,SUBTITLES="subs"`,
		links.Manifest(srv.URL+"/show/low/index.m3u8", nil, nil),
		links.Manifest(srv.URL+"/abs/high.m3u8", nil, nil),
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q\n%s", want, body)
		}
	}
	if strings.Count(body, "#EXT-X-MEDIA:") != 1 {
		t.Errorf("expected exactly one subtitle descriptor\n%s", body)
	}
}

func TestHLSHandler_MediaWithSubtitlesIsWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "#EXTM3U\n#EXTINF:4,\nseg.ts\n#EXT-X-ENDLIST\n")
	}))
	defer srv.Close()

	h := newTestHLSHandler(t)
	headers := map[string]string{"User-Agent": "test"}
	req := &types.StreamRequest{
		URL:      srv.URL + "/media.m3u8",
		Headers:  headers,
		Subtitle: &types.SubtitleSource{URL: "https://subs.example/en.vtt"},
	}

	resp, err := h.HandleManifest(context.Background(), req, relayBase)
	if err != nil {
		t.Fatalf("HandleManifest() error = %v", err)
	}
	body := readBody(t, resp)

	lines := strings.Split(strings.TrimSpace(body), "\n")
	variant := lines[len(lines)-1]
	if variant != NewEndpointLinks(relayBase).Manifest(req.URL, headers, nil) {
		t.Errorf("variant = %q", variant)
	}
	if strings.Contains(variant, "subs=") {
		t.Error("variant must not carry subs or the player loops back into the wrapper")
	}
	if !strings.Contains(body, `#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=5000000,SUBTITLES="subs"`) {
		t.Errorf("missing stream inf\n%s", body)
	}
}

func TestHLSHandler_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   []byte
		want   error
	}{
		{"not found", http.StatusNotFound, nil, types.ErrNotFound},
		{"gone", http.StatusGone, nil, types.ErrNotFound},
		{"forbidden", http.StatusForbidden, nil, types.ErrBadGateway},
		{"binary body", http.StatusOK, []byte{0x47, 0xff, 0xfe, 0x00}, types.ErrBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write(tt.body)
			}))
			defer srv.Close()

			_, err := newTestHLSHandler(t).HandleManifest(context.Background(), &types.StreamRequest{URL: srv.URL + "/x.m3u8"}, relayBase)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
