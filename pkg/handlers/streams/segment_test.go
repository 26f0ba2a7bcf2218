package streams

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"hls-relay/pkg/logging"
	"hls-relay/pkg/types"
)

func TestSegmentProxy_StripsContentEncoding(t *testing.T) {
	payload := "0123456789abcdef"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Type", "video/mp2t")
		w.Header().Set("Set-Cookie", "session=1")
		w.Header().Set("Cache-Control", "max-age=60")
		w.Write(gzipped(t, payload))
	}))
	defer srv.Close()

	p := NewSegmentProxy(newTestFetcher(t), logging.Discard())
	resp, err := p.Relay(context.Background(), &types.StreamRequest{URL: srv.URL + "/seg-1.ts"})
	if err != nil {
		t.Fatalf("Relay() error = %v", err)
	}

	if got := readBody(t, resp); got != payload {
		t.Errorf("body = %q, want %q", got, payload)
	}
	if resp.ContentType != "video/mp2t" {
		t.Errorf("ContentType = %q", resp.ContentType)
	}
	for _, h := range []string{"Content-Encoding", "Content-Length", "Set-Cookie", "Content-Type"} {
		if v := resp.Headers.Get(h); v != "" {
			t.Errorf("%s = %q, want stripped", h, v)
		}
	}
	if resp.Headers.Get("Cache-Control") != "max-age=60" {
		t.Errorf("Cache-Control = %q", resp.Headers.Get("Cache-Control"))
	}
}

func TestSegmentProxy_ForwardsRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") != "bytes=100-199" {
			t.Errorf("Range = %q", r.Header.Get("Range"))
		}
		if r.Header.Get("Referer") != "https://site.example/" {
			t.Errorf("Referer = %q", r.Header.Get("Referer"))
		}
		w.Header().Set("Content-Range", "bytes 100-199/1000")
		w.WriteHeader(http.StatusPartialContent)
		w.Write(make([]byte, 100))
	}))
	defer srv.Close()

	p := NewSegmentProxy(newTestFetcher(t), logging.Discard())
	resp, err := p.Relay(context.Background(), &types.StreamRequest{
		URL:     srv.URL + "/movie.mp4",
		Headers: map[string]string{"Referer": "https://site.example/"},
		Range:   "bytes=100-199",
	})
	if err != nil {
		t.Fatalf("Relay() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if resp.Headers.Get("Content-Range") != "bytes 100-199/1000" {
		t.Errorf("Content-Range = %q", resp.Headers.Get("Content-Range"))
	}
	if resp.ContentType != defaultSegmentType {
		t.Errorf("ContentType = %q, want fallback", resp.ContentType)
	}
}

func TestSegmentProxy_UpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	p := NewSegmentProxy(newTestFetcher(t), logging.Discard())
	_, err := p.Relay(context.Background(), &types.StreamRequest{URL: srv.URL + "/missing.ts"})
	if !errors.Is(err, types.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSegmentProxy_SlicesIgnoredRange(t *testing.T) {
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i % 251)
	}

	tests := []struct {
		name         string
		chunked      bool
		wantRangeHdr string
	}{
		{name: "known length", wantRangeHdr: "bytes 100-199/1000"},
		{name: "unknown length", chunked: true, wantRangeHdr: "bytes 100-199/*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "video/mp4")
				if tt.chunked {
					w.WriteHeader(http.StatusOK)
					w.(http.Flusher).Flush()
				}
				w.Write(data)
			}))
			defer srv.Close()

			p := NewSegmentProxy(newTestFetcher(t), logging.Discard())
			resp, err := p.Relay(context.Background(), &types.StreamRequest{
				URL:   srv.URL + "/movie.mp4",
				Range: "bytes=100-199",
			})
			if err != nil {
				t.Fatalf("Relay() error = %v", err)
			}

			if resp.StatusCode != http.StatusPartialContent {
				t.Errorf("status = %d, want 206", resp.StatusCode)
			}
			if got := resp.Headers.Get("Content-Range"); got != tt.wantRangeHdr {
				t.Errorf("Content-Range = %q, want %q", got, tt.wantRangeHdr)
			}
			if got := readBody(t, resp); got != string(data[100:200]) {
				t.Errorf("body = %d bytes, want data[100:200]", len(got))
			}
		})
	}
}

func TestSegmentProxy_WholeRangeNotSliced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0123456789"))
	}))
	defer srv.Close()

	p := NewSegmentProxy(newTestFetcher(t), logging.Discard())
	resp, err := p.Relay(context.Background(), &types.StreamRequest{
		URL:   srv.URL + "/seg.ts",
		Range: "bytes=0-",
	})
	if err != nil {
		t.Fatalf("Relay() error = %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Headers.Get("Content-Range"); got != "" {
		t.Errorf("Content-Range = %q, want none", got)
	}
	if got := readBody(t, resp); got != "0123456789" {
		t.Errorf("body = %q", got)
	}
}
