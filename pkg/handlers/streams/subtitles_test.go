package streams

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"hls-relay/pkg/logging"
	"hls-relay/pkg/types"
)

func TestSubtitleHandler_ConvertsAndShifts(t *testing.T) {
	srt := "1\r\n00:00:20,000 --> 00:00:24,400\r\nCaf\xe9\r\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-subrip; charset=iso-8859-1")
		w.Write([]byte(srt))
	}))
	defer srv.Close()

	h := NewSubtitleHandler(newTestFetcher(t), logging.Discard(), PlaylistOptions{})
	resp, err := h.HandleSubtitles(context.Background(), &types.StreamRequest{URL: srv.URL + "/en.srt"}, -5)
	if err != nil {
		t.Fatalf("HandleSubtitles() error = %v", err)
	}
	if resp.ContentType != "text/vtt; charset=utf-8" {
		t.Errorf("ContentType = %q", resp.ContentType)
	}

	want := "WEBVTT\n\n1\n00:00:15.000 --> 00:00:19.400\nCafé\n"
	if got := readBody(t, resp); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestSubtitleHandler_UpstreamNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	h := NewSubtitleHandler(newTestFetcher(t), logging.Discard(), PlaylistOptions{})
	_, err := h.HandleSubtitles(context.Background(), &types.StreamRequest{URL: srv.URL + "/gone.vtt"}, 0)
	if !errors.Is(err, types.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSubtitleHandler_Playlist(t *testing.T) {
	h := NewSubtitleHandler(nil, logging.Discard(), PlaylistOptions{})
	src := &types.SubtitleSource{URL: "https://subs.example/en.srt", OffsetSeconds: 1.5}

	body := readBody(t, h.HandleSubtitlePlaylist(src, relayBase))
	lines := strings.Split(strings.TrimSpace(body), "\n")
	if lines[len(lines)-1] != "#EXT-X-ENDLIST" {
		t.Errorf("playlist must end with ENDLIST\n%s", body)
	}

	segment, err := url.Parse(lines[len(lines)-2])
	if err != nil {
		t.Fatalf("segment: %v", err)
	}
	if segment.Path != PathSubtitles {
		t.Errorf("segment path = %q", segment.Path)
	}
	if segment.Query().Get("url") != src.URL || segment.Query().Get("offset") != "1.5" {
		t.Errorf("segment query = %v", segment.Query())
	}
}
