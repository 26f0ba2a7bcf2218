// Command hls-probe plays a stream through the interception adapter the
// way an embedded player would and reports what came back.
//
//	hls-probe [-provider vidmoly] [-subs url] [-v] <url>
//
// The url is either a synthetic-scheme URL of the chosen provider or a
// plain http(s) playlist URL, which is wrapped into one.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"hls-relay/pkg/config"
	"hls-relay/pkg/hls"
	"hls-relay/pkg/httpclient"
	"hls-relay/pkg/intercept"
	"hls-relay/pkg/logging"
	"hls-relay/pkg/subtitle"
	"hls-relay/pkg/types"
)

// probeRange is one MPEG-TS packet.
const probeRange = "bytes=0-187"

var (
	providerName = flag.String("provider", intercept.ProviderVidmoly, "intercept provider")
	subsURL      = flag.String("subs", "", "subtitle file to convert")
	verbose      = flag.Bool("v", false, "debug logging on stderr")
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: hls-probe [-provider name] [-subs url] [-v] <url>")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, flag.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, "hls-probe:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, target string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level := "warn"
	if *verbose {
		level = "debug"
	}
	log := logging.New(level, false, os.Stderr)

	providers := intercept.DefaultProviders()
	provider, ok := providers.ByName(*providerName)
	if !ok {
		return fmt.Errorf("unknown provider %q", *providerName)
	}

	client := httpclient.New(cfg, log)
	adapter := intercept.New(client, providers, log, cfg.DefaultUserAgent)
	session := adapter.NewSession()
	defer session.Reset()

	transport := &http.Transport{}
	for _, p := range providers.All() {
		transport.RegisterProtocol(p.Scheme, adapter.Transport(session))
	}
	player := &http.Client{Transport: transport}

	start := syntheticURL(provider, target)
	fmt.Printf("session   %s\nprovider  %s\nstart     %s\n", session.ID(), provider.Name, start)

	if err := probeStream(ctx, player, start); err != nil {
		return err
	}
	if *subsURL != "" {
		return probeSubtitles(ctx, client, *subsURL)
	}
	return nil
}

// syntheticURL wraps a plain http(s) URL into the provider's scheme.
func syntheticURL(p *intercept.Provider, target string) string {
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		return target
	}
	return p.Scheme + "://relay/start?url=" + url.QueryEscape(target) + "&virtual=.m3u8"
}

func probeStream(ctx context.Context, player *http.Client, start string) error {
	text, err := fetchPlaylist(ctx, player, start)
	if err != nil {
		return err
	}

	kind := hls.Classify(text)
	refs := hls.References(text)
	fmt.Printf("playlist  %s\n", kind)

	if kind == types.PlaylistMaster {
		fmt.Printf("variants  %d\n", len(refs))
		if len(refs) == 0 {
			return fmt.Errorf("master playlist lists no variants")
		}
		if text, err = fetchPlaylist(ctx, player, refs[0]); err != nil {
			return err
		}
		refs = hls.References(text)
	}

	fmt.Printf("segments  %d\n", len(refs))
	if len(refs) == 0 {
		return fmt.Errorf("media playlist lists no segments")
	}

	resp, body, err := get(ctx, player, refs[0], probeRange)
	if err != nil {
		return err
	}
	fmt.Printf("segment   %s\n          status %d, %d bytes, %s\n", refs[0], resp.StatusCode, len(body), resp.Header.Get("Content-Type"))
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		fmt.Printf("          content-range %s\n", cr)
	}
	return nil
}

func fetchPlaylist(ctx context.Context, player *http.Client, target string) (string, error) {
	resp, body, err := get(ctx, player, target, "")
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: status %d: %s", target, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	fmt.Printf("fetched   %s (%s)\n", target, resp.Header.Get("Content-Type"))
	return string(body), nil
}

func get(ctx context.Context, player *http.Client, target, byteRange string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, err
	}
	if byteRange != "" {
		req.Header.Set("Range", byteRange)
	}
	resp, err := player.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	return resp, body, nil
}

func probeSubtitles(ctx context.Context, client *httpclient.Client, src string) error {
	fetched, err := client.FetchBytes(ctx, types.FetchRequest{URL: src, Kind: "subtitle"})
	if err != nil {
		return err
	}
	text, exact := subtitle.Decode(fetched.Body, fetched.Header.Get("Content-Type"))
	cues := subtitle.Parse(subtitle.Convert(text, 0))
	fmt.Printf("subtitles %s\n          %d cues, %d bytes, exact charset %t\n", src, len(cues), len(fetched.Body), exact)
	return nil
}
