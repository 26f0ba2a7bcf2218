package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"

	"hls-relay/pkg/interfaces"
	"hls-relay/pkg/metrics"
	"hls-relay/pkg/types"
)

// acceptEncoding is advertised on non-range fetches. Bodies are always
// decoded here, so callers see plain bytes.
const acceptEncoding = "gzip, deflate, br, zstd"

// maxDrain bounds how much of an error body is read to reuse the connection.
const maxDrain = 64 << 10

var errFetchTimeout = errors.New("upstream fetch timed out")

// Fetch opens a streaming upstream response. The fetch timeout covers the
// wait for response headers; the body streams for as long as the caller
// reads. The worker slot is held until the body is closed.
func (c *Client) Fetch(ctx context.Context, req types.FetchRequest) (*http.Response, error) {
	fetchCtx, cancel := context.WithCancelCause(ctx)
	timer := time.AfterFunc(c.fetchTimeout, func() { cancel(errFetchTimeout) })

	resp, release, err := c.open(fetchCtx, req)
	timer.Stop()
	if err != nil {
		cancel(nil)
		return nil, c.fetchError(ctx, fetchCtx, req, err)
	}

	resp.Body = &releasingBody{ReadCloser: resp.Body, release: func() {
		release()
		cancel(nil)
	}}
	c.count(req, metrics.OutcomeOK)
	return resp, nil
}

// FetchBytes reads a whole upstream body. The fetch timeout covers the
// entire exchange.
func (c *Client) FetchBytes(ctx context.Context, req types.FetchRequest) (*types.FetchedBody, error) {
	fetchCtx, cancel := context.WithTimeoutCause(ctx, c.fetchTimeout, errFetchTimeout)
	defer cancel()

	resp, release, err := c.open(fetchCtx, req)
	if err != nil {
		return nil, c.fetchError(ctx, fetchCtx, req, err)
	}
	defer release()
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fetchError(ctx, fetchCtx, req, err)
	}

	finalURL := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	c.count(req, metrics.OutcomeOK)
	return &types.FetchedBody{
		URL:        finalURL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// open takes a worker slot, sends the request and checks the status. On
// success the caller owns the body and must call release once.
func (c *Client) open(ctx context.Context, req types.FetchRequest) (*http.Response, func(), error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, nil, err
	}
	metrics.UpstreamInflight.Inc()
	var once sync.Once
	release := func() {
		once.Do(func() {
			metrics.UpstreamInflight.Dec()
			c.sem.Release(1)
		})
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, nil)
	if err != nil {
		release()
		return nil, nil, types.BadRequest("invalid upstream url %q: %v", req.URL, err)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if req.Range != "" {
		httpReq.Header.Set("Range", req.Range)
		// Compressed ranges cannot be decoded on their own.
		httpReq.Header.Set("Accept-Encoding", "identity")
	} else if httpReq.Header.Get("Accept-Encoding") == "" {
		httpReq.Header.Set("Accept-Encoding", acceptEncoding)
	}

	c.log.Debug("upstream request", "kind", req.Kind, "method", method, "url", req.URL, "range", req.Range)

	resp, err := c.Do(httpReq)
	if err != nil {
		release()
		return nil, nil, err
	}

	c.log.Debug("upstream response",
		"url", req.URL,
		"status", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"),
		"content_encoding", resp.Header.Get("Content-Encoding"),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
		resp.Body.Close()
		release()
		return nil, nil, types.UpstreamStatus(resp.StatusCode, req.URL)
	}

	if err := decodeBody(resp, method); err != nil {
		resp.Body.Close()
		release()
		return nil, nil, err
	}

	return resp, release, nil
}

// fetchError classifies a failed fetch. Caller cancellation is returned
// unchanged; everything else becomes ErrBadGateway unless it already
// carries a relay error.
func (c *Client) fetchError(caller, fetchCtx context.Context, req types.FetchRequest, err error) error {
	switch {
	case errors.Is(err, types.ErrNotFound), errors.Is(err, types.ErrBadGateway), errors.Is(err, types.ErrBadRequest):
		c.count(req, metrics.OutcomeStatus)
		c.log.Warn("upstream fetch failed", "kind", req.Kind, "url", req.URL, "error", err)
		return err
	case caller.Err() != nil:
		c.count(req, metrics.OutcomeCanceled)
		c.log.Debug("upstream fetch canceled", "kind", req.Kind, "url", req.URL)
		return caller.Err()
	case errors.Is(context.Cause(fetchCtx), errFetchTimeout):
		c.count(req, metrics.OutcomeTimeout)
		c.log.Warn("upstream fetch timed out", "kind", req.Kind, "url", req.URL, "timeout", c.fetchTimeout)
		return fmt.Errorf("%w: %s: %w", types.ErrBadGateway, req.URL, errFetchTimeout)
	default:
		c.count(req, metrics.OutcomeError)
		c.log.Warn("upstream fetch failed", "kind", req.Kind, "url", req.URL, "error", err)
		return fmt.Errorf("%w: fetching %s: %w", types.ErrBadGateway, req.URL, err)
	}
}

func (c *Client) count(req types.FetchRequest, outcome string) {
	kind := req.Kind
	if kind == "" {
		kind = "other"
	}
	metrics.UpstreamFetchesTotal.WithLabelValues(kind, outcome).Inc()
}

// decodeBody replaces a compressed body with a decoding reader. The
// Content-Encoding header is left in place so callers can see what the
// origin sent; Uncompressed marks the body as already decoded.
func decodeBody(resp *http.Response, method string) error {
	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	if encoding == "" || encoding == "identity" || method == http.MethodHead {
		return nil
	}

	raw := resp.Body
	var open func() (io.ReadCloser, error)
	switch encoding {
	case "gzip", "x-gzip":
		open = func() (io.ReadCloser, error) { return gzip.NewReader(raw) }
	case "deflate":
		open = func() (io.ReadCloser, error) { return zlib.NewReader(raw) }
	case "br":
		open = func() (io.ReadCloser, error) { return io.NopCloser(brotli.NewReader(raw)), nil }
	case "zstd":
		open = func() (io.ReadCloser, error) {
			dec, err := zstd.NewReader(raw)
			if err != nil {
				return nil, err
			}
			return dec.IOReadCloser(), nil
		}
	default:
		return nil
	}

	resp.Body = &decodingBody{raw: raw, open: open}
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

// decodingBody opens its decoder on first read, so empty bodies (204,
// HEAD-like replies) never fail on a missing header.
type decodingBody struct {
	raw  io.ReadCloser
	open func() (io.ReadCloser, error)
	dec  io.ReadCloser
	err  error
}

func (b *decodingBody) Read(p []byte) (int, error) {
	if b.dec == nil && b.err == nil {
		dec, err := b.open()
		switch {
		case errors.Is(err, io.EOF):
			b.dec = io.NopCloser(strings.NewReader(""))
		case err != nil:
			b.err = fmt.Errorf("%w: decoding body: %w", types.ErrBadGateway, err)
		default:
			b.dec = dec
		}
	}
	if b.err != nil {
		return 0, b.err
	}
	return b.dec.Read(p)
}

func (b *decodingBody) Close() error {
	if b.dec != nil {
		b.dec.Close()
	}
	return b.raw.Close()
}

// releasingBody frees the worker slot when the caller closes the body.
type releasingBody struct {
	io.ReadCloser
	release func()
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	b.release()
	return err
}

var _ interfaces.Fetcher = (*Client)(nil)
