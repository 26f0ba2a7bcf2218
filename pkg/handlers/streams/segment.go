package streams

import (
	"context"
	"io"
	"net/http"

	"hls-relay/pkg/byterange"
	"hls-relay/pkg/httpclient"
	"hls-relay/pkg/interfaces"
	"hls-relay/pkg/logging"
	"hls-relay/pkg/metrics"
	"hls-relay/pkg/types"
)

const defaultSegmentType = "application/octet-stream"

// SegmentProxy streams segments, keys and progressive files from the
// origin to the player.
type SegmentProxy struct {
	fetcher interfaces.Fetcher
	log     *logging.Logger
}

// NewSegmentProxy creates a segment proxy.
func NewSegmentProxy(fetcher interfaces.Fetcher, log *logging.Logger) *SegmentProxy {
	return &SegmentProxy{
		fetcher: fetcher,
		log:     log.WithComponent("segment-proxy"),
	}
}

// Relay forwards req (headers, method and Range) upstream and returns the
// origin's status, filtered headers and streaming body. The fetch layer has
// already decoded any content encoding, so Content-Encoding is dropped.
// When the origin ignores Range and answers 200, the body is sliced here.
func (p *SegmentProxy) Relay(ctx context.Context, req *types.StreamRequest) (*types.StreamResponse, error) {
	resp, err := p.fetcher.Fetch(ctx, types.FetchRequest{
		Method:  req.Method,
		URL:     req.URL,
		Headers: req.Headers,
		Range:   req.Range,
		Kind:    "segment",
	})
	if err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultSegmentType
	}

	headers := httpclient.RelayHeaders(resp.Header)
	headers.Del("Content-Type")

	status := resp.StatusCode
	body := resp.Body
	if req.Range != "" && status == http.StatusOK && req.Method != http.MethodHead {
		sliced, r, err := p.slice(resp, req.Range)
		if err != nil {
			resp.Body.Close()
			return nil, err
		}
		if sliced != nil {
			body = sliced
			status = http.StatusPartialContent
			headers.Set("Content-Range", r)
			metrics.RangeSlicesTotal.Inc()
		}
	}

	p.log.Debug("relaying segment",
		"url", req.URL,
		"status", status,
		"range", req.Range,
		"content_type", contentType,
	)

	return &types.StreamResponse{
		ContentType: contentType,
		Headers:     headers,
		Body:        body,
		StatusCode:  status,
	}, nil
}

// slice skips to the requested range of a full 200 body and limits it to
// the range length. It returns a nil body, leaving the response whole, when
// the range cannot be resolved against the origin's length.
func (p *SegmentProxy) slice(resp *http.Response, rangeHeader string) (io.ReadCloser, string, error) {
	size := resp.ContentLength
	r, ok := byterange.Parse(rangeHeader, size)
	if !ok {
		p.log.Warn("cannot satisfy ignored range, relaying the whole body", "range", rangeHeader, "size", size)
		return nil, "", nil
	}
	if r.Covers(size) {
		return nil, "", nil
	}
	if _, err := io.CopyN(io.Discard, resp.Body, r.Start); err != nil {
		return nil, "", types.BadGateway("skipping to byte %d: %v", r.Start, err)
	}
	return &limitedBody{Reader: io.LimitReader(resp.Body, r.Length()), Closer: resp.Body}, r.ContentRange(size), nil
}

type limitedBody struct {
	io.Reader
	io.Closer
}
