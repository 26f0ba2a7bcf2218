// Package resolver decodes relay query parameters into a StreamRequest.
package resolver

import (
	"encoding/base64"
	"encoding/json"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"hls-relay/pkg/types"
	"hls-relay/pkg/urlutil"
)

// Query parameter names understood by the relay endpoints.
const (
	ParamURL       = "url"
	ParamHeaders   = "headers"
	ParamSubs      = "subs"
	ParamOffset    = "offset"
	ParamSubsLabel = "subs_label"
	ParamSubsLang  = "subs_lang"
	ParamKind      = "kind"
	ParamReferer   = "referer"
	ParamOrigin    = "origin"
	ParamUserAgent = "user_agent"

	// KindMedia selects the inner media playlist of a virtual playlist.
	KindMedia = "media"

	headerParamPrefix = "h_"
)

// flatParams are merged after the JSON object, in this order, and only
// when the header is still missing.
var flatParams = []struct {
	param  string
	header string
}{
	{ParamReferer, "Referer"},
	{ParamOrigin, "Origin"},
	{ParamUserAgent, "User-Agent"},
}

// Resolve builds a StreamRequest from query parameters. It performs no I/O
// and fails only when url is missing or is not an absolute http(s) URL.
func Resolve(q url.Values, defaultUA string) (*types.StreamRequest, error) {
	target := DecodeTarget(q.Get(ParamURL))
	if target == "" {
		return nil, types.BadRequest("missing url parameter")
	}
	if !urlutil.IsHTTPURL(target) {
		return nil, types.BadRequest("url must be an absolute http(s) URL: %q", target)
	}

	req := &types.StreamRequest{
		URL:          target,
		VirtualMedia: q.Get(ParamKind) == KindMedia,
	}

	headers, ok := DecodeHeaders(q.Get(ParamHeaders))
	req.HeadersMalformed = !ok

	for _, fp := range flatParams {
		if v := q.Get(fp.param); v != "" {
			setIfAbsent(headers, fp.header, v)
		}
	}

	// h_Name=value parameters, sorted so repeated resolution is stable.
	var keys []string
	for key := range q {
		if strings.HasPrefix(key, headerParamPrefix) && len(key) > len(headerParamPrefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		name := strings.ReplaceAll(key[len(headerParamPrefix):], "_", "-")
		setIfAbsent(headers, name, q.Get(key))
	}

	if headers["User-Agent"] == "" {
		headers["User-Agent"] = defaultUA
	}
	req.Headers = headers

	if subs := strings.TrimSpace(q.Get(ParamSubs)); subs != "" && urlutil.IsHTTPURL(subs) {
		req.Subtitle = &types.SubtitleSource{
			URL:           subs,
			OffsetSeconds: ParseOffset(q.Get(ParamOffset)),
			Label:         q.Get(ParamSubsLabel),
			Language:      q.Get(ParamSubsLang),
		}
	}

	return req, nil
}

// DecodeTarget accepts a plain URL or a base64 (standard or URL-safe,
// padding optional) encoded one, which some link producers emit to dodge
// query escaping.
func DecodeTarget(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Contains(raw, "://") {
		return raw
	}

	padded := raw
	switch len(raw) % 4 {
	case 2:
		padded += "=="
	case 3:
		padded += "="
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding} {
		if decoded, err := enc.DecodeString(padded); err == nil && urlutil.IsHTTPURL(string(decoded)) {
			return string(decoded)
		}
	}
	return raw
}

// DecodeHeaders parses the headers parameter. Keys are canonicalised. The
// returned map is never nil; ok is false when raw was present but invalid.
func DecodeHeaders(raw string) (map[string]string, bool) {
	headers := make(map[string]string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return headers, true
	}

	var decoded map[string]string
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return headers, false
	}
	for k, v := range decoded {
		if k = strings.TrimSpace(k); k != "" {
			headers[http.CanonicalHeaderKey(k)] = v
		}
	}
	return headers, true
}

// EncodeHeaders serialises a header map for the headers parameter. Keys
// come out sorted, so equal maps always encode identically.
func EncodeHeaders(headers map[string]string) string {
	if len(headers) == 0 {
		return "{}"
	}
	data, err := json.Marshal(headers)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// ParseOffset reads a subtitle offset in seconds. Anything unparsable is
// treated as no offset.
func ParseOffset(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func setIfAbsent(headers map[string]string, name, value string) {
	name = http.CanonicalHeaderKey(strings.TrimSpace(name))
	if name == "" {
		return
	}
	if _, exists := headers[name]; !exists {
		headers[name] = value
	}
}
