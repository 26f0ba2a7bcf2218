package intercept

import (
	"net/url"
	"path"
	"strings"
)

// Reserved query parameters of synthetic URLs. They are stripped before a
// URL is fetched upstream.
const (
	paramVirtual = "virtual"
	paramURL     = "url"
)

// virtualRoot marks the first playlist of a session.
const virtualRoot = ".m3u8"

// schemeLinks re-targets playlist references onto a provider's synthetic
// scheme so the player keeps routing them back here.
type schemeLinks struct {
	scheme string
}

func (l schemeLinks) Link(target string, _ map[string]string) string {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return target
	}
	u.Scheme = l.scheme
	u.Fragment = ""
	name := path.Base(u.Path)
	if u.RawQuery != "" {
		u.RawQuery += "&"
	}
	u.RawQuery += paramVirtual + "=" + url.QueryEscape(name)
	return u.String()
}

// syntheticQuery is a synthetic URL's query split into the reserved
// parameters and everything else, which keeps its original encoding and
// order.
type syntheticQuery struct {
	virtual string
	target  string
	rest    string
}

func parseSyntheticQuery(raw string) syntheticQuery {
	var q syntheticQuery
	var kept []string
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		switch key {
		case paramVirtual:
			q.virtual = unescape(value)
		case paramURL:
			q.target = unescape(value)
		default:
			kept = append(kept, pair)
		}
	}
	q.rest = strings.Join(kept, "&")
	return q
}

func (q syntheticQuery) first() bool {
	return q.virtual == "" || q.virtual == virtualRoot
}

func unescape(s string) string {
	if v, err := url.QueryUnescape(s); err == nil {
		return v
	}
	return s
}

// swapScheme returns u on scheme with its query replaced by rawQuery.
func swapScheme(u *url.URL, scheme, rawQuery string) string {
	out := *u
	out.Scheme = scheme
	out.RawQuery = rawQuery
	out.Fragment = ""
	return out.String()
}

func withQuery(target, rawQuery string) string {
	if rawQuery == "" {
		return target
	}
	if strings.Contains(target, "?") {
		return target + "&" + rawQuery
	}
	return target + "?" + rawQuery
}
