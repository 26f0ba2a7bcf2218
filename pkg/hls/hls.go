// Package hls classifies and rewrites HLS playlists and synthesises the
// small virtual playlists the relay serves for non-HLS content.
package hls

import (
	"net/url"
	"regexp"
	"strings"

	"hls-relay/pkg/interfaces"
	"hls-relay/pkg/types"
	"hls-relay/pkg/urlutil"
)

// Tags the rewriter and synthesiser care about.
const (
	TagHeader        = "#EXTM3U"
	TagStreamInf     = "#EXT-X-STREAM-INF"
	TagIFrameStream  = "#EXT-X-I-FRAME-STREAM-INF"
	TagMedia         = "#EXT-X-MEDIA"
	ContentType      = "application/vnd.apple.mpegurl"
	subtitlesAttrKey = "SUBTITLES"
)

var (
	uriAttrRe       = regexp.MustCompile(`URI="([^"]*)"`)
	subtitlesAttrRe = regexp.MustCompile(`SUBTITLES="[^"]*"`)
)

// Classify reports whether text is a master or a media playlist.
func Classify(text string) types.PlaylistKind {
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), TagStreamInf) {
			return types.PlaylistMaster
		}
	}
	return types.PlaylistMedia
}

// Rewriter re-targets every reference in a playlist through a LinkBuilder.
// The zero value rewrites without filtering.
type Rewriter struct {
	// StripIFrames drops EXT-X-I-FRAME-STREAM-INF lines.
	StripIFrames bool
	// DropAttributes removes the named attributes from EXT-X-STREAM-INF lines.
	DropAttributes []string
}

// Rewrite returns text with URL lines and URI="..." attribute values
// replaced by links. When rc.Subtitle is set and text is a master playlist
// the subtitle rendition is injected afterwards. Lines the rewriter does
// not understand pass through unchanged.
func (r *Rewriter) Rewrite(text string, rc *types.RewriteContext, links interfaces.LinkBuilder) string {
	text = normalizeNewlines(text)
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines)+1)

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			out = append(out, line)
		case strings.HasPrefix(trimmed, "#"):
			if r.StripIFrames && strings.HasPrefix(trimmed, TagIFrameStream) {
				continue
			}
			if strings.HasPrefix(trimmed, TagStreamInf) {
				for _, name := range r.DropAttributes {
					trimmed = DropAttribute(trimmed, name)
				}
				line = trimmed
			}
			if strings.Contains(line, `URI="`) {
				line = rewriteURIAttrs(line, rc, links)
			}
			out = append(out, line)
		default:
			out = append(out, rewriteRef(trimmed, rc, links))
		}
	}

	result := strings.Join(out, "\n")
	if rc.Subtitle != nil && Classify(result) == types.PlaylistMaster {
		result = InjectSubtitle(result, rc.Subtitle)
	}
	return result
}

func rewriteURIAttrs(line string, rc *types.RewriteContext, links interfaces.LinkBuilder) string {
	return uriAttrRe.ReplaceAllStringFunc(line, func(m string) string {
		uri := m[len(`URI="`) : len(m)-1]
		return `URI="` + rewriteRef(uri, rc, links) + `"`
	})
}

func rewriteRef(ref string, rc *types.RewriteContext, links interfaces.LinkBuilder) string {
	if ref == "" || hasForeignScheme(ref) {
		return ref
	}
	target := urlutil.ResolveURL(ref, rc.BaseURL)
	return links.Link(target, rc.Headers)
}

// hasForeignScheme reports references such as skd:// key URIs or data:
// URIs that must not be fetched through the relay.
func hasForeignScheme(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme == "" {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme != "http" && scheme != "https"
}

// SubtitleDescriptor renders the EXT-X-MEDIA line declaring track.
func SubtitleDescriptor(track *types.SubtitleTrack) string {
	var b strings.Builder
	b.WriteString(TagMedia)
	b.WriteString(`:TYPE=SUBTITLES,GROUP-ID="`)
	b.WriteString(track.GroupID)
	b.WriteString(`",NAME="`)
	b.WriteString(track.Name)
	b.WriteString(`",DEFAULT=YES,AUTOSELECT=YES,FORCED=NO,LANGUAGE="`)
	b.WriteString(track.Language)
	b.WriteString(`",URI="`)
	b.WriteString(track.URI)
	b.WriteString(`"`)
	return b.String()
}

// InjectSubtitle declares track right after the playlist header and points
// every variant at its group. Subtitle renditions already in the playlist
// are dropped, so track is the only one. Running it twice yields the same
// text.
func InjectSubtitle(text string, track *types.SubtitleTrack) string {
	lines := strings.Split(normalizeNewlines(text), "\n")
	out := make([]string, 0, len(lines)+1)
	descriptor := SubtitleDescriptor(track)
	groupAttr := subtitlesAttrKey + `="` + track.GroupID + `"`
	inserted := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case isSubtitleDescriptor(trimmed):
			continue
		case strings.HasPrefix(trimmed, TagStreamInf):
			switch {
			case subtitlesAttrRe.MatchString(trimmed):
				trimmed = subtitlesAttrRe.ReplaceAllLiteralString(trimmed, groupAttr)
			case trimmed == TagStreamInf:
				trimmed += ":" + groupAttr
			case strings.HasSuffix(trimmed, ":"):
				trimmed += groupAttr
			default:
				trimmed += "," + groupAttr
			}
			out = append(out, trimmed)
			continue
		}
		out = append(out, line)
		if !inserted && strings.HasPrefix(trimmed, TagHeader) {
			out = append(out, descriptor)
			inserted = true
		}
	}

	if !inserted {
		out = append([]string{descriptor}, out...)
	}
	return strings.Join(out, "\n")
}

func isSubtitleDescriptor(line string) bool {
	if !strings.HasPrefix(line, TagMedia+":") {
		return false
	}
	return ParseAttributes(line[len(TagMedia)+1:])["TYPE"] == "SUBTITLES"
}

// ParseAttributes splits an attribute list into a map. Quoted values are
// unquoted. Commas inside quotes do not split.
func ParseAttributes(s string) map[string]string {
	attrs := make(map[string]string)
	for _, pair := range splitAttributes(s) {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		attrs[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	return attrs
}

// DropAttribute removes attribute name from a tag line, keeping the order
// of the remaining attributes.
func DropAttribute(line, name string) string {
	tag, list, ok := strings.Cut(line, ":")
	if !ok {
		return line
	}
	parts := splitAttributes(list)
	kept := parts[:0]
	for _, p := range parts {
		key, _, _ := strings.Cut(p, "=")
		if strings.TrimSpace(key) == name {
			continue
		}
		kept = append(kept, p)
	}
	return tag + ":" + strings.Join(kept, ",")
}

func splitAttributes(s string) []string {
	var parts []string
	inQuotes := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if start < len(s) {
		parts = append(parts, s[start:])
	}
	return parts
}

func normalizeNewlines(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// References returns the URL lines of a playlist in order: variant URIs for
// a master, segment URIs for a media playlist.
func References(text string) []string {
	var refs []string
	for _, line := range strings.Split(normalizeNewlines(text), "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			refs = append(refs, line)
		}
	}
	return refs
}
