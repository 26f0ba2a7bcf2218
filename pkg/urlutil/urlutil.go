// Package urlutil provides URL manipulation utilities that preserve original encoding.
package urlutil

import (
	"net/url"
	"path"
	"strings"
)

// ManifestExt is the extension that marks an HLS playlist.
const ManifestExt = ".m3u8"

// mediaExtensions lists the extensions treated as real file names when
// recovering a path from a chained virtual path.
var mediaExtensions = map[string]bool{
	".m3u8":   true,
	".m3u":    true,
	".ts":     true,
	".m4s":    true,
	".mp4":    true,
	".m4v":    true,
	".m4a":    true,
	".aac":    true,
	".mp3":    true,
	".ac3":    true,
	".ec3":    true,
	".vtt":    true,
	".webvtt": true,
	".srt":    true,
	".key":    true,
	".cmfv":   true,
	".cmfa":   true,
}

// ResolveURL resolves a potentially relative URL against a base URL.
// Uses string manipulation to preserve original URL encoding.
// Go's url.ResolveReference re-encodes special characters which breaks
// URLs for CDNs that use parentheses, brackets, or other special chars.
func ResolveURL(urlStr string, baseURL string) string {
	if strings.HasPrefix(urlStr, "http://") || strings.HasPrefix(urlStr, "https://") {
		return urlStr
	}

	// Protocol-relative reference
	if strings.HasPrefix(urlStr, "//") {
		if parsed, err := url.Parse(baseURL); err == nil && parsed.Scheme != "" {
			return parsed.Scheme + ":" + urlStr
		}
		return "https:" + urlStr
	}

	base := GetBaseDirectory(baseURL)

	if strings.HasPrefix(urlStr, "/") {
		// Absolute path - combine with scheme+host from base
		parsed, err := url.Parse(baseURL)
		if err != nil {
			return base + urlStr
		}
		return parsed.Scheme + "://" + parsed.Host + urlStr
	}

	urlStr = strings.TrimPrefix(urlStr, "./")

	// Handle parent directory references
	if strings.HasPrefix(urlStr, "../") {
		result := base
		remaining := urlStr
		for strings.HasPrefix(remaining, "../") {
			remaining = remaining[3:]
			// Remove trailing slash and last path component
			result = strings.TrimSuffix(result, "/")
			if lastSlash := strings.LastIndex(result, "/"); lastSlash > len("https://") {
				result = result[:lastSlash+1]
			} else {
				result += "/"
			}
		}
		return result + remaining
	}

	// Relative path - just append to base directory
	return base + urlStr
}

// GetBaseDirectory returns the directory portion of a URL (without the filename).
// Preserves original encoding.
func GetBaseDirectory(urlStr string) string {
	// Remove query string and fragment
	if idx := strings.IndexAny(urlStr, "?#"); idx > 0 {
		urlStr = urlStr[:idx]
	}
	schemeEnd := strings.Index(urlStr, "://")
	lastSlash := strings.LastIndex(urlStr, "/")
	if schemeEnd >= 0 && lastSlash <= schemeEnd+2 {
		// No path at all: "https://host"
		return urlStr + "/"
	}
	if lastSlash > 0 {
		return urlStr[:lastSlash+1]
	}
	return urlStr
}

// PathExt returns the lower-cased extension of the URL's path, ignoring
// query string and fragment.
func PathExt(urlStr string) string {
	p := urlStr
	if idx := strings.IndexAny(p, "?#"); idx >= 0 {
		p = p[:idx]
	}
	return strings.ToLower(path.Ext(p))
}

// IsManifest reports whether the URL's path ends in the playlist extension.
func IsManifest(urlStr string) bool {
	ext := PathExt(urlStr)
	return ext == ManifestExt || ext == ".m3u"
}

// LooksLikeManifest is the looser check used to route an incoming target:
// the playlist extension anywhere in the URL counts, since some hosts put
// it in a query parameter.
func LooksLikeManifest(urlStr string) bool {
	return IsManifest(urlStr) || strings.Contains(strings.ToLower(urlStr), ManifestExt)
}

// IsMediaFileName reports whether name ends in a known media extension.
func IsMediaFileName(name string) bool {
	return mediaExtensions[strings.ToLower(path.Ext(name))]
}

// LastMediaSegment returns the last "/"-separated element of p that ends in
// a known media extension. Chained paths such as
// ".m3u8/index.m3u8/seg-1.ts" collapse to "seg-1.ts".
func LastMediaSegment(p string) (string, bool) {
	parts := strings.Split(p, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		part := parts[i]
		if idx := strings.IndexAny(part, "?#"); idx >= 0 {
			part = part[:idx]
		}
		// A bare extension (".m3u8") is a marker, not a file name.
		if part == "" || strings.HasPrefix(part, ".") && path.Ext(part) == part {
			continue
		}
		if IsMediaFileName(part) {
			return part, true
		}
	}
	return "", false
}

// IsHTTPURL reports whether s is an absolute http(s) URL with a host.
func IsHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
