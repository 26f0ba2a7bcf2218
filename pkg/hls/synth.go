package hls

import (
	"fmt"
	"math"
	"strings"
	"time"

	"hls-relay/pkg/types"
)

// ProgressiveMaster wraps a single progressive file. variantURI is the
// relay URL of the inner media playlist built by SingleSegmentMedia.
func ProgressiveMaster(variantURI string, bandwidth int, sub *types.SubtitleTrack) string {
	return singleVariantMaster(variantURI, bandwidth, sub)
}

// MasterForMedia wraps a bare media playlist so that it can carry a
// subtitle rendition. variantURI must lead back to the same media playlist
// without the subtitle parameter, or the player would loop into this
// wrapper again.
func MasterForMedia(variantURI string, bandwidth int, sub *types.SubtitleTrack) string {
	return singleVariantMaster(variantURI, bandwidth, sub)
}

func singleVariantMaster(variantURI string, bandwidth int, sub *types.SubtitleTrack) string {
	var b strings.Builder

	b.WriteString(TagHeader + "\n")
	b.WriteString("#EXT-X-VERSION:3\n")

	var subtitlesAttr string
	if sub != nil {
		b.WriteString(SubtitleDescriptor(sub))
		b.WriteString("\n")
		subtitlesAttr = fmt.Sprintf(`,%s="%s"`, subtitlesAttrKey, sub.GroupID)
	}

	b.WriteString(fmt.Sprintf("%s:PROGRAM-ID=1,BANDWIDTH=%d%s\n", TagStreamInf, bandwidth, subtitlesAttr))
	b.WriteString(variantURI)
	b.WriteString("\n")

	return b.String()
}

// SingleSegmentMedia builds a VOD media playlist whose only segment is
// segmentURI, declared with the given duration. Players treat the whole
// resource as one long segment.
func SingleSegmentMedia(segmentURI string, duration time.Duration) string {
	secs := int(math.Ceil(duration.Seconds()))
	if secs < 1 {
		secs = 1
	}

	var b strings.Builder

	b.WriteString(TagHeader + "\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	b.WriteString(fmt.Sprintf("#EXT-X-TARGETDURATION:%d\n", secs))
	b.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n")
	b.WriteString("#EXT-X-PLAYLIST-TYPE:VOD\n")
	b.WriteString(fmt.Sprintf("#EXTINF:%d,\n", secs))
	b.WriteString(segmentURI)
	b.WriteString("\n")
	b.WriteString("#EXT-X-ENDLIST\n")

	return b.String()
}

// ProgressiveMedia is the media playlist behind ProgressiveMaster.
func ProgressiveMedia(segmentURI string, duration time.Duration) string {
	return SingleSegmentMedia(segmentURI, duration)
}

// SubtitlePlaylist is the rendition playlist referenced by a subtitle
// descriptor. Its single segment is the converted WebVTT document.
func SubtitlePlaylist(vttURI string, duration time.Duration) string {
	return SingleSegmentMedia(vttURI, duration)
}
