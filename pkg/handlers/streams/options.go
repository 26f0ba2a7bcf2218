package streams

import (
	"time"

	"hls-relay/pkg/config"
	"hls-relay/pkg/types"
)

// PlaylistOptions shape the subtitle descriptor and virtual playlists.
type PlaylistOptions struct {
	SubtitleGroupID  string
	SubtitleName     string
	SubtitleLanguage string
	Bandwidth        int
	SegmentDuration  time.Duration
	// APIPassword is propagated on generated links.
	APIPassword string
}

// OptionsFromConfig copies the playlist settings out of cfg.
func OptionsFromConfig(cfg *config.Config) PlaylistOptions {
	return PlaylistOptions{
		SubtitleGroupID:  cfg.SubtitleGroupID,
		SubtitleName:     cfg.SubtitleName,
		SubtitleLanguage: cfg.SubtitleLanguage,
		Bandwidth:        cfg.VirtualBandwidth,
		SegmentDuration:  cfg.VirtualSegmentDuration,
		APIPassword:      cfg.APIPassword,
	}
}

func (o PlaylistOptions) withDefaults() PlaylistOptions {
	if o.SubtitleGroupID == "" {
		o.SubtitleGroupID = "subs"
	}
	if o.SubtitleName == "" {
		o.SubtitleName = "External Subtitles"
	}
	if o.SubtitleLanguage == "" {
		o.SubtitleLanguage = "en"
	}
	if o.Bandwidth <= 0 {
		o.Bandwidth = 5000000
	}
	if o.SegmentDuration <= 0 {
		o.SegmentDuration = 24 * time.Hour
	}
	return o
}

func (o PlaylistOptions) links(baseURL string) *EndpointLinks {
	return NewEndpointLinks(baseURL).WithPassword(o.APIPassword)
}

// subtitleTrack describes src as a rendition of the configured group.
// Labels from the request win over configured defaults.
func (o PlaylistOptions) subtitleTrack(src *types.SubtitleSource, links *EndpointLinks) *types.SubtitleTrack {
	if src == nil {
		return nil
	}
	track := &types.SubtitleTrack{
		URI:      links.SubtitlePlaylist(src),
		GroupID:  o.SubtitleGroupID,
		Name:     o.SubtitleName,
		Language: o.SubtitleLanguage,
	}
	if src.Label != "" {
		track.Name = src.Label
	}
	if src.Language != "" {
		track.Language = src.Language
	}
	return track
}
