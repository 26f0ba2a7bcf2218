// Package subtitle converts SRT and WebVTT documents into WebVTT with an
// optional time shift.
package subtitle

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"hls-relay/pkg/types"
)

// ContentType is the media type of Convert's output.
const ContentType = "text/vtt; charset=utf-8"

const header = "WEBVTT"

var (
	timingRe    = regexp.MustCompile(`^\s*(\S+)\s+-->\s+(\S+)(.*)$`)
	timestampRe = regexp.MustCompile(`^(?:(\d+):)?(\d{2}):(\d{2})[.,](\d{3})$`)
)

// Convert returns text as a WebVTT document with every cue boundary moved
// by offset seconds. Boundaries never go below zero. Timing lines that do
// not parse are kept as they are.
func Convert(text string, offset float64) string {
	offsetMs := int64(math.Round(offset * 1000))
	meta, lines := splitDocument(text)

	var b strings.Builder
	b.WriteString(header + "\n")
	for _, line := range meta {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	for _, line := range lines {
		if shifted, ok := shiftTiming(line, offsetMs); ok {
			line = shifted
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// Parse returns the cues of an SRT or WebVTT document in input order.
// Blocks without a valid timing line are skipped.
func Parse(text string) []types.Cue {
	var cues []types.Cue
	var current *types.Cue
	var textLines []string

	flush := func() {
		if current != nil {
			current.Text = strings.Join(textLines, "\n")
			cues = append(cues, *current)
		}
		current = nil
		textLines = nil
	}

	_, lines := splitDocument(text)
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if current == nil {
			start, end, _, ok := parseTiming(line)
			if ok {
				current = &types.Cue{Start: float64(start) / 1000, End: float64(end) / 1000}
			}
			continue
		}
		textLines = append(textLines, line)
	}
	flush()

	return cues
}

// splitDocument normalises line endings and drops the BOM and a WEBVTT
// header line. The header block below it (X-TIMESTAMP-MAP, Kind, Language)
// is returned as meta; lines holds the rest without leading or trailing
// blanks.
func splitDocument(text string) (meta, lines []string) {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines = strings.Split(text, "\n")
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), header) {
		lines = lines[1:]
		for len(lines) > 0 && strings.TrimSpace(lines[0]) != "" && !strings.Contains(lines[0], "-->") {
			meta = append(meta, strings.TrimSpace(lines[0]))
			lines = lines[1:]
		}
	}
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return meta, lines
}

func shiftTiming(line string, offsetMs int64) (string, bool) {
	start, end, settings, ok := parseTiming(line)
	if !ok {
		return "", false
	}
	return FormatTimestamp(start+offsetMs) + " --> " + FormatTimestamp(end+offsetMs) + settings, true
}

func parseTiming(line string) (start, end int64, settings string, ok bool) {
	m := timingRe.FindStringSubmatch(line)
	if m == nil {
		return 0, 0, "", false
	}
	if start, ok = ParseTimestamp(m[1]); !ok {
		return 0, 0, "", false
	}
	if end, ok = ParseTimestamp(m[2]); !ok {
		return 0, 0, "", false
	}
	return start, end, strings.TrimRight(m[3], " \t"), true
}

// ParseTimestamp reads HH:MM:SS,mmm, HH:MM:SS.mmm or MM:SS.mmm into
// milliseconds.
func ParseTimestamp(s string) (int64, bool) {
	m := timestampRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	var hours int64
	if m[1] != "" {
		h, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, false
		}
		hours = h
	}
	minutes, _ := strconv.ParseInt(m[2], 10, 64)
	seconds, _ := strconv.ParseInt(m[3], 10, 64)
	millis, _ := strconv.ParseInt(m[4], 10, 64)
	if minutes > 59 || seconds > 59 {
		return 0, false
	}
	return ((hours*60+minutes)*60+seconds)*1000 + millis, true
}

// FormatTimestamp renders milliseconds as a WebVTT HH:MM:SS.mmm stamp.
// Negative values clamp to zero.
func FormatTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3600000
	ms %= 3600000
	m := ms / 60000
	ms %= 60000
	s := ms / 1000
	ms %= 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}
