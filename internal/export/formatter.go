package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/scriba-app/transcribe-backend/internal/shared"
)

type Kind string

const (
	KindText Kind = "text"
	KindJSON Kind = "json"
	KindSRT  Kind = "srt"
	KindVTT  Kind = "vtt"
)

// Line is one segment's contribution to an export: the edited text when
// a validation record exists, the raw machine text otherwise.
type Line struct {
	Index       int     `json:"index"`
	StartOffset float64 `json:"start_offset"`
	EndOffset   float64 `json:"end_offset"`
	Text        string  `json:"text"`
	Confidence  float64 `json:"confidence"`
	Validated   bool    `json:"validated"`
}

// Format serializes lines, already in index order, into the requested
// representation. It never mutates its input. The second return value is
// a content-type hint for the caller.
func Format(lines []Line, kind Kind, includeTimestamps bool) ([]byte, string, error) {
	switch kind {
	case KindText:
		return formatText(lines, includeTimestamps), "text/plain; charset=utf-8", nil
	case KindJSON:
		out, err := json.MarshalIndent(struct {
			Segments []Line `json:"segments"`
		}{Segments: lines}, "", "  ")
		if err != nil {
			return nil, "", err
		}
		return out, "application/json", nil
	case KindSRT:
		return formatSubtitles(lines, false), "application/x-subrip", nil
	case KindVTT:
		return formatSubtitles(lines, true), "text/vtt", nil
	default:
		return nil, "", fmt.Errorf("export kind %q: %w", kind, shared.ErrUnsupportedFormat)
	}
}

// FileExtension returns the download extension for a kind, defaulting to
// txt for the plain-text concatenation.
func FileExtension(kind Kind) string {
	if kind == KindText {
		return "txt"
	}
	return string(kind)
}

func formatText(lines []Line, includeTimestamps bool) []byte {
	var buf bytes.Buffer
	for _, l := range lines {
		if includeTimestamps {
			fmt.Fprintf(&buf, "[%.1f–%.1f] ", l.StartOffset, l.EndOffset)
		}
		buf.WriteString(l.Text)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func formatSubtitles(lines []Line, vtt bool) []byte {
	var buf bytes.Buffer
	if vtt {
		buf.WriteString("WEBVTT\n\n")
	}
	for i, l := range lines {
		if !vtt {
			fmt.Fprintf(&buf, "%d\n", i+1)
		}
		fmt.Fprintf(&buf, "%s --> %s\n%s\n\n",
			subtitleTimestamp(l.StartOffset, vtt),
			subtitleTimestamp(l.EndOffset, vtt),
			l.Text)
	}
	return buf.Bytes()
}

func subtitleTimestamp(seconds float64, vtt bool) string {
	d := time.Duration(seconds * float64(time.Second))
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := int(d.Milliseconds()) % 1000
	sep := ","
	if vtt {
		sep = "."
	}
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", h, m, s, sep, ms)
}
